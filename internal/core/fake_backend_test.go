package core

import (
	"context"
	"errors"
	"sync"
)

var errBackendDown = errors.New("backend down")

// fakeBackend is an in-memory Backend that records every write.
type fakeBackend struct {
	mu sync.Mutex

	assets    []Row
	employees []Row
	serials   []string
	empIDs    []string
	teams     []string
	positions []string
	history   []Row

	nextAsset map[string]string
	nextEmp   string

	failList   bool
	failRefs   bool
	failWrites bool
	failNextID bool

	nextIDCalls map[string]int
	writes      map[string][][]Row
	historyIDs  []string

	refsGate     chan struct{} // when set, reference loads block until closed
	writeGate    chan struct{} // when set, writes block until closed
	writeStarted chan struct{} // receives once per write that reached the gate
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		nextAsset:   make(map[string]string),
		nextIDCalls: make(map[string]int),
		writes:      make(map[string][][]Row),
	}
}

func (f *fakeBackend) waitRefs(ctx context.Context) error {
	f.mu.Lock()
	gate := f.refsGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRefs {
		return errBackendDown
	}
	return nil
}

func cloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

func (f *fakeBackend) ListAssets(ctx context.Context, status string) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList {
		return nil, errBackendDown
	}
	var out []Row
	for _, r := range f.assets {
		if status == "" || r.Text("assetStatus") == status {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (f *fakeBackend) ListEmployees(ctx context.Context) ([]Row, error) {
	if err := f.waitRefs(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneRows(f.employees), nil
}

func (f *fakeBackend) AssetSerials(ctx context.Context) ([]string, error) {
	if err := f.waitRefs(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.serials...), nil
}

func (f *fakeBackend) EmployeeIDs(ctx context.Context) ([]string, error) {
	if err := f.waitRefs(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.empIDs...), nil
}

func (f *fakeBackend) Teams(ctx context.Context) ([]string, error) {
	if err := f.waitRefs(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.teams...), nil
}

func (f *fakeBackend) Positions(ctx context.Context) ([]string, error) {
	if err := f.waitRefs(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.positions...), nil
}

func (f *fakeBackend) AssetHistory(ctx context.Context, assetID string) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyIDs = append(f.historyIDs, assetID)
	if f.failList {
		return nil, errBackendDown
	}
	return cloneRows(f.history), nil
}

func (f *fakeBackend) NextAssetID(ctx context.Context, assetType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextIDCalls[assetType]++
	if f.failNextID {
		return "", errBackendDown
	}
	return f.nextAsset[assetType], nil
}

func (f *fakeBackend) NextEmployeeID(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextIDCalls["EMP"]++
	if f.failNextID {
		return "", errBackendDown
	}
	return f.nextEmp, nil
}

func (f *fakeBackend) write(op string, payload []Row) error {
	f.mu.Lock()
	gate, started := f.writeGate, f.writeStarted
	f.mu.Unlock()
	if gate != nil {
		if started != nil {
			started <- struct{}{}
		}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errBackendDown
	}
	f.writes[op] = append(f.writes[op], cloneRows(payload))
	return nil
}

func (f *fakeBackend) calls(op string) [][]Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes[op]
}

func (f *fakeBackend) UpdateAssets(_ context.Context, p []Row) error    { return f.write("updateAssets", p) }
func (f *fakeBackend) UpdateEmployees(_ context.Context, p []Row) error { return f.write("updateEmployees", p) }
func (f *fakeBackend) DisposeAssets(_ context.Context, p []Row) error   { return f.write("disposeAssets", p) }
func (f *fakeBackend) ResignEmployees(_ context.Context, p []Row) error  { return f.write("resignEmployees", p) }
func (f *fakeBackend) CreateAssets(_ context.Context, p []Row) error    { return f.write("createAssets", p) }
func (f *fakeBackend) CreateEmployees(_ context.Context, p []Row) error { return f.write("createEmployees", p) }

// testAssetDefinition mirrors the asset table closely enough to exercise
// every engine path without importing the tables package.
func testAssetDefinition() TableDefinition {
	return TableDefinition{
		Info: TableInfo{
			Key: "assets", Label: "자산", Noun: "자산",
			IDField: "assetId", StatusField: "assetStatus", Permission: "PERM_ASSET_WRITE",
		},
		FieldSpecs: []FieldSpec{
			{Name: "assetId", Label: "품번"},
			{Name: "assetType", Label: "종류", Type: FieldEnum, Searchable: true, Filterable: true, RequiredOnCreate: true},
			{Name: "assetModelName", Label: "모델명", Editable: true, RequiredOnUpdate: true, RequiredOnCreate: true},
			{Name: "assetSn", Label: "시리얼번호", CreateLabel: "S/N", Editable: true, RequiredOnUpdate: true, RequiredOnCreate: true},
			{Name: "empId", Label: "사번", RequiredOnCreate: true},
			{Name: "empName", Label: "소유자", Searchable: true, Filterable: true, Editable: true, RequiredOnUpdate: true},
			{Name: "empPos", Label: "직위", Searchable: true, Filterable: true, Editable: true, ReadOnly: true},
			{Name: "teamName", Label: "소속", Searchable: true, Filterable: true, Editable: true, ReadOnly: true},
			{Name: "assetIssuanceDate", Label: "지급일", Type: FieldDate, Editable: true, RequiredOnUpdate: true, RequiredOnCreate: true},
			{Name: "assetDesc", Label: "비고", Searchable: true, Filterable: true, Editable: true},
			{Name: "assetStatus", Label: "상태", Type: FieldEnum},
		},
		UniqueField:   "assetSn",
		OwnerField:    "empName",
		DefaultStatus: "Y",
		ReadOnlyView:  "N",
		ApplyOwner: func(row Row, e Employee) {
			row["empPos"] = e.EmpPos
			row["teamName"] = e.TeamName
		},
		Load: func(ctx context.Context, be Backend, q ListQuery) ([]Row, error) {
			return be.ListAssets(ctx, q.Status)
		},
		LoadReferences: func(ctx context.Context, be Backend) (References, error) {
			emps, err := be.ListEmployees(ctx)
			if err != nil {
				return References{Directory: NewDirectory(nil)}, err
			}
			sn, err := be.AssetSerials(ctx)
			return References{Directory: NewDirectory(emps), Unique: sn}, err
		},
		BuildUpdate: func(id string, draft Row, refs References) Row {
			out := Row{"assetId": id, "assetSn": draft.Text("assetSn")}
			if e, err := refs.Directory.ResolveName(draft.Text("empName")); err == nil {
				out["empId"] = e.EmpID
			}
			return out
		},
		SubmitUpdate: func(ctx context.Context, be Backend, p []Row) error {
			return be.UpdateAssets(ctx, p)
		},
		UpdateFailureMessage: "자산 정보 수정 요청 중 오류가 발생했습니다.",
		SaveConfirmMessage:   "%d건 수정",
		Retire: &RetireSpec{
			Action:        ActionDispose,
			RemarkField:   "assetDesc",
			RemarkKeyword: "폐기",
			StatusValue:   "N",
			FocusField:    "assetDesc",
			BuildPayload: func(id, remark string) Row {
				return Row{"assetId": id, "assetDesc": remark}
			},
			Submit: func(ctx context.Context, be Backend, p []Row) error {
				return be.DisposeAssets(ctx, p)
			},
			NotActiveMessage: "폐기 모드가 아닙니다.",
			NoneMessage:      "폐기할 자산을 선택하세요.",
			FailureMessage:   "자산 폐기 요청 중 오류가 발생했습니다.",
			ConfirmMessage:   "%d건 폐기",
		},
		Registration: &RegistrationSpec{
			Template:      []string{"assetId", "assetType", "assetModelName", "assetSn", "empId", "empPos", "teamName", "assetIssuanceDate"},
			IDField:       "assetId",
			CategoryField: "assetType",
			UniqueField:   "assetSn",
			OwnerField:    "empId",
			Normalize:     NormalizeSerial,
			LoadExisting: func(ctx context.Context, be Backend) ([]string, error) {
				return be.AssetSerials(ctx)
			},
			NextID: func(ctx context.Context, be Backend, category string) (string, error) {
				return be.NextAssetID(ctx, category)
			},
			BuildPayload: func(r Row) Row {
				out := r.Clone()
				out["assetIssuanceDate"] = FormatDate(r["assetIssuanceDate"], DateLayout)
				return out
			},
			Submit: func(ctx context.Context, be Backend, p []Row) error {
				return be.CreateAssets(ctx, p)
			},
			ServerDuplicateMessage: "이미 등록된 시리얼입니다.",
			LocalDuplicateMessage:  "현재 입력 목록 내 중복 시리얼입니다.",
			ServerDuplicateRow:     "%d행: 시리얼이 이미 존재합니다.",
			LocalDuplicateRow:      "%d행: 시리얼이 중복됩니다.",
			FailureMessage:         "자산 등록에 실패했습니다.",
		},
	}
}

// seededBackend returns a backend with three active assets, one disposed
// asset and a small employee directory.
func seededBackend() *fakeBackend {
	be := newFakeBackend()
	be.assets = []Row{
		{"assetId": "N001", "assetType": "노트북", "assetModelName": "그램", "assetSn": "SN-1", "empName": "김철수", "empPos": "사원", "teamName": "개발팀", "assetIssuanceDate": "2024-01-05T00:00:00", "assetDesc": "", "assetStatus": "Y"},
		{"assetId": "N002", "assetType": "노트북", "assetModelName": "맥북", "assetSn": "SN-2", "empName": "이영희", "empPos": "팀장", "teamName": "영업팀", "assetIssuanceDate": "2024-02-01T00:00:00", "assetDesc": "교체 예정", "assetStatus": "Y"},
		{"assetId": "M001", "assetType": "모니터", "assetModelName": "울트라기어", "assetSn": "SN-3", "empName": "김철수", "empPos": "사원", "teamName": "개발팀", "assetIssuanceDate": "2024-03-01T00:00:00", "assetDesc": nil, "assetStatus": "Y"},
		{"assetId": "M000", "assetType": "모니터", "assetModelName": "구형", "assetSn": "SN-0", "empName": "박민수", "assetStatus": "N"},
	}
	be.employees = []Row{
		{"empId": "E001", "empName": "김철수", "empPos": "사원", "teamName": "개발팀"},
		{"empId": "E002", "empName": "이영희", "empPos": "팀장", "teamName": "영업팀"},
		{"empId": "E003", "empName": "박민수", "empPos": "책임", "teamName": "인사팀"},
		{"empId": "E004", "empName": "최동명", "empPos": "사원", "teamName": "개발팀"},
		{"empId": "E005", "empName": "최동명", "empPos": "선임", "teamName": "영업팀"},
	}
	be.serials = []string{"SN-1", "SN-2", "SN-3", "SN-0"}
	be.nextAsset = map[string]string{"노트북": "N003", "모니터": "M002"}
	return be
}
