package tables

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/assetconsole/internal/core"
)

// Asset status values of the assetStatus column.
const (
	AssetActive   = "Y"
	AssetDisposed = "N"
)

// PermAssetWrite gates every asset mutation.
const PermAssetWrite = "PERM_ASSET_WRITE"

func init() {
	registerAssets()
}

var assetFields = []core.FieldSpec{
	{Name: "assetId", Label: "품번", Type: core.FieldText},
	{Name: "assetType", Label: "종류", Type: core.FieldEnum, Searchable: true, Filterable: true, Editable: false, RequiredOnCreate: true},
	{Name: "assetManufacturer", Label: "제조사", Type: core.FieldText, Editable: true, RequiredOnUpdate: true, RequiredOnCreate: true},
	{Name: "assetManufacturedAt", Label: "제조년월", Type: core.FieldDate, Editable: true, RequiredOnUpdate: true, RequiredOnCreate: true},
	{Name: "assetModelName", Label: "모델명", Type: core.FieldText, Editable: true, RequiredOnUpdate: true, RequiredOnCreate: true},
	{Name: "assetSn", Label: "시리얼번호", CreateLabel: "S/N", Type: core.FieldText, Editable: true, RequiredOnUpdate: true, RequiredOnCreate: true},
	{Name: "empId", Label: "사번", Type: core.FieldText, RequiredOnCreate: true},
	{Name: "empName", Label: "소유자", Type: core.FieldText, Searchable: true, Filterable: true, Editable: true, RequiredOnUpdate: true},
	{Name: "empPos", Label: "직위", Type: core.FieldText, Searchable: true, Filterable: true, Editable: true, ReadOnly: true},
	{Name: "teamName", Label: "소속", Type: core.FieldText, Searchable: true, Filterable: true, Editable: true, ReadOnly: true},
	{Name: "assetLoc", Label: "설치 장소", CreateLabel: "설치장소", Type: core.FieldText, Searchable: true, Filterable: true, Editable: true, RequiredOnUpdate: true, RequiredOnCreate: true},
	{Name: "assetIssuanceDate", Label: "지급일", Type: core.FieldDate, Editable: true, RequiredOnUpdate: true, RequiredOnCreate: true},
	{Name: "assetDesc", Label: "비고", Type: core.FieldText, Searchable: true, Filterable: true, Editable: true, RequiredOnUpdate: true, RequiredOnCreate: true},
	{Name: "assetStatus", Label: "상태", Type: core.FieldEnum},
}

func registerAssets() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:         "assets",
			Label:       "자산",
			Noun:        "자산",
			IDField:     "assetId",
			StatusField: "assetStatus",
			Permission:  PermAssetWrite,
		},
		FieldSpecs:    assetFields,
		UniqueField:   "assetSn",
		OwnerField:    "empName",
		DefaultStatus: AssetActive,
		ReadOnlyView:  AssetDisposed,
		ApplyOwner: func(row core.Row, e core.Employee) {
			row["empPos"] = e.EmpPos
			row["teamName"] = e.TeamName
		},

		Load: func(ctx context.Context, be core.Backend, q core.ListQuery) ([]core.Row, error) {
			return be.ListAssets(ctx, q.Status)
		},
		LoadReferences: loadAssetReferences,
		BuildUpdate:    buildAssetUpdate,
		MergeDraft:     mergeAssetDraft,
		SubmitUpdate: func(ctx context.Context, be core.Backend, payload []core.Row) error {
			return be.UpdateAssets(ctx, payload)
		},
		UpdateFailureMessage: "자산 정보 수정 요청 중 오류가 발생했습니다.",
		SaveConfirmMessage:   "%d건의 자산 정보를 수정하시겠습니까?",

		Retire: &core.RetireSpec{
			Action:        core.ActionDispose,
			RemarkField:   "assetDesc",
			RemarkKeyword: "폐기",
			StatusValue:   AssetDisposed,
			FocusField:    "assetDesc",
			BuildPayload: func(id, remark string) core.Row {
				return core.Row{"assetId": id, "assetDesc": remark}
			},
			Submit: func(ctx context.Context, be core.Backend, payload []core.Row) error {
				return be.DisposeAssets(ctx, payload)
			},
			NotActiveMessage: "폐기 모드가 아닙니다.",
			NoneMessage:      "폐기할 자산을 선택하세요.",
			FailureMessage:   "자산 폐기 요청 중 오류가 발생했습니다.",
			ConfirmMessage:   "%d건의 자산을 폐기하시겠습니까?",
		},

		Registration: &core.RegistrationSpec{
			Template: []string{
				"assetId", "assetType", "assetManufacturer", "assetManufacturedAt",
				"assetModelName", "assetSn", "empId", "empPos", "teamName",
				"assetLoc", "assetIssuanceDate", "assetDesc",
			},
			IDField:       "assetId",
			CategoryField: "assetType",
			UniqueField:   "assetSn",
			OwnerField:    "empId",
			Normalize:     core.NormalizeSerial,
			ImportHeaders: []core.ImportHeader{
				{Header: "품번", Field: "assetId", Alias: true},
				{Header: "종류", Field: "assetType"},
				{Header: "제조사", Field: "assetManufacturer"},
				{Header: "제조년월", Field: "assetManufacturedAt"},
				{Header: "모델명", Field: "assetModelName"},
				{Header: "시리얼번호", Field: "assetSn", Alias: true},
				{Header: "S/N", Field: "assetSn"},
				{Header: "SN", Field: "assetSn", Alias: true},
				{Header: "사번", Field: "empId"},
				{Header: "설치장소", Field: "assetLoc"},
				{Header: "지급일", Field: "assetIssuanceDate"},
				{Header: "비고", Field: "assetDesc"},
			},
			Example: []string{"노트북", "LG", "2024-01-30", "LG 그램", "SN1234", "E999", "본사_3F", "2024-02-01", "예시 비고"},
			LoadExisting: func(ctx context.Context, be core.Backend) ([]string, error) {
				return be.AssetSerials(ctx)
			},
			NextID: func(ctx context.Context, be core.Backend, assetType string) (string, error) {
				return be.NextAssetID(ctx, assetType)
			},
			BuildPayload: buildAssetCreate,
			Submit: func(ctx context.Context, be core.Backend, payload []core.Row) error {
				return be.CreateAssets(ctx, payload)
			},
			ServerDuplicateMessage: "이미 등록된 시리얼입니다.",
			LocalDuplicateMessage:  "현재 입력 목록 내 중복 시리얼입니다.",
			ServerDuplicateRow:     "%d행: 시리얼이 이미 존재합니다.",
			LocalDuplicateRow:      "%d행: 시리얼이 중복됩니다.",
			FailureMessage:         "자산 등록에 실패했습니다. 입력한 데이터를 확인해주세요.",
		},
	})
}

// loadAssetReferences fetches the employee directory and the serial
// snapshot together. A failed half leaves its list empty.
func loadAssetReferences(ctx context.Context, be core.Backend) (core.References, error) {
	var (
		employees []core.Row
		serials   []string
	)
	var g errgroup.Group
	g.Go(func() error {
		rows, err := be.ListEmployees(ctx)
		employees = rows
		return err
	})
	g.Go(func() error {
		sn, err := be.AssetSerials(ctx)
		serials = sn
		return err
	})
	err := g.Wait()
	return core.References{
		Directory: core.NewDirectory(employees),
		Unique:    serials,
	}, err
}

func buildAssetUpdate(id string, draft core.Row, refs core.References) core.Row {
	var empID any
	if e, err := refs.Directory.ResolveName(draft.Text("empName")); err == nil && e.EmpID != "" {
		empID = e.EmpID
	}
	return core.Row{
		"assetId":             id,
		"assetManufacturer":   draft.Text("assetManufacturer"),
		"assetModelName":      draft.Text("assetModelName"),
		"assetSn":             draft.Text("assetSn"),
		"assetLoc":            draft.Text("assetLoc"),
		"assetDesc":           draft.Text("assetDesc"),
		"empId":               empID,
		"assetManufacturedAt": core.FormatDate(draft["assetManufacturedAt"], core.DateTimeLayout),
		"assetIssuanceDate":   core.FormatDate(draft["assetIssuanceDate"], core.DateTimeLayout),
	}
}

func mergeAssetDraft(row, draft core.Row, refs core.References) core.Row {
	out := row.Clone()
	for k, v := range draft {
		out[k] = v
	}
	if e, err := refs.Directory.ResolveName(draft.Text("empName")); err == nil {
		out["empId"] = e.EmpID
		out["empPos"] = e.EmpPos
		out["teamName"] = e.TeamName
	}
	return out
}

func buildAssetCreate(r core.Row) core.Row {
	return core.Row{
		"assetId":             core.TrimText(r["assetId"]),
		"assetType":           core.TrimText(r["assetType"]),
		"assetManufacturer":   core.TrimText(r["assetManufacturer"]),
		"assetManufacturedAt": core.FormatDate(r["assetManufacturedAt"], core.DateLayout),
		"assetModelName":      core.TrimText(r["assetModelName"]),
		"assetSn":             core.TrimText(r["assetSn"]),
		"empId":               core.TrimText(r["empId"]),
		"assetLoc":            core.TrimText(r["assetLoc"]),
		"assetIssuanceDate":   core.FormatDate(r["assetIssuanceDate"], core.DateLayout),
		"assetDesc":           core.TrimText(r["assetDesc"]),
	}
}
