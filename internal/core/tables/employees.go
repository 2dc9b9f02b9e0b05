package tables

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/assetconsole/internal/core"
)

// EmployeeResigned is the empStatus written by the resign flow.
const EmployeeResigned = "퇴사"

// EmployeeCategory is the allocator category of employee ids.
const EmployeeCategory = "EMP"

// PermHRWrite gates every employee mutation.
const PermHRWrite = "PERM_HR_WRITE"

func init() {
	registerEmployees()
}

func registerEmployees() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:         "employees",
			Label:       "직원",
			Noun:        "직원",
			IDField:     "empId",
			StatusField: "empStatus",
			Permission:  PermHRWrite,
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "empId", Label: "사번", Type: core.FieldText},
			{Name: "empName", Label: "성명", Type: core.FieldText, Searchable: true, Filterable: true, Editable: true, RequiredOnCreate: true},
			{Name: "empPos", Label: "직위", Type: core.FieldEnum, Searchable: true, Filterable: true, Editable: true, RequiredOnCreate: true},
			{Name: "teamName", Label: "소속", Type: core.FieldEnum, Searchable: true, Filterable: true, Editable: true, RequiredOnCreate: true},
			{Name: "empStatus", Label: "재직 상태", Type: core.FieldEnum, Searchable: true, Filterable: true, Editable: true},
			{Name: "empRegDt", Label: "입사일", Type: core.FieldDate, RequiredOnCreate: true},
		},

		Load: func(ctx context.Context, be core.Backend, _ core.ListQuery) ([]core.Row, error) {
			return be.ListEmployees(ctx)
		},
		LoadReferences: loadEmployeeReferences,
		BuildUpdate: func(id string, draft core.Row, _ core.References) core.Row {
			return core.Row{
				"empId":     id,
				"empName":   draft.Text("empName"),
				"empPos":    draft.Text("empPos"),
				"teamName":  draft.Text("teamName"),
				"empStatus": draft.Text("empStatus"),
			}
		},
		SubmitUpdate: func(ctx context.Context, be core.Backend, payload []core.Row) error {
			return be.UpdateEmployees(ctx, payload)
		},
		UpdateFailureMessage: "직원 정보 수정 요청 중 오류가 발생했습니다.",
		SaveConfirmMessage:   "%d명의 직원 정보를 수정하시겠습니까?",

		Retire: &core.RetireSpec{
			Action:      core.ActionResign,
			StatusValue: EmployeeResigned,
			BuildPayload: func(id, _ string) core.Row {
				return core.Row{"empId": id, "empStatus": EmployeeResigned}
			},
			Submit: func(ctx context.Context, be core.Backend, payload []core.Row) error {
				return be.ResignEmployees(ctx, payload)
			},
			NotActiveMessage: "퇴사 처리 모드가 아닙니다.",
			NoneMessage:      "퇴사 처리할 직원을 선택하세요.",
			FailureMessage:   "퇴사 처리 요청 중 오류가 발생했습니다.",
			ConfirmMessage:   "%d명의 직원을 퇴사 처리하시겠습니까?",
		},

		Registration: &core.RegistrationSpec{
			Template:      []string{"empId", "empName", "empPos", "teamName", "empRegDt"},
			IDField:       "empId",
			FixedCategory: EmployeeCategory,
			UniqueField:   "empId",
			Normalize:     core.NormalizeKey,
			KeyVariants:   core.EmpKeyVariants,
			ImportHeaders: []core.ImportHeader{
				{Header: "사번", Field: "empId"},
				{Header: "성명", Field: "empName"},
				{Header: "직위", Field: "empPos"},
				{Header: "소속", Field: "teamName"},
				{Header: "입사일자", Field: "empRegDt"},
				{Header: "입사일", Field: "empRegDt", Alias: true},
			},
			Example:         []string{"E999", "홍길동", "사원", "개발팀", "2026-01-01"},
			ClearDuplicates: true,
			ClearedMessage:  "중복 사번 %d건이 제거되었습니다.",
			LoadExisting: func(ctx context.Context, be core.Backend) ([]string, error) {
				return be.EmployeeIDs(ctx)
			},
			NextID: func(ctx context.Context, be core.Backend, _ string) (string, error) {
				return be.NextEmployeeID(ctx)
			},
			BuildPayload: func(r core.Row) core.Row {
				return core.Row{
					"empId":    core.TrimText(r["empId"]),
					"empName":  core.TrimText(r["empName"]),
					"empPos":   core.TrimText(r["empPos"]),
					"teamName": core.TrimText(r["teamName"]),
					"empRegDt": core.FormatDate(r["empRegDt"], core.DateLayout),
				}
			},
			Submit: func(ctx context.Context, be core.Backend, payload []core.Row) error {
				return be.CreateEmployees(ctx, payload)
			},
			ServerDuplicateMessage: "이미 등록된 사번입니다.",
			LocalDuplicateMessage:  "같은 폼에 중복 사번이 있습니다.",
			ServerDuplicateRow:     "%d행: 사번이 이미 존재합니다.",
			LocalDuplicateRow:      "%d행: 사번이 중복됩니다.",
			FailureMessage:         "직원 등록에 실패했습니다.",
		},
	})
}

// loadEmployeeReferences fetches the team and position option lists.
func loadEmployeeReferences(ctx context.Context, be core.Backend) (core.References, error) {
	var refs core.References
	var g errgroup.Group
	g.Go(func() error {
		teams, err := be.Teams(ctx)
		refs.Teams = teams
		return err
	})
	g.Go(func() error {
		positions, err := be.Positions(ctx)
		refs.Positions = positions
		return err
	})
	err := g.Wait()
	return refs, err
}
