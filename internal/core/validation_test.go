package core

import (
	"errors"
	"testing"
)

func validDraft(id, sn, owner string) Draft {
	return Draft{RowID: id, Row: Row{
		"assetId":           id,
		"assetModelName":    "그램",
		"assetSn":           sn,
		"empName":           owner,
		"assetIssuanceDate": "2024-01-05",
	}}
}

func testValidationContext() ValidationContext {
	be := seededBackend()
	return ValidationContext{
		Def:             testAssetDefinition(),
		ReferenceLoaded: true,
		Directory:       NewDirectory(be.employees),
		Originals: map[string]Row{
			"N001": {"assetId": "N001", "assetSn": "SN-1"},
			"N002": {"assetId": "N002", "assetSn": "SN-2"},
		},
		ExistingUnique: be.serials,
	}
}

func TestValidateDrafts(t *testing.T) {
	tests := []struct {
		name    string
		drafts  func() []Draft
		ctx     func(vc *ValidationContext)
		wantErr error
		wantMsg string
	}{
		{
			name:    "no drafts",
			drafts:  func() []Draft { return nil },
			wantErr: ErrNoChanges,
		},
		{
			name:    "references loading",
			drafts:  func() []Draft { return []Draft{validDraft("N001", "SN-1", "김철수")} },
			ctx:     func(vc *ValidationContext) { vc.ReferenceLoaded = false },
			wantErr: ErrReferenceLoading,
		},
		{
			name: "required field blank",
			drafts: func() []Draft {
				d := validDraft("N001", "SN-1", "김철수")
				d.Row["assetModelName"] = "  "
				return []Draft{d}
			},
			wantMsg: "자산(N001) 모델명를 입력하세요.",
		},
		{
			name: "date unparseable",
			drafts: func() []Draft {
				d := validDraft("N001", "SN-1", "김철수")
				d.Row["assetIssuanceDate"] = "someday"
				return []Draft{d}
			},
			wantMsg: "자산(N001) 지급일를 입력하세요.",
		},
		{
			name: "required checked before owner",
			drafts: func() []Draft {
				d := validDraft("N001", "SN-1", "모르는사람")
				d.Row["assetSn"] = ""
				return []Draft{d}
			},
			wantMsg: "자산(N001) 시리얼번호를 입력하세요.",
		},
		{
			name:    "unknown owner",
			drafts:  func() []Draft { return []Draft{validDraft("N001", "SN-1", "모르는사람")} },
			wantMsg: "자산(N001) 소유자가 직원 목록에 없습니다.",
		},
		{
			name:    "ambiguous owner",
			drafts:  func() []Draft { return []Draft{validDraft("N001", "SN-1", "최동명")} },
			wantMsg: "자산(N001) 소유자 이름이 여러 직원과 일치합니다: 최동명",
		},
		{
			name: "duplicate across drafts",
			drafts: func() []Draft {
				return []Draft{validDraft("N001", "sn-9", "김철수"), validDraft("N002", " SN-9", "이영희")}
			},
			wantMsg: "시리얼번호 중복: SN-9 (자산 N001, N002)",
		},
		{
			name:    "taken on server",
			drafts:  func() []Draft { return []Draft{validDraft("N001", "sn-2", "김철수")} },
			wantMsg: "이미 사용중인 시리얼번호입니다: SN-2 (자산 N001)",
		},
		{
			name:   "keeping own serial allowed",
			drafts: func() []Draft { return []Draft{validDraft("N001", "sn-1", "김철수")} },
		},
		{
			name:   "new serial allowed",
			drafts: func() []Draft { return []Draft{validDraft("N001", "SN-100", "김철수")} },
		},
		{
			name: "swap of serials between drafts is rejected by the server check",
			drafts: func() []Draft {
				return []Draft{validDraft("N001", "SN-2", "김철수"), validDraft("N002", "SN-1", "이영희")}
			},
			wantMsg: "이미 사용중인 시리얼번호입니다: SN-2 (자산 N001)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vc := testValidationContext()
			if tt.ctx != nil {
				tt.ctx(&vc)
			}
			err := ValidateDrafts(tt.drafts(), vc)

			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
			case tt.wantMsg != "":
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("err = %v, want *ValidationError", err)
				}
				if ve.Message != tt.wantMsg {
					t.Errorf("message = %q, want %q", ve.Message, tt.wantMsg)
				}
			default:
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		})
	}
}

func TestValidateDrafts_FirstFailureWins(t *testing.T) {
	vc := testValidationContext()
	bad := validDraft("N002", "SN-1", "김철수")
	bad.Row["assetModelName"] = ""
	drafts := []Draft{validDraft("N001", "SN-5", "모르는사람"), bad}

	err := ValidateDrafts(drafts, vc)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v", err)
	}
	// required fields of every draft run before owner resolution
	if ve.RowID != "N002" || ve.Field != "assetModelName" {
		t.Errorf("failure at %s/%s, want N002/assetModelName", ve.RowID, ve.Field)
	}
}

func TestValidateRetire(t *testing.T) {
	spec := testAssetDefinition().Retire
	remarks := map[string]string{"a": "폐기 예정", "b": "  ", "c": "고장"}
	remark := func(id string) string { return remarks[id] }

	tests := []struct {
		name     string
		active   bool
		selected []string
		want     string
	}{
		{"inactive", false, []string{"a"}, "폐기 모드가 아닙니다."},
		{"nothing selected", true, nil, "폐기할 자산을 선택하세요."},
		{"blank remark", true, []string{"a", "b"}, "비고란을 입력하세요."},
		{"missing keyword", true, []string{"c"}, "비고란에 '폐기' 문구를 포함해 입력하세요."},
		{"ok", true, []string{"a"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRetire(spec, tt.active, tt.selected, remark)
			if tt.want == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.want {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestValidateRetire_NoRemarkFlow(t *testing.T) {
	spec := &RetireSpec{NotActiveMessage: "off", NoneMessage: "none"}
	if err := ValidateRetire(spec, true, []string{"E001"}, func(string) string { return "" }); err != nil {
		t.Errorf("resign flow without remark should pass, got %v", err)
	}
}
