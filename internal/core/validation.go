package core

// validation.go is the gate every bulk update passes before any request is
// sent. Checks run in a fixed order and the first failure is reported:
//
//  1. There is at least one draft
//  2. Reference data (directory, unique-key snapshot) has finished loading
//  3. Every required field of every draft is filled (dates must parse)
//  4. Owner names resolve to exactly one employee
//  5. Unique keys are not repeated across drafts
//  6. Unique keys are not already used by another row on the server
//
// The gate is pure: it reads the drafts and the context and never mutates.

import (
	"errors"
	"strings"
)

// ValidationContext carries what the gate needs besides the drafts.
type ValidationContext struct {
	Def             TableDefinition
	ReferenceLoaded bool
	Directory       *Directory
	Originals       map[string]Row // canonical rows by id
	ExistingUnique  []string       // unique-key values on the server
}

// ValidateDrafts runs the gate over drafts and returns the first failure as
// a *ValidationError, or a sentinel for the first two checks.
func ValidateDrafts(drafts []Draft, vc ValidationContext) error {
	if len(drafts) == 0 {
		return ErrNoChanges
	}
	if !vc.ReferenceLoaded {
		return ErrReferenceLoading
	}

	def := vc.Def
	noun := def.Info.Noun

	for _, d := range drafts {
		for _, spec := range def.FieldSpecs {
			if !spec.RequiredOnUpdate {
				continue
			}
			v := d.Row[spec.Name]
			missing := !HasText(v)
			if spec.Type == FieldDate && !missing {
				missing = !IsDate(v)
			}
			if missing {
				return invalid(d.RowID, spec.Name, "%s(%s) %s를 입력하세요.", noun, d.RowID, spec.Label)
			}
		}
	}

	if def.OwnerField != "" {
		for _, d := range drafts {
			name := TrimText(d.Row[def.OwnerField])
			_, err := vc.Directory.ResolveName(name)
			switch {
			case errors.Is(err, ErrAmbiguousEmployee):
				return invalid(d.RowID, def.OwnerField, "%s(%s) 소유자 이름이 여러 직원과 일치합니다: %s", noun, d.RowID, name)
			case err != nil:
				return invalid(d.RowID, def.OwnerField, "%s(%s) 소유자가 직원 목록에 없습니다.", noun, d.RowID)
			}
		}
	}

	if def.UniqueField == "" {
		return nil
	}
	label := def.Label(def.UniqueField)

	claimed := make(map[string]string, len(drafts))
	for _, d := range drafts {
		key := NormalizeSerial(d.Row.Text(def.UniqueField))
		if key == "" {
			continue
		}
		if other, ok := claimed[key]; ok {
			return invalid(d.RowID, def.UniqueField, "%s 중복: %s (%s %s, %s)", label, key, noun, other, d.RowID)
		}
		claimed[key] = d.RowID
	}

	existing := make(map[string]bool, len(vc.ExistingUnique))
	for _, v := range vc.ExistingUnique {
		if k := NormalizeSerial(v); k != "" {
			existing[k] = true
		}
	}
	for _, d := range drafts {
		key := NormalizeSerial(d.Row.Text(def.UniqueField))
		if key == "" || !existing[key] {
			continue
		}
		own := ""
		if orig, ok := vc.Originals[d.RowID]; ok {
			own = NormalizeSerial(orig.Text(def.UniqueField))
		}
		if key == own {
			continue
		}
		return invalid(d.RowID, def.UniqueField, "이미 사용중인 %s입니다: %s (%s %s)", label, key, noun, d.RowID)
	}
	return nil
}

// ValidateRetire checks a dispose/resign request: the mode is active, at
// least one row is selected and, when the flow carries a remark, each
// selected row's remark is non-blank and contains the keyword.
func ValidateRetire(spec *RetireSpec, active bool, selected []string, remark func(id string) string) error {
	if !active {
		return &ValidationError{Message: spec.NotActiveMessage}
	}
	if len(selected) == 0 {
		return &ValidationError{Message: spec.NoneMessage}
	}
	if spec.RemarkField == "" {
		return nil
	}
	for _, id := range selected {
		text := strings.TrimSpace(remark(id))
		if text == "" {
			return invalid(id, spec.RemarkField, "비고란을 입력하세요.")
		}
		if spec.RemarkKeyword != "" && !strings.Contains(text, spec.RemarkKeyword) {
			return invalid(id, spec.RemarkField, "비고란에 '%s' 문구를 포함해 입력하세요.", spec.RemarkKeyword)
		}
	}
	return nil
}
