package core

import (
	"reflect"
	"testing"
)

func TestRowEditTracker_RecordChange(t *testing.T) {
	tr := NewRowEditTracker([]string{"assetSn", "assetLoc", "assetDesc"})
	orig := Row{"assetId": "N001", "assetSn": "SN-1", "assetLoc": "본사", "assetDesc": nil}

	t.Run("no change records nothing", func(t *testing.T) {
		changed := tr.RecordChange("N001", orig, orig.Clone())
		if changed != nil || tr.EditedCount() != 0 {
			t.Errorf("changed = %v count = %d, want none", changed, tr.EditedCount())
		}
	})

	t.Run("null and empty are equal", func(t *testing.T) {
		next := orig.Clone()
		next["assetDesc"] = ""
		if changed := tr.RecordChange("N001", orig, next); changed != nil {
			t.Errorf("changed = %v, want none", changed)
		}
	})

	t.Run("untracked field ignored", func(t *testing.T) {
		next := orig.Clone()
		next["assetId"] = "N999"
		if changed := tr.RecordChange("N001", orig, next); changed != nil {
			t.Errorf("changed = %v, want none", changed)
		}
	})

	t.Run("change creates draft", func(t *testing.T) {
		next := orig.Clone()
		next["assetLoc"] = "지사"
		changed := tr.RecordChange("N001", orig, next)
		if !reflect.DeepEqual(changed, []string{"assetLoc"}) {
			t.Errorf("changed = %v, want [assetLoc]", changed)
		}
		if tr.EditedCount() != 1 {
			t.Errorf("EditedCount = %d, want 1", tr.EditedCount())
		}
		d, ok := tr.Draft("N001")
		if !ok || d.Text("assetLoc") != "지사" || d.Text("assetSn") != "SN-1" {
			t.Errorf("Draft = %v, want full row with new location", d)
		}
		if !tr.IsEdited("N001", "assetLoc") {
			t.Error("assetLoc should be marked edited")
		}
	})
}

func TestRowEditTracker_EditedSetGrows(t *testing.T) {
	tr := NewRowEditTracker([]string{"a", "b"})
	orig := Row{"a": "1", "b": "1"}

	step1 := Row{"a": "2", "b": "1"}
	tr.RecordChange("r", orig, step1)
	step2 := Row{"a": "2", "b": "2"}
	tr.RecordChange("r", step1, step2)

	if got := tr.EditedFields("r"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("EditedFields = %v, want [a b]", got)
	}
	d, _ := tr.Draft("r")
	if d.Text("b") != "2" {
		t.Errorf("draft b = %q, want 2", d.Text("b"))
	}
}

func TestRowEditTracker_RevertKeepsRowEdited(t *testing.T) {
	tr := NewRowEditTracker([]string{"assetLoc"})
	orig := Row{"assetLoc": "본사"}
	changed := Row{"assetLoc": "지사"}

	tr.RecordChange("N001", orig, changed)
	tr.RecordChange("N001", changed, orig.Clone())

	if tr.EditedCount() != 1 {
		t.Errorf("EditedCount after revert = %d, want 1", tr.EditedCount())
	}
	if !tr.IsEdited("N001", "assetLoc") {
		t.Error("reverted cell should stay marked edited")
	}
	d, _ := tr.Draft("N001")
	if d.Text("assetLoc") != "본사" {
		t.Errorf("draft assetLoc = %q, want reverted value", d.Text("assetLoc"))
	}
}

func TestRowEditTracker_DraftIffEdited(t *testing.T) {
	tr := NewRowEditTracker([]string{"a"})
	tr.RecordChange("r1", Row{"a": "x"}, Row{"a": "y"})
	tr.RecordChange("r2", Row{"a": "x"}, Row{"a": "x"})
	tr.RecordChange("r3", Row{"a": 1.0}, Row{"a": "1"})

	for _, id := range []string{"r1", "r2", "r3"} {
		_, hasDraft := tr.Draft(id)
		hasEdits := len(tr.EditedFields(id)) > 0
		if hasDraft != hasEdits {
			t.Errorf("%s: draft=%v edits=%v, want equal", id, hasDraft, hasEdits)
		}
	}
}

func TestRowEditTracker_DraftsOrderAndClear(t *testing.T) {
	tr := NewRowEditTracker([]string{"a"})
	tr.RecordChange("r2", Row{"a": "x"}, Row{"a": "y"})
	tr.RecordChange("r1", Row{"a": "x"}, Row{"a": "y"})
	tr.RecordChange("r2", Row{"a": "y"}, Row{"a": "z"})

	drafts := tr.Drafts()
	if len(drafts) != 2 || drafts[0].RowID != "r2" || drafts[1].RowID != "r1" {
		t.Fatalf("Drafts = %v, want r2 then r1", drafts)
	}
	if drafts[0].Row.Text("a") != "z" {
		t.Errorf("r2 draft a = %q, want z", drafts[0].Row.Text("a"))
	}

	tr.Clear()
	if tr.EditedCount() != 0 || len(tr.Drafts()) != 0 || len(tr.EditedCells()) != 0 {
		t.Error("Clear should drop every draft and edited set")
	}
}
