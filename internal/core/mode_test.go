package core

import (
	"errors"
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeViewing, false},
		{"view", ModeViewing, false},
		{"bulk_update", ModeBulkUpdate, false},
		{"retire", ModeRetire, false},
		{"dispose", ModeRetire, false},
		{"resign", ModeRetire, false},
		{"delete", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func newHookedController() (*ModeController, map[Mode]int) {
	exits := make(map[Mode]int)
	c := NewModeController()
	c.OnExit(ModeBulkUpdate, func() { exits[ModeBulkUpdate]++ })
	c.OnExit(ModeRetire, func() { exits[ModeRetire]++ })
	return c, exits
}

func TestModeController_Toggle(t *testing.T) {
	c, exits := newHookedController()

	if c.Mode() != ModeViewing {
		t.Fatalf("initial mode = %q, want view", c.Mode())
	}

	if m, _ := c.Toggle(ModeBulkUpdate); m != ModeBulkUpdate {
		t.Errorf("Toggle(bulk) = %q, want bulk_update", m)
	}
	if m, _ := c.Toggle(ModeBulkUpdate); m != ModeViewing {
		t.Errorf("second Toggle(bulk) = %q, want view", m)
	}
	if exits[ModeBulkUpdate] != 1 {
		t.Errorf("bulk exit hook ran %d times, want 1", exits[ModeBulkUpdate])
	}
}

func TestModeController_Exclusive(t *testing.T) {
	c, exits := newHookedController()

	c.Toggle(ModeRetire)
	m, err := c.Toggle(ModeBulkUpdate)
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if m != ModeBulkUpdate {
		t.Errorf("mode = %q, want bulk_update", m)
	}
	if exits[ModeRetire] != 1 {
		t.Errorf("retire exit hook ran %d times, want 1", exits[ModeRetire])
	}

	c.Toggle(ModeRetire)
	if c.Mode() != ModeRetire {
		t.Errorf("mode = %q, want retire", c.Mode())
	}
	if exits[ModeBulkUpdate] != 1 {
		t.Errorf("bulk exit hook ran %d times, want 1", exits[ModeBulkUpdate])
	}
	if c.Active(ModeBulkUpdate) {
		t.Error("both modes active")
	}
}

func TestModeController_ToggleViewingResets(t *testing.T) {
	c, exits := newHookedController()
	c.Toggle(ModeRetire)
	c.Toggle(ModeViewing)
	if c.Mode() != ModeViewing || exits[ModeRetire] != 1 {
		t.Errorf("mode = %q exits = %v, want view with one retire exit", c.Mode(), exits)
	}
}

func TestModeController_Disable(t *testing.T) {
	c, exits := newHookedController()
	c.Toggle(ModeBulkUpdate)
	c.Disable()

	if exits[ModeBulkUpdate] != 1 {
		t.Error("Disable should exit the active mode")
	}
	if !c.Disabled() {
		t.Error("Disabled() = false")
	}
	m, err := c.Toggle(ModeRetire)
	if !errors.Is(err, ErrModeDisabled) {
		t.Errorf("Toggle on disabled controller err = %v, want ErrModeDisabled", err)
	}
	if m != ModeViewing {
		t.Errorf("mode = %q, want view", m)
	}
}
