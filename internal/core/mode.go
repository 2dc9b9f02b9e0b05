package core

import "fmt"

// Mode is the interaction mode of a table view.
type Mode string

const (
	ModeViewing    Mode = "view"
	ModeBulkUpdate Mode = "bulk_update"
	ModeRetire     Mode = "retire" // dispose for assets, resign for employees
)

// ParseMode accepts the wire names of the modes, including "dispose" and
// "resign" as aliases of ModeRetire.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", string(ModeViewing):
		return ModeViewing, nil
	case string(ModeBulkUpdate):
		return ModeBulkUpdate, nil
	case string(ModeRetire), "dispose", "resign":
		return ModeRetire, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// ModeController keeps the two active modes mutually exclusive. Leaving an
// active mode runs its exit hook, which clears the state that mode owns.
type ModeController struct {
	mode     Mode
	disabled bool
	onExit   map[Mode]func()
}

// NewModeController returns a controller in ModeViewing.
func NewModeController() *ModeController {
	return &ModeController{mode: ModeViewing, onExit: make(map[Mode]func())}
}

// OnExit registers the hook run whenever m is left.
func (c *ModeController) OnExit(m Mode, fn func()) {
	c.onExit[m] = fn
}

// Disable pins the controller to ModeViewing.
func (c *ModeController) Disable() {
	c.Reset()
	c.disabled = true
}

// Disabled reports whether modes are disabled.
func (c *ModeController) Disabled() bool { return c.disabled }

// Mode returns the current mode.
func (c *ModeController) Mode() Mode { return c.mode }

// Active reports whether m is the current mode.
func (c *ModeController) Active(m Mode) bool { return c.mode == m }

// Toggle flips m: if m is active it returns to ModeViewing, otherwise the
// current mode is exited and m entered. Toggling ModeViewing resets.
func (c *ModeController) Toggle(m Mode) (Mode, error) {
	if m == ModeViewing || c.mode == m {
		c.Reset()
		return c.mode, nil
	}
	err := c.Enter(m)
	return c.mode, err
}

// Enter switches to m, exiting the current mode first.
func (c *ModeController) Enter(m Mode) error {
	if c.disabled && m != ModeViewing {
		return ErrModeDisabled
	}
	if c.mode == m {
		return nil
	}
	c.exit()
	c.mode = m
	return nil
}

// Reset returns to ModeViewing, running the exit hook of the active mode.
func (c *ModeController) Reset() {
	c.exit()
	c.mode = ModeViewing
}

func (c *ModeController) exit() {
	if c.mode == ModeViewing {
		return
	}
	if fn := c.onExit[c.mode]; fn != nil {
		fn()
	}
}
