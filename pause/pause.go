// Package pause defines the optional emergency-stop collaborator a host can
// inject into engine.Engine. The engine core never decides what is paused —
// it only asks View at the top of each operation and refuses to run if told
// no.
package pause

import "usdhcore/engineerr"

// View reports whether a named module is currently paused. A nil View never
// pauses anything, so a host that doesn't care about this wiring can simply
// never call SetPauses.
type View interface {
	IsPaused(module string) bool
}

// Guard returns engineerr.ErrModulePaused (wrapped, KindCapability) if v
// reports module as paused. A nil v or empty module name always passes.
func Guard(v View, module string) error {
	if v == nil || module == "" {
		return nil
	}
	if v.IsPaused(module) {
		return engineerr.Wrap(engineerr.KindCapability, "pause.Guard", engineerr.ErrModulePaused)
	}
	return nil
}
