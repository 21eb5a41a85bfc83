package gallery

import "fmt"

// ConfigError reports gallery data that must stop the service from starting.
type ConfigError struct {
	Index  int    // position in the source, -1 when the whole source is at fault
	Label  string // may be empty
	Reason string
}

func (e *ConfigError) Error() string {
	switch {
	case e.Index < 0:
		return "gallery config: " + e.Reason
	case e.Label == "":
		return fmt.Sprintf("gallery config: entry %d: %s", e.Index, e.Reason)
	default:
		return fmt.Sprintf("gallery config: entry %d (%q): %s", e.Index, e.Label, e.Reason)
	}
}
