package ir

import "fmt"

// Severity grades a diagnostic.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is a non-fatal message describing information loss or
// degradation during translation, ordered as emitted.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Kind     string   `json:"kind"`
	Message  string   `json:"message"`
	Location string   `json:"location,omitempty"`
}

func (d Diagnostic) String() string {
	if d.Location != "" {
		return fmt.Sprintf("[%s] %s: %s (%s)", d.Severity, d.Kind, d.Message, d.Location)
	}
	return fmt.Sprintf("[%s] %s: %s", d.Severity, d.Kind, d.Message)
}
