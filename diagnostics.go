package annex

import "fmt"

// Severity of a diagnostic.
type Severity uint8

const (
	SevInfo Severity = iota
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "info"
	case SevWarning:
		return "warning"
	case SevError:
		return "error"
	default:
		return fmt.Sprintf("Severity(%d)", s)
	}
}

// ParseSeverity is the inverse of Severity.String; unknown names map to SevInfo.
func ParseSeverity(s string) Severity {
	switch s {
	case "warning", "warn":
		return SevWarning
	case "error":
		return SevError
	}
	return SevInfo
}

// Diagnostic is one entry of the diagnostics stream.
type Diagnostic struct {
	Severity Severity
	Message  string
	// Target is the qualified name of the related declaration, if any.
	Target   string
	Phase    Phase
	Callback string
}

func (d Diagnostic) String() string {
	s := d.Severity.String()
	if d.Phase != 0 {
		s += " [" + d.Phase.String()
		if d.Callback != "" {
			s += "/" + d.Callback
		}
		s += "]"
	}
	if d.Target != "" {
		s += " " + d.Target + ":"
	}
	return s + " " + d.Message
}

// Named is anything with a qualified name: declarations and info or config
// views.
type Named interface {
	Name() string
}

// Diagnostics collects the diagnostics of one run, up to a cap. Severity
// counts keep counting past the cap so HasErrors stays truthful.
type Diagnostics struct {
	items   []Diagnostic
	max     int
	counts  [3]int
	dropped int
	handler func(Diagnostic)
}

// NewDiagnostics creates a collector retaining at most max entries
// (unbounded when max <= 0). handler, when non-nil, observes every entry as
// it is reported, retained or not.
func NewDiagnostics(max int, handler func(Diagnostic)) *Diagnostics {
	return &Diagnostics{max: max, handler: handler}
}

// Add records d. It returns false when d was dropped because of the cap.
func (b *Diagnostics) Add(d Diagnostic) bool {
	if int(d.Severity) < len(b.counts) {
		b.counts[d.Severity]++
	}
	if b.handler != nil {
		b.handler(d)
	}
	if b.max > 0 && len(b.items) >= b.max {
		b.dropped++
		return false
	}
	b.items = append(b.items, d)
	return true
}

// Items returns the retained diagnostics in emission order. The slice must
// not be modified.
func (b *Diagnostics) Items() []Diagnostic {
	if b.items == nil {
		return []Diagnostic{}
	}
	return b.items
}

// Len is the number of retained diagnostics.
func (b *Diagnostics) Len() int { return len(b.items) }

// Dropped is the number of diagnostics discarded because of the cap.
func (b *Diagnostics) Dropped() int { return b.dropped }

// Count returns how many diagnostics of severity s were reported.
func (b *Diagnostics) Count(s Severity) int {
	if int(s) >= len(b.counts) {
		return 0
	}
	return b.counts[s]
}

// HasErrors reports whether any error-severity diagnostic was reported.
func (b *Diagnostics) HasErrors() bool { return b.counts[SevError] > 0 }

// HasWarnings reports whether any warning or error was reported.
func (b *Diagnostics) HasWarnings() bool { return b.counts[SevWarning] > 0 || b.HasErrors() }

// Messages is the facade callbacks use to report diagnostics. Each callback
// invocation gets its own handle so entries carry their origin.
type Messages struct {
	diags    *Diagnostics
	phase    Phase
	callback string
}

func (m *Messages) report(sev Severity, target Named, msg string) {
	d := Diagnostic{Severity: sev, Message: msg, Phase: m.phase, Callback: m.callback}
	if target != nil {
		d.Target = target.Name()
	}
	m.diags.Add(d)
}

// Info reports an informational message.
func (m *Messages) Info(msg string) { m.report(SevInfo, nil, msg) }

// InfoOn reports an informational message related to target.
func (m *Messages) InfoOn(target Named, msg string) { m.report(SevInfo, target, msg) }

// Warn reports a warning.
func (m *Messages) Warn(msg string) { m.report(SevWarning, nil, msg) }

// WarnOn reports a warning related to target.
func (m *Messages) WarnOn(target Named, msg string) { m.report(SevWarning, target, msg) }

// Error reports an error. Errors fail the run once all phases completed.
func (m *Messages) Error(msg string) { m.report(SevError, nil, msg) }

// ErrorOn reports an error related to target.
func (m *Messages) ErrorOn(target Named, msg string) { m.report(SevError, target, msg) }

// ErrorErr reports err as an error diagnostic.
func (m *Messages) ErrorErr(err error) { m.report(SevError, nil, err.Error()) }
