package main

import (
	"github.com/jward/annex"
)

// CLIResult is the top-level envelope for every command's output.
type CLIResult struct {
	Command    string `json:"command" yaml:"command"`
	Results    any    `json:"results" yaml:"results"`
	TotalCount *int   `json:"total_count,omitempty" yaml:"total_count,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// CLIAttribute is one annotation member.
type CLIAttribute struct {
	Name  string `json:"name" yaml:"name"`
	Value any    `json:"value" yaml:"value"`
}

// CLIAnnotation is an annotation instance with its members in order.
type CLIAnnotation struct {
	Name       string         `json:"name" yaml:"name"`
	Attributes []CLIAttribute `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// CLIClass is a class query result.
type CLIClass struct {
	Name        string          `json:"name" yaml:"name"`
	Kind        string          `json:"kind" yaml:"kind"`
	Superclass  string          `json:"superclass,omitempty" yaml:"superclass,omitempty"`
	Interfaces  []string        `json:"interfaces,omitempty" yaml:"interfaces,omitempty"`
	Modifiers   []string        `json:"modifiers,omitempty" yaml:"modifiers,omitempty"`
	Annotations []CLIAnnotation `json:"annotations,omitempty" yaml:"annotations,omitempty"`
}

// CLIMethod is a method or constructor query result.
type CLIMethod struct {
	Name        string          `json:"name" yaml:"name"`
	Owner       string          `json:"owner" yaml:"owner"`
	ReturnType  string          `json:"return_type" yaml:"return_type"`
	Params      []string        `json:"params,omitempty" yaml:"params,omitempty"`
	Modifiers   []string        `json:"modifiers,omitempty" yaml:"modifiers,omitempty"`
	Annotations []CLIAnnotation `json:"annotations,omitempty" yaml:"annotations,omitempty"`
}

// CLIField is a field query result.
type CLIField struct {
	Name        string          `json:"name" yaml:"name"`
	Owner       string          `json:"owner" yaml:"owner"`
	Type        string          `json:"type" yaml:"type"`
	Modifiers   []string        `json:"modifiers,omitempty" yaml:"modifiers,omitempty"`
	Annotations []CLIAnnotation `json:"annotations,omitempty" yaml:"annotations,omitempty"`
}

// CLIDiagnostic is one diagnostic of a run.
type CLIDiagnostic struct {
	Severity string `json:"severity" yaml:"severity"`
	Phase    string `json:"phase,omitempty" yaml:"phase,omitempty"`
	Callback string `json:"callback,omitempty" yaml:"callback,omitempty"`
	Target   string `json:"target,omitempty" yaml:"target,omitempty"`
	Message  string `json:"message" yaml:"message"`
}

// CLIRun summarizes a run.
type CLIRun struct {
	BuildID     string          `json:"build_id" yaml:"build_id"`
	Failed      bool            `json:"failed" yaml:"failed"`
	Error       string          `json:"error,omitempty" yaml:"error,omitempty"`
	DurationMS  int64           `json:"duration_ms" yaml:"duration_ms"`
	Invocations map[string]int  `json:"invocations" yaml:"invocations"`
	Modified    int             `json:"modified_declarations" yaml:"modified_declarations"`
	Beans       int             `json:"synthetic_beans" yaml:"synthetic_beans"`
	Observers   int             `json:"synthetic_observers" yaml:"synthetic_observers"`
	Contexts    int             `json:"custom_contexts" yaml:"custom_contexts"`
	Diagnostics []CLIDiagnostic `json:"diagnostics" yaml:"diagnostics"`
	Dropped     int             `json:"dropped_diagnostics,omitempty" yaml:"dropped_diagnostics,omitempty"`
}

func annotationToCLI(a annex.Annotation) CLIAnnotation {
	out := CLIAnnotation{Name: a.Name}
	for _, attr := range a.Attributes {
		out.Attributes = append(out.Attributes, CLIAttribute{Name: attr.Name, Value: attr.Value})
	}
	return out
}

func annotationsToCLI(anns []annex.Annotation) []CLIAnnotation {
	out := make([]CLIAnnotation, len(anns))
	for i, a := range anns {
		out[i] = annotationToCLI(a)
	}
	return out
}

func classToCLI(ci *annex.ClassInfo) CLIClass {
	return CLIClass{
		Name:        ci.Name(),
		Kind:        ci.Class().ClassKind.String(),
		Superclass:  ci.SuperclassName(),
		Interfaces:  ci.InterfaceNames(),
		Modifiers:   ci.Modifiers(),
		Annotations: annotationsToCLI(ci.Annotations()),
	}
}

func methodToCLI(mi *annex.MethodInfo) CLIMethod {
	return CLIMethod{
		Name:        mi.Name(),
		Owner:       mi.DeclaringClass().Name(),
		ReturnType:  mi.ReturnType(),
		Params:      mi.Parameters(),
		Modifiers:   mi.Modifiers(),
		Annotations: annotationsToCLI(mi.Annotations()),
	}
}

func fieldToCLI(fi *annex.FieldInfo) CLIField {
	return CLIField{
		Name:        fi.Name(),
		Owner:       fi.DeclaringClass().Name(),
		Type:        fi.Type(),
		Modifiers:   fi.Modifiers(),
		Annotations: annotationsToCLI(fi.Annotations()),
	}
}

func diagnosticToCLI(d annex.Diagnostic) CLIDiagnostic {
	out := CLIDiagnostic{
		Severity: d.Severity.String(),
		Callback: d.Callback,
		Target:   d.Target,
		Message:  d.Message,
	}
	if d.Phase != 0 {
		out.Phase = d.Phase.String()
	}
	return out
}

func runToCLI(res *annex.Result, runErr error) CLIRun {
	out := CLIRun{
		BuildID:     res.BuildID,
		Failed:      runErr != nil || res.Failed(),
		DurationMS:  res.FinishedAt.Sub(res.StartedAt).Milliseconds(),
		Invocations: make(map[string]int, len(res.Invocations)),
		Modified:    len(res.Overlay.Targets()),
		Beans:       len(res.Deployment.Beans()),
		Observers:   len(res.Deployment.Observers()),
		Contexts:    len(res.Deployment.Contexts()),
		Diagnostics: []CLIDiagnostic{},
		Dropped:     res.Diagnostics.Dropped(),
	}
	if runErr != nil {
		out.Error = runErr.Error()
	}
	for ph, n := range res.Invocations {
		out.Invocations[ph.String()] = n
	}
	for _, d := range res.Diagnostics.Items() {
		out.Diagnostics = append(out.Diagnostics, diagnosticToCLI(d))
	}
	return out
}
