package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/jward/annex"
)

var (
	errorColor = color.New(color.FgRed, color.Bold)
	warnColor  = color.New(color.FgYellow, color.Bold)
	infoColor  = color.New(color.FgCyan)
	dimColor   = color.New(color.Faint)
)

// printDiagnostic writes one diagnostic as a colored line, e.g.
//
//	error [enhancement/bind] com.acme.Orders: missing qualifier
func printDiagnostic(w io.Writer, d annex.Diagnostic) {
	fmt.Fprintln(w, formatDiagnostic(diagnosticToCLI(d)))
}

func formatDiagnostic(d CLIDiagnostic) string {
	var sev string
	switch d.Severity {
	case "error":
		sev = errorColor.Sprint(d.Severity)
	case "warning":
		sev = warnColor.Sprint(d.Severity)
	default:
		sev = infoColor.Sprint(d.Severity)
	}
	var b strings.Builder
	b.WriteString(sev)
	if d.Phase != "" {
		origin := d.Phase
		if d.Callback != "" {
			origin += "/" + d.Callback
		}
		b.WriteString(" " + dimColor.Sprint("["+origin+"]"))
	}
	if d.Target != "" {
		b.WriteString(" " + d.Target + ":")
	}
	b.WriteString(" " + d.Message)
	return b.String()
}

// formatAnnotation renders an annotation in source-like form.
func formatAnnotation(a CLIAnnotation) string {
	if len(a.Attributes) == 0 {
		return "@" + a.Name
	}
	parts := make([]string, len(a.Attributes))
	for i, attr := range a.Attributes {
		parts[i] = attr.Name + "=" + formatValue(attr.Value)
	}
	return "@" + a.Name + "(" + strings.Join(parts, ", ") + ")"
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("%q", val)
	case []any:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = formatValue(e)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", val)
	}
}

func formatAnnotations(anns []CLIAnnotation) string {
	parts := make([]string, len(anns))
	for i, a := range anns {
		parts[i] = formatAnnotation(a)
	}
	return strings.Join(parts, " ")
}

func formatClassesText(w io.Writer, classes []CLIClass) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tSUPERCLASS\tANNOTATIONS")
	for _, c := range classes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name, c.Kind, c.Superclass, formatAnnotations(c.Annotations))
	}
	tw.Flush()
}

func formatMethodsText(w io.Writer, methods []CLIMethod) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tRETURNS\tANNOTATIONS")
	for _, m := range methods {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Name, m.ReturnType, formatAnnotations(m.Annotations))
	}
	tw.Flush()
}

func formatFieldsText(w io.Writer, fields []CLIField) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tANNOTATIONS")
	for _, f := range fields {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Name, f.Type, formatAnnotations(f.Annotations))
	}
	tw.Flush()
}

func formatRunText(w io.Writer, r CLIRun) {
	status := infoColor.Sprint("ok")
	if r.Failed {
		status = errorColor.Sprint("failed")
	}
	fmt.Fprintf(w, "Run %s: %s in %dms\n", r.BuildID, status, r.DurationMS)
	phases := make([]string, 0, len(r.Invocations))
	for ph := range r.Invocations {
		phases = append(phases, ph)
	}
	sort.Slice(phases, func(i, j int) bool { return phaseOrder(phases[i]) < phaseOrder(phases[j]) })
	for _, ph := range phases {
		fmt.Fprintf(w, "  %-12s %d invocations\n", ph, r.Invocations[ph])
	}
	fmt.Fprintf(w, "Modified declarations: %d\n", r.Modified)
	fmt.Fprintf(w, "Synthetic beans: %d, observers: %d, custom contexts: %d\n", r.Beans, r.Observers, r.Contexts)
	if len(r.Diagnostics) > 0 {
		fmt.Fprintf(w, "Diagnostics: %d", len(r.Diagnostics))
		if r.Dropped > 0 {
			fmt.Fprintf(w, " (%d dropped)", r.Dropped)
		}
		fmt.Fprintln(w)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", r.Error)
	}
}

func phaseOrder(name string) int {
	ph, err := annex.ParsePhase(name)
	if err != nil {
		return len(annex.Phases) + 1
	}
	return int(ph)
}

func formatShowText(w io.Writer, anns []CLIAnnotation) {
	for _, a := range anns {
		fmt.Fprintln(w, formatAnnotation(a))
	}
}

// outputResultText dispatches to the text formatter for the result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLIClass:
		formatClassesText(w, v)
	case []CLIMethod:
		formatMethodsText(w, v)
	case []CLIField:
		formatFieldsText(w, v)
	case []CLIAnnotation:
		formatShowText(w, v)
	case CLIRun:
		formatRunText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// outputResult writes a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	return writeResult(os.Stdout, flagFormat, result)
}

func writeResult(w io.Writer, format string, result CLIResult) error {
	switch format {
	case "text":
		return outputResultText(w, result)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. Structured formats carry the error in the
// result envelope on stdout; text mode writes it to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "%s %s\n", errorColor.Sprint("Error:"), err)
		return err
	}
	_ = writeResult(os.Stdout, flagFormat, CLIResult{Command: command, Error: err.Error()})
	return err
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text", "yaml"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be one of %s", format, strings.Join(validFormats, ", "))
}
