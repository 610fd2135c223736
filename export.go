package annex

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/jward/annex/internal/store"
)

// exportSchema is bumped whenever the Export layout changes.
const exportSchema uint16 = 1

// ExportFormat selects the encoding of an Export.
type ExportFormat string

const (
	FormatMsgpack ExportFormat = "msgpack"
	FormatJSON    ExportFormat = "json"
)

// ExportFormatFor picks the format from a file extension: ".json" is JSON,
// anything else msgpack.
func ExportFormatFor(path string) ExportFormat {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatMsgpack
}

// ExportedDeclaration is one declaration of the frozen view.
type ExportedDeclaration struct {
	Name        string       `json:"name" msgpack:"name"`
	Kind        string       `json:"kind" msgpack:"kind"`
	Annotations []Annotation `json:"annotations" msgpack:"annotations"`
}

// ExportedDiagnostic is a diagnostic with its enums rendered as names.
type ExportedDiagnostic struct {
	Severity string `json:"severity" msgpack:"severity"`
	Phase    string `json:"phase,omitempty" msgpack:"phase,omitempty"`
	Callback string `json:"callback,omitempty" msgpack:"callback,omitempty"`
	Target   string `json:"target,omitempty" msgpack:"target,omitempty"`
	Message  string `json:"message" msgpack:"message"`
}

// Export is the self-contained outcome of a run: every annotated
// declaration with its effective annotations, the diagnostics and the
// deployment registrations.
type Export struct {
	Schema       uint16                `json:"schema" msgpack:"schema"`
	BuildID      string                `json:"build_id" msgpack:"build_id"`
	Failed       bool                  `json:"failed" msgpack:"failed"`
	StartedAt    time.Time             `json:"started_at" msgpack:"started_at"`
	FinishedAt   time.Time             `json:"finished_at" msgpack:"finished_at"`
	Declarations []ExportedDeclaration `json:"declarations" msgpack:"declarations"`
	Diagnostics  []ExportedDiagnostic  `json:"diagnostics" msgpack:"diagnostics"`
	Dropped      int                   `json:"dropped_diagnostics,omitempty" msgpack:"dropped_diagnostics,omitempty"`
	Contexts     []CustomContext       `json:"contexts" msgpack:"contexts"`
	Beans        []SyntheticBean       `json:"beans" msgpack:"beans"`
	Observers    []SyntheticObserver   `json:"observers" msgpack:"observers"`
}

// Declaration returns the exported declaration with the given name, or nil.
func (x *Export) Declaration(name string) *ExportedDeclaration {
	for i := range x.Declarations {
		if x.Declarations[i].Name == name {
			return &x.Declarations[i]
		}
	}
	return nil
}

// Export captures the result. Declarations without effective annotations
// are omitted; the rest appear in index order, packages first.
func (r *Result) Export() *Export {
	x := &Export{
		Schema:       exportSchema,
		BuildID:      r.BuildID,
		Failed:       r.Failed(),
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		Declarations: []ExportedDeclaration{},
		Diagnostics:  []ExportedDiagnostic{},
		Dropped:      r.Diagnostics.Dropped(),
		Contexts:     r.Deployment.Contexts(),
		Beans:        r.Deployment.Beans(),
		Observers:    r.Deployment.Observers(),
	}
	if r.index != nil {
		for _, kind := range []Kind{KindPackage, KindClass, KindMethod, KindField} {
			for _, d := range r.index.All(kind) {
				anns := r.Overlay.Effective(d)
				if len(anns) == 0 {
					continue
				}
				x.Declarations = append(x.Declarations, ExportedDeclaration{
					Name:        d.Name(),
					Kind:        kind.String(),
					Annotations: append([]Annotation{}, anns...),
				})
			}
		}
	}
	for _, d := range r.Diagnostics.Items() {
		ed := ExportedDiagnostic{
			Severity: d.Severity.String(),
			Callback: d.Callback,
			Target:   d.Target,
			Message:  d.Message,
		}
		if d.Phase != 0 {
			ed.Phase = d.Phase.String()
		}
		x.Diagnostics = append(x.Diagnostics, ed)
	}
	return x
}

// Encode writes x to w in format.
func (x *Export) Encode(w io.Writer, format ExportFormat) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(x)
	case FormatMsgpack, "":
		return msgpack.NewEncoder(w).Encode(x)
	}
	return fmt.Errorf("annex: unknown export format %q", format)
}

// DecodeExport reads an msgpack Export. Attribute values come back as the
// same canonical types they were written with.
func DecodeExport(r io.Reader) (*Export, error) {
	dec := msgpack.NewDecoder(r)
	dec.UseLooseInterfaceDecoding(true)
	x := &Export{}
	if err := dec.Decode(x); err != nil {
		return nil, fmt.Errorf("annex: decode export: %w", err)
	}
	if x.Schema != exportSchema {
		return nil, fmt.Errorf("annex: decode export: schema %d, want %d", x.Schema, exportSchema)
	}
	for i := range x.Declarations {
		for j := range x.Declarations[i].Annotations {
			normalizeAttributes(x.Declarations[i].Annotations[j].Attributes)
		}
	}
	return x, nil
}

func normalizeAttributes(attrs []Attribute) {
	for i := range attrs {
		attrs[i].Value = store.NormalizeValue(attrs[i].Value)
	}
}

// WriteExportFile writes x to path, choosing the format from the extension.
// The file is replaced atomically.
func WriteExportFile(path string, x *Export) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("annex: export: %w", err)
	}
	f, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return fmt.Errorf("annex: export: %w", err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()
	if err = x.Encode(f, ExportFormatFor(path)); err != nil {
		return fmt.Errorf("annex: export: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("annex: export: %w", err)
	}
	if err = os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("annex: export: %w", err)
	}
	return nil
}

// ReadExportFile reads an msgpack export written by WriteExportFile.
func ReadExportFile(path string) (*Export, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("annex: read export: %w", err)
	}
	defer f.Close()
	return DecodeExport(f)
}
