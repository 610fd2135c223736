package store

import "time"

// Declaration kinds.
const (
	KindPackage = "package"
	KindClass   = "class"
	KindMethod  = "method"
	KindField   = "field"
)

// Class kinds.
const (
	ClassKindClass      = "class"
	ClassKindInterface  = "interface"
	ClassKindEnum       = "enum"
	ClassKindAnnotation = "annotation"
	ClassKindRecord     = "record"
)

// Supertype relations.
const (
	RelationExtends    = "extends"
	RelationImplements = "implements"
)

// Index domain types

type File struct {
	ID          int64
	Path        string
	Hash        string
	Archived    bool
	LastIndexed time.Time
}

// Declaration is one row of the declarations table. Name is the qualified
// name: "pkg.Outer.Inner" for classes, "pkg.Type#name(p1,p2)" for methods
// and constructors ("<init>"), "pkg.Type#name" for fields.
type Declaration struct {
	ID         int64
	FileID     *int64
	Kind       string
	Name       string
	SimpleName string
	Package    string
	OwnerID    *int64
	ClassKind  string
	TypeExpr   string
	Params     []string
	Modifiers  []string
	Archived   bool
	Line       int
}

type Supertype struct {
	ID       int64
	ClassID  int64
	Name     string
	Relation string
	Ordinal  int
}

// Attribute is a single named annotation member value. Value holds string,
// int64, float64, bool or []any of those.
type Attribute struct {
	Name  string `json:"name" msgpack:"name"`
	Value any    `json:"value" msgpack:"value"`
}

type Annotation struct {
	ID         int64
	TargetID   int64
	Name       string
	Attributes []Attribute
	Ordinal    int
}

// Run domain types

type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Failed     bool
}

type EffectiveAnnotation struct {
	RunID      string
	TargetName string
	TargetKind string
	Name       string
	Attributes []Attribute
	Ordinal    int
}

type DiagnosticRecord struct {
	RunID    string
	Severity string
	Phase    string
	Callback string
	Target   string
	Message  string
}
