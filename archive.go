package annex

// Archive is the read-only entry point to the declarations of a build.
type Archive struct {
	b      *Build
	config bool
}

func (a *Archive) Classes() *ClassQuery {
	return &ClassQuery{b: a.b, config: a.config}
}

func (a *Archive) Methods() *MethodQuery {
	return &MethodQuery{b: a.b, config: a.config}
}

func (a *Archive) Constructors() *MethodQuery {
	return &MethodQuery{b: a.b, constructors: true, config: a.config}
}

func (a *Archive) Fields() *FieldQuery {
	return &FieldQuery{b: a.b, config: a.config}
}

func (a *Archive) Types() *Types { return a.b.types }

// ArchiveConfig is the Enhancement-only archive whose queries can
// materialize config views through Configure.
type ArchiveConfig struct {
	*Archive
}
