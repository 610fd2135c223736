package annex

// configurable is the write surface shared by config views. Every write is
// enqueued into the run's overlay, so the view's own reads observe it
// immediately.
type configurable struct {
	b *Build
	d Declaration
}

// AddAnnotation adds an annotation of type name with the given attributes.
func (c configurable) AddAnnotation(name string, attrs ...Attribute) error {
	return c.b.overlay.Add(c.d, NewAnnotation(name, attrs...))
}

// AddAnnotationValue adds an existing annotation instance.
func (c configurable) AddAnnotationValue(a Annotation) error {
	return c.b.overlay.Add(c.d, NewAnnotation(a.Name, a.Attributes...))
}

// RemoveAnnotation removes every currently present annotation matching pred.
func (c configurable) RemoveAnnotation(pred AnnotationPredicate) error {
	return c.b.overlay.RemoveMatching(c.d, pred)
}

// RemoveAllAnnotations removes every currently present annotation.
func (c configurable) RemoveAllAnnotations() error {
	return c.b.overlay.RemoveAll(c.d)
}

// ClassConfig is a ClassInfo that can stage annotation edits. Config views
// only exist during Enhancement.
type ClassConfig struct {
	*ClassInfo
	configurable
}

func newClassConfig(b *Build, c *Class) *ClassConfig {
	return &ClassConfig{ClassInfo: newClassInfo(b, c), configurable: configurable{b: b, d: c}}
}

// Info returns the read-only view of the same class.
func (cc *ClassConfig) Info() *ClassInfo { return cc.ClassInfo }

// ConstructorConfigs returns config views of the declared constructors.
func (cc *ClassConfig) ConstructorConfigs() []*MethodConfig {
	return cc.methodConfigs(true)
}

// MethodConfigs returns config views of the declared methods.
func (cc *ClassConfig) MethodConfigs() []*MethodConfig {
	return cc.methodConfigs(false)
}

func (cc *ClassConfig) methodConfigs(constructors bool) []*MethodConfig {
	ms, _ := cc.b.index.Members(cc.c)
	out := []*MethodConfig{}
	for _, m := range ms {
		if m.Constructor == constructors {
			out = append(out, newMethodConfig(cc.b, m))
		}
	}
	return out
}

// FieldConfigs returns config views of the declared fields.
func (cc *ClassConfig) FieldConfigs() []*FieldConfig {
	_, fs := cc.b.index.Members(cc.c)
	out := make([]*FieldConfig, len(fs))
	for i, f := range fs {
		out[i] = newFieldConfig(cc.b, f)
	}
	return out
}

// MethodConfig is a MethodInfo that can stage annotation edits.
type MethodConfig struct {
	*MethodInfo
	configurable
}

func newMethodConfig(b *Build, m *Method) *MethodConfig {
	return &MethodConfig{MethodInfo: newMethodInfo(b, m), configurable: configurable{b: b, d: m}}
}

func (mc *MethodConfig) Info() *MethodInfo { return mc.MethodInfo }

// FieldConfig is a FieldInfo that can stage annotation edits.
type FieldConfig struct {
	*FieldInfo
	configurable
}

func newFieldConfig(b *Build, f *Field) *FieldConfig {
	return &FieldConfig{FieldInfo: newFieldInfo(b, f), configurable: configurable{b: b, d: f}}
}

func (fc *FieldConfig) Info() *FieldInfo { return fc.FieldInfo }
