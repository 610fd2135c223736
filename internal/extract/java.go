// Package extract turns Java sources into program index rows using
// tree-sitter. It writes through store.DataStore so the same code feeds a
// direct SQLite store or an in-memory Batch.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/annex/internal/store"
)

// Source is one file handed to the extractor.
type Source struct {
	Path    string
	FileID  int64
	Content []byte

	// Archived marks application sources. Library sources are indexed for
	// hierarchy resolution only.
	Archived bool
}

// Stats counts the rows written for one file.
type Stats struct {
	Classes     int
	Methods     int
	Fields      int
	Annotations int
}

// constructorName matches the root package's constructor naming.
const constructorName = "<init>"

var classKinds = map[string]string{
	"class_declaration":           store.ClassKindClass,
	"interface_declaration":       store.ClassKindInterface,
	"enum_declaration":            store.ClassKindEnum,
	"annotation_type_declaration": store.ClassKindAnnotation,
	"record_declaration":          store.ClassKindRecord,
}

// javaLang lists java.lang types that sources use without an import.
var javaLang = map[string]bool{
	"Object": true, "String": true, "CharSequence": true, "StringBuilder": true,
	"Integer": true, "Long": true, "Short": true, "Byte": true, "Character": true,
	"Boolean": true, "Double": true, "Float": true, "Number": true, "Void": true,
	"Class": true, "Enum": true, "Record": true, "Iterable": true, "Comparable": true,
	"Runnable": true, "Thread": true, "AutoCloseable": true, "Cloneable": true,
	"Throwable": true, "Exception": true, "RuntimeException": true, "Error": true,
	"IllegalArgumentException": true, "IllegalStateException": true,
	"UnsupportedOperationException": true, "NullPointerException": true,
	"InterruptedException": true, "Math": true, "System": true,
	"Override": true, "Deprecated": true, "FunctionalInterface": true,
	"SuppressWarnings": true, "SafeVarargs": true,
}

// Java parses one Java compilation unit and writes its declarations to ds.
// Rows are written owner before member so a Batch commits without forward
// references.
func Java(ctx context.Context, ds store.DataStore, src Source) (Stats, error) {
	lang, _ := ParserForLanguage(LangJava)
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src.Content)
	if err != nil {
		return Stats{}, fmt.Errorf("extract: parse %s: %w", src.Path, err)
	}
	defer tree.Close()

	x := &javaExtractor{
		ds:      ds,
		src:     src,
		imports: make(map[string]string),
		local:   make(map[string]string),
	}
	root := tree.RootNode()
	if err := x.header(root); err != nil {
		return x.stats, err
	}
	x.collectLocal(root, x.pkg)
	for i := 0; i < int(root.NamedChildCount()); i++ {
		if err := x.typeDecl(root.NamedChild(i), nil, "", nil); err != nil {
			return x.stats, err
		}
	}
	return x.stats, nil
}

type javaExtractor struct {
	ds    store.DataStore
	src   Source
	stats Stats

	pkg     string
	imports map[string]string // simple name -> qualified name
	local   map[string]string // types declared in this file
}

func (x *javaExtractor) text(n *sitter.Node) string {
	return n.Content(x.src.Content)
}

func (x *javaExtractor) fileID() *int64 {
	if x.src.FileID == 0 {
		return nil
	}
	id := x.src.FileID
	return &id
}

func line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// header reads the package and import declarations. Only package-info.java
// produces a package declaration row, since every file of a package repeats
// the package clause.
func (x *javaExtractor) header(root *sitter.Node) error {
	var pkgNode *sitter.Node
	var anns []*sitter.Node
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		switch n.Type() {
		case "package_declaration":
			pkgNode = n
			for j := 0; j < int(n.NamedChildCount()); j++ {
				c := n.NamedChild(j)
				switch c.Type() {
				case "identifier", "scoped_identifier":
					x.pkg = stripSpace(x.text(c))
				case "annotation", "marker_annotation":
					anns = append(anns, c)
				}
			}
		case "import_declaration":
			static, wildcard := false, false
			var name string
			for j := 0; j < int(n.ChildCount()); j++ {
				c := n.Child(j)
				switch c.Type() {
				case "static":
					static = true
				case "asterisk":
					wildcard = true
				case "identifier", "scoped_identifier":
					name = stripSpace(x.text(c))
				}
			}
			if static || wildcard || name == "" {
				continue
			}
			x.imports[simpleName(name)] = name
		}
	}
	if pkgNode == nil || x.pkg == "" || filepath.Base(x.src.Path) != "package-info.java" {
		return nil
	}
	id, err := x.ds.InsertDeclaration(&store.Declaration{
		FileID:     x.fileID(),
		Kind:       store.KindPackage,
		Name:       x.pkg,
		SimpleName: x.pkg,
		Package:    x.pkg,
		Archived:   x.src.Archived,
		Line:       line(pkgNode),
	})
	if err != nil {
		return fmt.Errorf("extract: package %s: %w", x.pkg, err)
	}
	return x.annotate(id, anns, nil)
}

// collectLocal records every type declared in the file, nested ones
// included, so references to them qualify without an import.
func (x *javaExtractor) collectLocal(n *sitter.Node, prefix string) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if _, ok := classKinds[c.Type()]; !ok {
			if c.Type() == "enum_body_declarations" {
				x.collectLocal(c, prefix)
			}
			continue
		}
		nameNode := c.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		simple := x.text(nameNode)
		qualified := joinName(prefix, simple)
		if _, seen := x.local[simple]; !seen {
			x.local[simple] = qualified
		}
		if body := c.ChildByFieldName("body"); body != nil {
			x.collectLocal(body, qualified)
		}
	}
}

func joinName(prefix, simple string) string {
	if prefix == "" {
		return simple
	}
	return prefix + "." + simple
}

func simpleName(qualified string) string {
	if i := strings.LastIndexByte(qualified, '.'); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}

// qualify resolves a source type name against type parameters, types of
// this file, single-type imports, java.lang and finally the current package.
func (x *javaExtractor) qualify(name string, tparams map[string]bool) string {
	first, rest, nested := strings.Cut(name, ".")
	if !nested && tparams[first] {
		return name
	}
	resolved := ""
	switch {
	case x.local[first] != "":
		resolved = x.local[first]
	case x.imports[first] != "":
		resolved = x.imports[first]
	case first != "" && first[0] >= 'a' && first[0] <= 'z':
		return name
	case javaLang[first]:
		resolved = "java.lang." + first
	default:
		resolved = joinName(x.pkg, first)
	}
	if nested {
		return resolved + "." + rest
	}
	return resolved
}

// erase drops type arguments and array suffixes from a canonical type.
func erase(t string) string {
	if i := strings.IndexByte(t, '<'); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSuffix(t, "[]")
}

// typeString renders a type node in canonical form: qualified names, type
// arguments joined by "," and "[]" per array dimension.
func (x *javaExtractor) typeString(n *sitter.Node, tparams map[string]bool) string {
	switch n.Type() {
	case "void_type", "integral_type", "floating_point_type", "boolean_type":
		return x.text(n)
	case "type_identifier", "identifier", "scoped_type_identifier":
		return x.qualify(stripSpace(x.text(n)), tparams)
	case "generic_type":
		var base string
		var args []string
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			switch c.Type() {
			case "type_arguments":
				for j := 0; j < int(c.NamedChildCount()); j++ {
					args = append(args, x.typeString(c.NamedChild(j), tparams))
				}
			default:
				base = x.typeString(c, tparams)
			}
		}
		return base + "<" + strings.Join(args, ",") + ">"
	case "array_type":
		elem := n.ChildByFieldName("element")
		dims := n.ChildByFieldName("dimensions")
		if elem == nil {
			return stripSpace(x.text(n))
		}
		count := 1
		if dims != nil {
			count = strings.Count(x.text(dims), "[")
		}
		return x.typeString(elem, tparams) + strings.Repeat("[]", count)
	case "wildcard":
		lower := false
		var bound *sitter.Node
		for i := 0; i < int(n.ChildCount()); i++ {
			c := n.Child(i)
			switch {
			case c.Type() == "super":
				lower = true
			case c.IsNamed() && c.Type() != "annotation" && c.Type() != "marker_annotation":
				bound = c
			}
		}
		if bound == nil {
			return "?"
		}
		if lower {
			return "? super " + x.typeString(bound, tparams)
		}
		return "? extends " + x.typeString(bound, tparams)
	case "annotated_type":
		if c := n.NamedChild(int(n.NamedChildCount()) - 1); c != nil {
			return x.typeString(c, tparams)
		}
	}
	return stripSpace(x.text(n))
}

// typeParams extends outer with the names declared by a type_parameters node.
func (x *javaExtractor) typeParams(outer map[string]bool, n *sitter.Node) map[string]bool {
	if n == nil {
		return outer
	}
	out := make(map[string]bool, len(outer)+int(n.NamedChildCount()))
	for k := range outer {
		out[k] = true
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		tp := n.NamedChild(i)
		for j := 0; j < int(tp.NamedChildCount()); j++ {
			c := tp.NamedChild(j)
			if c.Type() == "type_identifier" || c.Type() == "identifier" {
				out[x.text(c)] = true
				break
			}
		}
	}
	return out
}

// modifiers splits a declaration's modifiers node into keywords and
// annotation nodes.
func (x *javaExtractor) modifiers(n *sitter.Node) ([]string, []*sitter.Node) {
	var mods []string
	var anns []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		m := n.NamedChild(i)
		if m.Type() != "modifiers" {
			continue
		}
		for j := 0; j < int(m.ChildCount()); j++ {
			c := m.Child(j)
			switch c.Type() {
			case "annotation", "marker_annotation":
				anns = append(anns, c)
			default:
				mods = append(mods, x.text(c))
			}
		}
		break
	}
	return mods, anns
}

func (x *javaExtractor) typeDecl(n *sitter.Node, owner *int64, enclosing string, outer map[string]bool) error {
	kind, ok := classKinds[n.Type()]
	if !ok {
		return nil
	}
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	simple := x.text(nameNode)
	qualified := joinName(x.pkg, simple)
	if enclosing != "" {
		qualified = enclosing + "." + simple
	}
	tparams := x.typeParams(outer, n.ChildByFieldName("type_parameters"))
	mods, anns := x.modifiers(n)

	id, err := x.ds.InsertDeclaration(&store.Declaration{
		FileID:     x.fileID(),
		Kind:       store.KindClass,
		Name:       qualified,
		SimpleName: simple,
		Package:    x.pkg,
		OwnerID:    owner,
		ClassKind:  kind,
		Modifiers:  mods,
		Archived:   x.src.Archived,
		Line:       line(n),
	})
	if err != nil {
		return fmt.Errorf("extract: class %s: %w", qualified, err)
	}
	x.stats.Classes++
	if err := x.annotate(id, anns, tparams); err != nil {
		return err
	}

	if sc := n.ChildByFieldName("superclass"); sc != nil && sc.NamedChildCount() > 0 {
		if err := x.supertype(id, sc.NamedChild(0), store.RelationExtends, 0, tparams); err != nil {
			return err
		}
	}
	interfaces := n.ChildByFieldName("interfaces")
	if interfaces == nil {
		interfaces = childOfType(n, "extends_interfaces")
	}
	if interfaces != nil {
		if list := childOfType(interfaces, "type_list"); list != nil {
			for i := 0; i < int(list.NamedChildCount()); i++ {
				if err := x.supertype(id, list.NamedChild(i), store.RelationImplements, i, tparams); err != nil {
					return err
				}
			}
		}
	}

	if kind == store.ClassKindRecord {
		if err := x.recordComponents(n.ChildByFieldName("parameters"), id, qualified, tparams); err != nil {
			return err
		}
	}
	body := n.ChildByFieldName("body")
	if body == nil {
		return nil
	}
	return x.members(body, id, qualified, tparams)
}

func childOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == typ {
			return c
		}
	}
	return nil
}

func (x *javaExtractor) supertype(classID int64, n *sitter.Node, relation string, ordinal int, tparams map[string]bool) error {
	name := erase(x.typeString(n, tparams))
	_, err := x.ds.InsertSupertype(&store.Supertype{
		ClassID:  classID,
		Name:     name,
		Relation: relation,
		Ordinal:  ordinal,
	})
	if err != nil {
		return fmt.Errorf("extract: supertype %s: %w", name, err)
	}
	return nil
}

func (x *javaExtractor) members(body *sitter.Node, ownerID int64, owner string, tparams map[string]bool) error {
	for i := 0; i < int(body.NamedChildCount()); i++ {
		c := body.NamedChild(i)
		var err error
		switch c.Type() {
		case "field_declaration", "constant_declaration":
			err = x.fields(c, ownerID, owner, tparams)
		case "method_declaration", "annotation_type_element_declaration":
			err = x.method(c, ownerID, owner, tparams)
		case "constructor_declaration", "compact_constructor_declaration":
			err = x.constructor(c, ownerID, owner, tparams)
		case "enum_constant":
			err = x.enumConstant(c, ownerID, owner)
		case "enum_body_declarations":
			err = x.members(c, ownerID, owner, tparams)
		default:
			err = x.typeDecl(c, &ownerID, owner, tparams)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (x *javaExtractor) insertMember(d *store.Declaration, anns []*sitter.Node, tparams map[string]bool) error {
	d.FileID = x.fileID()
	d.Package = x.pkg
	d.Archived = x.src.Archived
	id, err := x.ds.InsertDeclaration(d)
	if err != nil {
		return fmt.Errorf("extract: %s %s: %w", d.Kind, d.Name, err)
	}
	if d.Kind == store.KindField {
		x.stats.Fields++
	} else {
		x.stats.Methods++
	}
	return x.annotate(id, anns, tparams)
}

func (x *javaExtractor) fields(n *sitter.Node, ownerID int64, owner string, tparams map[string]bool) error {
	typeNode := n.ChildByFieldName("type")
	if typeNode == nil {
		return nil
	}
	base := x.typeString(typeNode, tparams)
	mods, anns := x.modifiers(n)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		decl := n.NamedChild(i)
		if decl.Type() != "variable_declarator" {
			continue
		}
		nameNode := decl.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		typ := base
		if dims := decl.ChildByFieldName("dimensions"); dims != nil {
			typ += strings.Repeat("[]", strings.Count(x.text(dims), "["))
		}
		name := x.text(nameNode)
		err := x.insertMember(&store.Declaration{
			Kind:       store.KindField,
			Name:       owner + "#" + name,
			SimpleName: name,
			OwnerID:    &ownerID,
			TypeExpr:   typ,
			Modifiers:  mods,
			Line:       line(decl),
		}, anns, tparams)
		if err != nil {
			return err
		}
	}
	return nil
}

func (x *javaExtractor) enumConstant(n *sitter.Node, ownerID int64, owner string) error {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := x.text(nameNode)
	_, anns := x.modifiers(n)
	return x.insertMember(&store.Declaration{
		Kind:       store.KindField,
		Name:       owner + "#" + name,
		SimpleName: name,
		OwnerID:    &ownerID,
		TypeExpr:   owner,
		Modifiers:  []string{"public", "static", "final"},
		Line:       line(n),
	}, anns, nil)
}

func (x *javaExtractor) recordComponents(params *sitter.Node, ownerID int64, owner string, tparams map[string]bool) error {
	if params == nil {
		return nil
	}
	for _, p := range x.parameters(params, tparams) {
		if p.name == "" {
			continue
		}
		err := x.insertMember(&store.Declaration{
			Kind:       store.KindField,
			Name:       owner + "#" + p.name,
			SimpleName: p.name,
			OwnerID:    &ownerID,
			TypeExpr:   p.typ,
			Modifiers:  []string{"private", "final"},
			Line:       p.line,
		}, p.anns, tparams)
		if err != nil {
			return err
		}
	}
	return nil
}

type param struct {
	name string
	typ  string
	line int
	anns []*sitter.Node
}

// parameters reads formal_parameters. Varargs render as arrays.
func (x *javaExtractor) parameters(n *sitter.Node, tparams map[string]bool) []param {
	var out []param
	if n == nil {
		return out
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		_, anns := x.modifiers(c)
		switch c.Type() {
		case "formal_parameter":
			typeNode := c.ChildByFieldName("type")
			if typeNode == nil {
				continue
			}
			p := param{typ: x.typeString(typeNode, tparams), line: line(c), anns: anns}
			if nameNode := c.ChildByFieldName("name"); nameNode != nil {
				p.name = x.text(nameNode)
			}
			if dims := c.ChildByFieldName("dimensions"); dims != nil {
				p.typ += strings.Repeat("[]", strings.Count(x.text(dims), "["))
			}
			out = append(out, p)
		case "spread_parameter":
			p := param{line: line(c), anns: anns}
			for j := 0; j < int(c.NamedChildCount()); j++ {
				sc := c.NamedChild(j)
				switch sc.Type() {
				case "modifiers":
				case "variable_declarator":
					if nameNode := sc.ChildByFieldName("name"); nameNode != nil {
						p.name = x.text(nameNode)
					}
				default:
					if p.typ == "" {
						p.typ = x.typeString(sc, tparams) + "[]"
					}
				}
			}
			out = append(out, p)
		}
	}
	return out
}

func paramTypes(ps []param) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.typ
	}
	return out
}

func methodName(owner, name string, params []string) string {
	return owner + "#" + name + "(" + strings.Join(params, ",") + ")"
}

func (x *javaExtractor) method(n *sitter.Node, ownerID int64, owner string, outer map[string]bool) error {
	nameNode := n.ChildByFieldName("name")
	typeNode := n.ChildByFieldName("type")
	if nameNode == nil || typeNode == nil {
		return nil
	}
	tparams := x.typeParams(outer, n.ChildByFieldName("type_parameters"))
	name := x.text(nameNode)
	params := paramTypes(x.parameters(n.ChildByFieldName("parameters"), tparams))
	ret := x.typeString(typeNode, tparams)
	if dims := n.ChildByFieldName("dimensions"); dims != nil {
		ret += strings.Repeat("[]", strings.Count(x.text(dims), "["))
	}
	mods, anns := x.modifiers(n)
	return x.insertMember(&store.Declaration{
		Kind:       store.KindMethod,
		Name:       methodName(owner, name, params),
		SimpleName: name,
		OwnerID:    &ownerID,
		TypeExpr:   ret,
		Params:     params,
		Modifiers:  mods,
		Line:       line(n),
	}, anns, tparams)
}

func (x *javaExtractor) constructor(n *sitter.Node, ownerID int64, owner string, outer map[string]bool) error {
	tparams := x.typeParams(outer, n.ChildByFieldName("type_parameters"))
	params := paramTypes(x.parameters(n.ChildByFieldName("parameters"), tparams))
	mods, anns := x.modifiers(n)
	return x.insertMember(&store.Declaration{
		Kind:       store.KindMethod,
		Name:       methodName(owner, constructorName, params),
		SimpleName: constructorName,
		OwnerID:    &ownerID,
		TypeExpr:   "void",
		Params:     params,
		Modifiers:  mods,
		Line:       line(n),
	}, anns, tparams)
}

func (x *javaExtractor) annotate(targetID int64, anns []*sitter.Node, tparams map[string]bool) error {
	for i, a := range anns {
		nameNode := a.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		ann := &store.Annotation{
			TargetID: targetID,
			Name:     x.qualify(stripSpace(x.text(nameNode)), tparams),
			Ordinal:  i,
		}
		if args := a.ChildByFieldName("arguments"); args != nil {
			ann.Attributes = x.attributes(args)
		}
		if _, err := x.ds.InsertAnnotation(ann); err != nil {
			return fmt.Errorf("extract: annotation %s: %w", ann.Name, err)
		}
		x.stats.Annotations++
	}
	return nil
}

// attributes reads an annotation_argument_list. A lone element value is the
// "value" member.
func (x *javaExtractor) attributes(args *sitter.Node) []store.Attribute {
	var out []store.Attribute
	for i := 0; i < int(args.NamedChildCount()); i++ {
		c := args.NamedChild(i)
		if c.Type() == "element_value_pair" {
			key := c.ChildByFieldName("key")
			value := c.ChildByFieldName("value")
			if key == nil || value == nil {
				continue
			}
			out = append(out, store.Attribute{Name: x.text(key), Value: x.elementValue(value)})
			continue
		}
		out = append(out, store.Attribute{Name: "value", Value: x.elementValue(c)})
	}
	return out
}

// elementValue converts literal annotation values to string, int64,
// float64, bool or []any. Anything else keeps its source text.
func (x *javaExtractor) elementValue(n *sitter.Node) any {
	raw := x.text(n)
	switch n.Type() {
	case "string_literal", "character_literal":
		if s, err := strconv.Unquote(raw); err == nil {
			return s
		}
		return strings.Trim(raw, "\"'")
	case "true":
		return true
	case "false":
		return false
	case "decimal_integer_literal", "hex_integer_literal", "octal_integer_literal", "binary_integer_literal":
		if v, ok := parseInt(raw); ok {
			return v
		}
	case "decimal_floating_point_literal":
		if v, ok := parseFloat(raw); ok {
			return v
		}
	case "unary_expression":
		s := stripSpace(raw)
		if v, ok := parseInt(s); ok {
			return v
		}
		if v, ok := parseFloat(s); ok {
			return v
		}
	case "element_value_array_initializer":
		out := []any{}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			out = append(out, x.elementValue(n.NamedChild(i)))
		}
		return out
	case "parenthesized_expression":
		if n.NamedChildCount() == 1 {
			return x.elementValue(n.NamedChild(0))
		}
	}
	return stripSpace(raw)
}

func parseInt(s string) (int64, bool) {
	s = strings.TrimRight(strings.ReplaceAll(s, "_", ""), "lL")
	v, err := strconv.ParseInt(s, 0, 64)
	return v, err == nil
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimRight(strings.ReplaceAll(s, "_", ""), "fFdD")
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}
