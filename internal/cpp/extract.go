package cpp

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ousttrue/pycpptool/internal/decl"
	"github.com/ousttrue/pycpptool/internal/source"
)

type extractor struct {
	src     []byte
	file    source.FileID
	ann     []annotation
	consts  map[string]int64
	pack    packStack
	skipped int
	cursors []decl.Cursor
}

func (e *extractor) extract(root *sitter.Node) []decl.Cursor {
	e.walkChildren(root)
	return e.cursors
}

func (e *extractor) walkChildren(n *sitter.Node) {
	for i := uint32(0); i < n.ChildCount(); i++ {
		e.walk(n.Child(int(i)))
	}
}

func (e *extractor) walk(n *sitter.Node) {
	switch n.Type() {
	case "comment":
	case "ERROR":
		e.skipped++
	case "preproc_include":
		if c, ok := e.includeCursor(n); ok {
			e.cursors = append(e.cursors, c)
		}
	case "preproc_def":
		if c, ok := e.macroCursor(n); ok {
			e.cursors = append(e.cursors, c)
		}
	case "preproc_function_def":
		// function-like macros carry nothing emittable
	case "preproc_call":
		e.applyPragma(n)
	case "template_declaration":
		e.skipped++
	case "struct_specifier", "class_specifier":
		if c, ok := e.aggregateCursor(n, decl.KindStruct); ok {
			e.cursors = append(e.cursors, c)
		}
	case "union_specifier":
		if c, ok := e.aggregateCursor(n, decl.KindUnion); ok {
			e.cursors = append(e.cursors, c)
		}
	case "enum_specifier":
		if c, ok := e.enumCursor(n); ok {
			e.cursors = append(e.cursors, c)
		}
	case "type_definition":
		e.cursors = append(e.cursors, e.typedefCursors(n)...)
	case "declaration":
		e.cursors = append(e.cursors, e.declarationCursors(n)...)
	case "function_definition":
		// bodied free functions are implementation, not interface
	default:
		// expression wrappers, linkage specs, preproc conditionals:
		// their children may hold declarations
		e.walkChildren(n)
	}
}

func nodeSpan(file source.FileID, n *sitter.Node) source.Span {
	return source.Span{File: file, Start: n.StartByte(), End: n.EndByte()}
}

// annotationsIn returns the prepass annotations recorded between start
// and end, in source order.
func (e *extractor) annotationsIn(start, end uint32) []string {
	var out []string
	for _, a := range e.ann {
		if a.off >= start && a.off < end {
			out = append(out, a.text)
		}
	}
	return out
}

// ---- aggregates ----

func (e *extractor) aggregateCursor(n *sitter.Node, kind decl.Kind) (decl.Cursor, bool) {
	name := ""
	if nn := n.ChildByFieldName("name"); nn != nil {
		name = nn.Content(e.src)
	}
	body := n.ChildByFieldName("body")

	annEnd := n.EndByte()
	if body != nil {
		annEnd = body.StartByte()
	}
	cur := decl.Cursor{
		Kind:        kind,
		Name:        name,
		File:        e.file,
		Span:        nodeSpan(e.file, n),
		Bits:        -1,
		Pack:        e.pack.current,
		Annotations: e.annotationsIn(n.StartByte(), annEnd),
		HasBody:     body != nil,
	}
	if body == nil {
		// forward declaration; anonymous forward refs carry nothing
		if name == "" {
			return decl.Cursor{}, false
		}
		return cur, true
	}

	for i := uint32(0); i < n.ChildCount(); i++ {
		ch := n.Child(int(i))
		if ch.Type() == "base_class_clause" {
			cur.Children = append(cur.Children, e.baseCursors(ch)...)
		}
	}
	e.fillAggregateBody(&cur, body)
	return cur, true
}

func (e *extractor) baseCursors(clause *sitter.Node) []decl.Cursor {
	var out []decl.Cursor
	for i := uint32(0); i < clause.ChildCount(); i++ {
		ch := clause.Child(int(i))
		switch ch.Type() {
		case "type_identifier", "qualified_identifier", "template_type":
			out = append(out, decl.Cursor{
				Kind: decl.KindBase,
				Name: collapseSpaces(ch.Content(e.src)),
				File: e.file,
				Span: nodeSpan(e.file, ch),
				Bits: -1,
			})
		}
	}
	return out
}

func (e *extractor) fillAggregateBody(cur *decl.Cursor, body *sitter.Node) {
	for i := uint32(0); i < body.ChildCount(); i++ {
		ch := body.Child(int(i))
		switch ch.Type() {
		case "field_declaration", "declaration":
			cur.Children = append(cur.Children, e.fieldCursors(ch)...)
		case "function_definition":
			if m, ok := e.callableCursor(ch, decl.KindMethod, true); ok {
				cur.Children = append(cur.Children, m)
			}
		case "struct_specifier", "class_specifier":
			if c, ok := e.aggregateCursor(ch, decl.KindStruct); ok {
				cur.Children = append(cur.Children, e.asMember(ch, c))
			}
		case "union_specifier":
			if c, ok := e.aggregateCursor(ch, decl.KindUnion); ok {
				cur.Children = append(cur.Children, e.asMember(ch, c))
			}
		case "enum_specifier":
			if c, ok := e.enumCursor(ch); ok {
				cur.Children = append(cur.Children, c)
			}
		case "access_specifier", "comment", ";":
		case "ERROR":
			e.skipped++
		case "preproc_if", "preproc_ifdef", "preproc_else", "preproc_elif":
			e.fillAggregateBody(cur, ch)
		}
	}
}

// ---- fields and methods ----

var declaratorTypes = map[string]struct{}{
	"field_identifier":         {},
	"identifier":               {},
	"type_identifier":          {}, // typedef names parse as type_identifier
	"pointer_declarator":       {},
	"array_declarator":         {},
	"function_declarator":      {},
	"parenthesized_declarator": {},
	"reference_declarator":     {},
	"init_declarator":          {},
}

// fieldDeclarators collects every top-level declarator of a
// field_declaration / declaration / type_definition, covering the
// comma form `FLOAT _11, _12;`.
func fieldDeclarators(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	typeNode := n.ChildByFieldName("type")
	for i := uint32(0); i < n.ChildCount(); i++ {
		ch := n.Child(int(i))
		if typeNode != nil && ch.StartByte() == typeNode.StartByte() && ch.EndByte() == typeNode.EndByte() {
			continue
		}
		if _, ok := declaratorTypes[ch.Type()]; ok {
			out = append(out, ch)
		}
	}
	return out
}

func (e *extractor) fieldCursors(fd *sitter.Node) []decl.Cursor {
	typeNode := fd.ChildByFieldName("type")
	if typeNode == nil {
		return nil
	}
	declarators := fieldDeclarators(fd)

	// nested aggregate (or enum) declared inline
	switch typeNode.Type() {
	case "struct_specifier", "class_specifier", "union_specifier", "enum_specifier":
		if typeNode.ChildByFieldName("body") != nil {
			return e.nestedAggregateFields(fd, typeNode, declarators)
		}
	}

	base := e.typeSpelling(typeNode)
	constQual := hasConstQualifier(e.src, fd, typeNode)
	widths := e.bitfieldWidths(fd)

	var out []decl.Cursor
	for _, d := range declarators {
		info := e.declaratorInfo(d)
		if info.fn != nil {
			if m, ok := e.methodFromInfo(fd, base, info, false); ok {
				out = append(out, m)
			}
			continue
		}
		if info.name == "" {
			continue
		}
		bits := -1
		if w, ok := widths[d.StartByte()]; ok {
			bits = w
		}
		out = append(out, decl.Cursor{
			Kind:     decl.KindField,
			Name:     info.name,
			Spelling: composeSpelling(base, constQual, info),
			File:     e.file,
			Span:     nodeSpan(e.file, d),
			Bits:     bits,
		})
	}
	if len(declarators) == 0 {
		// unnamed bitfield padding: `UINT : 8;`
		if bits, ok := widths[0]; ok {
			out = append(out, decl.Cursor{
				Kind:     decl.KindField,
				Name:     "",
				Spelling: base,
				File:     e.file,
				Span:     nodeSpan(e.file, fd),
				Bits:     bits,
			})
		}
	}
	return out
}

// asMember turns a bare anonymous aggregate in a body into an unnamed
// field so both grammar shapes produce the same cursor form. A named
// nested aggregate is a type declaration and passes through.
func (e *extractor) asMember(n *sitter.Node, c decl.Cursor) decl.Cursor {
	if c.Name != "" {
		return c
	}
	return decl.Cursor{
		Kind:     decl.KindField,
		File:     e.file,
		Span:     nodeSpan(e.file, n),
		Bits:     -1,
		Children: []decl.Cursor{c},
	}
}

// nestedAggregateFields handles `struct {...} x;`, the bare anonymous
// `union {...};` member and named nested type declarations.
func (e *extractor) nestedAggregateFields(fd, typeNode *sitter.Node, declarators []*sitter.Node) []decl.Cursor {
	var nested decl.Cursor
	var ok bool
	switch typeNode.Type() {
	case "union_specifier":
		nested, ok = e.aggregateCursor(typeNode, decl.KindUnion)
	case "enum_specifier":
		nested, ok = e.enumCursor(typeNode)
	default:
		nested, ok = e.aggregateCursor(typeNode, decl.KindStruct)
	}
	if !ok {
		return nil
	}

	if len(declarators) == 0 {
		if nested.Name != "" && nested.Kind != decl.KindEnum {
			// named nested type declaration, not a member
			return []decl.Cursor{nested}
		}
		if nested.Kind == decl.KindEnum {
			return []decl.Cursor{nested}
		}
		return []decl.Cursor{{
			Kind:     decl.KindField,
			File:     e.file,
			Span:     nodeSpan(e.file, fd),
			Bits:     -1,
			Children: []decl.Cursor{nested},
		}}
	}

	var out []decl.Cursor
	for _, d := range declarators {
		info := e.declaratorInfo(d)
		if info.name == "" {
			continue
		}
		f := decl.Cursor{
			Kind: decl.KindField,
			Name: info.name,
			File: e.file,
			Span: nodeSpan(e.file, d),
			Bits: -1,
		}
		if nested.Name != "" {
			f.Spelling = composeSpelling(nested.Name, false, info)
		} else {
			f.Spelling = composeSpelling("", false, info)
			f.Children = []decl.Cursor{nested}
		}
		out = append(out, f)
	}
	return out
}

// bitfieldWidths maps each declarator (by start byte) to the width of
// the bitfield_clause that follows it; key 0 collects a clause with no
// preceding declarator (unnamed padding bitfields).
func (e *extractor) bitfieldWidths(fd *sitter.Node) map[uint32]int {
	var widths map[uint32]int
	lastDecl := uint32(0)
	for i := uint32(0); i < fd.ChildCount(); i++ {
		ch := fd.Child(int(i))
		if _, ok := declaratorTypes[ch.Type()]; ok {
			lastDecl = ch.StartByte()
			continue
		}
		if ch.Type() != "bitfield_clause" {
			continue
		}
		for j := uint32(0); j < ch.ChildCount(); j++ {
			expr := ch.Child(int(j))
			if expr.Type() == ":" {
				continue
			}
			if v, ok := foldConst(expr.Content(e.src), e.consts); ok && v >= 0 {
				if widths == nil {
					widths = make(map[uint32]int)
				}
				widths[lastDecl] = int(v)
			}
		}
	}
	return widths
}

func (e *extractor) methodFromInfo(fd *sitter.Node, base string, info declInfo, hasBody bool) (decl.Cursor, bool) {
	if info.name == "" {
		return decl.Cursor{}, false
	}
	ret := base
	if info.outerPtrs > 0 {
		ret += " " + strings.Repeat("*", info.outerPtrs)
	}
	m := decl.Cursor{
		Kind:     decl.KindMethod,
		Name:     info.name,
		Spelling: ret,
		File:     e.file,
		Span:     nodeSpan(e.file, fd),
		Bits:     -1,
		Virtual:  hasVirtualSpecifier(fd),
		HasBody:  hasBody,
	}
	m.Children, m.Variadic = e.paramCursors(info.fn)
	return m, true
}

// callableCursor extracts a method or function from a declaration node
// that carries its own type and declarator fields.
func (e *extractor) callableCursor(n *sitter.Node, kind decl.Kind, hasBody bool) (decl.Cursor, bool) {
	typeNode := n.ChildByFieldName("type")
	d := n.ChildByFieldName("declarator")
	if typeNode == nil || d == nil {
		return decl.Cursor{}, false
	}
	info := e.declaratorInfo(d)
	if info.fn == nil || info.name == "" {
		return decl.Cursor{}, false
	}
	ret := e.typeSpelling(typeNode)
	if info.outerPtrs > 0 {
		ret += " " + strings.Repeat("*", info.outerPtrs)
	}
	c := decl.Cursor{
		Kind:     kind,
		Name:     info.name,
		Spelling: ret,
		File:     e.file,
		Span:     nodeSpan(e.file, n),
		Bits:     -1,
		Virtual:  hasVirtualSpecifier(n),
		HasBody:  hasBody,
	}
	c.Children, c.Variadic = e.paramCursors(info.fn)
	return c, true
}

// ---- declarators ----

type declInfo struct {
	name      string
	outerPtrs int // pointers binding the declared entity (or return type)
	innerPtrs int // pointers inside a parenthesized declarator (function pointers)
	arrays    []string
	fn        *sitter.Node // function_declarator when the entity is callable
	ref       bool
}

func (e *extractor) declaratorInfo(d *sitter.Node) declInfo {
	var info declInfo
	for d != nil {
		switch d.Type() {
		case "pointer_declarator":
			if info.fn == nil {
				info.outerPtrs++
			} else {
				info.innerPtrs++
			}
			d = d.ChildByFieldName("declarator")
		case "array_declarator":
			size := d.ChildByFieldName("size")
			if size != nil {
				info.arrays = append(info.arrays, e.extentText(size))
			} else {
				info.arrays = append(info.arrays, "")
			}
			d = d.ChildByFieldName("declarator")
		case "function_declarator":
			info.fn = d
			d = d.ChildByFieldName("declarator")
		case "parenthesized_declarator":
			d = innerDeclarator(d)
		case "reference_declarator":
			info.ref = true
			d = innerDeclarator(d)
		case "init_declarator":
			d = d.ChildByFieldName("declarator")
		case "field_identifier", "identifier", "type_identifier":
			info.name = d.Content(e.src)
			d = nil
		default:
			d = nil
		}
	}
	return info
}

// innerDeclarator returns the first child that is itself a declarator
// or identifier, skipping punctuation.
func innerDeclarator(d *sitter.Node) *sitter.Node {
	for i := uint32(0); i < d.ChildCount(); i++ {
		ch := d.Child(int(i))
		if _, ok := declaratorTypes[ch.Type()]; ok {
			return ch
		}
		switch ch.Type() {
		case "field_identifier", "identifier", "type_identifier":
			return ch
		}
	}
	return nil
}

// extentText folds an array extent to a decimal literal when possible
// so downstream spellings stay canonical.
func (e *extractor) extentText(size *sitter.Node) string {
	text := strings.TrimSpace(size.Content(e.src))
	if v, ok := foldConst(text, e.consts); ok && v >= 0 {
		return strconv.FormatInt(v, 10)
	}
	return text
}

func composeSpelling(base string, constQual bool, info declInfo) string {
	s := base
	if constQual && s != "" {
		s = "const " + s
	}
	ptrs := info.outerPtrs
	if info.ref {
		// references marshal like pointers at the ABI level
		ptrs++
	}
	if ptrs > 0 {
		if s != "" {
			s += " "
		}
		s += strings.Repeat("*", ptrs)
	}
	for i := len(info.arrays) - 1; i >= 0; i-- {
		s += "[" + info.arrays[i] + "]"
	}
	return s
}

func hasVirtualSpecifier(n *sitter.Node) bool {
	for i := uint32(0); i < n.ChildCount(); i++ {
		switch n.Child(int(i)).Type() {
		case "virtual", "virtual_function_specifier":
			return true
		}
	}
	return false
}

func hasConstQualifier(src []byte, n, typeNode *sitter.Node) bool {
	for i := uint32(0); i < n.ChildCount(); i++ {
		ch := n.Child(int(i))
		if typeNode != nil && ch.StartByte() >= typeNode.StartByte() {
			break
		}
		if ch.Type() == "type_qualifier" && strings.TrimSpace(ch.Content(src)) == "const" {
			return true
		}
	}
	return false
}

// ---- parameters ----

func (e *extractor) paramCursors(fn *sitter.Node) ([]decl.Cursor, bool) {
	params := fn.ChildByFieldName("parameters")
	if params == nil {
		return nil, false
	}
	var out []decl.Cursor
	variadic := false
	for i := uint32(0); i < params.ChildCount(); i++ {
		ch := params.Child(int(i))
		switch ch.Type() {
		case "parameter_declaration", "optional_parameter_declaration":
			if p, ok := e.paramCursor(ch); ok {
				out = append(out, p)
			}
		case "variadic_parameter", "...":
			variadic = true
		}
	}
	return out, variadic
}

func (e *extractor) paramCursor(n *sitter.Node) (decl.Cursor, bool) {
	typeNode := n.ChildByFieldName("type")
	if typeNode == nil {
		return decl.Cursor{}, false
	}
	base := e.typeSpelling(typeNode)
	constQual := hasConstQualifier(e.src, n, typeNode)

	var info declInfo
	if d := n.ChildByFieldName("declarator"); d != nil {
		info = e.declaratorInfo(d)
	}
	spelling := composeSpelling(base, constQual, info)
	if spelling == "void" && info.name == "" {
		// f(void) declares no parameters
		return decl.Cursor{}, false
	}
	return decl.Cursor{
		Kind:     decl.KindParam,
		Name:     info.name,
		Spelling: spelling,
		File:     e.file,
		Span:     nodeSpan(e.file, n),
		Bits:     -1,
	}, true
}

// ---- type spellings ----

func (e *extractor) typeSpelling(typeNode *sitter.Node) string {
	switch typeNode.Type() {
	case "struct_specifier", "class_specifier", "union_specifier", "enum_specifier":
		if nn := typeNode.ChildByFieldName("name"); nn != nil {
			return collapseSpaces(nn.Content(e.src))
		}
		return ""
	default:
		return collapseSpaces(typeNode.Content(e.src))
	}
}

// collapseSpaces canonicalizes whitespace; blanked noise words leave
// runs of spaces behind.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ---- enums ----

func (e *extractor) enumCursor(n *sitter.Node) (decl.Cursor, bool) {
	name := ""
	if nn := n.ChildByFieldName("name"); nn != nil {
		name = nn.Content(e.src)
	}
	body := n.ChildByFieldName("body")
	cur := decl.Cursor{
		Kind:    decl.KindEnum,
		Name:    name,
		File:    e.file,
		Span:    nodeSpan(e.file, n),
		Bits:    -1,
		HasBody: body != nil,
	}
	if base := n.ChildByFieldName("base"); base != nil {
		cur.Spelling = collapseSpaces(base.Content(e.src))
	}
	if body == nil {
		if name == "" {
			return decl.Cursor{}, false
		}
		return cur, true
	}

	running := int64(-1)
	valid := true
	for i := uint32(0); i < body.ChildCount(); i++ {
		ch := body.Child(int(i))
		if ch.Type() != "enumerator" {
			continue
		}
		nameNode := ch.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		member := decl.Cursor{
			Kind: decl.KindEnumConst,
			Name: nameNode.Content(e.src),
			File: e.file,
			Span: nodeSpan(e.file, ch),
			Bits: -1,
		}
		if valueNode := ch.ChildByFieldName("value"); valueNode != nil {
			raw := strings.TrimSpace(valueNode.Content(e.src))
			if v, ok := foldConst(raw, e.consts); ok {
				member.Value = v
				member.HasValue = true
				running = v
				valid = true
			} else {
				member.Spelling = raw
				valid = false
			}
		} else if valid {
			running++
			member.Value = running
			member.HasValue = true
		}
		if member.HasValue {
			e.consts[member.Name] = member.Value
		}
		cur.Children = append(cur.Children, member)
	}
	return cur, true
}

// ---- typedefs ----

func (e *extractor) typedefCursors(n *sitter.Node) []decl.Cursor {
	typeNode := n.ChildByFieldName("type")
	if typeNode == nil {
		return nil
	}
	declarators := fieldDeclarators(n)

	switch typeNode.Type() {
	case "struct_specifier", "class_specifier", "union_specifier", "enum_specifier":
		if typeNode.ChildByFieldName("body") != nil {
			return e.typedefOfAggregate(typeNode, declarators)
		}
	}

	base := e.typeSpelling(typeNode)
	var out []decl.Cursor
	for _, d := range declarators {
		info := e.declaratorInfo(d)
		if info.name == "" {
			continue
		}
		if info.fn != nil {
			td := decl.Cursor{
				Kind:     decl.KindTypedef,
				Name:     info.name,
				Spelling: composeReturn(base, info),
				File:     e.file,
				Span:     nodeSpan(e.file, d),
				Bits:     -1,
				FuncPtr:  true,
			}
			td.Children, td.Variadic = e.paramCursors(info.fn)
			out = append(out, td)
			continue
		}
		spelling := composeSpelling(base, false, info)
		if spelling == info.name {
			continue
		}
		out = append(out, decl.Cursor{
			Kind:     decl.KindTypedef,
			Name:     info.name,
			Spelling: spelling,
			File:     e.file,
			Span:     nodeSpan(e.file, d),
			Bits:     -1,
		})
	}
	return out
}

// typedefOfAggregate handles `typedef struct [Tag] {...} Name, *PName;`.
// An anonymous tag adopts the first plain declarator as the type name,
// matching how the original headers are read.
func (e *extractor) typedefOfAggregate(typeNode *sitter.Node, declarators []*sitter.Node) []decl.Cursor {
	var nested decl.Cursor
	var ok bool
	switch typeNode.Type() {
	case "union_specifier":
		nested, ok = e.aggregateCursor(typeNode, decl.KindUnion)
	case "enum_specifier":
		nested, ok = e.enumCursor(typeNode)
	default:
		nested, ok = e.aggregateCursor(typeNode, decl.KindStruct)
	}
	if !ok {
		return nil
	}

	adopted := ""
	if nested.Name == "" {
		for _, d := range declarators {
			info := e.declaratorInfo(d)
			if info.fn == nil && info.outerPtrs == 0 && len(info.arrays) == 0 && info.name != "" {
				adopted = info.name
				break
			}
		}
		if adopted == "" {
			return nil
		}
		nested.Name = adopted
	}

	out := []decl.Cursor{nested}
	for _, d := range declarators {
		info := e.declaratorInfo(d)
		if info.name == "" || info.fn != nil {
			continue
		}
		spelling := composeSpelling(nested.Name, false, info)
		if info.name == adopted || spelling == info.name {
			continue
		}
		out = append(out, decl.Cursor{
			Kind:     decl.KindTypedef,
			Name:     info.name,
			Spelling: spelling,
			File:     e.file,
			Span:     nodeSpan(e.file, d),
			Bits:     -1,
		})
	}
	return out
}

func composeReturn(base string, info declInfo) string {
	if info.outerPtrs > 0 {
		return base + " " + strings.Repeat("*", info.outerPtrs)
	}
	return base
}

// ---- top-level declarations ----

func (e *extractor) declarationCursors(n *sitter.Node) []decl.Cursor {
	// a bodied aggregate inside a declaration: `struct S { ... } var;`
	if typeNode := n.ChildByFieldName("type"); typeNode != nil {
		switch typeNode.Type() {
		case "struct_specifier", "class_specifier", "union_specifier", "enum_specifier":
			if typeNode.ChildByFieldName("body") != nil {
				return e.fieldCursorsToDecls(n, typeNode)
			}
		}
	}

	if hasStorageClass(e.src, n, "static") || hasStorageClass(e.src, n, "inline") {
		return nil
	}
	for _, d := range fieldDeclarators(n) {
		info := e.declaratorInfo(d)
		if info.fn != nil {
			if c, ok := e.callableCursor(n, decl.KindFunction, false); ok {
				return []decl.Cursor{c}
			}
		}
	}
	// plain globals carry no type information we emit
	return nil
}

func (e *extractor) fieldCursorsToDecls(n, typeNode *sitter.Node) []decl.Cursor {
	var out []decl.Cursor
	switch typeNode.Type() {
	case "union_specifier":
		if c, ok := e.aggregateCursor(typeNode, decl.KindUnion); ok {
			out = append(out, c)
		}
	case "enum_specifier":
		if c, ok := e.enumCursor(typeNode); ok {
			out = append(out, c)
		}
	default:
		if c, ok := e.aggregateCursor(typeNode, decl.KindStruct); ok {
			out = append(out, c)
		}
	}
	return out
}

func hasStorageClass(src []byte, n *sitter.Node, word string) bool {
	for i := uint32(0); i < n.ChildCount(); i++ {
		ch := n.Child(int(i))
		if ch.Type() == "storage_class_specifier" && strings.TrimSpace(ch.Content(src)) == word {
			return true
		}
	}
	return false
}

// ---- preprocessor ----

func (e *extractor) includeCursor(n *sitter.Node) (decl.Cursor, bool) {
	path := n.ChildByFieldName("path")
	if path == nil {
		return decl.Cursor{}, false
	}
	text := strings.TrimSpace(path.Content(e.src))
	system := false
	switch {
	case strings.HasPrefix(text, "\"") && strings.HasSuffix(text, "\"") && len(text) >= 2:
		text = text[1 : len(text)-1]
	case strings.HasPrefix(text, "<") && strings.HasSuffix(text, ">") && len(text) >= 2:
		text = text[1 : len(text)-1]
		system = true
	}
	if text == "" {
		return decl.Cursor{}, false
	}
	return decl.Cursor{
		Kind:   decl.KindInclude,
		Name:   text,
		File:   e.file,
		Span:   nodeSpan(e.file, n),
		Bits:   -1,
		System: system,
	}, true
}

func (e *extractor) macroCursor(n *sitter.Node) (decl.Cursor, bool) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return decl.Cursor{}, false
	}
	name := nameNode.Content(e.src)
	valueNode := n.ChildByFieldName("value")
	if valueNode == nil {
		// bare #define guards carry no constant
		return decl.Cursor{}, false
	}
	raw := strings.TrimSpace(valueNode.Content(e.src))
	if raw == "" {
		return decl.Cursor{}, false
	}
	cur := decl.Cursor{
		Kind:     decl.KindMacro,
		Name:     name,
		File:     e.file,
		Span:     nodeSpan(e.file, n),
		Bits:     -1,
		Spelling: raw,
	}
	if v, ok := foldConst(raw, e.consts); ok {
		cur.Value = v
		cur.HasValue = true
		e.consts[name] = v
	}
	return cur, true
}

// packStack tracks the #pragma pack state textually, the way the
// compiler would while reading the same header top to bottom.
type packStack struct {
	current int
	stack   []int
}

func (p *packStack) push(v int) {
	p.stack = append(p.stack, p.current)
	p.current = v
}

func (p *packStack) pop() {
	if n := len(p.stack); n > 0 {
		p.current = p.stack[n-1]
		p.stack = p.stack[:n-1]
	} else {
		p.current = 0
	}
}

func (e *extractor) applyPragma(n *sitter.Node) {
	var arg string
	for i := uint32(0); i < n.ChildCount(); i++ {
		if ch := n.Child(int(i)); ch.Type() == "preproc_arg" {
			arg = strings.TrimSpace(ch.Content(e.src))
		}
	}
	rest, ok := strings.CutPrefix(arg, "pack")
	if !ok {
		return
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return
	}
	inner := strings.TrimSpace(rest[1 : len(rest)-1])
	switch {
	case inner == "":
		e.pack.current = 0
	case inner == "pop":
		e.pack.pop()
	case strings.HasPrefix(inner, "pop"):
		e.pack.pop()
	case strings.HasPrefix(inner, "push"):
		value := e.pack.current
		if _, after, found := strings.Cut(inner, ","); found {
			if v, err := strconv.Atoi(strings.TrimSpace(after)); err == nil {
				value = v
			}
		}
		e.pack.push(value)
	default:
		if v, err := strconv.Atoi(inner); err == nil {
			e.pack.current = v
		}
	}
}
