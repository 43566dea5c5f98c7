package emit

import (
	json "github.com/goccy/go-json"

	"github.com/ousttrue/pycpptool/internal/layout"
	"github.com/ousttrue/pycpptool/internal/typegraph"
)

// ModelJSON dumps the whole resolved model as one JSON document:
// every node with its layout, every unit with its declarations, every
// interface with its linearized slots. Arrays are ordered by node id,
// so the same input bytes always produce the same output bytes.
type ModelJSON struct{}

func (ModelJSON) Target() string { return "json" }

type jsonProfile struct {
	Name        string `json:"name"`
	PointerSize int    `json:"pointerSize"`
}

type jsonField struct {
	Name   string           `json:"name"`
	Type   typegraph.NodeID `json:"type"`
	Offset int              `json:"offset"`
	Bits   int              `json:"bits,omitempty"`
	BitOff int              `json:"bitOffset,omitempty"`
}

type jsonMember struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

type jsonParam struct {
	Name string           `json:"name,omitempty"`
	Type typegraph.NodeID `json:"type"`
}

type jsonMethod struct {
	Name     string           `json:"name"`
	Ret      typegraph.NodeID `json:"ret"`
	Params   []jsonParam      `json:"params,omitempty"`
	Variadic bool             `json:"variadic,omitempty"`
}

type jsonSlot struct {
	Index  int              `json:"index"`
	Name   string           `json:"name"`
	Owner  typegraph.NodeID `json:"owner"`
	Ret    typegraph.NodeID `json:"ret"`
	Params []jsonParam      `json:"params,omitempty"`
}

type jsonType struct {
	ID   typegraph.NodeID `json:"id"`
	Kind string           `json:"kind"`
	Name string           `json:"name,omitempty"`
	Prim string           `json:"prim,omitempty"`

	Elem     typegraph.NodeID `json:"elem,omitempty"`
	Count    int              `json:"count,omitempty"`
	Flexible bool             `json:"flexible,omitempty"`
	Const    bool             `json:"const,omitempty"`

	Size  int `json:"size"`
	Align int `json:"align"`

	Pack    int          `json:"pack,omitempty"`
	Union   bool         `json:"union,omitempty"`
	Fields  []jsonField  `json:"fields,omitempty"`
	Members []jsonMember `json:"members,omitempty"`

	Base    typegraph.NodeID `json:"base,omitempty"`
	Methods []jsonMethod     `json:"methods,omitempty"`
	Slots   []jsonSlot       `json:"slots,omitempty"`
	GUID    string           `json:"guid,omitempty"`

	Ret      typegraph.NodeID `json:"ret,omitempty"`
	Params   []jsonParam      `json:"params,omitempty"`
	Variadic bool             `json:"variadic,omitempty"`

	Opaque    bool `json:"opaque,omitempty"`
	Builtin   bool `json:"builtin,omitempty"`
	Synthetic bool `json:"synthetic,omitempty"`
}

type jsonConst struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

type jsonFunc struct {
	Name     string           `json:"name"`
	Ret      typegraph.NodeID `json:"ret"`
	Params   []jsonParam      `json:"params,omitempty"`
	Variadic bool             `json:"variadic,omitempty"`
}

type jsonUnit struct {
	Path     string             `json:"path"`
	Stem     string             `json:"stem"`
	Includes []string           `json:"includes,omitempty"`
	Types    []typegraph.NodeID `json:"types,omitempty"`
	Consts   []jsonConst        `json:"consts,omitempty"`
	Funcs    []jsonFunc         `json:"funcs,omitempty"`
}

type jsonDoc struct {
	Profile jsonProfile `json:"profile"`
	Types   []jsonType  `json:"types"`
	Units   []jsonUnit  `json:"units"`
}

func (ModelJSON) Emit(m *Model) ([]File, error) {
	doc := jsonDoc{
		Profile: jsonProfile{Name: m.Profile.Name, PointerSize: m.Profile.PtrSize},
	}

	g := m.Graph
	for id := typegraph.NodeID(1); int(id) < g.Len(); id++ {
		n := g.Get(id)
		l := m.layoutOf(id)
		jt := jsonType{
			ID:        id,
			Kind:      n.Kind.String(),
			Name:      n.Name,
			Elem:      n.Elem,
			Count:     n.Count,
			Flexible:  n.Flexible,
			Const:     n.Const,
			Size:      l.Size,
			Align:     l.Align,
			Pack:      n.Pack,
			Union:     l.Union,
			Base:      n.Base(),
			Opaque:    !n.Defined && !n.Builtin && n.IsAggregate() && n.Name != "",
			Builtin:   n.Builtin,
			Synthetic: n.Synthetic,
		}
		if n.Kind == typegraph.KindPrimitive {
			jt.Prim = n.Prim.String()
		}
		if n.IsAggregate() && n.Defined {
			jt.Fields = jsonFields(l.Fields)
		}
		for _, mem := range n.Members {
			jt.Members = append(jt.Members, jsonMember{Name: mem.Name, Value: mem.Value})
		}
		for i := range n.Methods {
			mm := &n.Methods[i]
			jt.Methods = append(jt.Methods, jsonMethod{
				Name:     mm.Name,
				Ret:      mm.Ret,
				Params:   jsonParams(mm.Params),
				Variadic: mm.Variadic,
			})
		}
		if n.Kind == typegraph.KindInterface {
			for _, s := range m.Table.Slots(id) {
				jt.Slots = append(jt.Slots, jsonSlot{
					Index:  s.Index,
					Name:   s.Name,
					Owner:  s.Owner,
					Ret:    s.Ret,
					Params: jsonParams(s.Params),
				})
			}
			if u, ok := m.Table.GUID(id); ok {
				jt.GUID = u.String()
			}
		}
		if n.Kind == typegraph.KindFuncPtr {
			jt.Ret = n.Ret
			jt.Params = jsonParams(n.Params)
			jt.Variadic = n.Variadic
		}
		doc.Types = append(doc.Types, jt)
	}

	for _, u := range g.Units() {
		ju := jsonUnit{
			Path:     u.Path,
			Stem:     u.Stem,
			Includes: u.Includes,
			Types:    u.Types,
		}
		for _, c := range u.Consts {
			ju.Consts = append(ju.Consts, jsonConst{Name: c.Name, Value: c.Value})
		}
		for i := range u.Funcs {
			f := &u.Funcs[i]
			ju.Funcs = append(ju.Funcs, jsonFunc{
				Name:     f.Name,
				Ret:      f.Ret,
				Params:   jsonParams(f.Params),
				Variadic: f.Variadic,
			})
		}
		doc.Units = append(doc.Units, ju)
	}

	text, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return []File{{Path: "model.json", Text: string(text) + "\n"}}, nil
}

// jsonFields converts the flat resolved fields; plain members drop
// the bit markers entirely.
func jsonFields(fields []layout.FieldLayout) []jsonField {
	out := make([]jsonField, 0, len(fields))
	for _, f := range fields {
		jf := jsonField{Name: f.Name, Type: f.Type, Offset: f.Offset}
		if f.Bits > 0 {
			jf.Bits = f.Bits
			jf.BitOff = f.BitOff
		}
		out = append(out, jf)
	}
	return out
}

func jsonParams(params []typegraph.Param) []jsonParam {
	out := make([]jsonParam, 0, len(params))
	for _, p := range params {
		out = append(out, jsonParam{Name: p.Name, Type: p.Type})
	}
	return out
}
