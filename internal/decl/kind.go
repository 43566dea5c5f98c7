package decl

// Kind classifies a declaration cursor.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindStruct
	KindUnion
	KindEnum
	KindTypedef
	KindFunction
	KindMethod
	KindField
	KindParam
	KindEnumConst
	KindBase
	KindInclude
	KindMacro
)

var kindNames = [...]string{
	KindUnknown:   "unknown",
	KindStruct:    "struct",
	KindUnion:     "union",
	KindEnum:      "enum",
	KindTypedef:   "typedef",
	KindFunction:  "function",
	KindMethod:    "method",
	KindField:     "field",
	KindParam:     "param",
	KindEnumConst: "enum-const",
	KindBase:      "base",
	KindInclude:   "include",
	KindMacro:     "macro",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}
