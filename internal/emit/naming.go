package emit

import (
	"strings"

	"github.com/ousttrue/pycpptool/internal/typegraph"
)

// enumMemberNames strips the shared prefix from enum member names, the
// way the headers intend them to read inside a scoped enum. A member
// that would start with a digit after stripping keeps a leading
// underscore so it stays a valid identifier.
func enumMemberNames(enumName string, members []typegraph.EnumMember) []string {
	out := make([]string, len(members))
	if len(members) == 0 {
		return out
	}

	prefix := sharedPrefix(members)
	if len(members) == 1 {
		// No second member to compare against; fall back to the enum
		// name itself.
		prefix = ""
		if p := enumName + "_"; strings.HasPrefix(members[0].Name, p) {
			prefix = p
		}
	}

	for i, m := range members {
		name := strings.TrimPrefix(m.Name, prefix)
		if name == "" {
			name = m.Name
		}
		if name[0] >= '0' && name[0] <= '9' {
			name = "_" + name
		}
		out[i] = name
	}
	return out
}

// sharedPrefix finds the longest common prefix of all member names,
// trimmed back to the last underscore so words are never cut in half.
func sharedPrefix(members []typegraph.EnumMember) string {
	prefix := members[0].Name
	for _, m := range members[1:] {
		for !strings.HasPrefix(m.Name, prefix) {
			prefix = prefix[:len(prefix)-1]
			if prefix == "" {
				return ""
			}
		}
	}
	cut := strings.LastIndexByte(prefix, '_')
	if cut < 0 {
		return ""
	}
	return prefix[:cut+1]
}

// D reserved words that collide with header identifiers in practice.
var dKeywords = map[string]bool{
	"abstract": true, "alias": true, "align": true, "asm": true,
	"assert": true, "auto": true, "body": true, "bool": true,
	"byte": true, "cast": true, "catch": true, "char": true,
	"class": true, "const": true, "continue": true, "debug": true,
	"default": true, "delegate": true, "deprecated": true, "do": true,
	"double": true, "else": true, "enum": true, "export": true,
	"extern": true, "final": true, "finally": true, "float": true,
	"for": true, "foreach": true, "function": true, "goto": true,
	"if": true, "immutable": true, "import": true, "in": true,
	"inout": true, "int": true, "interface": true, "invariant": true,
	"is": true, "lazy": true, "long": true, "mixin": true,
	"module": true, "new": true, "nothrow": true, "null": true,
	"out": true, "override": true, "package": true, "pragma": true,
	"private": true, "protected": true, "public": true, "pure": true,
	"real": true, "ref": true, "return": true, "scope": true,
	"shared": true, "short": true, "static": true, "struct": true,
	"super": true, "switch": true, "template": true, "this": true,
	"throw": true, "true": true, "try": true, "typeof": true,
	"ubyte": true, "uint": true, "ulong": true, "union": true,
	"ushort": true, "version": true, "void": true, "while": true,
	"with": true,
}

var csKeywords = map[string]bool{
	"abstract": true, "as": true, "base": true, "bool": true,
	"break": true, "byte": true, "case": true, "catch": true,
	"char": true, "checked": true, "class": true, "const": true,
	"continue": true, "decimal": true, "default": true, "delegate": true,
	"do": true, "double": true, "else": true, "enum": true,
	"event": true, "explicit": true, "extern": true, "false": true,
	"finally": true, "fixed": true, "float": true, "for": true,
	"foreach": true, "goto": true, "if": true, "implicit": true,
	"in": true, "int": true, "interface": true, "internal": true,
	"is": true, "lock": true, "long": true, "namespace": true,
	"new": true, "null": true, "object": true, "operator": true,
	"out": true, "override": true, "params": true, "private": true,
	"protected": true, "public": true, "readonly": true, "ref": true,
	"return": true, "sbyte": true, "sealed": true, "short": true,
	"sizeof": true, "stackalloc": true, "static": true, "string": true,
	"struct": true, "switch": true, "this": true, "throw": true,
	"true": true, "try": true, "typeof": true, "uint": true,
	"ulong": true, "unchecked": true, "unsafe": true, "ushort": true,
	"using": true, "virtual": true, "void": true, "volatile": true,
	"while": true,
}

func escapeD(name string) string {
	if dKeywords[name] {
		return name + "_"
	}
	return name
}

func escapeCS(name string) string {
	if csKeywords[name] {
		return "@" + name
	}
	return name
}
