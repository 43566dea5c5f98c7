package typegraph

import (
	"strconv"
	"strings"
)

// spelling is a parsed C type spelling as the front end composes them:
// an optional const, a base name, pointer stars, then array extents.
type spelling struct {
	base    string
	konst   bool
	ptrs    int
	extents []int // as written, outermost first
}

// parseSpelling splits a composed type spelling. It accepts exactly
// the shapes the extractor produces, like "const void *", "FLOAT[2]",
// "unsigned int" or "IDXGIAdapter *"; anything else fails.
func parseSpelling(s string) (spelling, bool) {
	var sp spelling
	s = strings.TrimSpace(s)

	if rest, ok := strings.CutPrefix(s, "const "); ok {
		sp.konst = true
		s = rest
	}
	for _, tag := range []string{"struct ", "union ", "enum ", "class "} {
		if rest, ok := strings.CutPrefix(s, tag); ok {
			s = rest
			break
		}
	}

	cut := len(s)
	if i := strings.IndexAny(s, "*["); i >= 0 {
		cut = i
	}
	sp.base = strings.TrimSpace(s[:cut])
	if !validBaseName(sp.base) {
		return sp, false
	}

	rest := s[cut:]
	for len(rest) > 0 {
		switch rest[0] {
		case '*':
			sp.ptrs++
			rest = strings.TrimSpace(rest[1:])
		case '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return sp, false
			}
			extent := strings.TrimSpace(rest[1:end])
			if extent == "" {
				// flexible array member
				sp.extents = append(sp.extents, 0)
			} else {
				n, err := strconv.Atoi(extent)
				if err != nil || n < 0 {
					return sp, false
				}
				sp.extents = append(sp.extents, n)
			}
			rest = strings.TrimSpace(rest[end+1:])
		case 'c':
			// trailing "const" binds to the pointer, not the pointee
			if trimmed, ok := strings.CutPrefix(rest, "const"); ok {
				rest = strings.TrimSpace(trimmed)
				continue
			}
			return sp, false
		default:
			return sp, false
		}
	}
	return sp, true
}

// validBaseName accepts identifiers and the multi-word primitive
// spellings; anything the extractor could not have composed fails.
func validBaseName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9', r == '_', r == ' ':
		default:
			return false
		}
	}
	return true
}

// primSpellings maps canonical C primitive spellings to their class.
// The front end collapses whitespace, so multi-word forms are stable.
var primSpellings = map[string]PrimKind{
	"void":                   PrimVoid,
	"bool":                   PrimBool,
	"_Bool":                  PrimBool,
	"char":                   PrimChar,
	"signed char":            PrimSChar,
	"unsigned char":          PrimUChar,
	"short":                  PrimShort,
	"short int":              PrimShort,
	"signed short":           PrimShort,
	"signed short int":       PrimShort,
	"unsigned short":         PrimUShort,
	"unsigned short int":     PrimUShort,
	"int":                    PrimInt,
	"signed":                 PrimInt,
	"signed int":             PrimInt,
	"unsigned":               PrimUInt,
	"unsigned int":           PrimUInt,
	"long":                   PrimLong,
	"long int":               PrimLong,
	"signed long":            PrimLong,
	"unsigned long":          PrimULong,
	"unsigned long int":      PrimULong,
	"long long":              PrimLongLong,
	"long long int":          PrimLongLong,
	"signed long long":       PrimLongLong,
	"unsigned long long":     PrimULongLong,
	"unsigned long long int": PrimULongLong,
	"__int64":                PrimLongLong,
	"unsigned __int64":       PrimULongLong,
	"__int32":                PrimInt,
	"unsigned __int32":       PrimUInt,
	"float":                  PrimFloat,
	"double":                 PrimDouble,
	"long double":            PrimLongDouble,
	"wchar_t":                PrimWChar,
	"__wchar_t":              PrimWChar,
	"char16_t":               PrimUShort,
	"char32_t":               PrimUInt,
	"int8_t":                 PrimSChar,
	"uint8_t":                PrimUChar,
	"int16_t":                PrimShort,
	"uint16_t":               PrimUShort,
	"int32_t":                PrimInt,
	"uint32_t":               PrimUInt,
	"int64_t":                PrimLongLong,
	"uint64_t":               PrimULongLong,
	"size_t":                 PrimUIntPtr,
	"uintptr_t":              PrimUIntPtr,
	"intptr_t":               PrimIntPtr,
	"ptrdiff_t":              PrimIntPtr,
}
