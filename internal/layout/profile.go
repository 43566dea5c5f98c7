package layout

import (
	"github.com/ousttrue/pycpptool/internal/typegraph"
)

// Profile fixes the sizes the type graph leaves platform-dependent.
// Both shipped profiles follow the MSVC ABI the headers were written
// for; long stays 4 bytes either way (LLP64).
type Profile struct {
	Name      string
	PtrSize   int
	PtrAlign  int
	LongSize  int
	WCharSize int

	// EnumSize applies to enums without an explicit base type.
	EnumSize int

	LongDoubleSize  int
	LongDoubleAlign int
}

var (
	WinX64 = Profile{
		Name:            "x64",
		PtrSize:         8,
		PtrAlign:        8,
		LongSize:        4,
		WCharSize:       2,
		EnumSize:        4,
		LongDoubleSize:  8,
		LongDoubleAlign: 8,
	}

	WinX86 = Profile{
		Name:            "x86",
		PtrSize:         4,
		PtrAlign:        4,
		LongSize:        4,
		WCharSize:       2,
		EnumSize:        4,
		LongDoubleSize:  8,
		LongDoubleAlign: 8,
	}
)

// ByName resolves a target profile name.
func ByName(name string) (Profile, bool) {
	switch name {
	case "x64", "win-x64", "win64", "amd64":
		return WinX64, true
	case "x86", "win-x86", "win32", "386":
		return WinX86, true
	}
	return Profile{}, false
}

// Names lists the accepted canonical profile names.
func Names() []string {
	return []string{WinX64.Name, WinX86.Name}
}

// Primitive returns the size and alignment of a primitive class under
// this profile. void reports zero size; it only ever appears behind a
// pointer.
func (p Profile) Primitive(k typegraph.PrimKind) (size, align int) {
	switch k {
	case typegraph.PrimVoid:
		return 0, 1
	case typegraph.PrimBool, typegraph.PrimChar, typegraph.PrimSChar, typegraph.PrimUChar:
		return 1, 1
	case typegraph.PrimShort, typegraph.PrimUShort:
		return 2, 2
	case typegraph.PrimInt, typegraph.PrimUInt:
		return 4, 4
	case typegraph.PrimLong, typegraph.PrimULong:
		return p.LongSize, p.LongSize
	case typegraph.PrimLongLong, typegraph.PrimULongLong:
		return 8, 8
	case typegraph.PrimFloat:
		return 4, 4
	case typegraph.PrimDouble:
		return 8, 8
	case typegraph.PrimLongDouble:
		return p.LongDoubleSize, p.LongDoubleAlign
	case typegraph.PrimWChar:
		return p.WCharSize, p.WCharSize
	case typegraph.PrimIntPtr, typegraph.PrimUIntPtr:
		return p.PtrSize, p.PtrAlign
	}
	return 0, 1
}
