package cpp

import "strings"

// comMacroRule describes how the prepass rewrites one annotation macro.
type comMacroRule struct {
	// keepsStruct replaces the macro text with the struct keyword so the
	// following interface declaration parses as a struct_specifier.
	keepsStruct bool
	// guid records the original macro text as a cursor annotation.
	guid bool
	// call expects a parenthesized argument after the identifier.
	call bool
}

// comMacros are the interface annotation macros the original headers
// use. MIDL_INTERFACE opens the declaration itself; the DECLARE forms
// follow an `interface` keyword, which is itself a macro for struct.
var comMacros = map[string]comMacroRule{
	"MIDL_INTERFACE":           {keepsStruct: true, guid: true, call: true},
	"DX_DECLARE_INTERFACE":     {guid: true, call: true},
	"DWRITE_DECLARE_INTERFACE": {guid: true, call: true},
	"DECLSPEC_UUID":            {guid: true, call: true},
	"interface":                {keepsStruct: true},
}

// noiseWords are bare identifiers that carry no declaration meaning and
// confuse the grammar when left in place.
var noiseWords = map[string]struct{}{
	"STDMETHODCALLTYPE": {},
	"STDAPICALLTYPE":    {},
	"WINAPI":            {},
	"APIENTRY":          {},
	"CALLBACK":          {},
	"__stdcall":         {},
	"__cdecl":           {},
	"__fastcall":        {},
	"__forceinline":     {},
	"__inline":          {},
}

// noiseCalls are function-like macros whose whole call is blanked,
// argument list included.
var noiseCalls = map[string]struct{}{
	"__declspec":                 {},
	"DEFINE_GUID":                {},
	"DEFINE_ENUM_FLAG_OPERATORS": {},
}

// isSALWord matches the Microsoft source annotation language prefixes
// (_In_, _Out_writes_(n), ...). A following parenthesized group is
// blanked together with the word.
func isSALWord(id string) bool {
	if len(id) < 4 || id[0] != '_' {
		return false
	}
	for _, prefix := range salPrefixes {
		if strings.HasPrefix(id, prefix) {
			return true
		}
	}
	return false
}

var salPrefixes = []string{
	"_In_",
	"_Out_",
	"_Inout_",
	"_Outptr_",
	"_COM_Outptr_",
	"_Field_",
	"_Ret_",
	"_Post_",
	"_Pre_",
	"_Check_return_",
	"_Null_",
	"_Always_",
	"__RPC__",
}
