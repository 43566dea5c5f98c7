package typegraph

// The owned headers lean on names from windows.h and friends that the
// run never parses. The well-known table resolves those by name; a
// cpptool.toml [types] section extends or overrides it.

// wellKnownSpellings resolve as a typedef to the given C spelling.
var wellKnownSpellings = map[string]string{
	"VOID":    "void",
	"BOOL":    "int",
	"BOOLEAN": "unsigned char",
	"BYTE":    "unsigned char",
	"CHAR":    "char",
	"UCHAR":   "unsigned char",
	"WCHAR":   "wchar_t",
	"SHORT":   "short",
	"USHORT":  "unsigned short",
	"INT":     "int",
	"UINT":    "unsigned int",
	"LONG":    "long",
	"ULONG":   "unsigned long",
	"WORD":    "unsigned short",
	"DWORD":   "unsigned long",
	"FLOAT":   "float",
	"DOUBLE":  "double",

	"INT8":      "signed char",
	"UINT8":     "unsigned char",
	"INT16":     "short",
	"UINT16":    "unsigned short",
	"INT32":     "int",
	"UINT32":    "unsigned int",
	"INT64":     "long long",
	"UINT64":    "unsigned long long",
	"LONGLONG":  "long long",
	"ULONGLONG": "unsigned long long",
	"DWORD64":   "unsigned long long",
	"DWORDLONG": "unsigned long long",

	"LARGE_INTEGER":  "long long",
	"ULARGE_INTEGER": "unsigned long long",

	"HRESULT":  "long",
	"SCODE":    "long",
	"NTSTATUS": "long",

	"SIZE_T":    "size_t",
	"SSIZE_T":   "intptr_t",
	"INT_PTR":   "intptr_t",
	"UINT_PTR":  "uintptr_t",
	"LONG_PTR":  "intptr_t",
	"ULONG_PTR": "uintptr_t",
	"DWORD_PTR": "uintptr_t",
	"WPARAM":    "uintptr_t",
	"LPARAM":    "intptr_t",
	"LRESULT":   "intptr_t",

	"PVOID":   "void *",
	"LPVOID":  "void *",
	"LPCVOID": "const void *",
	"LPSTR":   "char *",
	"PSTR":    "char *",
	"LPCSTR":  "const char *",
	"PCSTR":   "const char *",
	"LPWSTR":  "wchar_t *",
	"PWSTR":   "wchar_t *",
	"LPCWSTR": "const wchar_t *",
	"PCWSTR":  "const wchar_t *",

	"BSTR":         "wchar_t *",
	"OLECHAR":      "wchar_t",
	"LPOLESTR":     "wchar_t *",
	"LPCOLESTR":    "const wchar_t *",
	"VARIANT_BOOL": "short",

	"IID":      "GUID",
	"CLSID":    "GUID",
	"FMTID":    "GUID",
	"UUID":     "GUID",
	"REFIID":   "const GUID *",
	"REFGUID":  "const GUID *",
	"REFCLSID": "const GUID *",
	"REFFMTID": "const GUID *",
	"LPGUID":   "GUID *",
	"LPCGUID":  "const GUID *",

	"ATOM":     "unsigned short",
	"COLORREF": "unsigned long",
	"LCID":     "unsigned long",
	"LANGID":   "unsigned short",
}

// wellKnownHandles are opaque kernel or GDI handles; they resolve as a
// typedef to void *.
var wellKnownHandles = []string{
	"HANDLE", "HWND", "HDC", "HMONITOR", "HMODULE", "HINSTANCE",
	"HICON", "HCURSOR", "HBRUSH", "HMENU", "HKEY", "HGLRC",
	"HBITMAP", "HPALETTE", "HFONT", "HRGN", "HGDIOBJ", "HDESK",
	"HACCEL", "HHOOK", "HEVENT",
}

type wkField struct {
	name     string
	spelling string
}

// wellKnownStructs are composites the bindings need whole, defined
// structurally so the layout resolver treats them like parsed types.
var wellKnownStructs = map[string][]wkField{
	"GUID": {
		{"Data1", "unsigned long"},
		{"Data2", "unsigned short"},
		{"Data3", "unsigned short"},
		{"Data4", "unsigned char[8]"},
	},
	"LUID": {
		{"LowPart", "unsigned long"},
		{"HighPart", "long"},
	},
	"POINT": {
		{"x", "long"},
		{"y", "long"},
	},
	"SIZE": {
		{"cx", "long"},
		{"cy", "long"},
	},
	"RECT": {
		{"left", "long"},
		{"top", "long"},
		{"right", "long"},
		{"bottom", "long"},
	},
	"SECURITY_ATTRIBUTES": {
		{"nLength", "unsigned long"},
		{"lpSecurityDescriptor", "void *"},
		{"bInheritHandle", "int"},
	},
}

type wkMethod struct {
	name   string
	ret    string
	params []wkField
}

type wkInterface struct {
	base    string
	guid    string
	methods []wkMethod
}

// wellKnownInterfaces covers the COM roots declared in unknwn.h, which
// sits below every owned header but is rarely owned itself. Without
// them no vtable slot index past the root chain would be right.
var wellKnownInterfaces = map[string]wkInterface{
	"IUnknown": {
		guid: `IUnknown("00000000-0000-0000-C000-000000000046")`,
		methods: []wkMethod{
			{"QueryInterface", "HRESULT", []wkField{{"riid", "REFIID"}, {"ppvObject", "void **"}}},
			{"AddRef", "ULONG", nil},
			{"Release", "ULONG", nil},
		},
	},
	"IDispatch": {
		base: "IUnknown",
		guid: `IDispatch("00020400-0000-0000-C000-000000000046")`,
		methods: []wkMethod{
			{"GetTypeInfoCount", "HRESULT", []wkField{{"pctinfo", "UINT *"}}},
			{"GetTypeInfo", "HRESULT", []wkField{{"iTInfo", "UINT"}, {"lcid", "LCID"}, {"ppTInfo", "void **"}}},
			{"GetIDsOfNames", "HRESULT", []wkField{{"riid", "REFIID"}, {"rgszNames", "LPOLESTR *"}, {"cNames", "UINT"}, {"lcid", "LCID"}, {"rgDispId", "LONG *"}}},
			{"Invoke", "HRESULT", []wkField{{"dispIdMember", "LONG"}, {"riid", "REFIID"}, {"lcid", "LCID"}, {"wFlags", "WORD"}, {"pDispParams", "void *"}, {"pVarResult", "void *"}, {"pExcepInfo", "void *"}, {"puArgErr", "UINT *"}}},
		},
	},
}
