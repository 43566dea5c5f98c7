package source

type (
	// FileID uniquely identifies a header within a FileSet.
	FileID uint32
	// FileFlags encodes metadata about a loaded file.
	FileFlags uint8
)

const (
	// FileVirtual marks a file added from memory (tests, stdin).
	FileVirtual FileFlags = 1 << iota
	// FileHadBOM marks a file whose UTF-8 BOM was stripped on load.
	FileHadBOM
	// FileNormalizedCRLF marks a file whose CRLF line endings were rewritten.
	// Windows SDK headers ship with CRLF; offsets everywhere else assume LF.
	FileNormalizedCRLF
)

// File captures the content and derived metadata of a single header.
type File struct {
	ID      FileID
	Path    string
	Content []byte
	LineIdx []uint32
	Hash    [32]byte
	Flags   FileFlags
}

// LineCol is a human-readable position, both components 1-based.
type LineCol struct {
	Line uint32
	Col  uint32
}
