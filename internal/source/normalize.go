package source

import (
	"path/filepath"
	"slices"
)

// normalizeCRLF rewrites \r\n to \n, leaving lone \r untouched.
// Reports whether anything changed.
func normalizeCRLF(content []byte) ([]byte, bool) {
	if !slices.Contains(content, '\r') {
		return content, false
	}

	out := make([]byte, 0, len(content))
	changed := false

	i := 0
	for i < len(content) {
		if content[i] == '\r' && i+1 < len(content) && content[i+1] == '\n' {
			out = append(out, '\n')
			i += 2
			changed = true
		} else {
			out = append(out, content[i])
			i++
		}
	}
	return out, changed
}

func removeBOM(content []byte) ([]byte, bool) {
	if len(content) < 3 {
		return content, false
	}
	if content[0] == 0xEF && content[1] == 0xBB && content[2] == 0xBF {
		return content[3:], true
	}
	return content, false
}

// buildLineIndex records the byte offset of every \n.
func buildLineIndex(content []byte) []uint32 {
	out := make([]uint32, 0, 64)
	for i, b := range content {
		if b == '\n' {
			out = append(out, uint32(i))
		}
	}
	return out
}

// toLineCol maps a byte offset to a 1-based line/column using binary
// search over the newline index.
func toLineCol(lineIdx []uint32, off uint32) LineCol {
	if len(lineIdx) == 0 {
		return LineCol{Line: 1, Col: off + 1}
	}

	lo, hi := 0, len(lineIdx)-1
	for lo <= hi {
		mid := (lo + hi) >> 1
		if lineIdx[mid] <= off {
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	line := hi
	if line < 0 {
		return LineCol{Line: 1, Col: off + 1}
	}

	var startOff uint32
	if line == 0 {
		startOff = 0
	} else {
		startOff = lineIdx[line-1] + 1
	}
	// A newline char itself still belongs to its line; anything past it
	// starts the next one.
	if lineIdx[line] < off {
		startOff = lineIdx[line] + 1
		line++
	}
	return LineCol{Line: uint32(line + 1), Col: off - startOff + 1}
}

// normalizePath gives paths one shape in diffs across platforms.
func normalizePath(p string) string {
	return filepath.ToSlash(filepath.Clean(p))
}
