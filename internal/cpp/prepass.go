package cpp

// annotation is a macro occurrence the prepass erased, remembered by
// the byte offset of the region it covered.
type annotation struct {
	off  uint32
	text string
}

type prepassResult struct {
	src []byte
	ann []annotation
}

const structKeyword = "struct"

// preprocess rewrites COM annotation macros and blanks noise words so
// the grammar sees plain C++ declarations. All rewrites are
// length-preserving; ann is sorted by offset (scan order).
func preprocess(orig []byte, extraNoise map[string]struct{}) prepassResult {
	out := make([]byte, len(orig))
	copy(out, orig)
	res := prepassResult{src: out}

	i := 0
	for i < len(orig) {
		c := orig[i]
		switch {
		case c == '/' && i+1 < len(orig) && orig[i+1] == '/':
			i = skipLineComment(orig, i)
		case c == '/' && i+1 < len(orig) && orig[i+1] == '*':
			i = skipBlockComment(orig, i)
		case c == '"':
			i = skipString(orig, i, '"')
		case c == '\'':
			i = skipString(orig, i, '\'')
		case isIdentStart(c):
			start := i
			for i < len(orig) && isIdentPart(orig[i]) {
				i++
			}
			id := string(orig[start:i])
			i = rewriteIdent(orig, out, &res, id, start, i, extraNoise)
		default:
			i++
		}
	}
	return res
}

func rewriteIdent(orig, out []byte, res *prepassResult, id string, start, end int, extraNoise map[string]struct{}) int {
	if rule, ok := comMacros[id]; ok {
		regionEnd := end
		if rule.call {
			callEnd, ok := balancedCall(orig, end)
			if !ok {
				return end
			}
			regionEnd = callEnd
		}
		if rule.guid {
			res.ann = append(res.ann, annotation{
				off:  uint32(start),
				text: string(orig[start:regionEnd]),
			})
		}
		if rule.keepsStruct {
			replaceWithStruct(out, start, regionEnd)
		} else {
			blank(out, start, regionEnd)
		}
		return regionEnd
	}

	blankWord := false
	if _, ok := noiseWords[id]; ok {
		blankWord = true
	}
	if _, ok := extraNoise[id]; ok {
		blankWord = true
	}
	if blankWord {
		blank(out, start, end)
		return end
	}

	if isSALWord(id) {
		regionEnd := end
		if callEnd, ok := balancedCall(orig, end); ok {
			regionEnd = callEnd
		}
		blank(out, start, regionEnd)
		return regionEnd
	}

	if _, ok := noiseCalls[id]; ok {
		if callEnd, ok := balancedCall(orig, end); ok {
			blank(out, start, callEnd)
			return callEnd
		}
	}
	return end
}

// balancedCall expects an opening paren after optional whitespace and
// returns the offset just past its matching close.
func balancedCall(src []byte, from int) (int, bool) {
	i := from
	for i < len(src) && (src[i] == ' ' || src[i] == '\t') {
		i++
	}
	if i >= len(src) || src[i] != '(' {
		return 0, false
	}
	depth := 0
	for i < len(src) {
		switch src[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		case '"', '\'':
			i = skipString(src, i, src[i]) - 1
		case '\n':
			// annotation macros never span lines in these headers
			if depth > 0 && i-from > 512 {
				return 0, false
			}
		}
		i++
	}
	return 0, false
}

func replaceWithStruct(out []byte, start, end int) {
	blank(out, start, end)
	if end-start >= len(structKeyword) {
		copy(out[start:], structKeyword)
	}
}

func blank(out []byte, start, end int) {
	for j := start; j < end && j < len(out); j++ {
		if out[j] != '\n' {
			out[j] = ' '
		}
	}
}

func skipLineComment(src []byte, i int) int {
	for i < len(src) && src[i] != '\n' {
		i++
	}
	return i
}

func skipBlockComment(src []byte, i int) int {
	i += 2
	for i+1 < len(src) {
		if src[i] == '*' && src[i+1] == '/' {
			return i + 2
		}
		i++
	}
	return len(src)
}

func skipString(src []byte, i int, quote byte) int {
	i++
	for i < len(src) {
		switch src[i] {
		case '\\':
			i += 2
			continue
		case quote:
			return i + 1
		case '\n':
			return i
		}
		i++
	}
	return i
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
