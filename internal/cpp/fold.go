package cpp

import (
	"strconv"
	"strings"
)

// foldConst evaluates a small C constant expression against previously
// folded names. It covers what the headers actually use for enum values
// and #define constants: integer and character literals, unary + - ~ !,
// the usual binary integer operators and parentheses. Anything else
// (strings, floats, casts, unknown names) fails the fold.
func foldConst(text string, env map[string]int64) (int64, bool) {
	f := &folder{src: strings.TrimSpace(text), env: env, ok: true}
	v := f.orExpr()
	f.skipSpace()
	if !f.ok || f.pos != len(f.src) {
		return 0, false
	}
	return v, true
}

type folder struct {
	src string
	pos int
	env map[string]int64
	ok  bool
}

func (f *folder) fail() int64 {
	f.ok = false
	return 0
}

func (f *folder) skipSpace() {
	for f.pos < len(f.src) {
		c := f.src[f.pos]
		if c == ' ' || c == '\t' || c == '\\' || c == '\n' || c == '\r' {
			f.pos++
			continue
		}
		break
	}
}

func (f *folder) peek() byte {
	if f.pos < len(f.src) {
		return f.src[f.pos]
	}
	return 0
}

// accept consumes op if the input starts with it and it is not a prefix
// of a longer operator (<< vs <, | vs ||).
func (f *folder) accept(op string) bool {
	f.skipSpace()
	if !strings.HasPrefix(f.src[f.pos:], op) {
		return false
	}
	rest := f.src[f.pos+len(op):]
	if (op == "<" || op == ">") && strings.HasPrefix(rest, op) {
		return false
	}
	if (op == "|" || op == "&") && strings.HasPrefix(rest, op) {
		return false
	}
	f.pos += len(op)
	return true
}

func (f *folder) orExpr() int64 {
	v := f.xorExpr()
	for f.ok && f.accept("|") {
		v |= f.xorExpr()
	}
	return v
}

func (f *folder) xorExpr() int64 {
	v := f.andExpr()
	for f.ok && f.accept("^") {
		v ^= f.andExpr()
	}
	return v
}

func (f *folder) andExpr() int64 {
	v := f.shiftExpr()
	for f.ok && f.accept("&") {
		v &= f.shiftExpr()
	}
	return v
}

func (f *folder) shiftExpr() int64 {
	v := f.addExpr()
	for f.ok {
		switch {
		case f.accept("<<"):
			n := f.addExpr()
			if n < 0 || n > 63 {
				return f.fail()
			}
			v <<= uint(n)
		case f.accept(">>"):
			n := f.addExpr()
			if n < 0 || n > 63 {
				return f.fail()
			}
			v >>= uint(n)
		default:
			return v
		}
	}
	return v
}

func (f *folder) addExpr() int64 {
	v := f.mulExpr()
	for f.ok {
		switch {
		case f.accept("+"):
			v += f.mulExpr()
		case f.accept("-"):
			v -= f.mulExpr()
		default:
			return v
		}
	}
	return v
}

func (f *folder) mulExpr() int64 {
	v := f.unary()
	for f.ok {
		switch {
		case f.accept("*"):
			v *= f.unary()
		case f.accept("/"):
			d := f.unary()
			if d == 0 {
				return f.fail()
			}
			v /= d
		case f.accept("%"):
			d := f.unary()
			if d == 0 {
				return f.fail()
			}
			v %= d
		default:
			return v
		}
	}
	return v
}

func (f *folder) unary() int64 {
	f.skipSpace()
	switch f.peek() {
	case '+':
		f.pos++
		return f.unary()
	case '-':
		f.pos++
		return -f.unary()
	case '~':
		f.pos++
		return ^f.unary()
	case '!':
		f.pos++
		if f.unary() == 0 {
			return 1
		}
		return 0
	}
	return f.primary()
}

func (f *folder) primary() int64 {
	f.skipSpace()
	switch c := f.peek(); {
	case c == '(':
		f.pos++
		v := f.orExpr()
		f.skipSpace()
		if f.peek() != ')' {
			return f.fail()
		}
		f.pos++
		return v
	case c == '\'':
		return f.charLit()
	case c >= '0' && c <= '9':
		return f.intLit()
	case isIdentStart(c):
		start := f.pos
		for f.pos < len(f.src) && isIdentPart(f.src[f.pos]) {
			f.pos++
		}
		name := f.src[start:f.pos]
		if f.env != nil {
			if v, ok := f.env[name]; ok {
				return v
			}
		}
		return f.fail()
	default:
		return f.fail()
	}
}

func (f *folder) intLit() int64 {
	start := f.pos
	for f.pos < len(f.src) && (isIdentPart(f.src[f.pos]) || f.src[f.pos] == '.') {
		f.pos++
	}
	lit := f.src[start:f.pos]
	if strings.Contains(lit, ".") {
		return f.fail()
	}
	lit = strings.TrimRight(lit, "uUlL")
	if lit == "" {
		return f.fail()
	}
	// ParseUint first: 0xFFFFFFFF style masks overflow ParseInt.
	if u, err := strconv.ParseUint(lit, 0, 64); err == nil {
		return int64(u)
	}
	v, err := strconv.ParseInt(lit, 0, 64)
	if err != nil {
		return f.fail()
	}
	return v
}

func (f *folder) charLit() int64 {
	f.pos++ // opening quote
	if f.pos >= len(f.src) {
		return f.fail()
	}
	var v int64
	if f.src[f.pos] == '\\' {
		f.pos++
		if f.pos >= len(f.src) {
			return f.fail()
		}
		switch f.src[f.pos] {
		case 'n':
			v = '\n'
		case 't':
			v = '\t'
		case 'r':
			v = '\r'
		case '0':
			v = 0
		case '\\':
			v = '\\'
		case '\'':
			v = '\''
		default:
			return f.fail()
		}
		f.pos++
	} else {
		v = int64(f.src[f.pos])
		f.pos++
	}
	if f.pos >= len(f.src) || f.src[f.pos] != '\'' {
		return f.fail()
	}
	f.pos++
	return v
}
