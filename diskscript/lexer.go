// Package diskscript compiles a small text language describing raw flux
// layout directly into a disk.RawDisk, grounded on rawdiskscript.cpp's
// ScriptCompiler/ScriptEngine. No parser-generator or combinator library
// appears anywhere in the reference pack for this kind of small hand-rolled
// grammar, so the lexer and recursive-descent parser here are built on the
// standard library only; see DESIGN.md.
package diskscript

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokError
	tokInt
	tokTrack
	tokRepeat
	tokByte
	tokBytes
	tokSpecialByte
	tokPadBits
	tokCRCBegin
	tokCRCEnd
	tokFlux
	tokNoFlux
	tokGeometry
	tokPunct // one of : ; { } ,
)

var keywords = map[string]tokenKind{
	"track":        tokTrack,
	"repeat":       tokRepeat,
	"byte":         tokByte,
	"bytes":        tokBytes,
	"special_byte": tokSpecialByte,
	"pad_bits":     tokPadBits,
	"crc_begin":    tokCRCBegin,
	"crc_end":      tokCRCEnd,
	"flux":         tokFlux,
	"no_flux":      tokNoFlux,
	"geometry":     tokGeometry,
}

type token struct {
	kind  tokenKind
	punct byte
	ival  int64
	line  int
}

type lexer struct {
	src     []byte
	pos     int
	line    int
	pushed  *token
	lastErr error
}

func newLexer(src []byte) *lexer {
	return &lexer{src: src, line: 1}
}

func (l *lexer) push(t token) {
	l.pushed = &t
}

func (l *lexer) errf(format string, args ...any) token {
	l.lastErr = fmt.Errorf("line %d: %s", l.line, fmt.Sprintf(format, args...))
	return token{kind: tokError, line: l.line}
}

func (l *lexer) next() token {
	if l.pushed != nil {
		t := *l.pushed
		l.pushed = nil
		return t
	}

	for {
		if l.pos >= len(l.src) {
			return token{kind: tokEOF, line: l.line}
		}

		c := l.src[l.pos]
		l.pos++

		if c == '/' && l.pos < len(l.src) {
			if l.src[l.pos] == '*' {
				l.pos++
				closed := false
				for l.pos < len(l.src) {
					if l.src[l.pos] == '*' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '/' {
						l.pos += 2
						closed = true
						break
					}
					if l.src[l.pos] == '\n' {
						l.line++
					}
					l.pos++
				}
				if !closed {
					return l.errf("unterminated multi-line comment")
				}
				continue
			}
			if l.src[l.pos] == '/' {
				for l.pos < len(l.src) && l.src[l.pos] != '\n' && l.src[l.pos] != '\r' {
					l.pos++
				}
				continue
			}
		}

		if c == '\n' || c == '\r' {
			if l.pos < len(l.src) && ((c == '\n' && l.src[l.pos] == '\r') || (c == '\r' && l.src[l.pos] == '\n')) {
				l.pos++
			}
			l.line++
			continue
		}

		if c == ' ' || c == '\t' {
			continue
		}

		if strings.IndexByte(":;{},", c) >= 0 {
			return token{kind: tokPunct, punct: c, line: l.line}
		}

		if c == '0' && l.pos < len(l.src) && (l.src[l.pos] == 'x' || l.src[l.pos] == 'X') {
			l.pos++
			start := l.pos
			var v int64
			for l.pos < len(l.src) {
				d, ok := hexDigit(l.src[l.pos])
				if !ok {
					break
				}
				v = v*16 + int64(d)
				l.pos++
			}
			if l.pos == start {
				return l.errf("invalid hex constant")
			}
			return token{kind: tokInt, ival: v, line: l.line}
		}

		if c >= '0' && c <= '9' {
			v := int64(c - '0')
			for l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '9' {
				v = v*10 + int64(l.src[l.pos]-'0')
				l.pos++
			}
			return token{kind: tokInt, ival: v, line: l.line}
		}

		if isAlpha(c) {
			start := l.pos - 1
			for l.pos < len(l.src) && isAlnum(l.src[l.pos]) {
				l.pos++
			}
			word := string(l.src[start:l.pos])
			if kind, ok := keywords[word]; ok {
				return token{kind: kind, line: l.line}
			}
			return l.errf("unknown identifier %q", word)
		}

		return l.errf("unexpected character %q", c)
	}
}

func hexDigit(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	default:
		return 0, false
	}
}

func isAlpha(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isAlnum(c byte) bool {
	return isAlpha(c) || (c >= '0' && c <= '9')
}
