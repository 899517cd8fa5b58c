package paramfile

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SyntaxError locates a rejected construct in a sidecar file.
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Col, e.Msg)
}

// Decode parses a sequence of `name = literal` assignments and returns the
// bound values. Literals are restricted to dicts with string keys, lists,
// tuples, strings, integers, floats, True, False and None. Dicts decode to
// map[string]interface{}, lists and tuples to []interface{}, integers to
// int64 and floats to float64. Any other construct is a *SyntaxError.
func Decode(data []byte) (map[string]interface{}, error) {
	p := &parser{src: string(data), line: 1, col: 1}
	bindings := make(map[string]interface{})
	for {
		p.skipSpace()
		if p.eof() {
			return bindings, nil
		}
		name, err := p.identifier()
		if err != nil {
			return nil, err
		}
		switch name {
		case "True", "False", "None":
			return nil, p.errorf("cannot assign to %s", name)
		}
		p.skipSpace()
		if !p.consume('=') {
			return nil, p.errorf("expected '=' after %s", name)
		}
		value, err := p.value()
		if err != nil {
			return nil, err
		}
		bindings[name] = value
		p.skipSpace()
		p.consume(';')
	}
}

type parser struct {
	src  string
	pos  int
	line int
	col  int
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) peek() rune {
	if p.eof() {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(p.src[p.pos:])
	return r
}

func (p *parser) next() rune {
	r, size := utf8.DecodeRuneInString(p.src[p.pos:])
	p.pos += size
	if r == '\n' {
		p.line++
		p.col = 1
	} else {
		p.col++
	}
	return r
}

func (p *parser) consume(r rune) bool {
	if p.peek() == r && !p.eof() {
		p.next()
		return true
	}
	return false
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return &SyntaxError{Line: p.line, Col: p.col, Msg: fmt.Sprintf(format, args...)}
}

// skipSpace skips whitespace, line continuations and comments.
func (p *parser) skipSpace() {
	for !p.eof() {
		r := p.peek()
		switch {
		case r == '#':
			for !p.eof() && p.peek() != '\n' {
				p.next()
			}
		case r == '\\' && strings.HasPrefix(p.src[p.pos:], "\\\n"):
			p.next()
			p.next()
		case unicode.IsSpace(r):
			p.next()
		default:
			return
		}
	}
}

func (p *parser) identifier() (string, error) {
	start := p.pos
	for !p.eof() {
		r := p.peek()
		if r == '_' || unicode.IsLetter(r) || (p.pos > start && unicode.IsDigit(r)) {
			p.next()
			continue
		}
		break
	}
	if p.pos == start {
		return "", p.errorf("unexpected %q", p.peek())
	}
	return p.src[start:p.pos], nil
}

func (p *parser) value() (interface{}, error) {
	p.skipSpace()
	if p.eof() {
		return nil, p.errorf("unexpected end of input")
	}
	r := p.peek()
	switch {
	case r == '{':
		return p.dict()
	case r == '[':
		p.next()
		return p.sequence(']')
	case r == '(':
		return p.tuple()
	case r == '\'' || r == '"':
		return p.strings()
	case r == 'u' || r == 'U' || r == 'r' || r == 'R' || r == 'b' || r == 'B':
		if p.pos+1 < len(p.src) && (p.src[p.pos+1] == '\'' || p.src[p.pos+1] == '"') {
			return p.strings()
		}
	case r == '-' || r == '+' || r == '.' || unicode.IsDigit(r):
		return p.number()
	}
	name, err := p.identifier()
	if err != nil {
		return nil, err
	}
	switch name {
	case "True":
		return true, nil
	case "False":
		return false, nil
	case "None":
		return nil, nil
	}
	return nil, p.errorf("name '%s' is not a literal", name)
}

func (p *parser) dict() (interface{}, error) {
	p.next()
	out := make(map[string]interface{})
	for {
		p.skipSpace()
		if p.consume('}') {
			return out, nil
		}
		key, err := p.value()
		if err != nil {
			return nil, err
		}
		name, ok := key.(string)
		if !ok {
			return nil, p.errorf("dict key %v is not a string", key)
		}
		p.skipSpace()
		if !p.consume(':') {
			return nil, p.errorf("expected ':' after key '%s'", name)
		}
		value, err := p.value()
		if err != nil {
			return nil, err
		}
		out[name] = value
		p.skipSpace()
		if p.consume(',') {
			continue
		}
		if p.consume('}') {
			return out, nil
		}
		return nil, p.errorf("expected ',' or '}' in dict")
	}
}

// sequence parses items up to closing; the opening bracket is consumed.
func (p *parser) sequence(closing rune) ([]interface{}, error) {
	out := []interface{}{}
	for {
		p.skipSpace()
		if p.consume(closing) {
			return out, nil
		}
		item, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, item)
		p.skipSpace()
		if p.consume(',') {
			continue
		}
		if p.consume(closing) {
			return out, nil
		}
		return nil, p.errorf("expected ',' or '%c'", closing)
	}
}

// tuple parses a parenthesised literal. Without a comma the parentheses
// only group a single value.
func (p *parser) tuple() (interface{}, error) {
	p.next()
	p.skipSpace()
	if p.consume(')') {
		return []interface{}{}, nil
	}
	first, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.consume(')') {
		return first, nil
	}
	if !p.consume(',') {
		return nil, p.errorf("expected ',' or ')'")
	}
	rest, err := p.sequence(')')
	if err != nil {
		return nil, err
	}
	return append([]interface{}{first}, rest...), nil
}

// strings parses one or more adjacent string literals and concatenates them.
func (p *parser) strings() (interface{}, error) {
	var sb strings.Builder
	for {
		s, err := p.stringLiteral()
		if err != nil {
			return nil, err
		}
		sb.WriteString(s)
		p.skipSpace()
		r := p.peek()
		if r == '\'' || r == '"' {
			continue
		}
		if (r == 'u' || r == 'U' || r == 'r' || r == 'R' || r == 'b' || r == 'B') &&
			p.pos+1 < len(p.src) && (p.src[p.pos+1] == '\'' || p.src[p.pos+1] == '"') {
			continue
		}
		return sb.String(), nil
	}
}

func (p *parser) stringLiteral() (string, error) {
	raw := false
	switch p.peek() {
	case 'r', 'R':
		raw = true
		p.next()
	case 'u', 'U', 'b', 'B':
		p.next()
	}
	quoteRune := p.next()
	triple := strings.HasPrefix(p.src[p.pos:], strings.Repeat(string(quoteRune), 2))
	if triple {
		p.next()
		p.next()
	}
	var sb strings.Builder
	for {
		if p.eof() {
			return "", p.errorf("unterminated string")
		}
		r := p.next()
		switch {
		case r == quoteRune && !triple:
			return sb.String(), nil
		case r == quoteRune && strings.HasPrefix(p.src[p.pos:], strings.Repeat(string(quoteRune), 2)):
			p.next()
			p.next()
			return sb.String(), nil
		case r == '\n' && !triple:
			return "", p.errorf("newline in string")
		case r == '\\' && !raw:
			if p.eof() {
				return "", p.errorf("unterminated escape")
			}
			esc := p.next()
			switch esc {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			case '0':
				sb.WriteRune(0)
			case '\n':
			case '\\', '\'', '"':
				sb.WriteRune(esc)
			default:
				sb.WriteRune('\\')
				sb.WriteRune(esc)
			}
		default:
			sb.WriteRune(r)
		}
	}
}

func (p *parser) number() (interface{}, error) {
	start := p.pos
	if p.peek() == '-' || p.peek() == '+' {
		p.next()
		p.skipSpace()
	}
	digitsStart := p.pos
	isFloat := false
scan:
	for !p.eof() {
		switch r := p.peek(); {
		case unicode.IsDigit(r) || r == '_':
			p.next()
		case r == '.':
			isFloat = true
			p.next()
		case r == 'e' || r == 'E':
			isFloat = true
			p.next()
			if p.peek() == '-' || p.peek() == '+' {
				p.next()
			}
		default:
			break scan
		}
	}
	text := strings.ReplaceAll(p.src[digitsStart:p.pos], "_", "")
	if text == "" {
		return nil, p.errorf("malformed number")
	}
	negative := p.src[start] == '-'
	if !isFloat {
		// Python 2 long suffix.
		if p.peek() == 'L' || p.peek() == 'l' {
			p.next()
		}
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			if negative {
				n = -n
			}
			return n, nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, p.errorf("malformed number %q", text)
	}
	if negative {
		f = -f
	}
	return f, nil
}
