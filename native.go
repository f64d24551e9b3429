package jinja

import (
	"strconv"
	"strings"
)

// nativeWriter collects the chunks a render pass produces instead of
// immediately stringifying them, the way jinja2.nativetypes.NativeTemplate
// keeps each {{ expr }} chunk in its native Go type until the very end.
type nativeWriter struct {
	chunks []interface{}
}

func (nw *nativeWriter) Write(p []byte) (int, error) {
	nw.chunks = append(nw.chunks, string(p))
	return len(p), nil
}

// RenderNative implements spec.md §8 scenario 7: a template consisting of
// a single output chunk returns that chunk's native Go value rather than
// its string form; multiple chunks concatenate to a string which is then
// re-parsed as a literal if it looks like one (so a for-loop of ints that
// stringifies to "1234" comes back as the integer 1234, matching the
// upstream NativeTemplate contract original_source's nativetypes tests
// describe).
func (t *Template) RenderNative(vars map[string]interface{}) (interface{}, error) {
	ev := &evaluator{env: t.Env}
	ctx := NewContext(t.Env, t.Name, vars, false)
	body, chain, err := resolveChain(ev, ctx, t, 0)
	if err != nil {
		return nil, err
	}
	nw := &nativeWriter{}
	if err := ev.renderBody(ctx, body, chain, nw); err != nil {
		return nil, err
	}
	return nativeConcat(nw.chunks), nil
}

func nativeConcat(chunks []interface{}) interface{} {
	if len(chunks) == 0 {
		return ""
	}
	if len(chunks) == 1 {
		return chunks[0]
	}
	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(ToString(c))
	}
	s := sb.String()
	if v, ok := parseLiteral(s); ok {
		return v
	}
	return s
}

// parseLiteral parses s as a Python-style literal (the subset
// ast.literal_eval accepts: numbers, None/True/False, quoted strings, and
// lists/tuples/dicts of literals), returning ok=false for anything else so
// the caller falls back to the plain string.
func parseLiteral(s string) (interface{}, bool) {
	lp := &literalParser{s: strings.TrimSpace(s)}
	v, ok := lp.parseValue()
	if !ok {
		return nil, false
	}
	lp.skipSpace()
	if lp.pos != len(lp.s) {
		return nil, false
	}
	return v, true
}

type literalParser struct {
	s   string
	pos int
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.s) && (p.s[p.pos] == ' ' || p.s[p.pos] == '\t' || p.s[p.pos] == '\n') {
		p.pos++
	}
}

func (p *literalParser) parseValue() (interface{}, bool) {
	p.skipSpace()
	if p.pos >= len(p.s) {
		return nil, false
	}
	switch c := p.s[p.pos]; {
	case c == '[':
		return p.parseSeq('[', ']')
	case c == '(':
		return p.parseSeq('(', ')')
	case c == '{':
		return p.parseDict()
	case c == '\'' || c == '"':
		return p.parseString(c)
	case strings.HasPrefix(p.s[p.pos:], "True"):
		p.pos += 4
		return true, true
	case strings.HasPrefix(p.s[p.pos:], "False"):
		p.pos += 5
		return false, true
	case strings.HasPrefix(p.s[p.pos:], "None"):
		p.pos += 4
		return nil, true
	default:
		return p.parseNumber()
	}
}

func (p *literalParser) parseSeq(open, close byte) (interface{}, bool) {
	if p.s[p.pos] != open {
		return nil, false
	}
	p.pos++
	var out []interface{}
	for {
		p.skipSpace()
		if p.pos >= len(p.s) {
			return nil, false
		}
		if p.s[p.pos] == close {
			p.pos++
			return out, true
		}
		v, ok := p.parseValue()
		if !ok {
			return nil, false
		}
		out = append(out, v)
		p.skipSpace()
		if p.pos < len(p.s) && p.s[p.pos] == ',' {
			p.pos++
			continue
		}
		if p.pos < len(p.s) && p.s[p.pos] == close {
			p.pos++
			return out, true
		}
		return nil, false
	}
}

func (p *literalParser) parseDict() (interface{}, bool) {
	if p.s[p.pos] != '{' {
		return nil, false
	}
	p.pos++
	out := map[string]interface{}{}
	for {
		p.skipSpace()
		if p.pos >= len(p.s) {
			return nil, false
		}
		if p.s[p.pos] == '}' {
			p.pos++
			return out, true
		}
		key, ok := p.parseValue()
		if !ok {
			return nil, false
		}
		p.skipSpace()
		if p.pos >= len(p.s) || p.s[p.pos] != ':' {
			return nil, false
		}
		p.pos++
		val, ok := p.parseValue()
		if !ok {
			return nil, false
		}
		out[ToString(key)] = val
		p.skipSpace()
		if p.pos < len(p.s) && p.s[p.pos] == ',' {
			p.pos++
			continue
		}
		if p.pos < len(p.s) && p.s[p.pos] == '}' {
			p.pos++
			return out, true
		}
		return nil, false
	}
}

func (p *literalParser) parseString(quote byte) (interface{}, bool) {
	p.pos++
	var sb strings.Builder
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if c == quote {
			p.pos++
			return sb.String(), true
		}
		if c == '\\' && p.pos+1 < len(p.s) {
			p.pos++
			switch p.s[p.pos] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			default:
				sb.WriteByte(p.s[p.pos])
			}
			p.pos++
			continue
		}
		sb.WriteByte(c)
		p.pos++
	}
	return nil, false
}

func (p *literalParser) parseNumber() (interface{}, bool) {
	start := p.pos
	if p.pos < len(p.s) && (p.s[p.pos] == '-' || p.s[p.pos] == '+') {
		p.pos++
	}
	sawDigit := false
	isFloat := false
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if c >= '0' && c <= '9' {
			sawDigit = true
			p.pos++
			continue
		}
		if c == '.' && !isFloat {
			isFloat = true
			p.pos++
			continue
		}
		if (c == 'e' || c == 'E') && sawDigit {
			isFloat = true
			p.pos++
			if p.pos < len(p.s) && (p.s[p.pos] == '+' || p.s[p.pos] == '-') {
				p.pos++
			}
			continue
		}
		break
	}
	if !sawDigit {
		p.pos = start
		return nil, false
	}
	text := p.s[start:p.pos]
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, false
		}
		return f, true
	}
	i, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, false
	}
	return i, true
}
