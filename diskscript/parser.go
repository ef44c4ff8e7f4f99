package diskscript

import "fmt"

type parser struct {
	lex *lexer
}

// Parse compiles script source into a list of top-level statements.
func Parse(src []byte) ([]stmt, error) {
	p := &parser{lex: newLexer(src)}

	var children []stmt
	for {
		t := p.lex.next()
		if t.kind == tokEOF {
			break
		}
		if t.kind == tokError {
			return nil, p.lex.lastErr
		}
		p.lex.push(t)

		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		children = append(children, s)
	}

	return children, nil
}

func (p *parser) parseStatement() (stmt, error) {
	t := p.lex.next()
	if t.kind == tokError {
		return nil, p.lex.lastErr
	}

	var s stmt

	switch t.kind {
	case tokTrack:
		trackExpr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		var sideExpr *expr
		next := p.lex.next()
		if next.kind == tokPunct && next.punct == ',' {
			sideExpr, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		} else {
			p.lex.push(next)
		}
		child, err := p.parseChildStatement()
		if err != nil {
			return nil, err
		}
		return &stmtTrack{track: trackExpr, side: sideExpr, child: child}, nil

	case tokRepeat:
		countExpr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		child, err := p.parseChildStatement()
		if err != nil {
			return nil, err
		}
		return &stmtRepeat{count: countExpr, child: child}, nil

	case tokByte:
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		s = &stmtByte{special: false, value: e}

	case tokBytes:
		var data []byte
		for {
			tok := p.lex.next()
			if tok.kind == tokError {
				return nil, p.lex.lastErr
			}
			if tok.kind != tokInt {
				return nil, fmt.Errorf("line %d: expected integral constant", tok.line)
			}
			if tok.ival < 0 || tok.ival > 255 {
				return nil, fmt.Errorf("line %d: value out of range (must be 0-255)", tok.line)
			}
			data = append(data, byte(tok.ival))

			tok = p.lex.next()
			if tok.kind == tokPunct && tok.punct == ';' {
				return &stmtBytes{data: data}, nil
			}
			if !(tok.kind == tokPunct && tok.punct == ',') {
				return nil, fmt.Errorf("line %d: expected ',' or end of statement", tok.line)
			}
		}

	case tokSpecialByte:
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		s = &stmtByte{special: true, value: e}

	case tokPadBits:
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(','); err != nil {
			return nil, err
		}
		e2, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		s = &stmtPadBits{count: e, value: e2}

	case tokCRCBegin:
		s = &stmtCRCBegin{}

	case tokCRCEnd:
		s = &stmtCRCEnd{}

	case tokFlux:
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		s = &stmtFlux{count: e}

	case tokNoFlux:
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		s = &stmtNoFlux{count: e}

	case tokGeometry:
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(','); err != nil {
			return nil, err
		}
		e2, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		s = &stmtGeometry{tracks: e, sides: e2}

	default:
		return nil, fmt.Errorf("line %d: expected statement", t.line)
	}

	if err := p.expectPunct(';'); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *parser) parseChildStatement() (stmt, error) {
	t := p.lex.next()

	if t.kind == tokPunct && t.punct == ':' {
		return p.parseStatement()
	}

	if t.kind == tokPunct && t.punct == '{' {
		var children []stmt
		for {
			tok := p.lex.next()
			if tok.kind == tokPunct && tok.punct == '}' {
				break
			}
			p.lex.push(tok)

			c, err := p.parseStatement()
			if err != nil {
				return nil, err
			}
			children = append(children, c)
		}

		switch len(children) {
		case 0:
			return &stmtBlock{}, nil
		case 1:
			return children[0], nil
		default:
			return &stmtBlock{children: children}, nil
		}
	}

	if t.kind == tokError {
		return nil, p.lex.lastErr
	}
	return nil, fmt.Errorf("line %d: expected child statement", t.line)
}

func (p *parser) parseExpr() (*expr, error) {
	t := p.lex.next()
	if t.kind == tokInt {
		return &expr{value: int32(t.ival)}, nil
	}
	if t.kind == tokError {
		return nil, p.lex.lastErr
	}
	return nil, fmt.Errorf("line %d: expected value", t.line)
}

func (p *parser) expectPunct(c byte) error {
	t := p.lex.next()
	if t.kind == tokPunct && t.punct == c {
		return nil
	}
	if t.kind == tokError {
		return p.lex.lastErr
	}
	return fmt.Errorf("line %d: expected %q", t.line, c)
}
