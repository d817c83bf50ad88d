// Package parse turns surface syntax fragments into ast.Fragment trees.
//
// The grammar is the small tidy expression language accepted by the
// verbs: identifiers, literals, calls with identifier heads, unary - and
// !, the usual arithmetic/comparison/logical operators, ":" ranges,
// "=>" clause arms, top-level "name = expr" assignment, and the "!!"
// interpolation sigil.
package parse

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/tidalframe/tidal/internal/ast"
	"github.com/tidalframe/tidal/internal/engine"
)

// ErrSyntax indicates that a fragment could not be parsed.
var ErrSyntax = errors.New("invalid syntax")

// Fragment parses a single verb argument.
func Fragment(src string) (ast.Fragment, error) {
	p := &parser{src: []rune(src), orig: src}
	frag, err := p.parseAssign()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.errf("unexpected character %q", p.peek())
	}
	return frag, nil
}

// VerbCall splits a pipeline stanza of the form "verb(arg, arg, ...)"
// into the verb name and the raw argument sources. Arguments are split
// at top-level commas only; each is a fragment source string for
// Fragment.
func VerbCall(src string) (string, []string, error) {
	p := &parser{src: []rune(src), orig: src}
	p.skipSpace()
	name, ok := p.readIdent()
	if !ok {
		return "", nil, p.errf("expected verb name")
	}
	p.skipSpace()
	if p.eof() {
		return name, nil, nil
	}
	if p.peek() != '(' {
		return "", nil, p.errf("expected '(' after verb %s", name)
	}
	open := p.pos
	p.pos++
	depth := 1
	var args []string
	start := p.pos
	for !p.eof() {
		switch p.peek() {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
			if depth == 0 {
				arg := strings.TrimSpace(string(p.src[start:p.pos]))
				if arg != "" {
					args = append(args, arg)
				}
				p.pos++
				p.skipSpace()
				if !p.eof() {
					return "", nil, p.errf("unexpected character %q", p.peek())
				}
				return name, args, nil
			}
		case ',':
			if depth == 1 {
				arg := strings.TrimSpace(string(p.src[start:p.pos]))
				if arg == "" {
					return "", nil, p.errf("empty argument")
				}
				args = append(args, arg)
				start = p.pos + 1
			}
		case '"', '\'':
			if err := p.skipString(); err != nil {
				return "", nil, err
			}
			continue
		}
		p.pos++
	}
	p.pos = open
	return "", nil, p.errf("unbalanced parentheses")
}

type parser struct {
	src  []rune
	orig string
	pos  int
}

func (p *parser) errf(format string, args ...any) error {
	return fmt.Errorf("%w: %s at position %d in %q",
		ErrSyntax, fmt.Sprintf(format, args...), p.pos+1, p.orig)
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() rune {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) peekAt(off int) rune {
	if p.pos+off >= len(p.src) {
		return 0
	}
	return p.src[p.pos+off]
}

func (p *parser) skipSpace() {
	for !p.eof() && unicode.IsSpace(p.peek()) {
		p.pos++
	}
}

// parseAssign handles the top-level "name = expr" naming form. "=" is
// assignment only here; everywhere else equality is "==".
func (p *parser) parseAssign() (ast.Fragment, error) {
	p.skipSpace()
	save := p.pos
	if name, ok := p.readIdent(); ok {
		p.skipSpace()
		if p.peek() == '=' && p.peekAt(1) != '=' && p.peekAt(1) != '>' {
			p.pos++
			expr, err := p.parseClause()
			if err != nil {
				return nil, err
			}
			return ast.Assign{Name: name, Expr: expr}, nil
		}
	}
	p.pos = save
	return p.parseClause()
}

// parseClause handles the "=>" case_when clause arm, the loosest
// binding operator. It does not chain.
func (p *parser) parseClause() (ast.Fragment, error) {
	x, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.peek() == '=' && p.peekAt(1) == '>' {
		p.pos += 2
		y, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		return ast.Binary{Op: "=>", X: x, Y: y}, nil
	}
	return x, nil
}

func (p *parser) parseOr() (ast.Fragment, error) {
	x, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		switch {
		case p.peek() == '|' && p.peekAt(1) == '|':
			p.pos += 2
		case p.peek() == '|':
			p.pos++
		default:
			return x, nil
		}
		y, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		x = ast.Binary{Op: "||", X: x, Y: y}
	}
}

func (p *parser) parseAnd() (ast.Fragment, error) {
	x, err := p.parseCmp()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		switch {
		case p.peek() == '&' && p.peekAt(1) == '&':
			p.pos += 2
		case p.peek() == '&':
			p.pos++
		default:
			return x, nil
		}
		y, err := p.parseCmp()
		if err != nil {
			return nil, err
		}
		x = ast.Binary{Op: "&&", X: x, Y: y}
	}
}

func (p *parser) parseCmp() (ast.Fragment, error) {
	x, err := p.parseRange()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	var op string
	switch {
	case p.peek() == '=' && p.peekAt(1) == '=':
		op = "=="
	case p.peek() == '!' && p.peekAt(1) == '=':
		op = "!="
	case p.peek() == '<' && p.peekAt(1) == '=':
		op = "<="
	case p.peek() == '>' && p.peekAt(1) == '=':
		op = ">="
	case p.peek() == '<':
		op = "<"
	case p.peek() == '>':
		op = ">"
	default:
		return x, nil
	}
	p.pos += len(op)
	y, err := p.parseRange()
	if err != nil {
		return nil, err
	}
	return ast.Binary{Op: op, X: x, Y: y}, nil
}

func (p *parser) parseRange() (ast.Fragment, error) {
	x, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.peek() == ':' {
		p.pos++
		y, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		return ast.Binary{Op: ":", X: x, Y: y}, nil
	}
	return x, nil
}

func (p *parser) parseAdd() (ast.Fragment, error) {
	x, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		op := p.peek()
		if op != '+' && op != '-' {
			return x, nil
		}
		p.pos++
		y, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		x = ast.Binary{Op: string(op), X: x, Y: y}
	}
}

func (p *parser) parseMul() (ast.Fragment, error) {
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		op := p.peek()
		if op != '*' && op != '/' && op != '%' {
			return x, nil
		}
		p.pos++
		y, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		x = ast.Binary{Op: string(op), X: x, Y: y}
	}
}

func (p *parser) parseUnary() (ast.Fragment, error) {
	p.skipSpace()
	switch {
	case p.peek() == '!' && p.peekAt(1) == '!':
		return p.parseInterp()
	case p.peek() == '-':
		p.pos++
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.Unary{Op: "-", X: x}, nil
	case p.peek() == '!':
		p.pos++
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.Unary{Op: "!", X: x}, nil
	}
	return p.parsePrimary()
}

// parseInterp captures the raw source span marked by "!!". The span is
// either a parenthesized expression or an identifier chain with member
// access, calls, and index suffixes; its contents are not parsed here.
func (p *parser) parseInterp() (ast.Fragment, error) {
	p.pos += 2
	p.skipSpace()
	start := p.pos
	if p.peek() == '(' || p.peek() == '[' {
		if err := p.skipBalanced(); err != nil {
			return nil, err
		}
		return ast.Interp{Src: string(p.src[start:p.pos])}, nil
	}
	if _, ok := p.readIdent(); !ok {
		return nil, p.errf("expected expression after !!")
	}
	for !p.eof() {
		switch p.peek() {
		case '(', '[':
			if err := p.skipBalanced(); err != nil {
				return nil, err
			}
		case '.':
			p.pos++
			if _, ok := p.readIdent(); !ok {
				return nil, p.errf("expected identifier after '.'")
			}
		default:
			return ast.Interp{Src: string(p.src[start:p.pos])}, nil
		}
	}
	return ast.Interp{Src: string(p.src[start:p.pos])}, nil
}

func (p *parser) parsePrimary() (ast.Fragment, error) {
	p.skipSpace()
	switch {
	case p.eof():
		return nil, p.errf("unexpected end of fragment")
	case p.peek() == '(':
		p.pos++
		x, err := p.parseClause()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return nil, p.errf("expected ')'")
		}
		p.pos++
		return x, nil
	case p.peek() == '"' || p.peek() == '\'':
		return p.parseString()
	case unicode.IsDigit(p.peek()):
		return p.parseNumber()
	}

	name, ok := p.readIdent()
	if !ok {
		return nil, p.errf("unexpected character %q", p.peek())
	}
	switch name {
	case "true", "TRUE":
		return ast.Literal{Value: engine.Bool(true)}, nil
	case "false", "FALSE":
		return ast.Literal{Value: engine.Bool(false)}, nil
	case "NA", "NULL":
		return ast.Literal{Value: engine.Null{}}, nil
	}
	p.skipSpace()
	if p.peek() == '(' {
		p.pos++
		var args []ast.Fragment
		p.skipSpace()
		if p.peek() == ')' {
			p.pos++
			return ast.Call{Fn: name, Args: args}, nil
		}
		for {
			arg, err := p.parseAssign()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			p.skipSpace()
			switch p.peek() {
			case ',':
				p.pos++
			case ')':
				p.pos++
				return ast.Call{Fn: name, Args: args}, nil
			default:
				return nil, p.errf("expected ',' or ')' in call to %s", name)
			}
		}
	}
	return ast.Ident{Name: name}, nil
}

func (p *parser) parseNumber() (ast.Fragment, error) {
	start := p.pos
	float := false
	for !p.eof() {
		c := p.peek()
		switch {
		case unicode.IsDigit(c):
			p.pos++
		case c == '.' && !float && unicode.IsDigit(p.peekAt(1)):
			float = true
			p.pos++
		case (c == 'e' || c == 'E') && p.pos > start:
			float = true
			p.pos++
			if p.peek() == '+' || p.peek() == '-' {
				p.pos++
			}
		default:
			goto done
		}
	}
done:
	text := string(p.src[start:p.pos])
	if float {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, p.errf("invalid number %q", text)
		}
		return ast.Literal{Value: engine.Float(f)}, nil
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, p.errf("invalid number %q", text)
	}
	return ast.Literal{Value: engine.Int(n)}, nil
}

func (p *parser) parseString() (ast.Fragment, error) {
	quote := p.peek()
	p.pos++
	var sb strings.Builder
	for !p.eof() {
		c := p.peek()
		switch c {
		case quote:
			p.pos++
			return ast.Literal{Value: engine.Str(norm.NFC.String(sb.String()))}, nil
		case '\\':
			p.pos++
			if p.eof() {
				return nil, p.errf("unterminated string")
			}
			switch p.peek() {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '\\', '"', '\'':
				sb.WriteRune(p.peek())
			default:
				return nil, p.errf("unknown escape \\%c", p.peek())
			}
			p.pos++
		default:
			sb.WriteRune(c)
			p.pos++
		}
	}
	return nil, p.errf("unterminated string")
}

// readIdent reads an identifier. Identifiers may contain dots in the R
// style (".default", "dep.delay") and are NFC-normalized so column
// lookup is stable across input sources.
func (p *parser) readIdent() (string, bool) {
	start := p.pos
	if p.eof() {
		return "", false
	}
	c := p.peek()
	if !unicode.IsLetter(c) && c != '_' && c != '.' {
		return "", false
	}
	for !p.eof() {
		c := p.peek()
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' || c == '.' {
			p.pos++
		} else {
			break
		}
	}
	text := string(p.src[start:p.pos])
	if text == "." || text == "" {
		p.pos = start
		return "", false
	}
	return norm.NFC.String(text), true
}

func (p *parser) skipBalanced() error {
	open := p.peek()
	var closing rune
	switch open {
	case '(':
		closing = ')'
	case '[':
		closing = ']'
	default:
		return p.errf("expected '(' or '['")
	}
	depth := 0
	for !p.eof() {
		switch p.peek() {
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				p.pos++
				return nil
			}
		case '"', '\'':
			if err := p.skipString(); err != nil {
				return err
			}
			continue
		}
		p.pos++
	}
	return p.errf("unbalanced %q", open)
}

func (p *parser) skipString() error {
	quote := p.peek()
	p.pos++
	for !p.eof() {
		switch p.peek() {
		case '\\':
			p.pos++
		case quote:
			p.pos++
			return nil
		}
		p.pos++
	}
	return p.errf("unterminated string")
}
