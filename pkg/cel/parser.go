package cel

import (
	"fmt"

	"github.com/smilemakc/chainflow/pkg/bigmath"
)

// Parser is a recursive-descent, precedence-climbing parser over the
// Lexer's token stream. Precedence, low to high: ternary, ||, &&, in,
// equality, relational, additive, multiplicative, unary, postfix
// (member/index/call).
type Parser struct {
	lex  *Lexer
	cur  Token
	expr string
}

// Parse compiles expr into an AST.
func Parse(expr string) (Node, error) {
	p := &Parser{lex: NewLexer(expr), expr: expr}
	if err := p.next(); err != nil {
		return nil, err
	}
	node, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != TokEOF {
		return nil, fmt.Errorf("unexpected token %q at %d", p.cur.Text, p.cur.Pos)
	}
	return node, nil
}

func (p *Parser) next() error {
	tok, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *Parser) expect(k TokenKind, what string) error {
	if p.cur.Kind != k {
		return fmt.Errorf("expected %s at %d, got %q", what, p.cur.Pos, p.cur.Text)
	}
	return p.next()
}

func (p *Parser) parseTernary() (Node, error) {
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != TokQuestion {
		return cond, nil
	}
	p.next()
	x, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokColon, ":"); err != nil {
		return nil, err
	}
	y, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	return TernaryNode{Cond: cond, X: x, Y: y}, nil
}

func (p *Parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == TokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = BinaryNode{Op: TokOr, X: left, Y: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Node, error) {
	left, err := p.parseIn()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == TokAnd {
		p.next()
		right, err := p.parseIn()
		if err != nil {
			return nil, err
		}
		left = BinaryNode{Op: TokAnd, X: left, Y: right}
	}
	return left, nil
}

func (p *Parser) parseIn() (Node, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == TokIn {
		p.next()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = InNode{X: left, Y: right}
	}
	return left, nil
}

var equalityOps = map[TokenKind]bool{TokEq: true, TokNeq: true}

func (p *Parser) parseEquality() (Node, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for equalityOps[p.cur.Kind] {
		op := p.cur.Kind
		p.next()
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = BinaryNode{Op: op, X: left, Y: right}
	}
	return left, nil
}

var relationalOps = map[TokenKind]bool{TokLt: true, TokLte: true, TokGt: true, TokGte: true}

func (p *Parser) parseRelational() (Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for relationalOps[p.cur.Kind] {
		op := p.cur.Kind
		p.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = BinaryNode{Op: op, X: left, Y: right}
	}
	return left, nil
}

func (p *Parser) parseAdditive() (Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == TokPlus || p.cur.Kind == TokMinus {
		op := p.cur.Kind
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = BinaryNode{Op: op, X: left, Y: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == TokStar || p.cur.Kind == TokSlash {
		op := p.cur.Kind
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = BinaryNode{Op: op, X: left, Y: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (Node, error) {
	switch p.cur.Kind {
	case TokNot:
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return UnaryNode{Op: TokNot, X: x}, nil
	case TokMinus:
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return UnaryNode{Op: TokMinus, X: x}, nil
	default:
		return p.parsePostfix()
	}
}

// parsePostfix parses a primary expression followed by any chain of
// `.prop`, `.method(args)`, and `[index]` operators. A run of plain
// `.prop` hops off a PathNode collapses back into one dotted path, so
// runtime-tree lookups like `nodes.x.outputs.amount` still resolve
// through a single Tree.Get call; a hop followed by `(` is a
// receiver-prepend call instead.
func (p *Parser) parsePostfix() (Node, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur.Kind {
		case TokDot:
			p.next()
			if p.cur.Kind != TokIdent {
				return nil, fmt.Errorf("expected identifier after '.' at %d, got %q", p.cur.Pos, p.cur.Text)
			}
			name := p.cur.Text
			p.next()
			if p.cur.Kind == TokLParen {
				args, err := p.parseArgs()
				if err != nil {
					return nil, err
				}
				node = CallNode{Recv: node, Name: name, Args: args}
				continue
			}
			if pn, ok := node.(PathNode); ok {
				node = PathNode{Path: pn.Path + "." + name}
			} else {
				node = MemberNode{X: node, Prop: name}
			}
		case TokLBracket:
			p.next()
			idx, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			if err := p.expect(TokRBracket, "]"); err != nil {
				return nil, err
			}
			node = IndexNode{X: node, Index: idx}
		default:
			return node, nil
		}
	}
}

func (p *Parser) parsePrimary() (Node, error) {
	switch p.cur.Kind {
	case TokNumber:
		dec, err := bigmath.Parse(p.cur.Text)
		if err != nil {
			return nil, fmt.Errorf("invalid number literal %q at %d: %w", p.cur.Text, p.cur.Pos, err)
		}
		p.next()
		return LitNode{Value: dec}, nil
	case TokString:
		v := p.cur.Text
		p.next()
		return LitNode{Value: v}, nil
	case TokTrue:
		p.next()
		return LitNode{Value: true}, nil
	case TokFalse:
		p.next()
		return LitNode{Value: false}, nil
	case TokNull:
		p.next()
		return NullNode{}, nil
	case TokLParen:
		p.next()
		inner, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokRParen, ")"); err != nil {
			return nil, err
		}
		return inner, nil
	case TokLBracket:
		return p.parseList()
	case TokLBrace:
		return p.parseMap()
	case TokIdent:
		name := p.cur.Text
		p.next()
		if p.cur.Kind == TokLParen {
			return p.parseCall(name)
		}
		return PathNode{Path: name}, nil
	default:
		return nil, fmt.Errorf("unexpected token %q at %d", p.cur.Text, p.cur.Pos)
	}
}

func (p *Parser) parseList() (Node, error) {
	if err := p.expect(TokLBracket, "["); err != nil {
		return nil, err
	}
	var elems []Node
	for p.cur.Kind != TokRBracket {
		e, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if p.cur.Kind == TokComma {
			p.next()
			continue
		}
		break
	}
	if err := p.expect(TokRBracket, "]"); err != nil {
		return nil, err
	}
	return ListNode{Elems: elems}, nil
}

func (p *Parser) parseMap() (Node, error) {
	if err := p.expect(TokLBrace, "{"); err != nil {
		return nil, err
	}
	var entries []MapEntry
	for p.cur.Kind != TokRBrace {
		var key Node
		switch p.cur.Kind {
		case TokString:
			key = LitNode{Value: p.cur.Text}
			p.next()
		case TokIdent:
			key = LitNode{Value: p.cur.Text}
			p.next()
		default:
			return nil, fmt.Errorf("expected map key at %d, got %q", p.cur.Pos, p.cur.Text)
		}
		if err := p.expect(TokColon, ":"); err != nil {
			return nil, err
		}
		val, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		entries = append(entries, MapEntry{Key: key, Value: val})
		if p.cur.Kind == TokComma {
			p.next()
			continue
		}
		break
	}
	if err := p.expect(TokRBrace, "}"); err != nil {
		return nil, err
	}
	return MapNode{Entries: entries}, nil
}

func (p *Parser) parseArgs() ([]Node, error) {
	if err := p.expect(TokLParen, "("); err != nil {
		return nil, err
	}
	var args []Node
	for p.cur.Kind != TokRParen {
		arg, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.cur.Kind == TokComma {
			p.next()
			continue
		}
		break
	}
	if err := p.expect(TokRParen, ")"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parseCall(name string) (Node, error) {
	args, err := p.parseArgs()
	if err != nil {
		return nil, err
	}
	return CallNode{Name: name, Args: args}, nil
}
