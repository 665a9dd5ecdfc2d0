package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// maxDepth bounds expression nesting so untrusted input cannot exhaust the
// stack.
const maxDepth = 100

type parser struct {
	tokens []token
	pos    int
	depth  int
}

func parse(tokens []token) (node, error) {
	p := &parser{tokens: tokens}

	root, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}

	if p.current().kind != tokEOF {
		return nil, fmt.Errorf("unexpected token %q at position %d", p.current().text, p.current().pos)
	}

	return root, nil
}

func (p *parser) current() token {
	return p.tokens[p.pos]
}

func (p *parser) advance() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}

	return tok
}

func bindingPower(op string) int {
	switch op {
	case "||":
		return 1
	case "&&":
		return 2
	case "==", "!=":
		return 3
	case "<", ">", "<=", ">=":
		return 4
	case "+", "-":
		return 5
	case "*", "/", "%":
		return 6
	default:
		return 0
	}
}

func (p *parser) parseExpression(minPower int) (node, error) {
	p.depth++
	defer func() { p.depth-- }()

	if p.depth > maxDepth {
		return nil, fmt.Errorf("expression nesting exceeds %d levels", maxDepth)
	}

	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.current()
		if tok.kind != tokOperator {
			break
		}

		power := bindingPower(tok.text)
		if power == 0 || power <= minPower {
			break
		}

		p.advance()

		right, err := p.parseExpression(power)
		if err != nil {
			return nil, err
		}

		left = &binaryNode{op: tok.text, left: left, right: right}
	}

	return left, nil
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.advance()

	switch tok.kind {
	case tokNumber:
		value, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at position %d", tok.text, tok.pos)
		}

		return &literalNode{value: value}, nil

	case tokString:
		return &literalNode{value: tok.text}, nil

	case tokIdent:
		switch tok.text {
		case "true":
			return &literalNode{value: true}, nil
		case "false":
			return &literalNode{value: false}, nil
		case "null":
			return &literalNode{value: nil}, nil
		}

		if p.current().kind == tokLParen {
			return p.parseCall(tok)
		}

		return &varNode{path: strings.Split(tok.text, ".")}, nil

	case tokOperator:
		if tok.text == "-" || tok.text == "!" {
			operand, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}

			return &unaryNode{op: tok.text, operand: operand}, nil
		}

		return nil, fmt.Errorf("unexpected operator %q at position %d", tok.text, tok.pos)

	case tokLParen:
		inner, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}

		if p.current().kind != tokRParen {
			return nil, fmt.Errorf("missing closing parenthesis at position %d", p.current().pos)
		}

		p.advance()

		return inner, nil

	default:
		return nil, fmt.Errorf("unexpected token at position %d", tok.pos)
	}
}

func (p *parser) parseCall(name token) (node, error) {
	if strings.Contains(name.text, ".") {
		return nil, fmt.Errorf("unknown function %q at position %d", name.text, name.pos)
	}

	p.advance() // consume (

	args := make([]node, 0)

	if p.current().kind == tokRParen {
		p.advance()

		return &callNode{name: name.text, args: args}, nil
	}

	for {
		arg, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}

		args = append(args, arg)

		tok := p.advance()

		if tok.kind == tokRParen {
			return &callNode{name: name.text, args: args}, nil
		}

		if tok.kind != tokComma {
			return nil, fmt.Errorf("expected , or ) at position %d", tok.pos)
		}
	}
}
