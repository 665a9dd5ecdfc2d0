package expr

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokOperator
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// twoCharOperators are matched before single-char ones.
var twoCharOperators = []string{"&&", "||", "==", "!=", "<=", ">="}

const singleCharOperators = "+-*/%<>!"

func lex(input string) ([]token, error) {
	tokens := make([]token, 0)
	runes := []rune(input)
	i := 0

	for i < len(runes) {
		r := runes[i]

		switch {
		case unicode.IsSpace(r):
			i++

		case r == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++

		case r == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++

		case r == ',':
			tokens = append(tokens, token{kind: tokComma, text: ",", pos: i})
			i++

		case r == '\'' || r == '"':
			text, next, err := lexString(runes, i)
			if err != nil {
				return nil, err
			}

			tokens = append(tokens, token{kind: tokString, text: text, pos: i})
			i = next

		case unicode.IsDigit(r):
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}

			tokens = append(tokens, token{kind: tokNumber, text: string(runes[start:i]), pos: start})

		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_' || runes[i] == '.') {
				i++
			}

			tokens = append(tokens, token{kind: tokIdent, text: string(runes[start:i]), pos: start})

		default:
			if op, ok := matchOperator(runes, i); ok {
				tokens = append(tokens, token{kind: tokOperator, text: op, pos: i})
				i += len(op)

				continue
			}

			return nil, fmt.Errorf("unexpected character %q at position %d", string(r), i)
		}
	}

	tokens = append(tokens, token{kind: tokEOF, pos: len(runes)})

	return tokens, nil
}

func lexString(runes []rune, start int) (string, int, error) {
	quote := runes[start]

	var sb strings.Builder

	i := start + 1
	for i < len(runes) {
		r := runes[i]

		if r == '\\' && i+1 < len(runes) {
			sb.WriteRune(runes[i+1])
			i += 2

			continue
		}

		if r == quote {
			return sb.String(), i + 1, nil
		}

		sb.WriteRune(r)
		i++
	}

	return "", 0, fmt.Errorf("unterminated string starting at position %d", start)
}

func matchOperator(runes []rune, i int) (string, bool) {
	if i+1 < len(runes) {
		pair := string(runes[i : i+2])
		for _, op := range twoCharOperators {
			if pair == op {
				return op, true
			}
		}
	}

	if strings.ContainsRune(singleCharOperators, runes[i]) {
		return string(runes[i]), true
	}

	return "", false
}
