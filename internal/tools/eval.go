package tools

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Recursive-descent evaluator for the arithmetic subset the calculate
// tool supports: + - * / // % ** with unary sign, numbers and
// parentheses. Standard precedence; ** is right-associative and binds
// tighter than unary sign, matching the conventions the tool documents
// to the model.

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind  tokenKind
	op    string
	value float64
}

func evalExpression(expr string) (float64, error) {
	if strings.TrimSpace(expr) == "" {
		return 0, fmt.Errorf("пустое выражение")
	}

	tokens, err := tokenize(expr)
	if err != nil {
		return 0, err
	}

	p := &parser{tokens: tokens}
	result, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	if p.pos < len(p.tokens) {
		return 0, fmt.Errorf("неожиданный символ после выражения")
	}
	if math.IsInf(result, 0) || math.IsNaN(result) {
		return 0, fmt.Errorf("недопустимый результат вычисления")
	}
	return result, nil
}

func tokenize(expr string) ([]token, error) {
	var tokens []token
	runes := []rune(expr)

	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsDigit(r) || r == '.':
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			value, err := strconv.ParseFloat(string(runes[start:i]), 64)
			if err != nil {
				return nil, fmt.Errorf("некорректное число '%s'", string(runes[start:i]))
			}
			tokens = append(tokens, token{kind: tokNumber, value: value})
		case r == '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				tokens = append(tokens, token{kind: tokOp, op: "**"})
				i += 2
			} else {
				tokens = append(tokens, token{kind: tokOp, op: "*"})
				i++
			}
		case r == '/':
			if i+1 < len(runes) && runes[i+1] == '/' {
				tokens = append(tokens, token{kind: tokOp, op: "//"})
				i += 2
			} else {
				tokens = append(tokens, token{kind: tokOp, op: "/"})
				i++
			}
		case r == '+' || r == '-' || r == '%':
			tokens = append(tokens, token{kind: tokOp, op: string(r)})
			i++
		case r == '(':
			tokens = append(tokens, token{kind: tokLParen})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokRParen})
			i++
		default:
			return nil, fmt.Errorf("неподдерживаемый символ '%c'", r)
		}
	}

	return tokens, nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peekOp() (string, bool) {
	if p.pos < len(p.tokens) && p.tokens[p.pos].kind == tokOp {
		return p.tokens[p.pos].op, true
	}
	return "", false
}

func (p *parser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}

	for {
		op, ok := p.peekOp()
		if !ok || (op != "+" && op != "-") {
			return left, nil
		}
		p.pos++

		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == "+" {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *parser) parseTerm() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}

	for {
		op, ok := p.peekOp()
		if !ok || (op != "*" && op != "/" && op != "//" && op != "%") {
			return left, nil
		}
		p.pos++

		right, err := p.parseUnary()
		if err != nil {
			return 0, err
		}

		switch op {
		case "*":
			left *= right
		case "/":
			if right == 0 {
				return 0, fmt.Errorf("деление на ноль")
			}
			left /= right
		case "//":
			if right == 0 {
				return 0, fmt.Errorf("деление на ноль")
			}
			left = math.Floor(left / right)
		case "%":
			if right == 0 {
				return 0, fmt.Errorf("деление на ноль")
			}
			// Floored modulo: the result takes the sign of the divisor.
			left = left - math.Floor(left/right)*right
		}
	}
}

func (p *parser) parseUnary() (float64, error) {
	if op, ok := p.peekOp(); ok && (op == "+" || op == "-") {
		p.pos++
		value, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		if op == "-" {
			return -value, nil
		}
		return value, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (float64, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return 0, err
	}

	if op, ok := p.peekOp(); ok && op == "**" {
		p.pos++
		// Right-associative; the exponent may carry its own sign.
		exponent, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exponent), nil
	}

	return base, nil
}

func (p *parser) parsePrimary() (float64, error) {
	if p.pos >= len(p.tokens) {
		return 0, fmt.Errorf("неожиданный конец выражения")
	}

	tok := p.tokens[p.pos]
	switch tok.kind {
	case tokNumber:
		p.pos++
		return tok.value, nil
	case tokLParen:
		p.pos++
		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.pos >= len(p.tokens) || p.tokens[p.pos].kind != tokRParen {
			return 0, fmt.Errorf("ожидалась закрывающая скобка")
		}
		p.pos++
		return value, nil
	default:
		return 0, fmt.Errorf("неподдерживаемое выражение")
	}
}

// formatResult renders integral values without decimals and everything
// else with two, grouping thousands with spaces.
func formatResult(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}

	// FormatFloat keeps the integral branch exact at any magnitude,
	// where an int64 conversion would overflow past ~9.2e18.
	if v == math.Trunc(v) {
		return groupThousands(strconv.FormatFloat(v, 'f', 0, 64))
	}

	s := strconv.FormatFloat(v, 'f', 2, 64)
	dot := strings.IndexByte(s, '.')
	return groupThousands(s[:dot]) + s[dot:]
}

func groupThousands(digits string) string {
	neg := strings.HasPrefix(digits, "-")
	if neg {
		digits = digits[1:]
	}

	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}

	if neg {
		return "-" + b.String()
	}
	return b.String()
}
