package engine

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"
)

type (
	// Expr is a compiled guard expression. Evaluation never runs code; it
	// only resolves identifiers against the job context
	Expr interface {
		eval(env *exprEnv) any
	}

	exprEnv struct {
		lookup func(name string) (any, bool)
		doc    []byte
	}

	tokenKind int

	token struct {
		text string
		kind tokenKind
		pos  int
	}

	exprParser struct {
		src    string
		tokens []token
		pos    int
	}

	literalExpr struct{ value any }

	identExpr struct{ path string }

	notExpr struct{ operand Expr }

	logicalExpr struct {
		left, right Expr
		and         bool
	}

	compareExpr struct {
		left, right Expr
		op          string
	}
)

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokOp
	tokLParen
	tokRParen
)

// ParseExpr compiles a guard expression. The grammar is:
//
//	expr    = or
//	or      = and { "||" and }
//	and     = unary { "&&" unary }
//	unary   = "!" unary | compare
//	compare = primary [ ("=="|"!="|"<"|"<="|">"|">=") primary ]
//	primary = "(" expr ")" | string | number | true | false | null | path
func ParseExpr(src string) (Expr, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, exprError(src, err.Error())
	}
	p := &exprParser{src: src, tokens: tokens}
	res, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, exprError(src,
			fmt.Sprintf("unexpected %q at %d", tok.text, tok.pos))
	}
	return res, nil
}

// EvalExpr evaluates a compiled expression to a boolean. doc is the JSON
// encoding of the job context, used for dotted path lookups
func EvalExpr(
	e Expr, doc []byte, lookup func(name string) (any, bool),
) bool {
	return truthy(e.eval(&exprEnv{doc: doc, lookup: lookup}))
}

func exprError(src, msg string) error {
	return fmt.Errorf("%w: condition %q: %s", ErrValidation, src, msg)
}

func lex(src string) ([]token, error) {
	var res []token
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			res = append(res, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			res = append(res, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == '"' || c == '\'':
			str, n, err := lexString(src[i:])
			if err != nil {
				return nil, fmt.Errorf("%s at %d", err, i)
			}
			res = append(res, token{kind: tokString, text: str, pos: i})
			i += n
		case isDigit(c) || (c == '-' && i+1 < len(src) && isDigit(src[i+1])):
			j := i + 1
			for j < len(src) && (isDigit(src[j]) || src[j] == '.') {
				j++
			}
			res = append(res, token{kind: tokNumber, text: src[i:j], pos: i})
			i = j
		case isIdentStart(rune(c)):
			j := i + 1
			for j < len(src) && isIdentPart(rune(src[j])) {
				j++
			}
			res = append(res, token{kind: tokIdent, text: src[i:j], pos: i})
			i = j
		default:
			op := lexOp(src[i:])
			if op == "" {
				return nil, fmt.Errorf("unexpected character %q at %d", c, i)
			}
			res = append(res, token{kind: tokOp, text: op, pos: i})
			i += len(op)
		}
	}
	return append(res, token{kind: tokEOF, pos: len(src)}), nil
}

func lexString(s string) (string, int, error) {
	quote := s[0]
	var sb strings.Builder
	for i := 1; i < len(s); i++ {
		switch c := s[i]; c {
		case quote:
			return sb.String(), i + 1, nil
		case '\\':
			if i+1 >= len(s) {
				return "", 0, fmt.Errorf("unterminated string")
			}
			i++
			sb.WriteByte(s[i])
		default:
			sb.WriteByte(c)
		}
	}
	return "", 0, fmt.Errorf("unterminated string")
}

func lexOp(s string) string {
	for _, op := range []string{"==", "!=", "<=", ">=", "&&", "||"} {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	switch s[0] {
	case '<', '>', '!':
		return s[:1]
	}
	return ""
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r) || r == '.'
}

func (p *exprParser) peek() token {
	return p.tokens[p.pos]
}

func (p *exprParser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *exprParser) isOp(text string) bool {
	tok := p.peek()
	return tok.kind == tokOp && tok.text == text
}

func (p *exprParser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isOp("||") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &logicalExpr{left: left, right: right}
	}
	return left, nil
}

func (p *exprParser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOp("&&") {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &logicalExpr{left: left, right: right, and: true}
	}
	return left, nil
}

func (p *exprParser) parseUnary() (Expr, error) {
	if p.isOp("!") {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notExpr{operand: operand}, nil
	}
	return p.parseCompare()
}

func (p *exprParser) parseCompare() (Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	tok := p.peek()
	if tok.kind != tokOp {
		return left, nil
	}
	switch tok.text {
	case "==", "!=", "<", "<=", ">", ">=":
		p.next()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &compareExpr{left: left, right: right, op: tok.text}, nil
	default:
		return left, nil
	}
}

func (p *exprParser) parsePrimary() (Expr, error) {
	tok := p.next()
	switch tok.kind {
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.next().kind != tokRParen {
			return nil, exprError(p.src, "missing closing parenthesis")
		}
		return inner, nil
	case tokString:
		return &literalExpr{value: tok.text}, nil
	case tokNumber:
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, exprError(p.src, "invalid number "+tok.text)
		}
		return &literalExpr{value: f}, nil
	case tokIdent:
		switch tok.text {
		case "true":
			return &literalExpr{value: true}, nil
		case "false":
			return &literalExpr{value: false}, nil
		case "null":
			return &literalExpr{value: nil}, nil
		}
		if strings.HasSuffix(tok.text, ".") || strings.Contains(tok.text, "..") {
			return nil, exprError(p.src, "invalid path "+tok.text)
		}
		return &identExpr{path: tok.text}, nil
	case tokEOF:
		return nil, exprError(p.src, "unexpected end of expression")
	default:
		return nil, exprError(p.src,
			fmt.Sprintf("unexpected %q at %d", tok.text, tok.pos))
	}
}

func (e *literalExpr) eval(*exprEnv) any {
	return e.value
}

func (e *identExpr) eval(env *exprEnv) any {
	if env.lookup != nil {
		if v, ok := env.lookup(e.path); ok {
			return v
		}
	}
	res := gjson.GetBytes(env.doc, e.path)
	if !res.Exists() {
		return nil
	}
	return res.Value()
}

func (e *notExpr) eval(env *exprEnv) any {
	return !truthy(e.operand.eval(env))
}

func (e *logicalExpr) eval(env *exprEnv) any {
	left := truthy(e.left.eval(env))
	if e.and {
		return left && truthy(e.right.eval(env))
	}
	return left || truthy(e.right.eval(env))
}

func (e *compareExpr) eval(env *exprEnv) any {
	left := normalize(e.left.eval(env))
	right := normalize(e.right.eval(env))
	switch e.op {
	case "==":
		return equal(left, right)
	case "!=":
		return !equal(left, right)
	default:
		c, ok := order(left, right)
		if !ok {
			return false
		}
		switch e.op {
		case "<":
			return c < 0
		case "<=":
			return c <= 0
		case ">":
			return c > 0
		default:
			return c >= 0
		}
	}
}

func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

func equal(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	default:
		return false
	}
}

func order(a, b any) (int, bool) {
	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1, true
			case av > bv:
				return 1, true
			}
			return 0, true
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv), true
		}
	}
	return 0, false
}

func truthy(v any) bool {
	switch t := normalize(v).(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}
