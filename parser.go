// parser.go — recursive-descent parser with precedence climbing, producing
// the expression tree of ast.go.
//
// Operator precedence, loosest to tightest, mirrors Nix:
//
//	->  ||  &&  == !=  < <= > >=  //  !  + -  * /  ++  ?  unary-  app  .
//
// `?` takes an attribute path on the right; `.` select may carry an `or`
// default. Lambdas, let, if, with and assert are parsed at the expression
// level; a `{` is disambiguated between a set literal and a parameter
// pattern by scanning ahead to its matching `}`.
package hnix

import "fmt"

// ParseError is a syntax failure with a 1-based position. Incomplete marks
// errors caused by running out of input, which lets a REPL prompt for a
// continuation line instead of reporting a hard failure.
type ParseError struct {
	Line       int
	Col        int
	Msg        string
	Incomplete bool
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// IsIncomplete reports whether err is a parse failure caused by truncated
// input, suitable for a REPL continuation prompt.
func IsIncomplete(err error) bool {
	pe, ok := err.(*ParseError)
	return ok && pe.Incomplete
}

// Parse tokenizes and parses a complete expression.
func Parse(src string) (Expr, error) {
	toks, err := Lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.peek().Type != EOF {
		return nil, p.errf("unexpected %s after expression", p.peek().describe())
	}
	return e, nil
}

type parser struct {
	toks []Token
	idx  int
}

func (p *parser) peek() Token  { return p.toks[p.idx] }
func (p *parser) peek2() Token {
	if p.idx+1 < len(p.toks) {
		return p.toks[p.idx+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) next() Token {
	t := p.toks[p.idx]
	if t.Type != EOF {
		p.idx++
	}
	return t
}

func (p *parser) at(t TokenType) bool { return p.peek().Type == t }

func (p *parser) accept(t TokenType) (Token, bool) {
	if p.at(t) {
		return p.next(), true
	}
	return Token{}, false
}

func (p *parser) expect(t TokenType, what string) (Token, error) {
	if p.at(t) {
		return p.next(), nil
	}
	return Token{}, p.errf("expected %s, got %s", what, p.peek().describe())
}

func (p *parser) errf(format string, args ...any) error {
	t := p.peek()
	return &ParseError{
		Line:       t.Line,
		Col:        t.Col,
		Msg:        fmt.Sprintf(format, args...),
		Incomplete: t.Type == EOF,
	}
}

func (t Token) describe() string {
	if t.Type == EOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.Lexeme)
}

func (t Token) pos() Pos { return Pos{Line: t.Line, Col: t.Col} }

/* ===========================
   Expression level
   =========================== */

func (p *parser) parseExpr() (Expr, error) {
	switch p.peek().Type {
	case KW_LET:
		return p.parseLet()
	case KW_IF:
		return p.parseIf()
	case KW_WITH:
		return p.parseWith()
	case KW_ASSERT:
		return p.parseAssert()
	case ID:
		if p.peek2().Type == COLON {
			return p.parseLambdaNamed()
		}
		if p.peek2().Type == AT {
			return p.parseLambdaPattern()
		}
	case LBRACE:
		if p.patternAhead() {
			return p.parseLambdaPattern()
		}
	}
	return p.parseOp(0)
}

func (p *parser) parseLet() (Expr, error) {
	tok := p.next()
	bs, err := p.parseBindings(KW_IN)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(KW_IN, "'in'"); err != nil {
		return nil, err
	}
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &LetExpr{Pos: tok.pos(), Bindings: bs, Body: body}, nil
}

func (p *parser) parseIf() (Expr, error) {
	tok := p.next()
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(KW_THEN, "'then'"); err != nil {
		return nil, err
	}
	thenE, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(KW_ELSE, "'else'"); err != nil {
		return nil, err
	}
	elseE, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &IfExpr{Pos: tok.pos(), Cond: cond, Then: thenE, Else: elseE}, nil
}

func (p *parser) parseWith() (Expr, error) {
	tok := p.next()
	scope, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMI, "';' after with scope"); err != nil {
		return nil, err
	}
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &WithExpr{Pos: tok.pos(), Scope: scope, Body: body}, nil
}

func (p *parser) parseAssert() (Expr, error) {
	tok := p.next()
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMI, "';' after assert condition"); err != nil {
		return nil, err
	}
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &AssertExpr{Pos: tok.pos(), Cond: cond, Body: body}, nil
}

/* ===========================
   Lambdas & parameter shapes
   =========================== */

func (p *parser) parseLambdaNamed() (Expr, error) {
	id := p.next()
	p.next() // COLON
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &AbsExpr{Pos: id.pos(), Params: Params{Name: id.Lexeme}, Body: body}, nil
}

// parseLambdaPattern handles both `{...}@self:` and `self@{...}:` forms.
func (p *parser) parseLambdaPattern() (Expr, error) {
	start := p.peek().pos()
	var params Params
	params.SetPattern = true

	if id, ok := p.accept(ID); ok {
		params.Self = id.Lexeme
		p.next() // AT
	}
	if err := p.parseParamFields(&params); err != nil {
		return nil, err
	}
	if params.Self == "" {
		if _, ok := p.accept(AT); ok {
			id, err := p.expect(ID, "identifier after '@'")
			if err != nil {
				return nil, err
			}
			params.Self = id.Lexeme
		}
	}
	if _, err := p.expect(COLON, "':' after parameter pattern"); err != nil {
		return nil, err
	}
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &AbsExpr{Pos: start, Params: params, Body: body}, nil
}

func (p *parser) parseParamFields(params *Params) error {
	if _, err := p.expect(LBRACE, "'{'"); err != nil {
		return err
	}
	for !p.at(RBRACE) {
		if _, ok := p.accept(ELLIPSIS); ok {
			params.Variadic = true
			break
		}
		id, err := p.expect(ID, "parameter name")
		if err != nil {
			return err
		}
		field := ParamField{Name: id.Lexeme}
		if _, ok := p.accept(QUESTION); ok {
			def, err := p.parseExpr()
			if err != nil {
				return err
			}
			field.Default = def
		}
		params.Fields = append(params.Fields, field)
		if _, ok := p.accept(COMMA); !ok {
			break
		}
	}
	_, err := p.expect(RBRACE, "'}' closing parameter pattern")
	return err
}

// patternAhead scans from a '{' to its matching '}' and reports whether a
// ':' or '@' follows, i.e. whether the braces are a parameter pattern rather
// than a set literal.
func (p *parser) patternAhead() bool {
	depth := 0
	for i := p.idx; i < len(p.toks); i++ {
		switch p.toks[i].Type {
		case LBRACE, DOLLAR_CURLY:
			depth++
		case RBRACE:
			depth--
			if depth == 0 {
				if i+1 < len(p.toks) {
					t := p.toks[i+1].Type
					return t == COLON || t == AT
				}
				return false
			}
		case EOF:
			return false
		}
	}
	return false
}

/* ===========================
   Operators
   =========================== */

type opInfo struct {
	op    BinaryOp
	bp    int
	right bool
}

var binops = map[TokenType]opInfo{
	OP_IMPL:   {NImpl, 10, true},
	OP_OR:     {NOr, 20, false},
	OP_AND:    {NAnd, 30, false},
	OP_EQ:     {NEq, 40, false},
	OP_NEQ:    {NNEq, 40, false},
	OP_LT:     {NLt, 50, false},
	OP_LTE:    {NLte, 50, false},
	OP_GT:     {NGt, 50, false},
	OP_GTE:    {NGte, 50, false},
	OP_UPDATE: {NUpdate, 60, true},
	OP_PLUS:   {NPlus, 80, false},
	OP_MINUS:  {NMinus, 80, false},
	OP_MULT:   {NMult, 90, false},
	OP_DIV:    {NDiv, 90, false},
	OP_CONCAT: {NConcat, 100, true},
}

const (
	bpNot      = 70
	bpHasAttr  = 110
	bpNeg      = 115
)

func (p *parser) parseOp(minBP int) (Expr, error) {
	var lhs Expr
	var err error

	switch p.peek().Type {
	case OP_NOT:
		tok := p.next()
		x, err := p.parseOp(bpNot)
		if err != nil {
			return nil, err
		}
		lhs = &UnaryExpr{Pos: tok.pos(), Op: NNot, X: x}
	case OP_MINUS:
		tok := p.next()
		x, err := p.parseOp(bpNeg)
		if err != nil {
			return nil, err
		}
		lhs = &UnaryExpr{Pos: tok.pos(), Op: NNeg, X: x}
	default:
		lhs, err = p.parseApp()
		if err != nil {
			return nil, err
		}
	}

	for {
		tok := p.peek()
		if tok.Type == QUESTION {
			if bpHasAttr < minBP {
				return lhs, nil
			}
			p.next()
			path, err := p.parseAttrPath()
			if err != nil {
				return nil, err
			}
			lhs = &HasAttrExpr{Pos: tok.pos(), Set: lhs, Path: path}
			continue
		}
		info, ok := binops[tok.Type]
		if !ok || info.bp < minBP {
			return lhs, nil
		}
		p.next()
		nextMin := info.bp + 1
		if info.right {
			nextMin = info.bp
		}
		rhs, err := p.parseOp(nextMin)
		if err != nil {
			return nil, err
		}
		lhs = &BinaryExpr{Pos: tok.pos(), Op: info.op, L: lhs, R: rhs}
	}
}

/* ===========================
   Application & select
   =========================== */

func startsAtom(t TokenType) bool {
	switch t {
	case INT, ID, KW_TRUE, KW_FALSE, KW_NULL, URI, PATH, SPATH,
		STR_START, LPAREN, LBRACKET, LBRACE, KW_REC:
		return true
	}
	return false
}

func (p *parser) parseApp() (Expr, error) {
	fn, err := p.parseSelectChain()
	if err != nil {
		return nil, err
	}
	for startsAtom(p.peek().Type) {
		// `{` here is always a set-literal argument; a pattern would have
		// been consumed as a lambda at the expression level.
		pos := p.peek().pos()
		arg, err := p.parseSelectChain()
		if err != nil {
			return nil, err
		}
		fn = &AppExpr{Pos: pos, Fn: fn, Arg: arg}
	}
	return fn, nil
}

// parseSelectChain parses an atom followed by `.path` selections with
// optional `or` defaults.
func (p *parser) parseSelectChain() (Expr, error) {
	e, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		dot, ok := p.accept(DOT)
		if !ok {
			return e, nil
		}
		path, err := p.parseAttrPath()
		if err != nil {
			return nil, err
		}
		sel := &SelectExpr{Pos: dot.pos(), Set: e, Path: path}
		if _, ok := p.accept(KW_OR); ok {
			def, err := p.parseSelectChain()
			if err != nil {
				return nil, err
			}
			sel.Default = def
		}
		e = sel
	}
}

// parseAttrPath parses dot-separated key components: identifiers, string
// literals (dynamic when interpolated), or `${ ... }` antiquotations.
func (p *parser) parseAttrPath() ([]Key, error) {
	var path []Key
	for {
		k, err := p.parseAttrKey()
		if err != nil {
			return nil, err
		}
		path = append(path, k)
		if _, ok := p.accept(DOT); !ok {
			return path, nil
		}
	}
}

func (p *parser) parseAttrKey() (Key, error) {
	switch p.peek().Type {
	case ID:
		return Key{Name: p.next().Lexeme}, nil
	case STR_START:
		s, err := p.parseString()
		if err != nil {
			return Key{}, err
		}
		str := s.(*StrExpr)
		if len(str.Parts) == 1 && str.Parts[0].Interp == nil {
			return Key{Name: str.Parts[0].Lit}, nil
		}
		if len(str.Parts) == 0 {
			return Key{Name: ""}, nil
		}
		return Key{Dyn: str}, nil
	case DOLLAR_CURLY:
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return Key{}, err
		}
		if _, err := p.expect(RBRACE, "'}' closing antiquotation"); err != nil {
			return Key{}, err
		}
		return Key{Dyn: e}, nil
	}
	return Key{}, p.errf("expected attribute name, got %s", p.peek().describe())
}

/* ===========================
   Atoms
   =========================== */

func (p *parser) parseAtom() (Expr, error) {
	tok := p.peek()
	switch tok.Type {
	case INT:
		p.next()
		return &ConstExpr{Pos: tok.pos(), Atom: IntAtom(tok.Int)}, nil
	case KW_TRUE:
		p.next()
		return &ConstExpr{Pos: tok.pos(), Atom: BoolAtom(true)}, nil
	case KW_FALSE:
		p.next()
		return &ConstExpr{Pos: tok.pos(), Atom: BoolAtom(false)}, nil
	case KW_NULL:
		p.next()
		return &ConstExpr{Pos: tok.pos(), Atom: NullAtom()}, nil
	case URI:
		p.next()
		return &ConstExpr{Pos: tok.pos(), Atom: URIAtom(tok.Lexeme)}, nil
	case ID:
		p.next()
		return &Sym{Pos: tok.pos(), Name: tok.Lexeme}, nil
	case PATH:
		p.next()
		return &PathExpr{Pos: tok.pos(), Path: tok.Lexeme}, nil
	case SPATH:
		p.next()
		return &EnvPathExpr{Pos: tok.pos(), Name: tok.Lexeme}, nil
	case STR_START:
		return p.parseString()
	case LPAREN:
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN, "')'"); err != nil {
			return nil, err
		}
		return e, nil
	case LBRACKET:
		return p.parseList()
	case LBRACE:
		p.next()
		return p.parseSetBody(tok.pos(), false)
	case KW_REC:
		p.next()
		if _, err := p.expect(LBRACE, "'{' after rec"); err != nil {
			return nil, err
		}
		return p.parseSetBody(tok.pos(), true)
	}
	return nil, p.errf("unexpected %s", tok.describe())
}

func (p *parser) parseList() (Expr, error) {
	tok := p.next() // LBRACKET
	var elems []Expr
	for !p.at(RBRACKET) {
		el, err := p.parseSelectChain()
		if err != nil {
			return nil, err
		}
		elems = append(elems, el)
	}
	p.next() // RBRACKET
	return &ListExpr{Pos: tok.pos(), Elems: elems}, nil
}

func (p *parser) parseString() (Expr, error) {
	start := p.next() // STR_START
	var parts []StrPart
	for {
		switch p.peek().Type {
		case STR_CHUNK:
			parts = append(parts, StrPart{Lit: p.next().Lexeme})
		case DOLLAR_CURLY:
			p.next()
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RBRACE, "'}' closing antiquotation"); err != nil {
				return nil, err
			}
			parts = append(parts, StrPart{Interp: e})
		case STR_END:
			p.next()
			return &StrExpr{Pos: start.pos(), Parts: parts}, nil
		default:
			return nil, p.errf("malformed string literal near %s", p.peek().describe())
		}
	}
}

/* ===========================
   Bindings
   =========================== */

func (p *parser) parseSetBody(pos Pos, rec bool) (Expr, error) {
	bs, err := p.parseBindings(RBRACE)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RBRACE, "'}' closing set"); err != nil {
		return nil, err
	}
	return &SetExpr{Pos: pos, Rec: rec, Bindings: bs}, nil
}

// parseBindings parses `name = value;` and `inherit` entries until the
// terminator token (not consumed).
func (p *parser) parseBindings(until TokenType) ([]Binding, error) {
	var bs []Binding
	for !p.at(until) {
		if p.at(EOF) {
			return nil, p.errf("expected binding or %s", Token{Type: until, Lexeme: tokenName(until)}.describe())
		}
		if tok, ok := p.accept(KW_INHERIT); ok {
			b := Binding{Pos: tok.pos(), Inherit: true}
			if _, ok := p.accept(LPAREN); ok {
				src, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				if _, err := p.expect(RPAREN, "')' closing inherit source"); err != nil {
					return nil, err
				}
				b.From = src
			}
			for p.at(ID) {
				b.Names = append(b.Names, p.next().Lexeme)
			}
			if len(b.Names) == 0 {
				return nil, p.errf("inherit needs at least one name")
			}
			if _, err := p.expect(SEMI, "';' after inherit"); err != nil {
				return nil, err
			}
			bs = append(bs, b)
			continue
		}

		tok := p.peek()
		path, err := p.parseAttrPath()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(ASSIGN, "'=' in binding"); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SEMI, "';' after binding"); err != nil {
			return nil, err
		}
		bs = append(bs, Binding{Pos: tok.pos(), Path: path, Value: val})
	}
	return bs, nil
}

func tokenName(t TokenType) string {
	switch t {
	case RBRACE:
		return "}"
	case KW_IN:
		return "in"
	}
	return "?"
}
