package parser

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"phlox/internal/ast"
	"phlox/internal/lexer"
)

// parseExpression is the entry point for the expression grammar. Assignment
// is the lowest-precedence expression form and is right associative.
func (p *Parser) parseExpression() (ast.Expr, error) {
	return p.parseAssignment()
}

var assignOps = map[lexer.TokenType]string{
	lexer.ASSIGN:      "=",
	lexer.PLUS_EQ:     "+=",
	lexer.MINUS_EQ:    "-=",
	lexer.STAR_EQ:     "*=",
	lexer.SLASH_EQ:    "/=",
	lexer.DOT_EQ:      ".=",
	lexer.MOD_EQ:      "%=",
	lexer.POW_EQ:      "**=",
	lexer.COALESCE_EQ: "??=",
}

func (p *Parser) parseAssignment() (ast.Expr, error) {
	left, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	op, ok := assignOps[p.cur().Type]
	if !ok {
		return left, nil
	}
	tok := p.next()
	value, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	switch left.(type) {
	case *ast.Var, *ast.Index, *ast.PropFetch, *ast.StaticPropFetch:
	default:
		return nil, p.errorf("invalid assignment target")
	}
	return &ast.Assign{Position: pos(tok.Line), Target: left, Op: op, Value: value}, nil
}

func (p *Parser) parseTernary() (ast.Expr, error) {
	cond, err := p.parseCoalesce()
	if err != nil {
		return nil, err
	}
	if !p.at(lexer.QUESTION) {
		return cond, nil
	}
	tok := p.next()
	t := &ast.Ternary{Position: pos(tok.Line), Cond: cond}
	if !p.accept(lexer.COLON) {
		then, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		t.Then = then
		if _, err := p.expect(lexer.COLON); err != nil {
			return nil, err
		}
	}
	els, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	t.Else = els
	return t, nil
}

func (p *Parser) parseCoalesce() (ast.Expr, error) {
	left, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	if !p.at(lexer.COALESCE) {
		return left, nil
	}
	tok := p.next()
	// right associative: $a ?? $b ?? $c
	right, err := p.parseCoalesce()
	if err != nil {
		return nil, err
	}
	return &ast.Binary{Position: pos(tok.Line), Op: "??", L: left, R: right}, nil
}

func (p *Parser) parseLogicalOr() (ast.Expr, error) {
	left, err := p.parseLogicalAnd()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.OR) || p.atKeyword("or") {
		tok := p.next()
		right, err := p.parseLogicalAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Position: pos(tok.Line), Op: "||", L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseLogicalAnd() (ast.Expr, error) {
	left, err := p.parseLogicalXor()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.AND) || p.atKeyword("and") {
		tok := p.next()
		right, err := p.parseLogicalXor()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Position: pos(tok.Line), Op: "&&", L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseLogicalXor() (ast.Expr, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("xor") {
		tok := p.next()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Position: pos(tok.Line), Op: "xor", L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseEquality() (ast.Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.cur().Type {
		case lexer.EQ:
			op = "=="
		case lexer.NEQ:
			op = "!="
		case lexer.IDENTICAL:
			op = "==="
		case lexer.NOT_IDENTICAL:
			op = "!=="
		default:
			return left, nil
		}
		tok := p.next()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Position: pos(tok.Line), Op: op, L: left, R: right}
	}
}

func (p *Parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.cur().Type {
		case lexer.LT:
			op = "<"
		case lexer.LE:
			op = "<="
		case lexer.GT:
			op = ">"
		case lexer.GE:
			op = ">="
		case lexer.SPACESHIP:
			op = "<=>"
		default:
			return left, nil
		}
		tok := p.next()
		right, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Position: pos(tok.Line), Op: op, L: left, R: right}
	}
}

// parseConcat binds looser than arithmetic, so "v=" . 1 + 2 is a parse of
// the arithmetic first.
func (p *Parser) parseConcat() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.DOT) {
		tok := p.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Position: pos(tok.Line), Op: ".", L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.cur().Type {
		case lexer.PLUS:
			op = "+"
		case lexer.MINUS:
			op = "-"
		default:
			return left, nil
		}
		tok := p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Position: pos(tok.Line), Op: op, L: left, R: right}
	}
}

func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parseInstanceof()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.cur().Type {
		case lexer.STAR:
			op = "*"
		case lexer.SLASH:
			op = "/"
		case lexer.PERCENT:
			op = "%"
		default:
			return left, nil
		}
		tok := p.next()
		right, err := p.parseInstanceof()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Position: pos(tok.Line), Op: op, L: left, R: right}
	}
}

func (p *Parser) parseInstanceof() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("instanceof") {
		tok := p.next()
		name, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		left = &ast.InstanceOf{
			Position: pos(tok.Line),
			Obj:      left,
			Class:    p.resolveClass(name.Value),
		}
	}
	return left, nil
}

var castKinds = map[string]string{
	"int":     "int",
	"integer": "int",
	"float":   "float",
	"double":  "float",
	"string":  "string",
	"bool":    "bool",
	"boolean": "bool",
	"array":   "array",
	"object":  "object",
}

// atCast detects a (type) cast: a parenthesized cast keyword followed
// immediately by a closing paren.
func (p *Parser) atCast() (string, bool) {
	if !p.at(lexer.LPAREN) || p.peek().Type != lexer.IDENT {
		return "", false
	}
	kind, ok := castKinds[strings.ToLower(p.peek().Value)]
	if !ok {
		return "", false
	}
	if p.pos+2 >= len(p.toks) || p.toks[p.pos+2].Type != lexer.RPAREN {
		return "", false
	}
	return kind, true
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	tok := p.cur()
	switch tok.Type {
	case lexer.NOT:
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Position: pos(tok.Line), Op: "!", X: x}, nil
	case lexer.MINUS:
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Position: pos(tok.Line), Op: "-", X: x}, nil
	case lexer.PLUS:
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Position: pos(tok.Line), Op: "+", X: x}, nil
	case lexer.INC, lexer.DEC:
		op := "++"
		if tok.Type == lexer.DEC {
			op = "--"
		}
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.IncDec{Position: pos(tok.Line), Target: x, Op: op, Prefix: true}, nil
	case lexer.LPAREN:
		if kind, ok := p.atCast(); ok {
			p.next() // (
			p.next() // type
			p.next() // )
			x, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return &ast.Cast{Position: pos(tok.Line), Kind: kind, X: x}, nil
		}
	case lexer.IDENT:
		switch strings.ToLower(tok.Value) {
		case "new":
			return p.parseNew()
		case "clone":
			return p.parseClone()
		case "print":
			p.next()
			x, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			return &ast.Print{Position: pos(tok.Line), X: x}, nil
		case "throw":
			p.next()
			x, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			return &ast.Throw{Position: pos(tok.Line), Value: x}, nil
		case "yield":
			return p.parseYield()
		}
	}
	return p.parsePower()
}

func (p *Parser) parseYield() (ast.Expr, error) {
	tok := p.next() // yield
	if p.acceptKeyword("from") {
		x, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &ast.YieldFrom{Position: pos(tok.Line), X: x}, nil
	}
	y := &ast.Yield{Position: pos(tok.Line)}
	if p.at(lexer.SEMICOLON) || p.at(lexer.RPAREN) || p.at(lexer.COMMA) {
		return y, nil
	}
	val, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if p.accept(lexer.DOUBLE_ARROW) {
		y.Key = val
		v, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		y.Value = v
	} else {
		y.Value = val
	}
	return y, nil
}

// resolveClassKeywordAware leaves self/static/parent for the runtime to
// resolve against the active frame.
func (p *Parser) resolveClassKeywordAware(name string) string {
	switch strings.ToLower(name) {
	case "self", "static", "parent":
		return strings.ToLower(name)
	}
	return p.resolveClass(name)
}

func (p *Parser) parsePower() (ast.Expr, error) {
	base, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	if !p.at(lexer.POW) {
		return base, nil
	}
	tok := p.next()
	// right associative, and the exponent may carry its own unary sign
	exp, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &ast.Binary{Position: pos(tok.Line), Op: "**", L: base, R: exp}, nil
}

func (p *Parser) parseNew() (ast.Expr, error) {
	tok := p.next() // new
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	expr := &ast.New{Position: pos(tok.Line), Class: p.resolveClassKeywordAware(name.Value)}
	if p.at(lexer.LPAREN) {
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		expr.Args = args
	}
	return p.parsePostfixOps(expr)
}

// parseClone handles both the unary form and the clone($obj, [...]) form
// that rebinds properties on the copy.
func (p *Parser) parseClone() (ast.Expr, error) {
	tok := p.next() // clone
	expr := &ast.Clone{Position: pos(tok.Line)}
	if p.at(lexer.LPAREN) {
		p.next()
		obj, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		expr.Obj = obj
		if p.accept(lexer.COMMA) {
			with, err := p.parseCloneWith()
			if err != nil {
				return nil, err
			}
			expr.With = with
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
		return p.parsePostfixOps(expr)
	}
	obj, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	expr.Obj = obj
	return expr, nil
}

func (p *Parser) parseCloneWith() ([]ast.CloneWith, error) {
	if _, err := p.expect(lexer.LBRACKET); err != nil {
		return nil, err
	}
	var with []ast.CloneWith
	for !p.at(lexer.RBRACKET) {
		key, err := p.expect(lexer.STRING)
		if err != nil {
			return nil, p.errorf("clone property names must be string literals")
		}
		if _, err := p.expect(lexer.DOUBLE_ARROW); err != nil {
			return nil, err
		}
		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		with = append(with, ast.CloneWith{Name: key.Value, Value: val})
		if !p.accept(lexer.COMMA) {
			break
		}
	}
	if _, err := p.expect(lexer.RBRACKET); err != nil {
		return nil, err
	}
	return with, nil
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return p.parsePostfixOps(expr)
}

func (p *Parser) parsePostfixOps(expr ast.Expr) (ast.Expr, error) {
	for {
		tok := p.cur()
		switch tok.Type {
		case lexer.LPAREN:
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			expr = &ast.Call{Position: pos(tok.Line), Callee: expr, Args: args}

		case lexer.LBRACKET:
			p.next()
			idx := &ast.Index{Position: pos(tok.Line), Arr: expr}
			if !p.at(lexer.RBRACKET) {
				key, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				idx.Key = key
			}
			if _, err := p.expect(lexer.RBRACKET); err != nil {
				return nil, err
			}
			expr = idx

		case lexer.ARROW, lexer.NULLSAFE:
			nullsafe := tok.Type == lexer.NULLSAFE
			p.next()
			name, err := p.expect(lexer.IDENT)
			if err != nil {
				return nil, err
			}
			if p.at(lexer.LPAREN) {
				args, err := p.parseArgs()
				if err != nil {
					return nil, err
				}
				expr = &ast.MethodCall{
					Position: pos(tok.Line),
					Obj:      expr,
					Name:     name.Value,
					Args:     args,
					Nullsafe: nullsafe,
				}
			} else {
				expr = &ast.PropFetch{
					Position: pos(tok.Line),
					Obj:      expr,
					Name:     name.Value,
					Nullsafe: nullsafe,
				}
			}

		case lexer.DOUBLE_COLON:
			name, ok := expr.(*ast.Name)
			if !ok {
				return nil, p.errorf(":: requires a class name on the left")
			}
			class := p.resolveClassKeywordAware(name.Value)
			p.next()
			member, err := p.parseStaticMember(class, tok.Line)
			if err != nil {
				return nil, err
			}
			expr = member

		case lexer.INC, lexer.DEC:
			op := "++"
			if tok.Type == lexer.DEC {
				op = "--"
			}
			p.next()
			return &ast.IncDec{Position: pos(tok.Line), Target: expr, Op: op}, nil

		default:
			return expr, nil
		}
	}
}

// parseStaticMember parses the member after Class:: and produces a static
// call, static property fetch, class constant, or ::class literal.
func (p *Parser) parseStaticMember(class string, line int) (ast.Expr, error) {
	if p.at(lexer.VARIABLE) {
		name := p.next()
		return &ast.StaticPropFetch{Position: pos(line), Class: class, Name: name.Value}, nil
	}
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(name.Value, "class") {
		return &ast.ClassConst{Position: pos(line), Class: class, Name: "class"}, nil
	}
	if p.at(lexer.LPAREN) {
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		return &ast.StaticCall{Position: pos(line), Class: class, Name: name.Value, Args: args}, nil
	}
	return &ast.ClassConst{Position: pos(line), Class: class, Name: name.Value}, nil
}

// parseArgs parses a parenthesized argument list with spread and named
// argument support.
func (p *Parser) parseArgs() ([]ast.Arg, error) {
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	var args []ast.Arg
	for !p.at(lexer.RPAREN) {
		var arg ast.Arg
		if p.accept(lexer.ELLIPSIS) {
			arg.Spread = true
		} else if p.at(lexer.IDENT) && p.peek().Type == lexer.COLON {
			arg.Name = p.next().Value
			p.next() // :
		}
		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		arg.Value = val
		args = append(args, arg)
		if !p.accept(lexer.COMMA) {
			break
		}
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	tok := p.cur()
	switch tok.Type {
	case lexer.INT:
		p.next()
		v, err := strconv.ParseInt(tok.Value, 0, 64)
		if err != nil {
			// integer overflow falls back to a float literal
			f, ferr := strconv.ParseFloat(tok.Value, 64)
			if ferr != nil {
				return nil, p.errorf("invalid number %q", tok.Value)
			}
			return &ast.FloatLit{Position: pos(tok.Line), Value: f}, nil
		}
		return &ast.IntLit{Position: pos(tok.Line), Value: v}, nil

	case lexer.FLOAT:
		p.next()
		v, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, p.errorf("invalid number %q", tok.Value)
		}
		return &ast.FloatLit{Position: pos(tok.Line), Value: v}, nil

	case lexer.STRING:
		p.next()
		return &ast.StringLit{Position: pos(tok.Line), Value: tok.Value}, nil

	case lexer.STRING_INTERP:
		p.next()
		return parseInterpolated(tok.Value, tok.Line)

	case lexer.VARIABLE:
		p.next()
		return &ast.Var{Position: pos(tok.Line), Name: tok.Value}, nil

	case lexer.LBRACKET:
		return p.parseArrayLit(lexer.RBRACKET)

	case lexer.LPAREN:
		p.next()
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
		return inner, nil

	case lexer.IDENT:
		switch strings.ToLower(tok.Value) {
		case "true":
			p.next()
			return &ast.BoolLit{Position: pos(tok.Line), Value: true}, nil
		case "false":
			p.next()
			return &ast.BoolLit{Position: pos(tok.Line), Value: false}, nil
		case "null":
			p.next()
			return &ast.NullLit{Position: pos(tok.Line)}, nil
		case "array":
			if p.peek().Type == lexer.LPAREN {
				p.next()
				p.next()
				return p.parseArrayItems(tok.Line, lexer.RPAREN)
			}
		case "match":
			return p.parseMatch()
		case "function":
			return p.parseClosure(false)
		case "fn":
			return p.parseArrowFn()
		case "static":
			if strings.EqualFold(p.peek().Value, "function") {
				p.next()
				return p.parseClosure(true)
			}
			if strings.EqualFold(p.peek().Value, "fn") {
				p.next()
				return p.parseArrowFn()
			}
		case "isset":
			p.next()
			if _, err := p.expect(lexer.LPAREN); err != nil {
				return nil, err
			}
			targets, err := p.parseExprList()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.RPAREN); err != nil {
				return nil, err
			}
			return &ast.Isset{Position: pos(tok.Line), Targets: targets}, nil
		case "empty":
			p.next()
			if _, err := p.expect(lexer.LPAREN); err != nil {
				return nil, err
			}
			x, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.RPAREN); err != nil {
				return nil, err
			}
			return &ast.Empty{Position: pos(tok.Line), X: x}, nil
		case "exit", "die":
			p.next()
			e := &ast.Exit{Position: pos(tok.Line)}
			if p.accept(lexer.LPAREN) {
				if !p.at(lexer.RPAREN) {
					x, err := p.parseExpression()
					if err != nil {
						return nil, err
					}
					e.X = x
				}
				if _, err := p.expect(lexer.RPAREN); err != nil {
					return nil, err
				}
			}
			return e, nil
		}
		p.next()
		return &ast.Name{Position: pos(tok.Line), Value: tok.Value}, nil
	}
	return nil, p.errorf("unexpected %s %q in expression", tok.Type, tok.Value)
}

// parseArrayLit parses [...] literals; the opening bracket is current.
func (p *Parser) parseArrayLit(closer lexer.TokenType) (ast.Expr, error) {
	tok := p.next() // [ or (
	return p.parseArrayItems(tok.Line, closer)
}

func (p *Parser) parseArrayItems(line int, closer lexer.TokenType) (ast.Expr, error) {
	lit := &ast.ArrayLit{Position: pos(line)}
	for !p.at(closer) {
		var item ast.ArrayItem
		if p.accept(lexer.ELLIPSIS) {
			val, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			item.Value = val
			item.Spread = true
		} else {
			first, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if p.accept(lexer.DOUBLE_ARROW) {
				item.Key = first
				val, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				item.Value = val
			} else {
				item.Value = first
			}
		}
		lit.Items = append(lit.Items, item)
		if !p.accept(lexer.COMMA) {
			break
		}
	}
	if _, err := p.expect(closer); err != nil {
		return nil, err
	}
	return lit, nil
}

func (p *Parser) parseMatch() (ast.Expr, error) {
	tok := p.next() // match
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	subject, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	m := &ast.Match{Position: pos(tok.Line), Subject: subject}
	for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
		var arm ast.MatchArm
		if p.acceptKeyword("default") {
			arm.Conds = nil
		} else {
			for {
				cond, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				arm.Conds = append(arm.Conds, cond)
				if !p.accept(lexer.COMMA) {
					break
				}
				if p.at(lexer.DOUBLE_ARROW) {
					break // trailing comma in condition list
				}
			}
		}
		if _, err := p.expect(lexer.DOUBLE_ARROW); err != nil {
			return nil, err
		}
		body, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		arm.Body = body
		m.Arms = append(m.Arms, arm)
		if !p.accept(lexer.COMMA) {
			break
		}
	}
	if _, err := p.expect(lexer.RBRACE); err != nil {
		return nil, err
	}
	return m, nil
}

func (p *Parser) parseClosure(static bool) (ast.Expr, error) {
	tok := p.next() // function
	cl := &ast.Closure{Position: pos(tok.Line), Static: static}
	params, err := p.parseParamList(false)
	if err != nil {
		return nil, err
	}
	cl.Params = params
	if p.acceptKeyword("use") {
		if _, err := p.expect(lexer.LPAREN); err != nil {
			return nil, err
		}
		for !p.at(lexer.RPAREN) {
			var use ast.ClosureUse
			if p.accept(lexer.AMP) {
				use.ByRef = true
			}
			name, err := p.expect(lexer.VARIABLE)
			if err != nil {
				return nil, err
			}
			use.Name = name.Value
			cl.Uses = append(cl.Uses, use)
			if !p.accept(lexer.COMMA) {
				break
			}
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
	}
	ret, err := p.parseOptReturnType()
	if err != nil {
		return nil, err
	}
	cl.ReturnType = ret
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	cl.Body = body
	return cl, nil
}

func (p *Parser) parseArrowFn() (ast.Expr, error) {
	tok := p.next() // fn
	fn := &ast.ArrowFn{Position: pos(tok.Line)}
	params, err := p.parseParamList(false)
	if err != nil {
		return nil, err
	}
	fn.Params = params
	ret, err := p.parseOptReturnType()
	if err != nil {
		return nil, err
	}
	fn.ReturnType = ret
	if _, err := p.expect(lexer.DOUBLE_ARROW); err != nil {
		return nil, err
	}
	body, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	fn.Body = body
	return fn, nil
}

// parseInterpolated splits a raw double-quoted body into literal and
// expression parts. Simple syntax covers $name, $name[key] and
// $name->prop; complex syntax {$expr} re-parses the enclosed expression.
func parseInterpolated(raw string, line int) (ast.Expr, error) {
	var parts []ast.Expr
	var sb strings.Builder
	flush := func() {
		if sb.Len() > 0 {
			parts = append(parts, &ast.StringLit{Position: pos(line), Value: sb.String()})
			sb.Reset()
		}
	}
	i := 0
	for i < len(raw) {
		ch := raw[i]
		if ch == '\\' && i+1 < len(raw) && raw[i+1] == '$' {
			sb.WriteByte('$')
			i += 2
			continue
		}
		if ch == '{' && i+1 < len(raw) && raw[i+1] == '$' {
			end, ok := matchBrace(raw, i)
			if !ok {
				return nil, errors.Errorf("line %d: unterminated interpolation in string", line)
			}
			expr, err := ParseExpr(raw[i+1:end], line)
			if err != nil {
				return nil, err
			}
			flush()
			parts = append(parts, expr)
			i = end + 1
			continue
		}
		if ch == '$' && i+1 < len(raw) && isInterpIdentStart(raw[i+1]) {
			j := i + 1
			for j < len(raw) && isInterpIdentPart(raw[j]) {
				j++
			}
			var expr ast.Expr = &ast.Var{Position: pos(line), Name: raw[i+1 : j]}
			expr, j = parseSimpleAccess(expr, raw, j, line)
			flush()
			parts = append(parts, expr)
			i = j
			continue
		}
		sb.WriteByte(ch)
		i++
	}
	flush()
	if len(parts) == 0 {
		return &ast.StringLit{Position: pos(line), Value: ""}, nil
	}
	if len(parts) == 1 {
		if lit, ok := parts[0].(*ast.StringLit); ok {
			return lit, nil
		}
	}
	return &ast.InterpString{Position: pos(line), Parts: parts}, nil
}

// parseSimpleAccess extends a simple-syntax variable with one [key] or
// ->prop suffix, matching how double-quoted strings bind accessors.
func parseSimpleAccess(expr ast.Expr, raw string, j, line int) (ast.Expr, int) {
	if j < len(raw) && raw[j] == '[' {
		k := j + 1
		for k < len(raw) && raw[k] != ']' {
			k++
		}
		if k >= len(raw) {
			return expr, j
		}
		keyText := raw[j+1 : k]
		var key ast.Expr
		switch {
		case keyText == "":
			return expr, j
		case keyText[0] == '$':
			key = &ast.Var{Position: pos(line), Name: keyText[1:]}
		default:
			if n, err := strconv.ParseInt(keyText, 10, 64); err == nil {
				key = &ast.IntLit{Position: pos(line), Value: n}
			} else {
				// unquoted keys read as string literals inside strings
				key = &ast.StringLit{Position: pos(line), Value: strings.Trim(keyText, "'\"")}
			}
		}
		return &ast.Index{Position: pos(line), Arr: expr, Key: key}, k + 1
	}
	if j+2 < len(raw) && raw[j] == '-' && raw[j+1] == '>' && isInterpIdentStart(raw[j+2]) {
		k := j + 2
		for k < len(raw) && isInterpIdentPart(raw[k]) {
			k++
		}
		return &ast.PropFetch{Position: pos(line), Obj: expr, Name: raw[j+2 : k]}, k
	}
	return expr, j
}

// matchBrace finds the closing brace for the one at start, honoring
// nested braces inside the embedded expression.
func matchBrace(raw string, start int) (int, bool) {
	depth := 0
	for i := start; i < len(raw); i++ {
		switch raw[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func isInterpIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isInterpIdentPart(ch byte) bool {
	return isInterpIdentStart(ch) || (ch >= '0' && ch <= '9')
}
