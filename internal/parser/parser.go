// Package parser turns tokens into the AST consumed by the compiler. It is
// a recursive-descent parser with Pratt-style expression parsing.
package parser

import (
	"strings"

	"github.com/pkg/errors"

	"phlox/internal/ast"
	"phlox/internal/lexer"
)

// Parser consumes a token stream produced by the lexer.
type Parser struct {
	toks []lexer.Token
	pos  int
	file string

	// namespace context: declarations are prefixed, class-name uses are
	// resolved against imports so the compiler only sees qualified names
	namespace string
	aliases   map[string]string
}

// Parse tokenizes and parses one source file.
func Parse(src, file string) (*ast.Program, error) {
	toks, err := lexer.Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks, file: file, aliases: make(map[string]string)}
	return p.parseProgram()
}

// ParseExpr parses a standalone expression (used for string interpolation).
func ParseExpr(src string, line int) (ast.Expr, error) {
	toks, err := lexer.Tokenize(src)
	if err != nil {
		return nil, err
	}
	for i := range toks {
		toks[i].Line = line
	}
	p := &Parser{toks: toks, aliases: make(map[string]string)}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if p.cur().Type != lexer.EOF {
		return nil, p.errorf("unexpected %s in interpolated expression", p.cur().Type)
	}
	return expr, nil
}

func (p *Parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *Parser) peek() lexer.Token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *Parser) next() lexer.Token {
	tok := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) at(t lexer.TokenType) bool { return p.cur().Type == t }

func (p *Parser) accept(t lexer.TokenType) bool {
	if p.at(t) {
		p.next()
		return true
	}
	return false
}

func (p *Parser) expect(t lexer.TokenType) (lexer.Token, error) {
	if !p.at(t) {
		return lexer.Token{}, p.errorf("expected %s, found %s %q", t, p.cur().Type, p.cur().Value)
	}
	return p.next(), nil
}

// atKeyword matches a case-insensitive keyword identifier.
func (p *Parser) atKeyword(kw string) bool {
	return p.at(lexer.IDENT) && strings.EqualFold(p.cur().Value, kw)
}

func (p *Parser) acceptKeyword(kw string) bool {
	if p.atKeyword(kw) {
		p.next()
		return true
	}
	return false
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	return errors.Errorf("parse error on line %d: "+format,
		append([]interface{}{p.cur().Line}, args...)...)
}

func pos(line int) ast.Position { return ast.Position{Line: line} }

// parseNamespace records the declaration prefix for the rest of the file.
func (p *Parser) parseNamespace() error {
	p.next() // namespace
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return err
	}
	p.namespace = strings.Trim(name.Value, "\\")
	_, err = p.expect(lexer.SEMICOLON)
	return err
}

// parseUse records a class import, optionally aliased.
func (p *Parser) parseUse() error {
	p.next() // use
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return err
	}
	full := strings.TrimPrefix(name.Value, "\\")
	alias := full
	if i := strings.LastIndexByte(full, '\\'); i >= 0 {
		alias = full[i+1:]
	}
	if p.acceptKeyword("as") {
		a, err := p.expect(lexer.IDENT)
		if err != nil {
			return err
		}
		alias = a.Value
	}
	p.aliases[strings.ToLower(alias)] = full
	_, err = p.expect(lexer.SEMICOLON)
	return err
}

// resolveClass turns a possibly-relative class name into the qualified name
// the engine and autoloader operate on.
func (p *Parser) resolveClass(name string) string {
	if strings.HasPrefix(name, "\\") {
		return strings.TrimPrefix(name, "\\")
	}
	head := name
	if i := strings.IndexByte(name, '\\'); i >= 0 {
		head = name[:i]
	}
	if full, ok := p.aliases[strings.ToLower(head)]; ok {
		if head == name {
			return full
		}
		return full + name[len(head):]
	}
	if p.namespace != "" && !strings.ContainsRune(name, '\\') {
		// unqualified names inside a namespace resolve locally; the engine
		// falls back to the global scope for engine-defined classes
		return p.namespace + "\\" + name
	}
	return name
}

// declName prefixes a declaration with the current namespace.
func (p *Parser) declName(name string) string {
	if p.namespace == "" {
		return name
	}
	return p.namespace + "\\" + name
}

func (p *Parser) parseProgram() (*ast.Program, error) {
	prog := &ast.Program{File: p.file}
	for !p.at(lexer.EOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if stmt == nil {
			continue
		}
		if decl, ok := stmt.(*ast.DeclareStmt); ok {
			if decl.StrictTypes {
				prog.StrictTypes = true
			}
			continue
		}
		prog.Stmts = append(prog.Stmts, stmt)
	}
	return prog, nil
}

func (p *Parser) parseStatement() (ast.Stmt, error) {
	tok := p.cur()
	if tok.Type == lexer.SEMICOLON {
		p.next()
		return nil, nil
	}
	if tok.Type == lexer.LBRACE {
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &ast.BlockStmt{Position: pos(tok.Line), List: body}, nil
	}
	if tok.Type == lexer.ATTRIBUTE {
		attrs, err := p.parseAttributes()
		if err != nil {
			return nil, err
		}
		return p.parseAttributedDecl(attrs)
	}
	if tok.Type == lexer.IDENT {
		switch strings.ToLower(tok.Value) {
		case "echo":
			return p.parseEcho()
		case "if":
			return p.parseIf()
		case "while":
			return p.parseWhile()
		case "do":
			return p.parseDoWhile()
		case "for":
			return p.parseFor()
		case "foreach":
			return p.parseForeach()
		case "switch":
			return p.parseSwitch()
		case "break":
			p.next()
			if _, err := p.expect(lexer.SEMICOLON); err != nil {
				return nil, err
			}
			return &ast.BreakStmt{Position: pos(tok.Line)}, nil
		case "continue":
			p.next()
			if _, err := p.expect(lexer.SEMICOLON); err != nil {
				return nil, err
			}
			return &ast.ContinueStmt{Position: pos(tok.Line)}, nil
		case "return":
			return p.parseReturn()
		case "try":
			return p.parseTry()
		case "unset":
			return p.parseUnset()
		case "global":
			return p.parseGlobal()
		case "declare":
			return p.parseDeclare()
		case "namespace":
			return nil, p.parseNamespace()
		case "use":
			return nil, p.parseUse()
		case "function":
			// a named function is a declaration; an anonymous one is an
			// expression statement
			if p.peek().Type == lexer.IDENT {
				return p.parseFunctionDecl(nil)
			}
		case "abstract", "final", "readonly":
			if isClassAhead(p) {
				return p.parseClassDecl(nil)
			}
		case "class":
			return p.parseClassDecl(nil)
		case "interface":
			return p.parseInterfaceDecl()
		case "trait":
			return p.parseTraitDecl()
		case "enum":
			// "enum" is also a valid function name position; only a
			// declaration when followed by a name
			if p.peek().Type == lexer.IDENT {
				return p.parseEnumDecl()
			}
		case "throw":
			// statement form of the throw expression
			p.next()
			val, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.SEMICOLON); err != nil {
				return nil, err
			}
			return &ast.ExprStmt{Position: pos(tok.Line), X: &ast.Throw{Position: pos(tok.Line), Value: val}}, nil
		}
	}

	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.SEMICOLON); err != nil {
		return nil, err
	}
	return &ast.ExprStmt{Position: pos(tok.Line), X: expr}, nil
}

// isClassAhead looks past abstract/final/readonly modifiers for "class".
func isClassAhead(p *Parser) bool {
	i := p.pos
	for i < len(p.toks) && p.toks[i].Type == lexer.IDENT {
		switch strings.ToLower(p.toks[i].Value) {
		case "abstract", "final", "readonly":
			i++
		case "class":
			return true
		default:
			return false
		}
	}
	return false
}

func (p *Parser) parseBlock() ([]ast.Stmt, error) {
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	var list []ast.Stmt
	for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			list = append(list, stmt)
		}
	}
	if _, err := p.expect(lexer.RBRACE); err != nil {
		return nil, err
	}
	return list, nil
}

// parseStatementOrBlock parses either a braced block or a single statement.
func (p *Parser) parseStatementOrBlock() ([]ast.Stmt, error) {
	if p.at(lexer.LBRACE) {
		return p.parseBlock()
	}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if stmt == nil {
		return nil, nil
	}
	return []ast.Stmt{stmt}, nil
}

func (p *Parser) parseEcho() (ast.Stmt, error) {
	tok := p.next() // echo
	var values []ast.Expr
	for {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		values = append(values, expr)
		if !p.accept(lexer.COMMA) {
			break
		}
	}
	if _, err := p.expect(lexer.SEMICOLON); err != nil {
		return nil, err
	}
	return &ast.EchoStmt{Position: pos(tok.Line), Values: values}, nil
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	tok := p.next() // if
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	then, err := p.parseStatementOrBlock()
	if err != nil {
		return nil, err
	}
	stmt := &ast.IfStmt{Position: pos(tok.Line), Cond: cond, Then: then}
	if p.atKeyword("elseif") {
		elif, err := p.parseIf()
		if err != nil {
			return nil, err
		}
		stmt.Else = []ast.Stmt{elif}
	} else if p.acceptKeyword("else") {
		if p.atKeyword("if") {
			elif, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			stmt.Else = []ast.Stmt{elif}
		} else {
			els, err := p.parseStatementOrBlock()
			if err != nil {
				return nil, err
			}
			stmt.Else = els
		}
	}
	return stmt, nil
}

func (p *Parser) parseWhile() (ast.Stmt, error) {
	tok := p.next() // while
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseStatementOrBlock()
	if err != nil {
		return nil, err
	}
	return &ast.WhileStmt{Position: pos(tok.Line), Cond: cond, Body: body}, nil
}

func (p *Parser) parseDoWhile() (ast.Stmt, error) {
	tok := p.next() // do
	body, err := p.parseStatementOrBlock()
	if err != nil {
		return nil, err
	}
	if !p.acceptKeyword("while") {
		return nil, p.errorf("expected while after do body")
	}
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.SEMICOLON); err != nil {
		return nil, err
	}
	return &ast.DoWhileStmt{Position: pos(tok.Line), Body: body, Cond: cond}, nil
}

func (p *Parser) parseFor() (ast.Stmt, error) {
	tok := p.next() // for
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	var init, update []ast.Expr
	var cond ast.Expr
	var err error
	if !p.at(lexer.SEMICOLON) {
		init, err = p.parseExprList()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(lexer.SEMICOLON); err != nil {
		return nil, err
	}
	if !p.at(lexer.SEMICOLON) {
		cond, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(lexer.SEMICOLON); err != nil {
		return nil, err
	}
	if !p.at(lexer.RPAREN) {
		update, err = p.parseExprList()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseStatementOrBlock()
	if err != nil {
		return nil, err
	}
	return &ast.ForStmt{Position: pos(tok.Line), Init: init, Cond: cond, Update: update, Body: body}, nil
}

func (p *Parser) parseExprList() ([]ast.Expr, error) {
	var list []ast.Expr
	for {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		list = append(list, expr)
		if !p.accept(lexer.COMMA) {
			return list, nil
		}
	}
}

func (p *Parser) parseForeach() (ast.Stmt, error) {
	tok := p.next() // foreach
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	subject, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if !p.acceptKeyword("as") {
		return nil, p.errorf("expected as in foreach")
	}
	first, err := p.expect(lexer.VARIABLE)
	if err != nil {
		return nil, err
	}
	stmt := &ast.ForeachStmt{Position: pos(tok.Line), Subject: subject, ValVar: first.Value}
	if p.accept(lexer.DOUBLE_ARROW) {
		val, err := p.expect(lexer.VARIABLE)
		if err != nil {
			return nil, err
		}
		stmt.KeyVar = first.Value
		stmt.ValVar = val.Value
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseStatementOrBlock()
	if err != nil {
		return nil, err
	}
	stmt.Body = body
	return stmt, nil
}

func (p *Parser) parseSwitch() (ast.Stmt, error) {
	tok := p.next() // switch
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
	var cases []ast.SwitchCase
	for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
		var sc ast.SwitchCase
		if p.acceptKeyword("case") {
			cond, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			sc.Conds = []ast.Expr{cond}
		} else if p.acceptKeyword("default") {
			sc.Conds = nil
		} else {
			return nil, p.errorf("expected case or default in switch")
		}
		if !p.accept(lexer.COLON) {
			if _, err := p.expect(lexer.SEMICOLON); err != nil {
				return nil, err
			}
		}
		for !p.atKeyword("case") && !p.atKeyword("default") && !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
			stmt, err := p.parseStatement()
			if err != nil {
				return nil, err
			}
			if stmt != nil {
				sc.Body = append(sc.Body, stmt)
			}
		}
		cases = append(cases, sc)
	}
	if _, err := p.expect(lexer.RBRACE); err != nil {
		return nil, err
	}
	return &ast.SwitchStmt{Position: pos(tok.Line), Subject: subject, Cases: cases}, nil
}

func (p *Parser) parseReturn() (ast.Stmt, error) {
	tok := p.next() // return
	stmt := &ast.ReturnStmt{Position: pos(tok.Line)}
	if !p.at(lexer.SEMICOLON) {
		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Value = val
	}
	if _, err := p.expect(lexer.SEMICOLON); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseTry() (ast.Stmt, error) {
	tok := p.next() // try
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt := &ast.TryStmt{Position: pos(tok.Line), Body: body}
	for p.atKeyword("catch") {
		p.next()
		if _, err := p.expect(lexer.LPAREN); err != nil {
			return nil, err
		}
		var clause ast.CatchClause
		for {
			name, err := p.expect(lexer.IDENT)
			if err != nil {
				return nil, err
			}
			clause.Classes = append(clause.Classes, p.resolveClass(name.Value))
			if !p.accept(lexer.PIPE) {
				break
			}
		}
		if p.at(lexer.VARIABLE) {
			clause.Var = p.next().Value
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
		cb, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		clause.Body = cb
		stmt.Catches = append(stmt.Catches, clause)
	}
	if p.acceptKeyword("finally") {
		fb, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.Finally = fb
	}
	if len(stmt.Catches) == 0 && stmt.Finally == nil {
		return nil, p.errorf("try without catch or finally")
	}
	return stmt, nil
}

func (p *Parser) parseUnset() (ast.Stmt, error) {
	tok := p.next() // unset
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
	if _, err := p.expect(lexer.SEMICOLON); err != nil {
		return nil, err
	}
	return &ast.UnsetStmt{Position: pos(tok.Line), Targets: targets}, nil
}

func (p *Parser) parseGlobal() (ast.Stmt, error) {
	tok := p.next() // global
	var names []string
	for {
		v, err := p.expect(lexer.VARIABLE)
		if err != nil {
			return nil, err
		}
		names = append(names, v.Value)
		if !p.accept(lexer.COMMA) {
			break
		}
	}
	if _, err := p.expect(lexer.SEMICOLON); err != nil {
		return nil, err
	}
	return &ast.GlobalStmt{Position: pos(tok.Line), Names: names}, nil
}

func (p *Parser) parseDeclare() (ast.Stmt, error) {
	tok := p.next() // declare
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	stmt := &ast.DeclareStmt{Position: pos(tok.Line)}
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.ASSIGN); err != nil {
		return nil, err
	}
	val, err := p.expect(lexer.INT)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(name.Value, "strict_types") && val.Value == "1" {
		stmt.StrictTypes = true
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.SEMICOLON); err != nil {
		return nil, err
	}
	return stmt, nil
}

// parseAttributes consumes one or more #[...] groups.
func (p *Parser) parseAttributes() ([]ast.Attribute, error) {
	var attrs []ast.Attribute
	for p.at(lexer.ATTRIBUTE) {
		p.next()
		for {
			name, err := p.expect(lexer.IDENT)
			if err != nil {
				return nil, err
			}
			attr := ast.Attribute{Name: name.Value}
			if p.accept(lexer.LPAREN) {
				for !p.at(lexer.RPAREN) {
					arg, err := p.parseExpression()
					if err != nil {
						return nil, err
					}
					attr.Args = append(attr.Args, arg)
					if !p.accept(lexer.COMMA) {
						break
					}
				}
				if _, err := p.expect(lexer.RPAREN); err != nil {
					return nil, err
				}
			}
			attrs = append(attrs, attr)
			if !p.accept(lexer.COMMA) {
				break
			}
		}
		if _, err := p.expect(lexer.RBRACKET); err != nil {
			return nil, err
		}
	}
	return attrs, nil
}

func (p *Parser) parseAttributedDecl(attrs []ast.Attribute) (ast.Stmt, error) {
	switch {
	case p.atKeyword("function"):
		return p.parseFunctionDecl(attrs)
	case p.atKeyword("class") || isClassAhead(p):
		return p.parseClassDecl(attrs)
	case p.atKeyword("interface"):
		return p.parseInterfaceDecl()
	case p.atKeyword("trait"):
		return p.parseTraitDecl()
	case p.atKeyword("enum"):
		return p.parseEnumDecl()
	}
	return nil, p.errorf("attributes must precede a declaration")
}
