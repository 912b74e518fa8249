package parser

import (
	"strings"

	"phlox/internal/ast"
	"phlox/internal/lexer"
	"phlox/internal/types"
)

func (p *Parser) parseFunctionDecl(attrs []ast.Attribute) (ast.Stmt, error) {
	tok := p.next() // function
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	params, err := p.parseParamList(false)
	if err != nil {
		return nil, err
	}
	ret, err := p.parseOptReturnType()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.FunctionDecl{
		Position:   pos(tok.Line),
		Name:       p.declName(name.Value),
		Params:     params,
		ReturnType: ret,
		Body:       body,
		Attributes: attrs,
	}, nil
}

// parseParamList parses a parenthesized parameter list. allowPromotion
// enables constructor property promotion modifiers.
func (p *Parser) parseParamList(allowPromotion bool) ([]ast.Param, error) {
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	var params []ast.Param
	for !p.at(lexer.RPAREN) {
		var param ast.Param
		for p.at(lexer.IDENT) {
			kw := strings.ToLower(p.cur().Value)
			if kw == "public" || kw == "protected" || kw == "private" {
				if !allowPromotion {
					return nil, p.errorf("visibility modifier on non-constructor parameter")
				}
				vis, wv, err := p.parseVisibility()
				if err != nil {
					return nil, err
				}
				param.Promoted = true
				param.Visibility = vis
				param.WriteVis = wv
				continue
			}
			if kw == "readonly" {
				p.next()
				param.Readonly = true
				param.Promoted = true
				continue
			}
			break
		}
		if !p.at(lexer.VARIABLE) && !p.at(lexer.AMP) && !p.at(lexer.ELLIPSIS) {
			hint, err := p.parseTypeHint()
			if err != nil {
				return nil, err
			}
			param.Type = hint
		}
		if p.accept(lexer.AMP) {
			param.ByRef = true
		}
		if p.accept(lexer.ELLIPSIS) {
			param.Variadic = true
		}
		name, err := p.expect(lexer.VARIABLE)
		if err != nil {
			return nil, err
		}
		param.Name = name.Value
		if p.accept(lexer.ASSIGN) {
			def, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			param.Default = def
		}
		params = append(params, param)
		if !p.accept(lexer.COMMA) {
			break
		}
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	return params, nil
}

func (p *Parser) parseOptReturnType() (*types.Hint, error) {
	if !p.accept(lexer.COLON) {
		return nil, nil
	}
	return p.parseTypeHint()
}

// parseVisibility parses a visibility keyword with an optional (set)
// suffix, as in private(set).
func (p *Parser) parseVisibility() (types.Visibility, *types.Visibility, error) {
	kw := strings.ToLower(p.next().Value)
	var vis types.Visibility
	switch kw {
	case "public":
		vis = types.Public
	case "protected":
		vis = types.Protected
	case "private":
		vis = types.Private
	}
	forSet := false
	if p.at(lexer.LPAREN) && p.peek().Type == lexer.IDENT && strings.EqualFold(p.peek().Value, "set") {
		p.next() // (
		p.next() // set
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return vis, nil, err
		}
		forSet = true
	}
	if forSet {
		wv := vis
		return types.Public, &wv, nil
	}
	return vis, nil, nil
}

// parseTypeHint parses ?T, unions, intersections, and DNF groups.
func (p *Parser) parseTypeHint() (*types.Hint, error) {
	if p.accept(lexer.QUESTION) {
		inner, err := p.parseTypeAtomOrGroup()
		if err != nil {
			return nil, err
		}
		return types.Nullable(inner), nil
	}
	first, err := p.parseTypeIntersection()
	if err != nil {
		return nil, err
	}
	if !p.at(lexer.PIPE) {
		return first, nil
	}
	// union or DNF
	groups := [][]*types.Hint{flattenIntersection(first)}
	hasGroup := len(groups[0]) > 1
	for p.accept(lexer.PIPE) {
		part, err := p.parseTypeIntersection()
		if err != nil {
			return nil, err
		}
		flat := flattenIntersection(part)
		if len(flat) > 1 {
			hasGroup = true
		}
		groups = append(groups, flat)
	}
	if hasGroup {
		return types.DNF(groups), nil
	}
	parts := make([]*types.Hint, len(groups))
	for i, g := range groups {
		parts[i] = g[0]
	}
	return types.Union(parts), nil
}

func flattenIntersection(h *types.Hint) []*types.Hint {
	if h.Kind == types.HintIntersection {
		return h.Parts
	}
	return []*types.Hint{h}
}

func (p *Parser) parseTypeIntersection() (*types.Hint, error) {
	first, err := p.parseTypeAtomOrGroup()
	if err != nil {
		return nil, err
	}
	if !p.at(lexer.AMP) {
		return first, nil
	}
	parts := []*types.Hint{first}
	for p.accept(lexer.AMP) {
		atom, err := p.parseTypeAtomOrGroup()
		if err != nil {
			return nil, err
		}
		parts = append(parts, atom)
	}
	return types.Intersection(parts), nil
}

func (p *Parser) parseTypeAtomOrGroup() (*types.Hint, error) {
	if p.accept(lexer.LPAREN) {
		inner, err := p.parseTypeIntersection()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
		return inner, nil
	}
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	raw := strings.TrimPrefix(name.Value, "\\")
	switch strings.ToLower(raw) {
	case "void":
		return &types.Hint{Kind: types.HintVoid}, nil
	case "never":
		return &types.Hint{Kind: types.HintNever}, nil
	case "static":
		return &types.Hint{Kind: types.HintStatic}, nil
	case "self":
		return &types.Hint{Kind: types.HintSelf}, nil
	case "parent":
		return &types.Hint{Kind: types.HintParent}, nil
	}
	if types.IsBuiltinName(raw) {
		return types.Simple(strings.ToLower(raw)), nil
	}
	return types.Class(p.resolveClass(name.Value)), nil
}

func (p *Parser) parseClassDecl(attrs []ast.Attribute) (ast.Stmt, error) {
	tok := p.cur()
	decl := &ast.ClassDecl{Position: pos(tok.Line), Attributes: attrs}
	for !p.atKeyword("class") && p.at(lexer.IDENT) {
		switch strings.ToLower(p.cur().Value) {
		case "abstract":
			decl.Abstract = true
		case "final":
			decl.Final = true
		case "readonly":
			decl.Readonly = true
		default:
			return nil, p.errorf("unexpected modifier %q", p.cur().Value)
		}
		p.next()
	}
	if !p.acceptKeyword("class") {
		return nil, p.errorf("expected class keyword")
	}
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	decl.Name = p.declName(name.Value)
	if p.acceptKeyword("extends") {
		parent, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		decl.Parent = p.resolveClass(parent.Value)
	}
	if p.acceptKeyword("implements") {
		for {
			iface, err := p.expect(lexer.IDENT)
			if err != nil {
				return nil, err
			}
			decl.Interfaces = append(decl.Interfaces, p.resolveClass(iface.Value))
			if !p.accept(lexer.COMMA) {
				break
			}
		}
	}
	if err := p.parseClassBody(decl); err != nil {
		return nil, err
	}
	return decl, nil
}

func (p *Parser) parseClassBody(decl *ast.ClassDecl) error {
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return err
	}
	for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
		if p.acceptKeyword("use") {
			for {
				trait, err := p.expect(lexer.IDENT)
				if err != nil {
					return err
				}
				decl.Traits = append(decl.Traits, p.resolveClass(trait.Value))
				if !p.accept(lexer.COMMA) {
					break
				}
			}
			// conflict-resolution blocks are accepted and skipped
			if p.at(lexer.LBRACE) {
				depth := 0
				for {
					t := p.next()
					if t.Type == lexer.LBRACE {
						depth++
					} else if t.Type == lexer.RBRACE {
						depth--
						if depth == 0 {
							break
						}
					} else if t.Type == lexer.EOF {
						return p.errorf("unterminated trait use block")
					}
				}
			} else if _, err := p.expect(lexer.SEMICOLON); err != nil {
				return err
			}
			continue
		}
		member, err := p.parseClassMember()
		if err != nil {
			return err
		}
		switch m := member.(type) {
		case *ast.PropDecl:
			decl.Props = append(decl.Props, *m)
		case *ast.MethodDecl:
			decl.Methods = append(decl.Methods, *m)
		case *ast.ConstDecl:
			decl.Consts = append(decl.Consts, *m)
		}
	}
	_, err := p.expect(lexer.RBRACE)
	return err
}

// parseClassMember returns *ast.PropDecl, *ast.MethodDecl, or *ast.ConstDecl.
func (p *Parser) parseClassMember() (interface{}, error) {
	attrs, err := p.parseAttributes()
	if err != nil {
		return nil, err
	}

	vis := types.Public
	var writeVis *types.Visibility
	static, abstract, final, readonly := false, false, false, false

scanMods:
	for p.at(lexer.IDENT) {
		switch strings.ToLower(p.cur().Value) {
		case "public", "protected", "private":
			v, wv, err := p.parseVisibility()
			if err != nil {
				return nil, err
			}
			if wv != nil {
				writeVis = wv
			} else {
				vis = v
			}
		case "static":
			p.next()
			static = true
		case "abstract":
			p.next()
			abstract = true
		case "final":
			p.next()
			final = true
		case "readonly":
			p.next()
			readonly = true
		default:
			break scanMods
		}
	}

	if p.acceptKeyword("const") {
		name, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.ASSIGN); err != nil {
			return nil, err
		}
		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.SEMICOLON); err != nil {
			return nil, err
		}
		return &ast.ConstDecl{Name: name.Value, Value: val}, nil
	}

	if p.acceptKeyword("function") {
		name, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		isCtor := strings.EqualFold(name.Value, "__construct")
		params, err := p.parseParamList(isCtor)
		if err != nil {
			return nil, err
		}
		ret, err := p.parseOptReturnType()
		if err != nil {
			return nil, err
		}
		method := &ast.MethodDecl{
			FunctionDecl: ast.FunctionDecl{
				Position:   pos(name.Line),
				Name:       name.Value,
				Params:     params,
				ReturnType: ret,
				Attributes: attrs,
			},
			Visibility: vis,
			Static:     static,
			Abstract:   abstract,
			Final:      final,
		}
		if abstract || p.at(lexer.SEMICOLON) {
			if _, err := p.expect(lexer.SEMICOLON); err != nil {
				return nil, err
			}
			return method, nil
		}
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		method.Body = body
		return method, nil
	}

	// property declaration: optional type then $name
	prop := &ast.PropDecl{
		Visibility: vis,
		WriteVis:   writeVis,
		Readonly:   readonly,
		Static:     static,
		Line:       p.cur().Line,
	}
	for i := range attrs {
		prop.Attributes = append(prop.Attributes, attrs[i])
	}
	if !p.at(lexer.VARIABLE) {
		hint, err := p.parseTypeHint()
		if err != nil {
			return nil, err
		}
		prop.Type = hint
	}
	name, err := p.expect(lexer.VARIABLE)
	if err != nil {
		return nil, err
	}
	prop.Name = name.Value
	if p.accept(lexer.ASSIGN) {
		def, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		prop.Default = def
	}
	if p.at(lexer.LBRACE) {
		hooks, err := p.parsePropertyHooks()
		if err != nil {
			return nil, err
		}
		prop.Hooks = hooks
		return prop, nil
	}
	if _, err := p.expect(lexer.SEMICOLON); err != nil {
		return nil, err
	}
	return prop, nil
}

// parsePropertyHooks parses { get => expr; set => expr; } and block forms.
func (p *Parser) parsePropertyHooks() ([]ast.PropHook, error) {
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	var hooks []ast.PropHook
	for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
		kindTok, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		var kind ast.HookKind
		switch strings.ToLower(kindTok.Value) {
		case "get":
			kind = ast.GetHook
		case "set":
			kind = ast.SetHook
		default:
			return nil, p.errorf("expected get or set hook, found %q", kindTok.Value)
		}
		// optional set($value) parameter; the compiled hook always receives
		// the incoming value in its fixed slot
		if kind == ast.SetHook && p.accept(lexer.LPAREN) {
			for !p.at(lexer.RPAREN) && !p.at(lexer.EOF) {
				p.next()
			}
			if _, err := p.expect(lexer.RPAREN); err != nil {
				return nil, err
			}
		}
		var body []ast.Stmt
		if p.accept(lexer.DOUBLE_ARROW) {
			expr, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			// arrow forms return their expression: get yields the value,
			// set yields the value to store
			body = []ast.Stmt{&ast.ReturnStmt{Position: pos(kindTok.Line), Value: expr}}
			if _, err := p.expect(lexer.SEMICOLON); err != nil {
				return nil, err
			}
		} else {
			body, err = p.parseBlock()
			if err != nil {
				return nil, err
			}
		}
		hooks = append(hooks, ast.PropHook{Kind: kind, Body: body})
	}
	if _, err := p.expect(lexer.RBRACE); err != nil {
		return nil, err
	}
	return hooks, nil
}

func (p *Parser) parseInterfaceDecl() (ast.Stmt, error) {
	tok := p.next() // interface
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	decl := &ast.InterfaceDecl{Position: pos(tok.Line), Name: p.declName(name.Value)}
	if p.acceptKeyword("extends") {
		for {
			parent, err := p.expect(lexer.IDENT)
			if err != nil {
				return nil, err
			}
			decl.Parents = append(decl.Parents, p.resolveClass(parent.Value))
			if !p.accept(lexer.COMMA) {
				break
			}
		}
	}
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
		member, err := p.parseClassMember()
		if err != nil {
			return nil, err
		}
		switch m := member.(type) {
		case *ast.MethodDecl:
			decl.Methods = append(decl.Methods, *m)
		case *ast.ConstDecl:
			decl.Consts = append(decl.Consts, *m)
		default:
			return nil, p.errorf("interfaces may only declare methods and constants")
		}
	}
	if _, err := p.expect(lexer.RBRACE); err != nil {
		return nil, err
	}
	return decl, nil
}

func (p *Parser) parseTraitDecl() (ast.Stmt, error) {
	tok := p.next() // trait
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	decl := &ast.TraitDecl{Position: pos(tok.Line), Name: p.declName(name.Value)}
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
		member, err := p.parseClassMember()
		if err != nil {
			return nil, err
		}
		switch m := member.(type) {
		case *ast.PropDecl:
			decl.Props = append(decl.Props, *m)
		case *ast.MethodDecl:
			decl.Methods = append(decl.Methods, *m)
		default:
			return nil, p.errorf("traits may only declare properties and methods")
		}
	}
	if _, err := p.expect(lexer.RBRACE); err != nil {
		return nil, err
	}
	return decl, nil
}

func (p *Parser) parseEnumDecl() (ast.Stmt, error) {
	tok := p.next() // enum
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	decl := &ast.EnumDecl{Position: pos(tok.Line), Name: p.declName(name.Value)}
	if p.accept(lexer.COLON) {
		backing, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		lower := strings.ToLower(backing.Value)
		if lower != "int" && lower != "string" {
			return nil, p.errorf("enum backing type must be int or string, found %q", backing.Value)
		}
		decl.Backing = lower
	}
	if p.acceptKeyword("implements") {
		for {
			iface, err := p.expect(lexer.IDENT)
			if err != nil {
				return nil, err
			}
			decl.Interfaces = append(decl.Interfaces, p.resolveClass(iface.Value))
			if !p.accept(lexer.COMMA) {
				break
			}
		}
	}
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
		if p.atKeyword("case") {
			caseTok := p.next()
			caseName, err := p.expect(lexer.IDENT)
			if err != nil {
				return nil, err
			}
			c := ast.EnumCaseDecl{Name: caseName.Value, Line: caseTok.Line}
			if p.accept(lexer.ASSIGN) {
				val, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				c.Value = val
			}
			if _, err := p.expect(lexer.SEMICOLON); err != nil {
				return nil, err
			}
			decl.Cases = append(decl.Cases, c)
			continue
		}
		member, err := p.parseClassMember()
		if err != nil {
			return nil, err
		}
		switch m := member.(type) {
		case *ast.MethodDecl:
			decl.Methods = append(decl.Methods, *m)
		case *ast.ConstDecl:
			decl.Consts = append(decl.Consts, *m)
		default:
			return nil, p.errorf("enums may not declare properties")
		}
	}
	if _, err := p.expect(lexer.RBRACE); err != nil {
		return nil, err
	}
	return decl, nil
}
