package compiler

import (
	"strings"

	"phlox/internal/ast"
	"phlox/internal/bytecode"
	"phlox/internal/types"
)

func (c *Compiler) compileClass(d *ast.ClassDecl) error {
	key := lower(d.Name)
	if _, dup := c.prog.Classes[key]; dup {
		return c.errorf(d.Pos(), "cannot redeclare class %s", d.Name)
	}
	cls := bytecode.NewClass(d.Name)
	cls.Abstract = d.Abstract
	cls.Final = d.Final
	cls.Readonly = d.Readonly
	cls.Parent = d.Parent
	cls.Interfaces = d.Interfaces
	cls.Traits = d.Traits
	for _, attr := range d.Attributes {
		cls.Attributes = append(cls.Attributes, attr.Name)
	}

	if err := c.mergeTraits(cls, d); err != nil {
		return err
	}

	for _, cd := range d.Consts {
		if _, dup := cls.Consts[cd.Name]; dup {
			return c.errorf(d.Pos(), "cannot redefine class constant %s::%s", d.Name, cd.Name)
		}
		k, ok := foldConst(cd.Value)
		if !ok {
			return c.errorf(d.Pos(), "constant %s::%s must have a constant value", d.Name, cd.Name)
		}
		cls.Consts[cd.Name] = k
	}

	for i := range d.Props {
		if err := c.compileProp(cls, d, &d.Props[i]); err != nil {
			return err
		}
	}

	seenMethods := make(map[string]bool)
	for i := range d.Methods {
		mk := lower(d.Methods[i].Name)
		if seenMethods[mk] {
			return c.errorf(d.Methods[i].Pos(), "cannot redeclare %s::%s()", d.Name, d.Methods[i].Name)
		}
		seenMethods[mk] = true
		if err := c.compileMethod(cls, d.Name, &d.Methods[i]); err != nil {
			return err
		}
	}

	if !cls.Abstract {
		for name, abstract := range cls.MethodAbstract {
			if abstract {
				return c.errorf(d.Pos(),
					"class %s contains abstract method %s and must be declared abstract", d.Name, name)
			}
		}
	}

	if err := c.checkInheritance(cls, d); err != nil {
		return err
	}

	if err := c.checkInterfaces(cls, d); err != nil {
		return err
	}

	c.prog.Classes[key] = cls
	return nil
}

// mergeTraits folds trait members into the class. A method declared on the
// class itself always wins; two traits supplying the same method without a
// class override is a collision.
func (c *Compiler) mergeTraits(cls *bytecode.Class, d *ast.ClassDecl) error {
	own := make(map[string]bool)
	for i := range d.Methods {
		own[lower(d.Methods[i].Name)] = true
	}
	ownProps := make(map[string]bool)
	for i := range d.Props {
		ownProps[d.Props[i].Name] = true
	}
	from := make(map[string]string) // method key -> trait that supplied it
	for _, tname := range d.Traits {
		tr, ok := c.prog.Traits[lower(tname)]
		if !ok {
			return c.errorf(d.Pos(), "trait %q not found", tname)
		}
		for key, fn := range tr.Methods {
			if own[key] {
				continue
			}
			if prev, clash := from[key]; clash {
				return c.errorf(d.Pos(),
					"trait method %s collides between %s and %s", key, prev, tname)
			}
			from[key] = tname
			cls.Methods[key] = fn
			cls.MethodVis[key] = types.Public
		}
		for i := range tr.Props {
			if ownProps[tr.Props[i].Name] {
				continue
			}
			cls.Props = append(cls.Props, tr.Props[i])
		}
	}
	return nil
}

func (c *Compiler) compileProp(cls *bytecode.Class, d *ast.ClassDecl, pd *ast.PropDecl) error {
	prop := bytecode.Property{
		Name:       pd.Name,
		Visibility: pd.Visibility,
		WriteVis:   pd.WriteVis,
		Readonly:   pd.Readonly || d.Readonly,
		Static:     pd.Static,
		Type:       pd.Type,
	}
	for _, attr := range pd.Attributes {
		prop.Attributes = append(prop.Attributes, attr.Name)
	}
	if pd.Default != nil {
		k, ok := foldConst(pd.Default)
		if !ok {
			return c.errorf(pd.Line, "default value for property %s::$%s must be a constant expression",
				d.Name, pd.Name)
		}
		prop.Default = &k
	}

	if len(pd.Hooks) > 0 && pd.WriteVis != nil {
		return c.errorf(pd.Line, "hooked property %s::$%s cannot have asymmetric visibility",
			d.Name, pd.Name)
	}
	for _, hook := range pd.Hooks {
		if pd.Static {
			return c.errorf(pd.Line, "static property %s::$%s cannot have hooks", d.Name, pd.Name)
		}
		switch hook.Kind {
		case ast.GetHook:
			hookName := "__prop_get_" + pd.Name
			fn, err := c.compileFunction(d.Name+"::$"+pd.Name+"::get", nil, pd.Type, hook.Body,
				fnOpts{method: true, class: d.Name})
			if err != nil {
				return err
			}
			cls.Methods[lower(hookName)] = fn
			prop.GetHook = hookName
		case ast.SetHook:
			hookName := "__prop_set_" + pd.Name
			params := []ast.Param{{Name: "value", Type: pd.Type}}
			fn, err := c.compileFunction(d.Name+"::$"+pd.Name+"::set", params, nil, hook.Body,
				fnOpts{method: true, class: d.Name})
			if err != nil {
				return err
			}
			cls.Methods[lower(hookName)] = fn
			prop.SetHook = hookName
		}
	}

	if pd.Static {
		init := bytecode.NullConst()
		if prop.Default != nil {
			init = *prop.Default
		}
		cls.StaticDefaults[pd.Name] = init
		if prop.Readonly {
			cls.ReadonlyStatics[pd.Name] = true
		}
		return nil
	}
	cls.Props = append(cls.Props, prop)
	return nil
}

func (c *Compiler) compileMethod(cls *bytecode.Class, className string, m *ast.MethodDecl) error {
	key := lower(m.Name)
	isCtor := key == "__construct"

	if m.Abstract {
		cls.MethodAbstract[key] = true
		cls.MethodVis[key] = m.Visibility
		return nil
	}

	fn, err := c.compileFunction(className+"::"+m.Name, m.Params, m.ReturnType, m.Body,
		fnOpts{method: !m.Static, static: m.Static, class: className, ctor: isCtor})
	if err != nil {
		return err
	}

	if isCtor {
		for _, p := range m.Params {
			if !p.Promoted {
				continue
			}
			prop := bytecode.Property{
				Name:       p.Name,
				Visibility: p.Visibility,
				WriteVis:   p.WriteVis,
				Readonly:   p.Readonly,
				Type:       p.Type,
			}
			cls.Props = append(cls.Props, prop)
		}
	}

	if m.Static {
		cls.StaticMethods[key] = fn
	} else {
		cls.Methods[key] = fn
	}
	cls.MethodVis[key] = m.Visibility
	if m.Final {
		cls.MethodFinal[key] = true
	}
	return nil
}

// checkInheritance enforces the declaration rules that need the ancestor
// chain: a final class cannot be extended, a final method cannot be
// overridden, a concrete class must implement every inherited abstract
// method, and #[Override] must name an actual override. An ancestor
// declared later in the unit links at runtime and skips these checks.
func (c *Compiler) checkInheritance(cls *bytecode.Class, d *ast.ClassDecl) error {
	chain := c.ancestorChain(cls)
	if len(chain) > 0 && chain[0].Final {
		return c.errorf(d.Pos(), "class %s cannot extend final class %s", d.Name, chain[0].Name)
	}

	for i := range d.Methods {
		m := &d.Methods[i]
		key := lower(m.Name)
		for _, anc := range chain {
			if anc.MethodFinal[key] {
				return c.errorf(m.Pos(), "cannot override final method %s::%s()", anc.Name, m.Name)
			}
		}
		if hasAttribute(m.Attributes, "Override") && !c.overridesAncestor(cls, chain, key) {
			return c.errorf(m.Pos(),
				"%s::%s() has #[Override] attribute, but no matching parent method exists", d.Name, m.Name)
		}
	}

	if !cls.Abstract {
		implemented := make(map[string]bool)
		for k := range cls.Methods {
			implemented[k] = true
		}
		for k := range cls.StaticMethods {
			implemented[k] = true
		}
		for _, anc := range chain {
			for key, abstract := range anc.MethodAbstract {
				if abstract && !implemented[key] {
					return c.errorf(d.Pos(),
						"class %s must implement inherited abstract method %s::%s", d.Name, anc.Name, key)
				}
			}
			for k := range anc.Methods {
				implemented[k] = true
			}
			for k := range anc.StaticMethods {
				implemented[k] = true
			}
		}
	}
	return nil
}

// ancestorChain walks Parent links through classes compiled so far,
// nearest first.
func (c *Compiler) ancestorChain(cls *bytecode.Class) []*bytecode.Class {
	var chain []*bytecode.Class
	for name := cls.Parent; name != ""; {
		anc, ok := c.prog.Classes[lower(name)]
		if !ok {
			break
		}
		chain = append(chain, anc)
		name = anc.Parent
	}
	return chain
}

// overridesAncestor reports whether key names a method declared by an
// ancestor class or required by an implemented interface.
func (c *Compiler) overridesAncestor(cls *bytecode.Class, chain []*bytecode.Class, key string) bool {
	for _, anc := range chain {
		if _, ok := anc.Methods[key]; ok {
			return true
		}
		if _, ok := anc.StaticMethods[key]; ok {
			return true
		}
		if anc.MethodAbstract[key] {
			return true
		}
	}
	for _, cl := range append([]*bytecode.Class{cls}, chain...) {
		for _, iname := range cl.Interfaces {
			iface, ok := c.prog.Interfaces[lower(iname)]
			if !ok {
				continue
			}
			for _, m := range c.interfaceMethods(iface) {
				if m == key {
					return true
				}
			}
		}
	}
	return false
}

func hasAttribute(attrs []ast.Attribute, name string) bool {
	for _, a := range attrs {
		if strings.EqualFold(a.Name, name) {
			return true
		}
	}
	return false
}

// checkInterfaces verifies declared interfaces exist and, for classes
// without a parent, that every required method is present. Inherited
// methods cannot be checked until runtime linking, so parented classes
// defer the check.
func (c *Compiler) checkInterfaces(cls *bytecode.Class, d *ast.ClassDecl) error {
	for _, iname := range d.Interfaces {
		iface, ok := c.prog.Interfaces[lower(iname)]
		if !ok {
			return c.errorf(d.Pos(), "interface %q not found", iname)
		}
		c.adoptInterfaceConsts(cls, iface)
		if cls.Parent != "" || cls.Abstract {
			continue
		}
		for _, required := range c.interfaceMethods(iface) {
			if _, ok := cls.Methods[required]; ok {
				continue
			}
			if _, ok := cls.StaticMethods[required]; ok {
				continue
			}
			return c.errorf(d.Pos(), "class %s must implement method %s from interface %s",
				d.Name, required, iface.Name)
		}
	}
	return nil
}

func (c *Compiler) adoptInterfaceConsts(cls *bytecode.Class, iface *bytecode.Interface) {
	for name, k := range iface.Consts {
		if _, ok := cls.Consts[name]; !ok {
			cls.Consts[name] = k
		}
	}
	for _, pname := range iface.Parents {
		if parent, ok := c.prog.Interfaces[lower(pname)]; ok {
			c.adoptInterfaceConsts(cls, parent)
		}
	}
}

func (c *Compiler) interfaceMethods(iface *bytecode.Interface) []string {
	out := append([]string(nil), iface.Methods...)
	for _, pname := range iface.Parents {
		if parent, ok := c.prog.Interfaces[lower(pname)]; ok {
			out = append(out, c.interfaceMethods(parent)...)
		}
	}
	return out
}

func (c *Compiler) compileInterface(d *ast.InterfaceDecl) error {
	key := lower(d.Name)
	if _, dup := c.prog.Interfaces[key]; dup {
		return c.errorf(d.Pos(), "cannot redeclare interface %s", d.Name)
	}
	iface := bytecode.NewInterface(d.Name)
	iface.Parents = d.Parents
	for i := range d.Methods {
		iface.Methods = append(iface.Methods, lower(d.Methods[i].Name))
	}
	for _, cd := range d.Consts {
		k, ok := foldConst(cd.Value)
		if !ok {
			return c.errorf(d.Pos(), "constant %s::%s must have a constant value", d.Name, cd.Name)
		}
		iface.Consts[cd.Name] = k
	}
	c.prog.Interfaces[key] = iface
	return nil
}

func (c *Compiler) compileTrait(d *ast.TraitDecl) error {
	key := lower(d.Name)
	if _, dup := c.prog.Traits[key]; dup {
		return c.errorf(d.Pos(), "cannot redeclare trait %s", d.Name)
	}
	tr := bytecode.NewTrait(d.Name)
	for i := range d.Props {
		pd := &d.Props[i]
		if len(pd.Hooks) > 0 {
			return c.errorf(pd.Line, "property hooks are not supported in traits")
		}
		prop := bytecode.Property{
			Name:       pd.Name,
			Visibility: pd.Visibility,
			WriteVis:   pd.WriteVis,
			Readonly:   pd.Readonly,
			Static:     pd.Static,
			Type:       pd.Type,
		}
		if pd.Default != nil {
			k, ok := foldConst(pd.Default)
			if !ok {
				return c.errorf(pd.Line, "default value for property %s::$%s must be a constant expression",
					d.Name, pd.Name)
			}
			prop.Default = &k
		}
		tr.Props = append(tr.Props, prop)
	}
	for i := range d.Methods {
		m := &d.Methods[i]
		if m.Abstract {
			// abstract trait requirements are enforced by the using class's
			// own abstract check once merged; skip the body
			continue
		}
		fn, err := c.compileFunction(d.Name+"::"+m.Name, m.Params, m.ReturnType, m.Body,
			fnOpts{method: !m.Static, static: m.Static, class: d.Name, ctor: lower(m.Name) == "__construct"})
		if err != nil {
			return err
		}
		tr.Methods[lower(m.Name)] = fn
	}
	c.prog.Traits[key] = tr
	return nil
}

func (c *Compiler) compileEnum(d *ast.EnumDecl) error {
	key := lower(d.Name)
	if _, dup := c.prog.Enums[key]; dup {
		return c.errorf(d.Pos(), "cannot redeclare enum %s", d.Name)
	}
	en := bytecode.NewEnum(d.Name, d.Backing)
	en.Interfaces = d.Interfaces

	seenValues := make(map[bytecode.Const]string)
	for _, cd := range d.Cases {
		if _, dup := en.Cases[cd.Name]; dup {
			return c.errorf(cd.Line, "cannot redeclare enum case %s::%s", d.Name, cd.Name)
		}
		if d.Backing == "" {
			if cd.Value != nil {
				return c.errorf(cd.Line, "case %s of pure enum %s must not have a value", cd.Name, d.Name)
			}
			en.Cases[cd.Name] = nil
			en.CaseOrder = append(en.CaseOrder, cd.Name)
			continue
		}
		if cd.Value == nil {
			return c.errorf(cd.Line, "case %s of backed enum %s must have a value", cd.Name, d.Name)
		}
		k, ok := foldConst(cd.Value)
		if !ok {
			return c.errorf(cd.Line, "enum case %s::%s must have a constant value", d.Name, cd.Name)
		}
		switch {
		case d.Backing == "int" && k.Kind != bytecode.ConstInt:
			return c.errorf(cd.Line, "enum case %s::%s must have an int backing value", d.Name, cd.Name)
		case d.Backing == "string" && k.Kind != bytecode.ConstString:
			return c.errorf(cd.Line, "enum case %s::%s must have a string backing value", d.Name, cd.Name)
		}
		if prev, dup := seenValues[k]; dup {
			return c.errorf(cd.Line, "enum %s cases %s and %s share a backing value", d.Name, prev, cd.Name)
		}
		seenValues[k] = cd.Name
		en.Cases[cd.Name] = &k
		en.CaseOrder = append(en.CaseOrder, cd.Name)
	}

	for _, cd := range d.Consts {
		k, ok := foldConst(cd.Value)
		if !ok {
			return c.errorf(d.Pos(), "constant %s::%s must have a constant value", d.Name, cd.Name)
		}
		en.Consts[cd.Name] = k
	}

	reserved := map[string]bool{"cases": true, "from": true, "tryfrom": true}
	for i := range d.Methods {
		m := &d.Methods[i]
		mk := lower(m.Name)
		if reserved[mk] {
			return c.errorf(m.Pos(), "cannot redeclare %s::%s()", d.Name, m.Name)
		}
		fn, err := c.compileFunction(d.Name+"::"+m.Name, m.Params, m.ReturnType, m.Body,
			fnOpts{method: !m.Static, static: m.Static, class: d.Name})
		if err != nil {
			return err
		}
		if m.Static {
			en.StaticMethods[mk] = fn
		} else {
			en.Methods[mk] = fn
		}
	}

	c.prog.Enums[key] = en
	return nil
}
