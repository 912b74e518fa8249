package compiler

import "phlox/internal/ast"

// freeVars collects variables referenced by an arrow-function body that are
// not parameters, in first-use order. Arrow functions capture their
// enclosing scope implicitly, so every free variable becomes a capture.
func freeVars(body ast.Expr, bound map[string]bool) []string {
	w := &fvWalker{bound: bound, seen: map[string]bool{}}
	w.expr(body)
	return w.free
}

type fvWalker struct {
	bound map[string]bool
	seen  map[string]bool
	free  []string
}

func (w *fvWalker) use(name string) {
	if w.bound[name] || w.seen[name] {
		return
	}
	w.seen[name] = true
	w.free = append(w.free, name)
}

func (w *fvWalker) expr(e ast.Expr) {
	switch x := e.(type) {
	case nil:
	case *ast.Var:
		w.use(x.Name)
	case *ast.InterpString:
		for _, p := range x.Parts {
			w.expr(p)
		}
	case *ast.ArrayLit:
		for _, item := range x.Items {
			w.expr(item.Key)
			w.expr(item.Value)
		}
	case *ast.Assign:
		w.expr(x.Target)
		w.expr(x.Value)
	case *ast.IncDec:
		w.expr(x.Target)
	case *ast.Unary:
		w.expr(x.X)
	case *ast.Binary:
		w.expr(x.L)
		w.expr(x.R)
	case *ast.Ternary:
		w.expr(x.Cond)
		w.expr(x.Then)
		w.expr(x.Else)
	case *ast.Call:
		w.expr(x.Callee)
		w.args(x.Args)
	case *ast.MethodCall:
		w.expr(x.Obj)
		w.args(x.Args)
	case *ast.StaticCall:
		w.args(x.Args)
	case *ast.PropFetch:
		w.expr(x.Obj)
	case *ast.Index:
		w.expr(x.Arr)
		w.expr(x.Key)
	case *ast.New:
		w.args(x.Args)
	case *ast.Clone:
		w.expr(x.Obj)
		for _, with := range x.With {
			w.expr(with.Value)
		}
	case *ast.InstanceOf:
		w.expr(x.Obj)
	case *ast.Closure:
		// explicit use() list decides captures; the outer scope only needs
		// the names the nested closure itself pulls in
		for _, use := range x.Uses {
			w.use(use.Name)
		}
	case *ast.ArrowFn:
		inner := map[string]bool{"this": true}
		for name := range w.bound {
			inner[name] = true
		}
		for _, p := range x.Params {
			inner[p.Name] = true
		}
		nested := &fvWalker{bound: inner, seen: map[string]bool{}}
		nested.expr(x.Body)
		for _, name := range nested.free {
			w.use(name)
		}
	case *ast.Match:
		w.expr(x.Subject)
		for _, arm := range x.Arms {
			for _, cond := range arm.Conds {
				w.expr(cond)
			}
			w.expr(arm.Body)
		}
	case *ast.Throw:
		w.expr(x.Value)
	case *ast.Yield:
		w.expr(x.Key)
		w.expr(x.Value)
	case *ast.YieldFrom:
		w.expr(x.X)
	case *ast.Cast:
		w.expr(x.X)
	case *ast.Isset:
		for _, t := range x.Targets {
			w.expr(t)
		}
	case *ast.Empty:
		w.expr(x.X)
	case *ast.Print:
		w.expr(x.X)
	case *ast.Exit:
		w.expr(x.X)
	}
}

func (w *fvWalker) args(args []ast.Arg) {
	for _, a := range args {
		w.expr(a.Value)
	}
}
