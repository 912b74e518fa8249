// Package types holds the type-hint representation shared by the parser,
// compiler, and VM. Hints are immutable after construction.
package types

import "strings"

// HintKind discriminates the Hint variants.
type HintKind int

const (
	HintSimple HintKind = iota // scalar or special name: int, string, mixed, ...
	HintClass                  // class, interface, or enum name
	HintNullable
	HintUnion        // A|B|C
	HintIntersection // A&B
	HintDNF          // (A&B)|C — outer or of inner intersection groups
	HintVoid
	HintNever
	HintStatic
	HintSelf
	HintParent
)

// Hint is a parsed type declaration.
type Hint struct {
	Kind   HintKind
	Name   string   // HintSimple / HintClass
	Inner  *Hint    // HintNullable
	Parts  []*Hint  // HintUnion / HintIntersection
	Groups [][]*Hint // HintDNF: each group is an intersection
}

func Simple(name string) *Hint    { return &Hint{Kind: HintSimple, Name: name} }
func Class(name string) *Hint     { return &Hint{Kind: HintClass, Name: name} }
func Nullable(inner *Hint) *Hint  { return &Hint{Kind: HintNullable, Inner: inner} }
func Union(parts []*Hint) *Hint   { return &Hint{Kind: HintUnion, Parts: parts} }
func Intersection(parts []*Hint) *Hint {
	return &Hint{Kind: HintIntersection, Parts: parts}
}
func DNF(groups [][]*Hint) *Hint { return &Hint{Kind: HintDNF, Groups: groups} }

var scalarNames = map[string]bool{
	"int":      true,
	"string":   true,
	"float":    true,
	"bool":     true,
	"array":    true,
	"mixed":    true,
	"null":     true,
	"callable": true,
	"iterable": true,
	"object":   true,
	"false":    true,
	"true":     true,
}

// IsBuiltinName reports whether name is a built-in type name rather than a
// class name. Used by the parser to decide between HintSimple and HintClass.
func IsBuiltinName(name string) bool {
	return scalarNames[strings.ToLower(name)]
}

// RequiresStrict reports whether the hint must be checked strictly even in a
// coercive-mode file. Class hints and non-scalar simple names never coerce.
func (h *Hint) RequiresStrict() bool {
	switch h.Kind {
	case HintClass:
		return true
	case HintSimple:
		return !scalarNames[h.Name]
	case HintNullable:
		return h.Inner.RequiresStrict()
	case HintUnion, HintIntersection:
		for _, p := range h.Parts {
			if p.RequiresStrict() {
				return true
			}
		}
		return false
	case HintDNF:
		for _, g := range h.Groups {
			for _, p := range g {
				if p.RequiresStrict() {
					return true
				}
			}
		}
		return false
	}
	return false
}

// String renders the hint the way it appears in diagnostics: ?T, A|B, A&B,
// (A&B)|C.
func (h *Hint) String() string {
	switch h.Kind {
	case HintSimple, HintClass:
		return h.Name
	case HintNullable:
		return "?" + h.Inner.String()
	case HintUnion:
		return joinHints(h.Parts, "|")
	case HintIntersection:
		return joinHints(h.Parts, "&")
	case HintDNF:
		var sb strings.Builder
		for i, g := range h.Groups {
			if i > 0 {
				sb.WriteByte('|')
			}
			if len(g) > 1 {
				sb.WriteByte('(')
				sb.WriteString(joinHints(g, "&"))
				sb.WriteByte(')')
			} else {
				sb.WriteString(joinHints(g, "&"))
			}
		}
		return sb.String()
	case HintVoid:
		return "void"
	case HintNever:
		return "never"
	case HintStatic:
		return "static"
	case HintSelf:
		return "self"
	case HintParent:
		return "parent"
	}
	return ""
}

func joinHints(parts []*Hint, sep string) string {
	names := make([]string, len(parts))
	for i, p := range parts {
		names[i] = p.String()
	}
	return strings.Join(names, sep)
}

// Visibility of properties and methods.
type Visibility int

const (
	Public Visibility = iota
	Protected
	Private
)

func (v Visibility) String() string {
	switch v {
	case Private:
		return "private"
	case Protected:
		return "protected"
	default:
		return "public"
	}
}
