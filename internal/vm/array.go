package vm

import (
	"sort"
	"strconv"
)

// ArrayKey is a normalized array key: integer or string, never both.
type ArrayKey struct {
	Str   string
	Int   int64
	IsInt bool
}

func IntKey(i int64) ArrayKey    { return ArrayKey{Int: i, IsInt: true} }
func StringKey(s string) ArrayKey { return ArrayKey{Str: s} }

// NormalizeKey canonicalizes a key value: bools and floats become ints,
// null becomes "", and decimal integer strings collapse to int keys.
func NormalizeKey(v Value) ArrayKey {
	switch k := v.(type) {
	case nil:
		return StringKey("")
	case bool:
		if k {
			return IntKey(1)
		}
		return IntKey(0)
	case int64:
		return IntKey(k)
	case float64:
		return IntKey(int64(k))
	case string:
		if n, ok := canonicalIntString(k); ok {
			return IntKey(n)
		}
		return StringKey(k)
	case *EnumCase:
		// backed cases key by their backing value
		if k.Backing != nil {
			return NormalizeKey(k.Backing)
		}
		return StringKey(k.Enum + "::" + k.Case)
	default:
		return StringKey(ToString(v))
	}
}

// canonicalIntString accepts only strings whose integer round-trip is
// byte-identical, so "08" and "1.0" stay string keys.
func canonicalIntString(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	if strconv.FormatInt(n, 10) != s {
		return 0, false
	}
	return n, true
}

// Display renders a key for diagnostics and key iteration.
func (k ArrayKey) Display() Value {
	if k.IsInt {
		return k.Int
	}
	return k.Str
}

// Array is an insertion-ordered map with PHP key semantics.
type Array struct {
	keys  []ArrayKey
	items map[ArrayKey]Value
	next  int64 // next auto-index
}

func NewArray() *Array {
	return &Array{items: make(map[ArrayKey]Value)}
}

func (a *Array) Len() int { return len(a.keys) }

// Get returns the stored value and whether the key exists.
func (a *Array) Get(key Value) (Value, bool) {
	v, ok := a.items[NormalizeKey(key)]
	return v, ok
}

func (a *Array) GetKey(k ArrayKey) (Value, bool) {
	v, ok := a.items[k]
	return v, ok
}

// Set stores under a normalized key, preserving insertion order for new
// keys and bumping the auto-index past explicit int keys.
func (a *Array) Set(key, val Value) {
	a.SetKey(NormalizeKey(key), val)
}

func (a *Array) SetKey(k ArrayKey, val Value) {
	if _, exists := a.items[k]; !exists {
		a.keys = append(a.keys, k)
	}
	a.items[k] = val
	if k.IsInt && k.Int >= a.next {
		a.next = k.Int + 1
	}
}

// Append stores at the next auto-index.
func (a *Array) Append(val Value) {
	a.SetKey(IntKey(a.next), val)
}

// Delete removes a key; insertion order of the rest is preserved and the
// auto-index does not rewind.
func (a *Array) Delete(key Value) {
	k := NormalizeKey(key)
	if _, ok := a.items[k]; !ok {
		return
	}
	delete(a.items, k)
	for i, existing := range a.keys {
		if existing == k {
			a.keys = append(a.keys[:i], a.keys[i+1:]...)
			break
		}
	}
}

// Reset empties the array and rewinds the auto-index. The shifting
// builtins rebuild contents in place through it.
func (a *Array) Reset() {
	a.keys = a.keys[:0]
	a.items = make(map[ArrayKey]Value)
	a.next = 0
}

// KeyAt and ValueAt support index-based iteration (foreach snapshots).
func (a *Array) KeyAt(i int) Value {
	if i < 0 || i >= len(a.keys) {
		return nil
	}
	return a.keys[i].Display()
}

func (a *Array) ValueAt(i int) Value {
	if i < 0 || i >= len(a.keys) {
		return nil
	}
	return a.items[a.keys[i]]
}

// Keys returns the keys in insertion order.
func (a *Array) Keys() []ArrayKey {
	out := make([]ArrayKey, len(a.keys))
	copy(out, a.keys)
	return out
}

// Copy performs the deep copy used for assignment semantics: nested arrays
// copy recursively, objects keep their handles.
func (a *Array) Copy() *Array {
	out := &Array{
		keys:  make([]ArrayKey, len(a.keys)),
		items: make(map[ArrayKey]Value, len(a.items)),
		next:  a.next,
	}
	copy(out.keys, a.keys)
	for k, v := range a.items {
		out.items[k] = CopyValue(v)
	}
	return out
}

// Extend merges src into a: string keys overwrite, int keys renumber onto
// the destination's auto-index. This is the + spread / array unpacking rule.
func (a *Array) Extend(src *Array) {
	for _, k := range src.keys {
		v := src.items[k]
		if k.IsInt {
			a.Append(CopyValue(v))
		} else {
			a.SetKey(k, CopyValue(v))
		}
	}
}

// Renumber rebuilds sequential int keys, keeping string keys in place.
// Used by array_values-style builtins via List.
func (a *Array) List() []Value {
	out := make([]Value, 0, len(a.keys))
	for _, k := range a.keys {
		out = append(out, a.items[k])
	}
	return out
}

// SortBy reorders keys using the supplied comparison over values; used by
// the sorting builtins. When renumber is set, int keys are discarded and
// values reindexed from zero.
func (a *Array) SortBy(less func(x, y Value) bool, renumber bool) {
	keys := a.Keys()
	sort.SliceStable(keys, func(i, j int) bool {
		return less(a.items[keys[i]], a.items[keys[j]])
	})
	if !renumber {
		a.keys = keys
		return
	}
	items := make([]Value, len(keys))
	for i, k := range keys {
		items[i] = a.items[k]
	}
	a.keys = a.keys[:0]
	a.items = make(map[ArrayKey]Value, len(items))
	a.next = 0
	for _, v := range items {
		a.Append(v)
	}
}

// SortKeys reorders by key using the supplied comparison; used by ksort
// and uksort.
func (a *Array) SortKeys(less func(x, y Value) bool) {
	keys := a.Keys()
	sort.SliceStable(keys, func(i, j int) bool {
		return less(keys[i].Display(), keys[j].Display())
	})
	a.keys = keys
}
