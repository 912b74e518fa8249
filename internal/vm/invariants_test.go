package vm

import (
	"testing"

	"phlox/internal/types"
)

// sampleValues covers every value tag the checker distinguishes.
func sampleValues() []Value {
	arr := NewArray()
	arr.Append(int64(1))
	return []Value{
		nil,
		true, false,
		int64(0), int64(7), int64(-3),
		0.0, 3.5,
		"", "7", "3.5", "abc",
		arr,
		NewObject("stdClass"),
	}
}

func sampleHints() []*types.Hint {
	return []*types.Hint{
		types.Simple("mixed"),
		types.Simple("int"),
		types.Simple("float"),
		types.Simple("string"),
		types.Simple("bool"),
		types.Simple("array"),
		types.Simple("null"),
		types.Simple("never"),
		types.Nullable(types.Simple("int")),
		types.Union([]*types.Hint{types.Simple("int"), types.Simple("string")}),
		types.Class("stdClass"),
	}
}

// A strict match must always be accepted by the coercive pipeline too.
func TestStrictMatchImpliesCoerciveAccept(t *testing.T) {
	machine := New(nil)
	strict := &checkCtx{vm: machine, strict: true}
	weak := &checkCtx{vm: machine, strict: false}

	for _, v := range sampleValues() {
		for _, h := range sampleHints() {
			if !strict.matches(v, h) {
				continue
			}
			if _, ok := weak.coerce(v, h); !ok {
				t.Errorf("value %v strictly matches %s but coercive binding rejects it", v, h)
			}
		}
	}
}

func TestIdenticalImpliesLooseEqual(t *testing.T) {
	vals := sampleValues()
	for _, a := range vals {
		for _, b := range vals {
			if StrictEquals(a, b) && !LooseEquals(a, b) {
				t.Errorf("%v === %v but not ==", a, b)
			}
		}
	}
}

func TestIntStringRoundTrip(t *testing.T) {
	for _, n := range []int64{0, 1, -1, 42, -9007199254740993, 1 << 62} {
		if got := ToInt(ToString(n)); got != n {
			t.Errorf("(int)(string)%d = %d", n, got)
		}
	}
}
