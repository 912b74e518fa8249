package types

import "testing"

func TestHintString(t *testing.T) {
	tests := []struct {
		hint *Hint
		want string
	}{
		{Simple("int"), "int"},
		{Nullable(Simple("string")), "?string"},
		{Union([]*Hint{Simple("int"), Simple("string")}), "int|string"},
		{Intersection([]*Hint{Class("Countable"), Class("Stringable")}), "Countable&Stringable"},
		{DNF([][]*Hint{{Class("A"), Class("B")}, {Class("C")}}), "(A&B)|C"},
		{&Hint{Kind: HintVoid}, "void"},
		{&Hint{Kind: HintStatic}, "static"},
	}
	for _, tt := range tests {
		if got := tt.hint.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestRequiresStrict(t *testing.T) {
	tests := []struct {
		hint *Hint
		want bool
	}{
		{Simple("int"), false},
		{Simple("string"), false},
		{Simple("Countable"), true},
		{Class("Foo"), true},
		{Nullable(Simple("float")), false},
		{Nullable(Class("Foo")), true},
		{Union([]*Hint{Simple("int"), Class("Foo")}), true},
		{Union([]*Hint{Simple("int"), Simple("string")}), false},
	}
	for _, tt := range tests {
		if got := tt.hint.RequiresStrict(); got != tt.want {
			t.Errorf("RequiresStrict(%s) = %v, want %v", tt.hint, got, tt.want)
		}
	}
}

func TestVisibilityString(t *testing.T) {
	if Public.String() != "public" || Protected.String() != "protected" || Private.String() != "private" {
		t.Fatal("visibility names wrong")
	}
}
