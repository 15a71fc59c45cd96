package domain

import "testing"

func TestTypeString(t *testing.T) {
	cases := []struct {
		ty   Type
		want string
	}{
		{Type{Head: "int"}, "int"},
		{Type{Head: "*", Args: []Type{{Head: "bytes.Buffer"}}}, "*bytes.Buffer"},
		{Type{Head: "[]", Args: []Type{{Head: "string"}}}, "[]string"},
		{Type{Head: "map", Args: []Type{{Head: "string"}, {Head: "int"}}}, "map[string]int"},
		{Type{Head: "chan", Args: []Type{{Head: "error"}}}, "chan error"},
		{Type{Head: "<-chan", Args: []Type{{Head: "int"}}}, "<-chan int"},
		{Type{Head: "...", Args: []Type{{Head: "any"}}}, "...any"},
		{Type{Head: "List", Args: []Type{{Head: "int"}}}, "List[int]"},
		{Type{Head: "*", Args: []Type{{Head: "[]", Args: []Type{{Head: "byte"}}}}}, "*[]byte"},
	}
	for _, c := range cases {
		if got := c.ty.String(); got != c.want {
			t.Errorf("String() = %q, want %q", got, c.want)
		}
	}
}

func TestTypeNormalized(t *testing.T) {
	ty := Type{Head: "map", Args: []Type{
		{Head: "pkg.Key"},
		{Head: "interface{}"},
	}}
	n := ty.Normalized()
	if n.Args[0].Head != "Key" {
		t.Errorf("expected qualifier stripped, got %q", n.Args[0].Head)
	}
	if n.Args[1].Head != "any" {
		t.Errorf("expected interface{} rewritten to any, got %q", n.Args[1].Head)
	}
}

func TestTypeHeadName(t *testing.T) {
	if got := (Type{Head: "bytes.Buffer"}).HeadName(); got != "Buffer" {
		t.Errorf("HeadName() = %q, want Buffer", got)
	}
	if got := (Type{Head: "func(a.B)"}).HeadName(); got != "func(a.B)" {
		t.Errorf("function literal head must stay opaque, got %q", got)
	}
}

func TestTypeEqual(t *testing.T) {
	a := Type{Head: "[]", Args: []Type{{Head: "int"}}}
	b := Type{Head: "[]", Args: []Type{{Head: "int"}}}
	c := Type{Head: "[]", Args: []Type{{Head: "int64"}}}
	if !a.Equal(b) {
		t.Error("identical types must compare equal")
	}
	if a.Equal(c) {
		t.Error("different element types must not compare equal")
	}
}

func TestCtxArgsValidate(t *testing.T) {
	ok := CtxArgs{CtxSize: 16, LeftMargin: 4, RightMargin: 4}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid geometry rejected: %v", err)
	}
	if ok.WindowSize() != 8 {
		t.Errorf("WindowSize() = %d, want 8", ok.WindowSize())
	}

	noWindow := CtxArgs{CtxSize: 8, LeftMargin: 4, RightMargin: 4}
	if err := noWindow.Validate(); err == nil {
		t.Error("empty window must be rejected")
	}

	overBudget := CtxArgs{CtxSize: 200, LeftMargin: 10, RightMargin: 10}
	if err := overBudget.Validate(); err == nil {
		t.Error("window wider than the marker budget must be rejected")
	}
}
