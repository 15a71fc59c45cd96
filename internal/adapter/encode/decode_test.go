package encode

import (
	"testing"

	"typeinf/internal/adapter/vocab"
	"typeinf/internal/domain"
)

func TestSplitOutput(t *testing.T) {
	v := vocab.New()
	a := v.Encode("int")
	b := v.Encode("[]string")

	ids := []int{v.BOS()}
	ids = append(ids, v.MarkerID(99))
	ids = append(ids, a...)
	ids = append(ids, v.MarkerID(98))
	ids = append(ids, b...)
	ids = append(ids, v.EOS())

	seqs := SplitOutput(ids, v)
	if len(seqs) != 2 {
		t.Fatalf("got %d sequences, want 2", len(seqs))
	}
	if v.Decode(seqs[0]) != "int" {
		t.Errorf("first sequence decodes to %q", v.Decode(seqs[0]))
	}
	if v.Decode(seqs[1]) != "[]string" {
		t.Errorf("second sequence decodes to %q", v.Decode(seqs[1]))
	}
}

func TestDecodeOutput_WellFormed(t *testing.T) {
	v := vocab.New()
	ids := []int{v.MarkerID(99)}
	ids = append(ids, v.Encode("map[string]int")...)
	ids = append(ids, v.MarkerID(98))
	ids = append(ids, v.Encode("*Point")...)

	types := DecodeOutput(ids, v, 2)
	if len(types) != 2 {
		t.Fatalf("got %d types, want 2", len(types))
	}
	if types[0].String() != "map[string]int" {
		t.Errorf("types[0] = %s", types[0])
	}
	if types[1].String() != "*Point" {
		t.Errorf("types[1] = %s", types[1])
	}
}

func TestDecodeOutput_Corrupted(t *testing.T) {
	v := vocab.New()
	garbage := v.Encode("!!not a type!!")

	cases := []struct {
		name string
		ids  []int
	}{
		{"empty", nil},
		{"no markers", v.Encode("int string")},
		{"garbage before first marker", append(v.Encode("junk"), v.MarkerID(99))},
		{"negative and pad ids", []int{-3, v.Pad(), v.MarkerID(99), -1, v.Pad()}},
		{"unparseable body", append([]int{v.MarkerID(99)}, garbage...)},
		{"too many markers", []int{v.MarkerID(99), v.MarkerID(98), v.MarkerID(97), v.MarkerID(96)}},
	}
	for _, c := range cases {
		types := DecodeOutput(c.ids, v, 3)
		if len(types) != 3 {
			t.Errorf("%s: got %d types, want exactly 3", c.name, len(types))
		}
		for i, ty := range types {
			if ty.Head == "" {
				t.Errorf("%s: type %d is empty, want the any sentinel", c.name, i)
			}
		}
	}
}

func TestDecodeOutput_MissingEntriesPadWithAny(t *testing.T) {
	v := vocab.New()
	ids := append([]int{v.MarkerID(99)}, v.Encode("int")...)
	types := DecodeOutput(ids, v, 4)
	if len(types) != 4 {
		t.Fatalf("got %d types, want 4", len(types))
	}
	for _, ty := range types[1:] {
		if !ty.Equal(domain.AnyType) {
			t.Errorf("missing entries must pad with any, got %s", ty)
		}
	}
}
