package recipe

import (
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Pizza", "pizza"},
		{"  Fried Rice\t", "fried rice"},
		{"SUSHI", "sushi"},
		{"", ""},
		{"   ", ""},
		{"Crème Brûlée", "crème brûlée"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIndexGroupsByNormalizedClass(t *testing.T) {
	idx := testIndex()

	if !idx.Built() {
		t.Fatal("expected index to be built")
	}
	if idx.Len() != 5 {
		t.Errorf("Len() = %d, want 5", idx.Len())
	}

	pasta := idx.Lookup("PASTA  ")
	if len(pasta) != 2 {
		t.Fatalf("expected 2 pasta records, got %d", len(pasta))
	}
	if pasta[0].Name != "Aglio e Olio" || pasta[1].Name != "Penne alla Vodka" {
		t.Errorf("dataset order not preserved: %v, %v", pasta[0].Name, pasta[1].Name)
	}
	// 原始 class_name 保留
	if pasta[1].ClassName != " pasta" {
		t.Errorf("class name rewritten: %q", pasta[1].ClassName)
	}

	want := []string{"pasta", "pizza", "ramen", "sushi"}
	if got := idx.Classes(); !equalStrings(got, want) {
		t.Errorf("Classes() = %v, want %v", got, want)
	}
}

func TestIndexLookupMissing(t *testing.T) {
	idx := testIndex()
	got := idx.Lookup("tofu")
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestIndexLookupReturnsCopies(t *testing.T) {
	idx := testIndex()
	first := idx.Lookup("pizza")
	first[0].Name = "changed"
	first[0].Method[0] = "changed"

	again := idx.Lookup("pizza")
	if again[0].Name != "Margherita" || again[0].Method[0] != "bake" {
		t.Errorf("index mutated through Lookup: %+v", again[0])
	}
}

func TestIndexCopiesInputRecords(t *testing.T) {
	records := []RecipeRecord{{ClassName: "Pizza", Name: "Margherita", Ingredients: []string{"dough"}}}
	idx := NewIndex(records)
	records[0].Ingredients[0] = "changed"

	if got := idx.Lookup("pizza")[0].Ingredients[0]; got != "dough" {
		t.Errorf("index shares memory with input: %q", got)
	}
}

func TestIndexEmptyClassName(t *testing.T) {
	idx := NewIndex([]RecipeRecord{{ClassName: "  ", Name: "Mystery"}})
	if got := idx.Lookup(""); len(got) != 1 {
		t.Errorf("expected empty key to match blank class name, got %d", len(got))
	}
}

func TestIndexNotBuilt(t *testing.T) {
	var idx *Index
	if idx.Built() {
		t.Error("nil index reported built")
	}
	if idx.Len() != 0 || len(idx.Classes()) != 0 || len(idx.Lookup("pizza")) != 0 {
		t.Error("nil index should behave as empty")
	}
	if (&Index{}).Built() {
		t.Error("zero index reported built")
	}
	if !NewIndex(nil).Built() {
		t.Error("index from empty dataset should be built")
	}
}

func TestIndexUnicodeFolding(t *testing.T) {
	records := []RecipeRecord{
		{ClassName: "Straße", Name: "Street Food"},
		{ClassName: "ＲＡＭＥＮ", Name: "Fullwidth Ramen"},
	}

	plain := NewIndex(records)
	if len(plain.Lookup("strasse")) != 0 {
		t.Error("default index should not fold ß")
	}

	folded := NewIndex(records, WithUnicodeFolding())
	tests := []struct {
		label string
		want  string
	}{
		{"STRASSE", "Street Food"},
		{"straße", "Street Food"},
		{"ramen", "Fullwidth Ramen"},
		{" Ramen ", "Fullwidth Ramen"},
	}
	for _, tt := range tests {
		got := folded.Lookup(tt.label)
		if len(got) != 1 || got[0].Name != tt.want {
			t.Errorf("Lookup(%q) = %+v, want %q", tt.label, got, tt.want)
		}
	}
	if folded.Key("ＲＡＭＥＮ") != "ramen" {
		t.Errorf("Key = %q", folded.Key("ＲＡＭＥＮ"))
	}
}
