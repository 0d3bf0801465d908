package db

import (
	"strings"
	"testing"
)

func TestIndexBuilder_TextAndVector(t *testing.T) {
	idx, err := NewIndex("newsdex_docs").
		Prefix("newsdex:doc:").
		Text("__content").
		VectorHNSW("__vector", "vector", 384, DistanceCosine, 16, 200).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if idx.Name != "newsdex_docs" {
		t.Errorf("name = %q, want newsdex_docs", idx.Name)
	}
	if idx.StorageType != StorageHash {
		t.Errorf("storage = %q, want HASH", idx.StorageType)
	}
	if len(idx.Prefixes) != 1 || idx.Prefixes[0] != "newsdex:doc:" {
		t.Errorf("prefixes = %v", idx.Prefixes)
	}
	if len(idx.Fields) != 2 {
		t.Fatalf("fields count = %d, want 2", len(idx.Fields))
	}
	if idx.Fields[0].Name != "__content" || idx.Fields[0].Type != IndexFieldText {
		t.Errorf("field[0] = %+v, want __content TEXT", idx.Fields[0])
	}

	vec := idx.Fields[1]
	if vec.Type != IndexFieldVector || vec.VectorAlgo != VectorHNSW {
		t.Errorf("field[1] = %+v, want HNSW vector", vec)
	}
	if vec.Alias != "vector" {
		t.Errorf("alias = %q, want vector", vec.Alias)
	}
	if vec.VectorDim != 384 {
		t.Errorf("dim = %d, want 384", vec.VectorDim)
	}
	if vec.VectorDistance != DistanceCosine {
		t.Errorf("distance = %q, want COSINE", vec.VectorDistance)
	}
	if vec.VectorM != 16 || vec.VectorEFConstruct != 200 {
		t.Errorf("M/EF = %d/%d, want 16/200", vec.VectorM, vec.VectorEFConstruct)
	}
}

func TestIndexBuilder_Validation(t *testing.T) {
	if _, err := NewIndex("").Text("f").Build(); err == nil {
		t.Error("expected error for empty name")
	}
	if _, err := NewIndex("idx").Build(); err == nil {
		t.Error("expected error for no fields")
	}
	if _, err := NewIndex("bad name").Text("f").Build(); err == nil {
		t.Error("expected error for invalid identifier")
	}
	if _, err := NewIndex("idx").VectorHNSW("v", "", 0, DistanceCosine, 0, 0).Build(); err == nil {
		t.Error("expected error for zero vector dim")
	}
	if _, err := NewIndex("idx").Text("f").Text("f").Build(); err == nil {
		t.Error("expected error for duplicate field")
	}
}

func TestIndexDefinition_String(t *testing.T) {
	idx, err := NewIndex("newsdex_docs").
		Prefix("newsdex:doc:").
		Text("__content").
		VectorHNSW("__vector", "vector", 384, DistanceCosine, 0, 0).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := idx.String()
	for _, want := range []string{"FT.CREATE", "newsdex_docs", "PREFIX", "SCHEMA", "TEXT", "VECTOR HNSW"} {
		if !strings.Contains(s, want) {
			t.Errorf("expected %q in %q", want, s)
		}
	}
}

func TestIsValidIdentifier(t *testing.T) {
	valid := []string{"idx", "newsdex_docs", "a:b", "x-1"}
	for _, s := range valid {
		if !IsValidIdentifier(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	invalid := []string{"", "has space", "semi;colon", "quo\"te"}
	for _, s := range invalid {
		if IsValidIdentifier(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}
