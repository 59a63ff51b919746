package domain

import "testing"

func TestFieldsForKnownCategory(t *testing.T) {
	registry := NewRegistry()

	fields := registry.FieldsFor("hoodie")
	want := []string{"bodyLength", "chest", "shoulder", "sleeve"}
	if len(fields) != len(want) {
		t.Fatalf("expected %d fields, got %d", len(want), len(fields))
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Fatalf("expected field %q at position %d, got %q", want[i], i, fields[i])
		}
	}
}

func TestFieldsForUnknownCategoryFallsBackToGeneric(t *testing.T) {
	registry := NewRegistry()

	fields := registry.FieldsFor("spacesuit")
	if len(fields) != 2 || fields[0] != "height" || fields[1] != "width" {
		t.Fatalf("expected generic fallback schema, got %v", fields)
	}
	if registry.Knows("spacesuit") {
		t.Fatal("fallback must not register the unknown category")
	}
}

func TestFieldsForReturnsACopy(t *testing.T) {
	registry := NewRegistry()

	fields := registry.FieldsFor("cap")
	fields[0] = "mutated"

	again := registry.FieldsFor("cap")
	if again[0] != "circumference" {
		t.Fatalf("caller mutation leaked into the registry: %v", again)
	}
}

func TestApplyOverridesAddsAndReplaces(t *testing.T) {
	registry := NewRegistry()

	err := registry.ApplyOverrides(map[string][]string{
		"apron":  {"bodyLength", "strapLength"},
		"hoodie": {"bodyLength", "chest"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !registry.Knows("apron") {
		t.Fatal("expected apron to be registered")
	}
	if fields := registry.FieldsFor("hoodie"); len(fields) != 2 {
		t.Fatalf("expected hoodie schema replaced, got %v", fields)
	}
}

func TestApplyOverridesRejectsBatchOnAnyBadEntry(t *testing.T) {
	registry := NewRegistry()

	err := registry.ApplyOverrides(map[string][]string{
		"apron": {"bodyLength"},
		"vest":  {"chest", "chest"},
	})
	if err == nil {
		t.Fatal("expected error for duplicate field")
	}
	if !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if registry.Knows("apron") {
		t.Fatal("a rejected batch must not apply any entry")
	}
}
