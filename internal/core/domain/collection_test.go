package domain

import (
	"math"
	"testing"
)

func hoodieItem() ParsedItem {
	return ParsedItem{
		ItemName:         "Team hoodie",
		Category:         "hoodie",
		FabricType:       "cotton fleece",
		ColorDisplay:     "navy",
		ColorHex:         "#1a2b3c",
		YardagePerUnit:   1.8,
		ExpectedQuantity: 20,
		PriceEstimate:    35,
		Measurements: Measurements{
			"medium": {"bodyLength": 70, "chest": 55, "shoulder": 46, "sleeve": 62},
		},
	}
}

func TestEditCoercesAndValidatesScalarFields(t *testing.T) {
	c := NewCollection(NewRegistry())
	c.Add(hoodieItem())

	if err := c.Edit(0, "expectedQuantity", "25"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Edit(0, "yardagePerUnit", "2.1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	item, _ := c.Item(0)
	if item.ExpectedQuantity != 25 {
		t.Fatalf("expected quantity 25, got %d", item.ExpectedQuantity)
	}
	if item.YardagePerUnit != 2.1 {
		t.Fatalf("expected yardage 2.1, got %v", item.YardagePerUnit)
	}
}

func TestEditRejectsInvalidValuesWithoutMutation(t *testing.T) {
	c := NewCollection(NewRegistry())
	c.Add(hoodieItem())

	cases := []struct{ field, value string }{
		{"itemName", "   "},
		{"colorHex", "blue"},
		{"colorHex", "#12345"},
		{"yardagePerUnit", "0"},
		{"yardagePerUnit", "lots"},
		{"expectedQuantity", "0"},
		{"priceEstimate", "-1"},
		{"requiresReview", "maybe"},
		{"totalYardage", "10"},
	}
	for _, tc := range cases {
		if err := c.Edit(0, tc.field, tc.value); err == nil {
			t.Fatalf("expected error for %s=%q", tc.field, tc.value)
		} else if !IsKind(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %s=%q, got %v", tc.field, tc.value, err)
		}
	}

	item, _ := c.Item(0)
	if item.ItemName != "Team hoodie" || item.ColorHex != "#1a2b3c" || item.ExpectedQuantity != 20 {
		t.Fatalf("rejected edits must not mutate the item: %+v", item)
	}
}

func TestChangeCategoryPreservesSharedMeasurementValues(t *testing.T) {
	c := NewCollection(NewRegistry())
	c.Add(hoodieItem())

	if err := c.ChangeCategory(0, "polo"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	item, _ := c.Item(0)
	if item.Category != "polo" {
		t.Fatalf("expected category polo, got %q", item.Category)
	}
	medium := item.Measurements["medium"]
	if medium["chest"] != 55 || medium["sleeve"] != 62 {
		t.Fatalf("shared fields must keep their values: %v", medium)
	}
	if value, ok := medium["collar"]; !ok || value != 0 {
		t.Fatalf("new field must be zero-filled: %v", medium)
	}
	if len(medium) != 5 {
		t.Fatalf("expected exactly the polo schema fields, got %v", medium)
	}
}

func TestChangeCategoryDropsObsoleteFields(t *testing.T) {
	c := NewCollection(NewRegistry())
	c.Add(hoodieItem())

	if err := c.ChangeCategory(0, "cap"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	item, _ := c.Item(0)
	medium := item.Measurements["medium"]
	if _, ok := medium["chest"]; ok {
		t.Fatalf("chest must be dropped for cap, got %v", medium)
	}
	if len(medium) != 2 {
		t.Fatalf("expected cap schema fields only, got %v", medium)
	}
}

func TestChangeCategoryRoundTripKeepsSharedValues(t *testing.T) {
	c := NewCollection(NewRegistry())
	c.Add(hoodieItem())

	if err := c.ChangeCategory(0, "jersey"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.ChangeCategory(0, "hoodie"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	item, _ := c.Item(0)
	medium := item.Measurements["medium"]
	if medium["chest"] != 55 {
		t.Fatalf("chest survives both changes, got %v", medium)
	}
	// sleeve is not a jersey field, so the round trip loses it
	if medium["sleeve"] != 0 {
		t.Fatalf("sleeve must reset to zero after the round trip, got %v", medium)
	}
}

func TestEditMeasurementRejectsNonNumericWithoutMutation(t *testing.T) {
	c := NewCollection(NewRegistry())
	c.Add(hoodieItem())

	if err := c.EditMeasurement(0, "medium", "chest", "wide"); err == nil {
		t.Fatal("expected error for non-numeric value")
	} else if !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	item, _ := c.Item(0)
	if item.Measurements["medium"]["chest"] != 55 {
		t.Fatalf("rejected edit must not mutate, got %v", item.Measurements["medium"])
	}

	if err := c.EditMeasurement(0, "medium", "chest", "57.5"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	item, _ = c.Item(0)
	if item.Measurements["medium"]["chest"] != 57.5 {
		t.Fatalf("expected chest 57.5, got %v", item.Measurements["medium"])
	}
}

func TestRemoveKeepsCollectionDense(t *testing.T) {
	c := NewCollection(NewRegistry())
	first := hoodieItem()
	second := hoodieItem()
	second.ItemName = "Second"
	third := hoodieItem()
	third.ItemName = "Third"
	c.Add(first)
	c.Add(second)
	c.Add(third)

	if err := c.Remove(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.Len() != 2 {
		t.Fatalf("expected 2 items, got %d", c.Len())
	}
	item, _ := c.Item(1)
	if item.ItemName != "Third" {
		t.Fatalf("expected Third at index 1, got %q", item.ItemName)
	}

	if err := c.Remove(5); err == nil {
		t.Fatal("expected error for out-of-range index")
	}
}

func TestTotalYardageIsDerived(t *testing.T) {
	c := NewCollection(NewRegistry())
	item := hoodieItem()
	c.Add(item)

	perItem, err := c.ItemTotalYardage(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(perItem-36.0) > 1e-9 {
		t.Fatalf("expected 36 yards, got %v", perItem)
	}

	if err := c.Edit(0, "expectedQuantity", "10"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total := c.TotalYardage(); math.Abs(total-18.0) > 1e-9 {
		t.Fatalf("total must track the edited quantity, got %v", total)
	}
}

func TestTotalYardageFloorsQuantityAtOne(t *testing.T) {
	item := ParsedItem{YardagePerUnit: 2.5, ExpectedQuantity: 0}
	if got := item.TotalYardage(); got != 2.5 {
		t.Fatalf("quantity below 1 computes as 1, got %v", got)
	}
}

func TestItemsReturnsDeepCopies(t *testing.T) {
	c := NewCollection(NewRegistry())
	c.Add(hoodieItem())

	items := c.Items()
	items[0].Measurements["medium"]["chest"] = 999

	item, _ := c.Item(0)
	if item.Measurements["medium"]["chest"] != 55 {
		t.Fatal("mutating a returned item leaked into the collection")
	}
}

func TestAddDefaultSynthesizesGenericItem(t *testing.T) {
	c := NewCollection(NewRegistry())

	index := c.AddDefault()
	if index != 0 {
		t.Fatalf("expected index 0, got %d", index)
	}

	item, _ := c.Item(0)
	if item.Category != GenericCategory {
		t.Fatalf("expected generic category, got %q", item.Category)
	}
	if item.ColorHex != DefaultColorHex {
		t.Fatalf("expected default color, got %q", item.ColorHex)
	}
	if item.ExpectedQuantity != 1 {
		t.Fatalf("expected quantity 1, got %d", item.ExpectedQuantity)
	}
	for _, size := range DefaultSizes {
		bucket, ok := item.Measurements[size]
		if !ok {
			t.Fatalf("expected size bucket %q", size)
		}
		if len(bucket) != 2 {
			t.Fatalf("expected generic fields in bucket %q, got %v", size, bucket)
		}
	}
}
