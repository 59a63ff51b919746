package domain

// DefaultColorHex is used when the extraction did not produce a usable color.
const DefaultColorHex = "#cccccc"

// DefaultSizes are the size buckets a synthesized item starts with.
var DefaultSizes = []string{"small", "medium", "large"}

// Measurements maps a size label ("small") to measurement field values.
type Measurements map[string]map[string]float64

// ParsedItem is one garment line item extracted from free-form order notes.
type ParsedItem struct {
	ItemName         string       `json:"item_name"`
	Category         string       `json:"category"`
	DesignDetails    string       `json:"design_details"`
	FabricType       string       `json:"fabric_type"`
	ColorDisplay     string       `json:"color_display"`
	ColorHex         string       `json:"color_hex"`
	YardagePerUnit   float64      `json:"yardage_per_unit"`
	ExpectedQuantity int          `json:"expected_quantity"`
	PriceEstimate    float64      `json:"price_estimate"`
	Measurements     Measurements `json:"measurements"`
	RequiresReview   bool         `json:"requires_review"`
}

// TotalYardage is always derived, never stored, so it cannot drift from
// the fields it is computed from.
func (it ParsedItem) TotalYardage() float64 {
	qty := it.ExpectedQuantity
	if qty < 1 {
		qty = 1
	}
	return it.YardagePerUnit * float64(qty)
}

// Clone returns a deep copy so edits on a working copy never leak into
// the stored item before the edit is accepted.
func (it ParsedItem) Clone() ParsedItem {
	out := it
	out.Measurements = it.Measurements.clone()
	return out
}

func (m Measurements) clone() Measurements {
	if m == nil {
		return nil
	}
	out := make(Measurements, len(m))
	for size, fields := range m {
		copied := make(map[string]float64, len(fields))
		for field, value := range fields {
			copied[field] = value
		}
		out[size] = copied
	}
	return out
}

// NewDefaultItem synthesizes an empty generic item with zero-filled
// measurements for the default size buckets.
func NewDefaultItem(registry *Registry) ParsedItem {
	fields := registry.FieldsFor(GenericCategory)
	measurements := make(Measurements, len(DefaultSizes))
	for _, size := range DefaultSizes {
		bucket := make(map[string]float64, len(fields))
		for _, field := range fields {
			bucket[field] = 0
		}
		measurements[size] = bucket
	}
	return ParsedItem{
		ItemName:         "New item",
		Category:         GenericCategory,
		ColorHex:         DefaultColorHex,
		ExpectedQuantity: 1,
		Measurements:     measurements,
	}
}
