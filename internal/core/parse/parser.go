// Package parse turns raw generation output into validated domain
// records. The policy is lenient-but-flagged: partial or ambiguous data
// is preserved and surfaced with review flags for human correction;
// only output that cannot be structurally decoded is a hard failure.
package parse

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stitchworks/atelier/internal/core/domain"
)

// MalformedError carries the offending raw text for diagnostics. It
// matches domain.ErrMalformedResponse through errors.Is.
type MalformedError struct {
	Operation string
	Raw       string
	Err       error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Operation, domain.ErrMalformedResponse, e.Err)
}

func (e *MalformedError) Unwrap() []error {
	return []error{domain.ErrMalformedResponse, e.Err}
}

func malformed(operation, raw string, err error) error {
	return &MalformedError{Operation: operation, Raw: raw, Err: err}
}

// IsolateJSON strips markdown fencing and surrounding prose, returning
// the outermost JSON object in raw. Generation services are asked for
// bare JSON but cannot be trusted to comply.
func IsolateJSON(raw string) string {
	text := strings.TrimSpace(raw)
	if start := strings.Index(text, "```"); start >= 0 {
		rest := text[start+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		text = strings.TrimSpace(rest)
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

// Result decodes and validates raw for the given request kind.
func Result(kind domain.RequestKind, registry *domain.Registry, raw string) (domain.ExtractionResult, error) {
	switch kind {
	case domain.KindItemExtraction:
		items, flags, err := Items(registry, raw)
		if err != nil {
			return domain.ExtractionResult{}, err
		}
		return domain.ExtractionResult{Kind: kind, Items: items, ReviewFlags: flags}, nil
	case domain.KindFabricResearch:
		record, flags, err := Research(raw)
		if err != nil {
			return domain.ExtractionResult{}, err
		}
		return domain.ExtractionResult{Kind: kind, Research: &record, ReviewFlags: flags}, nil
	case domain.KindCompatibility:
		result, flags, err := Compatibility(raw)
		if err != nil {
			return domain.ExtractionResult{}, err
		}
		return domain.ExtractionResult{Kind: kind, Compatibility: &result, ReviewFlags: flags}, nil
	case domain.KindSuggestion:
		result, flags, err := Suggestion(raw)
		if err != nil {
			return domain.ExtractionResult{}, err
		}
		return domain.ExtractionResult{Kind: kind, Suggestion: &result, ReviewFlags: flags}, nil
	default:
		return domain.ExtractionResult{}, domain.WrapError(domain.ErrInvalidRequest, "parse result", fmt.Errorf("unknown request kind %q", kind))
	}
}

type wireItem struct {
	ItemName         string              `json:"item_name"`
	Category         string              `json:"category"`
	DesignDetails    string              `json:"design_details"`
	FabricType       string              `json:"fabric_type"`
	ColorDisplay     string              `json:"color_display"`
	ColorHex         string              `json:"color_hex"`
	YardagePerUnit   float64             `json:"yardage_per_unit"`
	ExpectedQuantity int                 `json:"expected_quantity"`
	PriceEstimate    float64             `json:"price_estimate"`
	Measurements     domain.Measurements `json:"measurements"`
}

// Items parses an item-extraction response. Categories the registry does
// not recognize fall back to generic, missing measurement fields are
// zero-filled, and every correction is flagged; an item without a name
// gets a blocking flag so persistence rejects it until fixed.
func Items(registry *domain.Registry, raw string) ([]domain.ParsedItem, []domain.ReviewFlag, error) {
	var envelope struct {
		Items []wireItem `json:"items"`
	}
	isolated := IsolateJSON(raw)
	if err := json.Unmarshal([]byte(isolated), &envelope); err != nil {
		return nil, nil, malformed("parse item extraction", raw, err)
	}
	if len(envelope.Items) == 0 {
		return nil, nil, malformed("parse item extraction", raw, fmt.Errorf("response contains no items"))
	}

	items := make([]domain.ParsedItem, 0, len(envelope.Items))
	var flags []domain.ReviewFlag

	for i, wire := range envelope.Items {
		item := domain.ParsedItem{
			ItemName:         strings.TrimSpace(wire.ItemName),
			Category:         strings.TrimSpace(wire.Category),
			DesignDetails:    wire.DesignDetails,
			FabricType:       wire.FabricType,
			ColorDisplay:     wire.ColorDisplay,
			ColorHex:         wire.ColorHex,
			YardagePerUnit:   wire.YardagePerUnit,
			ExpectedQuantity: wire.ExpectedQuantity,
			PriceEstimate:    wire.PriceEstimate,
			Measurements:     wire.Measurements,
		}
		path := func(field string) string { return fmt.Sprintf("items[%d].%s", i, field) }

		if item.ItemName == "" {
			flags = append(flags, domain.NewBlockingFlag(path("itemName"), "item name is missing"))
		}
		if !registry.Knows(item.Category) {
			reason := fmt.Sprintf("category %q is not recognized, using %s", item.Category, domain.GenericCategory)
			if item.Category == "" {
				reason = "category is missing, using " + domain.GenericCategory
			}
			flags = append(flags, domain.NewReviewFlag(path("category"), reason))
			item.Category = domain.GenericCategory
			item.RequiresReview = true
		}
		if !validHex(item.ColorHex) {
			if item.ColorHex != "" {
				flags = append(flags, domain.NewReviewFlag(path("colorHex"), fmt.Sprintf("invalid color %q, defaulted", item.ColorHex)))
				item.RequiresReview = true
			}
			item.ColorHex = domain.DefaultColorHex
		}
		if item.YardagePerUnit <= 0 {
			flags = append(flags, domain.NewReviewFlag(path("yardagePerUnit"), "yardage per unit must be positive"))
			item.RequiresReview = true
		}
		if item.ExpectedQuantity < 1 {
			flags = append(flags, domain.NewReviewFlag(path("expectedQuantity"), "expected quantity defaulted to 1"))
			item.ExpectedQuantity = 1
			item.RequiresReview = true
		}
		if item.PriceEstimate < 0 {
			flags = append(flags, domain.NewReviewFlag(path("priceEstimate"), "negative price estimate reset to 0"))
			item.PriceEstimate = 0
			item.RequiresReview = true
		}

		if item.Measurements == nil {
			item.Measurements = domain.Measurements{}
		}
		schema := registry.FieldsFor(item.Category)
		for size, bucket := range item.Measurements {
			if bucket == nil {
				bucket = map[string]float64{}
				item.Measurements[size] = bucket
			}
			for _, field := range schema {
				if _, ok := bucket[field]; !ok {
					bucket[field] = 0
					flags = append(flags, domain.NewReviewFlag(
						fmt.Sprintf("items[%d].measurements.%s.%s", i, size, field),
						"measurement missing, defaulted to 0",
					))
					item.RequiresReview = true
				}
			}
		}

		items = append(items, item)
	}

	return items, flags, nil
}

// Research parses a fabric research response. Every section must be
// present in the result even when the service left it out, so the editor
// can render consistent sections; absent sections are normalized to
// empty, not nil.
func Research(raw string) (domain.FabricResearchRecord, []domain.ReviewFlag, error) {
	var record domain.FabricResearchRecord
	if err := json.Unmarshal([]byte(IsolateJSON(raw)), &record); err != nil {
		return domain.FabricResearchRecord{}, nil, malformed("parse fabric research", raw, err)
	}

	var flags []domain.ReviewFlag
	if strings.TrimSpace(record.FabricType) == "" {
		flags = append(flags, domain.NewBlockingFlag("fabricType", "fabric type is missing"))
	}
	if strings.TrimSpace(record.Description) == "" {
		flags = append(flags, domain.NewBlockingFlag("description", "description is missing"))
	}

	if record.Composition == nil {
		record.Composition = []string{}
	}
	if record.Properties == nil {
		record.Properties = []domain.FabricProperty{}
	}
	if record.Applications == nil {
		record.Applications = []string{}
	}
	if record.ManufacturingCosts == nil {
		record.ManufacturingCosts = []domain.ManufacturingCost{}
	}
	if record.Sustainability.Certifications == nil {
		record.Sustainability.Certifications = []string{}
	}
	if record.CareInstructions == nil {
		record.CareInstructions = []string{}
	}
	if record.Alternatives == nil {
		record.Alternatives = []string{}
	}
	if record.Sources == nil {
		record.Sources = []string{}
	}

	return record, flags, nil
}

// Compatibility parses a fabric/method compatibility verdict. An
// incompatible verdict without alternatives gets an empty list plus a
// review flag rather than a rejection.
func Compatibility(raw string) (domain.CompatibilityResult, []domain.ReviewFlag, error) {
	var wire struct {
		Compatible   *bool    `json:"compatible"`
		Reasons      []string `json:"reasons"`
		Alternatives []string `json:"alternatives"`
	}
	if err := json.Unmarshal([]byte(IsolateJSON(raw)), &wire); err != nil {
		return domain.CompatibilityResult{}, nil, malformed("parse compatibility", raw, err)
	}
	if wire.Compatible == nil {
		return domain.CompatibilityResult{}, nil, malformed("parse compatibility", raw, fmt.Errorf("compatible is missing or not a boolean"))
	}

	result := domain.CompatibilityResult{
		Compatible:   *wire.Compatible,
		Reasons:      wire.Reasons,
		Alternatives: wire.Alternatives,
	}
	if result.Reasons == nil {
		result.Reasons = []string{}
	}

	var flags []domain.ReviewFlag
	if !result.Compatible && result.Alternatives == nil {
		result.Alternatives = []string{}
		flags = append(flags, domain.NewReviewFlag("alternatives", "incompatible verdict without alternatives"))
	}
	if result.Compatible {
		result.Alternatives = nil
	}

	return result, flags, nil
}

// Suggestion parses a fabric suggestion list. Out-of-range ratings are
// clamped to [1,5] and flagged, never rejected; order is preserved
// because best match comes first.
func Suggestion(raw string) (domain.SuggestionResult, []domain.ReviewFlag, error) {
	var result domain.SuggestionResult
	if err := json.Unmarshal([]byte(IsolateJSON(raw)), &result); err != nil {
		return domain.SuggestionResult{}, nil, malformed("parse suggestion", raw, err)
	}
	if len(result.RecommendedFabrics) == 0 {
		return domain.SuggestionResult{}, nil, malformed("parse suggestion", raw, fmt.Errorf("no recommended fabrics in response"))
	}

	var flags []domain.ReviewFlag
	for i := range result.RecommendedFabrics {
		fabric := &result.RecommendedFabrics[i]
		path := func(field string) string {
			return fmt.Sprintf("recommendedFabrics[%d].%s", i, field)
		}

		clampRating(&fabric.CostRating, path("costRating"), &flags)
		clampRating(&fabric.AvailabilityRating, path("availabilityRating"), &flags)
		clampRating(&fabric.DurabilityRating, path("durabilityRating"), &flags)
		clampRating(&fabric.SustainabilityRating, path("sustainabilityRating"), &flags)
		clampRating(&fabric.Recyclability, path("recyclability"), &flags)
		clampRating(&fabric.WaterUsage, path("waterUsage"), &flags)

		if fabric.PropertyRatings == nil {
			fabric.PropertyRatings = map[string]float64{}
		}
		for name, value := range fabric.PropertyRatings {
			clamped := value
			clampRating(&clamped, path("propertyRatings."+name), &flags)
			fabric.PropertyRatings[name] = clamped
		}
	}

	return result, flags, nil
}

func clampRating(value *float64, path string, flags *[]domain.ReviewFlag) {
	switch {
	case *value < 1:
		*flags = append(*flags, domain.NewReviewFlag(path, fmt.Sprintf("rating %v below range, clamped to 1", *value)))
		*value = 1
	case *value > 5:
		*flags = append(*flags, domain.NewReviewFlag(path, fmt.Sprintf("rating %v above range, clamped to 5", *value)))
		*value = 5
	}
}

func validHex(value string) bool {
	if len(value) != 7 || value[0] != '#' {
		return false
	}
	for _, r := range value[1:] {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
