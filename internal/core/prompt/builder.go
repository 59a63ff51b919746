// Package prompt builds generation requests for the four extraction
// kinds. Each builder produces the natural-language instruction plus the
// response-shape description the parser later validates against. The
// shape is embedded as prose field descriptions, never as code.
package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stitchworks/atelier/internal/core/domain"
)

// Request is one fully built generation call.
type Request struct {
	System          string
	User            string
	MaxOutputTokens int
	Temperature     float64
}

type ResearchDetailLevel string

const (
	DetailBasic         ResearchDetailLevel = "basic"
	DetailDetailed      ResearchDetailLevel = "detailed"
	DetailComprehensive ResearchDetailLevel = "comprehensive"
)

type PricePoint string

const (
	PriceBudget   PricePoint = "budget"
	PriceMidRange PricePoint = "mid-range"
	PricePremium  PricePoint = "premium"
)

type ItemExtractionParams struct {
	FreeText string `json:"free_text"`
}

type ResearchParams struct {
	FabricType          string              `json:"fabric_type"`
	Properties          []string            `json:"properties,omitempty"`
	Region              string              `json:"region,omitempty"`
	SustainabilityFocus bool                `json:"sustainability_focus,omitempty"`
	DetailLevel         ResearchDetailLevel `json:"detail_level,omitempty"`
}

type CompatibilityParams struct {
	FabricType       string `json:"fabric_type"`
	ProductionMethod string `json:"production_method"`
}

type SuggestionParams struct {
	ProductType    string     `json:"product_type"`
	Properties     []string   `json:"properties,omitempty"`
	PricePoint     PricePoint `json:"price_point"`
	Seasonality    string     `json:"seasonality,omitempty"`
	Sustainability bool       `json:"sustainability,omitempty"`
}

// Build dispatches on kind, decoding rawParams into the matching params
// type. This is the entry point for queued jobs, which store their
// params as JSON.
func Build(kind domain.RequestKind, rawParams []byte) (Request, error) {
	switch kind {
	case domain.KindItemExtraction:
		var p ItemExtractionParams
		if err := json.Unmarshal(rawParams, &p); err != nil {
			return Request{}, domain.WrapError(domain.ErrInvalidRequest, "decode item extraction params", err)
		}
		return ItemExtraction(p)
	case domain.KindFabricResearch:
		var p ResearchParams
		if err := json.Unmarshal(rawParams, &p); err != nil {
			return Request{}, domain.WrapError(domain.ErrInvalidRequest, "decode fabric research params", err)
		}
		return FabricResearch(p)
	case domain.KindCompatibility:
		var p CompatibilityParams
		if err := json.Unmarshal(rawParams, &p); err != nil {
			return Request{}, domain.WrapError(domain.ErrInvalidRequest, "decode compatibility params", err)
		}
		return Compatibility(p)
	case domain.KindSuggestion:
		var p SuggestionParams
		if err := json.Unmarshal(rawParams, &p); err != nil {
			return Request{}, domain.WrapError(domain.ErrInvalidRequest, "decode suggestion params", err)
		}
		return Suggestion(p)
	default:
		return Request{}, domain.WrapError(domain.ErrInvalidRequest, "build prompt", fmt.Errorf("unknown request kind %q", kind))
	}
}

const itemExtractionSystem = `You are an order intake assistant for a custom apparel workshop.
You turn free-form client notes into structured garment line items.
Return a single strict JSON object, no markdown fencing, no commentary.

The object has one key "items": an array where each entry has:
item_name (string, short label for the garment),
category (string, lowercase garment category such as hoodie, tshirt, polo, jacket, jersey, pants, shorts, cap),
design_details (string), fabric_type (string),
color_display (string, human color name), color_hex (string, "#" plus 6 hex digits),
yardage_per_unit (number, fabric yards per unit, > 0),
expected_quantity (integer, >= 1),
price_estimate (number, >= 0, per-unit estimate in USD),
measurements (object keyed by size "small", "medium", "large"; each value is an
object mapping measurement field names for the category to numbers in inches).

Measurement fields per category:
hoodie/tshirt: bodyLength, chest, shoulder, sleeve.
polo: bodyLength, chest, shoulder, sleeve, collar.
jacket: bodyLength, chest, shoulder, sleeve, hem.
jersey: bodyLength, chest, shoulder.
pants: waist, hip, inseam, outseam, thigh.
shorts: waist, hip, inseam, outseam.
cap: circumference, brimLength.
Anything else: height, width.

Only include facts stated or clearly implied by the notes. Use sensible
defaults for standard sizes when notes give no measurements.`

// ItemExtraction builds the line-item extraction request. The category
// guess in the response is advisory only; it is validated downstream
// against the schema registry.
func ItemExtraction(p ItemExtractionParams) (Request, error) {
	const maxNotes = 8000
	notes := strings.TrimSpace(p.FreeText)
	if notes == "" {
		return Request{}, domain.WrapError(domain.ErrInvalidRequest, "build item extraction prompt", errors.New("freeText is required"))
	}
	if len(notes) > maxNotes {
		notes = notes[:maxNotes]
	}

	return Request{
		System:          itemExtractionSystem,
		User:            "Client order notes:\n" + notes,
		MaxOutputTokens: 4096,
		Temperature:     0.2,
	}, nil
}

// FabricResearch builds the research request. Detail level and the
// sustainability/region emphasis are content-selection policy: the
// parser only expects richly populated sections when they were asked
// for here.
func FabricResearch(p ResearchParams) (Request, error) {
	fabric := strings.TrimSpace(p.FabricType)
	if fabric == "" {
		return Request{}, domain.WrapError(domain.ErrInvalidRequest, "build fabric research prompt", errors.New("fabricType is required"))
	}
	level := p.DetailLevel
	if level == "" {
		level = DetailDetailed
	}
	switch level {
	case DetailBasic, DetailDetailed, DetailComprehensive:
	default:
		return Request{}, domain.WrapError(domain.ErrInvalidRequest, "build fabric research prompt", fmt.Errorf("unknown detail level %q", level))
	}

	var b strings.Builder
	b.WriteString(`You are a textile research assistant for a custom apparel workshop.
Return a single strict JSON object, no markdown fencing, no commentary, with keys:
fabric_type (string), description (string),
composition (array of strings, material percentages),
properties (array of {name, value, description, unit} objects),
applications (array of strings),
manufacturing_costs (array of {region, base_unit_cost (number), min_order_quantity (integer), currency, lead_time, notes} objects),
sustainability_info ({environmental_impact, recyclability, certifications (array of strings)}),
care_instructions (array of strings),
alternatives (array of strings), sources (array of strings).
Every key must be present; use empty arrays or empty strings when unknown.
`)

	switch level {
	case DetailBasic:
		b.WriteString("Keep it brief: a short description, the main composition, and 2-3 key properties. Cost and sourcing detail is optional.\n")
	case DetailDetailed:
		b.WriteString("Cover description, composition, the most relevant properties with values and units, typical applications, and indicative manufacturing costs.\n")
	case DetailComprehensive:
		b.WriteString("Be exhaustive: full property table with values and units, all common applications, manufacturing costs for every major sourcing region with lead times and minimum order quantities, complete care instructions, and cited sources.\n")
	}

	if len(p.Properties) > 0 {
		fmt.Fprintf(&b, "Make sure the properties section covers: %s.\n", strings.Join(p.Properties, ", "))
	}
	if p.Region != "" {
		fmt.Fprintf(&b, "Include manufacturing cost entries for the %s region specifically, with currency and lead time.\n", p.Region)
	}
	if p.SustainabilityFocus {
		b.WriteString("Emphasize sustainability: fill environmental_impact and recyclability thoroughly, list certifications, and prefer sustainable alternatives.\n")
	}

	return Request{
		System:          b.String(),
		User:            "Research the fabric: " + fabric,
		MaxOutputTokens: researchTokenBudget(level),
		Temperature:     0.3,
	}, nil
}

func researchTokenBudget(level ResearchDetailLevel) int {
	switch level {
	case DetailBasic:
		return 1024
	case DetailComprehensive:
		return 6144
	default:
		return 3072
	}
}

const compatibilitySystem = `You are a garment production engineer.
Judge whether a fabric works with a production method.
Return a single strict JSON object, no markdown fencing, no commentary, with keys:
compatible (boolean),
reasons (array of strings explaining the verdict),
alternatives (array of strings; required when compatible is false, listing fabrics or methods that would work instead).`

func Compatibility(p CompatibilityParams) (Request, error) {
	fabric := strings.TrimSpace(p.FabricType)
	method := strings.TrimSpace(p.ProductionMethod)
	if fabric == "" || method == "" {
		return Request{}, domain.WrapError(domain.ErrInvalidRequest, "build compatibility prompt", errors.New("fabricType and productionMethod are required"))
	}
	return Request{
		System:          compatibilitySystem,
		User:            fmt.Sprintf("Fabric: %s\nProduction method: %s", fabric, method),
		MaxOutputTokens: 1024,
		Temperature:     0.1,
	}, nil
}

const suggestionSystem = `You are a fabric sourcing advisor for a custom apparel workshop.
Recommend fabrics for a product type, best match first.
Return a single strict JSON object, no markdown fencing, no commentary, with keys:
product_type (string),
recommended_fabrics (array, ordered best first, each entry:
name, description, primary_use, best_for, composition, weight, care (strings),
property_ratings (object mapping property names to numbers between 1 and 5),
cost_rating, availability_rating, durability_rating, sustainability_rating,
recyclability, water_usage (numbers between 1 and 5), considerations (string)),
notes (string).`

func Suggestion(p SuggestionParams) (Request, error) {
	product := strings.TrimSpace(p.ProductType)
	if product == "" {
		return Request{}, domain.WrapError(domain.ErrInvalidRequest, "build suggestion prompt", errors.New("productType is required"))
	}
	switch p.PricePoint {
	case PriceBudget, PriceMidRange, PricePremium:
	default:
		return Request{}, domain.WrapError(domain.ErrInvalidRequest, "build suggestion prompt", fmt.Errorf("unknown price point %q", p.PricePoint))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Product type: %s\nPrice point: %s\n", product, p.PricePoint)
	if len(p.Properties) > 0 {
		fmt.Fprintf(&b, "Required properties: %s\n", strings.Join(p.Properties, ", "))
	}
	if p.Seasonality != "" {
		fmt.Fprintf(&b, "Seasonality: %s\n", p.Seasonality)
	}
	if p.Sustainability {
		b.WriteString("Prioritize sustainable fabrics and rate sustainability honestly.\n")
	}

	return Request{
		System:          suggestionSystem,
		User:            b.String(),
		MaxOutputTokens: 4096,
		Temperature:     0.4,
	}, nil
}
