package domain

// FabricProperty is one named characteristic of a researched fabric.
type FabricProperty struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Description string `json:"description"`
	Unit        string `json:"unit,omitempty"`
}

// ManufacturingCost describes sourcing economics for one region.
type ManufacturingCost struct {
	Region           string  `json:"region"`
	BaseUnitCost     float64 `json:"base_unit_cost"`
	MinOrderQuantity int     `json:"min_order_quantity"`
	Currency         string  `json:"currency"`
	LeadTime         string  `json:"lead_time"`
	Notes            string  `json:"notes,omitempty"`
}

type SustainabilityInfo struct {
	EnvironmentalImpact string   `json:"environmental_impact"`
	Recyclability       string   `json:"recyclability"`
	Certifications      []string `json:"certifications"`
}

// FabricResearchRecord is the structured result of a fabric research
// request. Created by the response parser, mutated only by explicit edits
// before persistence.
type FabricResearchRecord struct {
	FabricType         string              `json:"fabric_type"`
	Description        string              `json:"description"`
	Composition        []string            `json:"composition"`
	Properties         []FabricProperty    `json:"properties"`
	Applications       []string            `json:"applications"`
	ManufacturingCosts []ManufacturingCost `json:"manufacturing_costs"`
	Sustainability     SustainabilityInfo  `json:"sustainability_info"`
	CareInstructions   []string            `json:"care_instructions"`
	Alternatives       []string            `json:"alternatives"`
	Sources            []string            `json:"sources"`
}

// CompatibilityResult is the verdict for a fabric/production-method pair.
// Alternatives are only meaningful when the pair is incompatible.
type CompatibilityResult struct {
	Compatible   bool     `json:"compatible"`
	Reasons      []string `json:"reasons"`
	Alternatives []string `json:"alternatives,omitempty"`
}

// RecommendedFabric is one entry of a fabric suggestion list. Rating
// fields are on a 1..5 scale.
type RecommendedFabric struct {
	Name                 string             `json:"name"`
	Description          string             `json:"description"`
	PrimaryUse           string             `json:"primary_use"`
	BestFor              string             `json:"best_for"`
	Composition          string             `json:"composition"`
	Weight               string             `json:"weight"`
	Care                 string             `json:"care"`
	PropertyRatings      map[string]float64 `json:"property_ratings"`
	CostRating           float64            `json:"cost_rating"`
	AvailabilityRating   float64            `json:"availability_rating"`
	DurabilityRating     float64            `json:"durability_rating"`
	SustainabilityRating float64            `json:"sustainability_rating"`
	Recyclability        float64            `json:"recyclability"`
	WaterUsage           float64            `json:"water_usage"`
	Considerations       string             `json:"considerations"`
}

// SuggestionResult ranks candidate fabrics for a product type, best
// match first.
type SuggestionResult struct {
	ProductType        string              `json:"product_type"`
	RecommendedFabrics []RecommendedFabric `json:"recommended_fabrics"`
	Notes              string              `json:"notes"`
}
