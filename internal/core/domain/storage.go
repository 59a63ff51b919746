package domain

import (
	"fmt"
	"strings"
)

// OrderItemRecord is the shape handed to the external store for one
// garment line item. Field values are copied 1:1 from the validated
// item; only ownership/audit metadata is added.
type OrderItemRecord struct {
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
	ReviewFlags      []ReviewFlag `json:"review_flags"`
	CreatedBy        *string      `json:"created_by"`
}

// ResearchStorageRecord wraps a fabric research record for persistence.
type ResearchStorageRecord struct {
	Record      FabricResearchRecord `json:"record"`
	ReviewFlags []ReviewFlag         `json:"review_flags"`
	CreatedBy   *string              `json:"created_by"`
}

// BuildOrderItemRecords maps validated items into storage shape. It
// fails when any review flag is blocking: blocking flags must be
// resolved by the editor, never silently cleared at persistence time.
// Non-blocking flags are carried through unchanged so the stored record
// still shows requiresReview.
func BuildOrderItemRecords(items []ParsedItem, flags []ReviewFlag, actorID string) ([]OrderItemRecord, error) {
	if blocking := BlockingFlags(flags); len(blocking) > 0 {
		return nil, WrapError(ErrUnpersistableRecord, "build order records", fmt.Errorf("blocking flags: %s", joinFlagPaths(blocking)))
	}

	createdBy := auditActor(actorID)
	records := make([]OrderItemRecord, len(items))
	for i, item := range items {
		records[i] = OrderItemRecord{
			ItemName:         item.ItemName,
			Category:         item.Category,
			DesignDetails:    item.DesignDetails,
			FabricType:       item.FabricType,
			ColorDisplay:     item.ColorDisplay,
			ColorHex:         item.ColorHex,
			YardagePerUnit:   item.YardagePerUnit,
			ExpectedQuantity: item.ExpectedQuantity,
			PriceEstimate:    item.PriceEstimate,
			Measurements:     item.Measurements.clone(),
			RequiresReview:   item.RequiresReview,
			ReviewFlags:      flagsForItem(flags, i),
			CreatedBy:        createdBy,
		}
	}
	return records, nil
}

// BuildResearchStorageRecord maps a validated research record into
// storage shape under the same blocking-flag rule.
func BuildResearchStorageRecord(record FabricResearchRecord, flags []ReviewFlag, actorID string) (ResearchStorageRecord, error) {
	if blocking := BlockingFlags(flags); len(blocking) > 0 {
		return ResearchStorageRecord{}, WrapError(ErrUnpersistableRecord, "build research record", fmt.Errorf("blocking flags: %s", joinFlagPaths(blocking)))
	}
	return ResearchStorageRecord{
		Record:      record,
		ReviewFlags: flags,
		CreatedBy:   auditActor(actorID),
	}, nil
}

func flagsForItem(flags []ReviewFlag, index int) []ReviewFlag {
	prefix := fmt.Sprintf("items[%d]", index)
	var out []ReviewFlag
	for _, flag := range flags {
		if strings.HasPrefix(flag.Path, prefix) {
			out = append(out, flag)
		}
	}
	return out
}

func joinFlagPaths(flags []ReviewFlag) string {
	paths := make([]string, len(flags))
	for i, flag := range flags {
		paths[i] = flag.Path
	}
	return strings.Join(paths, ", ")
}

func auditActor(actorID string) *string {
	if strings.TrimSpace(actorID) == "" {
		return nil
	}
	return &actorID
}
