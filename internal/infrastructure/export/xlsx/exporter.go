// Package xlsx renders a session's line items as a measurement-sheet
// workbook the manufacturing side can work from.
package xlsx

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/stitchworks/atelier/internal/core/domain"
)

var sizeOrder = map[string]int{
	"xsmall": 0, "small": 1, "medium": 2, "large": 3, "xlarge": 4, "xxlarge": 5,
}

type Exporter struct {
	registry *domain.Registry
}

func New(registry *domain.Registry) *Exporter {
	return &Exporter{registry: registry}
}

// Export writes one sheet per item: a metadata block followed by the
// size-by-field measurement grid. Field columns follow the registry
// order for the item's category, so the sheet always matches what the
// editor shows.
func (e *Exporter) Export(items []domain.ParsedItem) ([]byte, error) {
	if len(items) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "export measurement sheet", fmt.Errorf("no items to export"))
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, item := range items {
		sheet := sheetName(i, item.ItemName)
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("create sheet %q: %w", sheet, err)
		}
		if err := e.writeItem(f, sheet, item); err != nil {
			return nil, err
		}
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *Exporter) writeItem(f *excelize.File, sheet string, item domain.ParsedItem) error {
	meta := [][2]any{
		{"Item", item.ItemName},
		{"Category", item.Category},
		{"Fabric", item.FabricType},
		{"Color", fmt.Sprintf("%s (%s)", item.ColorDisplay, item.ColorHex)},
		{"Quantity", item.ExpectedQuantity},
		{"Yardage per unit", item.YardagePerUnit},
		{"Total yardage", item.TotalYardage()},
		{"Needs review", item.RequiresReview},
	}
	for row, pair := range meta {
		if err := setCell(f, sheet, 1, row+1, pair[0]); err != nil {
			return err
		}
		if err := setCell(f, sheet, 2, row+1, pair[1]); err != nil {
			return err
		}
	}

	fields := e.registry.FieldsFor(item.Category)
	gridTop := len(meta) + 2

	if err := setCell(f, sheet, 1, gridTop, "Size"); err != nil {
		return err
	}
	for col, field := range fields {
		if err := setCell(f, sheet, col+2, gridTop, field); err != nil {
			return err
		}
	}

	for rowOffset, size := range sortedSizes(item.Measurements) {
		row := gridTop + 1 + rowOffset
		if err := setCell(f, sheet, 1, row, size); err != nil {
			return err
		}
		for col, field := range fields {
			if err := setCell(f, sheet, col+2, row, item.Measurements[size][field]); err != nil {
				return err
			}
		}
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("cell coordinates (%d,%d): %w", col, row, err)
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("set cell %s!%s: %w", sheet, cell, err)
	}
	return nil
}

func sortedSizes(measurements domain.Measurements) []string {
	sizes := make([]string, 0, len(measurements))
	for size := range measurements {
		sizes = append(sizes, size)
	}
	sort.Slice(sizes, func(i, j int) bool {
		oi, iKnown := sizeOrder[sizes[i]]
		oj, jKnown := sizeOrder[sizes[j]]
		switch {
		case iKnown && jKnown:
			return oi < oj
		case iKnown:
			return true
		case jKnown:
			return false
		default:
			return sizes[i] < sizes[j]
		}
	})
	return sizes
}

func sheetName(index int, itemName string) string {
	name := strings.TrimSpace(itemName)
	if name == "" {
		name = "item"
	}
	// Excel sheet names cap at 31 chars and reject a handful of symbols.
	replacer := strings.NewReplacer(":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", " ", "]", " ")
	name = replacer.Replace(name)
	prefix := fmt.Sprintf("%d - ", index+1)
	if len(prefix)+len(name) > 31 {
		name = name[:31-len(prefix)]
	}
	return prefix + name
}
