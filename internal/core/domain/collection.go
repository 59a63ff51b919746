package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Collection is the working set of extracted line items for one editing
// session. It is pure domain state: no UI concerns, no persistence, and
// no concurrent writers (a session has a single editor at a time).
type Collection struct {
	registry *Registry
	items    []ParsedItem
}

func NewCollection(registry *Registry) *Collection {
	return &Collection{registry: registry}
}

// Add appends an item to the collection.
func (c *Collection) Add(item ParsedItem) {
	c.items = append(c.items, item.Clone())
}

// AddDefault appends a synthesized generic item and returns its index.
func (c *Collection) AddDefault() int {
	c.items = append(c.items, NewDefaultItem(c.registry))
	return len(c.items) - 1
}

// Len returns the number of items.
func (c *Collection) Len() int {
	return len(c.items)
}

// Items returns a deep copy of the current items in order.
func (c *Collection) Items() []ParsedItem {
	out := make([]ParsedItem, len(c.items))
	for i, item := range c.items {
		out[i] = item.Clone()
	}
	return out
}

// Item returns a copy of the item at index.
func (c *Collection) Item(index int) (ParsedItem, error) {
	if err := c.checkIndex(index); err != nil {
		return ParsedItem{}, err
	}
	return c.items[index].Clone(), nil
}

// Edit updates a single scalar field on the item at index. Setting
// "category" does not reshape measurements; callers that want the
// measurement grid re-derived must use ChangeCategory, which merges
// instead of discarding user-entered values.
func (c *Collection) Edit(index int, field string, value string) error {
	if err := c.checkIndex(index); err != nil {
		return err
	}

	item := c.items[index].Clone()
	switch field {
	case "itemName":
		if strings.TrimSpace(value) == "" {
			return WrapError(ErrInvalidInput, "edit item", fmt.Errorf("itemName cannot be empty"))
		}
		item.ItemName = value
	case "category":
		item.Category = value
	case "designDetails":
		item.DesignDetails = value
	case "fabricType":
		item.FabricType = value
	case "colorDisplay":
		item.ColorDisplay = value
	case "colorHex":
		if !validHexColor(value) {
			return WrapError(ErrInvalidInput, "edit item", fmt.Errorf("colorHex %q is not a 6-digit hex color", value))
		}
		item.ColorHex = value
	case "yardagePerUnit":
		parsed, err := parsePositiveFloat(value)
		if err != nil {
			return WrapError(ErrInvalidInput, "edit item", fmt.Errorf("yardagePerUnit: %w", err))
		}
		item.YardagePerUnit = parsed
	case "expectedQuantity":
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || parsed < 1 {
			return WrapError(ErrInvalidInput, "edit item", fmt.Errorf("expectedQuantity %q must be an integer >= 1", value))
		}
		item.ExpectedQuantity = parsed
	case "priceEstimate":
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || parsed < 0 {
			return WrapError(ErrInvalidInput, "edit item", fmt.Errorf("priceEstimate %q must be a number >= 0", value))
		}
		item.PriceEstimate = parsed
	case "requiresReview":
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return WrapError(ErrInvalidInput, "edit item", fmt.Errorf("requiresReview %q must be a boolean", value))
		}
		item.RequiresReview = parsed
	default:
		return WrapError(ErrInvalidInput, "edit item", fmt.Errorf("unknown field %q", field))
	}

	c.items[index] = item
	return nil
}

// ChangeCategory sets a new category and merges the measurement grid
// against the new schema: values for fields that exist in both schemas
// are preserved, newly introduced fields start at zero, and fields the
// new schema does not know are dropped. User-entered numbers survive a
// category change whenever the field remains valid.
func (c *Collection) ChangeCategory(index int, category string) error {
	if err := c.checkIndex(index); err != nil {
		return err
	}

	item := c.items[index].Clone()
	item.Category = category
	fields := c.registry.FieldsFor(category)

	merged := make(Measurements, len(item.Measurements))
	for size, old := range item.Measurements {
		bucket := make(map[string]float64, len(fields))
		for _, field := range fields {
			bucket[field] = old[field]
		}
		merged[size] = bucket
	}
	item.Measurements = merged

	c.items[index] = item
	return nil
}

// EditMeasurement coerces value to a number and writes one measurement
// cell. Non-numeric input is rejected without any mutation.
func (c *Collection) EditMeasurement(index int, size, field, value string) error {
	if err := c.checkIndex(index); err != nil {
		return err
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return WrapError(ErrInvalidInput, "edit measurement", fmt.Errorf("value %q is not numeric", value))
	}

	item := c.items[index].Clone()
	if item.Measurements == nil {
		item.Measurements = Measurements{}
	}
	if item.Measurements[size] == nil {
		item.Measurements[size] = map[string]float64{}
	}
	item.Measurements[size][field] = parsed
	c.items[index] = item
	return nil
}

// Remove deletes the item at index; the collection stays dense.
func (c *Collection) Remove(index int) error {
	if err := c.checkIndex(index); err != nil {
		return err
	}
	c.items = append(c.items[:index], c.items[index+1:]...)
	return nil
}

// ItemTotalYardage computes the derived yardage for one item.
func (c *Collection) ItemTotalYardage(index int) (float64, error) {
	if err := c.checkIndex(index); err != nil {
		return 0, err
	}
	return c.items[index].TotalYardage(), nil
}

// TotalYardage computes the derived yardage across all items.
func (c *Collection) TotalYardage() float64 {
	var total float64
	for _, item := range c.items {
		total += item.TotalYardage()
	}
	return total
}

func (c *Collection) checkIndex(index int) error {
	if index < 0 || index >= len(c.items) {
		return WrapError(ErrInvalidInput, "item index", fmt.Errorf("index %d out of range [0,%d)", index, len(c.items)))
	}
	return nil
}

func parsePositiveFloat(value string) (float64, error) {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not numeric", value)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%v must be > 0", parsed)
	}
	return parsed, nil
}

func validHexColor(value string) bool {
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
