package schema

import (
	"errors"
	"strings"
)

// Category groups canonical fields.
type Category string

const (
	CategoryCustomer Category = "Customer"
	CategoryOrder    Category = "Order"
	CategoryProduct  Category = "Product"
)

// ErrUnknownCategory is returned when a category name cannot be parsed.
var ErrUnknownCategory = errors.New("schema: unknown category")

// Categories lists every category in inference priority order.
var Categories = []Category{CategoryOrder, CategoryCustomer, CategoryProduct}

// ParseCategory resolves a category name case-insensitively.
func ParseCategory(value string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "customer":
		return CategoryCustomer, nil
	case "order":
		return CategoryOrder, nil
	case "product":
		return CategoryProduct, nil
	default:
		return "", ErrUnknownCategory
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c.rank() > 0
}

// Priority returns the tie-break rank; higher wins.
func (c Category) Priority() int {
	return c.rank()
}

func (c Category) rank() int {
	switch c {
	case CategoryOrder:
		return 3
	case CategoryCustomer:
		return 2
	case CategoryProduct:
		return 1
	default:
		return 0
	}
}
