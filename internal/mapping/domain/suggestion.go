package mapping

import (
	"errors"
	"fmt"
	"math"

	schema "datamap-cloud/internal/schema/domain"
)

// Suggestion is a confidence-scored candidate association.
type Suggestion struct {
	SourceColumn string  `json:"source_column"`
	TargetField  string  `json:"target_field"`
	Confidence   float64 `json:"confidence"`
}

// Key returns the identity pair of the suggestion.
func (s Suggestion) Key() IdentityPair {
	return IdentityPair{SourceColumn: s.SourceColumn, TargetField: s.TargetField}
}

// Validate checks suggestion invariants.
func (s Suggestion) Validate() error {
	if s.SourceColumn == "" {
		return errors.New("suggestion: empty source column")
	}
	if s.TargetField == "" {
		return errors.New("suggestion: empty target field")
	}
	if math.IsNaN(s.Confidence) || s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("suggestion: confidence %v out of range for %s->%s", s.Confidence, s.SourceColumn, s.TargetField)
	}
	return nil
}

// SuggestionBatch holds one suggestion list per category.
type SuggestionBatch struct {
	Customer []Suggestion `json:"customer"`
	Order    []Suggestion `json:"order"`
	Product  []Suggestion `json:"product"`
}

// Add appends a suggestion to the list of its category.
func (b *SuggestionBatch) Add(category schema.Category, s Suggestion) error {
	switch category {
	case schema.CategoryCustomer:
		b.Customer = append(b.Customer, s)
	case schema.CategoryOrder:
		b.Order = append(b.Order, s)
	case schema.CategoryProduct:
		b.Product = append(b.Product, s)
	default:
		return schema.ErrUnknownCategory
	}
	return nil
}

// For returns the suggestions of one category.
func (b SuggestionBatch) For(category schema.Category) []Suggestion {
	switch category {
	case schema.CategoryCustomer:
		return b.Customer
	case schema.CategoryOrder:
		return b.Order
	case schema.CategoryProduct:
		return b.Product
	default:
		return nil
	}
}

// All flattens the batch as Customer, Order, Product.
func (b SuggestionBatch) All() []Suggestion {
	all := make([]Suggestion, 0, b.Len())
	all = append(all, b.Customer...)
	all = append(all, b.Order...)
	all = append(all, b.Product...)
	return all
}

// Len returns the total number of suggestions.
func (b SuggestionBatch) Len() int {
	return len(b.Customer) + len(b.Order) + len(b.Product)
}

// Validate checks every suggestion in the batch.
func (b SuggestionBatch) Validate() error {
	for _, s := range b.All() {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Find returns the highest-confidence suggestion for the pair.
func (b SuggestionBatch) Find(pair IdentityPair) (Suggestion, bool) {
	var (
		best  Suggestion
		found bool
	)
	for _, s := range b.All() {
		if s.Key() != pair {
			continue
		}
		if !found || s.Confidence > best.Confidence {
			best = s
			found = true
		}
	}
	return best, found
}
