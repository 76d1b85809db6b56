package core

import (
	"fmt"
)

// ValidateProduct checks if a product is valid for ingestion.
func ValidateProduct(p Product) error {
	if p.ID == "" {
		return fmt.Errorf("%w: product ID cannot be empty", ErrValidation)
	}

	if len(p.Embedding) == 0 {
		return fmt.Errorf("%w: product embedding cannot be empty", ErrValidation)
	}

	// Check for NaN or infinite values
	for i, val := range p.Embedding {
		if isNaN(val) {
			return fmt.Errorf("%w: embedding contains NaN at index %d", ErrValidation, i)
		}
		if isInf(val) {
			return fmt.Errorf("%w: embedding contains infinite value at index %d", ErrValidation, i)
		}
	}

	if err := ValidateGender(p.Metadata.Gender); err != nil {
		return err
	}

	return nil
}

// ValidateProductDimension checks if a product embedding matches the expected dimension.
func ValidateProductDimension(p Product, expectedDim int) error {
	if len(p.Embedding) != expectedDim {
		return fmt.Errorf("%w: embedding dimension %d does not match expected dimension %d",
			ErrInvalidDimension, len(p.Embedding), expectedDim)
	}
	return nil
}

// ValidateGender checks a gender facet value. Empty means unset and is allowed;
// the filter layer treats it as GenderBoth.
func ValidateGender(g Gender) error {
	switch g {
	case "", GenderMale, GenderFemale, GenderBoth:
		return nil
	default:
		return fmt.Errorf("%w: unknown gender %q", ErrValidation, g)
	}
}

// ValidateQuery checks a fused query before it reaches the index.
func ValidateQuery(q Query) error {
	if !q.HasText() && !q.HasImage() {
		return ErrEmptyQuery
	}

	if q.WeightText < 0 || q.WeightImage < 0 {
		return fmt.Errorf("%w: weights must be non-negative", ErrValidation)
	}
	if q.WeightText == 0 && q.WeightImage == 0 {
		return ErrZeroWeights
	}

	if q.K <= 0 {
		return fmt.Errorf("%w: k must be positive, got %d", ErrValidation, q.K)
	}

	if err := ValidateGender(q.Filter.Gender); err != nil {
		return err
	}
	if q.Filter.Price != nil && q.Filter.Price.Min > q.Filter.Price.Max {
		return fmt.Errorf("%w: price range min %f above max %f",
			ErrValidation, q.Filter.Price.Min, q.Filter.Price.Max)
	}

	return nil
}

// Helper functions for NaN and Inf detection
func isNaN(f float32) bool {
	return f != f
}

func isInf(f float32) bool {
	return f > 3.4e38 || f < -3.4e38
}
