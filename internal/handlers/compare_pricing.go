package handlers

import (
	"fmt"

	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

// pricingUpdate carries the price fields of a product edit. ClearCompareAt
// removes the compare-at price.
type pricingUpdate struct {
	Price          *decimal.Decimal
	CompareAtPrice *decimal.Decimal
	ClearCompareAt bool
}

type pricingResult struct {
	Price          decimal.Decimal
	CompareAtPrice *decimal.Decimal
}

// isOnSale reports whether the storefront should show a struck-through
// compare-at price next to price.
func isOnSale(price decimal.Decimal, compareAt *decimal.Decimal) bool {
	return compareAt != nil && compareAt.GreaterThan(price)
}

func validatePricing(price decimal.Decimal, compareAt *decimal.Decimal) error {
	if !price.IsPositive() {
		return fmt.Errorf("price must be greater than 0")
	}
	if compareAt != nil && !compareAt.GreaterThan(price) {
		return fmt.Errorf("compareAtPrice must be greater than price")
	}
	return nil
}

func resolvePricingUpdate(existing models.Product, input pricingUpdate) (pricingResult, error) {
	result := pricingResult{
		Price:          existing.Price,
		CompareAtPrice: existing.CompareAtPrice,
	}

	if input.Price != nil {
		result.Price = *input.Price
	}
	if input.ClearCompareAt {
		result.CompareAtPrice = nil
	} else if input.CompareAtPrice != nil {
		result.CompareAtPrice = input.CompareAtPrice
	}

	if err := validatePricing(result.Price, result.CompareAtPrice); err != nil {
		return pricingResult{}, err
	}
	return result, nil
}

// decorateProduct fills the computed fields that are never stored.
func decorateProduct(p *models.Product) {
	p.InStock = p.Stock > 0
	p.IsOnSale = isOnSale(p.Price, p.CompareAtPrice)
}
