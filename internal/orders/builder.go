package orders

import (
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

// Line is one validated cart entry.
type Line struct {
	ProductID primitive.ObjectID
	Quantity  int
}

// Aggregate is the priced content of an order before it is persisted.
type Aggregate struct {
	Items        []models.OrderItem
	Subtotal     decimal.Decimal
	ShippingCost decimal.Decimal
	Total        decimal.Decimal
}

// MaxLineQuantity caps a single product's quantity in one order, after
// repeated lines are merged.
const MaxLineQuantity = 1000

// MergeLines folds repeated product ids into one line, keeping first-seen order.
// Every input and merged quantity must stay within 1..MaxLineQuantity.
func MergeLines(lines []Line) ([]Line, error) {
	index := make(map[primitive.ObjectID]int, len(lines))
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 || l.Quantity > MaxLineQuantity {
			return nil, ErrInvalidQuantity
		}
		if i, ok := index[l.ProductID]; ok {
			if out[i].Quantity > MaxLineQuantity-l.Quantity {
				return nil, ErrInvalidQuantity
			}
			out[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out, nil
}

// BuildAggregate prices lines with the catalog's current prices. Every line
// must have a matching product; callers validate existence first. Shipping is
// always zero.
func BuildAggregate(lines []Line, products map[primitive.ObjectID]models.Product) Aggregate {
	agg := Aggregate{
		Items:        make([]models.OrderItem, 0, len(lines)),
		Subtotal:     decimal.Zero,
		ShippingCost: decimal.Zero,
	}

	for _, l := range lines {
		p := products[l.ProductID]
		lineTotal := p.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		agg.Items = append(agg.Items, models.OrderItem{
			ProductID: l.ProductID,
			Name:      p.Name,
			Quantity:  l.Quantity,
			UnitPrice: p.Price,
			LineTotal: lineTotal,
		})
		agg.Subtotal = agg.Subtotal.Add(lineTotal)
	}

	agg.Total = agg.Subtotal.Add(agg.ShippingCost)
	return agg
}
