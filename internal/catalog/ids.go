package catalog

import "fmt"

// IDStrategy picks the id for a product about to be appended to products.
type IDStrategy func(products []Product) int

// LengthIDs numbers products by collection size. After a delete it can hand
// out an id that a remaining product already holds.
func LengthIDs(products []Product) int {
	return len(products) + 1
}

// MaxIDs numbers products one past the highest id in the collection.
func MaxIDs(products []Product) int {
	top := 0
	for _, p := range products {
		top = max(top, p.ID)
	}
	return top + 1
}

const (
	IDStrategyLength = "length"
	IDStrategyMax    = "max"
)

func ParseIDStrategy(name string) (IDStrategy, error) {
	switch name {
	case "", IDStrategyLength:
		return LengthIDs, nil
	case IDStrategyMax:
		return MaxIDs, nil
	default:
		return nil, fmt.Errorf("unknown id strategy %q", name)
	}
}
