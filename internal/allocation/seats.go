package allocation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Admission categories.
const (
	CategoryA = "A"
	CategoryB = "B"
)

// Subcategory indexes a branch seat slot: 1..5 are the category-A merit
// tiers, 6 is category B.
type Subcategory int

const (
	SubcategoryA10 Subcategory = iota + 1
	SubcategoryA25
	SubcategoryA50
	SubcategoryA75
	SubcategoryA0
	SubcategoryB
)

// Valid reports whether s is one of the six slots.
func (s Subcategory) Valid() bool { return s >= SubcategoryA10 && s <= SubcategoryB }

func (s Subcategory) String() string { return fmt.Sprintf("sub_cat_%d", int(s)) }

// categoryATiers maps the concession percentages accepted under category A
// to their slot.
var categoryATiers = []struct {
	pct decimal.Decimal
	sub Subcategory
}{
	{decimal.NewFromInt(10), SubcategoryA10},
	{decimal.NewFromInt(25), SubcategoryA25},
	{decimal.NewFromInt(50), SubcategoryA50},
	{decimal.NewFromInt(75), SubcategoryA75},
	{decimal.Zero, SubcategoryA0},
}

// ValidCategory reports whether category is a known admission category.
func ValidCategory(category string) bool {
	return category == CategoryA || category == CategoryB
}

// ResolveSubcategory picks the seat slot for a category and total
// concession percentage.  Category A only accepts the exact tier
// percentages; category B always maps to slot 6.
func ResolveSubcategory(category string, pct decimal.Decimal) (Subcategory, error) {
	switch category {
	case CategoryB:
		return SubcategoryB, nil
	case CategoryA:
		for _, t := range categoryATiers {
			if pct.Equal(t.pct) {
				return t.sub, nil
			}
		}
		return 0, newError(KindInvalidConcessionTier, "concession %s%% is not a category A tier", pct.String())
	}
	return 0, newError(KindValidation, "unknown category %q", category)
}

// Availability is a snapshot of one seat slot.
type Availability struct {
	Released  int `json:"released"`
	Utilized  int `json:"utilized"`
	Remaining int `json:"remaining"`
}

// SeatPool is the seat inventory primitive.  TryReserve must be a single
// atomic compare-and-increment in the backing store: it increments the
// utilized count only while it is below the released count and returns
// the seats remaining afterwards.  It returns ErrNoSeats when the slot is
// full and ErrNotFound when the branch has no pool.
type SeatPool interface {
	TryReserve(ctx context.Context, branchID uint64, sub Subcategory) (remaining int, err error)
	Availability(ctx context.Context, branchID uint64, sub Subcategory) (Availability, error)
}
