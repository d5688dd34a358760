package model

// SubcategoryCount is the number of seat slots tracked per branch: five
// category-A merit tiers and one category-B slot.
const SubcategoryCount = 6

// SeatSlot is one sub-category row of a branch's seat pool.
//
// Fields:
//  Subcategory – slot index 1..6.
//  Released    – seats released for allocation.
//  Utilized    – seats already allocated; never exceeds Released.
type SeatSlot struct {
    Subcategory int // seat_pool_slots.sub_category
    Released    int // seat_pool_slots.released
    Utilized    int // seat_pool_slots.utilized
}

// Remaining returns the number of seats still available in the slot.
func (s SeatSlot) Remaining() int {
    if s.Utilized >= s.Released {
        return 0
    }
    return s.Released - s.Utilized
}

// SeatPool is the per-branch seat inventory.  Slots are indexed by
// sub-category; Slots[0] is sub-category 1.
type SeatPool struct {
    BranchID uint64
    Slots    [SubcategoryCount]SeatSlot
}
