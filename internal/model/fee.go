package model

import "github.com/shopspring/decimal"

// Fee subgroups recognised by the allocation engine.  Other subgroups
// (hostel, transport, ...) exist in the catalog but are not charged here.
const (
    FeeSubgroupAdmission = 1
    FeeSubgroupTuition   = 2
    FeeSubgroupTuitionB  = 3
)

// FeeLineItem is one row of a fee schedule.
//
// Fields:
//  FeeID    – fee schedule the row belongs to.
//  Subgroup – kind of charge (1 admission, 2/3 tuition, ...).
//  FeeYear  – year of study the row applies to.
//  Amount   – amount charged.
type FeeLineItem struct {
    FeeID    uint64          // fee_line_items.fee_id
    Subgroup int             // fee_line_items.subgroup
    FeeYear  int             // fee_line_items.fee_year
    Amount   decimal.Decimal // fee_line_items.amount
}
