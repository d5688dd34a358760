package allocation

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/admission-seat-allocation/internal/model"
)

// firstFeeYear is the only fee year charged at allocation time.
const firstFeeYear = 1

var hundred = decimal.NewFromInt(100)

// FeeCatalog is the read-only fee chain: program and category resolve
// to a fee category, the fee category and branch to a fee id, and the
// fee id to its line items.  Missing rows are reported as ErrNotFound.
type FeeCatalog interface {
	FeeCategoryID(ctx context.Context, programID uint64, category string) (uint64, error)
	FeeID(ctx context.Context, feeCategoryID, branchID uint64) (uint64, error)
	FeeLineItems(ctx context.Context, feeID uint64) ([]model.FeeLineItem, error)
}

// FeeSchedule is the first-year charge for a branch seat before
// concession.
type FeeSchedule struct {
	FeeCategoryID uint64
	FeeID         uint64
	AdmissionFee  decimal.Decimal
	TuitionFee    decimal.Decimal
}

// FeeBreakdown is the amount due after applying a concession.
type FeeBreakdown struct {
	AdmissionFee     decimal.Decimal
	TuitionFee       decimal.Decimal
	ConcessionAmount decimal.Decimal
	PayableFee       decimal.Decimal
}

// FeeResolver walks the fee chain for an allocation.
type FeeResolver struct {
	catalog FeeCatalog
}

// NewFeeResolver returns a FeeResolver reading from catalog.
func NewFeeResolver(catalog FeeCatalog) *FeeResolver { return &FeeResolver{catalog: catalog} }

// Resolve looks up the fee category, fee id and first-year schedule for a
// program, category and branch.
func (r *FeeResolver) Resolve(ctx context.Context, programID uint64, category string, branchID uint64) (FeeSchedule, error) {
	catID, err := r.catalog.FeeCategoryID(ctx, programID, category)
	if err != nil {
		return FeeSchedule{}, classify(err, "fee category")
	}
	feeID, err := r.catalog.FeeID(ctx, catID, branchID)
	if err != nil {
		return FeeSchedule{}, classify(err, "fee id")
	}
	items, err := r.catalog.FeeLineItems(ctx, feeID)
	if err != nil {
		return FeeSchedule{}, classify(err, "fee schedule")
	}
	sched, err := BuildSchedule(feeID, items)
	if err != nil {
		return FeeSchedule{}, err
	}
	sched.FeeCategoryID = catID
	return sched, nil
}

// BuildSchedule reduces line items to the admission and tuition amounts
// of fee year 1.  Subgroup 1 is the admission fee and must appear at most
// once; subgroups 2 and 3 are summed as tuition; other subgroups are
// ignored.
func BuildSchedule(feeID uint64, items []model.FeeLineItem) (FeeSchedule, error) {
	sched := FeeSchedule{FeeID: feeID, AdmissionFee: decimal.Zero, TuitionFee: decimal.Zero}
	found, admissionRows := 0, 0
	for _, it := range items {
		if it.FeeYear != firstFeeYear {
			continue
		}
		switch it.Subgroup {
		case model.FeeSubgroupAdmission:
			admissionRows++
			sched.AdmissionFee = it.Amount
		case model.FeeSubgroupTuition, model.FeeSubgroupTuitionB:
			sched.TuitionFee = sched.TuitionFee.Add(it.Amount)
		default:
			continue
		}
		found++
	}
	if found == 0 {
		return FeeSchedule{}, newError(KindLookupNotFound, "fee schedule %d has no first-year admission or tuition rows", feeID)
	}
	if admissionRows > 1 {
		return FeeSchedule{}, newError(KindLookupNotFound, "fee schedule %d has %d admission fee rows", feeID, admissionRows)
	}
	return sched, nil
}

// ComputeFees applies a concession percentage to the tuition fee.  The
// admission fee is never discounted.
func ComputeFees(s FeeSchedule, pct decimal.Decimal) FeeBreakdown {
	concession := s.TuitionFee.Mul(pct).Div(hundred).Round(2)
	return FeeBreakdown{
		AdmissionFee:     s.AdmissionFee,
		TuitionFee:       s.TuitionFee,
		ConcessionAmount: concession,
		PayableFee:       s.TuitionFee.Sub(concession),
	}
}
