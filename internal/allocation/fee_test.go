package allocation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/admission-seat-allocation/internal/model"
)

func TestComputeFees(t *testing.T) {
	s := FeeSchedule{AdmissionFee: pct("5000"), TuitionFee: pct("100000")}

	got := ComputeFees(s, pct("15"))
	assert.True(t, got.ConcessionAmount.Equal(pct("15000")))
	assert.True(t, got.PayableFee.Equal(pct("85000")))
	assert.True(t, got.AdmissionFee.Equal(pct("5000")))

	zero := ComputeFees(s, pct("0"))
	assert.True(t, zero.ConcessionAmount.IsZero())
	assert.True(t, zero.PayableFee.Equal(pct("100000")))

	odd := ComputeFees(FeeSchedule{TuitionFee: pct("999.99")}, pct("12.5"))
	assert.True(t, odd.ConcessionAmount.Equal(pct("125")), "got %s", odd.ConcessionAmount)
	assert.True(t, odd.PayableFee.Equal(pct("874.99")))
}

func TestBuildSchedule(t *testing.T) {
	items := []model.FeeLineItem{
		{Subgroup: model.FeeSubgroupAdmission, FeeYear: 1, Amount: pct("5000")},
		{Subgroup: model.FeeSubgroupTuition, FeeYear: 1, Amount: pct("80000")},
		{Subgroup: model.FeeSubgroupTuitionB, FeeYear: 1, Amount: pct("20000")},
		{Subgroup: 4, FeeYear: 1, Amount: pct("15000")},
		{Subgroup: model.FeeSubgroupTuition, FeeYear: 2, Amount: pct("90000")},
	}
	s, err := BuildSchedule(21, items)
	require.NoError(t, err)
	assert.Equal(t, uint64(21), s.FeeID)
	assert.True(t, s.AdmissionFee.Equal(pct("5000")))
	assert.True(t, s.TuitionFee.Equal(pct("100000")))
}

func TestBuildScheduleRejectsBadCatalogs(t *testing.T) {
	_, err := BuildSchedule(1, []model.FeeLineItem{{Subgroup: model.FeeSubgroupTuition, FeeYear: 2, Amount: pct("1")}})
	assert.Equal(t, KindLookupNotFound, KindOf(err))

	_, err = BuildSchedule(1, []model.FeeLineItem{
		{Subgroup: model.FeeSubgroupAdmission, FeeYear: 1, Amount: pct("1")},
		{Subgroup: model.FeeSubgroupAdmission, FeeYear: 1, Amount: pct("2")},
	})
	assert.Equal(t, KindLookupNotFound, KindOf(err))
}

type mapFeeCatalog struct {
	categories map[string]uint64
	fees       map[[2]uint64]uint64
	items      map[uint64][]model.FeeLineItem
}

func (m mapFeeCatalog) FeeCategoryID(_ context.Context, programID uint64, category string) (uint64, error) {
	if id, ok := m.categories[category]; ok && programID == 1 {
		return id, nil
	}
	return 0, ErrNotFound
}

func (m mapFeeCatalog) FeeID(_ context.Context, catID, branchID uint64) (uint64, error) {
	if id, ok := m.fees[[2]uint64{catID, branchID}]; ok {
		return id, nil
	}
	return 0, ErrNotFound
}

func (m mapFeeCatalog) FeeLineItems(_ context.Context, feeID uint64) ([]model.FeeLineItem, error) {
	if it, ok := m.items[feeID]; ok {
		return it, nil
	}
	return nil, ErrNotFound
}

func TestFeeResolverResolve(t *testing.T) {
	cat := mapFeeCatalog{
		categories: map[string]uint64{"A": 11},
		fees:       map[[2]uint64]uint64{{11, 7}: 21},
		items: map[uint64][]model.FeeLineItem{21: {
			{Subgroup: 1, FeeYear: 1, Amount: pct("5000")},
			{Subgroup: 2, FeeYear: 1, Amount: pct("100000")},
		}},
	}
	r := NewFeeResolver(cat)
	ctx := context.Background()

	s, err := r.Resolve(ctx, 1, "A", 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), s.FeeCategoryID)
	assert.Equal(t, uint64(21), s.FeeID)

	_, err = r.Resolve(ctx, 1, "B", 7)
	assert.Equal(t, KindLookupNotFound, KindOf(err))
	_, err = r.Resolve(ctx, 1, "A", 8)
	assert.Equal(t, KindLookupNotFound, KindOf(err))
}
