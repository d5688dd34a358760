package allocation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/admission-seat-allocation/internal/model"
)

func u64(v uint64) *uint64   { return &v }
func f64(v float64) *float64 { return &v }
func pct(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestMeritConcession(t *testing.T) {
	bands := []model.ScholarshipBand{
		{ID: 3, ExamID: 1, StartMark: 90, EndMark: 100, Percentage: pct("50"), ScholarshipID: 103},
		{ID: 1, ExamID: 1, StartMark: 60, EndMark: 74.99, Percentage: pct("10"), ScholarshipID: 101},
		{ID: 2, ExamID: 1, StartMark: 75, EndMark: 89.99, Percentage: pct("25"), ScholarshipID: 102},
		{ID: 9, ExamID: 2, StartMark: 0, EndMark: 100, Percentage: pct("75"), ScholarshipID: 109},
	}

	tests := []struct {
		name    string
		examID  *uint64
		marks   *float64
		wantPct string
		wantSch *uint64
	}{
		{"inside band", u64(1), f64(80), "25", u64(102)},
		{"lower bound inclusive", u64(1), f64(90), "50", u64(103)},
		{"upper bound inclusive", u64(1), f64(100), "50", u64(103)},
		{"below every band", u64(1), f64(40), "0", nil},
		{"gap between bands", u64(1), f64(74.995), "0", nil},
		{"other exam bands ignored", u64(3), f64(95), "0", nil},
		{"no exam", nil, f64(95), "0", nil},
		{"no marks", u64(1), nil, "0", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MeritConcession(tt.examID, tt.marks, bands)
			assert.True(t, got.Percentage.Equal(pct(tt.wantPct)), "got %s", got.Percentage)
			assert.Equal(t, tt.wantSch, got.ScholarshipID)
		})
	}
}

func TestMeritConcessionOverlapPicksLowestStart(t *testing.T) {
	bands := []model.ScholarshipBand{
		{ID: 2, ExamID: 1, StartMark: 80, EndMark: 100, Percentage: pct("50"), ScholarshipID: 2},
		{ID: 1, ExamID: 1, StartMark: 70, EndMark: 90, Percentage: pct("25"), ScholarshipID: 1},
	}
	got := MeritConcession(u64(1), f64(85), bands)
	assert.True(t, got.Percentage.Equal(pct("25")))
	require.NotNil(t, got.ScholarshipID)
	assert.Equal(t, uint64(1), *got.ScholarshipID)
}

func TestAggregateExtra(t *testing.T) {
	catalog := []model.ConcessionType{
		{ProgramID: 1, SubID: 1, Percentage: pct("5")},
		{ProgramID: 1, SubID: 2, Percentage: pct("10")},
		{ProgramID: 1, SubID: 3, Percentage: pct("2.5")},
	}

	got := AggregateExtra(map[uint64]bool{1: true, 2: false, 3: true, 99: true}, catalog)
	assert.True(t, got.Percentage.Equal(pct("7.5")))
	require.Len(t, got.Items, 2)
	assert.Equal(t, uint64(1), got.Items[0].SubID)
	assert.Equal(t, uint64(3), got.Items[1].SubID)

	none := AggregateExtra(nil, catalog)
	assert.True(t, none.Percentage.IsZero())
	assert.Empty(t, none.Items)
}

func TestConcessionRecords(t *testing.T) {
	merit := MeritResult{Percentage: pct("10"), ScholarshipID: u64(101)}
	extra := ExtraResult{Percentage: pct("5"), Items: []model.ConcessionType{{SubID: 4, Percentage: pct("5")}}}

	recs := concessionRecords(42, "CB0001", merit, extra)
	require.Len(t, recs, 2)
	assert.Equal(t, model.ConcessionSourceMerit, recs[0].Source)
	assert.Equal(t, uint64(101), recs[0].SubID)
	assert.Equal(t, model.ConcessionSourceExtra, recs[1].Source)
	for _, r := range recs {
		assert.Equal(t, "CB0001", r.BatchID)
		assert.Equal(t, uint64(42), r.ApplicantID)
	}

	assert.Empty(t, concessionRecords(42, "CB0002", MeritResult{Percentage: decimal.Zero}, ExtraResult{}))
}
