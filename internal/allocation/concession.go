package allocation

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/admission-seat-allocation/internal/model"
)

// MeritResult is the merit concession earned from entrance exam marks.
// ScholarshipID is nil when no band matched.
type MeritResult struct {
	Percentage    decimal.Decimal
	ScholarshipID *uint64
}

// ExtraResult is the sum of the manually selected concessions that exist
// in the program's catalog.
type ExtraResult struct {
	Percentage decimal.Decimal
	Items      []model.ConcessionType
}

// MeritConcession finds the band of examID containing marks.  A missing
// exam or missing marks yields a zero concession, as does marks falling
// outside every band.  Bands are scanned by ascending start mark (then
// id), so when bands overlap the lowest starting band wins.
func MeritConcession(examID *uint64, marks *float64, bands []model.ScholarshipBand) MeritResult {
	none := MeritResult{Percentage: decimal.Zero}
	if examID == nil || marks == nil {
		return none
	}
	ordered := make([]model.ScholarshipBand, 0, len(bands))
	for _, b := range bands {
		if b.ExamID == *examID {
			ordered = append(ordered, b)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].StartMark != ordered[j].StartMark {
			return ordered[i].StartMark < ordered[j].StartMark
		}
		return ordered[i].ID < ordered[j].ID
	})
	for _, b := range ordered {
		if b.Contains(*marks) {
			id := b.ScholarshipID
			return MeritResult{Percentage: b.Percentage, ScholarshipID: &id}
		}
	}
	return none
}

// AggregateExtra sums the catalog percentages of every selection flagged
// true.  Selected ids missing from the catalog are skipped, not rejected.
// Items keep catalog order.
func AggregateExtra(selections map[uint64]bool, catalog []model.ConcessionType) ExtraResult {
	res := ExtraResult{Percentage: decimal.Zero}
	for _, ct := range catalog {
		if !selections[ct.SubID] {
			continue
		}
		res.Percentage = res.Percentage.Add(ct.Percentage)
		res.Items = append(res.Items, ct)
	}
	return res
}

// concessionRecords builds the records persisted for one allocation: the
// merit concession first (when non-zero), then each extra item.
func concessionRecords(applicantID uint64, batchID string, merit MeritResult, extra ExtraResult) []model.ConcessionRecord {
	recs := make([]model.ConcessionRecord, 0, len(extra.Items)+1)
	if merit.ScholarshipID != nil && merit.Percentage.IsPositive() {
		recs = append(recs, model.ConcessionRecord{
			ApplicantID: applicantID,
			SubID:       *merit.ScholarshipID,
			Source:      model.ConcessionSourceMerit,
			Percentage:  merit.Percentage,
			BatchID:     batchID,
		})
	}
	for _, it := range extra.Items {
		recs = append(recs, model.ConcessionRecord{
			ApplicantID: applicantID,
			SubID:       it.SubID,
			Source:      model.ConcessionSourceExtra,
			Percentage:  it.Percentage,
			BatchID:     batchID,
		})
	}
	return recs
}
