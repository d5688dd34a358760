package model

import "github.com/shopspring/decimal"

// ScholarshipBand maps a mark range of an exam to a merit concession.
// The range is inclusive on both ends.
type ScholarshipBand struct {
    ID            uint64          // scholarship_bands.id
    ExamID        uint64          // scholarship_bands.exam_id
    StartMark     float64         // scholarship_bands.start_mark
    EndMark       float64         // scholarship_bands.end_mark
    Percentage    decimal.Decimal // scholarship_bands.percentage
    ScholarshipID uint64          // scholarship_bands.scholarship_id
}

// Contains reports whether marks falls inside the band.
func (b ScholarshipBand) Contains(marks float64) bool {
    return marks >= b.StartMark && marks <= b.EndMark
}

// ConcessionType is a catalog entry for an extra, manually selected
// concession offered by a program.
type ConcessionType struct {
    ProgramID   uint64          `json:"program_id"`  // concession_types.program_id
    SubID       uint64          `json:"sub_id"`      // concession_types.sub_id
    Description string          `json:"description"` // concession_types.description
    Percentage  decimal.Decimal `json:"percentage"`  // concession_types.percentage
}

// Concession sources recorded on ConcessionRecord.
const (
    ConcessionSourceMerit = "MERIT"
    ConcessionSourceExtra = "EXTRA"
)

// ConcessionRecord is one concession granted to an applicant.  All
// records created by a single allocation share a BatchID.
type ConcessionRecord struct {
    ApplicantID uint64          `json:"applicant_id"` // concession_records.applicant_id
    SubID       uint64          `json:"sub_id"`       // concession_records.concession_sub_id
    Source      string          `json:"source"`       // concession_records.source (MERIT, EXTRA)
    Percentage  decimal.Decimal `json:"percentage"`   // concession_records.percentage
    BatchID     string          `json:"batch_id"`     // concession_records.batch_id
}
