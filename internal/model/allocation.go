package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// AllocationRecord is the final, immutable assignment of a seat to an
// applicant.  Exactly one exists per applicant.
type AllocationRecord struct {
    ID                 uint64          `json:"id"`
    ApplicantID        uint64          `json:"applicant_id"`
    ProgramID          uint64          `json:"program_id"`
    BranchID           uint64          `json:"branch_id"`
    CampusID           uint64          `json:"campus_id"`
    Category           string          `json:"category"`
    Subcategory        int             `json:"seat_subcategory"`
    EnrollmentID       string          `json:"enrollment_id"`
    ConcessionBatchID  string          `json:"concession_batch_id"`
    FeeCategoryID      uint64          `json:"fee_category_id"`
    FeeID              uint64          `json:"fee_id"`
    TotalConcessionPct decimal.Decimal `json:"total_concession_pct"`
    AdmissionFee       decimal.Decimal `json:"admission_fee"`
    TuitionFee         decimal.Decimal `json:"tuition_fee"`
    ConcessionAmount   decimal.Decimal `json:"concession_amount"`
    PayableFee         decimal.Decimal `json:"payable_fee"`
    AllocatedBy        uint64          `json:"allocated_by"`
    CreatedAt          time.Time       `json:"created_at"`
}
