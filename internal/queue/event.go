// Package queue defines message payloads exchanged over the message broker
// and the background consumer that records them.
package queue

import (
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/admission-seat-allocation/internal/model"
)

// AllocationQueueName is the durable queue allocation events go to.
const AllocationQueueName = "allocation.completed"

// ConcessionLine is one granted concession inside an event.
type ConcessionLine struct {
    SubID      uint64 `json:"sub_id"`
    Source     string `json:"source"`
    Percentage string `json:"percentage"`
}

// AllocationCompletedEvent is published once an allocation has committed.
// It carries enough for downstream consumers (fee collection, notices,
// reporting) to act without reading the primary database.  Monetary
// values are decimal strings.
type AllocationCompletedEvent struct {
    EventID            string           `json:"event_id"`
    AllocationID       uint64           `json:"allocation_id"`
    ApplicantID        uint64           `json:"applicant_id"`
    ProgramID          uint64           `json:"program_id"`
    BranchID           uint64           `json:"branch_id"`
    CampusID           uint64           `json:"campus_id"`
    Category           string           `json:"category"`
    SeatSubcategory    int              `json:"seat_subcategory"`
    EnrollmentID       string           `json:"enrollment_id"`
    ConcessionBatchID  string           `json:"concession_batch_id"`
    TotalConcessionPct string           `json:"total_concession_pct"`
    AdmissionFee       string           `json:"admission_fee"`
    TuitionFee         string           `json:"tuition_fee"`
    ConcessionAmount   string           `json:"concession_amount"`
    PayableFee         string           `json:"payable_fee"`
    Concessions        []ConcessionLine `json:"concessions"`
    AllocatedBy        uint64           `json:"allocated_by"`
    AllocatedAt        string           `json:"allocated_at"`
}

// NewAllocationCompletedEvent builds the event for a committed record.
// Every call gets a fresh EventID so consumers can deduplicate.
func NewAllocationCompletedEvent(rec *model.AllocationRecord, concessions []model.ConcessionRecord) AllocationCompletedEvent {
    lines := make([]ConcessionLine, 0, len(concessions))
    for _, c := range concessions {
        lines = append(lines, ConcessionLine{SubID: c.SubID, Source: c.Source, Percentage: c.Percentage.String()})
    }
    return AllocationCompletedEvent{
        EventID:            uuid.NewString(),
        AllocationID:       rec.ID,
        ApplicantID:        rec.ApplicantID,
        ProgramID:          rec.ProgramID,
        BranchID:           rec.BranchID,
        CampusID:           rec.CampusID,
        Category:           rec.Category,
        SeatSubcategory:    rec.Subcategory,
        EnrollmentID:       rec.EnrollmentID,
        ConcessionBatchID:  rec.ConcessionBatchID,
        TotalConcessionPct: rec.TotalConcessionPct.String(),
        AdmissionFee:       rec.AdmissionFee.StringFixed(2),
        TuitionFee:         rec.TuitionFee.StringFixed(2),
        ConcessionAmount:   rec.ConcessionAmount.StringFixed(2),
        PayableFee:         rec.PayableFee.StringFixed(2),
        Concessions:        lines,
        AllocatedBy:        rec.AllocatedBy,
        AllocatedAt:        rec.CreatedAt.UTC().Format(time.RFC3339),
    }
}
