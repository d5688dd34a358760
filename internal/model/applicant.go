package model

import "time"

// Applicant is a verified admission record waiting for (or holding) a
// seat.  Branch choices are ordered by preference.  ExamID and Marks are
// nullable because not every program admits through an entrance exam.
//
// Fields:
//  ID            – primary key identifier.
//  ProgramID     – program the applicant applied to.
//  CampusID      – campus the applicant will join.
//  AdmissionYear – four digit admission year, used in generated ids.
//  ExamID        – entrance exam taken (nil if none).
//  Marks         – marks scored in ExamID (nil if not recorded).
//  Verified      – documents verified and officer approved.
//  BranchChoices – branch ids in preference order.
//  CreatedAt     – creation timestamp.
type Applicant struct {
    ID            uint64   // applicants.id
    ProgramID     uint64   // applicants.program_id
    CampusID      uint64   // applicants.campus_id
    AdmissionYear int      // applicants.admission_year
    ExamID        *uint64  // applicants.exam_id (nullable)
    Marks         *float64 // applicants.marks (nullable)
    Verified      bool     // applicants.verified
    BranchChoices []uint64 // applicant_branch_choices ordered by preference
    CreatedAt     time.Time
}

// HasChoice reports whether branchID is one of the applicant's choices.
func (a *Applicant) HasChoice(branchID uint64) bool {
    for _, id := range a.BranchChoices {
        if id == branchID {
            return true
        }
    }
    return false
}

// AdmissionStatus tracks progress flags for an applicant.  Only the seat
// allocation flag is owned by this service; it moves from 0 to 1 once.
type AdmissionStatus struct {
    ApplicantID    uint64 // admission_status.applicant_id
    SeatAllocation uint8  // admission_status.seat_allocation (0 or 1)
}
