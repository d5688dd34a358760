package allocation

import (
	"context"

	"github.com/iliyamo/admission-seat-allocation/internal/model"
)

// ReferenceData is the read-only master data the engine consults.  Reads
// have no side effects and may be served from a cache or replica.  Missing
// rows are reported as ErrNotFound.
type ReferenceData interface {
	FeeCatalog
	Applicant(ctx context.Context, id uint64) (*model.Applicant, error)
	Program(ctx context.Context, id uint64) (*model.Program, error)
	Branch(ctx context.Context, id uint64) (*model.ProgramBranch, error)
	ScholarshipBands(ctx context.Context, examID uint64) ([]model.ScholarshipBand, error)
	ConcessionTypes(ctx context.Context, programID uint64) ([]model.ConcessionType, error)
}

// Tx is the unit of work handed to WithinTx.  Every mutation made through
// it becomes visible together on commit or is undone when the callback
// fails.
type Tx interface {
	SeatPool
	AtomicCounter
	// ClaimApplicant takes exclusive ownership of the applicant's
	// allocation.  It returns ErrAlreadyAllocated when a seat was already
	// allocated and ErrConflict when another allocation holds the claim.
	ClaimApplicant(ctx context.Context, applicantID uint64) error
	SaveConcessions(ctx context.Context, recs []model.ConcessionRecord) error
	SaveAllocation(ctx context.Context, rec *model.AllocationRecord) error
	MarkSeatAllocated(ctx context.Context, applicantID uint64) error
}

// Store is the persistence backend of the engine.
type Store interface {
	// WithinTx runs fn in a unit of work.  If fn returns an error every
	// reservation, counter value and write made through tx is rolled back
	// or compensated before WithinTx returns that error.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Availability(ctx context.Context, branchID uint64, sub Subcategory) (Availability, error)
	SeatPool(ctx context.Context, branchID uint64) (*model.SeatPool, error)
	Allocation(ctx context.Context, applicantID uint64) (*model.AllocationRecord, error)
}

// EventPublisher is notified after an allocation commits.
type EventPublisher interface {
	AllocationCompleted(ctx context.Context, rec *model.AllocationRecord, concessions []model.ConcessionRecord) error
}
