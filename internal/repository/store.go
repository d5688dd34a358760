package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/admission-seat-allocation/internal/allocation"
	"github.com/iliyamo/admission-seat-allocation/internal/model"
)

// Store is the MySQL allocation.Store.  A unit of work is one SQL
// transaction; rolling it back undoes the seat reservation, the counter
// increments and every insert at once.
type Store struct {
	db     *sql.DB
	seats  *SeatPoolRepo
	seqs   *SequenceRepo
	allocs *AllocationRepo
}

var _ allocation.Store = (*Store)(nil)

// NewStore returns a Store bound to the primary database.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:     db,
		seats:  NewSeatPoolRepo(db),
		seqs:   NewSequenceRepo(db),
		allocs: NewAllocationRepo(db),
	}
}

// WithinTx runs fn inside a transaction and commits when fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx allocation.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(ctx, &sqlTx{s: s, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapDBError(err)
	}
	committed = true
	return nil
}

// Availability reads one seat slot.
func (s *Store) Availability(ctx context.Context, branchID uint64, sub allocation.Subcategory) (allocation.Availability, error) {
	return s.seats.Availability(ctx, branchID, sub)
}

// SeatPool reads every slot of a branch.
func (s *Store) SeatPool(ctx context.Context, branchID uint64) (*model.SeatPool, error) {
	return s.seats.GetPool(ctx, branchID)
}

// Allocation returns the allocation of an applicant.
func (s *Store) Allocation(ctx context.Context, applicantID uint64) (*model.AllocationRecord, error) {
	return s.allocs.GetByApplicant(ctx, applicantID)
}

// sqlTx binds the repositories to one transaction.
type sqlTx struct {
	s  *Store
	tx *sql.Tx
}

func (t *sqlTx) ClaimApplicant(ctx context.Context, applicantID uint64) error {
	return t.s.allocs.LockStatusTx(ctx, t.tx, applicantID)
}

func (t *sqlTx) TryReserve(ctx context.Context, branchID uint64, sub allocation.Subcategory) (int, error) {
	return t.s.seats.TryReserveTx(ctx, t.tx, branchID, sub)
}

func (t *sqlTx) Availability(ctx context.Context, branchID uint64, sub allocation.Subcategory) (allocation.Availability, error) {
	return t.s.seats.AvailabilityTx(ctx, t.tx, branchID, sub)
}

func (t *sqlTx) Next(ctx context.Context, scope allocation.Scope) (allocation.Sequence, error) {
	return t.s.seqs.NextTx(ctx, t.tx, scope)
}

func (t *sqlTx) SaveConcessions(ctx context.Context, recs []model.ConcessionRecord) error {
	return t.s.allocs.CreateConcessionsBulkTx(ctx, t.tx, recs)
}

func (t *sqlTx) SaveAllocation(ctx context.Context, rec *model.AllocationRecord) error {
	return t.s.allocs.CreateTx(ctx, t.tx, rec)
}

func (t *sqlTx) MarkSeatAllocated(ctx context.Context, applicantID uint64) error {
	return t.s.allocs.MarkSeatAllocatedTx(ctx, t.tx, applicantID)
}
