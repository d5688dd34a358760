package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/admission-seat-allocation/internal/allocation"
	"github.com/iliyamo/admission-seat-allocation/internal/model"
)

// SeatPoolRepo manages the seat_pool_slots table: one row per branch and
// sub-category holding released and utilized counts.  The table carries
// CHECK (utilized <= released) as a last line of defence.
type SeatPoolRepo struct {
	db *sql.DB
}

// NewSeatPoolRepo returns a SeatPoolRepo bound to db.
func NewSeatPoolRepo(db *sql.DB) *SeatPoolRepo { return &SeatPoolRepo{db: db} }

// TryReserveTx reserves one seat with a single conditional UPDATE, so two
// concurrent reservations can never both take the last seat.  It returns
// the seats remaining afterwards, ErrNoSeats when the slot is full and
// ErrNotFound when the branch has no such slot.
func (r *SeatPoolRepo) TryReserveTx(ctx context.Context, tx *sql.Tx, branchID uint64, sub allocation.Subcategory) (int, error) {
	const upd = `UPDATE seat_pool_slots SET utilized = utilized + 1
                 WHERE branch_id = ? AND sub_category = ? AND utilized < released`
	res, err := tx.ExecContext(ctx, upd, branchID, int(sub))
	if err != nil {
		return 0, mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		// distinguish a full slot from a missing one
		const exists = `SELECT 1 FROM seat_pool_slots WHERE branch_id = ? AND sub_category = ?`
		var one int
		if err := tx.QueryRowContext(ctx, exists, branchID, int(sub)).Scan(&one); err != nil {
			return 0, mapDBError(err)
		}
		return 0, allocation.ErrNoSeats
	}
	// the row is locked by our UPDATE until commit, so this read is stable
	av, err := r.availability(ctx, tx, branchID, sub)
	if err != nil {
		return 0, err
	}
	return av.Remaining, nil
}

// AvailabilityTx reads a slot within tx.
func (r *SeatPoolRepo) AvailabilityTx(ctx context.Context, tx *sql.Tx, branchID uint64, sub allocation.Subcategory) (allocation.Availability, error) {
	return r.availability(ctx, tx, branchID, sub)
}

// Availability reads a slot outside any transaction.
func (r *SeatPoolRepo) Availability(ctx context.Context, branchID uint64, sub allocation.Subcategory) (allocation.Availability, error) {
	return r.availability(ctx, r.db, branchID, sub)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *SeatPoolRepo) availability(ctx context.Context, q queryRower, branchID uint64, sub allocation.Subcategory) (allocation.Availability, error) {
	const sel = `SELECT released, utilized FROM seat_pool_slots WHERE branch_id = ? AND sub_category = ?`
	var slot model.SeatSlot
	if err := q.QueryRowContext(ctx, sel, branchID, int(sub)).Scan(&slot.Released, &slot.Utilized); err != nil {
		return allocation.Availability{}, mapDBError(err)
	}
	return allocation.Availability{Released: slot.Released, Utilized: slot.Utilized, Remaining: slot.Remaining()}, nil
}

// GetPool returns all slots of a branch.  ErrNotFound when the branch has
// no pool rows.
func (r *SeatPoolRepo) GetPool(ctx context.Context, branchID uint64) (*model.SeatPool, error) {
	const q = `SELECT sub_category, released, utilized FROM seat_pool_slots
               WHERE branch_id = ? ORDER BY sub_category`
	rows, err := r.db.QueryContext(ctx, q, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	pool := &model.SeatPool{BranchID: branchID}
	for i := range pool.Slots {
		pool.Slots[i].Subcategory = i + 1
	}
	found := 0
	for rows.Next() {
		var slot model.SeatSlot
		if err := rows.Scan(&slot.Subcategory, &slot.Released, &slot.Utilized); err != nil {
			return nil, err
		}
		if slot.Subcategory < 1 || slot.Subcategory > model.SubcategoryCount {
			continue
		}
		pool.Slots[slot.Subcategory-1] = slot
		found++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if found == 0 {
		return nil, allocation.ErrNotFound
	}
	return pool, nil
}
