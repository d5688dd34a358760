package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/admission-seat-allocation/internal/allocation"
)

// SequenceRepo issues values from the sequence_counters table.
type SequenceRepo struct {
	db *sql.DB
}

// NewSequenceRepo returns a SequenceRepo bound to db.
func NewSequenceRepo(db *sql.DB) *SequenceRepo { return &SequenceRepo{db: db} }

// NextTx increments a counter and returns the new value in one statement.
// LAST_INSERT_ID(expr) makes MySQL report the incremented value in the OK
// packet, so no second read of current_value is needed.  The bound is
// max_value when set, otherwise the largest number that fits in width
// digits.
func (r *SequenceRepo) NextTx(ctx context.Context, tx *sql.Tx, scope allocation.Scope) (allocation.Sequence, error) {
	const upd = `UPDATE sequence_counters
                 SET current_value = LAST_INSERT_ID(current_value + 1)
                 WHERE scope_key = ?
                   AND ((max_value IS NOT NULL AND current_value < max_value)
                     OR (max_value IS NULL AND (width = 0 OR current_value < POW(10, width) - 1)))`
	key := scope.Key()
	res, err := tx.ExecContext(ctx, upd, key)
	if err != nil {
		return allocation.Sequence{}, mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return allocation.Sequence{}, err
	}

	const sel = `SELECT prefix, width FROM sequence_counters WHERE scope_key = ?`
	var seq allocation.Sequence
	if err := tx.QueryRowContext(ctx, sel, key).Scan(&seq.Prefix, &seq.Width); err != nil {
		return allocation.Sequence{}, mapDBError(err)
	}
	if n == 0 {
		return allocation.Sequence{}, allocation.ErrSequenceExhausted
	}
	v, err := res.LastInsertId()
	if err != nil {
		return allocation.Sequence{}, err
	}
	seq.Value = v
	return seq, nil
}
