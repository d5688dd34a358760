package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/admission-seat-allocation/internal/allocation"
	"github.com/iliyamo/admission-seat-allocation/internal/model"
)

// AllocationRepo persists allocation records, concession records and the
// admission status flag.  allocations.applicant_id is UNIQUE.
type AllocationRepo struct {
	db *sql.DB
}

// NewAllocationRepo returns an AllocationRepo bound to db.
func NewAllocationRepo(db *sql.DB) *AllocationRepo { return &AllocationRepo{db: db} }

// LockStatusTx locks the applicant's admission_status row for the rest of
// the transaction.  A concurrent allocation of the same applicant waits
// here and then observes seat_allocation = 1.
func (r *AllocationRepo) LockStatusTx(ctx context.Context, tx *sql.Tx, applicantID uint64) error {
	const q = `SELECT seat_allocation FROM admission_status WHERE applicant_id = ? FOR UPDATE`
	var flag uint8
	if err := tx.QueryRowContext(ctx, q, applicantID).Scan(&flag); err != nil {
		return mapDBError(err)
	}
	if flag != 0 {
		return allocation.ErrAlreadyAllocated
	}
	return nil
}

// MarkSeatAllocatedTx flips seat_allocation from 0 to 1.  It fails with
// ErrAlreadyAllocated if the flag was already set.
func (r *AllocationRepo) MarkSeatAllocatedTx(ctx context.Context, tx *sql.Tx, applicantID uint64) error {
	const q = `UPDATE admission_status SET seat_allocation = 1, updated_at = UTC_TIMESTAMP()
               WHERE applicant_id = ? AND seat_allocation = 0`
	res, err := tx.ExecContext(ctx, q, applicantID)
	if err != nil {
		return mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return allocation.ErrAlreadyAllocated
	}
	return nil
}

// CreateConcessionsBulkTx inserts concession records in one statement.
// Passing an empty slice has no effect.
func (r *AllocationRepo) CreateConcessionsBulkTx(ctx context.Context, tx *sql.Tx, recs []model.ConcessionRecord) error {
	if len(recs) == 0 {
		return nil
	}
	query := `INSERT INTO concession_records (applicant_id, concession_sub_id, source, percentage, batch_id) VALUES `
	args := make([]interface{}, 0, len(recs)*5)
	for i, c := range recs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, c.ApplicantID, c.SubID, c.Source, c.Percentage, c.BatchID)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return mapDBError(err)
}

// CreateTx inserts an allocation record and sets its generated ID.  A
// second record for the same applicant fails with ErrAlreadyAllocated.
func (r *AllocationRepo) CreateTx(ctx context.Context, tx *sql.Tx, rec *model.AllocationRecord) error {
	const q = `INSERT INTO allocations
               (applicant_id, program_id, branch_id, campus_id, category, sub_category,
                enrollment_id, concession_batch_id, fee_category_id, fee_id,
                total_concession_pct, admission_fee, tuition_fee, concession_amount, payable_fee,
                allocated_by, created_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		rec.ApplicantID, rec.ProgramID, rec.BranchID, rec.CampusID, rec.Category, rec.Subcategory,
		rec.EnrollmentID, rec.ConcessionBatchID, rec.FeeCategoryID, rec.FeeID,
		rec.TotalConcessionPct, rec.AdmissionFee, rec.TuitionFee, rec.ConcessionAmount, rec.PayableFee,
		rec.AllocatedBy, rec.CreatedAt,
	)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("%w: %v", allocation.ErrAlreadyAllocated, err)
		}
		return mapDBError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = uint64(id)
	return nil
}

// GetByApplicant returns the allocation of an applicant or ErrNotFound.
func (r *AllocationRepo) GetByApplicant(ctx context.Context, applicantID uint64) (*model.AllocationRecord, error) {
	const q = `SELECT id, applicant_id, program_id, branch_id, campus_id, category, sub_category,
                      enrollment_id, concession_batch_id, fee_category_id, fee_id,
                      total_concession_pct, admission_fee, tuition_fee, concession_amount, payable_fee,
                      allocated_by, created_at
               FROM allocations WHERE applicant_id = ?`
	var rec model.AllocationRecord
	err := r.db.QueryRowContext(ctx, q, applicantID).Scan(
		&rec.ID, &rec.ApplicantID, &rec.ProgramID, &rec.BranchID, &rec.CampusID, &rec.Category, &rec.Subcategory,
		&rec.EnrollmentID, &rec.ConcessionBatchID, &rec.FeeCategoryID, &rec.FeeID,
		&rec.TotalConcessionPct, &rec.AdmissionFee, &rec.TuitionFee, &rec.ConcessionAmount, &rec.PayableFee,
		&rec.AllocatedBy, &rec.CreatedAt,
	)
	if err != nil {
		return nil, mapDBError(err)
	}
	return &rec, nil
}
