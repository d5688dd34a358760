package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/admission-seat-allocation/internal/allocation"
	"github.com/iliyamo/admission-seat-allocation/internal/model"
)

// ReferenceRepo reads master data: applicants, programs, branches,
// scholarship bands and the concession and fee catalogs.  It never
// writes, so it may be bound to a read replica.
type ReferenceRepo struct {
	db *sql.DB
}

var _ allocation.ReferenceData = (*ReferenceRepo)(nil)

// NewReferenceRepo returns a ReferenceRepo bound to db.
func NewReferenceRepo(db *sql.DB) *ReferenceRepo { return &ReferenceRepo{db: db} }

// Applicant loads an applicant together with its ordered branch choices.
func (r *ReferenceRepo) Applicant(ctx context.Context, id uint64) (*model.Applicant, error) {
	const q = `SELECT id, program_id, campus_id, admission_year, exam_id, marks, verified, created_at
               FROM applicants WHERE id = ?`
	var (
		a      model.Applicant
		examID sql.NullInt64
		marks  sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&a.ID, &a.ProgramID, &a.CampusID, &a.AdmissionYear, &examID, &marks, &a.Verified, &a.CreatedAt,
	)
	if err != nil {
		return nil, mapDBError(err)
	}
	if examID.Valid {
		v := uint64(examID.Int64)
		a.ExamID = &v
	}
	if marks.Valid {
		v := marks.Float64
		a.Marks = &v
	}

	const choiceQ = `SELECT branch_id FROM applicant_branch_choices WHERE applicant_id = ? ORDER BY preference`
	rows, err := r.db.QueryContext(ctx, choiceQ, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var bid uint64
		if err := rows.Scan(&bid); err != nil {
			return nil, err
		}
		a.BranchChoices = append(a.BranchChoices, bid)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &a, nil
}

// Program loads a program by id.
func (r *ReferenceRepo) Program(ctx context.Context, id uint64) (*model.Program, error) {
	const q = `SELECT id, code, name FROM programs WHERE id = ?`
	var p model.Program
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&p.ID, &p.Code, &p.Name); err != nil {
		return nil, mapDBError(err)
	}
	return &p, nil
}

// Branch loads a program branch by id.
func (r *ReferenceRepo) Branch(ctx context.Context, id uint64) (*model.ProgramBranch, error) {
	const q = `SELECT id, program_id, branch_code, name FROM program_branches WHERE id = ?`
	var b model.ProgramBranch
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&b.ID, &b.ProgramID, &b.Code, &b.Name); err != nil {
		return nil, mapDBError(err)
	}
	return &b, nil
}

// ScholarshipBands lists the bands of an exam ordered by start mark.
func (r *ReferenceRepo) ScholarshipBands(ctx context.Context, examID uint64) ([]model.ScholarshipBand, error) {
	const q = `SELECT id, exam_id, start_mark, end_mark, percentage, scholarship_id
               FROM scholarship_bands WHERE exam_id = ? ORDER BY start_mark, id`
	rows, err := r.db.QueryContext(ctx, q, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var bands []model.ScholarshipBand
	for rows.Next() {
		var b model.ScholarshipBand
		if err := rows.Scan(&b.ID, &b.ExamID, &b.StartMark, &b.EndMark, &b.Percentage, &b.ScholarshipID); err != nil {
			return nil, err
		}
		bands = append(bands, b)
	}
	return bands, rows.Err()
}

// ConcessionTypes lists the extra concession catalog of a program.
func (r *ReferenceRepo) ConcessionTypes(ctx context.Context, programID uint64) ([]model.ConcessionType, error) {
	const q = `SELECT program_id, sub_id, description, percentage
               FROM concession_types WHERE program_id = ? ORDER BY sub_id`
	rows, err := r.db.QueryContext(ctx, q, programID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.ConcessionType
	for rows.Next() {
		var ct model.ConcessionType
		if err := rows.Scan(&ct.ProgramID, &ct.SubID, &ct.Description, &ct.Percentage); err != nil {
			return nil, err
		}
		items = append(items, ct)
	}
	return items, rows.Err()
}

// FeeCategoryID resolves the fee category of a program and admission
// category.
func (r *ReferenceRepo) FeeCategoryID(ctx context.Context, programID uint64, category string) (uint64, error) {
	const q = `SELECT id FROM fee_categories WHERE program_id = ? AND category = ?`
	var id uint64
	if err := r.db.QueryRowContext(ctx, q, programID, category).Scan(&id); err != nil {
		return 0, mapDBError(err)
	}
	return id, nil
}

// FeeID resolves the fee schedule of a fee category for a branch.
func (r *ReferenceRepo) FeeID(ctx context.Context, feeCategoryID, branchID uint64) (uint64, error) {
	const q = `SELECT id FROM fees WHERE fee_category_id = ? AND branch_id = ?`
	var id uint64
	if err := r.db.QueryRowContext(ctx, q, feeCategoryID, branchID).Scan(&id); err != nil {
		return 0, mapDBError(err)
	}
	return id, nil
}

// FeeLineItems lists every line item of a fee schedule.  An empty
// schedule is reported as ErrNotFound.
func (r *ReferenceRepo) FeeLineItems(ctx context.Context, feeID uint64) ([]model.FeeLineItem, error) {
	const q = `SELECT fee_id, subgroup, fee_year, amount
               FROM fee_line_items WHERE fee_id = ? ORDER BY fee_year, subgroup`
	rows, err := r.db.QueryContext(ctx, q, feeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.FeeLineItem
	for rows.Next() {
		var it model.FeeLineItem
		if err := rows.Scan(&it.FeeID, &it.Subgroup, &it.FeeYear, &it.Amount); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, allocation.ErrNotFound
	}
	return items, nil
}

// ListSeatPools returns every branch seat pool.  Used to warm the Redis
// store.
func (r *ReferenceRepo) ListSeatPools(ctx context.Context) ([]model.SeatPool, error) {
	const q = `SELECT branch_id, sub_category, released, utilized
               FROM seat_pool_slots ORDER BY branch_id, sub_category`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pools []model.SeatPool
	for rows.Next() {
		var (
			branchID uint64
			slot     model.SeatSlot
		)
		if err := rows.Scan(&branchID, &slot.Subcategory, &slot.Released, &slot.Utilized); err != nil {
			return nil, err
		}
		if slot.Subcategory < 1 || slot.Subcategory > model.SubcategoryCount {
			continue
		}
		if len(pools) == 0 || pools[len(pools)-1].BranchID != branchID {
			pools = append(pools, model.SeatPool{BranchID: branchID})
		}
		pools[len(pools)-1].Slots[slot.Subcategory-1] = slot
	}
	return pools, rows.Err()
}

// ListSequenceCounters returns every sequence counter.  Used to warm the
// Redis store.
func (r *ReferenceRepo) ListSequenceCounters(ctx context.Context) ([]model.SequenceCounter, error) {
	const q = `SELECT scope_key, prefix, width, current_value, max_value FROM sequence_counters ORDER BY scope_key`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.SequenceCounter
	for rows.Next() {
		var (
			c      model.SequenceCounter
			maxVal sql.NullInt64
		)
		if err := rows.Scan(&c.ScopeKey, &c.Prefix, &c.Width, &c.CurrentValue, &maxVal); err != nil {
			return nil, err
		}
		if maxVal.Valid {
			c.MaxValue = maxVal.Int64
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
