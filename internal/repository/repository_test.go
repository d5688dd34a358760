package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/admission-seat-allocation/internal/allocation"
	"github.com/iliyamo/admission-seat-allocation/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func beginTx(t *testing.T, db *sql.DB, mock sqlmock.Sqlmock) *sql.Tx {
	t.Helper()
	mock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)
	return tx
}

func TestMapDBError(t *testing.T) {
	assert.Nil(t, mapDBError(nil))
	assert.ErrorIs(t, mapDBError(sql.ErrNoRows), allocation.ErrNotFound)
	assert.ErrorIs(t, mapDBError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"}), allocation.ErrConflict)
	assert.ErrorIs(t, mapDBError(&mysql.MySQLError{Number: 1205, Message: "Lock wait timeout"}), allocation.ErrConflict)

	other := errors.New("connection reset")
	assert.Same(t, other, mapDBError(other))

	assert.True(t, isDuplicate(&mysql.MySQLError{Number: 1062}))
	assert.False(t, isDuplicate(other))
}

func TestTryReserveTx(t *testing.T) {
	ctx := context.Background()
	update := q("UPDATE seat_pool_slots SET utilized = utilized + 1")

	t.Run("reserved", func(t *testing.T) {
		db, mock := newMock(t)
		tx := beginTx(t, db, mock)
		mock.ExpectExec(update).WithArgs(uint64(7), 6).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(q("SELECT released, utilized FROM seat_pool_slots")).
			WithArgs(uint64(7), 6).
			WillReturnRows(sqlmock.NewRows([]string{"released", "utilized"}).AddRow(10, 4))

		remaining, err := NewSeatPoolRepo(db).TryReserveTx(ctx, tx, 7, allocation.SubcategoryB)
		require.NoError(t, err)
		assert.Equal(t, 6, remaining)
	})

	t.Run("full", func(t *testing.T) {
		db, mock := newMock(t)
		tx := beginTx(t, db, mock)
		mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(q("SELECT 1 FROM seat_pool_slots")).
			WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		_, err := NewSeatPoolRepo(db).TryReserveTx(ctx, tx, 7, allocation.SubcategoryA10)
		assert.ErrorIs(t, err, allocation.ErrNoSeats)
	})

	t.Run("missing slot", func(t *testing.T) {
		db, mock := newMock(t)
		tx := beginTx(t, db, mock)
		mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(q("SELECT 1 FROM seat_pool_slots")).
			WillReturnRows(sqlmock.NewRows([]string{"1"}))

		_, err := NewSeatPoolRepo(db).TryReserveTx(ctx, tx, 99, allocation.SubcategoryA10)
		assert.ErrorIs(t, err, allocation.ErrNotFound)
	})

	t.Run("deadlock", func(t *testing.T) {
		db, mock := newMock(t)
		tx := beginTx(t, db, mock)
		mock.ExpectExec(update).WillReturnError(&mysql.MySQLError{Number: 1213})

		_, err := NewSeatPoolRepo(db).TryReserveTx(ctx, tx, 7, allocation.SubcategoryB)
		assert.ErrorIs(t, err, allocation.ErrConflict)
	})
}

func TestGetPool(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("SELECT sub_category, released, utilized FROM seat_pool_slots")).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"sub_category", "released", "utilized"}).
			AddRow(1, 5, 1).
			AddRow(6, 40, 39))

	pool, err := NewSeatPoolRepo(db).GetPool(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, model.SeatSlot{Subcategory: 1, Released: 5, Utilized: 1}, pool.Slots[0])
	assert.Equal(t, model.SeatSlot{Subcategory: 3}, pool.Slots[2])
	assert.Equal(t, 1, pool.Slots[5].Remaining())

	mock.ExpectQuery(q("SELECT sub_category")).
		WillReturnRows(sqlmock.NewRows([]string{"sub_category", "released", "utilized"}))
	_, err = NewSeatPoolRepo(db).GetPool(context.Background(), 8)
	assert.ErrorIs(t, err, allocation.ErrNotFound)
}

func TestNextTx(t *testing.T) {
	ctx := context.Background()
	scope := allocation.EnrollmentScope(7)
	update := q("UPDATE sequence_counters")
	meta := q("SELECT prefix, width FROM sequence_counters")

	t.Run("issued", func(t *testing.T) {
		db, mock := newMock(t)
		tx := beginTx(t, db, mock)
		mock.ExpectExec(update).WithArgs(scope.Key()).WillReturnResult(sqlmock.NewResult(42, 1))
		mock.ExpectQuery(meta).WithArgs(scope.Key()).
			WillReturnRows(sqlmock.NewRows([]string{"prefix", "width"}).AddRow("VU", 4))

		seq, err := NewSequenceRepo(db).NextTx(ctx, tx, scope)
		require.NoError(t, err)
		assert.Equal(t, allocation.Sequence{Value: 42, Prefix: "VU", Width: 4}, seq)
	})

	t.Run("exhausted", func(t *testing.T) {
		db, mock := newMock(t)
		tx := beginTx(t, db, mock)
		mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(meta).
			WillReturnRows(sqlmock.NewRows([]string{"prefix", "width"}).AddRow("VU", 4))

		_, err := NewSequenceRepo(db).NextTx(ctx, tx, scope)
		assert.ErrorIs(t, err, allocation.ErrSequenceExhausted)
	})

	t.Run("missing", func(t *testing.T) {
		db, mock := newMock(t)
		tx := beginTx(t, db, mock)
		mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(meta).WillReturnRows(sqlmock.NewRows([]string{"prefix", "width"}))

		_, err := NewSequenceRepo(db).NextTx(ctx, tx, scope)
		assert.ErrorIs(t, err, allocation.ErrNotFound)
	})
}

func TestLockStatusTx(t *testing.T) {
	ctx := context.Background()
	sel := q("SELECT seat_allocation FROM admission_status WHERE applicant_id = ? FOR UPDATE")
	cases := []struct {
		name string
		rows *sqlmock.Rows
		want error
	}{
		{"pending", sqlmock.NewRows([]string{"seat_allocation"}).AddRow(0), nil},
		{"allocated", sqlmock.NewRows([]string{"seat_allocation"}).AddRow(1), allocation.ErrAlreadyAllocated},
		{"no status row", sqlmock.NewRows([]string{"seat_allocation"}), allocation.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMock(t)
			tx := beginTx(t, db, mock)
			mock.ExpectQuery(sel).WithArgs(uint64(42)).WillReturnRows(tc.rows)

			err := NewAllocationRepo(db).LockStatusTx(ctx, tx, 42)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestMarkSeatAllocatedTx(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	tx := beginTx(t, db, mock)
	upd := q("UPDATE admission_status SET seat_allocation = 1")
	mock.ExpectExec(upd).WithArgs(uint64(42)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(upd).WithArgs(uint64(42)).WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewAllocationRepo(db)
	require.NoError(t, repo.MarkSeatAllocatedTx(ctx, tx, 42))
	assert.ErrorIs(t, repo.MarkSeatAllocatedTx(ctx, tx, 42), allocation.ErrAlreadyAllocated)
}

func TestCreateConcessionsBulkTx(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	tx := beginTx(t, db, mock)
	repo := NewAllocationRepo(db)

	require.NoError(t, repo.CreateConcessionsBulkTx(ctx, tx, nil))

	mock.ExpectExec(q("INSERT INTO concession_records (applicant_id, concession_sub_id, source, percentage, batch_id) VALUES (?, ?, ?, ?, ?),(?, ?, ?, ?, ?)")).
		WithArgs(
			uint64(42), uint64(501), model.ConcessionSourceMerit, "25", "CB000001",
			uint64(42), uint64(2), model.ConcessionSourceExtra, "10", "CB000001",
		).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.CreateConcessionsBulkTx(ctx, tx, []model.ConcessionRecord{
		{ApplicantID: 42, SubID: 501, Source: model.ConcessionSourceMerit, Percentage: decimal.NewFromInt(25), BatchID: "CB000001"},
		{ApplicantID: 42, SubID: 2, Source: model.ConcessionSourceExtra, Percentage: decimal.NewFromInt(10), BatchID: "CB000001"},
	})
	assert.NoError(t, err)
}

func TestCreateTx(t *testing.T) {
	ctx := context.Background()
	insert := q("INSERT INTO allocations")
	rec := func() *model.AllocationRecord {
		return &model.AllocationRecord{
			ApplicantID:  42,
			ProgramID:    1,
			BranchID:     7,
			Category:     "B",
			Subcategory:  6,
			EnrollmentID: "VU2024CSE-0001",
			PayableFee:   decimal.RequireFromString("85000.00"),
			CreatedAt:    time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		}
	}

	t.Run("inserted", func(t *testing.T) {
		db, mock := newMock(t)
		tx := beginTx(t, db, mock)
		mock.ExpectExec(insert).WillReturnResult(sqlmock.NewResult(77, 1))

		r := rec()
		require.NoError(t, NewAllocationRepo(db).CreateTx(ctx, tx, r))
		assert.Equal(t, uint64(77), r.ID)
	})

	t.Run("duplicate applicant", func(t *testing.T) {
		db, mock := newMock(t)
		tx := beginTx(t, db, mock)
		mock.ExpectExec(insert).WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '42' for key 'uq_allocations_applicant'"})

		err := NewAllocationRepo(db).CreateTx(ctx, tx, rec())
		assert.ErrorIs(t, err, allocation.ErrAlreadyAllocated)
	})
}

func TestGetByApplicant(t *testing.T) {
	db, mock := newMock(t)
	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	cols := []string{
		"id", "applicant_id", "program_id", "branch_id", "campus_id", "category", "sub_category",
		"enrollment_id", "concession_batch_id", "fee_category_id", "fee_id",
		"total_concession_pct", "admission_fee", "tuition_fee", "concession_amount", "payable_fee",
		"allocated_by", "created_at",
	}
	mock.ExpectQuery(q("FROM allocations WHERE applicant_id = ?")).
		WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			77, 42, 1, 7, 3, "B", 6,
			"VU2024CSE-0001", "CB000001", 11, 21,
			"15.00", "0.00", "100000.00", "15000.00", "85000.00",
			9, at,
		))

	rec, err := NewAllocationRepo(db).GetByApplicant(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, uint64(77), rec.ID)
	assert.Equal(t, "VU2024CSE-0001", rec.EnrollmentID)
	assert.True(t, rec.PayableFee.Equal(decimal.NewFromInt(85000)))
	assert.True(t, rec.TotalConcessionPct.Equal(decimal.NewFromInt(15)))
	assert.Equal(t, at, rec.CreatedAt)

	mock.ExpectQuery(q("FROM allocations")).WillReturnRows(sqlmock.NewRows(cols))
	_, err = NewAllocationRepo(db).GetByApplicant(context.Background(), 43)
	assert.ErrorIs(t, err, allocation.ErrNotFound)
}

func TestStoreWithinTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q("FOR UPDATE")).WillReturnRows(sqlmock.NewRows([]string{"seat_allocation"}).AddRow(0))
		mock.ExpectCommit()

		err := NewStore(db).WithinTx(ctx, func(ctx context.Context, tx allocation.Tx) error {
			return tx.ClaimApplicant(ctx, 42)
		})
		assert.NoError(t, err)
	})

	t.Run("rolls back on failure", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(q("UPDATE seat_pool_slots")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(q("SELECT released, utilized")).
			WillReturnRows(sqlmock.NewRows([]string{"released", "utilized"}).AddRow(3, 1))
		mock.ExpectRollback()

		boom := errors.New("fee schedule missing")
		err := NewStore(db).WithinTx(ctx, func(ctx context.Context, tx allocation.Tx) error {
			if _, err := tx.TryReserve(ctx, 7, allocation.SubcategoryB); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("commit deadlock is a conflict", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(&mysql.MySQLError{Number: 1213})

		err := NewStore(db).WithinTx(ctx, func(context.Context, allocation.Tx) error { return nil })
		assert.ErrorIs(t, err, allocation.ErrConflict)
	})
}

func TestApplicantWithChoices(t *testing.T) {
	db, mock := newMock(t)
	created := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(q("FROM applicants WHERE id = ?")).
		WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "program_id", "campus_id", "admission_year", "exam_id", "marks", "verified", "created_at"}).
			AddRow(42, 1, 3, 2024, 5, 91.5, true, created))
	mock.ExpectQuery(q("FROM applicant_branch_choices")).
		WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"branch_id"}).AddRow(7).AddRow(9))

	a, err := NewReferenceRepo(db).Applicant(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, []uint64{7, 9}, a.BranchChoices)
	require.NotNil(t, a.ExamID)
	assert.Equal(t, uint64(5), *a.ExamID)
	require.NotNil(t, a.Marks)
	assert.InDelta(t, 91.5, *a.Marks, 1e-9)
	assert.True(t, a.Verified)
	assert.True(t, a.HasChoice(9))
}

func TestApplicantWithoutExam(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("FROM applicants")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "program_id", "campus_id", "admission_year", "exam_id", "marks", "verified", "created_at"}).
			AddRow(43, 1, 3, 2024, nil, nil, false, time.Now()))
	mock.ExpectQuery(q("FROM applicant_branch_choices")).
		WillReturnRows(sqlmock.NewRows([]string{"branch_id"}))

	a, err := NewReferenceRepo(db).Applicant(context.Background(), 43)
	require.NoError(t, err)
	assert.Nil(t, a.ExamID)
	assert.Nil(t, a.Marks)
	assert.Empty(t, a.BranchChoices)
}

func TestFeeLineItemsEmptyIsNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("FROM fee_line_items")).
		WithArgs(uint64(21)).
		WillReturnRows(sqlmock.NewRows([]string{"fee_id", "subgroup", "fee_year", "amount"}))

	_, err := NewReferenceRepo(db).FeeLineItems(context.Background(), 21)
	assert.ErrorIs(t, err, allocation.ErrNotFound)
}

func TestListForWarmup(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("FROM seat_pool_slots ORDER BY branch_id")).
		WillReturnRows(sqlmock.NewRows([]string{"branch_id", "sub_category", "released", "utilized"}).
			AddRow(7, 1, 2, 0).
			AddRow(7, 6, 30, 4).
			AddRow(9, 6, 10, 10))
	mock.ExpectQuery(q("FROM sequence_counters ORDER BY scope_key")).
		WillReturnRows(sqlmock.NewRows([]string{"scope_key", "prefix", "width", "current_value", "max_value"}).
			AddRow("concession_id:year=2024", "CB", 6, 12, nil).
			AddRow("enrollment_id:branch=7", "VU", 4, 3, 500))

	repo := NewReferenceRepo(db)
	pools, err := repo.ListSeatPools(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 2)
	assert.Equal(t, uint64(7), pools[0].BranchID)
	assert.Equal(t, 26, pools[0].Slots[5].Remaining())
	assert.Equal(t, 0, pools[1].Slots[5].Remaining())

	counters, err := repo.ListSequenceCounters(context.Background())
	require.NoError(t, err)
	require.Len(t, counters, 2)
	assert.Zero(t, counters[0].MaxValue)
	assert.Equal(t, int64(500), counters[1].MaxValue)
}
