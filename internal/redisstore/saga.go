package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/admission-seat-allocation/internal/allocation"
	"github.com/iliyamo/admission-seat-allocation/internal/model"
)

const compensationTimeout = 5 * time.Second

// compensation undoes one step of a saga.
type compensation struct {
	name string
	fn   func(ctx context.Context) error
}

// sagaTx is the allocation.Tx of the Redis store.  Seat reservations,
// counter values and the applicant claim take effect immediately and are
// journaled; records are buffered and written on commit.
type sagaTx struct {
	s       *Store
	journal []compensation

	applicantID uint64
	concessions []model.ConcessionRecord
	record      *model.AllocationRecord
	markStatus  bool
}

var _ allocation.Tx = (*sagaTx)(nil)

// WithinTx runs fn as a saga.  When fn or the final commit fails every
// journaled step is compensated in reverse order.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx allocation.Tx) error) error {
	tx := &sagaTx{s: s}
	if err := fn(ctx, tx); err != nil {
		tx.compensate(ctx)
		return err
	}
	if err := tx.commit(ctx); err != nil {
		tx.compensate(ctx)
		return err
	}
	return nil
}

func (t *sagaTx) push(name string, fn func(ctx context.Context) error) {
	t.journal = append(t.journal, compensation{name: name, fn: fn})
}

// compensate runs the journal backwards on a context that survives the
// caller's cancellation.
func (t *sagaTx) compensate(parent context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), compensationTimeout)
	defer cancel()
	for i := len(t.journal) - 1; i >= 0; i-- {
		c := t.journal[i]
		if err := c.fn(ctx); err != nil {
			t.s.log.Error("saga compensation failed", zap.String("step", c.name), zap.Error(err))
		}
	}
	t.journal = nil
}

func (t *sagaTx) ClaimApplicant(ctx context.Context, applicantID uint64) error {
	token := uuid.NewString()
	keys := []string{t.s.claimKey(applicantID), t.s.statusKey(applicantID)}
	n, err := claimScript.Run(ctx, t.s.rdb, keys, token, t.s.claimTTL.Milliseconds()).Int()
	if err != nil {
		return err
	}
	switch n {
	case -1:
		return allocation.ErrAlreadyAllocated
	case -2:
		return allocation.ErrConflict
	}
	t.applicantID = applicantID
	t.push("unclaim applicant", func(ctx context.Context) error {
		return unclaimScript.Run(ctx, t.s.rdb, []string{t.s.claimKey(applicantID)}, token).Err()
	})
	return nil
}

func (t *sagaTx) TryReserve(ctx context.Context, branchID uint64, sub allocation.Subcategory) (int, error) {
	remaining, err := t.s.TryReserve(ctx, branchID, sub)
	if err != nil {
		return 0, err
	}
	t.push("release seat", func(ctx context.Context) error {
		return t.s.release(ctx, branchID, sub)
	})
	return remaining, nil
}

func (t *sagaTx) Availability(ctx context.Context, branchID uint64, sub allocation.Subcategory) (allocation.Availability, error) {
	return t.s.Availability(ctx, branchID, sub)
}

func (t *sagaTx) Next(ctx context.Context, scope allocation.Scope) (allocation.Sequence, error) {
	seq, err := t.s.Next(ctx, scope)
	if err != nil {
		return allocation.Sequence{}, err
	}
	t.push("void "+scope.Key(), func(ctx context.Context) error {
		return t.s.void(ctx, scope, seq.Value)
	})
	return seq, nil
}

func (t *sagaTx) SaveConcessions(_ context.Context, recs []model.ConcessionRecord) error {
	t.concessions = append(t.concessions, recs...)
	return nil
}

func (t *sagaTx) SaveAllocation(ctx context.Context, rec *model.AllocationRecord) error {
	if t.record != nil {
		return allocation.ErrAlreadyAllocated
	}
	exists, err := t.s.rdb.Exists(ctx, t.s.allocationKey(rec.ApplicantID)).Result()
	if err != nil {
		return err
	}
	if exists > 0 {
		return allocation.ErrAlreadyAllocated
	}
	id, err := t.s.rdb.Incr(ctx, t.s.key("allocation", "id")).Result()
	if err != nil {
		return err
	}
	rec.ID = uint64(id)
	t.record = rec
	return nil
}

func (t *sagaTx) MarkSeatAllocated(_ context.Context, applicantID uint64) error {
	if t.applicantID != applicantID {
		return fmt.Errorf("applicant %d was not claimed in this unit of work", applicantID)
	}
	t.markStatus = true
	return nil
}

// commit writes the allocation, its concessions and the status flag in a
// single MULTI/EXEC so readers see all of them or none.
func (t *sagaTx) commit(ctx context.Context) error {
	if t.record == nil && len(t.concessions) == 0 && !t.markStatus {
		return nil
	}
	var recJSON []byte
	if t.record != nil {
		b, err := json.Marshal(t.record)
		if err != nil {
			return fmt.Errorf("encode allocation: %w", err)
		}
		recJSON = b
	}
	concJSON := make([]interface{}, 0, len(t.concessions))
	for _, c := range t.concessions {
		b, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode concession: %w", err)
		}
		concJSON = append(concJSON, b)
	}
	_, err := t.s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if recJSON != nil {
			pipe.Set(ctx, t.s.allocationKey(t.record.ApplicantID), recJSON, 0)
		}
		if len(concJSON) > 0 {
			pipe.RPush(ctx, t.s.concessionsKey(t.concessions[0].ApplicantID), concJSON...)
		}
		if t.markStatus {
			pipe.HSet(ctx, t.s.statusKey(t.applicantID), "seat_allocation", 1)
			pipe.Persist(ctx, t.s.claimKey(t.applicantID))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit allocation for applicant %s: %w", strconv.FormatUint(t.applicantID, 10), err)
	}
	return nil
}
