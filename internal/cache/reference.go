// Package cache provides a Redis read-through cache in front of the
// reference data the allocation engine consults.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/admission-seat-allocation/internal/allocation"
	"github.com/iliyamo/admission-seat-allocation/internal/model"
)

// Reference wraps an allocation.ReferenceData and caches master data in
// Redis as JSON.  Applicants are always read from the source because
// their verification and choices change while admissions are open.
// Misses (ErrNotFound) are not cached.  A Redis failure degrades to a
// direct read.
type Reference struct {
	src    allocation.ReferenceData
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	log    *zap.Logger
}

var _ allocation.ReferenceData = (*Reference)(nil)

// NewReference returns src unchanged when rdb is nil, otherwise a caching
// decorator.  ttl <= 0 defaults to five minutes.
func NewReference(src allocation.ReferenceData, rdb *redis.Client, ttl time.Duration, log *zap.Logger) allocation.ReferenceData {
	if rdb == nil {
		return src
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reference{src: src, rdb: rdb, ttl: ttl, prefix: "refdata", log: log}
}

func readThrough[T any](ctx context.Context, r *Reference, key string, load func() (T, error)) (T, error) {
	key = r.prefix + ":" + key
	if bs, err := r.rdb.Get(ctx, key).Bytes(); err == nil {
		var v T
		if err := json.Unmarshal(bs, &v); err == nil {
			return v, nil
		}
		r.log.Warn("refdata cache: drop undecodable entry", zap.String("key", key))
	} else if !errors.Is(err, redis.Nil) {
		r.log.Warn("refdata cache: get failed", zap.String("key", key), zap.Error(err))
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	if bs, err := json.Marshal(v); err == nil {
		if err := r.rdb.Set(ctx, key, bs, r.ttl).Err(); err != nil {
			r.log.Warn("refdata cache: set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return v, nil
}

// Invalidate removes every cached entry.  Called after master data is
// edited.
func (r *Reference) Invalidate(ctx context.Context) error {
	iter := r.rdb.Scan(ctx, 0, r.prefix+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.rdb.Del(ctx, keys...).Err()
}

func (r *Reference) Applicant(ctx context.Context, id uint64) (*model.Applicant, error) {
	return r.src.Applicant(ctx, id)
}

func (r *Reference) Program(ctx context.Context, id uint64) (*model.Program, error) {
	return readThrough(ctx, r, fmt.Sprintf("program:%d", id), func() (*model.Program, error) {
		return r.src.Program(ctx, id)
	})
}

func (r *Reference) Branch(ctx context.Context, id uint64) (*model.ProgramBranch, error) {
	return readThrough(ctx, r, fmt.Sprintf("branch:%d", id), func() (*model.ProgramBranch, error) {
		return r.src.Branch(ctx, id)
	})
}

func (r *Reference) ScholarshipBands(ctx context.Context, examID uint64) ([]model.ScholarshipBand, error) {
	return readThrough(ctx, r, fmt.Sprintf("bands:%d", examID), func() ([]model.ScholarshipBand, error) {
		return r.src.ScholarshipBands(ctx, examID)
	})
}

func (r *Reference) ConcessionTypes(ctx context.Context, programID uint64) ([]model.ConcessionType, error) {
	return readThrough(ctx, r, fmt.Sprintf("concession_types:%d", programID), func() ([]model.ConcessionType, error) {
		return r.src.ConcessionTypes(ctx, programID)
	})
}

func (r *Reference) FeeCategoryID(ctx context.Context, programID uint64, category string) (uint64, error) {
	return readThrough(ctx, r, fmt.Sprintf("fee_category:%d:%s", programID, category), func() (uint64, error) {
		return r.src.FeeCategoryID(ctx, programID, category)
	})
}

func (r *Reference) FeeID(ctx context.Context, feeCategoryID, branchID uint64) (uint64, error) {
	return readThrough(ctx, r, fmt.Sprintf("fee:%d:%d", feeCategoryID, branchID), func() (uint64, error) {
		return r.src.FeeID(ctx, feeCategoryID, branchID)
	})
}

func (r *Reference) FeeLineItems(ctx context.Context, feeID uint64) ([]model.FeeLineItem, error) {
	return readThrough(ctx, r, fmt.Sprintf("fee_items:%d", feeID), func() ([]model.FeeLineItem, error) {
		return r.src.FeeLineItems(ctx, feeID)
	})
}
