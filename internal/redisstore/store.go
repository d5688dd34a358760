// Package redisstore implements the allocation store on Redis.  Seat
// reservation and counter increments are Lua scripts, so they stay atomic
// across any number of service instances.  Redis has no multi-key
// rollback, so a unit of work is a saga: each mutation registers a
// compensation that runs in reverse order when the allocation fails, and
// the final records are written together in one MULTI/EXEC.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/admission-seat-allocation/internal/allocation"
	"github.com/iliyamo/admission-seat-allocation/internal/model"
)

// Options configures a Store.
type Options struct {
	Prefix   string        // key namespace, default "adm"
	ClaimTTL time.Duration // lifetime of an in-flight applicant claim
	Logger   *zap.Logger
}

// Store is a Redis-backed allocation.Store.
type Store struct {
	rdb      *redis.Client
	prefix   string
	claimTTL time.Duration
	log      *zap.Logger
}

var _ allocation.Store = (*Store)(nil)

// New returns a Store using rdb.
func New(rdb *redis.Client, opts Options) *Store {
	if rdb == nil {
		panic("nil redis client passed to redisstore.New")
	}
	s := &Store{rdb: rdb, prefix: opts.Prefix, claimTTL: opts.ClaimTTL, log: opts.Logger}
	if s.prefix == "" {
		s.prefix = "adm"
	}
	if s.claimTTL <= 0 {
		s.claimTTL = 2 * time.Minute
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

func (s *Store) key(parts ...string) string {
	return s.prefix + ":" + strings.Join(parts, ":")
}

func (s *Store) poolKey(branchID uint64) string {
	return s.key("seatpool", strconv.FormatUint(branchID, 10))
}

func (s *Store) counterKey(scope allocation.Scope) string { return s.key("seq", scope.Key()) }

func (s *Store) voidedKey(scope allocation.Scope) string {
	return s.key("seq", scope.Key(), "voided")
}

func (s *Store) claimKey(applicantID uint64) string {
	return s.key("allocation", "claim", strconv.FormatUint(applicantID, 10))
}

func (s *Store) statusKey(applicantID uint64) string {
	return s.key("admission_status", strconv.FormatUint(applicantID, 10))
}

func (s *Store) allocationKey(applicantID uint64) string {
	return s.key("allocation", strconv.FormatUint(applicantID, 10))
}

func (s *Store) concessionsKey(applicantID uint64) string {
	return s.key("concessions", strconv.FormatUint(applicantID, 10))
}

// Warm loads seat pools and counters into Redis.  Released counts and
// counter settings are overwritten; utilized counts and current counter
// values are only set when absent so live state survives a restart.
func (s *Store) Warm(ctx context.Context, pools []model.SeatPool, counters []model.SequenceCounter) error {
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, p := range pools {
			key := s.poolKey(p.BranchID)
			for _, slot := range p.Slots {
				if slot.Subcategory == 0 {
					continue
				}
				n := strconv.Itoa(slot.Subcategory)
				pipe.HSet(ctx, key, "released:"+n, slot.Released)
				pipe.HSetNX(ctx, key, "utilized:"+n, slot.Utilized)
			}
		}
		for _, c := range counters {
			key := s.key("seq", c.ScopeKey)
			pipe.HSet(ctx, key,
				"prefix", c.Prefix,
				"width", c.Width,
				"max", allocation.UpperBound(c.MaxValue, c.Width),
			)
			pipe.HSetNX(ctx, key, "value", c.CurrentValue)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("warm redis store: %w", err)
	}
	return nil
}

// Availability reads one slot of a branch pool.
func (s *Store) Availability(ctx context.Context, branchID uint64, sub allocation.Subcategory) (allocation.Availability, error) {
	n := strconv.Itoa(int(sub))
	vals, err := s.rdb.HMGet(ctx, s.poolKey(branchID), "released:"+n, "utilized:"+n).Result()
	if err != nil {
		return allocation.Availability{}, err
	}
	if vals[0] == nil {
		return allocation.Availability{}, allocation.ErrNotFound
	}
	rel, used := asInt(vals[0]), asInt(vals[1])
	return allocation.Availability{Released: rel, Utilized: used, Remaining: model.SeatSlot{Released: rel, Utilized: used}.Remaining()}, nil
}

// SeatPool reads all six slots of a branch pool.
func (s *Store) SeatPool(ctx context.Context, branchID uint64) (*model.SeatPool, error) {
	h, err := s.rdb.HGetAll(ctx, s.poolKey(branchID)).Result()
	if err != nil {
		return nil, err
	}
	if len(h) == 0 {
		return nil, allocation.ErrNotFound
	}
	pool := &model.SeatPool{BranchID: branchID}
	for i := range pool.Slots {
		n := strconv.Itoa(i + 1)
		pool.Slots[i] = model.SeatSlot{
			Subcategory: i + 1,
			Released:    asInt(h["released:"+n]),
			Utilized:    asInt(h["utilized:"+n]),
		}
	}
	return pool, nil
}

// Allocation returns the committed allocation of an applicant.
func (s *Store) Allocation(ctx context.Context, applicantID uint64) (*model.AllocationRecord, error) {
	raw, err := s.rdb.Get(ctx, s.allocationKey(applicantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, allocation.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec model.AllocationRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode allocation %d: %w", applicantID, err)
	}
	return &rec, nil
}

// Concessions returns the concession records committed for an applicant.
func (s *Store) Concessions(ctx context.Context, applicantID uint64) ([]model.ConcessionRecord, error) {
	raws, err := s.rdb.LRange(ctx, s.concessionsKey(applicantID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	recs := make([]model.ConcessionRecord, 0, len(raws))
	for _, raw := range raws {
		var rec model.ConcessionRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode concession: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Voided returns counter values that were issued and later handed back
// by a failed allocation without being reusable.
func (s *Store) Voided(ctx context.Context, scope allocation.Scope) ([]int64, error) {
	members, err := s.rdb.SMembers(ctx, s.voidedKey(scope)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(members))
	for _, m := range members {
		v, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// TryReserve reserves one seat outside a unit of work.  No compensation
// is registered; callers own the reservation.
func (s *Store) TryReserve(ctx context.Context, branchID uint64, sub allocation.Subcategory) (int, error) {
	n, err := reserveScript.Run(ctx, s.rdb, []string{s.poolKey(branchID)}, int(sub)).Int()
	if err != nil {
		return 0, err
	}
	switch n {
	case -1:
		return 0, allocation.ErrNotFound
	case -2:
		return 0, allocation.ErrNoSeats
	}
	return n, nil
}

func (s *Store) release(ctx context.Context, branchID uint64, sub allocation.Subcategory) error {
	return releaseScript.Run(ctx, s.rdb, []string{s.poolKey(branchID)}, int(sub)).Err()
}

// Next issues the next value of a counter outside a unit of work.
func (s *Store) Next(ctx context.Context, scope allocation.Scope) (allocation.Sequence, error) {
	vals, err := nextScript.Run(ctx, s.rdb, []string{s.counterKey(scope)}).Slice()
	if err != nil {
		return allocation.Sequence{}, err
	}
	if len(vals) == 0 {
		return allocation.Sequence{}, fmt.Errorf("counter %s: empty script reply", scope.Key())
	}
	switch asInt64(vals[0]) {
	case -1:
		return allocation.Sequence{}, allocation.ErrNotFound
	case -2:
		return allocation.Sequence{}, allocation.ErrSequenceExhausted
	}
	if len(vals) < 3 {
		return allocation.Sequence{}, fmt.Errorf("counter %s: short script reply", scope.Key())
	}
	prefix, _ := vals[1].(string)
	return allocation.Sequence{Value: asInt64(vals[0]), Prefix: prefix, Width: int(asInt64(vals[2]))}, nil
}

func (s *Store) void(ctx context.Context, scope allocation.Scope, value int64) error {
	return voidScript.Run(ctx, s.rdb, []string{s.counterKey(scope), s.voidedKey(scope)}, value).Err()
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func asInt(v interface{}) int { return int(asInt64(v)) }
