package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/admission-seat-allocation/internal/model"
)

// Stage is a step of the allocation state machine.
type Stage string

const (
	StageRequested          Stage = "Requested"
	StageValidated          Stage = "Validated"
	StageConcessionComputed Stage = "ConcessionComputed"
	StageSeatReserved       Stage = "SeatReserved"
	StageFeeResolved        Stage = "FeeResolved"
	StageIdsGenerated       Stage = "IdsGenerated"
	StagePersisted          Stage = "Persisted"
	StageStatusUpdated      Stage = "StatusUpdated"
	StageComplete           Stage = "Complete"
	StageFailed             Stage = "Failed"
)

// Request asks for a seat in BranchID for an applicant.  ExtraSelections
// maps concession sub-ids to whether the officer selected them.
type Request struct {
	ApplicantID     uint64
	BranchID        uint64
	ProgramID       uint64
	Category        string
	ExtraSelections map[uint64]bool
	AllocatedBy     uint64
}

// Result describes a completed allocation.
type Result struct {
	EnrollmentID       string          `json:"enrollment_id"`
	ConcessionBatchID  string          `json:"concession_batch_id"`
	TotalConcessionPct decimal.Decimal `json:"total_concession_pct"`
	AdmissionFee       decimal.Decimal `json:"admission_fee"`
	TuitionFee         decimal.Decimal `json:"tuition_fee"`
	ConcessionAmount   decimal.Decimal `json:"concession_amount"`
	PayableFee         decimal.Decimal `json:"payable_fee"`
	SeatSubcategory    int             `json:"seat_subcategory"`
	RemainingSeats     int             `json:"remaining_seats"`
}

// Options configures a Service.
type Options struct {
	// MaxConcessionPct caps the total concession; zero means 100.
	MaxConcessionPct decimal.Decimal
	// EnrollmentPrefix is used when an enrollment counter carries no
	// prefix of its own; empty means DefaultEnrollmentPrefix.
	EnrollmentPrefix string
	Publisher        EventPublisher
	Logger           *zap.Logger
	Now              func() time.Time
}

// Service is the allocation orchestrator.
type Service struct {
	ref       ReferenceData
	store     Store
	fees      *FeeResolver
	publisher EventPublisher
	log       *zap.Logger
	now       func() time.Time
	maxPct    decimal.Decimal
	prefix    string
}

// NewService wires the orchestrator.  ref and store must be non-nil.
func NewService(ref ReferenceData, store Store, opts Options) *Service {
	if ref == nil || store == nil {
		panic("nil dependency passed to allocation.NewService")
	}
	s := &Service{
		ref:       ref,
		store:     store,
		fees:      NewFeeResolver(ref),
		publisher: opts.Publisher,
		log:       opts.Logger,
		now:       opts.Now,
		maxPct:    opts.MaxConcessionPct,
		prefix:    opts.EnrollmentPrefix,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if !s.maxPct.IsPositive() {
		s.maxPct = hundred
	}
	return s
}

// run tracks the stage reached by one allocation.
type run struct {
	stage Stage
	log   *zap.Logger
}

func (r *run) advance(st Stage) {
	r.stage = st
	r.log.Debug("allocation stage", zap.String("stage", string(st)))
}

// AllocateSeat validates the request, computes the concession, reserves
// a seat and issues ids, fees and records in a single unit of work.
// Either everything is persisted or nothing is.
func (s *Service) AllocateSeat(ctx context.Context, req Request) (*Result, error) {
	r := &run{stage: StageRequested, log: s.log.With(
		zap.Uint64("applicant_id", req.ApplicantID),
		zap.Uint64("branch_id", req.BranchID),
		zap.String("category", req.Category),
	)}
	res, err := s.allocate(ctx, req, r)
	if err != nil {
		r.log.Warn("allocation failed",
			zap.String("stage", string(r.stage)),
			zap.String("kind", string(KindOf(err))),
			zap.Error(err))
		r.stage = StageFailed
		return nil, err
	}
	r.advance(StageComplete)
	r.log.Info("seat allocated",
		zap.String("enrollment_id", res.EnrollmentID),
		zap.Int("sub_category", res.SeatSubcategory),
		zap.Int("remaining", res.RemainingSeats))
	return res, nil
}

func (s *Service) allocate(ctx context.Context, req Request, r *run) (*Result, error) {
	app, branch, err := s.validate(ctx, req)
	if err != nil {
		return nil, err
	}
	r.advance(StageValidated)

	merit, extra, total, err := s.concession(ctx, req, app)
	if err != nil {
		return nil, err
	}
	r.advance(StageConcessionComputed)

	sub, err := ResolveSubcategory(req.Category, total)
	if err != nil {
		return nil, err
	}

	var (
		rec         *model.AllocationRecord
		concessions []model.ConcessionRecord
		remaining   int
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.ClaimApplicant(ctx, app.ID); err != nil {
			return classify(err, "applicant")
		}
		left, err := tx.TryReserve(ctx, branch.ID, sub)
		if err != nil {
			return classify(err, "seat pool "+sub.String())
		}
		remaining = left
		r.advance(StageSeatReserved)

		enrollSeq, err := tx.Next(ctx, EnrollmentScope(branch.ID))
		if err != nil {
			return classify(err, "enrollment counter")
		}
		if enrollSeq.Prefix == "" {
			enrollSeq.Prefix = s.prefix
		}
		enrollmentID := FormatEnrollmentID(enrollSeq, app.AdmissionYear, branch.Code)

		sched, err := s.fees.Resolve(ctx, req.ProgramID, req.Category, branch.ID)
		if err != nil {
			return err
		}
		fees := ComputeFees(sched, total)
		r.advance(StageFeeResolved)

		batchSeq, err := tx.Next(ctx, ConcessionBatchScope(app.AdmissionYear))
		if err != nil {
			return classify(err, "concession batch counter")
		}
		batchID := FormatConcessionBatchID(batchSeq)
		r.advance(StageIdsGenerated)

		concessions = concessionRecords(app.ID, batchID, merit, extra)
		if err := tx.SaveConcessions(ctx, concessions); err != nil {
			return classify(err, "concession records")
		}
		rec = &model.AllocationRecord{
			ApplicantID:        app.ID,
			ProgramID:          req.ProgramID,
			BranchID:           branch.ID,
			CampusID:           app.CampusID,
			Category:           req.Category,
			Subcategory:        int(sub),
			EnrollmentID:       enrollmentID,
			ConcessionBatchID:  batchID,
			FeeCategoryID:      sched.FeeCategoryID,
			FeeID:              sched.FeeID,
			TotalConcessionPct: total,
			AdmissionFee:       fees.AdmissionFee,
			TuitionFee:         fees.TuitionFee,
			ConcessionAmount:   fees.ConcessionAmount,
			PayableFee:         fees.PayableFee,
			AllocatedBy:        req.AllocatedBy,
			CreatedAt:          s.now(),
		}
		if err := tx.SaveAllocation(ctx, rec); err != nil {
			return classify(err, "applicant")
		}
		r.advance(StagePersisted)

		if err := tx.MarkSeatAllocated(ctx, app.ID); err != nil {
			return classify(err, "admission status")
		}
		r.advance(StageStatusUpdated)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		if perr := s.publisher.AllocationCompleted(ctx, rec, concessions); perr != nil {
			r.log.Error("publish allocation event", zap.Error(perr))
		}
	}

	return &Result{
		EnrollmentID:       rec.EnrollmentID,
		ConcessionBatchID:  rec.ConcessionBatchID,
		TotalConcessionPct: total,
		AdmissionFee:       rec.AdmissionFee,
		TuitionFee:         rec.TuitionFee,
		ConcessionAmount:   rec.ConcessionAmount,
		PayableFee:         rec.PayableFee,
		SeatSubcategory:    rec.Subcategory,
		RemainingSeats:     remaining,
	}, nil
}

func (s *Service) validate(ctx context.Context, req Request) (*model.Applicant, *model.ProgramBranch, error) {
	if !ValidCategory(req.Category) {
		return nil, nil, newError(KindValidation, "unknown category %q", req.Category)
	}
	app, err := s.ref.Applicant(ctx, req.ApplicantID)
	if err != nil {
		return nil, nil, validationLookup(err, "applicant %d", req.ApplicantID)
	}
	if !app.Verified {
		return nil, nil, newError(KindValidation, "applicant %d is not verified", app.ID)
	}
	if app.ProgramID != req.ProgramID {
		return nil, nil, newError(KindValidation, "applicant %d did not apply to program %d", app.ID, req.ProgramID)
	}
	if _, err := s.ref.Program(ctx, req.ProgramID); err != nil {
		return nil, nil, validationLookup(err, "program %d", req.ProgramID)
	}
	branch, err := s.ref.Branch(ctx, req.BranchID)
	if err != nil {
		return nil, nil, validationLookup(err, "branch %d", req.BranchID)
	}
	if branch.ProgramID != req.ProgramID {
		return nil, nil, newError(KindValidation, "branch %d does not belong to program %d", branch.ID, req.ProgramID)
	}
	if !app.HasChoice(branch.ID) {
		return nil, nil, newError(KindValidation, "branch %d is not among applicant %d choices", branch.ID, app.ID)
	}
	return app, branch, nil
}

// validationLookup turns a missing reference row into a ValidationError;
// any other failure is returned wrapped.
func validationLookup(err error, format string, args ...any) error {
	if errors.Is(err, ErrNotFound) {
		e := newError(KindValidation, format+" not found", args...)
		e.Err = err
		return e
	}
	return fmt.Errorf("load "+format+": %w", append(args, err)...)
}

func (s *Service) concession(ctx context.Context, req Request, app *model.Applicant) (MeritResult, ExtraResult, decimal.Decimal, error) {
	merit := MeritResult{Percentage: decimal.Zero}
	if app.ExamID != nil && app.Marks != nil {
		bands, err := s.ref.ScholarshipBands(ctx, *app.ExamID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return MeritResult{}, ExtraResult{}, decimal.Zero, classify(err, "scholarship bands")
		}
		merit = MeritConcession(app.ExamID, app.Marks, bands)
	}
	extra := ExtraResult{Percentage: decimal.Zero}
	if len(req.ExtraSelections) > 0 {
		catalog, err := s.ref.ConcessionTypes(ctx, req.ProgramID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return MeritResult{}, ExtraResult{}, decimal.Zero, classify(err, "concession catalog")
		}
		extra = AggregateExtra(req.ExtraSelections, catalog)
	}
	total := merit.Percentage.Add(extra.Percentage)
	if total.GreaterThan(s.maxPct) {
		return MeritResult{}, ExtraResult{}, decimal.Zero,
			newError(KindInvalidConcessionTier, "total concession %s%% exceeds %s%%", total.String(), s.maxPct.String())
	}
	return merit, extra, total, nil
}

// Allocation returns the persisted allocation of an applicant.
func (s *Service) Allocation(ctx context.Context, applicantID uint64) (*model.AllocationRecord, error) {
	rec, err := s.store.Allocation(ctx, applicantID)
	if err != nil {
		return nil, classify(err, "allocation")
	}
	return rec, nil
}

// SeatPool returns every slot of a branch's seat pool.
func (s *Service) SeatPool(ctx context.Context, branchID uint64) (*model.SeatPool, error) {
	pool, err := s.store.SeatPool(ctx, branchID)
	if err != nil {
		return nil, classify(err, "seat pool")
	}
	return pool, nil
}

// Availability returns one slot of a branch's seat pool.
func (s *Service) Availability(ctx context.Context, branchID uint64, sub Subcategory) (Availability, error) {
	if !sub.Valid() {
		return Availability{}, newError(KindValidation, "invalid sub-category %d", int(sub))
	}
	av, err := s.store.Availability(ctx, branchID, sub)
	if err != nil {
		return Availability{}, classify(err, "seat pool")
	}
	return av, nil
}

// ConcessionTypes returns a program's extra concession catalog.
func (s *Service) ConcessionTypes(ctx context.Context, programID uint64) ([]model.ConcessionType, error) {
	if _, err := s.ref.Program(ctx, programID); err != nil {
		return nil, validationLookup(err, "program %d", programID)
	}
	items, err := s.ref.ConcessionTypes(ctx, programID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, classify(err, "concession catalog")
	}
	return items, nil
}
