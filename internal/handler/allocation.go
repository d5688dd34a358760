package handler

import (
    "context"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/admission-seat-allocation/internal/allocation"
    "github.com/iliyamo/admission-seat-allocation/internal/middleware"
    "github.com/iliyamo/admission-seat-allocation/internal/model"
)

// AllocationService is the part of allocation.Service the HTTP layer uses.
type AllocationService interface {
    AllocateSeat(ctx context.Context, req allocation.Request) (*allocation.Result, error)
    Allocation(ctx context.Context, applicantID uint64) (*model.AllocationRecord, error)
    SeatPool(ctx context.Context, branchID uint64) (*model.SeatPool, error)
    Availability(ctx context.Context, branchID uint64, sub allocation.Subcategory) (allocation.Availability, error)
    ConcessionTypes(ctx context.Context, programID uint64) ([]model.ConcessionType, error)
}

// AllocationHandler exposes the allocation engine to admission officers.
// All routes sit behind JWTAuth and RequireRole.
type AllocationHandler struct {
    svc AllocationService
    log *zap.Logger
}

// NewAllocationHandler panics when svc is nil.
func NewAllocationHandler(svc AllocationService, log *zap.Logger) *AllocationHandler {
    if svc == nil {
        panic("nil service passed to NewAllocationHandler")
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &AllocationHandler{svc: svc, log: log}
}

// allocateRequest is the body of POST /v1/allocations.  Keys of
// extra_concessions are concession sub-ids.
type allocateRequest struct {
    ApplicantID      uint64          `json:"applicant_id" validate:"required"`
    BranchID         uint64          `json:"branch_id" validate:"required"`
    ProgramID        uint64          `json:"program_id" validate:"required"`
    Category         string          `json:"category" validate:"required,oneof=A B"`
    ExtraConcessions map[string]bool `json:"extra_concessions" validate:"omitempty,dive,keys,numeric,endkeys"`
}

// slotView is one seat pool slot in GET /v1/branches/:id/seats.
type slotView struct {
    Subcategory int `json:"sub_category"`
    Released    int `json:"released"`
    Utilized    int `json:"utilized"`
    Remaining   int `json:"remaining"`
}

// Allocate handles POST /v1/allocations.  201 with the allocation result;
// failures use the error kind mapping in statusOf.
func (h *AllocationHandler) Allocate(c echo.Context) error {
    officerID, ok := middleware.UserID(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body allocateRequest
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    if err := validate.Struct(body); err != nil {
        return writeError(c, h.log, err)
    }
    extras := make(map[uint64]bool, len(body.ExtraConcessions))
    for k, v := range body.ExtraConcessions {
        id, err := strconv.ParseUint(k, 10, 64)
        if err != nil || id == 0 {
            return badRequest(c, "invalid concession id "+strconv.Quote(k))
        }
        extras[id] = v
    }

    res, err := h.svc.AllocateSeat(c.Request().Context(), allocation.Request{
        ApplicantID:     body.ApplicantID,
        BranchID:        body.BranchID,
        ProgramID:       body.ProgramID,
        Category:        body.Category,
        ExtraSelections: extras,
        AllocatedBy:     officerID,
    })
    if err != nil {
        return writeError(c, h.log, err)
    }
    return c.JSON(http.StatusCreated, res)
}

// GetAllocation handles GET /v1/applicants/:id/allocation.
func (h *AllocationHandler) GetAllocation(c echo.Context) error {
    id, ok := pathID(c)
    if !ok {
        return badRequest(c, "invalid applicant id")
    }
    rec, err := h.svc.Allocation(c.Request().Context(), id)
    if err != nil {
        return writeError(c, h.log, err)
    }
    return c.JSON(http.StatusOK, rec)
}

// GetSeats handles GET /v1/branches/:id/seats.  With ?sub_category=N only
// that slot is returned.
func (h *AllocationHandler) GetSeats(c echo.Context) error {
    branchID, ok := pathID(c)
    if !ok {
        return badRequest(c, "invalid branch id")
    }
    ctx := c.Request().Context()

    if raw := c.QueryParam("sub_category"); raw != "" {
        n, err := strconv.Atoi(raw)
        if err != nil {
            return badRequest(c, "invalid sub_category")
        }
        av, err := h.svc.Availability(ctx, branchID, allocation.Subcategory(n))
        if err != nil {
            return writeError(c, h.log, err)
        }
        return c.JSON(http.StatusOK, slotView{Subcategory: n, Released: av.Released, Utilized: av.Utilized, Remaining: av.Remaining})
    }

    pool, err := h.svc.SeatPool(ctx, branchID)
    if err != nil {
        return writeError(c, h.log, err)
    }
    slots := make([]slotView, 0, len(pool.Slots))
    for i, s := range pool.Slots {
        slots = append(slots, slotView{Subcategory: i + 1, Released: s.Released, Utilized: s.Utilized, Remaining: s.Remaining()})
    }
    return c.JSON(http.StatusOK, echo.Map{"branch_id": branchID, "slots": slots})
}

// GetConcessionTypes handles GET /v1/programs/:id/concession-types.
func (h *AllocationHandler) GetConcessionTypes(c echo.Context) error {
    programID, ok := pathID(c)
    if !ok {
        return badRequest(c, "invalid program id")
    }
    items, err := h.svc.ConcessionTypes(c.Request().Context(), programID)
    if err != nil {
        return writeError(c, h.log, err)
    }
    if items == nil {
        items = []model.ConcessionType{}
    }
    return c.JSON(http.StatusOK, items)
}

func pathID(c echo.Context) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    return id, err == nil && id > 0
}
