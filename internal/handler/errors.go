package handler

import (
    "errors"
    "net/http"

    "github.com/go-playground/validator/v10"
    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/admission-seat-allocation/internal/allocation"
)

// statusOf maps an allocation error kind to an HTTP status.
func statusOf(kind allocation.Kind) int {
    switch kind {
    case allocation.KindValidation:
        return http.StatusBadRequest
    case allocation.KindLookupNotFound:
        return http.StatusNotFound
    case allocation.KindInvalidConcessionTier:
        return http.StatusUnprocessableEntity
    case allocation.KindNoSeatsAvailable,
        allocation.KindAlreadyAllocated,
        allocation.KindSequenceExhausted,
        allocation.KindConcurrencyConflict:
        return http.StatusConflict
    }
    return http.StatusInternalServerError
}

// writeError renders err as {"error": kind, "message": text}.  Errors
// without a kind are logged and hidden behind a generic 500.
func writeError(c echo.Context, log *zap.Logger, err error) error {
    var verrs validator.ValidationErrors
    if errors.As(err, &verrs) {
        return c.JSON(http.StatusBadRequest, echo.Map{
            "error":   string(allocation.KindValidation),
            "message": "invalid request body",
            "fields":  fieldErrors(verrs),
        })
    }
    var ae *allocation.Error
    if errors.As(err, &ae) {
        return c.JSON(statusOf(ae.Kind), echo.Map{"error": string(ae.Kind), "message": ae.Message})
    }
    log.Error("request failed",
        zap.String("method", c.Request().Method),
        zap.String("path", c.Request().URL.Path),
        zap.Error(err))
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "InternalError", "message": "internal error"})
}

func badRequest(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"error": string(allocation.KindValidation), "message": msg})
}
