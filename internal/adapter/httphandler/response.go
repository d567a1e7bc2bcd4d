package httphandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/niksmo/club-stock/internal/core/domain"
)

var errInvalidProductID = errors.New("invalid product id")

func writeJSON(w http.ResponseWriter, status int, v any) {
	const op = "writeJSON"

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response body", "op", op, "err", err)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}

// writeError responds with the status matching err.
// Ledger rule violations are reported to the caller as is.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case domain.IsRejection(err):
		log.Warn("rejected", "err", err)
		writeDetail(w, http.StatusBadRequest, rejectionDetail(err))
	case errors.Is(err, domain.ErrProductNotFound):
		writeDetail(w, http.StatusNotFound, "Product not found")
	default:
		log.Error("internal error", "err", err)
		writeDetail(
			w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError),
		)
	}
}

func rejectionDetail(err error) string {
	var stockErr *domain.InsufficientStockError
	if errors.As(err, &stockErr) {
		return fmt.Sprintf(
			"Insufficient stock at %s for size %s. Available: %d, requested: %d",
			stockErr.Location, stockErr.Size, stockErr.Available, stockErr.Requested,
		)
	}

	for _, sentinel := range []error{
		domain.ErrInvalidLocation,
		domain.ErrInvalidAmount,
		domain.ErrInvalidTransfer,
		domain.ErrSizeNotFound,
		domain.ErrInsufficientStock,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func productID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidProductID
	}
	return id, nil
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}
