package httphandler

import (
	"log/slog"
	"net/http"

	"github.com/niksmo/club-stock/internal/core/domain"
	"github.com/niksmo/club-stock/internal/core/port"
)

// POST v1/checkout/stock JSON {items: [{id, selectedSize, quantity}]} (202 Accepted, 400)

type CheckoutHandler struct {
	reducer port.StockReducer
}

func RegisterCheckout(mux *http.ServeMux, reducer port.StockReducer) {
	h := CheckoutHandler{reducer}
	mux.HandleFunc("POST /v1/checkout/stock", h.PostReduceStock)
}

// PostReduceStock takes ordered units out of stock once an order is paid.
func (h CheckoutHandler) PostReduceStock(w http.ResponseWriter, r *http.Request) {
	const op = "CheckoutHandler.PostReduceStock"
	log := slog.With("op", op)

	var req CheckoutRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON data")
		log.Warn("failed to parse JSON", "err", err)
		return
	}

	if len(req.Items) == 0 {
		writeDetail(w, http.StatusBadRequest, "items are required")
		return
	}

	if err := h.reducer.ReduceStock(r.Context(), h.toDomain(req)); err != nil {
		writeError(w, log, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	log.Info("stock reduced", "nItems", len(req.Items))
}

func (CheckoutHandler) toDomain(req CheckoutRequest) []domain.Consumption {
	cs := make([]domain.Consumption, len(req.Items))
	for i, item := range req.Items {
		cs[i] = domain.Consumption{
			ProductID: item.ID,
			Size:      item.SelectedSize,
			Quantity:  item.Quantity,
		}
	}
	return cs
}
