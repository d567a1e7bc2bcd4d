package httphandler

import (
	"log/slog"
	"net/http"

	"github.com/niksmo/club-stock/internal/core/port"
)

// GET v1/stock/{id} (200 OK, 204 No content, 503 while the table recovers)

type StockHandler struct {
	reader port.StockSnapshotReader
}

func RegisterStock(mux *http.ServeMux, reader port.StockSnapshotReader) {
	h := StockHandler{reader}
	mux.HandleFunc("GET /v1/stock/{id}", h.GetSnapshot)
}

func (h StockHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	const op = "StockHandler.GetSnapshot"
	log := slog.With("op", op)

	id, err := productID(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	snapshot, ok, err := h.reader.ReadSnapshot(id)
	if err != nil {
		log.Error("failed to read snapshot", "productID", id, "err", err)
		writeDetail(
			w, http.StatusServiceUnavailable,
			http.StatusText(http.StatusServiceUnavailable),
		)
		return
	}

	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, StockSnapshotResponse{
		ProductID: snapshot.ProductID,
		Reason:    string(snapshot.Reason),
		Sizes:     snapshot.Sizes,
	})
}
