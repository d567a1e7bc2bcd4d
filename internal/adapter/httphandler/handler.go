package httphandler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/niksmo/club-stock/internal/core/domain"
	"github.com/niksmo/club-stock/internal/core/port"
)

// POST   v1/products JSON {name, price, category, sizes} (201 Created, 400)
// GET    v1/products/{id}/sizes (200 OK, 404)
// PUT    v1/products/{id}/sizes JSON raw size record (200 OK, 404)
// PUT    v1/products/{id}/sizes/{size} JSON {quantity, location} (200 OK, 400, 404)
// POST   v1/products/{id}/move-inventory JSON {size, quantity, from_location, to_location} (200 OK, 400, 404)
// DELETE v1/products/{id} (204 No content, 404)

type InventoryHandler struct {
	manager port.InventoryManager
}

func RegisterInventory(mux *http.ServeMux, manager port.InventoryManager) {
	h := InventoryHandler{manager}
	mux.HandleFunc("POST /v1/products", h.PostProduct)
	mux.HandleFunc("GET /v1/products/{id}/sizes", h.GetSizes)
	mux.HandleFunc("PUT /v1/products/{id}/sizes", h.PutSizes)
	mux.HandleFunc("PUT /v1/products/{id}/sizes/{size}", h.PutQuantity)
	mux.HandleFunc("POST /v1/products/{id}/move-inventory", h.PostMove)
	mux.HandleFunc("DELETE /v1/products/{id}", h.DeleteProduct)
}

func (h InventoryHandler) PostProduct(w http.ResponseWriter, r *http.Request) {
	const op = "InventoryHandler.PostProduct"
	log := slog.With("op", op)

	var req CreateProductRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON data")
		log.Warn("failed to parse JSON", "err", err)
		return
	}

	if req.Name == "" {
		writeDetail(w, http.StatusBadRequest, "name is required")
		return
	}

	id, err := h.manager.CreateProduct(r.Context(), domain.Product{
		Name:     req.Name,
		Price:    req.Price,
		Category: req.Category,
		Sizes:    domain.Normalize(req.Sizes),
	})
	if err != nil {
		writeError(w, log, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateProductResponse{ID: id})
	log.Info("product created", "productID", id)
}

func (h InventoryHandler) GetSizes(w http.ResponseWriter, r *http.Request) {
	const op = "InventoryHandler.GetSizes"
	log := slog.With("op", op)

	id, err := productID(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	sizes, err := h.manager.ReadSizes(r.Context(), id)
	if err != nil {
		writeError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, sizes)
}

func (h InventoryHandler) PutSizes(w http.ResponseWriter, r *http.Request) {
	const op = "InventoryHandler.PutSizes"
	log := slog.With("op", op)

	id, err := productID(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	var raw domain.RawSizes
	if err := decodeBody(r, &raw); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON data")
		log.Warn("failed to parse JSON", "err", err)
		return
	}

	sizes, err := h.manager.ReplaceSizes(r.Context(), id, raw)
	if err != nil {
		writeError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, sizes)
}

func (h InventoryHandler) PutQuantity(w http.ResponseWriter, r *http.Request) {
	const op = "InventoryHandler.PutQuantity"
	log := slog.With("op", op)

	id, err := productID(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	var req SetQuantityRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON data")
		log.Warn("failed to parse JSON", "err", err)
		return
	}

	location := domain.LocationOnline
	if req.Location != "" {
		location, err = domain.ParseLocation(req.Location)
		if err != nil {
			writeError(w, log, err)
			return
		}
	}

	size := r.PathValue("size")
	sizes, err := h.manager.SetQuantity(
		r.Context(), id, size, req.Quantity, location,
	)
	if err != nil {
		writeError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, sizes)
}

func (h InventoryHandler) PostMove(w http.ResponseWriter, r *http.Request) {
	const op = "InventoryHandler.PostMove"
	log := slog.With("op", op)

	id, err := productID(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	var req MoveInventoryRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON data")
		log.Warn("failed to parse JSON", "err", err)
		return
	}

	t, err := h.toTransfer(req)
	if err != nil {
		writeError(w, log, err)
		return
	}

	sizes, err := h.manager.Move(r.Context(), id, t)
	if err != nil {
		writeError(w, log, err)
		return
	}

	writeJSON(w, http.StatusOK, MoveInventoryResponse{
		Message: fmt.Sprintf(
			"Moved %d of size %s from %s to %s",
			t.Amount, t.Size, t.From, t.To,
		),
		Sizes: sizes,
	})
}

func (h InventoryHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	const op = "InventoryHandler.DeleteProduct"
	log := slog.With("op", op)

	id, err := productID(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.manager.DeleteProduct(r.Context(), id); err != nil {
		writeError(w, log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	log.Info("product deleted", "productID", id)
}

func (InventoryHandler) toTransfer(
	req MoveInventoryRequest,
) (domain.Transfer, error) {
	from, err := domain.ParseLocation(req.FromLocation)
	if err != nil {
		return domain.Transfer{}, err
	}
	to, err := domain.ParseLocation(req.ToLocation)
	if err != nil {
		return domain.Transfer{}, err
	}
	if from == to {
		return domain.Transfer{}, domain.ErrInvalidTransfer
	}
	if req.Quantity <= 0 {
		return domain.Transfer{}, domain.ErrInvalidAmount
	}
	return domain.Transfer{
		Size:   req.Size,
		Amount: req.Quantity,
		From:   from,
		To:     to,
	}, nil
}
