package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/niksmo/club-stock/internal/core/domain"
	"github.com/niksmo/club-stock/internal/core/port"
)

var _ port.StockReducer = (*Service)(nil)
var _ port.InventoryManager = (*Service)(nil)

const (
	opCreate      = "create"
	opReplace     = "replace"
	opSetQuantity = "set_quantity"
	opMove        = "move"
	opReduce      = "reduce"
	opDelete      = "delete"

	skipNoProduct = "product_not_found"
	skipNoSize    = "size_not_found"
)

// A Service is the inventory ledger backed by persistent storage.
//
// Every mutation of one product runs under an in-process lock for that
// product, storage is expected to guard the row on its own as well.
type Service struct {
	storage   port.ProductsStorage
	publisher port.StockChangePublisher
	metrics   port.LedgerMetrics
	locks     *productLocks
}

// New returns the [Service]. Publisher and metrics are optional.
func New(
	storage port.ProductsStorage,
	publisher port.StockChangePublisher,
	metrics port.LedgerMetrics,
) Service {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return Service{
		storage:   storage,
		publisher: publisher,
		metrics:   metrics,
		locks:     newProductLocks(),
	}
}

func (s Service) CreateProduct(
	ctx context.Context, p domain.Product,
) (id int64, err error) {
	const op = "Service.CreateProduct"
	defer s.observe(opCreate, time.Now(), &err)

	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	p.Sizes = domain.Normalize(p.Sizes.Raw())

	id, err = s.storage.CreateProduct(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, domain.StockChange{
		ProductID: id, Reason: domain.ReasonCreate, Sizes: p.Sizes,
	})
	return id, nil
}

func (s Service) ReadSizes(
	ctx context.Context, productID int64,
) (domain.SizeRecord, error) {
	const op = "Service.ReadSizes"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	raw, err := s.storage.LoadSizes(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return domain.Normalize(raw), nil
}

// ReplaceSizes overwrites the whole record of a product, as on product edit.
func (s Service) ReplaceSizes(
	ctx context.Context, productID int64, raw domain.RawSizes,
) (domain.SizeRecord, error) {
	const op = "Service.ReplaceSizes"

	r := domain.Normalize(raw)
	updated, err := s.update(
		ctx, productID, opReplace, domain.ReasonReplace,
		func(domain.RawSizes) (domain.SizeRecord, error) {
			return r.Clone(), nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}

func (s Service) SetQuantity(
	ctx context.Context,
	productID int64,
	size string,
	quantity int,
	location domain.Location,
) (domain.SizeRecord, error) {
	const op = "Service.SetQuantity"

	if !location.Valid() {
		err := fmt.Errorf("%w: %q", domain.ErrInvalidLocation, location)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r, err := s.update(
		ctx, productID, opSetQuantity, domain.ReasonSetQuantity,
		func(raw domain.RawSizes) (domain.SizeRecord, error) {
			return domain.SetQuantity(raw, size, quantity, location)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}

// Move transfers stock of one size between locations of a product.
//
// Unlike [domain.Move] it rejects transfers within one location.
func (s Service) Move(
	ctx context.Context, productID int64, t domain.Transfer,
) (domain.SizeRecord, error) {
	const op = "Service.Move"

	if t.From == t.To {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrInvalidTransfer)
	}

	r, err := s.update(
		ctx, productID, opMove, domain.ReasonMove,
		func(raw domain.RawSizes) (domain.SizeRecord, error) {
			return domain.Move(raw, t)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	slog.Info(
		"inventory moved",
		"op", op,
		"productID", productID,
		"size", t.Size,
		"amount", t.Amount,
		"from", t.From,
		"to", t.To,
	)
	return r, nil
}

// ReduceStock consumes stock for every order line in the given order.
//
// Each line is committed on its own. Lines referring to a missing product
// or size are skipped. A storage failure stops the batch, lines before it
// stay committed.
func (s Service) ReduceStock(
	ctx context.Context, cs []domain.Consumption,
) (err error) {
	const op = "Service.ReduceStock"
	log := slog.With("op", op)
	defer s.observe(opReduce, time.Now(), &err)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for i, c := range cs {
		err := s.reduceLine(ctx, c)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrProductNotFound):
			s.metrics.SkippedLine(skipNoProduct)
			log.Warn("line skipped", "line", i, "productID", c.ProductID,
				"reason", skipNoProduct)
		case errors.Is(err, domain.ErrSizeNotFound):
			s.metrics.SkippedLine(skipNoSize)
			log.Warn("line skipped", "line", i, "productID", c.ProductID,
				"size", c.Size, "reason", skipNoSize)
		default:
			return fmt.Errorf("%s: line %d: %w", op, i, err)
		}
	}
	return nil
}

func (s Service) reduceLine(ctx context.Context, c domain.Consumption) error {
	const op = "Service.reduceLine"

	unlock := s.locks.lock(c.ProductID)
	defer unlock()

	var res domain.ConsumptionResult
	r, err := s.storage.UpdateSizes(ctx, c.ProductID,
		func(raw domain.RawSizes) (domain.SizeRecord, error) {
			r, consumed, ok := domain.Consume(raw, c.Size, c.Quantity)
			if !ok {
				return nil, fmt.Errorf("%w: %q", domain.ErrSizeNotFound, c.Size)
			}
			res = consumed
			return r, nil
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.UnitsConsumed(res)
	if res.Dropped != 0 {
		slog.Warn(
			"consumption exceeds stock",
			"op", op,
			"productID", c.ProductID,
			"size", c.Size,
			"dropped", res.Dropped,
		)
	}

	s.publish(ctx, domain.StockChange{
		ProductID: c.ProductID, Reason: domain.ReasonOrder, Sizes: r,
	})
	return nil
}

func (s Service) DeleteProduct(
	ctx context.Context, productID int64,
) (err error) {
	const op = "Service.DeleteProduct"
	defer s.observe(opDelete, time.Now(), &err)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	unlock := s.locks.lock(productID)
	defer unlock()

	if err := s.storage.DeleteProduct(ctx, productID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, domain.StockChange{
		ProductID: productID, Reason: domain.ReasonDelete,
	})
	return nil
}

// update runs fn over the stored record of productID and persists the result.
func (s Service) update(
	ctx context.Context,
	productID int64,
	metricOp string,
	reason domain.StockChangeReason,
	fn port.UpdateSizesFn,
) (r domain.SizeRecord, err error) {
	const op = "Service.update"
	defer s.observe(metricOp, time.Now(), &err)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	unlock := s.locks.lock(productID)
	defer unlock()

	r, err = s.storage.UpdateSizes(ctx, productID, fn)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domain.StockChange{
		ProductID: productID, Reason: reason, Sizes: r,
	})
	return r, nil
}

// publish announces a committed change. Failures are logged only,
// the change itself is already durable.
func (s Service) publish(ctx context.Context, c domain.StockChange) {
	const op = "Service.publish"

	if err := s.publisher.PublishStockChange(ctx, c); err != nil {
		slog.Error(
			"failed to publish stock change",
			"op", op,
			"productID", c.ProductID,
			"reason", c.Reason,
			"err", err,
		)
	}
}

func (s Service) observe(op string, start time.Time, err *error) {
	s.metrics.ObserveOperation(op, *err, time.Since(start))
}

type nopPublisher struct{}

func (nopPublisher) PublishStockChange(context.Context, domain.StockChange) error {
	return nil
}

type nopMetrics struct{}

func (nopMetrics) ObserveOperation(string, error, time.Duration) {}
func (nopMetrics) SkippedLine(string)                           {}
func (nopMetrics) UnitsConsumed(domain.ConsumptionResult)       {}
