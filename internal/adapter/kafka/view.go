package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/lovoo/goka"
	"github.com/niksmo/club-stock/internal/core/domain"
	"github.com/niksmo/club-stock/internal/core/port"
	"github.com/niksmo/club-stock/pkg/schema"
)

var _ port.StockSnapshotReader = (*StockSnapshotView)(nil)

var ErrViewNotReady = errors.New("view is not recovered yet")

// A StockSnapshotView serves the group table
// of [StockSnapshotProcessor] for lookups.
type StockSnapshotView struct {
	gv viewTable
}

type viewTable interface {
	Run(ctx context.Context) error
	Get(key string) (any, error)
	Recovered() bool
}

func NewStockSnapshotView(
	seedBrokers []string, group string, stockChangedSerde Serde,
) (StockSnapshotView, error) {
	const op = "NewStockSnapshotView"

	gv, err := goka.NewView(
		seedBrokers,
		goka.GroupTable(goka.Group(group)),
		newStockChangedCodec(stockChangedSerde),
	)
	if err != nil {
		return StockSnapshotView{}, opErr(err, op)
	}

	return StockSnapshotView{gv}, nil
}

func (v StockSnapshotView) Run(ctx context.Context) {
	const op = "StockSnapshotView.Run"
	log := slog.With("op", op)

	err := v.gv.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("unexpected fail on run", "err", err)
	}
}

// ReadSnapshot returns the last published state of the product.
// It reports false for unknown and deleted products.
func (v StockSnapshotView) ReadSnapshot(
	productID int64,
) (domain.StockChange, bool, error) {
	const op = "StockSnapshotView.ReadSnapshot"

	if !v.gv.Recovered() {
		return domain.StockChange{}, false, opErr(ErrViewNotReady, op)
	}

	value, err := v.gv.Get(strconv.FormatInt(productID, 10))
	if err != nil {
		return domain.StockChange{}, false, opErr(err, op)
	}

	if value == nil {
		return domain.StockChange{}, false, nil
	}

	s, ok := value.(schema.StockChangedV1)
	if !ok {
		err := fmt.Errorf("%w: %T", ErrInvalidValueType, value)
		return domain.StockChange{}, false, opErr(err, op)
	}
	return schemaV1ToStockChange(s), true, nil
}
