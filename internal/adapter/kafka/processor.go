package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/lovoo/goka"
	"github.com/niksmo/club-stock/internal/core/domain"
	"github.com/niksmo/club-stock/internal/core/port"
	"github.com/niksmo/club-stock/pkg/schema"
)

var _ port.StockSnapshotProcessor = (*StockSnapshotProcessor)(nil)

// A processor is used for composition.
//
// Running and closing the underlying [goka.Processor]
type processor struct {
	opPrefix string
	gp       *goka.Processor
}

func (p *processor) run(
	ctx context.Context, stopFn context.CancelFunc, wg *sync.WaitGroup,
) {
	const op = "run"
	log := slog.With("op", makeOp(p.opPrefix, op))

	defer wg.Done()

	go p.runProc(ctx, stopFn)

	log.Info("preparing...")
	p.waitForReady(ctx)
	log.Info("running")
}

func (p *processor) runProc(ctx context.Context, stopFn context.CancelFunc) {
	const op = "runProc"
	log := slog.With("op", makeOp(p.opPrefix, op))

	defer stopFn()

	err := p.gp.Run(ctx)
	if err != nil {
		log.Error("stopped", "err", err)
		return
	}
	log.Info("stopped")
}

func (p *processor) waitForReady(ctx context.Context) {
	const op = "waitForReady"
	log := slog.With("op", makeOp(p.opPrefix, op))

	err := p.gp.WaitForReadyContext(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Error("fall down while preparing", "err", err)
	}
}

func (p *processor) close() {
	const op = "close"
	log := slog.With("op", makeOp(p.opPrefix, op))

	log.Info("closing processor...")
	p.gp.Stop()
	log.Info("processor is closed")
}

// A stockChangedCodec used for serde [schema.StockChangedV1]
type stockChangedCodec struct {
	serde Serde
}

func newStockChangedCodec(s Serde) stockChangedCodec {
	return stockChangedCodec{s}
}

func (c stockChangedCodec) Encode(v any) ([]byte, error) {
	const op = "stockChangedCodec.Encode"
	if _, ok := v.(schema.StockChangedV1); !ok {
		return nil, opErr(ErrInvalidValueType, op)
	}
	return c.serde.Encode(v)
}

func (c stockChangedCodec) Decode(data []byte) (any, error) {
	const op = "stockChangedCodec.Decode"
	var s schema.StockChangedV1
	err := c.serde.Decode(data, &s)
	if err != nil {
		return nil, opErr(err, op)
	}
	return s, nil
}

// A StockSnapshotProcessor folds stock change events
// from stream topic into group table keyed by product id.
//
// The table keeps the latest sizes of every existing product,
// deleted products are removed from it.
type StockSnapshotProcessor struct {
	opPrefix string
	proc     processor
}

func NewStockSnapshotProc(
	seedBrokers []string,
	inputStream string,
	group string,
	stockChangedSerde Serde,
) (*StockSnapshotProcessor, error) {
	const op = "NewStockSnapshotProc"

	p := StockSnapshotProcessor{opPrefix: "StockSnapshotProcessor"}
	codec := newStockChangedCodec(stockChangedSerde)

	gg := goka.DefineGroup(goka.Group(group),
		goka.Input(goka.Stream(inputStream), codec, p.processFn),
		goka.Persist(codec),
	)

	gp, err := goka.NewProcessor(seedBrokers, gg, withNonlogProcOpt())
	if err != nil {
		return nil, opErr(err, op)
	}

	p.proc = processor{
		opPrefix: p.opPrefix,
		gp:       gp,
	}
	return &p, nil
}

func (p *StockSnapshotProcessor) Run(
	ctx context.Context, stopFn context.CancelFunc, wg *sync.WaitGroup,
) {
	p.proc.run(ctx, stopFn, wg)
}

func (p *StockSnapshotProcessor) Close() {
	p.proc.close()
}

func (p *StockSnapshotProcessor) processFn(ctx goka.Context, msg any) {
	p.fold(ctx, msg)
}

// tableRow is the part of [goka.Context] touching the group table row
// of the processed key.
type tableRow interface {
	Key() string
	SetValue(value any, options ...goka.ContextOption)
	Delete(options ...goka.ContextOption)
}

func (p *StockSnapshotProcessor) fold(row tableRow, msg any) {
	const op = "fold"
	log := slog.With("op", makeOp(p.opPrefix, op), "key", row.Key())

	event, ok := msg.(schema.StockChangedV1)
	if !ok {
		log.Error("unexpected message", "err", ErrInvalidValueType)
		return
	}

	if domain.StockChangeReason(event.Reason) == domain.ReasonDelete {
		row.Delete()
		log.Info("snapshot removed", "productID", event.ProductID)
		return
	}

	row.SetValue(event)
	log.Debug(
		"snapshot updated",
		"productID", event.ProductID,
		"reason", event.Reason,
	)
}
