package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/niksmo/club-stock/internal/core/domain"
	"github.com/niksmo/club-stock/internal/core/port"
	"github.com/niksmo/club-stock/pkg/retry"
	"github.com/niksmo/club-stock/pkg/schema"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	slowDownTimeout = 1 * time.Second

	reduceRetryDelay    = 100 * time.Millisecond
	reduceRetryMaxDelay = 10 * time.Second

	appliedOrdersSize = 10_000
)

////////////////////////////////////////////////////////
///////////////           OPTS            //////////////
////////////////////////////////////////////////////////

type ConsumerOpt func(*consumerOpts) error

// ConsumerClientOpt creates a [kgo.Client] joined to group.
// Every record offset is committed manually once the record is applied.
func ConsumerClientOpt(
	seedBrokers []string, topic, group string, extra ...kgo.Opt,
) ConsumerOpt {
	return func(co *consumerOpts) error {
		kopts := []kgo.Opt{
			kgo.SeedBrokers(seedBrokers...),
			kgo.ConsumeTopics(topic),
			kgo.ConsumerGroup(group),
			kgo.DisableAutoCommit(),
		}
		cl, err := kgo.NewClient(append(kopts, extra...)...)
		if err != nil {
			return err
		}
		co.cl = cl
		return nil
	}
}

// ConsumerCustomClientOpt sets an already created client.
func ConsumerCustomClientOpt(cl ConsumerClient) ConsumerOpt {
	return func(co *consumerOpts) error {
		if cl == nil {
			return errors.New("consumer client is nil")
		}
		co.cl = cl
		return nil
	}
}

func ConsumerDecoderOpt(decoder Decoder) ConsumerOpt {
	return func(co *consumerOpts) error {
		if decoder == nil {
			return errors.New("decoder is nil")
		}
		co.decoder = decoder
		return nil
	}
}

func OrdersConsumerReducerOpt(r port.StockReducer) ConsumerOpt {
	return func(co *consumerOpts) error {
		if r == nil {
			return errors.New("stock reducer is nil")
		}
		co.stockReducer = r
		return nil
	}
}

// OrdersConsumerBackoffOpt sets the wait between attempts
// of a failed stock reduction.
func OrdersConsumerBackoffOpt(b retry.Backoff) ConsumerOpt {
	return func(co *consumerOpts) error {
		if b == nil {
			return errors.New("backoff is nil")
		}
		co.backoff = b
		return nil
	}
}

type consumerOpts struct {
	cl           ConsumerClient
	decoder      Decoder
	stockReducer port.StockReducer
	backoff      retry.Backoff
}

func (co *consumerOpts) apply(opts ...ConsumerOpt) error {
	for _, opt := range opts {
		if err := opt(co); err != nil {
			return err
		}
	}
	return nil
}

////////////////////////////////////////////////////////
////////////           CONSUMERS            ////////////
////////////////////////////////////////////////////////

// A consumerParent handles a single record.
// A nil error means the record is done with and its offset may be committed.
type consumerParent interface {
	processRecord(context.Context, *kgo.Record) error
}

// A consumer is used for composition.
//
// Fetching records from kafka broker and closing underlying [kgo.Client].
type consumer struct {
	opPrefix      string
	parent        consumerParent
	cl            ConsumerClient
	slowDownTimer *time.Timer
}

func (c consumer) run(ctx context.Context) {
	const op = "run"
	log := slog.With("op", makeOp(c.opPrefix, op))

	log.Info("running")

	for {
		select {
		case <-ctx.Done():
			return
		default:
			err := c.consume(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					continue
				}
				log.Error("failed to consume", "err", err)
				c.slowDown(ctx)
			}
		}
	}
}

func (c consumer) consume(ctx context.Context) error {
	const op = "consume"

	fetches, err := c.pollFetches(ctx)
	if err != nil {
		return opErr(err, c.opPrefix, op)
	}

	if fetches.Empty() {
		return nil
	}

	for iter := fetches.RecordIter(); !iter.Done(); {
		r := iter.Next()

		err = c.parent.processRecord(ctx, r)
		if err != nil {
			return opErr(err, c.opPrefix, op)
		}

		err = c.commit(ctx, r)
		if err != nil {
			return opErr(err, c.opPrefix, op)
		}
	}
	return nil
}

func (c consumer) pollFetches(ctx context.Context) (kgo.Fetches, error) {
	const op = "pollFetches"

	fetches := c.cl.PollFetches(ctx)
	if err := fetches.Err0(); err != nil {
		return nil, opErr(err, c.opPrefix, op)
	}

	err := c.handleFetchesErrs(fetches)
	if err != nil {
		return nil, opErr(err, c.opPrefix, op)
	}

	return fetches, nil
}

func (c consumer) handleFetchesErrs(fetches kgo.Fetches) error {
	var errsMessages []string
	fetches.EachError(func(t string, p int32, err error) {
		if err != nil {
			errMsg := fmt.Sprintf(
				"topic %q partition %d: %q", t, p, err,
			)
			errsMessages = append(errsMessages, errMsg)
		}
	})

	if len(errsMessages) != 0 {
		return errors.New(strings.Join(errsMessages, "; "))
	}
	return nil
}

func (c consumer) slowDown(ctx context.Context) {
	c.slowDownTimer.Reset(slowDownTimeout)
	select {
	case <-ctx.Done():
	case <-c.slowDownTimer.C:
	}
}

func (c consumer) commit(ctx context.Context, r *kgo.Record) error {
	const op = "commit"

	err := ctx.Err()
	if err != nil {
		return opErr(err, c.opPrefix, op)
	}

	err = c.cl.CommitRecords(ctx, r)
	if err != nil {
		return opErr(err, c.opPrefix, op)
	}
	return nil
}

func (c consumer) close() {
	const op = "close"
	log := slog.With("op", makeOp(c.opPrefix, op))

	c.slowDownTimer.Stop()

	log.Info("closing consumer...")
	c.cl.Close()
	log.Info("consumer is closed")
}

// An OrdersConsumer consumes placed orders
// then sends their lines to the core service for stock reduction.
//
// A failed line is retried until it is applied or the context ends,
// the record offset is committed right after its order is applied.
// Recently applied order ids are remembered, so a redelivered order
// is committed without reducing stock again.
type OrdersConsumer struct {
	opPrefix string
	consumer consumer
	reducer  port.StockReducer
	decoder  Decoder
	retryCfg retry.RetryConfig
	applied  *appliedOrders
}

func NewOrdersConsumer(opts ...ConsumerOpt) (oc OrdersConsumer, err error) {
	const op = "NewOrdersConsumer"

	if len(opts) < 3 {
		panic(opErr(ErrTooFewOpts, op)) // develop mistake
	}

	options := consumerOpts{
		backoff: retry.CappedBackoff(
			retry.ExponentialBackoff(reduceRetryDelay), reduceRetryMaxDelay,
		),
	}
	if err := options.apply(opts...); err != nil {
		return oc, opErr(err, op)
	}

	opPrefix := "OrdersConsumer"

	oc.opPrefix = opPrefix
	oc.reducer = options.stockReducer
	oc.decoder = options.decoder
	oc.retryCfg = retry.RetryConfig{
		MaxAttempts: math.MaxInt,
		Backoff:     options.backoff,
	}
	oc.applied = newAppliedOrders(appliedOrdersSize)

	oc.consumer = consumer{
		opPrefix:      opPrefix,
		parent:        oc,
		cl:            options.cl,
		slowDownTimer: newStoppedTimer(),
	}

	return oc, nil
}

func (c OrdersConsumer) Run(ctx context.Context) {
	c.consumer.run(ctx)
}

func (c OrdersConsumer) Close() {
	c.consumer.close()
}

func (c OrdersConsumer) processRecord(
	ctx context.Context, r *kgo.Record,
) error {
	const op = "processRecord"
	log := slog.With("op", makeOp(c.opPrefix, op))

	order, err := c.decodeRecValue(r)
	if err != nil {
		log.Error(
			"failed to decode value, skipped",
			"partition", r.Partition,
			"offset", r.Offset,
			"err", opErr(err, c.opPrefix, op),
		)
		return nil
	}

	if c.applied.has(order.id) {
		log.Warn("order already applied, skipped", "orderID", order.id)
		return nil
	}

	err = c.applyOrder(ctx, order)
	if err != nil {
		return opErr(err, c.opPrefix, op)
	}

	c.applied.add(order.id)
	log.Info("order applied", "orderID", order.id, "lines", len(order.lines))
	return nil
}

// applyOrder reduces stock line by line,
// so a retry never repeats an already applied line.
func (c OrdersConsumer) applyOrder(ctx context.Context, order placedOrder) error {
	const op = "applyOrder"
	log := slog.With("op", makeOp(c.opPrefix, op), "orderID", order.id)

	for i, line := range order.lines {
		err := retry.Do(ctx, c.retryCfg, func() error {
			err := c.reducer.ReduceStock(ctx, []domain.Consumption{line})
			if err != nil && ctx.Err() == nil {
				log.Error("failed to reduce stock, retrying",
					"line", i, "productID", line.ProductID, "err", err)
			}
			return err
		})
		if err != nil {
			return fmt.Errorf("order %q line %d: %w", order.id, i, err)
		}
	}
	return nil
}

type placedOrder struct {
	id    string
	lines []domain.Consumption
}

func (c OrdersConsumer) decodeRecValue(
	r *kgo.Record,
) (placedOrder, error) {
	var s schema.OrderPlacedV1
	err := c.decoder.Decode(r.Value, &s)
	if err != nil {
		return placedOrder{}, err
	}
	return placedOrder{id: s.OrderID, lines: schemaV1ToConsumptions(s)}, nil
}

// appliedOrders keeps the last applied order ids, oldest evicted first.
type appliedOrders struct {
	mu   sync.Mutex
	ids  map[string]struct{}
	ring []string
	next int
}

func newAppliedOrders(size int) *appliedOrders {
	return &appliedOrders{
		ids:  make(map[string]struct{}, size),
		ring: make([]string, size),
	}
}

func (a *appliedOrders) has(id string) bool {
	if id == "" {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.ids[id]
	return ok
}

func (a *appliedOrders) add(id string) {
	if id == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.ids[id]; ok {
		return
	}
	if old := a.ring[a.next]; old != "" {
		delete(a.ids, old)
	}
	a.ring[a.next] = id
	a.ids[id] = struct{}{}
	a.next = (a.next + 1) % len(a.ring)
}

func newStoppedTimer() *time.Timer {
	t := time.NewTimer(slowDownTimeout)
	t.Stop()
	return t
}
