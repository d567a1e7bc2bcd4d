package kafka

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/niksmo/club-stock/internal/core/domain"
	"github.com/niksmo/club-stock/internal/core/port"
	"github.com/niksmo/club-stock/pkg/schema"
	"github.com/twmb/franz-go/pkg/kgo"
)

var _ port.StockChangePublisher = (*StockChangedProducer)(nil)

type ProducerOpt func(*producerOpts) error

type producerOpts struct {
	cl      ProducerClient
	encoder Encoder
}

// ProducerClientOpt creates a [kgo.Client] producing to topic.
// Extra options are appended, e.g. [TLSOpts].
func ProducerClientOpt(
	ctx context.Context, seedBrokers []string, topic string, extra ...kgo.Opt,
) ProducerOpt {
	return func(opts *producerOpts) error {
		kopts := []kgo.Opt{
			kgo.SeedBrokers(seedBrokers...),
			kgo.DefaultProduceTopicAlways(),
			kgo.DefaultProduceTopic(topic),
			kgo.RequiredAcks(kgo.AllISRAcks()),
		}
		cl, err := kgo.NewClient(append(kopts, extra...)...)
		if err != nil {
			return err
		}

		if err := cl.Ping(ctx); err != nil {
			cl.Close()
			return err
		}
		opts.cl = cl
		return nil
	}
}

// ProducerCustomClientOpt sets an already created client.
func ProducerCustomClientOpt(cl ProducerClient) ProducerOpt {
	return func(opts *producerOpts) error {
		if cl == nil {
			return errors.New("producer client is nil")
		}
		opts.cl = cl
		return nil
	}
}

func ProducerEncoderOpt(encoder Encoder) ProducerOpt {
	return func(opts *producerOpts) error {
		if encoder == nil {
			return errors.New("encoder is nil")
		}
		opts.encoder = encoder
		return nil
	}
}

// A producer is used for composition.
//
// Producing records to kafka broker and closing underlying [kgo.Client].
type producer struct {
	opPrefix string
	cl       ProducerClient
}

func (p producer) close() {
	const op = "close"
	log := slog.With("op", makeOp(p.opPrefix, op))
	log.Info("closing producer...")
	p.cl.Close()
	log.Info("producer is closed")
}

func (p producer) produce(
	ctx context.Context, rs ...*kgo.Record,
) error {
	const op = "produce"
	res := p.cl.ProduceSync(ctx, rs...)
	if err := res.FirstErr(); err != nil {
		return opErr(err, p.opPrefix, op)
	}
	return nil
}

// A StockChangedProducer announces committed size record changes.
//
// Records are keyed by product id, so changes of one product
// keep their order within a partition.
type StockChangedProducer struct {
	producer producer
	encoder  Encoder
	opPrefix string
	newID    func() string
}

func NewStockChangedProducer(
	opts ...ProducerOpt,
) (StockChangedProducer, error) {
	const op = "NewStockChangedProducer"

	if len(opts) != 2 {
		panic(opErr(ErrTooFewOpts, op)) // develop mistake
	}

	var options producerOpts
	for _, opt := range opts {
		if err := opt(&options); err != nil {
			return StockChangedProducer{}, opErr(err, op)
		}
	}

	opPrefix := "StockChangedProducer"
	p := producer{
		opPrefix: opPrefix,
		cl:       options.cl,
	}

	return StockChangedProducer{
		producer: p,
		encoder:  options.encoder,
		opPrefix: opPrefix,
		newID:    uuid.NewString,
	}, nil
}

func (p StockChangedProducer) Close() {
	p.producer.close()
}

func (p StockChangedProducer) PublishStockChange(
	ctx context.Context, v domain.StockChange,
) error {
	const op = "PublishStockChange"

	if err := ctx.Err(); err != nil {
		return opErr(err, p.opPrefix, op)
	}

	r, err := p.createRecord(v)
	if err != nil {
		return opErr(err, p.opPrefix, op)
	}

	if err := p.producer.produce(ctx, r); err != nil {
		return opErr(err, p.opPrefix, op)
	}
	return nil
}

func (p StockChangedProducer) createRecord(
	v domain.StockChange,
) (*kgo.Record, error) {
	const op = "createRecord"

	s := p.toSchema(v)
	b, err := p.encoder.Encode(s)
	if err != nil {
		return nil, opErr(err, p.opPrefix, op)
	}
	return &kgo.Record{Key: productKey(v.ProductID), Value: b}, nil
}

func (p StockChangedProducer) toSchema(
	v domain.StockChange,
) schema.StockChangedV1 {
	return stockChangeToSchemaV1(p.newID(), v)
}

func productKey(productID int64) []byte {
	return strconv.AppendInt(nil, productID, 10)
}
