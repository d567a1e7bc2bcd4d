package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/lovoo/goka"
	"github.com/niksmo/club-stock/internal/core/domain"
	"github.com/niksmo/club-stock/pkg/schema"
	"github.com/twmb/franz-go/pkg/kgo"
)

var (
	ErrTooFewOpts       = errors.New("too few options")
	ErrInvalidValueType = errors.New("invalid value type")
)

type ProducerClient interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

type ConsumerClient interface {
	PollFetches(context.Context) kgo.Fetches
	CommitRecords(context.Context, ...*kgo.Record) error
	Close()
}

type Encoder interface {
	Encode(v any) ([]byte, error)
}

type Decoder interface {
	Decode(b []byte, v any) error
}

type Serde interface {
	Encoder
	Decoder
}

// TLSOpts returns client options for connecting over tls.
// A nil config means plaintext.
func TLSOpts(tlsConfig *tls.Config) []kgo.Opt {
	if tlsConfig == nil {
		return nil
	}
	return []kgo.Opt{kgo.DialTLSConfig(tlsConfig)}
}

// UseGokaTLS switches goka processors and views to tls.
// Must be called before they are created.
func UseGokaTLS(tlsConfig *tls.Config) {
	if tlsConfig == nil {
		return
	}
	cfg := goka.DefaultConfig()
	cfg.Net.TLS.Enable = true
	cfg.Net.TLS.Config = tlsConfig
	goka.ReplaceGlobalConfig(cfg)
}

func withNonlogProcOpt() goka.ProcessorOption {
	return goka.WithLogger(log.New(io.Discard, "", 0))
}

func makeOp(s ...string) string {
	return strings.Join(s, ".")
}

func opErr(err error, op ...string) error {
	return fmt.Errorf("%s: %w", makeOp(op...), err)
}

func stockChangeToSchemaV1(
	eventID string, v domain.StockChange,
) (s schema.StockChangedV1) {
	s.EventID = eventID
	s.ProductID = v.ProductID
	s.Reason = string(v.Reason)

	labels := v.Sizes.Labels()
	s.Sizes = make([]schema.SizeStockV1, len(labels))
	for i, label := range labels {
		stock := v.Sizes[label]
		s.Sizes[i].Size = label
		s.Sizes[i].Online = stock.Online
		s.Sizes[i].Club = stock.Club
	}
	return
}

func schemaV1ToStockChange(s schema.StockChangedV1) (v domain.StockChange) {
	v.ProductID = s.ProductID
	v.Reason = domain.StockChangeReason(s.Reason)
	if v.Reason == domain.ReasonDelete {
		return
	}

	v.Sizes = make(domain.SizeRecord, len(s.Sizes))
	for _, size := range s.Sizes {
		v.Sizes[size.Size] = domain.LocationStock{
			Online: size.Online,
			Club:   size.Club,
		}
	}
	return
}

func schemaV1ToConsumptions(s schema.OrderPlacedV1) []domain.Consumption {
	cs := make([]domain.Consumption, len(s.Items))
	for i, item := range s.Items {
		cs[i].ProductID = item.ProductID
		cs[i].Size = item.Size
		cs[i].Quantity = item.Quantity
	}
	return cs
}
