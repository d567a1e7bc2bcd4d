package schema

import (
	"context"
	"errors"
	"fmt"

	"github.com/hamba/avro/v2"
	"github.com/twmb/franz-go/pkg/sr"
)

var (
	ErrTooFewOpts = errors.New("too few options")
)

// A Serde encodes values in the schema registry wire format:
// magic byte, schema id and avro payload.
type Serde interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

type Opt func(*serdeOpts) error

type serdeOpts struct {
	subject string
	si      SchemaIdentifier
}

func (so serdeOpts) complete() bool {
	return so.subject != "" && so.si != nil
}

func SubjectOpt(subject string) Opt {
	return func(so *serdeOpts) error {
		if subject == "" {
			return errors.New("subject is empty string")
		}
		so.subject = subject
		return nil
	}
}

func SchemaIdentifierOpt(sc SchemaIdentifier) Opt {
	return func(so *serdeOpts) error {
		if sc == nil {
			return errors.New("schema identifier is nil")
		}
		so.si = sc
		return nil
	}
}

// NewSerdeOrderPlacedV1 requires [SubjectOpt] and [SchemaIdentifierOpt].
func NewSerdeOrderPlacedV1(ctx context.Context, opts ...Opt) (Serde, error) {
	const op = "NewSerdeOrderPlacedV1"
	s, err := newSerde[OrderPlacedV1](ctx, OrderPlacedSchemaTextV1, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

// NewSerdeStockChangedV1 requires [SubjectOpt] and [SchemaIdentifierOpt].
func NewSerdeStockChangedV1(ctx context.Context, opts ...Opt) (Serde, error) {
	const op = "NewSerdeStockChangedV1"
	s, err := newSerde[StockChangedV1](ctx, StockChangedSchemaTextV1, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

// newSerde registers schemaText under the subject and binds
// the resulting id to values of type T.
func newSerde[T any](
	ctx context.Context, schemaText string, opts ...Opt,
) (*sr.Serde, error) {
	var so serdeOpts
	for _, o := range opts {
		if err := o(&so); err != nil {
			return nil, err
		}
	}
	if !so.complete() {
		return nil, ErrTooFewOpts
	}

	avroSchema, err := avro.Parse(schemaText)
	if err != nil {
		return nil, err
	}

	srID, err := so.si.DetermineID(ctx, so.subject, schemaText)
	if err != nil {
		return nil, err
	}

	var zero T
	srSerde := new(sr.Serde)
	srSerde.Register(
		srID,
		zero,
		sr.EncodeFn(AvroEncodeFn(avroSchema)),
		sr.DecodeFn(AvroDecodeFn(avroSchema)),
	)
	return srSerde, nil
}
