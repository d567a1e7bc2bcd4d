package port

import (
	"context"
	"sync"
	"time"

	"github.com/niksmo/club-stock/internal/core/domain"
)

type (
	runnerContextWg interface {
		Run(context.Context, context.CancelFunc, *sync.WaitGroup)
	}

	closer interface {
		Close()
	}
)

// An UpdateSizesFn computes the new record from the stored one.
//
// Returning an error discards the update.
type UpdateSizesFn func(domain.RawSizes) (domain.SizeRecord, error)

type ProductsStorage interface {
	CreateProduct(context.Context, domain.Product) (int64, error)
	LoadSizes(ctx context.Context, productID int64) (domain.RawSizes, error)
	UpdateSizes(
		ctx context.Context, productID int64, fn UpdateSizesFn,
	) (domain.SizeRecord, error)
	DeleteProduct(ctx context.Context, productID int64) error
}

type StockReducer interface {
	ReduceStock(context.Context, []domain.Consumption) error
}

type InventoryManager interface {
	CreateProduct(context.Context, domain.Product) (int64, error)
	ReadSizes(ctx context.Context, productID int64) (domain.SizeRecord, error)
	ReplaceSizes(
		ctx context.Context, productID int64, raw domain.RawSizes,
	) (domain.SizeRecord, error)
	SetQuantity(
		ctx context.Context,
		productID int64,
		size string,
		quantity int,
		location domain.Location,
	) (domain.SizeRecord, error)
	Move(
		ctx context.Context, productID int64, t domain.Transfer,
	) (domain.SizeRecord, error)
	DeleteProduct(ctx context.Context, productID int64) error
}

type StockChangePublisher interface {
	PublishStockChange(context.Context, domain.StockChange) error
}

type StockSnapshotReader interface {
	ReadSnapshot(productID int64) (domain.StockChange, bool, error)
}

type StockSnapshotProcessor interface {
	runnerContextWg
	closer
}

type LedgerMetrics interface {
	ObserveOperation(op string, err error, elapsed time.Duration)
	SkippedLine(reason string)
	UnitsConsumed(domain.ConsumptionResult)
}
