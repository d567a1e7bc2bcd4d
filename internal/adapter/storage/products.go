package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/niksmo/club-stock/internal/core/domain"
	"github.com/niksmo/club-stock/internal/core/port"
	"github.com/niksmo/club-stock/pkg/retry"
)

var _ port.ProductsStorage = (*ProductsRepository)(nil)

const (
	defaultTxAttempts = 5
	txRetryDelay      = 20 * time.Millisecond
)

type ProductsRepository struct {
	sqldb       sqldb
	maxAttempts int
}

// NewProductsRepository returns the repository. Size record updates
// losing a serialization conflict are run up to maxAttempts times.
func NewProductsRepository(sqldb sqldb, maxAttempts int) ProductsRepository {
	if maxAttempts <= 0 {
		maxAttempts = defaultTxAttempts
	}
	return ProductsRepository{sqldb, maxAttempts}
}

func (r ProductsRepository) CreateProduct(
	ctx context.Context, p domain.Product,
) (int64, error) {
	const op = "ProductsRepository.CreateProduct"

	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	sizes, err := encodeSizes(p.Sizes)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	query := `
		INSERT INTO products (name, price, category, sizes)
		VALUES ($1, $2, $3, $4)
		RETURNING id;`

	var id int64
	err = r.sqldb.QueryRowContext(
		ctx, query, p.Name, p.Price, p.Category, sizes,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to insert: %w", op, err)
	}
	return id, nil
}

func (r ProductsRepository) LoadSizes(
	ctx context.Context, productID int64,
) (domain.RawSizes, error) {
	const op = "ProductsRepository.LoadSizes"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT sizes FROM products WHERE id = $1;`

	var b []byte
	err := r.sqldb.QueryRowContext(ctx, query, productID).Scan(&b)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, domain.ErrProductNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return decodeSizes(productID, b), nil
}

// UpdateSizes runs fn over the stored record inside a serializable
// transaction holding the product row lock and stores its result.
//
// An error from fn rolls the transaction back and is returned as is.
func (r ProductsRepository) UpdateSizes(
	ctx context.Context, productID int64, fn port.UpdateSizesFn,
) (domain.SizeRecord, error) {
	const op = "ProductsRepository.UpdateSizes"

	retryCfg := retry.RetryConfig{
		MaxAttempts: r.maxAttempts,
		Backoff:     retry.LinearBackoff(txRetryDelay),
		ShouldRetry: isSerializationFailure,
	}

	rec, err := retry.DoWithResult(ctx, retryCfg,
		func() (domain.SizeRecord, error) {
			return r.updateSizesTx(ctx, productID, fn)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rec, nil
}

func (r ProductsRepository) updateSizesTx(
	ctx context.Context, productID int64, fn port.UpdateSizesFn,
) (rec domain.SizeRecord, txErr error) {
	const op = "ProductsRepository.updateSizesTx"
	log := slog.With("op", op)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx, err := r.sqldb.BeginTx(
		ctx, &sql.TxOptions{Isolation: sql.LevelSerializable},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}

	defer func() {
		if txErr == nil {
			if err := tx.Commit(); err != nil {
				rec = nil
				txErr = fmt.Errorf("failed to commit: %w", err)
			}
			return
		}

		if err := tx.Rollback(); err != nil {
			log.Error("failed to rollback tx", "err", err)
		}
	}()

	selectQuery := `SELECT sizes FROM products WHERE id = $1 FOR UPDATE;`

	var b []byte
	err = tx.QueryRowContext(ctx, selectQuery, productID).Scan(&b)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to select: %w", err)
	}

	rec, err = fn(decodeSizes(productID, b))
	if err != nil {
		return nil, err
	}

	sizes, err := encodeSizes(rec)
	if err != nil {
		return nil, err
	}

	updateQuery := `UPDATE products SET sizes = $1 WHERE id = $2;`

	if _, err := tx.ExecContext(ctx, updateQuery, sizes, productID); err != nil {
		return nil, fmt.Errorf("failed to update: %w", err)
	}
	return rec, nil
}

func (r ProductsRepository) DeleteProduct(
	ctx context.Context, productID int64,
) error {
	const op = "ProductsRepository.DeleteProduct"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `DELETE FROM products WHERE id = $1;`

	res, err := r.sqldb.ExecContext(ctx, query, productID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrProductNotFound)
	}
	return nil
}

// encodeSizes always writes the canonical shape.
func encodeSizes(rec domain.SizeRecord) (string, error) {
	if rec == nil {
		rec = domain.SizeRecord{}
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeSizes reads a stored record. Unreadable records are treated as empty.
func decodeSizes(productID int64, b []byte) domain.RawSizes {
	const op = "decodeSizes"

	raw := make(domain.RawSizes)
	if len(bytes.TrimSpace(b)) == 0 {
		return raw
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		slog.Warn(
			"unreadable size record, treated as empty",
			"op", op,
			"productID", productID,
			"err", err,
		)
		return make(domain.RawSizes)
	}
	if raw == nil {
		raw = make(domain.RawSizes)
	}
	return raw
}
