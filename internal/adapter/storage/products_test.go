package storage

import (
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/niksmo/club-stock/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	selectForUpdate = regexp.QuoteMeta(
		`SELECT sizes FROM products WHERE id = $1 FOR UPDATE;`,
	)
	selectSizes = regexp.QuoteMeta(`SELECT sizes FROM products WHERE id = $1;`)
	updateSizes = regexp.QuoteMeta(`UPDATE products SET sizes = $1 WHERE id = $2;`)
)

func newMockRepo(t *testing.T) (ProductsRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewProductsRepository(db, 3), mock
}

func sizesRow(sizes string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"sizes"}).AddRow([]byte(sizes))
}

func TestProductsRepositoryCreateProduct(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("INSERT INTO products").
		WithArgs("Gi", int64(1000), "kimono", `{"170":{"online":3,"club":1}}`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := repo.CreateProduct(t.Context(), domain.Product{
		Name:     "Gi",
		Price:    1000,
		Category: "kimono",
		Sizes:    domain.SizeRecord{"170": {Online: 3, Club: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductsRepositoryLoadSizes(t *testing.T) {
	t.Run("LegacyShapes", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(selectSizes).WithArgs(int64(1)).
			WillReturnRows(sizesRow(`{"170": 5, "180": {"quantity": 2, "location": "club"}}`))

		raw, err := repo.LoadSizes(t.Context(), 1)
		require.NoError(t, err)
		assert.Equal(t, domain.SizeRecord{
			"170": {Online: 5},
			"180": {Club: 2},
		}, domain.Normalize(raw))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(selectSizes).WithArgs(int64(9)).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.LoadSizes(t.Context(), 9)
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
	})

	t.Run("UnreadableIsEmpty", func(t *testing.T) {
		for _, stored := range []string{"", "null", "not json", "[1,2]"} {
			repo, mock := newMockRepo(t)
			mock.ExpectQuery(selectSizes).WithArgs(int64(1)).
				WillReturnRows(sizesRow(stored))

			raw, err := repo.LoadSizes(t.Context(), 1)
			require.NoError(t, err, stored)
			assert.Empty(t, raw, stored)
			assert.NotNil(t, raw, stored)
		}
	})
}

func TestProductsRepositoryUpdateSizes(t *testing.T) {
	move := func(raw domain.RawSizes) (domain.SizeRecord, error) {
		return domain.Move(raw, domain.Transfer{
			Size: "170", Amount: 2,
			From: domain.LocationOnline, To: domain.LocationClub,
		})
	}

	t.Run("Commits", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(selectForUpdate).WithArgs(int64(1)).
			WillReturnRows(sizesRow(`{"170": 5}`))
		mock.ExpectExec(updateSizes).
			WithArgs(`{"170":{"online":3,"club":2}}`, int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		rec, err := repo.UpdateSizes(t.Context(), 1, move)
		require.NoError(t, err)
		assert.Equal(t, domain.SizeRecord{"170": {Online: 3, Club: 2}}, rec)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RejectedUpdateRollsBack", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(selectForUpdate).WithArgs(int64(1)).
			WillReturnRows(sizesRow(`{"170": {"online": 1, "club": 0}}`))
		mock.ExpectRollback()

		_, err := repo.UpdateSizes(t.Context(), 1, move)
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ProductNotFound", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(selectForUpdate).WithArgs(int64(4)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := repo.UpdateSizes(t.Context(), 4, move)
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RetriesSerializationFailure", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		conflict := &pgconn.PgError{Code: pgerrcode.SerializationFailure}

		mock.ExpectBegin()
		mock.ExpectQuery(selectForUpdate).WithArgs(int64(1)).
			WillReturnError(conflict)
		mock.ExpectRollback()

		mock.ExpectBegin()
		mock.ExpectQuery(selectForUpdate).WithArgs(int64(1)).
			WillReturnRows(sizesRow(`{"170": {"online": 4, "club": 0}}`))
		mock.ExpectExec(updateSizes).
			WithArgs(`{"170":{"online":2,"club":2}}`, int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		rec, err := repo.UpdateSizes(t.Context(), 1, move)
		require.NoError(t, err)
		assert.Equal(t, domain.SizeRecord{"170": {Online: 2, Club: 2}}, rec)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("GivesUpOnPersistentConflict", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		conflict := &pgconn.PgError{Code: pgerrcode.SerializationFailure}

		for range 3 {
			mock.ExpectBegin()
			mock.ExpectQuery(selectForUpdate).WithArgs(int64(1)).
				WillReturnError(conflict)
			mock.ExpectRollback()
		}

		_, err := repo.UpdateSizes(t.Context(), 1, move)
		var pgErr *pgconn.PgError
		require.True(t, errors.As(err, &pgErr))
		assert.Equal(t, pgerrcode.SerializationFailure, pgErr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProductsRepositoryDeleteProduct(t *testing.T) {
	deleteQuery := regexp.QuoteMeta(`DELETE FROM products WHERE id = $1;`)

	t.Run("Deleted", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(deleteQuery).WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.DeleteProduct(t.Context(), 1))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(deleteQuery).WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.DeleteProduct(t.Context(), 1)
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
	})
}

func TestIsSerializationFailure(t *testing.T) {
	assert.True(t, isSerializationFailure(
		&pgconn.PgError{Code: pgerrcode.SerializationFailure},
	))
	assert.True(t, isSerializationFailure(
		&pgconn.PgError{Code: pgerrcode.DeadlockDetected},
	))
	assert.False(t, isSerializationFailure(
		&pgconn.PgError{Code: pgerrcode.UniqueViolation},
	))
	assert.False(t, isSerializationFailure(errors.New("boom")))
}
