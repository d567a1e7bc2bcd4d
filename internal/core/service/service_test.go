package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/niksmo/club-stock/internal/core/domain"
	"github.com/niksmo/club-stock/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// memStorage keeps JSON encoded records and, like a naive SQL repository,
// reads and writes them in separate steps.
type memStorage struct {
	mu       sync.Mutex
	rows     map[int64][]byte
	nextID   int64
	failSave map[int64]error
	saves    []int64
}

func newMemStorage() *memStorage {
	return &memStorage{
		rows:     make(map[int64][]byte),
		failSave: make(map[int64]error),
	}
}

func (m *memStorage) put(t *testing.T, id int64, sizes string) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.True(t, json.Valid([]byte(sizes)))
	m.rows[id] = []byte(sizes)
}

func (m *memStorage) record(t *testing.T, id int64) domain.SizeRecord {
	t.Helper()
	raw, err := m.LoadSizes(context.Background(), id)
	require.NoError(t, err)
	return domain.Normalize(raw)
}

func (m *memStorage) CreateProduct(
	_ context.Context, p domain.Product,
) (int64, error) {
	b, err := json.Marshal(p.Sizes)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.rows[m.nextID] = b
	return m.nextID, nil
}

func (m *memStorage) LoadSizes(
	_ context.Context, id int64,
) (domain.RawSizes, error) {
	m.mu.Lock()
	b, ok := m.rows[id]
	m.mu.Unlock()
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	var raw domain.RawSizes
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (m *memStorage) UpdateSizes(
	ctx context.Context, id int64, fn port.UpdateSizesFn,
) (domain.SizeRecord, error) {
	raw, err := m.LoadSizes(ctx, id)
	if err != nil {
		return nil, err
	}

	runtime.Gosched()

	r, err := fn(raw)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failSave[id]; err != nil {
		return nil, err
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	m.rows[id] = b
	m.saves = append(m.saves, id)
	return r, nil
}

func (m *memStorage) DeleteProduct(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(m.rows, id)
	return nil
}

type MockPublisher struct {
	mock.Mock
}

func (p *MockPublisher) PublishStockChange(
	ctx context.Context, c domain.StockChange,
) error {
	args := p.Called(ctx, c)
	return args.Error(0)
}

type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) ObserveOperation(op string, err error, _ time.Duration) {
	m.Called(op, err)
}

func (m *MockMetrics) SkippedLine(reason string) {
	m.Called(reason)
}

func (m *MockMetrics) UnitsConsumed(res domain.ConsumptionResult) {
	m.Called(res)
}

func TestServiceReduceStock(t *testing.T) {
	const sizes = `{"170": {"online": 5, "club": 2}, "180": {"online": 3, "club": 0}}`

	t.Run("OnlineOnly", func(t *testing.T) {
		st := newMemStorage()
		st.put(t, 1, sizes)
		s := New(st, nil, nil)

		err := s.ReduceStock(t.Context(), []domain.Consumption{
			{ProductID: 1, Size: "170", Quantity: 3},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.LocationStock{Online: 2, Club: 2}, st.record(t, 1)["170"])
	})

	t.Run("OverflowToClub", func(t *testing.T) {
		st := newMemStorage()
		st.put(t, 1, sizes)
		s := New(st, nil, nil)

		err := s.ReduceStock(t.Context(), []domain.Consumption{
			{ProductID: 1, Size: "170", Quantity: 6},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.LocationStock{Online: 0, Club: 1}, st.record(t, 1)["170"])
	})

	t.Run("MultipleLines", func(t *testing.T) {
		st := newMemStorage()
		st.put(t, 1, sizes)
		s := New(st, nil, nil)

		err := s.ReduceStock(t.Context(), []domain.Consumption{
			{ProductID: 1, Size: "170", Quantity: 2},
			{ProductID: 1, Size: "180", Quantity: 1},
		})
		require.NoError(t, err)
		r := st.record(t, 1)
		assert.Equal(t, domain.LocationStock{Online: 3, Club: 2}, r["170"])
		assert.Equal(t, domain.LocationStock{Online: 2}, r["180"])
		assert.Equal(t, []int64{1, 1}, st.saves)
	})

	t.Run("SameSizeLinesApplyInOrder", func(t *testing.T) {
		st := newMemStorage()
		st.put(t, 1, sizes)
		s := New(st, nil, nil)

		err := s.ReduceStock(t.Context(), []domain.Consumption{
			{ProductID: 1, Size: "170", Quantity: 4},
			{ProductID: 1, Size: "170", Quantity: 2},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.LocationStock{Online: 0, Club: 1}, st.record(t, 1)["170"])
	})

	t.Run("MissingProductSkipped", func(t *testing.T) {
		st := newMemStorage()
		st.put(t, 1, sizes)
		metrics := new(MockMetrics)
		metrics.On("SkippedLine", skipNoProduct).Once()
		metrics.On("UnitsConsumed", domain.ConsumptionResult{Online: 1}).Once()
		metrics.On("ObserveOperation", opReduce, nil).Once()
		s := New(st, nil, metrics)

		err := s.ReduceStock(t.Context(), []domain.Consumption{
			{ProductID: 999, Size: "170", Quantity: 1},
			{ProductID: 1, Size: "180", Quantity: 1},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.LocationStock{Online: 2}, st.record(t, 1)["180"])
		metrics.AssertExpectations(t)
	})

	t.Run("MissingSizeSkippedWithoutWrite", func(t *testing.T) {
		st := newMemStorage()
		st.put(t, 1, `{"170": 5}`)
		s := New(st, nil, nil)

		err := s.ReduceStock(t.Context(), []domain.Consumption{
			{ProductID: 1, Size: "999", Quantity: 1},
		})
		require.NoError(t, err)
		assert.Empty(t, st.saves)
		assert.JSONEq(t, `{"170": 5}`, string(st.rows[1]))
	})

	t.Run("StorageFailureKeepsCommittedLines", func(t *testing.T) {
		st := newMemStorage()
		st.put(t, 1, sizes)
		st.put(t, 2, sizes)
		st.put(t, 3, sizes)
		errDisk := errors.New("disk full")
		st.failSave[2] = errDisk
		s := New(st, nil, nil)

		err := s.ReduceStock(t.Context(), []domain.Consumption{
			{ProductID: 1, Size: "170", Quantity: 1},
			{ProductID: 2, Size: "170", Quantity: 1},
			{ProductID: 3, Size: "170", Quantity: 1},
		})
		require.ErrorIs(t, err, errDisk)
		assert.Equal(t, 4, st.record(t, 1)["170"].Online)
		assert.Equal(t, 5, st.record(t, 2)["170"].Online)
		assert.Equal(t, 5, st.record(t, 3)["170"].Online)
	})

	t.Run("PublishesEveryCommittedLine", func(t *testing.T) {
		st := newMemStorage()
		st.put(t, 1, sizes)
		publisher := new(MockPublisher)
		publisher.On("PublishStockChange", mock.Anything, domain.StockChange{
			ProductID: 1,
			Reason:    domain.ReasonOrder,
			Sizes: domain.SizeRecord{
				"170": {Online: 0, Club: 1},
				"180": {Online: 3},
			},
		}).Return(errors.New("broker down")).Once()
		s := New(st, publisher, nil)

		err := s.ReduceStock(t.Context(), []domain.Consumption{
			{ProductID: 1, Size: "170", Quantity: 6},
		})
		require.NoError(t, err)
		publisher.AssertExpectations(t)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		s := New(newMemStorage(), nil, nil)
		err := s.ReduceStock(ctx, []domain.Consumption{{ProductID: 1}})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestServiceMove(t *testing.T) {
	t.Run("Moves", func(t *testing.T) {
		st := newMemStorage()
		st.put(t, 1, `{"170": {"online": 5, "club": 2}}`)
		s := New(st, nil, nil)

		r, err := s.Move(t.Context(), 1, domain.Transfer{
			Size: "170", Amount: 3,
			From: domain.LocationOnline, To: domain.LocationClub,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.LocationStock{Online: 2, Club: 5}, r["170"])
		assert.Equal(t, r, st.record(t, 1))
	})

	t.Run("InsufficientStockLeavesRecord", func(t *testing.T) {
		st := newMemStorage()
		st.put(t, 1, `{"170": {"online": 2, "club": 1}}`)
		s := New(st, nil, nil)

		_, err := s.Move(t.Context(), 1, domain.Transfer{
			Size: "170", Amount: 5,
			From: domain.LocationOnline, To: domain.LocationClub,
		})
		require.ErrorIs(t, err, domain.ErrInsufficientStock)
		assert.Empty(t, st.saves)
		assert.Equal(t, domain.LocationStock{Online: 2, Club: 1}, st.record(t, 1)["170"])
	})

	t.Run("SameLocationRejected", func(t *testing.T) {
		st := newMemStorage()
		st.put(t, 1, `{"170": 5}`)
		s := New(st, nil, nil)

		_, err := s.Move(t.Context(), 1, domain.Transfer{
			Size: "170", Amount: 1,
			From: domain.LocationClub, To: domain.LocationClub,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidTransfer)
	})

	t.Run("ProductNotFound", func(t *testing.T) {
		s := New(newMemStorage(), nil, nil)
		_, err := s.Move(t.Context(), 7, domain.Transfer{
			Size: "170", Amount: 1,
			From: domain.LocationClub, To: domain.LocationOnline,
		})
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
	})

	t.Run("ConcurrentMovesKeepEveryUpdate", func(t *testing.T) {
		const workers = 40

		st := newMemStorage()
		st.put(t, 1, fmt.Sprintf(`{"170": {"online": %d, "club": 0}}`, workers))
		s := New(st, nil, nil)

		var g errgroup.Group
		for range workers {
			g.Go(func() error {
				_, err := s.Move(t.Context(), 1, domain.Transfer{
					Size: "170", Amount: 1,
					From: domain.LocationOnline, To: domain.LocationClub,
				})
				return err
			})
		}
		require.NoError(t, g.Wait())

		assert.Equal(t, domain.LocationStock{Online: 0, Club: workers}, st.record(t, 1)["170"])
		assert.Zero(t, s.locks.len())
	})

	t.Run("ConcurrentReductionsKeepEveryUpdate", func(t *testing.T) {
		const workers = 30

		st := newMemStorage()
		st.put(t, 1, `{"170": {"online": 20, "club": 20}}`)
		s := New(st, nil, nil)

		var g errgroup.Group
		for range workers {
			g.Go(func() error {
				return s.ReduceStock(t.Context(), []domain.Consumption{
					{ProductID: 1, Size: "170", Quantity: 1},
				})
			})
		}
		require.NoError(t, g.Wait())

		assert.Equal(t, domain.LocationStock{Online: 0, Club: 10}, st.record(t, 1)["170"])
	})
}

func TestServiceSetQuantity(t *testing.T) {
	st := newMemStorage()
	st.put(t, 1, `{"170": 5, "180": {"quantity": 2, "location": "club"}}`)
	publisher := new(MockPublisher)
	publisher.On("PublishStockChange", mock.Anything, mock.MatchedBy(
		func(c domain.StockChange) bool {
			return c.ProductID == 1 && c.Reason == domain.ReasonSetQuantity
		},
	)).Return(nil).Once()
	s := New(st, publisher, nil)

	r, err := s.SetQuantity(t.Context(), 1, "170", 4, domain.LocationClub)
	require.NoError(t, err)
	assert.Equal(t, domain.SizeRecord{
		"170": {Online: 5, Club: 4},
		"180": {Club: 2},
	}, r)
	assert.Equal(t, r, st.record(t, 1))
	publisher.AssertExpectations(t)

	_, err = s.SetQuantity(t.Context(), 1, "170", 4, domain.Location("attic"))
	assert.ErrorIs(t, err, domain.ErrInvalidLocation)
}

func TestServiceProductLifecycle(t *testing.T) {
	st := newMemStorage()
	s := New(st, nil, nil)

	id, err := s.CreateProduct(t.Context(), domain.Product{
		Name:  "Gi",
		Price: 1000,
		Sizes: domain.SizeRecord{"170": {Online: 3, Club: -1}},
	})
	require.NoError(t, err)

	r, err := s.ReadSizes(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.SizeRecord{"170": {Online: 3}}, r)

	r, err = s.ReplaceSizes(t.Context(), id, domain.RawSizes{"S": 1, "M": nil})
	require.NoError(t, err)
	assert.Equal(t, domain.SizeRecord{"S": {Online: 1}, "M": {}}, r)

	require.NoError(t, s.DeleteProduct(t.Context(), id))

	_, err = s.ReadSizes(t.Context(), id)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	err = s.DeleteProduct(t.Context(), id)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}
