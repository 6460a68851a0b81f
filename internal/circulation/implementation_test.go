package circulation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libria/internal/circulation"
)

// memStore is an in-memory Store with the same contract as the postgres
// implementation: idempotent create and a compare-and-swap update.
type memStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]circulation.BookStatus
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[uuid.UUID]circulation.BookStatus)}
}

func (m *memStore) Create(_ context.Context, status *circulation.BookStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[status.BookID]; ok {
		return nil
	}
	m.rows[status.BookID] = *status
	return nil
}

func (m *memStore) Get(_ context.Context, bookID uuid.UUID) (*circulation.BookStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[bookID]
	if !ok {
		return nil, circulation.ErrBookStatusNotFound
	}
	return &row, nil
}

func (m *memStore) ListAvailable(_ context.Context) ([]*circulation.BookStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var statuses []*circulation.BookStatus
	for _, row := range m.rows {
		if row.IsAvailable {
			row := row
			statuses = append(statuses, &row)
		}
	}
	return statuses, nil
}

func (m *memStore) Update(_ context.Context, status *circulation.BookStatus, wasAvailable bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[status.BookID]
	if !ok || row.IsAvailable != wasAvailable {
		return circulation.ErrStaleStatus
	}
	m.rows[status.BookID] = *status
	return nil
}

func (m *memStore) Delete(_ context.Context, bookID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[bookID]; !ok {
		return false, nil
	}
	delete(m.rows, bookID)
	return true, nil
}

func TestCreateBookStatusDefaults(t *testing.T) {
	svc := circulation.NewService(newMemStore())
	bookID := uuid.New()

	status, err := svc.CreateBookStatus(context.Background(), bookID)
	require.NoError(t, err)

	assert.Equal(t, bookID, status.BookID)
	assert.True(t, status.IsAvailable)
	assert.Nil(t, status.BorrowedAt)
	assert.Nil(t, status.ReturnedAt)
}

func TestCreateBookStatusDuplicateIsNoOp(t *testing.T) {
	svc := circulation.NewService(newMemStore())
	bookID := uuid.New()

	_, err := svc.CreateBookStatus(context.Background(), bookID)
	require.NoError(t, err)

	borrowed, err := svc.BorrowBook(context.Background(), bookID)
	require.NoError(t, err)

	// A redelivered created event must not reset the borrowed state.
	status, err := svc.CreateBookStatus(context.Background(), bookID)
	require.NoError(t, err)
	assert.False(t, status.IsAvailable)
	assert.Equal(t, borrowed.BorrowedAt, status.BorrowedAt)
}

func TestDeleteBookStatus(t *testing.T) {
	svc := circulation.NewService(newMemStore())
	bookID := uuid.New()

	_, err := svc.CreateBookStatus(context.Background(), bookID)
	require.NoError(t, err)

	deleted, err := svc.DeleteBookStatus(context.Background(), bookID)
	require.NoError(t, err)
	assert.True(t, deleted)

	// Deleting an absent row is a no-op, not an error.
	deleted, err = svc.DeleteBookStatus(context.Background(), bookID)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = svc.GetBookStatus(context.Background(), bookID)
	assert.ErrorIs(t, err, circulation.ErrBookStatusNotFound)
}

func TestBorrowBook(t *testing.T) {
	svc := circulation.NewService(newMemStore())
	bookID := uuid.New()

	_, err := svc.CreateBookStatus(context.Background(), bookID)
	require.NoError(t, err)

	before := time.Now().UTC()
	status, err := svc.BorrowBook(context.Background(), bookID)
	require.NoError(t, err)

	assert.False(t, status.IsAvailable)
	require.NotNil(t, status.BorrowedAt)
	assert.False(t, status.BorrowedAt.Before(before))
	assert.Nil(t, status.ReturnedAt)
}

func TestBorrowBorrowedBookFails(t *testing.T) {
	svc := circulation.NewService(newMemStore())
	bookID := uuid.New()

	_, err := svc.CreateBookStatus(context.Background(), bookID)
	require.NoError(t, err)

	first, err := svc.BorrowBook(context.Background(), bookID)
	require.NoError(t, err)

	_, err = svc.BorrowBook(context.Background(), bookID)
	assert.ErrorIs(t, err, circulation.ErrBookNotAvailable)

	// The losing attempt must leave the row untouched.
	status, err := svc.GetBookStatus(context.Background(), bookID)
	require.NoError(t, err)
	assert.Equal(t, first.BorrowedAt, status.BorrowedAt)
	assert.False(t, status.IsAvailable)
}

func TestReturnBook(t *testing.T) {
	svc := circulation.NewService(newMemStore())
	bookID := uuid.New()

	_, err := svc.CreateBookStatus(context.Background(), bookID)
	require.NoError(t, err)
	_, err = svc.BorrowBook(context.Background(), bookID)
	require.NoError(t, err)

	status, err := svc.ReturnBook(context.Background(), bookID)
	require.NoError(t, err)

	assert.True(t, status.IsAvailable)
	assert.Nil(t, status.BorrowedAt)
	assert.Nil(t, status.ReturnedAt)
}

func TestReturnAvailableBookFails(t *testing.T) {
	svc := circulation.NewService(newMemStore())
	bookID := uuid.New()

	_, err := svc.CreateBookStatus(context.Background(), bookID)
	require.NoError(t, err)

	_, err = svc.ReturnBook(context.Background(), bookID)
	assert.ErrorIs(t, err, circulation.ErrBookNotBorrowed)
}

func TestOperationsOnMissingStatus(t *testing.T) {
	svc := circulation.NewService(newMemStore())
	bookID := uuid.New()

	_, err := svc.GetBookStatus(context.Background(), bookID)
	assert.ErrorIs(t, err, circulation.ErrBookStatusNotFound)

	_, err = svc.BorrowBook(context.Background(), bookID)
	assert.ErrorIs(t, err, circulation.ErrBookStatusNotFound)

	_, err = svc.ReturnBook(context.Background(), bookID)
	assert.ErrorIs(t, err, circulation.ErrBookStatusNotFound)
}

func TestGetAvailableBooks(t *testing.T) {
	svc := circulation.NewService(newMemStore())
	available := uuid.New()
	borrowed := uuid.New()

	for _, id := range []uuid.UUID{available, borrowed} {
		_, err := svc.CreateBookStatus(context.Background(), id)
		require.NoError(t, err)
	}
	_, err := svc.BorrowBook(context.Background(), borrowed)
	require.NoError(t, err)

	statuses, err := svc.GetAvailableBooks(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, available, statuses[0].BookID)
}

func TestConcurrentBorrowSingleWinner(t *testing.T) {
	svc := circulation.NewService(newMemStore())
	bookID := uuid.New()

	_, err := svc.CreateBookStatus(context.Background(), bookID)
	require.NoError(t, err)

	const attempts = 32
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.BorrowBook(context.Background(), bookID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, circulation.ErrBookNotAvailable):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)
}
