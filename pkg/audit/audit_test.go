package audit

import (
	"bytes"
	"context"
	"testing"

	"bookswap/pkg/database"
	"bookswap/pkg/exchange"
	"bookswap/pkg/logging"
	"bookswap/pkg/metrics"
	"bookswap/pkg/models"
	"bookswap/pkg/queue"
	"bookswap/pkg/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	store   *store.Store
	queue   *queue.Queue
	metrics *metrics.Exchange
	logs    *bytes.Buffer
	book    *models.Book
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	st := store.New(db)

	book := &models.Book{Title: "B", Author: "A", Genre: "g", Location: "l", OwnerID: "owner"}
	require.NoError(t, st.CreateBook(context.Background(), book))

	return &fixture{
		db:      db,
		store:   st,
		queue:   queue.NewQueue(),
		metrics: metrics.NewExchange(prometheus.NewRegistry()),
		logs:    &bytes.Buffer{},
		book:    book,
	}
}

func (f *fixture) auditor(stores store.Stores, maxRetries int) *Auditor {
	return New(stores, f.queue, logging.NewWithWriter(f.logs, "test", "debug"), Options{
		MaxRetries: maxRetries,
		Metrics:    f.metrics,
	})
}

func (f *fixture) status(t *testing.T) models.BookStatus {
	t.Helper()
	book, err := f.store.GetBook(context.Background(), f.book.ID)
	require.NoError(t, err)
	return book.Status
}

func TestScanAndRepairRentedWithoutHolder(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)
	require.NoError(t, f.store.UpdateBookStatus(ctx, f.book.ID, models.BookRented))
	a := f.auditor(f.store, 3)

	report, err := a.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, report.Drifts, 1)
	assert.Equal(t, exchange.DriftRentedWithoutHolder, report.Drifts[0].Kind)
	assert.Equal(t, 1, report.Enqueued)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AuditDrift.WithLabelValues(string(exchange.DriftRentedWithoutHolder))))

	res := a.Drain(ctx)
	assert.Equal(t, 1, res.Repaired)
	assert.Equal(t, models.BookAvailable, f.status(t))
	assert.Equal(t, 0, f.queue.Size())
	assert.Contains(t, f.logs.String(), "book status repaired")
}

func TestRepairHeldBook(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)
	require.NoError(t, f.store.CreateTransaction(ctx, &models.Transaction{BookID: f.book.ID, OwnerID: "owner", BorrowerID: "b", Status: models.StatusActive}))

	require.NoError(t, f.auditor(f.store, 3).Run(ctx))
	assert.Equal(t, models.BookRented, f.status(t))
}

func TestDrainSkipsResolvedDrift(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)
	a := f.auditor(f.store, 3)
	f.queue.Enqueue(&queue.RepairRequest{BookID: f.book.ID, Status: models.BookAvailable, MaxRetries: 3})

	res := a.Drain(ctx)
	assert.Equal(t, 1, res.Resolved)
	assert.Equal(t, 0, res.Repaired)
}

func TestDrainDropsDeletedBook(t *testing.T) {
	f := setupFixture(t)
	f.queue.Enqueue(&queue.RepairRequest{BookID: "gone", Status: models.BookAvailable, MaxRetries: 3})

	res := f.auditor(f.store, 3).Drain(context.Background())
	assert.Equal(t, 1, res.Dropped)
}

// stuckStores never wins the compare-and-set, as if the owner kept
// editing the book.
type stuckStores struct{ *store.Store }

func (s stuckStores) Atomic(ctx context.Context, fn func(store.Stores) error) error {
	return s.Store.Atomic(ctx, func(st store.Stores) error { return fn(stuckTx{st}) })
}

type stuckTx struct{ store.Stores }

func (stuckTx) CompareAndSetBookStatus(context.Context, string, []models.BookStatus, models.BookStatus) (bool, error) {
	return false, nil
}

func TestFailedRepairRetriesThenGivesUp(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)
	require.NoError(t, f.store.UpdateBookStatus(ctx, f.book.ID, models.BookRented))
	a := f.auditor(stuckStores{f.store}, 2)

	_, err := a.Scan(ctx)
	require.NoError(t, err)

	first := a.Drain(ctx)
	assert.Equal(t, 1, first.Requeued)
	require.Equal(t, 1, f.queue.Size())
	pending := a.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, f.book.ID, pending[0].BookID)
	assert.Equal(t, 1, pending[0].RetryCount)

	second := a.Drain(ctx)
	assert.Equal(t, 1, second.Dropped)
	assert.Equal(t, 0, f.queue.Size())
	assert.Empty(t, a.Pending())
	assert.Contains(t, f.logs.String(), "giving up on book repair")
	assert.Equal(t, models.BookRented, f.status(t))
}

func TestMultipleHoldersOnlyReported(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)
	// simulate data written before the holder index existed
	require.NoError(t, f.db.Exec("DROP INDEX uq_exchange_book_holder").Error)
	require.NoError(t, f.store.UpdateBookStatus(ctx, f.book.ID, models.BookRented))
	for _, borrower := range []string{"b1", "b2"} {
		require.NoError(t, f.store.CreateTransaction(ctx, &models.Transaction{BookID: f.book.ID, OwnerID: "owner", BorrowerID: borrower, Status: models.StatusActive}))
	}

	report, err := f.auditor(f.store, 3).Scan(ctx)
	require.NoError(t, err)
	require.Len(t, report.Drifts, 1)
	assert.Equal(t, exchange.DriftMultipleHolders, report.Drifts[0].Kind)
	assert.Equal(t, 0, report.Enqueued)
	assert.Equal(t, 0, f.queue.Size())
	assert.Contains(t, f.logs.String(), "book needs manual repair")
}
