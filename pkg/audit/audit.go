// Package audit finds books whose status drifted from their transactions and
// repairs them in the background.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bookswap/pkg/apperr"
	"bookswap/pkg/exchange"
	"bookswap/pkg/metrics"
	"bookswap/pkg/models"
	"bookswap/pkg/queue"
	"bookswap/pkg/store"
)

type Options struct {
	MaxRetries int
	Backoff    time.Duration
	Metrics    *metrics.Exchange
}

type Auditor struct {
	stores     store.Stores
	queue      *queue.Queue
	log        *slog.Logger
	metrics    *metrics.Exchange
	maxRetries int
	backoff    time.Duration
	now        func() time.Time
}

func New(stores store.Stores, q *queue.Queue, log *slog.Logger, opts Options) *Auditor {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	return &Auditor{
		stores:     stores,
		queue:      q,
		log:        log,
		metrics:    opts.Metrics,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		now:        time.Now,
	}
}

type Report struct {
	Drifts   []exchange.Drift
	Enqueued int
}

type DrainResult struct {
	Repaired int
	Resolved int
	Requeued int
	Dropped  int
}

// Scan checks every book and queues a repair for each repairable drift.
// Drift with several holders needs a human and is only reported.
func (a *Auditor) Scan(ctx context.Context) (Report, error) {
	drifts, err := exchange.CheckInvariants(ctx, a.stores, a.stores)
	if err != nil {
		return Report{}, err
	}

	report := Report{Drifts: drifts}
	for _, d := range drifts {
		if a.metrics != nil {
			a.metrics.AuditDrift.WithLabelValues(string(d.Kind)).Inc()
		}
		if !d.Repairable() {
			a.log.Error("book needs manual repair", "book_id", d.BookID, "kind", d.Kind, "status", d.Status, "holders", d.Holders)
			continue
		}
		a.log.Warn("book status drift", "book_id", d.BookID, "kind", d.Kind, "status", d.Status, "want", d.Want)
		a.queue.Enqueue(&queue.RepairRequest{
			BookID:     d.BookID,
			Status:     d.Want,
			Reason:     string(d.Kind),
			RetryAt:    a.now(),
			MaxRetries: a.maxRetries,
		})
		report.Enqueued++
	}
	a.observeQueue()
	return report, nil
}

// Drain applies every due repair once. Failed repairs go back on the queue
// with exponential backoff until they run out of retries.
func (a *Auditor) Drain(ctx context.Context) DrainResult {
	var (
		res   DrainResult
		retry []*queue.RepairRequest
	)

	for req := a.queue.Dequeue(); req != nil; req = a.queue.Dequeue() {
		if ctx.Err() != nil {
			retry = append(retry, req)
			break
		}

		applied, err := a.repair(ctx, req)
		switch {
		case err == nil && applied:
			res.Repaired++
			a.recordRepair("ok")
			a.log.Info("book status repaired", "book_id", req.BookID, "status", req.Status, "reason", req.Reason)
		case err == nil:
			res.Resolved++
			a.recordRepair("resolved")
		case apperr.Is(err, apperr.NotFound):
			res.Dropped++
			a.recordRepair("gone")
		default:
			req.RetryCount++
			if req.Exhausted() {
				res.Dropped++
				a.recordRepair("exhausted")
				a.log.Error("giving up on book repair", "book_id", req.BookID, "attempts", req.RetryCount, "error", err)
				continue
			}
			req.RetryAt = a.now().Add(a.backoff * time.Duration(1<<(req.RetryCount-1)))
			retry = append(retry, req)
			res.Requeued++
			a.recordRepair(metrics.Result(err))
			a.log.Warn("book repair failed, will retry", "book_id", req.BookID, "retry_at", req.RetryAt, "error", err)
		}
	}

	for _, req := range retry {
		a.queue.Enqueue(req)
	}
	a.observeQueue()
	return res
}

// repair re-checks the book and moves it to the status that currently
// restores consistency, which may differ from what was queued.
func (a *Auditor) repair(ctx context.Context, req *queue.RepairRequest) (bool, error) {
	applied := false
	err := a.stores.Atomic(ctx, func(st store.Stores) error {
		d, err := exchange.CheckBook(ctx, st, st, req.BookID)
		if err != nil {
			return err
		}
		if d == nil {
			return nil
		}
		if !d.Repairable() {
			return apperr.New(apperr.InvalidState, "book %s has %d holders", d.BookID, len(d.Holders))
		}

		ok, err := st.CompareAndSetBookStatus(ctx, d.BookID, []models.BookStatus{d.Status}, d.Want)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.Conflict, "book %s changed during repair", d.BookID)
		}
		req.Status = d.Want
		applied = true
		return nil
	})
	return applied, err
}

// Pending lists the repairs still waiting on the queue.
func (a *Auditor) Pending() []*queue.RepairRequest {
	return a.queue.GetAll()
}

// Run is one scheduled audit pass.
func (a *Auditor) Run(ctx context.Context) error {
	report, err := a.Scan(ctx)
	if err != nil {
		return fmt.Errorf("audit scan: %w", err)
	}
	res := a.Drain(ctx)
	a.log.Info("audit finished",
		"drift", len(report.Drifts),
		"repaired", res.Repaired,
		"requeued", res.Requeued,
		"dropped", res.Dropped,
	)
	return nil
}

func (a *Auditor) recordRepair(result string) {
	if a.metrics != nil {
		a.metrics.RepairsApplied.WithLabelValues(result).Inc()
	}
}

func (a *Auditor) observeQueue() {
	if a.metrics != nil {
		a.metrics.RepairQueueSize.Set(float64(a.queue.Size()))
	}
}
