package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nurdaulet-ab/account-service/internal/cache"
	"github.com/nurdaulet-ab/account-service/internal/domain"
	"github.com/nurdaulet-ab/account-service/internal/event"
	"github.com/nurdaulet-ab/account-service/internal/metrics"
	"github.com/nurdaulet-ab/account-service/internal/repository"
	"github.com/segmentio/kafka-go"
)

const dedupNamespace = "purchase"

// reader is the slice of *kafka.Reader the processor uses; tests inject a
// fake. FetchMessage blocks until a message or ctx cancellation;
// CommitMessages acknowledges at batch granularity.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Processor consumes at-least-once purchase events and applies each side
// effect at most once. Per message: claim dedup:purchase:<messageID> via
// set-if-absent; on a failed claim the message was already processed and
// is silently skipped. Effects within a batch run concurrently under a
// semaphore; the batch is committed only after every in-flight handler
// returns, and a single effect failure never blocks the commit — the
// transport does not retry past this point, so failures are logged and
// the message counts as consumed.
type Processor struct {
	reader      reader
	claims      cache.Claimer
	purchases   repository.PurchaseRepository
	logger      *slog.Logger
	batchSize   int
	flushWait   time.Duration
	concurrency int
	dedupTTL    time.Duration
}

type Config struct {
	BatchSize   int           // max messages per batch
	FlushWait   time.Duration // how long to top up a partial batch
	Concurrency int           // bounded fan-out within a batch
	DedupTTL    time.Duration // dedup marker window
}

func New(r reader, claims cache.Claimer, purchases repository.PurchaseRepository, cfg Config, logger *slog.Logger) *Processor {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 100
	}
	if cfg.FlushWait <= 0 {
		cfg.FlushWait = 500 * time.Millisecond
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 10
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = time.Hour
	}
	return &Processor{
		reader:      r,
		claims:      claims,
		purchases:   purchases,
		logger:      logger.With("component", "consumer"),
		batchSize:   cfg.BatchSize,
		flushWait:   cfg.FlushWait,
		concurrency: cfg.Concurrency,
		dedupTTL:    cfg.DedupTTL,
	}
}

func (p *Processor) Start(ctx context.Context) {
	p.logger.Info("consumer started", "batch_size", p.batchSize, "concurrency", p.concurrency)

	for {
		batch, err := p.fetchBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("consumer shut down")
				return
			}
			p.logger.Error("fetch batch", "error", err)
			continue
		}
		if len(batch) == 0 {
			continue
		}

		started := time.Now()
		p.processBatch(ctx, batch)

		if err := p.reader.CommitMessages(ctx, batch...); err != nil {
			// The effects are dedup-guarded, so a redelivery after a
			// failed commit skips them all.
			p.logger.Error("commit batch", "count", len(batch), "error", err)
			continue
		}
		metrics.EventBatchDuration.Observe(time.Since(started).Seconds())
	}
}

// fetchBatch blocks for the first message, then tops the batch up for at
// most flushWait so a trickle of traffic still commits promptly.
func (p *Processor) fetchBatch(ctx context.Context) ([]kafka.Message, error) {
	first, err := p.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	batch := []kafka.Message{first}

	topUpCtx, cancel := context.WithTimeout(ctx, p.flushWait)
	defer cancel()
	for len(batch) < p.batchSize {
		msg, err := p.reader.FetchMessage(topUpCtx)
		if err != nil {
			// Deadline hit or transport hiccup: ship what we have.
			break
		}
		batch = append(batch, msg)
	}
	return batch, nil
}

// processBatch fans messages out under the concurrency bound and waits
// for every handler before returning. Messages are independent; the dedup
// claim is the only cross-message synchronization point.
func (p *Processor) processBatch(ctx context.Context, batch []kafka.Message) {
	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup

	for _, msg := range batch {
		sem <- struct{}{}
		wg.Add(1)
		go func(m kafka.Message) {
			metrics.EventsInFlight.Inc()
			defer metrics.EventsInFlight.Dec()
			defer func() { <-sem }()
			defer wg.Done()
			p.handle(ctx, m)
		}(msg)
	}
	wg.Wait()
}

// handle applies one message. Every failure path logs and returns — an
// individual message can never fail the batch.
func (p *Processor) handle(ctx context.Context, msg kafka.Message) {
	var evt event.PurchaseEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		metrics.EventsProcessedTotal.WithLabelValues("failed").Inc()
		p.logger.Error("unmarshal event", "offset", msg.Offset, "error", err)
		return
	}

	messageID := evt.MessageID
	if messageID == "" {
		// Deterministic across redeliveries, so dedup still holds.
		messageID = fmt.Sprintf("%s-%d-%d", msg.Topic, msg.Partition, msg.Offset)
	}

	claimed, err := p.claims.Claim(ctx, cache.DedupKey(dedupNamespace, messageID), p.dedupTTL)
	if err != nil {
		metrics.EventsProcessedTotal.WithLabelValues("failed").Inc()
		p.logger.Error("dedup claim", "message_id", messageID, "error", err)
		return
	}
	if !claimed {
		metrics.EventsProcessedTotal.WithLabelValues("duplicate").Inc()
		p.logger.Debug("duplicate event skipped", "message_id", messageID)
		return
	}

	_, err = p.purchases.Create(ctx, &domain.Purchase{
		EventID:     messageID,
		UserID:      evt.UserID,
		ProductID:   evt.ProductID,
		AmountCents: evt.AmountCents,
		Currency:    evt.Currency,
	})
	switch {
	case err == nil:
		metrics.EventsProcessedTotal.WithLabelValues("applied").Inc()
	case errors.Is(err, domain.ErrDuplicatePurchase):
		// Second safety net under the claim (e.g. dedup marker expired
		// after a very late redelivery).
		metrics.EventsProcessedTotal.WithLabelValues("duplicate").Inc()
	default:
		metrics.EventsProcessedTotal.WithLabelValues("failed").Inc()
		p.logger.Error("apply purchase", "message_id", messageID, "error", err)
	}
}
