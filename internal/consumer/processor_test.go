package consumer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/nurdaulet-ab/account-service/internal/cache"
	"github.com/nurdaulet-ab/account-service/internal/domain"
	"github.com/nurdaulet-ab/account-service/internal/event"
	"github.com/segmentio/kafka-go"
)

// fakeReader serves a fixed queue; once drained it blocks until ctx is
// done, like a real reader with no traffic.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed [][]kafka.Message
	commitErr error
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.commitErr != nil {
		return r.commitErr
	}
	r.committed = append(r.committed, msgs)
	return nil
}

func (r *fakeReader) commits() [][]kafka.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]kafka.Message(nil), r.committed...)
}

type fakeClaimer struct {
	mu     sync.Mutex
	claims map[string]bool
	err    error
}

func (c *fakeClaimer) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if c.claims == nil {
		c.claims = map[string]bool{}
	}
	if c.claims[key] {
		return false, nil
	}
	c.claims[key] = true
	return true, nil
}

func (c *fakeClaimer) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.claims)
}

type fakePurchases struct {
	mu      sync.Mutex
	created []*domain.Purchase
	err     error
}

func (r *fakePurchases) Create(_ context.Context, p *domain.Purchase) (*domain.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, existing := range r.created {
		if existing.EventID == p.EventID {
			return nil, domain.ErrDuplicatePurchase
		}
	}
	cp := *p
	r.created = append(r.created, &cp)
	out := cp
	return &out, nil
}

func (r *fakePurchases) ListByUserID(_ context.Context, _ string, _ int) ([]*domain.Purchase, error) {
	return nil, nil
}

func (r *fakePurchases) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.created)
}

func purchaseMsg(t *testing.T, messageID string, offset int64) kafka.Message {
	t.Helper()
	raw, err := event.PurchaseEvent{
		MessageID:   messageID,
		UserID:      "u1",
		ProductID:   "plan-pro",
		AmountCents: 1999,
		Currency:    "USD",
	}.Marshal()
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return kafka.Message{Topic: "purchases", Partition: 0, Offset: offset, Value: raw}
}

func newTestProcessor(r reader, claims cache.Claimer, purchases *fakePurchases) *Processor {
	return New(r, claims, purchases, Config{
		BatchSize:   10,
		FlushWait:   20 * time.Millisecond,
		Concurrency: 4,
		DedupTTL:    time.Minute,
	}, slog.Default())
}

func TestProcessBatch_RedeliveriesApplyOnce(t *testing.T) {
	purchases := &fakePurchases{}
	p := newTestProcessor(&fakeReader{}, &fakeClaimer{}, purchases)

	batch := []kafka.Message{
		purchaseMsg(t, "m1", 0),
		purchaseMsg(t, "m1", 1),
		purchaseMsg(t, "m1", 2),
	}
	p.processBatch(context.Background(), batch)

	if purchases.count() != 1 {
		t.Fatalf("expected exactly 1 purchase, got %d", purchases.count())
	}
}

func TestProcessBatch_DistinctEventsAllApply(t *testing.T) {
	purchases := &fakePurchases{}
	p := newTestProcessor(&fakeReader{}, &fakeClaimer{}, purchases)

	batch := []kafka.Message{
		purchaseMsg(t, "m1", 0),
		purchaseMsg(t, "m2", 1),
		purchaseMsg(t, "m3", 2),
	}
	p.processBatch(context.Background(), batch)

	if purchases.count() != 3 {
		t.Fatalf("expected 3 purchases, got %d", purchases.count())
	}
}

func TestHandle_FallbackIdentityFromPosition(t *testing.T) {
	purchases := &fakePurchases{}
	p := newTestProcessor(&fakeReader{}, &fakeClaimer{}, purchases)
	ctx := context.Background()

	// No message_id on the wire: identity comes from the position, which
	// is stable across redeliveries.
	p.handle(ctx, purchaseMsg(t, "", 7))
	p.handle(ctx, purchaseMsg(t, "", 7))
	if purchases.count() != 1 {
		t.Fatalf("expected redelivery skipped, got %d purchases", purchases.count())
	}

	p.handle(ctx, purchaseMsg(t, "", 8))
	if purchases.count() != 2 {
		t.Fatalf("expected a different offset to apply, got %d purchases", purchases.count())
	}
}

func TestHandle_BadPayloadConsumed(t *testing.T) {
	purchases := &fakePurchases{}
	claims := &fakeClaimer{}
	p := newTestProcessor(&fakeReader{}, claims, purchases)

	p.handle(context.Background(), kafka.Message{Value: []byte("{not json")})

	if claims.size() != 0 {
		t.Fatal("bad payload must not claim a dedup key")
	}
	if purchases.count() != 0 {
		t.Fatal("bad payload must not apply an effect")
	}
}

func TestHandle_DuplicateRowUnderFreshClaim(t *testing.T) {
	purchases := &fakePurchases{}
	// The row exists but the dedup marker does not (e.g. it expired after
	// a very late redelivery). The unique constraint catches it.
	if _, err := purchases.Create(context.Background(), &domain.Purchase{EventID: "m1"}); err != nil {
		t.Fatalf("seed purchase: %v", err)
	}
	p := newTestProcessor(&fakeReader{}, &fakeClaimer{}, purchases)

	p.handle(context.Background(), purchaseMsg(t, "m1", 0))

	if purchases.count() != 1 {
		t.Fatalf("expected the seeded purchase only, got %d", purchases.count())
	}
}

func TestHandle_ClaimErrorSkipsEffect(t *testing.T) {
	purchases := &fakePurchases{}
	p := newTestProcessor(&fakeReader{}, &fakeClaimer{err: errors.New("cache down")}, purchases)

	p.handle(context.Background(), purchaseMsg(t, "m1", 0))

	if purchases.count() != 0 {
		t.Fatal("effect must not run when the claim cannot be taken")
	}
}

func TestFetchBatch_ShipsPartialBatchAfterFlushWait(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{
		purchaseMsg(t, "m1", 0),
		purchaseMsg(t, "m2", 1),
		purchaseMsg(t, "m3", 2),
	}}
	p := newTestProcessor(r, &fakeClaimer{}, &fakePurchases{})

	batch, err := p.fetchBatch(context.Background())
	if err != nil {
		t.Fatalf("fetch batch: %v", err)
	}
	if len(batch) != 3 {
		t.Fatalf("expected partial batch of 3, got %d", len(batch))
	}
}

func TestFetchBatch_CapsAtBatchSize(t *testing.T) {
	r := &fakeReader{}
	for i := range 5 {
		r.queue = append(r.queue, purchaseMsg(t, "", int64(i)))
	}
	p := New(r, &fakeClaimer{}, &fakePurchases{}, Config{
		BatchSize: 3,
		FlushWait: 20 * time.Millisecond,
	}, slog.Default())

	batch, err := p.fetchBatch(context.Background())
	if err != nil {
		t.Fatalf("fetch batch: %v", err)
	}
	if len(batch) != 3 {
		t.Fatalf("expected batch capped at 3, got %d", len(batch))
	}
}

func TestStart_CommitsBatchAfterProcessing(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{
		purchaseMsg(t, "m1", 0),
		purchaseMsg(t, "m2", 1),
	}}
	purchases := &fakePurchases{}
	p := newTestProcessor(r, &fakeClaimer{}, purchases)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for len(r.commits()) == 0 {
		select {
		case <-deadline:
			t.Fatal("batch never committed")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not shut down")
	}

	commits := r.commits()
	if len(commits) != 1 || len(commits[0]) != 2 {
		t.Fatalf("expected one commit of 2 messages, got %v", commits)
	}
	if purchases.count() != 2 {
		t.Fatalf("expected 2 purchases before commit, got %d", purchases.count())
	}
}

func TestStart_EffectFailureStillCommits(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{purchaseMsg(t, "m1", 0)}}
	purchases := &fakePurchases{err: errors.New("db down")}
	p := newTestProcessor(r, &fakeClaimer{}, purchases)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for len(r.commits()) == 0 {
		select {
		case <-deadline:
			t.Fatal("batch never committed")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if purchases.count() != 0 {
		t.Fatalf("expected no purchases, got %d", purchases.count())
	}
}
