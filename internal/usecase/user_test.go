package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/nurdaulet-ab/account-service/internal/cache"
	"github.com/nurdaulet-ab/account-service/internal/domain"
)

type memPurchaseRepo struct {
	mu        sync.Mutex
	purchases []*domain.Purchase
	lastLimit int
}

func (r *memPurchaseRepo) Create(_ context.Context, p *domain.Purchase) (*domain.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.purchases {
		if existing.EventID == p.EventID {
			return nil, domain.ErrDuplicatePurchase
		}
	}
	stored := *p
	stored.ID = fmt.Sprintf("p-%03d", len(r.purchases)+1)
	r.purchases = append(r.purchases, &stored)
	out := stored
	return &out, nil
}

func (r *memPurchaseRepo) ListByUserID(_ context.Context, userID string, limit int) ([]*domain.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastLimit = limit
	var out []*domain.Purchase
	for _, p := range r.purchases {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func newTestUserUsecase(users ...*domain.User) (*UserUsecase, *memUserRepo, *memPurchaseRepo, *fakeStore) {
	repo := newMemUserRepo(users...)
	purchases := &memPurchaseRepo{}
	store := newFakeStore()
	u := NewUserUsecase(repo, purchases, store, time.Minute, slog.Default())
	return u, repo, purchases, store
}

func TestRegister_MirrorsSnapshot(t *testing.T) {
	u, _, _, store := newTestUserUsecase()
	ctx := context.Background()

	created, err := u.Register(ctx, "bob@test.local", "Bob")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if created.Role != domain.RoleUser || created.Verified {
		t.Fatalf("unexpected defaults: %+v", created)
	}
	if !store.has(cache.UserKey(created.ID)) {
		t.Fatal("register did not mirror the user")
	}

	got, err := u.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Email != "bob@test.local" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	u, _, _, _ := newTestUserUsecase(&domain.User{ID: "u1", Email: "bob@test.local"})

	if _, err := u.Register(context.Background(), "bob@test.local", "Bob"); !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestSetRole_EvictsMirror(t *testing.T) {
	u, _, _, store := newTestUserUsecase(&domain.User{ID: "u1", Email: "bob@test.local", Role: domain.RoleUser})
	ctx := context.Background()

	// Warm the mirror first so there is something to evict.
	if _, err := u.GetByID(ctx, "u1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if !store.has(cache.UserKey("u1")) {
		t.Fatal("mirror not populated")
	}

	if err := u.SetRole(ctx, "u1", domain.RoleAdmin); err != nil {
		t.Fatalf("set role: %v", err)
	}
	if store.has(cache.UserKey("u1")) {
		t.Fatal("stale mirror survived the role change")
	}

	got, err := u.GetByID(ctx, "u1")
	if err != nil {
		t.Fatalf("get after role change: %v", err)
	}
	if got.Role != domain.RoleAdmin {
		t.Fatalf("expected admin, got %s", got.Role)
	}
}

func TestListPurchases_ClampsLimit(t *testing.T) {
	u, _, purchases, _ := newTestUserUsecase()
	ctx := context.Background()

	cases := []struct {
		in   int
		want int
	}{
		{0, 20},
		{-5, 20},
		{101, 20},
		{50, 50},
	}
	for _, tc := range cases {
		if _, err := u.ListPurchases(ctx, "u1", tc.in); err != nil {
			t.Fatalf("list purchases(%d): %v", tc.in, err)
		}
		if purchases.lastLimit != tc.want {
			t.Fatalf("limit %d: expected clamp to %d, got %d", tc.in, tc.want, purchases.lastLimit)
		}
	}
}
