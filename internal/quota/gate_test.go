package quota_test

import (
	"context"
	"errors"
	"testing"

	"ppt2video/internal/entity"
	"ppt2video/internal/quota"
)

type fakeCounter struct {
	count int
	err   error
	calls int
}

func (c *fakeCounter) CountActive(ctx context.Context, owner string) (int, error) {
	c.calls++
	return c.count, c.err
}

func TestLimitForFallsBack(t *testing.T) {
	g := quota.NewGate(map[string]int{"vip": quota.Unlimited, "free": 1}, 1, &fakeCounter{})

	if got := g.LimitFor("vip"); got != quota.Unlimited {
		t.Fatalf("vip limit=%d, want -1", got)
	}
	if got := g.LimitFor("free"); got != 1 {
		t.Fatalf("free limit=%d, want 1", got)
	}
	if got := g.LimitFor("unknown-role"); got != 1 {
		t.Fatalf("fallback limit=%d, want 1", got)
	}
}

func TestUnlimitedRoleSkipsCounting(t *testing.T) {
	counter := &fakeCounter{count: 9000}
	g := quota.NewGate(map[string]int{"vip": quota.Unlimited}, 1, counter)

	dec, err := g.CanAdmit(context.Background(), "u1", "vip")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.Allowed {
		t.Fatal("unlimited role must always be admitted")
	}
	if counter.calls != 0 {
		t.Fatalf("counter called %d times for unlimited role", counter.calls)
	}
	if dec.Err() != nil {
		t.Fatalf("allowed decision produced error: %v", dec.Err())
	}
}

func TestRefusalAtLimit(t *testing.T) {
	counter := &fakeCounter{count: 1}
	g := quota.NewGate(map[string]int{"free": 1}, 1, counter)

	dec, err := g.CanAdmit(context.Background(), "u1", "free")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Allowed {
		t.Fatal("expected refusal at limit")
	}

	var qe *entity.QuotaError
	if !errors.As(dec.Err(), &qe) {
		t.Fatalf("expected QuotaError, got %v", dec.Err())
	}
	if qe.Limit != 1 || qe.Count != 1 || qe.Role != "free" {
		t.Fatalf("unexpected quota error fields: %+v", qe)
	}
}

func TestAdmissionUnderLimit(t *testing.T) {
	counter := &fakeCounter{count: 0}
	g := quota.NewGate(map[string]int{"free": 1}, 1, counter)

	dec, err := g.CanAdmit(context.Background(), "u1", "free")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.Allowed {
		t.Fatal("expected admission under limit")
	}
}

func TestZeroLimitDisablesRole(t *testing.T) {
	g := quota.NewGate(map[string]int{"suspended": 0}, 1, &fakeCounter{count: 0})

	dec, err := g.CanAdmit(context.Background(), "u1", "suspended")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Allowed {
		t.Fatal("zero limit must refuse every submission")
	}
}

func TestCounterErrorPropagates(t *testing.T) {
	boom := errors.New("store down")
	g := quota.NewGate(nil, 1, &fakeCounter{err: boom})

	if _, err := g.CanAdmit(context.Background(), "u1", "free"); !errors.Is(err, boom) {
		t.Fatalf("expected counter error, got %v", err)
	}
}
