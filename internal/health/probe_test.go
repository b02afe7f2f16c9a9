package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestProbeRunnerAllUp(t *testing.T) {
	runner := NewProbeRunner(time.Second, 0,
		Check{Name: "db", Probe: func(context.Context) error { return nil }},
		Check{Name: "redis", Probe: func(context.Context) error { return nil }},
	)

	ready, results := runner.Ready(context.Background())
	if !ready {
		t.Fatal("expected ready")
	}
	if len(results) != 2 || results[0].Status != "up" || results[1].Status != "up" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestProbeRunnerReportsFailure(t *testing.T) {
	runner := NewProbeRunner(time.Second, 0,
		Check{Name: "db", Probe: func(context.Context) error { return nil }},
		Check{Name: "redis", Probe: func(context.Context) error { return errors.New("connection refused") }},
	)

	ready, results := runner.Ready(context.Background())
	if ready {
		t.Fatal("expected not ready")
	}
	if results[1].Status != "down" || results[1].Error != "connection refused" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestProbeRunnerCachesResults(t *testing.T) {
	calls := 0
	runner := NewProbeRunner(time.Second, time.Minute,
		Check{Name: "db", Probe: func(context.Context) error { calls++; return nil }},
	)

	runner.Ready(context.Background())
	runner.Ready(context.Background())
	if calls != 1 {
		t.Fatalf("expected cached second call, probes ran %d times", calls)
	}
}

func TestProbeRunnerHonorsTimeout(t *testing.T) {
	runner := NewProbeRunner(10*time.Millisecond, 0,
		Check{Name: "slow", Probe: func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
				return nil
			}
		}},
	)

	ready, results := runner.Ready(context.Background())
	if ready {
		t.Fatal("expected not ready for slow probe")
	}
	if results[0].Status != "down" {
		t.Fatalf("unexpected results: %+v", results)
	}
}
