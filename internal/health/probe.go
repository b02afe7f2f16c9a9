package health

import (
	"context"
	"sync"
	"time"
)

type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

type CheckResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ProbeRunner evaluates dependency checks for the readiness endpoint.
// Results are cached briefly so a probe storm cannot hammer the
// dependencies themselves.
type ProbeRunner struct {
	checks   []Check
	timeout  time.Duration
	cacheFor time.Duration

	mu        sync.Mutex
	lastRun   time.Time
	lastReady bool
	lastRes   []CheckResult
}

func NewProbeRunner(timeout, cacheFor time.Duration, checks ...Check) *ProbeRunner {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if cacheFor < 0 {
		cacheFor = 0
	}
	return &ProbeRunner{checks: checks, timeout: timeout, cacheFor: cacheFor}
}

func (p *ProbeRunner) Ready(ctx context.Context) (bool, []CheckResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cacheFor > 0 && time.Since(p.lastRun) < p.cacheFor && p.lastRes != nil {
		return p.lastReady, p.lastRes
	}

	ready := true
	results := make([]CheckResult, 0, len(p.checks))
	for _, check := range p.checks {
		cctx, cancel := context.WithTimeout(ctx, p.timeout)
		err := check.Probe(cctx)
		cancel()
		if err != nil {
			ready = false
			results = append(results, CheckResult{Name: check.Name, Status: "down", Error: err.Error()})
			continue
		}
		results = append(results, CheckResult{Name: check.Name, Status: "up"})
	}

	p.lastRun = time.Now()
	p.lastReady = ready
	p.lastRes = results
	return ready, results
}
