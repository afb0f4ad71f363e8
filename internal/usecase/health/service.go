package health

import (
	"context"
	"sync"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

const defaultCheckTimeout = 5 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	cache     Pinger
	embedding Checker
	llm       Checker
	timeout   time.Duration
}

// New creates a Service. Any dependency can be nil; nil components are not reported.
func New(cache Pinger, embedding, llm Checker) *Service {
	return &Service{cache: cache, embedding: embedding, llm: llm, timeout: defaultCheckTimeout}
}

// Check runs all health checks in parallel, each under its own deadline.
// The result is Unhealthy when both providers fail, since no question can be answered.
func (s *Service) Check(ctx context.Context) Report {
	probes := make(map[string]func(context.Context) error)
	if s.cache != nil {
		probes["cache"] = s.cache.Ping
	}
	if s.embedding != nil {
		probes["embedding"] = s.embedding.HealthCheck
	}
	if s.llm != nil {
		probes["llm"] = s.llm.HealthCheck
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]CheckResult, len(probes))
	)
	for name, probe := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			res := CheckOK
			if err := probe(pctx); err != nil {
				res = CheckError
			}
			mu.Lock()
			checks[name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if checks["embedding"] == CheckError && checks["llm"] == CheckError {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}
