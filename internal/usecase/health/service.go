package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status is the aggregated state reported by /health.
type Status string

const (
	Healthy   Status = "ok"
	Degraded  Status = "degraded"
	Unhealthy Status = "error"
)

// CheckResult is the outcome of one backend probe.
type CheckResult string

const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

// Component names.
const (
	Database = "database"
	Search   = "search"
)

const defaultCheckTimeout = 2 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type component struct {
	name     string
	pinger   Pinger
	critical bool
}

// Service probes the backends. Losing the document store makes the API
// unhealthy; losing search only degrades it since reads still work.
type Service struct {
	components []component
	timeout    time.Duration
}

// New creates a Service. search may be nil.
func New(db, search Pinger) *Service {
	s := &Service{timeout: defaultCheckTimeout}
	s.components = append(s.components, component{name: Database, pinger: db, critical: true})
	if search != nil {
		s.components = append(s.components, component{name: Search, pinger: search})
	}
	return s
}

// WithTimeout bounds each probe.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check probes all components concurrently.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult, len(s.components))
		g      errgroup.Group
	)
	for _, c := range s.components {
		g.Go(func() error {
			res := s.probe(ctx, c.pinger)
			mu.Lock()
			checks[c.name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	status := Healthy
	for _, c := range s.components {
		if checks[c.name] == CheckOK {
			continue
		}
		if c.critical {
			status = Unhealthy
			break
		}
		status = Degraded
	}
	return Report{Status: status, Checks: checks}
}

func (s *Service) probe(ctx context.Context, p Pinger) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return CheckError
	}
	return CheckOK
}
