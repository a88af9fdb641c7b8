// Package runner executes scenario definitions with a pool of virtual users
// and records request outcomes into a stats collector. It exists to drive
// the reporting sink from the bundled CLI; production load frameworks bring
// their own execution engine and feed the sink directly.
package runner

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/loadsink/internal/scenario"
	"github.com/torosent/loadsink/internal/stats"
)

const maxBodyBytes = 64 * 1024

// HTTPError represents a response with a failure status code.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http status %d", e.StatusCode)
}

// Options configures a Runner.
type Options struct {
	Definition *scenario.Definition
	Collector  *stats.Collector
	// Client defaults to an http.Client with a 30s timeout.
	Client *http.Client
	// RatePerSecond caps the request rate per scenario; 0 means unlimited.
	RatePerSecond int
	// OnResponse is invoked with the body of each successful response.
	OnResponse func(scenarioName string, step scenario.Step, body []byte)
}

// Runner drives the virtual users.
type Runner struct {
	opt Options
}

// New creates a Runner, applying defaults for unset options.
func New(opt Options) *Runner {
	if opt.Client == nil {
		opt.Client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Runner{opt: opt}
}

// Run executes every scenario until the context ends. Each scenario gets its
// configured number of virtual users, all pacing through one shared limiter.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, sc := range r.opt.Definition.Scenarios {
		r.opt.Collector.SetTargetUsers(sc.Name, int64(sc.Users))

		limiter := rate.NewLimiter(rate.Inf, 0)
		if r.opt.RatePerSecond > 0 {
			limiter = rate.NewLimiter(rate.Limit(r.opt.RatePerSecond), 1)
		}

		for i := 0; i < sc.Users; i++ {
			wg.Add(1)
			go func(sc scenario.Scenario) {
				defer wg.Done()
				r.user(ctx, sc, limiter)
			}(sc)
		}
	}
	wg.Wait()
}

func (r *Runner) user(ctx context.Context, sc scenario.Scenario, limiter *rate.Limiter) {
	for {
		for _, step := range sc.Steps {
			if ctx.Err() != nil {
				return
			}
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			r.do(ctx, sc.Name, step)
		}
	}
}

func (r *Runner) do(ctx context.Context, scenarioName string, step scenario.Step) {
	method := step.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if step.Body != "" {
		bodyReader = strings.NewReader(step.Body)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, method, step.URL, bodyReader)
	if err != nil {
		r.opt.Collector.Record(scenarioName, step.Name, time.Since(start), err)
		return
	}
	for key, value := range step.Headers {
		req.Header.Set(key, value)
	}

	resp, err := r.opt.Client.Do(req)
	latency := time.Since(start)
	if err != nil {
		r.opt.Collector.Record(scenarioName, step.Name, latency, err)
		return
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	_, _ = io.Copy(io.Discard, resp.Body)

	var resultErr error
	switch {
	case resp.StatusCode >= 400:
		resultErr = &HTTPError{StatusCode: resp.StatusCode}
	case readErr != nil:
		resultErr = readErr
	}

	r.opt.Collector.Record(scenarioName, step.Name, latency, resultErr)
	if resultErr == nil && r.opt.OnResponse != nil {
		r.opt.OnResponse(scenarioName, step, body)
	}
}
