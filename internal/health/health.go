// Package health runs named readiness checks against the expander's
// collaborators: the augmentation service, the history database and the
// platform hooks.
//
// A Checker runs every registered check concurrently, each under its own
// timeout and with panic recovery, and aggregates the results. The same
// results back the `check` command and the /healthz endpoint served next to
// the metrics.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Status is the outcome of one check.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarn    Status = "warn"
	StatusFail    Status = "fail"
	StatusUnknown Status = "unknown"
)

// DefaultTimeout bounds a check registered without one.
const DefaultTimeout = 5 * time.Second

// Result is the outcome of one check run.
type Result struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Critical bool          `json:"critical"`
	Duration time.Duration `json:"duration_ns"`
}

// Check performs one check. The Name and Duration fields of the returned
// result are filled in by the Checker.
type Check func(ctx context.Context) Result

// Component is a registered check.
type Component struct {
	Name string
	// Critical failures make the overall status fail; others only warn.
	Critical bool
	Check    Check
	Timeout  time.Duration
}

// Checker holds components in registration order.
type Checker struct {
	mu         sync.RWMutex
	components []Component
	last       map[string]Result
	ready      bool
	started    time.Time
}

// NewChecker creates an empty, not-ready Checker.
func NewChecker() *Checker {
	return &Checker{
		last:    make(map[string]Result),
		started: time.Now(),
	}
}

// Register adds comp, replacing any component with the same name.
func (c *Checker) Register(comp Component) {
	if comp.Timeout <= 0 {
		comp.Timeout = DefaultTimeout
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.components {
		if c.components[i].Name == comp.Name {
			c.components[i] = comp
			return
		}
	}
	c.components = append(c.components, comp)
}

// RegisterFunc registers check under name with the default timeout.
func (c *Checker) RegisterFunc(name string, critical bool, check Check) {
	c.Register(Component{Name: name, Critical: critical, Check: check})
}

// SetReady marks whether the process is ready to serve.
func (c *Checker) SetReady(ready bool) {
	c.mu.Lock()
	c.ready = ready
	c.mu.Unlock()
}

// Ready reports the readiness flag.
func (c *Checker) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// Run executes all checks concurrently and returns their results in
// registration order.
func (c *Checker) Run(ctx context.Context) []Result {
	c.mu.RLock()
	components := append([]Component(nil), c.components...)
	c.mu.RUnlock()

	results := make([]Result, len(components))
	var wg sync.WaitGroup
	for i, comp := range components {
		i, comp := i, comp
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = runOne(ctx, comp)
		}()
	}
	wg.Wait()

	c.mu.Lock()
	for _, r := range results {
		c.last[r.Name] = r
	}
	c.mu.Unlock()
	return results
}

// Last returns the most recent result for name.
func (c *Checker) Last(name string) (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.last[name]
	return r, ok
}

func runOne(ctx context.Context, comp Component) Result {
	ctx, cancel := context.WithTimeout(ctx, comp.Timeout)
	defer cancel()

	start := time.Now()
	done := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Fail(fmt.Sprintf("check panicked: %v", r))
			}
		}()
		done <- comp.Check(ctx)
	}()

	var r Result
	select {
	case r = <-done:
	case <-ctx.Done():
		r = Fail("check timed out: " + ctx.Err().Error())
	}
	r.Name = comp.Name
	r.Critical = comp.Critical
	r.Duration = time.Since(start)
	if r.Status == "" {
		r.Status = StatusUnknown
	}
	return r
}

// Overall aggregates results: any critical failure fails, any other
// failure or warning warns.
func Overall(results []Result) Status {
	status := StatusOK
	for _, r := range results {
		switch r.Status {
		case StatusFail, StatusUnknown:
			if r.Critical {
				return StatusFail
			}
			status = StatusWarn
		case StatusWarn:
			status = StatusWarn
		}
	}
	return status
}

// Response is the JSON body of the health endpoint.
type Response struct {
	Status     Status    `json:"status"`
	Ready      bool      `json:"ready"`
	Uptime     string    `json:"uptime"`
	Components []Result  `json:"components"`
	Timestamp  time.Time `json:"timestamp"`
}

// Handler runs the checks on each request. It answers 503 when the process
// is not ready or a critical check fails.
func (c *Checker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		results := c.Run(r.Context())
		resp := Response{
			Status:     Overall(results),
			Ready:      c.Ready(),
			Uptime:     time.Since(c.started).Round(time.Second).String(),
			Components: results,
			Timestamp:  time.Now().UTC(),
		}

		w.Header().Set("Content-Type", "application/json")
		if !resp.Ready || resp.Status == StatusFail {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(resp)
	})
}

// OK, Warn and Fail build results.
func OK(msg string) Result { return Result{Status: StatusOK, Message: msg} }
func Warn(msg string) Result { return Result{Status: StatusWarn, Message: msg} }
func Fail(msg string) Result { return Result{Status: StatusFail, Message: msg} }

// Ping adapts an error-returning probe. A nil error reports okMsg.
func Ping(probe func(ctx context.Context) error, okMsg string) Check {
	return func(ctx context.Context) Result {
		if err := probe(ctx); err != nil {
			return Fail(err.Error())
		}
		return OK(okMsg)
	}
}

// Availability adapts a platform availability probe. When it reports
// false the result has status onMissing.
func Availability(probe func() (bool, string), onMissing Status) Check {
	return func(ctx context.Context) Result {
		ok, reason := probe()
		if ok {
			return OK(reason)
		}
		return Result{Status: onMissing, Message: reason}
	}
}
