package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func static(r Result) Check {
	return func(context.Context) Result { return r }
}

func TestRunKeepsRegistrationOrder(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("b", true, static(OK("fine")))
	c.RegisterFunc("a", false, static(Warn("meh")))
	c.RegisterFunc("c", true, func(ctx context.Context) Result {
		time.Sleep(10 * time.Millisecond)
		return OK("slow")
	})

	results := c.Run(context.Background())
	require.Len(t, results, 3)
	assert.Equal(t, "b", results[0].Name)
	assert.Equal(t, "a", results[1].Name)
	assert.Equal(t, "c", results[2].Name)
	assert.True(t, results[0].Critical)
	assert.False(t, results[1].Critical)
	assert.GreaterOrEqual(t, results[2].Duration, 10*time.Millisecond)

	last, ok := c.Last("a")
	require.True(t, ok)
	assert.Equal(t, StatusWarn, last.Status)
}

func TestRegisterReplacesByName(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("svc", true, static(Fail("down")))
	c.RegisterFunc("svc", true, static(OK("up")))

	results := c.Run(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, StatusOK, results[0].Status)
}

func TestRunTimesOut(t *testing.T) {
	c := NewChecker()
	c.Register(Component{
		Name:     "stuck",
		Critical: true,
		Timeout:  20 * time.Millisecond,
		Check: func(ctx context.Context) Result {
			<-ctx.Done()
			time.Sleep(5 * time.Millisecond)
			return OK("too late")
		},
	})

	results := c.Run(context.Background())
	assert.Equal(t, StatusFail, results[0].Status)
	assert.Contains(t, results[0].Message, "timed out")
	// Let the abandoned check goroutine finish before goleak looks.
	time.Sleep(20 * time.Millisecond)
}

func TestRunRecoversPanic(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("boom", true, func(context.Context) Result { panic("kaboom") })

	results := c.Run(context.Background())
	assert.Equal(t, StatusFail, results[0].Status)
	assert.Contains(t, results[0].Message, "kaboom")
}

func TestEmptyStatusIsUnknown(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("blank", false, static(Result{}))
	assert.Equal(t, StatusUnknown, c.Run(context.Background())[0].Status)
}

func TestOverall(t *testing.T) {
	tests := []struct {
		name    string
		results []Result
		want    Status
	}{
		{"empty", nil, StatusOK},
		{"all ok", []Result{{Status: StatusOK, Critical: true}, {Status: StatusOK}}, StatusOK},
		{"warning", []Result{{Status: StatusOK, Critical: true}, {Status: StatusWarn}}, StatusWarn},
		{"non-critical failure", []Result{{Status: StatusFail}}, StatusWarn},
		{"critical failure", []Result{{Status: StatusWarn}, {Status: StatusFail, Critical: true}}, StatusFail},
		{"critical unknown", []Result{{Status: StatusUnknown, Critical: true}}, StatusFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overall(tt.results))
		})
	}
}

func TestPingAndAvailability(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, OK("db ok"), Ping(func(context.Context) error { return nil }, "db ok")(ctx))
	assert.Equal(t, Fail("locked"), Ping(func(context.Context) error { return errors.New("locked") }, "db ok")(ctx))

	present := func() (bool, string) { return true, "hook installed" }
	missing := func() (bool, string) { return false, "no display" }
	assert.Equal(t, OK("hook installed"), Availability(present, StatusFail)(ctx))
	assert.Equal(t, Warn("no display"), Availability(missing, StatusWarn)(ctx))
}

func TestHandler(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("history", true, static(OK("fine")))
	c.RegisterFunc("service", false, static(Fail("unreachable")))

	get := func() (*http.Response, Response) {
		t.Helper()
		rec := httptest.NewRecorder()
		c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		var body Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return rec.Result(), body
	}

	resp, body := get()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.False(t, body.Ready)

	c.SetReady(true)
	resp, body = get()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, StatusWarn, body.Status)
	require.Len(t, body.Components, 2)
	assert.Equal(t, "unreachable", body.Components[1].Message)

	c.RegisterFunc("history", true, static(Fail("disk full")))
	resp, body = get()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, StatusFail, body.Status)
}
