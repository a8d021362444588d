package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func up(context.Context) ComponentHealth { return ComponentHealth{Status: StatusUp} }
func down(context.Context) ComponentHealth { return ComponentHealth{Status: StatusDown, Message: "gone"} }

func TestRun_WorstStatusWins(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		checks map[string]Check
		want   Status
	}{
		{"all up", map[string]Check{"a": up, "b": up}, StatusUp},
		{"degraded", map[string]Check{"a": up, "b": Optional(nil)}, StatusDegraded},
		{"down beats degraded", map[string]Check{"a": down, "b": Optional(nil)}, StatusDown},
		{"empty", map[string]Check{}, StatusUp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := NewChecker()
			for name, check := range tt.checks {
				c.Register(name, check)
			}
			report := c.Run(context.Background())
			assert.Equal(t, tt.want, report.Status)
			assert.Len(t, report.Components, len(tt.checks))
		})
	}
}

func TestOptional(t *testing.T) {
	t.Parallel()

	ok := Optional(func(context.Context) error { return nil })(context.Background())
	assert.Equal(t, StatusUp, ok.Status)

	failing := Optional(func(context.Context) error { return errors.New("refused") })(context.Background())
	assert.Equal(t, StatusDegraded, failing.Status)
	assert.Equal(t, "refused", failing.Message)
}

func TestReadyHandler(t *testing.T) {
	t.Parallel()

	c := NewChecker()
	c.Register("index", up)
	c.Register("redis", Optional(nil))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusDegraded, report.Status)

	c.Register("index", down)
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
