package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRunAggregatesWorstStatus(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]Check
		want   Status
	}{
		{
			name: "all up",
			checks: map[string]Check{
				"postgres": PingCheck(func(context.Context) error { return nil }, false),
			},
			want: StatusUp,
		},
		{
			name: "optional failure degrades",
			checks: map[string]Check{
				"postgres": PingCheck(func(context.Context) error { return nil }, false),
				"redis":    PingCheck(func(context.Context) error { return errors.New("refused") }, true),
			},
			want: StatusDegraded,
		},
		{
			name: "required failure is down",
			checks: map[string]Check{
				"postgres": PingCheck(func(context.Context) error { return errors.New("refused") }, false),
				"redis":    PingCheck(func(context.Context) error { return errors.New("refused") }, true),
			},
			want: StatusDown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker("test")
			for name, check := range tt.checks {
				c.Register(name, check)
			}
			report := c.Run(context.Background())
			if report.Status != tt.want {
				t.Errorf("status = %s, want %s", report.Status, tt.want)
			}
			if len(report.Components) != len(tt.checks) {
				t.Errorf("components = %d, want %d", len(report.Components), len(tt.checks))
			}
		})
	}
}

func TestReadyHandlerStatusCode(t *testing.T) {
	c := NewChecker("test")
	c.Register("postgres", PingCheck(func(context.Context) error { return errors.New("down") }, false))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("code = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
