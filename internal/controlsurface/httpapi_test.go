package controlsurface

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentkernel/core/internal/types"
)

type fakePlane struct {
	startErr error
	snapshot MonitorSnapshot
}

func (f *fakePlane) Start(ctx context.Context) error { return f.startErr }
func (f *fakePlane) Deploy(ctx context.Context, manifestPath string) error {
	if manifestPath == "" {
		return types.NewError(types.KindConfiguration, "fakePlane.Deploy", errUnknownDrop("manifest"))
	}
	return nil
}
func (f *fakePlane) Monitor(ctx context.Context) (MonitorSnapshot, error) { return f.snapshot, nil }
func (f *fakePlane) Shutdown(ctx context.Context) error                  { return nil }
func (f *fakePlane) Verify(ctx context.Context, workspace string) (VerifyReport, error) {
	return VerifyReport{Workspace: workspace, Passed: true}, nil
}
func (f *fakePlane) Autonomous(ctx context.Context, enabled bool) error { return nil }
func (f *fakePlane) SelfImprove(ctx context.Context) (SelfImproveReport, error) {
	return SelfImproveReport{}, nil
}

func TestHandleStartReturnsSuccessEnvelope(t *testing.T) {
	api := NewHTTPAPI(&fakePlane{})
	req := httptest.NewRequest(http.MethodPost, "/control/start", nil)
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var envelope map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope["ok"] != true {
		t.Fatalf("expected ok=true, got %+v", envelope)
	}
}

func TestHandleDeployValidationFailureMapsTo400(t *testing.T) {
	api := NewHTTPAPI(&fakePlane{})
	body, _ := json.Marshal(map[string]string{"manifest": ""})
	req := httptest.NewRequest(http.MethodPost, "/control/deploy", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleMonitorReturnsSnapshot(t *testing.T) {
	api := NewHTTPAPI(&fakePlane{snapshot: MonitorSnapshot{AgentsOnline: 3}})
	req := httptest.NewRequest(http.MethodGet, "/control/monitor", nil)
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)

	var envelope struct {
		Result MonitorSnapshot `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Result.AgentsOnline != 3 {
		t.Fatalf("expected 3 agents online, got %d", envelope.Result.AgentsOnline)
	}
}

func TestSecurityHeadersAppliedToEveryResponse(t *testing.T) {
	api := NewHTTPAPI(&fakePlane{})
	req := httptest.NewRequest(http.MethodGet, "/control/monitor", nil)
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)

	if rec.Header().Get("Server") != "agentkernel" {
		t.Fatalf("expected generic Server header, got %q", rec.Header().Get("Server"))
	}
}

func TestExitCodeForMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, ExitSuccess},
		{types.NewError(types.KindConfiguration, "op", nil), ExitValidationFailure},
		{types.NewError(types.KindAuthorization, "op", nil), ExitTokenScopeViolation},
		{types.NewError(types.KindExternal, "op", nil), ExitUnrecoverable},
	}
	for _, c := range cases {
		if got := ExitCodeFor(c.err); got != c.want {
			t.Errorf("ExitCodeFor(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}
