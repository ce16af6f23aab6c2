package controlsurface

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/agentkernel/core/internal/types"
)

// HTTPAPI is the gorilla/mux-routed main control surface: one route per
// ControlPlane operation.
type HTTPAPI struct {
	router *mux.Router
	plane  ControlPlane
}

// NewHTTPAPI builds the control surface router over plane.
func NewHTTPAPI(plane ControlPlane) *HTTPAPI {
	a := &HTTPAPI{router: mux.NewRouter(), plane: plane}
	a.router.Use(SecurityHeadersMiddleware)

	a.router.HandleFunc("/control/start", a.handleStart).Methods(http.MethodPost)
	a.router.HandleFunc("/control/deploy", a.handleDeploy).Methods(http.MethodPost)
	a.router.HandleFunc("/control/monitor", a.handleMonitor).Methods(http.MethodGet)
	a.router.HandleFunc("/control/shutdown", a.handleShutdown).Methods(http.MethodPost)
	a.router.HandleFunc("/control/verify", a.handleVerify).Methods(http.MethodPost)
	a.router.HandleFunc("/control/autonomous", a.handleAutonomous).Methods(http.MethodPost)
	a.router.HandleFunc("/control/self-improve", a.handleSelfImprove).Methods(http.MethodPost)

	return a
}

// ServeHTTP implements http.Handler.
func (a *HTTPAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *HTTPAPI) handleStart(w http.ResponseWriter, r *http.Request) {
	writeResult(w, a.plane.Start(r.Context()), nil)
}

func (a *HTTPAPI) handleDeploy(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Manifest string `json:"manifest"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeResult(w, types.NewError(types.KindConfiguration, "controlsurface.deploy", err), nil)
		return
	}
	writeResult(w, a.plane.Deploy(r.Context(), body.Manifest), nil)
}

func (a *HTTPAPI) handleMonitor(w http.ResponseWriter, r *http.Request) {
	snap, err := a.plane.Monitor(r.Context())
	writeResult(w, err, snap)
}

func (a *HTTPAPI) handleShutdown(w http.ResponseWriter, r *http.Request) {
	writeResult(w, a.plane.Shutdown(r.Context()), nil)
}

func (a *HTTPAPI) handleVerify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Workspace string `json:"workspace"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeResult(w, types.NewError(types.KindConfiguration, "controlsurface.verify", err), nil)
		return
	}
	report, err := a.plane.Verify(r.Context(), body.Workspace)
	writeResult(w, err, report)
}

func (a *HTTPAPI) handleAutonomous(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeResult(w, types.NewError(types.KindConfiguration, "controlsurface.autonomous", err), nil)
		return
	}
	writeResult(w, a.plane.Autonomous(r.Context(), body.Enabled), nil)
}

func (a *HTTPAPI) handleSelfImprove(w http.ResponseWriter, r *http.Request) {
	report, err := a.plane.SelfImprove(r.Context())
	writeResult(w, err, report)
}

// writeResult writes a JSON envelope `{ok, exit_code, error?, result?}`
// with an HTTP status derived from the exit code, mirroring the §6.5
// exit-code convention over HTTP.
func writeResult(w http.ResponseWriter, err error, result any) {
	code := ExitCodeFor(err)

	status := http.StatusOK
	switch code {
	case ExitValidationFailure:
		status = http.StatusBadRequest
	case ExitTokenScopeViolation:
		status = http.StatusForbidden
	case ExitUnrecoverable:
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	envelope := map[string]any{
		"ok":        err == nil,
		"exit_code": code,
	}
	if err != nil {
		envelope["error"] = err.Error()
		log.Printf("[CONTROLSURFACE] request failed: %v", err)
	}
	if result != nil {
		envelope["result"] = result
	}
	if encErr := json.NewEncoder(w).Encode(envelope); encErr != nil {
		log.Printf("[CONTROLSURFACE] failed to encode response: %v", encErr)
	}
}
