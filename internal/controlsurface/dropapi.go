package controlsurface

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/agentkernel/core/internal/crc"
	"github.com/agentkernel/core/internal/types"
)

func errUnknownSourceType(s string) error { return fmt.Errorf("unknown drop source type %q", s) }
func errUnknownDrop(id string) error      { return fmt.Errorf("unknown drop %q", id) }

// DropController is the subset of crc.Pipeline the drop-control surface
// drives, plus source ingestion (separated so the composition root can
// interpose a fsnotify-backed crc.Watcher in front of real drop-in
// folders, or a direct in-process ingest for RPC-originated drops).
type DropController interface {
	Ingest(manifest crc.DropManifest) *crc.Drop
	Get(dropID string) (*crc.Drop, bool)
	List() []*crc.Drop
	Cancel(dropID string) error
	Retry(dropID string) error
}

// DropAPI is the chi-routed drop-control RPC surface (§6.5): `drop
// repo|fork|mirror|stale <source>`, `status <drop_id>`, `list`, `cancel
// <drop_id>`, `retry <drop_id>`.
type DropAPI struct {
	router chi.Router
	ctrl   DropController
}

// NewDropAPI builds the drop-control router over ctrl, with permissive
// CORS suited to a locally-run control surface.
func NewDropAPI(ctrl DropController) *DropAPI {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	}))

	a := &DropAPI{router: r, ctrl: ctrl}

	r.Post("/drop/{sourceType}", a.handleDrop)
	r.Get("/status/{dropID}", a.handleStatus)
	r.Get("/list", a.handleList)
	r.Post("/cancel/{dropID}", a.handleCancel)
	r.Post("/retry/{dropID}", a.handleRetry)

	return a
}

// ServeHTTP implements http.Handler.
func (a *DropAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

var dropSourceTypes = map[string]crc.SourceType{
	"repo":   crc.SourceExternalRepo,
	"fork":   crc.SourceFork,
	"mirror": crc.SourceMirror,
	"stale":  crc.SourceStale,
}

func (a *DropAPI) handleDrop(w http.ResponseWriter, r *http.Request) {
	sourceType, ok := dropSourceTypes[chi.URLParam(r, "sourceType")]
	if !ok {
		writeResult(w, types.NewError(types.KindConfiguration, "controlsurface.drop", errUnknownSourceType(chi.URLParam(r, "sourceType"))), nil)
		return
	}

	var body struct {
		Source string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeResult(w, types.NewError(types.KindConfiguration, "controlsurface.drop", err), nil)
		return
	}

	d := a.ctrl.Ingest(crc.DropManifest{Name: body.Source, Source: body.Source, SourceType: sourceType})
	writeResult(w, nil, d)
}

func (a *DropAPI) handleStatus(w http.ResponseWriter, r *http.Request) {
	d, ok := a.ctrl.Get(chi.URLParam(r, "dropID"))
	if !ok {
		writeResult(w, types.NewError(types.KindIntegrity, "controlsurface.status", errUnknownDrop(chi.URLParam(r, "dropID"))), nil)
		return
	}
	writeResult(w, nil, d)
}

func (a *DropAPI) handleList(w http.ResponseWriter, r *http.Request) {
	writeResult(w, nil, a.ctrl.List())
}

func (a *DropAPI) handleCancel(w http.ResponseWriter, r *http.Request) {
	err := a.ctrl.Cancel(chi.URLParam(r, "dropID"))
	writeResult(w, err, nil)
}

func (a *DropAPI) handleRetry(w http.ResponseWriter, r *http.Request) {
	err := a.ctrl.Retry(chi.URLParam(r, "dropID"))
	writeResult(w, err, nil)
}
