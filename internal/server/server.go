package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/schema"

	"github.com/eagraf/kitsune-hub/internal/api"
	"github.com/eagraf/kitsune-hub/internal/batch"
	"github.com/eagraf/kitsune-hub/internal/hub"
	"github.com/eagraf/kitsune-hub/internal/installer"
	"github.com/eagraf/kitsune-hub/internal/utils"
)

// Server exposes the catalog and batch orchestrator over HTTP.
type Server struct {
	catalog *hub.Catalog
	batches *batch.Orchestrator
}

// NewServer returns a hub API server.
func NewServer(catalog *hub.Catalog, batches *batch.Orchestrator) *Server {
	return &Server{
		catalog: catalog,
		batches: batches,
	}
}

var formDecoder = schema.NewDecoder()

func init() {
	formDecoder.IgnoreUnknownKeys(true)
}

func (s *Server) GetRoutes() []api.Route {
	return []api.Route{
		api.NewBasicRoute(http.MethodGet, "/api/installers", s.ListInstallers),
		api.NewBasicRoute(http.MethodGet, "/api/installers/{id}", s.GetInstaller),
		api.NewBasicRoute(http.MethodPost, "/api/installers/{id}/install", s.RunAction(installer.ActionInstall)),
		api.NewBasicRoute(http.MethodPost, "/api/installers/{id}/update", s.RunAction(installer.ActionUpdate)),
		api.NewBasicRoute(http.MethodPost, "/api/installers/{id}/uninstall", s.RunAction(installer.ActionUninstall)),
		api.NewBasicRoute(http.MethodGet, "/api/installers/{id}/logs", s.GetLogs),
		api.NewBasicRoute(http.MethodPost, "/api/installers/batch-install", s.RunBatch(installer.ActionInstall)),
		api.NewBasicRoute(http.MethodPost, "/api/installers/batch-update", s.RunBatch(installer.ActionUpdate)),
		api.NewBasicRoute(http.MethodPost, "/api/installers/batch-uninstall", s.RunBatch(installer.ActionUninstall)),
		api.NewBasicRoute(http.MethodPost, "/api/installers/reload", s.Reload),
		api.NewBasicRoute(http.MethodGet, "/api/categories", s.ListCategories),
		api.NewBasicRoute(http.MethodGet, "/api/logs", s.ListAllLogs),
	}
}

// ListInstallers returns the info of every installer, optionally narrowed by ?category= and ?installed=.
func (s *Server) ListInstallers(w http.ResponseWriter, r *http.Request) {
	var filter hub.Filter
	err := formDecoder.Decode(&filter, r.URL.Query())
	if err != nil {
		utils.LogAndHTTPError(w, err, "parsing url", http.StatusBadRequest)
		return
	}

	infos, err := s.catalog.List(r.Context(), filter)
	if err != nil {
		utils.LogAndHTTPError(w, err, "listing installers", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, infos)
}

func (s *Server) GetInstaller(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	info, err := s.catalog.Info(r.Context(), id)
	if errors.Is(err, hub.ErrNotFound) {
		utils.LogAndHTTPError(w, err, fmt.Sprintf("getting installer %s", id), http.StatusNotFound)
		return
	} else if err != nil {
		utils.LogAndHTTPError(w, err, fmt.Sprintf("getting installer %s", id), http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, info)
}

// RunAction returns the handler for one mutating action. The action keeps running if the client
// goes away so the log always gets its outcome entry.
func (s *Server) RunAction(action installer.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		ctx := context.WithoutCancel(r.Context())

		res, err := s.catalog.Run(ctx, id, action)
		if errors.Is(err, hub.ErrNotFound) {
			utils.LogAndHTTPError(w, err, fmt.Sprintf("running %s for %s", action, id), http.StatusNotFound)
			return
		} else if err != nil {
			utils.LogAndHTTPError(w, err, fmt.Sprintf("running %s for %s", action, id), http.StatusInternalServerError)
			return
		}
		utils.WriteJSON(w, res)
	}
}

func (s *Server) GetLogs(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, s.catalog.Logs(r.PathValue("id")))
}

func (s *Server) RunBatch(action installer.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req batch.Request
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			utils.LogAndHTTPError(w, err, "reading request body", http.StatusBadRequest)
			return
		}

		resp := s.batches.Run(context.WithoutCancel(r.Context()), action, req.IDs)
		utils.WriteJSON(w, resp)
	}
}

type ReloadResponse struct {
	Count int `json:"count"`
}

func (s *Server) Reload(w http.ResponseWriter, r *http.Request) {
	count, err := s.catalog.Reload()
	if err != nil {
		utils.LogAndHTTPError(w, err, "reloading installers", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, &ReloadResponse{Count: count})
}

func (s *Server) ListCategories(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, s.catalog.Categories())
}

func (s *Server) ListAllLogs(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, s.catalog.AllLogs())
}
