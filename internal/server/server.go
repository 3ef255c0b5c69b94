// Package server exposes the dashboard views over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"nlbwdash/internal/dashboard"
	"nlbwdash/internal/daterange"
	"nlbwdash/internal/state"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	views  *dashboard.Views
	router *mux.Router
	log    *zap.Logger
	now    func() time.Time
}

func New(views *dashboard.Views, gatherer prometheus.Gatherer, log *zap.Logger) *Server {
	s := &Server{
		views:  views,
		router: mux.NewRouter(),
		log:    log.Named("server"),
		now:    time.Now,
	}

	s.router.HandleFunc("/healthz", s.healthHandler).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", s.getStateHandler).Methods(http.MethodGet)
	api.HandleFunc("/state", s.putStateHandler).Methods(http.MethodPut)
	api.HandleFunc("/views/{name}", s.viewHandler).Methods(http.MethodGet)
	api.HandleFunc("/devices/{mac}/protocols", s.protocolsHandler).Methods(http.MethodGet)
	api.HandleFunc("/compare", s.compareHandler).Methods(http.MethodGet)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("dashboard server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err == nil {
			return nil
		}
		return fmt.Errorf("could not listen on %s: %w", addr, err)
	case <-ctx.Done():
	}

	s.log.Info("dashboard server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	s.views.Wait()
	s.log.Info("dashboard server exited")
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getStateHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.views.State.Snapshot())
}

type stateRequest struct {
	From    *string   `json:"from"`
	To      *string   `json:"to"`
	Devices *[]string `json:"devices"`
	Tab     *string   `json:"tab"`
}

// putStateHandler applies a partial state update. Fields left out of the
// body keep their value. Bound panels refresh in the background.
func (s *Server) putStateHandler(w http.ResponseWriter, r *http.Request) {
	var req stateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("failed to decode request: %w", err))
		return
	}

	st := s.views.State
	cur := st.Snapshot()

	var (
		rng    *daterange.Range
		tab    state.Tab
		hasTab bool
	)
	if req.From != nil || req.To != nil {
		from, to := cur.From, cur.To
		if req.From != nil {
			from = *req.From
		}
		if req.To != nil {
			to = *req.To
		}
		parsed, err := daterange.Parse(from, to)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		rng = &parsed
	}
	if req.Tab != nil {
		parsed, err := state.ParseTab(*req.Tab)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		tab, hasTab = parsed, true
	}

	if rng != nil {
		st.SetRange(*rng)
	}
	if req.Devices != nil {
		st.SetDevices(*req.Devices)
	}
	if hasTab {
		st.SetTab(tab)
	}

	s.writeJSON(w, http.StatusOK, st.Snapshot())
}

type viewResponse struct {
	Status    dashboard.Status `json:"status"`
	UpdatedAt *time.Time       `json:"updated_at,omitempty"`
	Error     string           `json:"error,omitempty"`
	Data      interface{}      `json:"data"`
}

// panelResponse refreshes p first when it has never loaded or when forced.
func panelResponse[T any](ctx context.Context, p *dashboard.Panel[T], force bool) viewResponse {
	if _, status, _ := p.Get(); force || status == dashboard.StatusEmpty {
		p.Refresh(ctx)
	}

	value, status, updated := p.Get()
	resp := viewResponse{Status: status, Data: value}
	if !updated.IsZero() {
		resp.UpdatedAt = &updated
	}
	if err := p.Err(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func (s *Server) viewHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	force := r.URL.Query().Get("refresh") != ""

	var resp viewResponse
	switch name := mux.Vars(r)["name"]; name {
	case "dashboard":
		resp = panelResponse(ctx, s.views.Dashboard, force)
	case "devices":
		resp = panelResponse(ctx, s.views.Devices, force)
	case "charts":
		resp = panelResponse(ctx, s.views.Charts, force)
	case "activity":
		resp = panelResponse(ctx, s.views.Activity, force)
	case "achievements":
		resp = panelResponse(ctx, s.views.Achievements, force)
	default:
		s.writeError(w, http.StatusNotFound, fmt.Errorf("unknown view %q", name))
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) protocolsHandler(w http.ResponseWriter, r *http.Request) {
	mac := mux.Vars(r)["mac"]
	m, err := s.views.Protocols(r.Context(), mac)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

// compareHandler compares two periods. Without any period parameters it
// compares the last 30 days with the 30 days before.
func (s *Server) compareHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p1, p2 := dashboard.DefaultComparison(s.now())

	if q.Get("from1") != "" || q.Get("to1") != "" || q.Get("from2") != "" || q.Get("to2") != "" {
		var err error
		if p1, err = daterange.Parse(q.Get("from1"), q.Get("to1")); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("period 1: %w", err))
			return
		}
		if p2, err = daterange.Parse(q.Get("from2"), q.Get("to2")); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("period 2: %w", err))
			return
		}
	}

	cmp, err := s.views.Compare(r.Context(), p1, p2)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cmp)
}
