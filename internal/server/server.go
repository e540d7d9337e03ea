// Package server exposes the engine to its host shell: historical run
// queries, ingest endpoints for the OCR and inventory-diff
// collaborators, and the websocket stream of run notifications.
//
// Reads of completed runs bypass the scheduler on purpose: finished
// runs are immutable, so racing a finalization is harmless. Everything
// that mutates run state goes through the tracker, which schedules it.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/exiletools/runtracker/internal/storage"
	"github.com/exiletools/runtracker/internal/tracker"
)

type Server struct {
	logger  *slog.Logger
	store   storage.Store
	tracker *tracker.Tracker
	ws      http.Handler
}

func New(logger *slog.Logger, store storage.Store, trk *tracker.Tracker, ws http.Handler) *Server {
	return &Server{logger: logger, store: store, tracker: trk, ws: ws}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/runs", s.handleListRuns)
	mux.HandleFunc("GET /v1/runs/{id}", s.handleGetRun)
	mux.HandleFunc("POST /v1/runs/process", s.handleProcess)
	mux.HandleFunc("POST /v1/ingest/area-info", s.handleAreaInfo)
	mux.HandleFunc("POST /v1/ingest/items", s.handleItems)
	mux.HandleFunc("POST /v1/ingest/incubators", s.handleIncubators)
	if s.ws != nil {
		mux.Handle("GET /ws", s.ws)
	}
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type runPayload struct {
	ID         string          `json:"id"`
	FirstEvent time.Time       `json:"firstEvent"`
	LastEvent  time.Time       `json:"lastEvent"`
	IIQ        *int            `json:"iiq,omitempty"`
	IIR        *int            `json:"iir,omitempty"`
	PackSize   *int            `json:"packSize,omitempty"`
	XP         *int64          `json:"xp,omitempty"`
	Kills      *int            `json:"kills,omitempty"`
	Info       json.RawMessage `json:"runInfo"`
	Area       *areaPayload    `json:"area,omitempty"`
}

type areaPayload struct {
	Name     string `json:"name"`
	Level    int    `json:"level,omitempty"`
	Depth    int    `json:"depth,omitempty"`
	IIQ      *int   `json:"iiq,omitempty"`
	IIR      *int   `json:"iir,omitempty"`
	PackSize *int   `json:"packSize,omitempty"`
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.internalError(w, "list runs", err)
		return
	}
	out := make([]runPayload, 0, len(runs))
	for _, run := range runs {
		out = append(out, s.toPayload(r.Context(), run))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.internalError(w, "get run", err)
		return
	}
	writeJSON(w, http.StatusOK, s.toPayload(r.Context(), run))
}

func (s *Server) toPayload(ctx context.Context, run *storage.Run) runPayload {
	p := runPayload{
		ID:         run.ID,
		FirstEvent: run.FirstEvent,
		LastEvent:  run.LastEvent,
		IIQ:        run.IIQ,
		IIR:        run.IIR,
		PackSize:   run.PackSize,
		XP:         run.XP,
		Kills:      run.Kills,
		Info:       run.Info,
	}
	if ai, err := s.store.GetAreaInfo(ctx, run.ID); err == nil {
		p.Area = &areaPayload{Name: ai.Name, Level: ai.Level, Depth: ai.Depth,
			IIQ: ai.IIQ, IIR: ai.IIR, PackSize: ai.PackSize}
	}
	return p
}

// handleProcess lets the shell force finalization: with a lastEvent
// timestamp it calls ProcessRun, without one it attempts TryProcess.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LastEvent *time.Time `json:"lastEvent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	var err error
	if req.LastEvent != nil {
		err = s.tracker.ProcessRun(*req.LastEvent)
	} else {
		err = s.tracker.TryProcess(nil)
	}
	if err != nil {
		s.internalError(w, "process run", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

func (s *Server) handleAreaInfo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RunID    string `json:"runId"`
		Name     string `json:"name"`
		Level    int    `json:"level"`
		Depth    int    `json:"depth"`
		IIQ      *int   `json:"iiq"`
		IIR      *int   `json:"iir"`
		PackSize *int   `json:"packSize"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	info := storage.AreaInfo{RunID: req.RunID, Name: req.Name, Level: req.Level,
		Depth: req.Depth, IIQ: req.IIQ, IIR: req.IIR, PackSize: req.PackSize}
	if err := <-s.tracker.UpsertAreaInfo(info); err != nil {
		s.internalError(w, "upsert area info", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	var req []struct {
		Timestamp time.Time       `json:"timestamp"`
		Name      string          `json:"name"`
		TypeLine  string          `json:"typeLine"`
		Rarity    string          `json:"rarity"`
		StackSize int             `json:"stackSize"`
		Equipped  bool            `json:"equipped"`
		Raw       json.RawMessage `json:"raw"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	items := make([]storage.Item, 0, len(req))
	for _, it := range req {
		items = append(items, storage.Item{
			Timestamp: it.Timestamp, Name: it.Name, TypeLine: it.TypeLine,
			Rarity: it.Rarity, StackSize: it.StackSize, Equipped: it.Equipped, Raw: it.Raw,
		})
	}
	if err := <-s.tracker.RecordItems(items); err != nil {
		s.internalError(w, "record items", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"inserted": len(items)})
}

func (s *Server) handleIncubators(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Timestamp time.Time `json:"timestamp"`
		Progress  int       `json:"progress"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	sample := storage.IncubatorSample{Timestamp: req.Timestamp, Progress: req.Progress}
	if err := <-s.tracker.RecordIncubatorSample(sample); err != nil {
		s.internalError(w, "record incubator sample", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op+" failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
