package daemon

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/runnerr0/sitetime/internal/host"
	"github.com/runnerr0/sitetime/internal/storage"
)

type sessionView struct {
	ID          string `json:"id"`
	TabID       int    `json:"tab_id"`
	Hostname    string `json:"hostname"`
	Title       string `json:"title,omitempty"`
	StartedAtMs int64  `json:"started_at_ms"`
}

type statusResponse struct {
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	TabsKnown     int          `json:"tabs_known"`
	Session       *sessionView `json:"session"`
}

type eventsRequest struct {
	Events []host.Message `json:"events"`
}

type eventsResponse struct {
	Results []host.Response `json:"results"`
}

type siteView struct {
	Hostname    string `json:"hostname"`
	Title       string `json:"title"`
	Icon        string `json:"icon,omitempty"`
	VisitCount  uint64 `json:"visit_count"`
	TimeSpentMs uint64 `json:"time_spent_ms"`
	TimeSpent   string `json:"time_spent"`
	LastVisitMs int64  `json:"last_visit_ms"`
	DaysActive  int    `json:"days_active"`
}

type statsResponse struct {
	From        string     `json:"from,omitempty"`
	To          string     `json:"to,omitempty"`
	Sort        string     `json:"sort"`
	TotalTimeMs uint64     `json:"total_time_ms"`
	TotalVisits uint64     `json:"total_visits"`
	Sites       []siteView `json:"sites"`
}

type settingsView struct {
	HiddenSites     []string `json:"hidden_sites"`
	ShowHiddenSites bool     `json:"show_hidden_sites"`
}

type settingsPatch struct {
	HiddenSites     *[]string `json:"hidden_sites"`
	ShowHiddenSites *bool     `json:"show_hidden_sites"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		TabsKnown:     s.bridge.Registry().Len(),
	}
	if sess, ok := s.sessions.Current(); ok {
		resp.Session = &sessionView{
			ID:          sess.ID,
			TabID:       sess.TabID,
			Hostname:    sess.Hostname,
			Title:       sess.Title,
			StartedAtMs: sess.StartedAtMs,
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleEvents accepts one message or {"events": [...]} and delivers them
// in order. Each message gets its own result; a bad one does not stop the
// rest.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.writeBodyError(w, err)
		return
	}

	var batch eventsRequest
	if err := sonic.Unmarshal(body, &batch); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode events: %w", err))
		return
	}
	msgs := batch.Events
	if msgs == nil {
		var single host.Message
		if err := sonic.Unmarshal(body, &single); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode event: %w", err))
			return
		}
		msgs = []host.Message{single}
	}

	resp := eventsResponse{Results: make([]host.Response, 0, len(msgs))}
	for _, msg := range msgs {
		if err := s.bridge.Deliver(r.Context(), msg); err != nil {
			s.log.Warn("event rejected", "type", string(msg.Type), "tab_id", msg.TabID, "error", err)
			resp.Results = append(resp.Results, host.Response{Error: err.Error()})
			continue
		}
		resp.Results = append(resp.Results, host.Response{OK: true})
	}
	s.writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var rng storage.Range
	var err error
	if rng.From, err = s.parseDay(q.Get("from")); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("from: %w", err))
		return
	}
	if rng.To, err = s.parseDay(q.Get("to")); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("to: %w", err))
		return
	}
	sortBy, err := storage.ParseSortBy(q.Get("sort"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
	}
	includeHidden := false
	if v := q.Get("include_hidden"); v != "" {
		if includeHidden, err = strconv.ParseBool(v); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid include_hidden %q", v))
			return
		}
	}

	ctx := r.Context()
	summaries, err := s.store.QueryRange(ctx, rng)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	hidden, err := s.settings.HiddenSites(ctx)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	show, err := s.settings.ShowHiddenSites(ctx)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	list := storage.Sorted(summaries, sortBy, 0)
	list = storage.FilterHidden(list, hidden, show || includeHidden)

	resp := statsResponse{
		From:  q.Get("from"),
		To:    q.Get("to"),
		Sort:  string(sortBy),
		Sites: make([]siteView, 0, len(list)),
	}
	for _, v := range list {
		resp.TotalTimeMs += v.TimeSpentMs
		resp.TotalVisits += v.VisitCount
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	for _, v := range list {
		resp.Sites = append(resp.Sites, siteView{
			Hostname:    v.Hostname,
			Title:       v.Title,
			Icon:        v.Icon,
			VisitCount:  v.VisitCount,
			TimeSpentMs: v.TimeSpentMs,
			TimeSpent:   storage.FormatHMS(v.TimeSpentMs),
			LastVisitMs: v.LastVisitMs,
			DaysActive:  v.DaysActive,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearAll(r.Context()); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.log.Warn("statistics cleared via API")
	if err := s.bridge.StatsCleared(r.Context()); err != nil {
		s.log.Error("reset tracker after clear failed", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	view, err := s.currentSettings(r)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.writeBodyError(w, err)
		return
	}
	var patch settingsPatch
	if err := sonic.Unmarshal(body, &patch); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode settings: %w", err))
		return
	}

	ctx := r.Context()
	if patch.HiddenSites != nil {
		if err := s.settings.SetHiddenSites(ctx, *patch.HiddenSites); err != nil {
			s.writeStoreError(w, err)
			return
		}
	}
	if patch.ShowHiddenSites != nil {
		if err := s.settings.SetShowHiddenSites(ctx, *patch.ShowHiddenSites); err != nil {
			s.writeStoreError(w, err)
			return
		}
	}

	view, err := s.currentSettings(r)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) currentSettings(r *http.Request) (settingsView, error) {
	hidden, err := s.settings.HiddenSites(r.Context())
	if err != nil {
		return settingsView{}, err
	}
	show, err := s.settings.ShowHiddenSites(r.Context())
	if err != nil {
		return settingsView{}, err
	}
	return settingsView{HiddenSites: hidden, ShowHiddenSites: show}, nil
}

// parseDay parses YYYY-MM-DD in the server's timezone. Empty is unbounded.
func (s *Server) parseDay(v string) (time.Time, error) {
	if strings.TrimSpace(v) == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(storage.DayLayout, v, s.loc)
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxRequest))
}

func (s *Server) writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	s.writeError(w, http.StatusBadRequest, err)
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	s.log.Error("storage request failed", "error", err)
	s.writeError(w, http.StatusInternalServerError, err)
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	s.writeJSON(w, code, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		s.log.Error("encode response failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data) //nolint:errcheck
}
