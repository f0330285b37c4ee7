package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/trendzee/live-trends/internal/assistant"
	"github.com/trendzee/live-trends/internal/models"
	"github.com/trendzee/live-trends/internal/query"
	"github.com/trendzee/live-trends/internal/storage"
)

type chatRequest struct {
	Question string              `json:"question"`
	History  []assistant.Message `json:"history"`
}

type textResponse struct {
	Text string `json:"text"`
}

func (s *Server) listTrendsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := query.FilterParams{Search: q.Get("search")}
	if v := q.Get("category"); v != "" {
		if !models.ValidCategory(models.Category(v)) {
			writeError(w, http.StatusBadRequest, "unknown category")
			return
		}
		params.Category = models.Category(v)
	}
	if v := q.Get("platform"); v != "" {
		if !models.ValidPlatform(models.Platform(v)) {
			writeError(w, http.StatusBadRequest, "unknown platform")
			return
		}
		params.Platform = models.Platform(v)
	}
	if v := q.Get("source"); v != "" {
		source, ok := models.ParseSource(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown source")
			return
		}
		params.Source = source
	}

	page, ok := intParam(w, r, "page", 1)
	if !ok {
		return
	}
	pageSize, ok := intParam(w, r, "page_size", query.DefaultPageSize)
	if !ok {
		return
	}

	result, err := s.trends.FilterPage(r.Context(), params, page, pageSize)
	if errors.Is(err, query.ErrPageOutOfRange) {
		writeError(w, http.StatusBadRequest, "invalid page")
		return
	}
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) createTrendHandler(w http.ResponseWriter, r *http.Request) {
	var m query.ManualTrend
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := s.trends.CreateManual(r.Context(), m)
	if errors.Is(err, query.ErrInvalidTrend) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) topTrendsHandler(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit", query.DefaultTopLimit)
	if !ok {
		return
	}

	trends, err := s.trends.TopTrends(r.Context(), limit)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trends)
}

func (s *Server) getTrendHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := s.loadTrend(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) deleteTrendHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err := s.trends.Delete(r.Context(), id); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) relatedTrendsHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := s.loadTrend(w, r)
	if !ok {
		return
	}
	limit, ok := intParam(w, r, "limit", query.DefaultRelatedLimit)
	if !ok {
		return
	}

	related, err := s.trends.Related(r.Context(), t, limit)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, related)
}

func (s *Server) explainTrendHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := s.loadTrend(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, textResponse{Text: s.assistant.ExplainTrend(r.Context(), t)})
}

func (s *Server) insightsHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := s.loadTrend(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, textResponse{Text: s.assistant.CreatorInsights(r.Context(), t)})
}

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	if s.chatLimiter != nil {
		decision, err := s.chatLimiter.Allow(r.Context(), s.callerID(r))
		if err != nil {
			logrus.Errorf("Rate limiter failed: %v", err)
			writeError(w, http.StatusInternalServerError, "rate limiter unavailable")
			return
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if !decision.Allowed {
			writeError(w, http.StatusTooManyRequests, "chat limit reached, please try again later")
			return
		}
	}

	answer, err := s.assistant.Chat(r.Context(), req.Question, req.History)
	if err != nil {
		logrus.Errorf("Chat failed: %v", err)
		writeError(w, http.StatusInternalServerError, "chat failed")
		return
	}
	writeJSON(w, http.StatusOK, textResponse{Text: answer})
}

func (s *Server) loadTrend(w http.ResponseWriter, r *http.Request) (models.Trend, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid trend id")
		return models.Trend{}, false
	}

	t, err := s.trends.Get(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return models.Trend{}, false
	}
	return t, true
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "trend not found")
		return
	}
	logrus.Errorf("Trend store request failed: %v", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

// intParam reads a positive integer query parameter
func intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return n, true
}

// callerID identifies a chat caller by peer address, or by the address the
// proxy appended to X-Forwarded-For when proxy headers are trusted.
func (s *Server) callerID(r *http.Request) string {
	if s.trustProxyHeaders {
		if hops := strings.Split(r.Header.Get("X-Forwarded-For"), ","); len(hops) > 0 {
			if last := strings.TrimSpace(hops[len(hops)-1]); last != "" {
				return "ip:" + last
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
