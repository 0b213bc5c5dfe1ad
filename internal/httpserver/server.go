// Package httpserver exposes the allocator over HTTP.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/southpark/southpark/internal/allocator"
	"github.com/southpark/southpark/internal/models"
	"github.com/southpark/southpark/internal/optimizer"
	"github.com/southpark/southpark/internal/store"
)

type Server struct {
	service *allocator.Service
	router  chi.Router
}

func New(service *allocator.Service) *Server {
	s := &Server{service: service}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/healthz", s.handleHealth)
	r.Route("/recommendation", func(r chi.Router) {
		r.Post("/engine", s.handleRecommend)
	})
	r.Route("/allocation", func(r chi.Router) {
		r.Post("/allocate", s.handleAllocate)
		r.Post("/optimize", s.handleOptimize)
		r.Get("/event/{eventID}", s.handleEventAllocation)
	})
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type recommendRequest struct {
	ID int `json:"id"`
}

type recommendResponse struct {
	EventID int                                         `json:"eventId"`
	Name    string                                      `json:"name"`
	Phases  map[models.Phase]models.PhaseRecommendation `json:"phases"`
}

// handleRecommend returns the greedy recommendation for one event
// without committing anything.
func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ID <= 0 {
		respondError(w, http.StatusBadRequest, "id must be a positive event id")
		return
	}

	ev, rec, err := s.service.Recommend(r.Context(), req.ID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, recommendResponse{EventID: ev.ID, Name: ev.Name, Phases: rec.Phases})
}

type allocateRequest struct {
	// EventID limits the run to one event; zero means every event.
	EventID int `json:"eventId"`
}

func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var req allocateRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	var (
		summary allocator.RunSummary
		err     error
	)
	if req.EventID > 0 {
		summary, err = s.service.AllocateEvent(r.Context(), req.EventID)
	} else {
		summary, err = s.service.AllocateAll(r.Context())
	}
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

type optimizeResponse struct {
	allocator.RunSummary
	TotalDistance float64 `json:"totalDistance"`
	Nodes         int     `json:"nodes"`
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	summary, result, err := s.service.Optimize(r.Context())
	if err != nil {
		if errors.Is(err, optimizer.ErrInfeasible) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, optimizeResponse{
		RunSummary:    summary,
		TotalDistance: result.TotalDistance,
		Nodes:         result.Nodes,
	})
}

func (s *Server) handleEventAllocation(w http.ResponseWriter, r *http.Request) {
	eventID, err := strconv.Atoi(chi.URLParam(r, "eventID"))
	if err != nil || eventID <= 0 {
		respondError(w, http.StatusBadRequest, "eventID must be a positive integer")
		return
	}
	rows, err := s.service.EventAllocation(r.Context(), eventID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if rows == nil {
		rows = []models.AllocationRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"eventId": eventID,
		"rows":    rows,
	})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "event not found")
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
