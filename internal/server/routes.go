package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lazypower/vigil/internal/classify"
	"github.com/lazypower/vigil/internal/consolidate"
	"github.com/lazypower/vigil/internal/detect"
)

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var sig classify.Signals
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if sig.UserID == "" {
		http.Error(w, `{"error":"user_id required"}`, http.StatusBadRequest)
		return
	}

	out, err := s.engine.ClassifyActivity(r.Context(), &sig)
	if err != nil {
		// The outcome stays usable even when a side effect failed to
		// persist; surface the degraded result rather than a 500.
		log.Printf("classify: side effect failed: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var hb detect.Heartbeat
	if err := json.NewDecoder(r.Body).Decode(&hb); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if hb.UserID == "" {
		http.Error(w, `{"error":"user_id required"}`, http.StatusBadRequest)
		return
	}

	cmd, err := s.engine.ProcessHeartbeat(r.Context(), &hb)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cmd)
}

func (s *Server) handleRecordEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Type   string `json:"type"`
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.Type == "" {
		http.Error(w, `{"error":"user_id and type required"}`, http.StatusBadRequest)
		return
	}

	rec, err := s.engine.RecordEvent(r.Context(), req.UserID, req.Type, req.Detail)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(rec)
}

func (s *Server) handleRecordTurn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
		Text   string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.Text == "" {
		http.Error(w, `{"error":"user_id and text required"}`, http.StatusBadRequest)
		return
	}
	if req.Role == "" {
		req.Role = "user"
	}

	s.engine.RecordTurn(req.UserID, req.Role, req.Text)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleGetTrust(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	rep, err := s.engine.GetTrustScore(userID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rep)
}

func (s *Server) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	res, err := s.engine.Consolidate(r.Context(), userID)
	if err != nil {
		if errors.Is(err, consolidate.ErrBusy) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"error": "consolidation already running"})
			return
		}
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func (s *Server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, `{"error":"user_id required"}`, http.StatusBadRequest)
		return
	}
	query := r.URL.Query().Get("q")

	text := s.engine.BuildContext(r.Context(), userID, query)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"context": text})
}
