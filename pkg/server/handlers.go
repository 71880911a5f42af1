package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tokenlab/tokencore/pkg/changelog"
	"github.com/tokenlab/tokencore/pkg/domain"
)

// ErrorResponse is the standard JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// WriteJSONError writes a JSON error response with the given status code.
func WriteJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}
	json.NewEncoder(w).Encode(response)
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status":  "healthy",
		"message": "tokencore is running",
	})
}

// handleStats aggregates every service's statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"storage":     s.registry.Storage.GetStatistics(),
		"changelog":   s.registry.Tracker.GetStatistics(),
		"sessions":    s.registry.Sessions.GetStatistics(),
		"performance": s.registry.Monitor.GetStatistics(),
		"cache":       s.registry.Cache.GetStatistics(),
	})
}

// handleChanges returns the full change history.
func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.registry.Tracker.GetChanges())
}

// handleChangesByEntity returns the history for a single entity.
func (s *Server) handleChangesByEntity(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	entityType := domain.LogicalType(vars["entityType"])
	entityID := vars["entityId"]

	writeJSON(w, s.registry.Tracker.GetChangesByEntity(entityType, entityID))
}

// handleBaselines lists all baselines.
func (s *Server) handleBaselines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.registry.Tracker.GetBaselines())
}

// handleCreateBaseline creates a baseline from the request body.
func (s *Server) handleCreateBaseline(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.Name == "" {
		WriteJSONError(w, http.StatusBadRequest, "baseline name is required")
		return
	}

	baseline := s.registry.Tracker.CreateBaseline(body.Name, body.Description)
	s.logger.Info().Str("baseline_id", baseline.ID).Str("name", baseline.Name).Msg("baseline created")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, baseline)
}

// handleActivateBaseline activates a baseline by ID.
func (s *Server) handleActivateBaseline(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.registry.Tracker.ActivateBaseline(id); err != nil {
		writeChangelogError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "activated", "baseline_id": id})
}

// handleRollbackToBaseline rolls the ledger back to a baseline.
func (s *Server) handleRollbackToBaseline(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.registry.Tracker.RollbackToBaseline(id); err != nil {
		writeChangelogError(w, err)
		return
	}
	s.logger.Info().Str("baseline_id", id).Msg("rolled back to baseline")
	writeJSON(w, map[string]string{"status": "rolled-back", "baseline_id": id})
}

// handleSessions lists snapshots of the active edit sessions.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.registry.Sessions.ActiveSessions())
}

// writeChangelogError maps ledger error codes onto HTTP statuses.
func writeChangelogError(w http.ResponseWriter, err error) {
	var clErr *changelog.Error
	if errors.As(err, &clErr) {
		switch clErr.Code {
		case changelog.CodeBaselineNotFound, changelog.CodeChangeNotFound:
			WriteJSONError(w, http.StatusNotFound, err.Error())
			return
		}
	}
	WriteJSONError(w, http.StatusInternalServerError, err.Error())
}
