package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/pulsehub/pulse-engagement-hub/internal/application/command"
	"github.com/pulsehub/pulse-engagement-hub/internal/application/query"
	"github.com/pulsehub/pulse-engagement-hub/internal/application/saga"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/goal"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/ledger"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/shared"
	"github.com/pulsehub/pulse-engagement-hub/pkg/logger"
)

// maxBodyBytes bounds write-request payloads.
const maxBodyBytes = 64 << 10 // 64 KB

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not_found", "Endpoint not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "pulse-engagement-hub",
		"status":  "ok",
	})
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(s.Uptime().Seconds()),
	})
}

// handleReady checks backing services. Postgres down means not ready;
// Redis down degrades caching but the API still serves.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := map[string]string{}
	status := http.StatusOK

	if s.deps.Database != nil {
		if err := s.deps.Database.Ping(ctx); err != nil {
			checks["database"] = "down: " + err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	}

	if s.deps.Cache != nil {
		if err := s.deps.Cache.Ping(ctx); err != nil {
			checks["cache"] = "degraded: " + err.Error()
		} else {
			checks["cache"] = "ok"
		}
	}

	writeJSON(w, status, map[string]any{
		"ready":  status == http.StatusOK,
		"checks": checks,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITE SIDE
// ══════════════════════════════════════════════════════════════════════════════

// recordTransactionRequest is the payload for POST /api/v1/transactions.
type recordTransactionRequest struct {
	UserID        string `json:"user_id"`
	Amount        int    `json:"amount"`
	Type          string `json:"type"`
	ReferenceType string `json:"reference_type"`
	ReferenceID   string `json:"reference_id"`
	Description   string `json:"description"`
	ProcessedBy   string `json:"processed_by"`
}

// handleRecordTransaction appends a point transaction to the ledger.
func (s *Server) handleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	var req recordTransactionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if req.ProcessedBy == "" {
		req.ProcessedBy = "api"
	}

	res, err := s.deps.RecordPoints.Handle(r.Context(), command.RecordPointsCommand{
		UserID:        req.UserID,
		Amount:        req.Amount,
		Type:          ledger.TransactionType(req.Type),
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		Description:   req.Description,
		ProcessedBy:   req.ProcessedBy,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"entry_id":        res.EntryID,
		"new_balance":     res.NewBalance,
		"lifetime_points": res.LifetimePoints,
		"level":           res.NewLevel,
		"leveled_up":      res.LeveledUp,
	})
}

// recordActivityRequest is the payload for POST /api/v1/activity.
type recordActivityRequest struct {
	UserID       string     `json:"user_id"`
	ActivityDate *time.Time `json:"activity_date,omitempty"`
}

// handleRecordActivity applies a day of qualifying activity: the streak
// advances and badge criteria are re-evaluated. Points for the activity
// itself are recorded separately via /transactions by the source system.
func (s *Server) handleRecordActivity(w http.ResponseWriter, r *http.Request) {
	var req recordActivityRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	activityDate := time.Time{}
	if req.ActivityDate != nil {
		activityDate = *req.ActivityDate
	}

	streakRes, err := s.deps.UpdateStreak.Handle(r.Context(), command.UpdateStreakCommand{
		UserID:        req.UserID,
		ActivityDate:  activityDate,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp := map[string]any{
		"streak_days": streakRes.StreakDays,
		"best_streak": streakRes.BestStreak,
		"broken":      streakRes.Broken,
		"milestone":   streakRes.Milestone,
		"changed":     streakRes.Changed,
	}

	if s.deps.BadgeFlow != nil {
		flowRes, err := s.deps.BadgeFlow.Execute(r.Context(), saga.EvaluateInput{
			UserID:        req.UserID,
			TriggerEvent:  "activity_recorded",
			CorrelationID: getRequestID(r.Context()),
		})
		if err != nil {
			// The streak update is committed; badge evaluation reruns on
			// the next activity.
			s.logger.Warn("badge evaluation failed after activity",
				logger.UserID(req.UserID),
				logger.Err(err),
			)
		} else {
			awarded := make([]string, 0, len(flowRes.NewAwards))
			for _, a := range flowRes.NewAwards {
				awarded = append(awarded, a.Definition.ID)
			}
			resp["new_badges"] = awarded
			resp["tier"] = string(flowRes.Tier)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ══════════════════════════════════════════════════════════════════════════════
// READ SIDE
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	dto, err := s.deps.GetUserProgress.Handle(r.Context(), query.GetUserProgressQuery{
		UserID: r.PathValue("id"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	q := query.GetLedgerHistoryQuery{
		UserID: r.PathValue("id"),
		Limit:  getQueryParamInt(r, "limit", 50),
		Offset: getQueryParamInt(r, "offset", 0),
	}
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "since must be RFC3339")
			return
		}
		q.Since = &t
	}

	dto, err := s.deps.GetLedgerHistory.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, dto, &ResponseMeta{
		TotalCount: dto.Total,
		HasMore:    q.Offset+len(dto.Entries) < dto.Total,
	})
}

func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	dto, err := s.deps.GetLeaderboard.Handle(r.Context(), query.GetLeaderboardQuery{
		Limit: getQueryParamInt(r, "limit", 20),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// goalDTO is the wire representation of a goal.
type goalDTO struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	TargetValue        float64    `json:"target_value"`
	CurrentValue       float64    `json:"current_value"`
	ProgressPercentage float64    `json:"progress_percentage"`
	StartDate          time.Time  `json:"start_date"`
	EndDate            time.Time  `json:"end_date"`
	Difficulty         string     `json:"difficulty"`
	PointsReward       int        `json:"points_reward"`
	Status             string     `json:"status"`
	LastAdjustedAt     *time.Time `json:"last_adjusted_at,omitempty"`
}

func (s *Server) handleGetGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.deps.GoalRepo.GetByUser(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	dtos := make([]goalDTO, len(goals))
	for i, g := range goals {
		dtos[i] = toGoalDTO(g)
	}
	writeJSON(w, http.StatusOK, map[string]any{"goals": dtos})
}

func toGoalDTO(g *goal.Goal) goalDTO {
	return goalDTO{
		ID:                 g.ID,
		Title:              g.Title,
		TargetValue:        g.TargetValue,
		CurrentValue:       g.CurrentValue,
		ProgressPercentage: g.ProgressPercentage,
		StartDate:          g.StartDate,
		EndDate:            g.EndDate,
		Difficulty:         string(g.Difficulty),
		PointsReward:       g.PointsReward,
		Status:             string(g.Status),
		LastAdjustedAt:     g.LastAdjustedAt,
	}
}

func (s *Server) handleGetOverview(w http.ResponseWriter, r *http.Request) {
	if s.deps.Overview == nil {
		writeJSONError(w, http.StatusNotFound, "not_found", "Overview is not enabled")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Overview.Snapshot())
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// decodeBody reads and decodes a JSON request body. Writes the error
// response itself and reports success.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body: "+err.Error())
		return false
	}
	return true
}

// writeDomainError maps domain errors to HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())

	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())

	case shared.IsAlreadyExists(err):
		writeJSONError(w, http.StatusConflict, "already_exists", err.Error())

	case shared.IsConflict(err):
		// Optimistic-lock retries are exhausted; the client may retry.
		writeJSONError(w, http.StatusConflict, "conflict", "Concurrent modification, please retry")

	case errors.Is(err, shared.ErrProcessingHalted):
		writeJSONError(w, http.StatusConflict, "processing_halted", "User is halted pending invariant review")

	case errors.Is(err, shared.ErrTimeout), errors.Is(err, shared.ErrServiceUnavailable):
		writeJSONError(w, http.StatusServiceUnavailable, "service_unavailable", "Backing service unavailable")

	default:
		s.logger.Error("unhandled error in HTTP handler",
			logger.String("path", r.URL.Path),
			logger.String("request_id", getRequestID(r.Context())),
			logger.Err(err),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
	}
}
