// Package api exposes HTTP handlers for the enrollment engine.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/Joy-oyo/fenverest/internal/auth"
	"github.com/Joy-oyo/fenverest/internal/domain"
	"github.com/Joy-oyo/fenverest/internal/matching"
	"github.com/Joy-oyo/fenverest/internal/observability"
)

// Handler coordinates HTTP requests with the engine services.
type Handler struct {
	enrollment  *domain.EnrollmentManager
	matcher     *domain.InterestMatcher
	counters    *domain.CounterService
	preferences matching.PreferenceRepository
}

// NewHandler builds a Handler.
func NewHandler(enrollment *domain.EnrollmentManager, matcher *domain.InterestMatcher, counters *domain.CounterService, preferences matching.PreferenceRepository) *Handler {
	return &Handler{
		enrollment:  enrollment,
		matcher:     matcher,
		counters:    counters,
		preferences: preferences,
	}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/activities", h.activities)
	mux.HandleFunc("/v1/activities/", h.activitySubtree)
	mux.HandleFunc("/v1/preferences", h.preferencesHandler)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createActivity(w, r)
	case http.MethodGet:
		h.listActivities(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) activitySubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/activities/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing activity id")
		return
	}

	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.getActivity(w, r, id)
		case http.MethodPatch:
			h.updateActivity(w, r, id)
		case http.MethodDelete:
			h.deleteActivity(w, r, id)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		}
	case "join":
		h.requirePost(w, r, id, h.join)
	case "leave":
		h.requirePost(w, r, id, h.leave)
	case "swipe":
		h.requirePost(w, r, id, h.swipe)
	case "analytics":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
			return
		}
		h.analytics(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown resource")
	}
}

func (h *Handler) requirePost(w http.ResponseWriter, r *http.Request, id string, next func(http.ResponseWriter, *http.Request, string)) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	next(w, r, id)
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	var req CreateActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	activity, err := h.enrollment.CreateActivity(r.Context(), domain.CreateActivityInput{
		OwnerID:     claims.Subject,
		OwnerRole:   claims.Role,
		Title:       req.Title,
		Description: req.Description,
		ScheduledAt: req.ScheduledAt,
		DurationMin: req.DurationMin,
		Capacity:    req.Capacity,
		Tags:        req.Tags,
		Difficulty:  req.Difficulty,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toActivityView(*activity))
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.FromContext(r.Context()); !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	query := r.URL.Query()
	filter := domain.ActivityFilter{
		Title:         query.Get("title"),
		Status:        domain.ActivityStatus(query.Get("status")),
		Difficulty:    query.Get("difficulty"),
		OwnerID:       query.Get("owner_id"),
		ParticipantID: query.Get("participant_id"),
	}

	activities, err := h.enrollment.ListActivities(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]ActivityView, 0, len(activities))
	for _, activity := range activities {
		items = append(items, toActivityView(activity))
	}
	writeJSON(w, http.StatusOK, ListActivitiesResponse{Items: items})
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	activity, err := h.enrollment.GetActivity(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// Owners browsing their own listing should not inflate view analytics.
	if claims.Subject != activity.OwnerID {
		if err := h.counters.RecordView(r.Context(), id); err != nil {
			log.Printf("view tracking failed for activity %s: %v", id, err)
		}
	}
	writeJSON(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) updateActivity(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	var req UpdateActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	patch := domain.ActivityPatch{
		Title:       req.Title,
		Description: req.Description,
		ScheduledAt: req.ScheduledAt,
		DurationMin: req.DurationMin,
		Capacity:    req.Capacity,
		Tags:        req.Tags,
		Difficulty:  req.Difficulty,
	}
	if req.Status != nil {
		status := domain.ActivityStatus(*req.Status)
		patch.Status = &status
	}

	activity, err := h.enrollment.UpdateActivity(r.Context(), id, claims.Subject, patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	if err := h.enrollment.DeleteActivity(r.Context(), id, claims.Subject); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) join(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	activity, err := h.enrollment.Join(r.Context(), id, claims.Subject)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrActivityFull):
			observability.RecordJoin("full")
		case errors.Is(err, domain.ErrStoreUnavailable):
		default:
			observability.RecordJoin("rejected")
		}
		writeDomainError(w, err)
		return
	}
	observability.RecordJoin("admitted")
	writeJSON(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) leave(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	activity, err := h.enrollment.Leave(r.Context(), id, claims.Subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) swipe(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	var req SwipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	outcome, err := h.matcher.RecordInterest(r.Context(), id, claims.Subject, domain.SwipeAction(req.Action))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	observability.RecordSwipe(string(outcome.Interest.Action), outcome.IsMatch)
	writeJSON(w, http.StatusOK, SwipeResponse{
		ActivityID: outcome.Interest.ActivityID,
		UserID:     outcome.Interest.UserID,
		Action:     string(outcome.Interest.Action),
		IsMatch:    outcome.IsMatch,
		RecordedAt: outcome.Interest.UpdatedAt,
	})
}

func (h *Handler) analytics(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := auth.FromContext(r.Context()); !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	// Analytics for unknown activities should 404 rather than return zeros.
	if _, err := h.enrollment.GetActivity(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	snapshot, err := h.counters.Snapshot(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := AnalyticsResponse{
		ActivityID: snapshot.ActivityID,
		Totals:     toCounterView(snapshot.Totals),
		Daily:      make([]DailyCountersView, 0, len(snapshot.Daily)),
	}
	for _, bucket := range snapshot.Daily {
		resp.Daily = append(resp.Daily, DailyCountersView{
			Day:    bucket.Day.Format("2006-01-02"),
			Views:  bucket.Views,
			Likes:  bucket.Likes,
			Passes: bucket.Passes,
			Joins:  bucket.Joins,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) preferencesHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	switch r.Method {
	case http.MethodGet:
		prefs, err := h.preferences.GetPreferences(r.Context(), claims.Subject)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, PreferencesView{
			Interests:    prefs.Interests,
			Difficulties: prefs.Difficulties,
			UpdatedAt:    prefs.UpdatedAt,
		})
	case http.MethodPut:
		var req PreferencesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
			return
		}
		prefs := domain.UserPreferences{
			UserID:       claims.Subject,
			Interests:    req.Interests,
			Difficulties: req.Difficulties,
			UpdatedAt:    time.Now().UTC(),
		}
		if err := h.preferences.PutPreferences(r.Context(), prefs); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, PreferencesView{
			Interests:    prefs.Interests,
			Difficulties: prefs.Difficulties,
			UpdatedAt:    prefs.UpdatedAt,
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrInvalidSwipeAction):
		writeError(w, http.StatusBadRequest, "invalid_action", err.Error())
	case errors.Is(err, domain.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, domain.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, "not_found", "activity not found")
	case errors.Is(err, domain.ErrPreferencesNotFound):
		writeError(w, http.StatusNotFound, "not_found", "preferences not found")
	case errors.Is(err, domain.ErrActivityNotOpen):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrAlreadyEnrolled):
		writeError(w, http.StatusConflict, "already_enrolled", err.Error())
	case errors.Is(err, domain.ErrNotEnrolled):
		writeError(w, http.StatusConflict, "not_enrolled", err.Error())
	case errors.Is(err, domain.ErrActivityFull):
		writeError(w, http.StatusConflict, "capacity_exceeded", err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "temporary storage failure")
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

// CreateActivityRequest is the payload for POST /v1/activities.
type CreateActivityRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ScheduledAt time.Time `json:"scheduled_at"`
	DurationMin int       `json:"duration_min"`
	Capacity    int       `json:"capacity"`
	Tags        []string  `json:"tags,omitempty"`
	Difficulty  string    `json:"difficulty,omitempty"`
}

// UpdateActivityRequest carries the owner-editable fields; absent fields stay
// unchanged. Membership is not patchable through this path.
type UpdateActivityRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	DurationMin *int       `json:"duration_min"`
	Capacity    *int       `json:"capacity"`
	Tags        []string   `json:"tags"`
	Difficulty  *string    `json:"difficulty"`
	Status      *string    `json:"status"`
}

// SwipeRequest is the payload for POST /v1/activities/{id}/swipe.
type SwipeRequest struct {
	Action string `json:"action"`
}

// SwipeResponse reports the recorded interest and its match outcome.
type SwipeResponse struct {
	ActivityID string    `json:"activity_id"`
	UserID     string    `json:"user_id"`
	Action     string    `json:"action"`
	IsMatch    bool      `json:"is_match"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ActivityView exposes full details about an activity.
type ActivityView struct {
	ActivityID     string    `json:"activity_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	OwnerID        string    `json:"owner_id"`
	ScheduledAt    time.Time `json:"scheduled_at"`
	DurationMin    int       `json:"duration_min"`
	Capacity       int       `json:"capacity"`
	ParticipantIDs []string  `json:"participant_ids"`
	Status         string    `json:"status"`
	Tags           []string  `json:"tags,omitempty"`
	Difficulty     string    `json:"difficulty,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items []ActivityView `json:"items"`
}

// CounterTotalsView mirrors lifetime counters.
type CounterTotalsView struct {
	Views  int64 `json:"views"`
	Likes  int64 `json:"likes"`
	Passes int64 `json:"passes"`
	Joins  int64 `json:"joins"`
}

// DailyCountersView is one bucket of the daily breakdown.
type DailyCountersView struct {
	Day    string `json:"day"`
	Views  int64  `json:"views"`
	Likes  int64  `json:"likes"`
	Passes int64  `json:"passes"`
	Joins  int64  `json:"joins"`
}

// AnalyticsResponse is the counters snapshot for one activity.
type AnalyticsResponse struct {
	ActivityID string              `json:"activity_id"`
	Totals     CounterTotalsView   `json:"totals"`
	Daily      []DailyCountersView `json:"daily"`
}

// PreferencesRequest is the payload for PUT /v1/preferences.
type PreferencesRequest struct {
	Interests    []string `json:"interests"`
	Difficulties []string `json:"difficulties"`
}

// PreferencesView mirrors stored preferences.
type PreferencesView struct {
	Interests    []string  `json:"interests"`
	Difficulties []string  `json:"difficulties"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toActivityView(activity domain.Activity) ActivityView {
	participants := activity.ParticipantIDs
	if participants == nil {
		participants = []string{}
	}
	return ActivityView{
		ActivityID:     activity.ID,
		Title:          activity.Title,
		Description:    activity.Description,
		OwnerID:        activity.OwnerID,
		ScheduledAt:    activity.ScheduledAt,
		DurationMin:    activity.DurationMin,
		Capacity:       activity.Capacity,
		ParticipantIDs: participants,
		Status:         string(activity.Status),
		Tags:           activity.Tags,
		Difficulty:     activity.Difficulty,
		CreatedAt:      activity.CreatedAt,
		UpdatedAt:      activity.UpdatedAt,
	}
}

func toCounterView(totals domain.CounterTotals) CounterTotalsView {
	return CounterTotalsView{
		Views:  totals.Views,
		Likes:  totals.Likes,
		Passes: totals.Passes,
		Joins:  totals.Joins,
	}
}
