package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"illusion-quiz-service/internal/app"
	"illusion-quiz-service/internal/domain"
)

// fingerprintHeader carries the opaque per-device deduplication token. The
// service never interprets it beyond equality.
const fingerprintHeader = "X-Fingerprint"

// ProfileStores builds a per-user profile store for a fingerprint.
type ProfileStores func(fingerprint string) app.ProfileStore

// Handler exposes the quiz core over JSON endpoints.
type Handler struct {
	votes    *app.VoteService
	stats    app.StatsProvider
	catalog  app.Catalog
	daily    *app.DailySelector
	profiles ProfileStores
}

func NewHandler(votes *app.VoteService, stats app.StatsProvider, catalog app.Catalog, daily *app.DailySelector, profiles ProfileStores) *Handler {
	return &Handler{
		votes:    votes,
		stats:    stats,
		catalog:  catalog,
		daily:    daily,
		profiles: profiles,
	}
}

// Register wires every route onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /votes", h.submitVote)
	mux.HandleFunc("GET /stats/{questionID}", h.questionStats)
	mux.HandleFunc("GET /stats", h.statsBatch)
	mux.HandleFunc("GET /cohorts/{cohortID}/stats", h.cohortStats)
	mux.HandleFunc("GET /daily", h.dailyQuestion)
	mux.HandleFunc("GET /questions", h.questions)
	mux.HandleFunc("POST /results", h.results)
	mux.HandleFunc("GET /progress", h.progress)
	mux.HandleFunc("POST /progress/complete", h.completeSession)
	mux.HandleFunc("POST /cohorts", h.createCohort)
	mux.HandleFunc("POST /cohorts/join", h.joinCohort)
	mux.HandleFunc("DELETE /cohorts", h.leaveCohort)
	mux.HandleFunc("GET /demographics", h.demographics)
	mux.HandleFunc("POST /demographics", h.saveDemographics)
	mux.HandleFunc("DELETE /demographics", h.clearDemographics)
}

type submitVoteRequest struct {
	QuestionID string `json:"questionId"`
	Guess      int    `json:"guess"`
	Locale     string `json:"locale"`
	CohortID   string `json:"cohortId,omitempty"`
}

type submitVoteResponse struct {
	Status app.SubmitStatus `json:"status"`
}

func (h *Handler) submitVote(w http.ResponseWriter, r *http.Request) {
	var req submitVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	status, err := h.votes.SubmitVote(r.Context(), req.QuestionID, r.Header.Get(fingerprintHeader), req.Guess, req.Locale, req.CohortID)
	switch {
	case errors.Is(err, domain.ErrInvalidGuess), errors.Is(err, domain.ErrMissingFingerprint):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		log.Printf("submit vote failed: %v", err)
		writeError(w, http.StatusBadGateway, "vote could not be stored")
		return
	}

	if status == app.SubmitAccepted {
		if invalidator, ok := h.stats.(app.StatsInvalidator); ok {
			if err := invalidator.Invalidate(r.Context(), req.QuestionID); err != nil {
				log.Printf("stats cache invalidate failed: %v", err)
			}
		}
	}
	writeJSON(w, http.StatusOK, submitVoteResponse{Status: status})
}

func (h *Handler) questionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Stats(r.Context(), r.PathValue("questionID"))
	if err != nil {
		log.Printf("fetch stats failed: %v", err)
		writeError(w, http.StatusBadGateway, "stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) statsBatch(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ids")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "ids query parameter is required")
		return
	}
	ids := strings.Split(raw, ",")

	stats, err := h.votes.StatsBatch(r.Context(), ids)
	if err != nil {
		log.Printf("fetch batch stats failed: %v", err)
		writeError(w, http.StatusBadGateway, "stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) cohortStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.votes.CohortStats(r.Context(), r.PathValue("cohortID"))
	if err != nil {
		log.Printf("fetch cohort stats failed: %v", err)
		writeError(w, http.StatusBadGateway, "stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) dailyQuestion(w http.ResponseWriter, r *http.Request) {
	question, err := h.daily.TodaysQuestion(r.Context())
	if err != nil {
		log.Printf("daily question failed: %v", err)
		writeError(w, http.StatusBadGateway, "daily question unavailable")
		return
	}
	writeJSON(w, http.StatusOK, question)
}

func (h *Handler) questions(w http.ResponseWriter, r *http.Request) {
	category := domain.Category(r.URL.Query().Get("category"))
	var (
		questions []domain.Question
		err       error
	)
	if category == "" {
		questions, err = h.catalog.Questions(r.Context())
	} else {
		questions, err = h.catalog.QuestionsByCategory(r.Context(), category)
	}
	if err != nil {
		log.Printf("list questions failed: %v", err)
		writeError(w, http.StatusBadGateway, "catalog unavailable")
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

type resultsRequest struct {
	Answers []domain.UserAnswer `json:"answers"`
	Locale  domain.Locale       `json:"locale"`
}

type resultsResponse struct {
	Result      domain.QuizResult        `json:"result"`
	Personality domain.PersonalityResult `json:"personality"`
	ShareCard   domain.ShareCard         `json:"shareCard"`
}

func (h *Handler) results(w http.ResponseWriter, r *http.Request) {
	var req resultsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	// Difference is derived, never trusted from the client.
	for i := range req.Answers {
		req.Answers[i].Difference = app.Difference(req.Answers[i])
	}

	card := app.BuildShareCard(req.Answers, req.Locale, func(questionID string) (string, bool) {
		question, err := h.catalog.QuestionByID(r.Context(), questionID)
		if err != nil {
			return "", false
		}
		return question.Title.In(req.Locale), true
	})
	writeJSON(w, http.StatusOK, resultsResponse{
		Result:      app.BuildResult(req.Answers),
		Personality: app.Personality(req.Answers),
		ShareCard:   card,
	})
}

type progressResponse struct {
	Streak       domain.StreakData    `json:"streak"`
	StreakActive bool                 `json:"streakActive"`
	TotalQuizzes int                  `json:"totalQuizzes"`
	Badges       []domain.EarnedBadge `json:"badges"`
	Cohort       *domain.CohortData   `json:"cohort,omitempty"`
}

func (h *Handler) progress(w http.ResponseWriter, r *http.Request) {
	progression, ok := h.progression(w, r)
	if !ok {
		return
	}
	resp := progressResponse{
		Streak:       progression.StreakData(r.Context()),
		StreakActive: progression.IsStreakActive(r.Context()),
		TotalQuizzes: progression.QuizCount(r.Context()),
		Badges:       progression.EarnedBadges(r.Context()),
	}
	if cohort, ok := progression.CurrentCohort(r.Context()); ok {
		resp.Cohort = &cohort
	}
	writeJSON(w, http.StatusOK, resp)
}

type completeSessionRequest struct {
	Answers []domain.UserAnswer `json:"answers"`
}

func (h *Handler) completeSession(w http.ResponseWriter, r *http.Request) {
	progression, ok := h.progression(w, r)
	if !ok {
		return
	}
	var req completeSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	outcome, err := progression.CompleteSession(r.Context(), req.Answers)
	if err != nil {
		log.Printf("complete session failed: %v", err)
		writeError(w, http.StatusBadGateway, "progress could not be saved")
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

type cohortRequest struct {
	CohortID string `json:"cohortId,omitempty"`
	Name     string `json:"name,omitempty"`
}

func (h *Handler) createCohort(w http.ResponseWriter, r *http.Request) {
	progression, ok := h.progression(w, r)
	if !ok {
		return
	}
	var req cohortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	cohort, err := progression.CreateCohort(r.Context(), req.Name)
	if err != nil {
		log.Printf("create cohort failed: %v", err)
		writeError(w, http.StatusBadGateway, "cohort could not be saved")
		return
	}
	writeJSON(w, http.StatusCreated, cohort)
}

func (h *Handler) joinCohort(w http.ResponseWriter, r *http.Request) {
	progression, ok := h.progression(w, r)
	if !ok {
		return
	}
	var req cohortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.CohortID == "" {
		writeError(w, http.StatusBadRequest, "cohortId is required")
		return
	}
	cohort, err := progression.JoinCohort(r.Context(), req.CohortID, req.Name)
	if err != nil {
		log.Printf("join cohort failed: %v", err)
		writeError(w, http.StatusBadGateway, "cohort could not be saved")
		return
	}
	writeJSON(w, http.StatusOK, cohort)
}

func (h *Handler) leaveCohort(w http.ResponseWriter, r *http.Request) {
	progression, ok := h.progression(w, r)
	if !ok {
		return
	}
	if err := progression.LeaveCohort(r.Context()); err != nil {
		log.Printf("leave cohort failed: %v", err)
		writeError(w, http.StatusBadGateway, "cohort could not be cleared")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) demographics(w http.ResponseWriter, r *http.Request) {
	progression, ok := h.progression(w, r)
	if !ok {
		return
	}
	data, found := progression.Demographics(r.Context())
	if !found {
		writeError(w, http.StatusNotFound, "no demographics saved")
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *Handler) saveDemographics(w http.ResponseWriter, r *http.Request) {
	progression, ok := h.progression(w, r)
	if !ok {
		return
	}
	var patch domain.Demographics
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	data, err := progression.SaveDemographics(r.Context(), patch)
	if err != nil {
		log.Printf("save demographics failed: %v", err)
		writeError(w, http.StatusBadGateway, "demographics could not be saved")
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *Handler) clearDemographics(w http.ResponseWriter, r *http.Request) {
	progression, ok := h.progression(w, r)
	if !ok {
		return
	}
	if err := progression.ClearDemographics(r.Context()); err != nil {
		log.Printf("clear demographics failed: %v", err)
		writeError(w, http.StatusBadGateway, "demographics could not be cleared")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// progression resolves the caller's profile from the fingerprint header.
func (h *Handler) progression(w http.ResponseWriter, r *http.Request) (*app.ProgressionService, bool) {
	fingerprint := r.Header.Get(fingerprintHeader)
	if fingerprint == "" {
		writeError(w, http.StatusBadRequest, "missing "+fingerprintHeader+" header")
		return nil, false
	}
	return app.NewProgressionService(h.profiles(fingerprint)), true
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
