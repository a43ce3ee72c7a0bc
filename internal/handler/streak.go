package handler

import (
	"log/slog"
	"net/http"
	"time"
	_ "time/tzdata" // ?tz= must resolve on hosts without a zoneinfo database

	"github.com/gospel5/gospel5/internal/auth"
	"github.com/gospel5/gospel5/internal/metrics"
	"github.com/gospel5/gospel5/internal/model"
	"github.com/gospel5/gospel5/internal/store"
	"github.com/gospel5/gospel5/internal/streak"
	"github.com/gospel5/gospel5/internal/websocket"
)

const dateLayout = "2006-01-02"

type StreakHandler struct {
	streakStore *store.StreakStore
	badgeStore  *store.BadgeStore
	hub         *websocket.Hub
	metrics     *metrics.Metrics
	location    *time.Location
	now         func() time.Time
	logger      *slog.Logger
}

// NewStreakHandler creates a StreakHandler. loc is the calendar used to
// decide visit days when the client doesn't send one.
func NewStreakHandler(ss *store.StreakStore, bs *store.BadgeStore, hub *websocket.Hub, m *metrics.Metrics, loc *time.Location, logger *slog.Logger) *StreakHandler {
	return &StreakHandler{
		streakStore: ss,
		badgeStore:  bs,
		hub:         hub,
		metrics:     m,
		location:    loc,
		now:         time.Now,
		logger:      logger,
	}
}

type streakView struct {
	LastVisitDate      string `json:"last_visit_date"`
	CurrentStreakCount int    `json:"current_streak_count"`
}

func newStreakView(rec *model.StreakRecord) *streakView {
	if rec == nil {
		return nil
	}
	return &streakView{
		LastVisitDate:      rec.LastVisitDate.Format(dateLayout),
		CurrentStreakCount: rec.CurrentStreakCount,
	}
}

func currentCount(rec *model.StreakRecord) int {
	if rec == nil {
		return 0
	}
	return rec.CurrentStreakCount
}

type visitResponse struct {
	Record        *streakView  `json:"record"`
	BadgeEarned   *model.Badge `json:"badge_earned"`
	NextMilestone *model.Badge `json:"next_milestone"`
}

// Visit records that the user opened today's reading. The day is judged in
// the IANA zone given by ?tz=, falling back to the server's configured zone.
func (h *StreakHandler) Visit(w http.ResponseWriter, r *http.Request) {
	loc := h.location
	if tz := r.URL.Query().Get("tz"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown time zone")
			return
		}
		loc = l
	}

	userID := auth.UserID(r.Context())
	prev, err := h.streakStore.Get(userID)
	if err != nil {
		h.logger.Error("get streak", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load streak")
		return
	}

	result := streak.RecordVisit(h.now().In(loc), prev)

	isNew, err := h.streakStore.SaveVisit(userID, result.Record, result.BadgeEarned)
	if err != nil {
		h.logger.Error("save visit", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save streak")
		return
	}

	var earned *model.Badge
	if isNew {
		earned = result.BadgeEarned
		h.announceBadge(userID, *earned, result.Record.CurrentStreakCount)
	}

	writeJSON(w, http.StatusOK, visitResponse{
		Record:        newStreakView(&result.Record),
		BadgeEarned:   earned,
		NextMilestone: streak.NextMilestone(result.Record.CurrentStreakCount),
	})
}

func (h *StreakHandler) announceBadge(userID int64, badge model.Badge, count int) {
	h.logger.Info("badge earned", "user_id", userID, "badge", badge.Name, "streak", count)
	if h.metrics != nil {
		h.metrics.BadgeAwarded(badge.Name)
	}
	if h.hub != nil {
		h.hub.Send(websocket.NewMessage("badge", "earned", badge.Name, map[string]any{
			"threshold_days": badge.ThresholdDays,
			"streak":         count,
		}), userID)
	}
}

type streakResponse struct {
	Record        *streakView          `json:"record"`
	Badges        []model.AwardedBadge `json:"badges"`
	NextMilestone *model.Badge         `json:"next_milestone"`
}

func (h *StreakHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	rec, err := h.streakStore.Get(userID)
	if err != nil {
		h.logger.Error("get streak", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load streak")
		return
	}
	badges, err := h.badgeStore.ListByUser(userID)
	if err != nil {
		h.logger.Error("list badges", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load badges")
		return
	}
	if badges == nil {
		badges = []model.AwardedBadge{}
	}

	writeJSON(w, http.StatusOK, streakResponse{
		Record:        newStreakView(rec),
		Badges:        badges,
		NextMilestone: streak.NextMilestone(currentCount(rec)),
	})
}

func (h *StreakHandler) Badges(w http.ResponseWriter, r *http.Request) {
	badges, err := h.badgeStore.ListByUser(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list badges", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load badges")
		return
	}
	if badges == nil {
		badges = []model.AwardedBadge{}
	}
	writeJSON(w, http.StatusOK, badges)
}
