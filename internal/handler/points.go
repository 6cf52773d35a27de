package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/allowance/internal/ledger"
	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/report"
)

type PointsHandler struct {
	engine *ledger.Engine
	views  *report.Views
	snaps  Snapshotter
	logger *slog.Logger
}

func NewPointsHandler(engine *ledger.Engine, views *report.Views, snaps Snapshotter, logger *slog.Logger) *PointsHandler {
	return &PointsHandler{engine: engine, views: views, snaps: snaps, logger: logger}
}

func (h *PointsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	p, err := h.engine.PointsBalance(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err, "failed to get points balance")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Completions lists the completions of ?date=, defaulting to today.
func (h *PointsHandler) Completions(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if date.IsZero() {
		date = h.engine.Today()
	}

	completions, err := h.views.CompletionsOn(r.Context(), date)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to list completions")
		return
	}
	if completions == nil {
		completions = []model.TaskCompletion{}
	}
	writeJSON(w, http.StatusOK, completions)
}

type completionRequest struct {
	TaskID int64  `json:"task_id"`
	Date   string `json:"date"`
}

func (h *PointsHandler) decodeCompletion(w http.ResponseWriter, r *http.Request) (int64, time.Time, bool) {
	var req completionRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return 0, time.Time{}, false
	}
	if req.TaskID <= 0 {
		badRequest(w, "task_id is required")
		return 0, time.Time{}, false
	}
	date, err := parseDate(req.Date)
	if err != nil {
		badRequest(w, err.Error())
		return 0, time.Time{}, false
	}
	return req.TaskID, date, true
}

func (h *PointsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	taskID, date, ok := h.decodeCompletion(w, r)
	if !ok {
		return
	}

	completion, err := h.engine.CompleteTask(r.Context(), taskID, date)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to complete task")
		return
	}
	writeJSON(w, http.StatusCreated, completion)
}

type undoResponse struct {
	Removed *model.TaskCompletion `json:"removed"`
	Points  *model.PointsBalance  `json:"points"`
}

func (h *PointsHandler) Undo(w http.ResponseWriter, r *http.Request) {
	taskID, date, ok := h.decodeCompletion(w, r)
	if !ok {
		return
	}

	removed, p, err := h.engine.UndoTaskCompletion(r.Context(), taskID, date)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to undo completion")
		return
	}
	writeJSON(w, http.StatusOK, undoResponse{Removed: removed, Points: p})
}

func (h *PointsHandler) DailyPoints(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := parseDate(q.Get("start"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	end, err := parseDate(q.Get("end"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	seq, err := h.views.DailyPoints(r.Context(), start, end)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to summarize daily points")
		return
	}

	days := []model.DailyPoints{}
	for day := range seq {
		days = append(days, day)
	}
	writeJSON(w, http.StatusOK, days)
}

func (h *PointsHandler) Redemptions(w http.ResponseWriter, r *http.Request) {
	month, err := parseMonth(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	entries, err := h.views.Redemptions(r.Context(), month)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to list redemptions")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *PointsHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RewardID int64 `json:"reward_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if req.RewardID <= 0 {
		badRequest(w, "reward_id is required")
		return
	}

	redemption, err := h.engine.RedeemReward(r.Context(), req.RewardID)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to redeem reward")
		return
	}
	writeJSON(w, http.StatusCreated, redemption)
}

func (h *PointsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if !snapshotBefore(w, r, h.snaps, h.logger, "before points reset") {
		return
	}
	p, err := h.engine.ResetPoints(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err, "failed to reset points")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
