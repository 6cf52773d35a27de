package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/allowance/internal/ledger"
	"github.com/dukerupert/allowance/internal/model"
)

type CatalogHandler struct {
	engine *ledger.Engine
	logger *slog.Logger
}

func NewCatalogHandler(engine *ledger.Engine, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{engine: engine, logger: logger}
}

// Fields left out of an update keep their current value.
type taskRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Points      *int    `json:"points"`
	Active      *bool   `json:"active"`
}

type rewardRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	PointsCost  *int    `json:"points_cost"`
	Active      *bool   `json:"active"`
}

func deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

// ListTasks returns active tasks, or all of them with ?all=true.
func (h *CatalogHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.engine.Tasks(r.Context(), r.URL.Query().Get("all") == "true")
	if err != nil {
		writeError(w, r, h.logger, err, "failed to list tasks")
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *CatalogHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	task, err := h.engine.UpsertTask(r.Context(), ledger.TaskInput{
		Name:        deref(req.Name, ""),
		Description: deref(req.Description, ""),
		Points:      deref(req.Points, 0),
		Active:      req.Active,
	})
	if err != nil {
		writeError(w, r, h.logger, err, "failed to create task")
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *CatalogHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	existing, err := h.engine.Task(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to get task")
		return
	}

	task, err := h.engine.UpsertTask(r.Context(), ledger.TaskInput{
		ID:          id,
		Name:        deref(req.Name, existing.Name),
		Description: deref(req.Description, existing.Description),
		Points:      deref(req.Points, existing.Points),
		Active:      req.Active,
	})
	if err != nil {
		writeError(w, r, h.logger, err, "failed to update task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *CatalogHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	task, err := h.engine.DeactivateTask(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to deactivate task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// ListRewards returns active rewards, or all of them with ?all=true.
func (h *CatalogHandler) ListRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.engine.Rewards(r.Context(), r.URL.Query().Get("all") == "true")
	if err != nil {
		writeError(w, r, h.logger, err, "failed to list rewards")
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (h *CatalogHandler) CreateReward(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	reward, err := h.engine.UpsertReward(r.Context(), ledger.RewardInput{
		Name:        deref(req.Name, ""),
		Description: deref(req.Description, ""),
		PointsCost:  deref(req.PointsCost, 0),
		Active:      req.Active,
	})
	if err != nil {
		writeError(w, r, h.logger, err, "failed to create reward")
		return
	}
	writeJSON(w, http.StatusCreated, reward)
}

func (h *CatalogHandler) UpdateReward(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	var req rewardRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	existing, err := h.engine.Reward(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to get reward")
		return
	}

	reward, err := h.engine.UpsertReward(r.Context(), ledger.RewardInput{
		ID:          id,
		Name:        deref(req.Name, existing.Name),
		Description: deref(req.Description, existing.Description),
		PointsCost:  deref(req.PointsCost, existing.PointsCost),
		Active:      req.Active,
	})
	if err != nil {
		writeError(w, r, h.logger, err, "failed to update reward")
		return
	}
	writeJSON(w, http.StatusOK, reward)
}

func (h *CatalogHandler) DeleteReward(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	reward, err := h.engine.DeactivateReward(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to deactivate reward")
		return
	}
	writeJSON(w, http.StatusOK, reward)
}
