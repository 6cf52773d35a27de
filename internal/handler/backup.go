package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/allowance/internal/backup"
	"github.com/dukerupert/allowance/internal/model"
)

type BackupHandler struct {
	snaps  Snapshotter
	logger *slog.Logger
}

func NewBackupHandler(snaps Snapshotter, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{snaps: snaps, logger: logger}
}

func (h *BackupHandler) writeBackupError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, backup.ErrDisabled):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error(), Code: "backups_disabled"})
	case errors.Is(err, backup.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error(), Code: "backup_not_found"})
	default:
		h.logger.ErrorContext(r.Context(), fallback, "error", err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: fallback, Code: "backup_failed"})
	}
}

func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	b, err := h.snaps.Snapshot(r.Context(), "manual")
	if err != nil {
		h.writeBackupError(w, r, err, "failed to take snapshot")
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			badRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	backups, err := h.snaps.List(r.Context(), limit)
	if err != nil {
		h.writeBackupError(w, r, err, "failed to list snapshots")
		return
	}
	if backups == nil {
		backups = []model.Backup{}
	}
	writeJSON(w, http.StatusOK, backups)
}

// Download returns the decrypted SQLite file of a completed snapshot.
func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	data, err := h.snaps.Fetch(r.Context(), id)
	if err != nil {
		h.writeBackupError(w, r, err, "failed to fetch snapshot")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.sqlite3")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="allowance-snapshot-%d.db"`, id))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
