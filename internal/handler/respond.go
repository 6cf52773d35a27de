package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dukerupert/allowance/internal/ledger"
	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/report"
	"github.com/dukerupert/allowance/internal/store"
)

// Snapshotter takes and serves encrypted database snapshots.
type Snapshotter interface {
	Enabled() bool
	Snapshot(ctx context.Context, reason string) (*model.Backup, error)
	List(ctx context.Context, limit int) ([]model.Backup, error)
	Fetch(ctx context.Context, id int64) ([]byte, error)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Code: "bad_request"})
}

// writeError maps ledger failure kinds to status codes. Anything outside the
// taxonomy is logged and reported as fallback, without internal detail.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, fallback string) {
	status := http.StatusInternalServerError
	switch ledger.KindOf(err) {
	case ledger.ErrValidation:
		status = http.StatusBadRequest
	case ledger.ErrNotFound:
		status = http.StatusNotFound
	case ledger.ErrConflict:
		status = http.StatusConflict
	case ledger.ErrStorage:
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), fallback, "error", err)
		writeJSON(w, status, errorBody{Error: fallback, Code: "internal"})
		return
	}
	if status == http.StatusServiceUnavailable {
		logger.WarnContext(r.Context(), fallback, "error", err)
	}
	writeJSON(w, status, errorBody{Error: errorMessage(err), Code: ledger.CodeOf(err)})
}

func errorMessage(err error) string {
	var le *ledger.Error
	if errors.As(err, &le) {
		return le.Message
	}
	return err.Error()
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// parseDate reads a YYYY-MM-DD value. Empty input yields the zero time.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := store.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD, got %q", s)
	}
	return d, nil
}

// parseMonth reads the month and year query parameters. Both or neither
// must be given; neither means no filter.
func parseMonth(r *http.Request) (*report.Month, error) {
	q := r.URL.Query()
	monthStr, yearStr := q.Get("month"), q.Get("year")
	if monthStr == "" && yearStr == "" {
		return nil, nil
	}
	if monthStr == "" || yearStr == "" {
		return nil, errors.New("month and year must be given together")
	}

	month, err := strconv.Atoi(monthStr)
	if err != nil || month < 1 || month > 12 {
		return nil, fmt.Errorf("month must be 1-12, got %q", monthStr)
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil || year < 1 {
		return nil, fmt.Errorf("invalid year %q", yearStr)
	}
	return &report.Month{Year: year, Month: time.Month(month)}, nil
}

// snapshotBefore takes a snapshot ahead of a destructive operation when
// backups are configured. It writes the error response itself and reports
// whether the caller may proceed.
func snapshotBefore(w http.ResponseWriter, r *http.Request, snaps Snapshotter, logger *slog.Logger, reason string) bool {
	if snaps == nil || !snaps.Enabled() {
		return true
	}
	if _, err := snaps.Snapshot(r.Context(), reason); err != nil {
		logger.ErrorContext(r.Context(), "pre-reset snapshot failed", "reason", reason, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Error: "could not take a snapshot before resetting; nothing was changed",
			Code:  "snapshot_failed",
		})
		return false
	}
	return true
}
