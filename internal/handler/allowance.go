package handler

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/ledger"
	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/report"
)

type AllowanceHandler struct {
	engine *ledger.Engine
	views  *report.Views
	snaps  Snapshotter
	logger *slog.Logger
}

func NewAllowanceHandler(engine *ledger.Engine, views *report.Views, snaps Snapshotter, logger *slog.Logger) *AllowanceHandler {
	return &AllowanceHandler{engine: engine, views: views, snaps: snaps, logger: logger}
}

type balanceResponse struct {
	*model.Balance
	Total decimal.Decimal `json:"total"`
}

func newBalanceResponse(b *model.Balance) balanceResponse {
	return balanceResponse{Balance: b, Total: b.Total()}
}

func (h *AllowanceHandler) Balance(w http.ResponseWriter, r *http.Request) {
	b, err := h.engine.Balance(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err, "failed to get balance")
		return
	}
	writeJSON(w, http.StatusOK, newBalanceResponse(b))
}

func (h *AllowanceHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	b, err := h.engine.Deposit(r.Context(), req.Amount)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to record deposit")
		return
	}
	writeJSON(w, http.StatusCreated, newBalanceResponse(b))
}

// Withdraw treats a missing category amount as zero.
func (h *AllowanceHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VideoGames      decimal.Decimal `json:"video_games"`
		GeneralSpending decimal.Decimal `json:"general_spending"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	b, err := h.engine.Withdraw(r.Context(), req.VideoGames, req.GeneralSpending)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to record withdrawal")
		return
	}
	writeJSON(w, http.StatusCreated, newBalanceResponse(b))
}

func (h *AllowanceHandler) UpdateBalance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VideoGames      *decimal.Decimal `json:"video_games"`
		GeneralSpending *decimal.Decimal `json:"general_spending"`
		Charity         *decimal.Decimal `json:"charity"`
		Savings         *decimal.Decimal `json:"savings"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	for _, v := range []*decimal.Decimal{req.VideoGames, req.GeneralSpending, req.Charity, req.Savings} {
		if v == nil {
			badRequest(w, "video_games, general_spending, charity and savings are all required")
			return
		}
		if v.IsNegative() {
			badRequest(w, "balance values must not be negative")
			return
		}
	}

	b, err := h.engine.UpdateBalance(r.Context(), model.Balance{
		VideoGames:      *req.VideoGames,
		GeneralSpending: *req.GeneralSpending,
		Charity:         *req.Charity,
		Savings:         *req.Savings,
	})
	if err != nil {
		writeError(w, r, h.logger, err, "failed to update balance")
		return
	}
	writeJSON(w, http.StatusOK, newBalanceResponse(b))
}

func (h *AllowanceHandler) Overrides(w http.ResponseWriter, r *http.Request) {
	overrides, err := h.engine.Overrides(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err, "failed to list balance overrides")
		return
	}
	if overrides == nil {
		overrides = []model.BalanceOverride{}
	}
	writeJSON(w, http.StatusOK, overrides)
}

func (h *AllowanceHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if !snapshotBefore(w, r, h.snaps, h.logger, "before allowance reset") {
		return
	}
	b, err := h.engine.ResetAll(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err, "failed to reset allowance")
		return
	}
	writeJSON(w, http.StatusOK, newBalanceResponse(b))
}

func (h *AllowanceHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	month, err := parseMonth(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	txs, err := h.views.Transactions(r.Context(), month)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to list transactions")
		return
	}
	if txs == nil {
		txs = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *AllowanceHandler) Deposits(w http.ResponseWriter, r *http.Request) {
	deposits, err := h.views.Deposits(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err, "failed to list deposits")
		return
	}
	writeJSON(w, http.StatusOK, deposits)
}

func (h *AllowanceHandler) MonthlyFlow(w http.ResponseWriter, r *http.Request) {
	flows, err := h.views.MonthlyFlow(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err, "failed to summarize monthly flow")
		return
	}
	writeJSON(w, http.StatusOK, flows)
}
