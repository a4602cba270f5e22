package server

import (
	"net/http"
	"time"

	"commitbet/models"
	"commitbet/service"
)

// HealthCheck reports that the server is alive.
// GET /api/health
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// OpenAccount returns the caller's account, creating it with the starting balance.
// POST /api/accounts
func (s *Server) OpenAccount(w http.ResponseWriter, r *http.Request) {
	principal, err := callerPrincipal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	account, err := s.accounts.GetOrCreateAccount(r.Context(), principal)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

// GetAccount returns the caller's account.
// GET /api/accounts/me
func (s *Server) GetAccount(w http.ResponseWriter, r *http.Request) {
	principal, err := callerPrincipal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	account, err := s.accounts.GetAccount(r.Context(), principal)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

// ListLedger returns the caller's newest balance changes.
// GET /api/accounts/me/ledger?limit=
func (s *Server) ListLedger(w http.ResponseWriter, r *http.Request) {
	principal, err := callerPrincipal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := s.accounts.ListLedger(r.Context(), principal, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]ledgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toLedgerEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": resp})
}

// CreateMarket opens a market created by the caller.
// POST /api/markets
func (s *Server) CreateMarket(w http.ResponseWriter, r *http.Request) {
	creator, err := callerPrincipal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req createMarketRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	marketID, err := parseAmount("market_id", req.MarketID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	market, err := s.markets.CreateMarket(r.Context(), service.CreateMarketParams{
		Creator:             creator,
		Oracle:              req.Oracle,
		MarketID:            marketID,
		Question:            req.Question,
		Deadline:            req.Deadline,
		RevealPeriodSeconds: req.RevealPeriodSeconds,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMarketResponse(market))
}

// ListMarkets returns markets newest first.
// GET /api/markets?status=&limit=
func (s *Server) ListMarkets(w http.ResponseWriter, r *http.Request) {
	var status *models.MarketStatus
	if v := r.URL.Query().Get("status"); v != "" {
		parsed, err := models.ParseMarketStatus(v)
		if err != nil {
			writeError(w, r, badRequest("%v", err))
			return
		}
		status = &parsed
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	markets, err := s.markets.ListMarkets(r.Context(), status, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]marketResponse, 0, len(markets))
	for _, m := range markets {
		resp = append(resp, toMarketResponse(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": resp})
}

// GetMarket returns a single market.
// GET /api/markets/{key}
func (s *Server) GetMarket(w http.ResponseWriter, r *http.Request) {
	key, err := marketKeyParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	market, err := s.markets.GetMarket(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarketResponse(market))
}

// ListBets returns the bets of a market in commit order.
// GET /api/markets/{key}/bets
func (s *Server) ListBets(w http.ResponseWriter, r *http.Request) {
	key, err := marketKeyParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	bets, err := s.markets.ListBets(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]betResponse, 0, len(bets))
	for _, b := range bets {
		resp = append(resp, toBetResponse(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"bets": resp})
}

// GetBet returns a participant's bet.
// GET /api/markets/{key}/bets/{participant}
func (s *Server) GetBet(w http.ResponseWriter, r *http.Request) {
	key, err := marketKeyParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	bet, err := s.markets.GetBet(r.Context(), key, models.Principal(r.PathValue("participant")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBetResponse(bet))
}

// CommitBet escrows the caller's hidden stake.
// POST /api/markets/{key}/commit
func (s *Server) CommitBet(w http.ResponseWriter, r *http.Request) {
	participant, err := callerPrincipal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	key, err := marketKeyParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req commitBetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	bet, err := s.markets.CommitBet(r.Context(), key, participant, req.CommitmentHash, amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBetResponse(bet))
}

// RevealBet opens the caller's commitment.
// POST /api/markets/{key}/reveal
func (s *Server) RevealBet(w http.ResponseWriter, r *http.Request) {
	participant, err := callerPrincipal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	key, err := marketKeyParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req revealBetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	bet, err := s.markets.RevealBet(r.Context(), key, participant, req.Outcome, req.Salt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBetResponse(bet))
}

// ResolveMarket records the outcome declared by the caller.
// POST /api/markets/{key}/resolve
func (s *Server) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	resolver, err := callerPrincipal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	key, err := marketKeyParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req resolveMarketRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	market, err := s.markets.ResolveMarket(r.Context(), key, resolver, req.Outcome)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarketResponse(market))
}

// ClaimWinnings pays the caller's winning bet.
// POST /api/markets/{key}/claim
func (s *Server) ClaimWinnings(w http.ResponseWriter, r *http.Request) {
	participant, err := callerPrincipal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	key, err := marketKeyParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	bet, err := s.markets.ClaimWinnings(r.Context(), key, participant)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBetResponse(bet))
}
