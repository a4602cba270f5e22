package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"commitbet/service"

	log "github.com/sirupsen/logrus"
)

// Config holds the HTTP server configuration
type Config struct {
	Addr   string
	APIKey string // Empty disables authentication
}

// Server is the HTTP API over the market and account services
type Server struct {
	httpServer *http.Server
	markets    service.MarketService
	accounts   service.AccountService
}

// New creates a server with all routes registered
func New(cfg Config, markets service.MarketService, accounts service.AccountService) *Server {
	s := &Server{
		markets:  markets,
		accounts: accounts,
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(cfg.APIKey),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(apiKey string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.HealthCheck)

	mux.HandleFunc("POST /api/accounts", s.OpenAccount)
	mux.HandleFunc("GET /api/accounts/me", s.GetAccount)
	mux.HandleFunc("GET /api/accounts/me/ledger", s.ListLedger)

	mux.HandleFunc("POST /api/markets", s.CreateMarket)
	mux.HandleFunc("GET /api/markets", s.ListMarkets)
	mux.HandleFunc("GET /api/markets/{key}", s.GetMarket)
	mux.HandleFunc("GET /api/markets/{key}/bets", s.ListBets)
	mux.HandleFunc("GET /api/markets/{key}/bets/{participant}", s.GetBet)
	mux.HandleFunc("POST /api/markets/{key}/commit", s.CommitBet)
	mux.HandleFunc("POST /api/markets/{key}/reveal", s.RevealBet)
	mux.HandleFunc("POST /api/markets/{key}/resolve", s.ResolveMarket)
	mux.HandleFunc("POST /api/markets/{key}/claim", s.ClaimWinnings)

	var h http.Handler = mux
	h = apiKeyAuth(apiKey)(h)
	h = recoverer(h)
	h = logging(h)
	h = requestID(h)
	return h
}

// Handler exposes the routed handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Serve accepts connections until ctx is cancelled, then shuts down gracefully
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}

	log.WithField("addr", ln.Addr().String()).Info("HTTP server listening")

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info("Shutting down HTTP server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}
