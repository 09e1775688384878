// ABOUTME: Server assembly wiring the store, auth, pairing and ingest pipeline
// ABOUTME: Owns the HTTP listener and the background maintenance loops

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/courierhq/courier-gateway/internal/auth"
	"github.com/courierhq/courier-gateway/internal/config"
	"github.com/courierhq/courier-gateway/internal/pairing"
	"github.com/courierhq/courier-gateway/internal/store"
)

const (
	codeSweepInterval = time.Minute
	logPurgeInterval  = time.Hour
	shutdownTimeout   = 10 * time.Second
)

// Server ties the persistence layer, token signer, pairing service and
// message pipeline together behind one HTTP listener.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   store.Store
	signer  *auth.Signer
	gateway *Gateway
	pairing *pairing.Service
	httpSrv *http.Server
}

// NewServer builds a fully wired Server from configuration. The caller owns
// Run; Close releases the store and pipeline resources.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	signer, err := auth.NewSigner([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		st.Close()
		return nil, err
	}

	gw := New(Options{
		Store:      st,
		Logger:     logger,
		DedupeTTL:  cfg.Ingest.DedupeTTL,
		DedupeSize: cfg.Ingest.DedupeSize,
	})

	pairingSvc := pairing.NewService(pairing.ServiceOptions{
		Store:    st,
		Signer:   signer,
		Logger:   logger,
		CodeTTL:  cfg.Pairing.CodeTTL,
		TokenTTL: cfg.Pairing.TokenTTL,
	})

	sessionAuth := auth.SessionMiddleware(st, signer)

	mux := http.NewServeMux()
	mux.Handle("POST /session/login", auth.NewLoginHandler(st, signer, logger))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	pairing.NewAPI(pairingSvc, logger).Routes(mux, sessionAuth)
	NewAPI(gw, pairingSvc, signer, logger).Routes(mux, sessionAuth)

	return &Server{
		cfg:     cfg,
		logger:  logger.With("component", "server"),
		store:   st,
		signer:  signer,
		gateway: gw,
		pairing: pairingSvc,
		httpSrv: &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Gateway exposes the message pipeline so callers can register handlers
// before Run.
func (s *Server) Gateway() *Gateway {
	return s.gateway
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
// Maintenance loops (expired code sweep, message log purge) run alongside.
func (s *Server) Run(ctx context.Context) error {
	go s.maintenance(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// maintenance runs the periodic cleanup loops until ctx is cancelled.
func (s *Server) maintenance(ctx context.Context) {
	sweep := time.NewTicker(codeSweepInterval)
	defer sweep.Stop()
	purge := time.NewTicker(logPurgeInterval)
	defer purge.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			if n, err := s.pairing.SweepExpiredCodes(ctx); err != nil {
				s.logger.Error("pairing code sweep failed", "error", err)
			} else if n > 0 {
				s.logger.Debug("expired pairing codes removed", "count", n)
			}
		case <-purge.C:
			retention := s.cfg.Ingest.LogRetention
			if retention <= 0 {
				continue
			}
			cutoff := time.Now().UTC().Add(-retention)
			if n, err := s.store.PurgeMessageLog(ctx, cutoff); err != nil {
				s.logger.Error("message log purge failed", "error", err)
			} else if n > 0 {
				s.logger.Info("message log purged", "count", n, "older_than", cutoff)
			}
		}
	}
}

// Close releases server-owned resources.
func (s *Server) Close() error {
	s.gateway.Close()
	return s.store.Close()
}
