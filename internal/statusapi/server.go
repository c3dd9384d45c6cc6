package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"ticketsync/internal/ledger"
	"ticketsync/internal/logging"
)

// Server serves ledger progress views.
type Server struct {
	store       ledger.Store
	attachments AttachmentLister
	token       string
	logger      *slog.Logger

	router   *mux.Router
	listener net.Listener
	server   *http.Server
}

// NewServer builds a Server over store. attachments may be nil; token, when
// set, must be presented as a bearer token on every request.
func NewServer(store ledger.Store, attachments AttachmentLister, token string, logger *slog.Logger) *Server {
	srv := &Server{
		store:       store,
		attachments: attachments,
		token:       strings.TrimSpace(token),
		logger:      logging.NewComponentLogger(logger, "status-api"),
		router:      mux.NewRouter(),
	}
	srv.router.HandleFunc("/health", srv.handleHealth).Methods(http.MethodGet)
	api := srv.router.PathPrefix("/api").Subrouter()
	api.Use(srv.authMiddleware)
	api.HandleFunc("/summary", srv.handleSummary).Methods(http.MethodGet)
	api.HandleFunc("/records", srv.handleRecords).Methods(http.MethodGet)
	api.HandleFunc("/records/{id}", srv.handleRecord).Methods(http.MethodGet)
	methodNotAllowed := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		srv.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	notFound := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		srv.writeError(w, http.StatusNotFound, "not found")
	})
	// Subrouters do not inherit these from the root router.
	for _, r := range []*mux.Router{srv.router, api} {
		r.MethodNotAllowedHandler = methodNotAllowed
		r.NotFoundHandler = notFound
	}
	return srv
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on bind and serves until ctx is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context, bind string) (net.Addr, error) {
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return nil, fmt.Errorf("status api listen: %w", err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("status api listening", logging.String("address", listener.Addr().String()))
	return listener.Addr(), nil
}

// Stop shuts the server down.
func (s *Server) Stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	if s.token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.token {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List(r.Context())
	if err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, Health{Status: "unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, Health{Status: "ok", Records: len(records)})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := BuildSummary(r.Context(), s.store, s.attachments)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []ledger.Record{}
	}
	s.writeJSON(w, http.StatusOK, RecordListResponse{Records: records})
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid ticket id")
		return
	}
	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		s.writeError(w, http.StatusNotFound, "ticket not in ledger")
		return
	}
	s.writeJSON(w, http.StatusOK, RecordResponse{Record: *rec})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
