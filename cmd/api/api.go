package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/KAsare1/slotbook-server/cmd/utils"
	"github.com/KAsare1/slotbook-server/config"
	"github.com/KAsare1/slotbook-server/repository"
	"github.com/KAsare1/slotbook-server/service/availability"
	"github.com/KAsare1/slotbook-server/service/booking"
	"github.com/KAsare1/slotbook-server/service/eventtype"
	"github.com/KAsare1/slotbook-server/service/public"
	"github.com/KAsare1/slotbook-server/service/slots"
	"github.com/KAsare1/slotbook-server/service/user"
	"github.com/KAsare1/slotbook-server/service/ws"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

const shutdownTimeout = 10 * time.Second

type APIServer struct {
	address string
	cfg     config.Config
	store   repository.Store
	cache   slots.Cache
	hub     *ws.Hub
	log     *slog.Logger
	// ping reports storage health; nil means always healthy.
	ping func(ctx context.Context) error
}

func NewApiServer(cfg config.Config, store repository.Store, cache slots.Cache, log *slog.Logger) *APIServer {
	return &APIServer{
		address: ":" + cfg.ServerPort,
		cfg:     cfg,
		store:   store,
		cache:   cache,
		hub:     ws.NewHub(log),
		log:     log,
	}
}

func (s *APIServer) WithHealthCheck(ping func(ctx context.Context) error) *APIServer {
	s.ping = ping
	return s
}

// Handler builds the full middleware chain and route table.
func (s *APIServer) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.healthz).Methods("GET")

	subrouter := router.PathPrefix("/api/v1").Subrouter()
	subrouter.Use(s.requestTimeout)

	auth := utils.NewAuth(s.cfg.SecretKey, s.cfg.TokenTTL)
	slotService := slots.NewService(s.store, s.cache, s.cfg.SlotIntervalMinutes, s.log)
	ledger := booking.NewLedger(s.store)
	orchestrator := booking.NewOrchestrator(s.store, ledger, slotService, s.hub, s.log)

	userHandler := user.NewHandler(s.store, auth, s.log)
	bookingHandler := booking.NewHandler(orchestrator, s.store.Repositories().Hosts)
	availabilityHandler := availability.NewAvailabilityHandler(availability.NewStore(s.store, slotService, s.log))
	eventTypeHandler := eventtype.NewHandler(eventtype.NewService(s.store, slotService, s.log))
	publicHandler := public.NewHandler(s.store, slotService)
	wsHandler := ws.NewHandler(s.hub, s.cfg.CORSOrigins)

	userHandler.RegisterRoutes(subrouter)
	bookingHandler.RegisterPublicRoutes(subrouter)
	publicHandler.RegisterRoutes(subrouter)

	protected := subrouter.NewRoute().Subrouter()
	protected.Use(auth.Middleware)
	userHandler.RegisterHostRoutes(protected)
	availabilityHandler.RegisterRoutes(protected)
	eventTypeHandler.RegisterRoutes(protected)
	bookingHandler.RegisterHostRoutes(protected)
	wsHandler.RegisterRoutes(protected)

	cors := handlers.CORS(
		handlers.AllowedOrigins(s.cfg.CORSOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(
		handlers.CombinedLoggingHandler(os.Stdout, cors(router)),
	)
}

func (s *APIServer) requestTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *APIServer) healthz(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			s.log.Error("health check failed", "error", err)
			utils.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *APIServer) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)

	server := &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server running", "address", s.address)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
