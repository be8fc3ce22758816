// Command callbridge is the process entrypoint: it loads configuration,
// wires every component together, and serves the telephony/escalation
// HTTP surface alongside a separate metrics listener, following
// LumenPrima-tr-engine's cmd/tr-engine/main.go shape (signal-driven
// graceful shutdown, background HTTP serve with an error channel).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/piemonte-health/callbridge/internal/booking"
	"github.com/piemonte-health/callbridge/internal/bridge"
	"github.com/piemonte-health/callbridge/internal/catalog"
	"github.com/piemonte-health/callbridge/internal/cerba"
	"github.com/piemonte-health/callbridge/internal/config"
	"github.com/piemonte-health/callbridge/internal/escalation"
	"github.com/piemonte-health/callbridge/internal/flow"
	"github.com/piemonte-health/callbridge/internal/flow/handlers"
	"github.com/piemonte-health/callbridge/internal/httpapi"
	"github.com/piemonte-health/callbridge/internal/knowledgebase"
	"github.com/piemonte-health/callbridge/internal/logging"
	"github.com/piemonte-health/callbridge/internal/search"
	"github.com/piemonte-health/callbridge/internal/stats"
	"github.com/piemonte-health/callbridge/internal/wsconn"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("callbridge: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logging.Build(cfg.LogFormat == "json", cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString("callbridge: logger init: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := pgxpool.New(ctx, cfg.DB.DSN())
	if err != nil {
		log.Fatalw("failed to open database pool", "error", err)
	}
	defer db.Close()

	if err := stats.ApplyMigrations(cfg.DB.DSN(), cfg.MigrationsPath, log); err != nil {
		log.Fatalw("failed to apply tb_stat migrations", "error", err)
	}
	statsWriter := stats.New(db, log)

	services, err := catalog.Load(cfg.DataFilePath)
	if err != nil {
		log.Fatalw("failed to load service catalog", "error", err)
	}
	catalogIndex, err := catalog.UUIDIndex(cfg.DataFilePath)
	if err != nil {
		log.Fatalw("failed to index service catalog", "error", err)
	}
	searchEngine := search.NewEngine(services)

	var kb *knowledgebase.Store
	if cfg.KnowledgeBaseFilePath != "" {
		kb, err = knowledgebase.Load(cfg.KnowledgeBaseFilePath)
		if err != nil {
			log.Fatalw("failed to load knowledge base", "error", err)
		}
	}

	cerbaClient := cerba.New(cfg.CerbaBaseURL, cfg.CerbaToken)
	orchestrator := booking.NewOrchestrator(cerbaClient, log)

	var reasoner *booking.Reasoner
	if cfg.OpenAIAPIKey != "" {
		reasoner = booking.NewReasoner(cfg.OpenAIAPIKey, cfg.OpenAIModel, log)
	}

	registry := bridge.NewRegistry()
	escalationController := escalation.New(registry, log)
	dialer := &bridge.DefaultAgentDialer{ServerURL: cfg.PipecatServerURL}

	handlerFactory := newHandlerRegistryFactory(searchEngine, catalogIndex, orchestrator, reasoner, kb)

	sessionFactory := func(conn *wsconn.Conn) *bridge.Session {
		return bridge.NewSession(conn, dialer, statsWriter, cfg.InfoAgentAssistantID, registry, handlerFactory, log)
	}

	api := httpapi.New(sessionFactory, escalationController, db, log)
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}

	errCh := make(chan error, 2)
	go func() { errCh <- srv.ListenAndServe() }()
	go func() { errCh <- metricsSrv.ListenAndServe() }()

	log.Infow("callbridge ready", "http_addr", cfg.HTTPAddr, "metrics_addr", cfg.MetricsAddr)

	select {
	case <-ctx.Done():
		log.Infow("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Errorw("http server error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)

	log.Infow("callbridge stopped")
}

// newHandlerRegistryFactory builds a bridge.HandlerRegistryFactory over
// the process-wide search engine, catalog index, booking orchestrator
// and knowledge base, rebuilding only the business-status-dependent
// request_transfer closure per call.
func newHandlerRegistryFactory(searchEngine *search.Engine, catalogIndex map[string]search.Service, orchestrator *booking.Orchestrator, reasoner *booking.Reasoner, kb *knowledgebase.Store) bridge.HandlerRegistryFactory {
	lookupCatalog := func(uuid string) (search.Service, bool) {
		svc, ok := catalogIndex[uuid]
		return svc, ok
	}

	return func(businessStatus string) map[string]handlers.Handler {
		deps := flow.Dependencies{
			SearchEngine:    searchEngine,
			Catalog:         lookupCatalog,
			Orchestrator:    orchestrator,
			KnowledgeBase:   func(q string) (string, bool) { return kb.Answer(q) },
			CallGraphLookup: func(q string) (string, bool) { return kb.CallGraph(q) },
			ExamByVisit:     func(code string) (string, bool) { return kb.ExamByVisit(code) },
			ExamBySport:     func(sport string) (string, bool) { return kb.ExamBySport(sport) },
			Pricing:         func(age int, gender, sport, region string) (string, bool) { return kb.CompetitivePricing(age, gender, sport, region) },
			NonAgonistic:    func(string) (string, bool) { return kb.NonAgonisticPricing() },
			BusinessStatus:  func() string { return businessStatus },
			CommitBooking:   commitBookingFunc(orchestrator, reasoner),
			CenterSearch:    centerSearchFunc(orchestrator),
			SlotSearch:      slotSearchFunc(orchestrator),
			SlotReserve:     slotReserveFunc(orchestrator),
		}
		return flow.BuildRegistry(deps)
	}
}
