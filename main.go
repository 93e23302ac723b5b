package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"datamap-cloud/internal/audit"
	"datamap-cloud/internal/auth"
	"datamap-cloud/internal/eventbus"
	mappingapp "datamap-cloud/internal/mapping/application"
	mapping "datamap-cloud/internal/mapping/domain"
	mappingmemory "datamap-cloud/internal/mapping/infrastructure/memory"
	mappingpostgres "datamap-cloud/internal/mapping/infrastructure/postgres"
	mappingsqlite "datamap-cloud/internal/mapping/infrastructure/sqlite"
	mappinginterfaces "datamap-cloud/internal/mapping/interfaces"
	mappinghttp "datamap-cloud/internal/mapping/interfaces/http"
	"datamap-cloud/internal/observability/metrics"
	schema "datamap-cloud/internal/schema/domain"
	"datamap-cloud/internal/schema/infrastructure/catalogfile"
	"datamap-cloud/internal/schema/infrastructure/datasetfile"
	schemamemory "datamap-cloud/internal/schema/infrastructure/memory"
	schemapostgres "datamap-cloud/internal/schema/infrastructure/postgres"
	"datamap-cloud/internal/suggest/heuristic"
	"datamap-cloud/internal/suggest/httpclient"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)
	cfg, err := loadConfig()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
	}
	metrics.Init(db, logger)

	store, closeStore, err := buildMappingStore(cfg, db, logger)
	if err != nil {
		logger.Fatalf("mapping store error: %v", err)
	}
	defer closeStore()

	catalog, err := buildCatalog(ctx, cfg, db, logger)
	if err != nil {
		logger.Fatalf("catalog error: %v", err)
	}
	columns, err := buildColumnSource(cfg, db, logger)
	if err != nil {
		logger.Fatalf("dataset columns error: %v", err)
	}
	source, err := buildSuggestionSource(cfg, catalog, columns, logger)
	if err != nil {
		logger.Fatalf("suggestion source error: %v", err)
	}

	var auditSink audit.Logger
	if db != nil {
		auditSink = audit.NewRepository(db)
	} else {
		auditSink = audit.NewLogLogger(logger)
	}
	auditSubscriber, err := audit.NewSubscriber(auditSink, logger)
	if err != nil {
		logger.Fatalf("audit subscriber error: %v", err)
	}

	bus := eventbus.NewInMemoryBus()
	mappinginterfaces.NewLoggingSubscriber(logger).Register(bus)
	auditSubscriber.Register(bus)

	registry, err := mappingapp.NewSessionRegistry(func() (*mappingapp.Session, error) {
		return mappingapp.NewSession(catalog, columns, store, source,
			mappingapp.WithThreshold(cfg.SuggestThreshold),
			mappingapp.WithEventBus(bus),
			mappingapp.WithLogger(logger),
		)
	}, cfg.SessionTTL, mappingapp.WithRegistryLogger(logger))
	if err != nil {
		logger.Fatalf("session registry error: %v", err)
	}
	if err := registry.StartSweeper(cfg.SessionSweep); err != nil {
		logger.Fatalf("session sweeper error: %v", err)
	}

	sessionHandler, err := mappinghttp.NewSessionHandler(registry, logger)
	if err != nil {
		logger.Fatalf("session handler error: %v", err)
	}
	mappingHandler, err := mappinghttp.NewMappingHandler(store, catalog, auditSubscriber, logger)
	if err != nil {
		logger.Fatalf("mapping handler error: %v", err)
	}
	schemaHandler, err := mappinghttp.NewSchemaHandler(catalog, columns, logger)
	if err != nil {
		logger.Fatalf("schema handler error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/schema/fields", schemaHandler)
	mux.Handle("/api/v1/datasets/", schemaHandler)
	mux.Handle("/api/v1/mapping/sessions", sessionHandler)
	mux.Handle("/api/v1/mapping/sessions/", sessionHandler)
	mux.Handle("/api/v1/mappings", mappingHandler)
	mux.Handle("/api/v1/mappings/", mappingHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var handler http.Handler = mux
	if cfg.JWTSecret != "" {
		policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
		handler = auth.NewMiddleware([]byte(cfg.JWTSecret), policy).Wrap(mux)
	} else {
		logger.Printf("auth disabled: AUTH_JWT_SECRET is not set")
	}

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(handler, logger)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		registry.Stop(shutdownCtx)
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("http shutdown error: %v", err)
		}
	}()

	logger.Printf("http listening on %s", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal(err)
	}
}

type mappingStore interface {
	mapping.MappingRepository
	mapping.MappingLister
}

func buildMappingStore(cfg config, db *sql.DB, logger *log.Logger) (mappingStore, func(), error) {
	switch {
	case db != nil:
		logger.Printf("mapping store: postgres")
		return mappingpostgres.NewMappingRepository(db), func() {}, nil
	case cfg.SQLitePath != "":
		store, err := mappingsqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Printf("mapping store: sqlite %s", cfg.SQLitePath)
		return store, func() { _ = store.Close() }, nil
	default:
		logger.Printf("mapping store: memory (mappings are lost on restart)")
		return mappingmemory.NewMappingRepository(), func() {}, nil
	}
}

func buildCatalog(ctx context.Context, cfg config, db *sql.DB, logger *log.Logger) (schema.FieldCatalog, error) {
	if cfg.CatalogSource == catalogSourcePostgres {
		logger.Printf("catalog: postgres")
		return schemapostgres.NewCanonicalFieldRepository(db), nil
	}
	source, err := catalogfile.NewSource(cfg.CatalogPath, logger)
	if err != nil {
		return nil, err
	}
	if cfg.CatalogPath == "" {
		logger.Printf("catalog: embedded default")
		return source, nil
	}
	logger.Printf("catalog: file %s", cfg.CatalogPath)
	if cfg.CatalogWatch {
		if err := source.Watch(ctx); err != nil {
			logger.Printf("catalog watch error: %v", err)
		}
	}
	return source, nil
}

func buildColumnSource(cfg config, db *sql.DB, logger *log.Logger) (schema.ColumnSource, error) {
	switch {
	case cfg.DatasetManifest != "":
		entries, err := datasetfile.LoadManifest(cfg.DatasetManifest)
		if err != nil {
			return nil, err
		}
		logger.Printf("dataset columns: manifest %s (%d datasets)", cfg.DatasetManifest, len(entries))
		return datasetfile.NewSource(entries)
	case db != nil:
		logger.Printf("dataset columns: postgres")
		return schemapostgres.NewDatasetColumnRepository(db), nil
	default:
		logger.Printf("dataset columns: memory (no datasets registered)")
		return schemamemory.NewColumnStore(), nil
	}
}

func buildSuggestionSource(cfg config, catalog schema.FieldCatalog, columns schema.ColumnSource, logger *log.Logger) (mapping.SuggestionSource, error) {
	if cfg.SuggestBaseURL != "" {
		logger.Printf("suggestions: %s", cfg.SuggestBaseURL)
		return httpclient.NewClient(cfg.SuggestBaseURL,
			httpclient.WithToken(cfg.SuggestToken),
			httpclient.WithTimeout(cfg.SuggestTimeout),
		)
	}
	logger.Printf("suggestions: local heuristic (floor %.2f)", cfg.SuggestFloor)
	return heuristic.New(catalog, columns, heuristic.WithFloor(cfg.SuggestFloor))
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
