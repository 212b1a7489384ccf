package router

import (
	"context"
	"database/sql"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pet-skin-triage/internal/adapters/classifier/dermapi"
	"pet-skin-triage/internal/adapters/location/ipgeo"
	"pet-skin-triage/internal/adapters/places/placeapi"
	mem "pet-skin-triage/internal/adapters/storage/memory"
	pg "pet-skin-triage/internal/adapters/storage/postgres"
	"pet-skin-triage/internal/domain/capture"
	"pet-skin-triage/internal/domain/diagnosis"
	"pet-skin-triage/internal/domain/discovery"
	"pet-skin-triage/internal/domain/geo"
	"pet-skin-triage/internal/domain/intake"
	"pet-skin-triage/internal/domain/results"
	"pet-skin-triage/internal/middleware"
	"pet-skin-triage/internal/platform/logger"
	"pet-skin-triage/internal/platform/metrics"
	"pet-skin-triage/internal/ports/auth"
	"pet-skin-triage/internal/ports/classifier"
	"pet-skin-triage/internal/ports/location"
	"pet-skin-triage/internal/ports/places"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Opcional: si viene, usa Postgres para sesiones. Si no, in-memory.
	DB *sql.DB

	// Overrides de ports (tests). Si son nil se construyen desde env:
	// CLASSIFIER_URL / CLASSIFIER_KEY, PLACES_URL / PLACES_KEY, GEOIP_URL.
	Classifier classifier.Classifier
	Searcher   places.Searcher
	Positions  location.PositionProvider

	Logger  logger.Logger
	Metrics *metrics.Metrics
}

func NewRouter(opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.NewFromEnv()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Repo de sesiones: Postgres si hay DSN, memory si no.
	var repo intake.Repository
	db := opts.DB
	if db == nil {
		if dsn := os.Getenv("DB_DSN"); dsn != "" {
			opened, err := pg.Open(dsn)
			if err == nil {
				db = opened
			} else {
				log.Warn("postgres unavailable, falling back to memory sessions", map[string]any{"err": err.Error()})
			}
		}
	}
	if db != nil {
		repo = pg.NewSessionsRepo(db)
	} else {
		repo = mem.NewSessionRepo()
	}

	// Ports externos: override > env > stub deshabilitado (el pipeline
	// degrada: submit transitorio / búsqueda con error / posición fallback).
	cls := opts.Classifier
	if cls == nil {
		if c, err := dermapi.NewClient(dermapi.Config{
			BaseURL: os.Getenv("CLASSIFIER_URL"),
			APIKey:  os.Getenv("CLASSIFIER_KEY"),
		}); err == nil {
			cls = c
		}
	}

	searcher := opts.Searcher
	if searcher == nil {
		if c, err := placeapi.NewClient(placeapi.Config{
			BaseURL: os.Getenv("PLACES_URL"),
			APIKey:  os.Getenv("PLACES_KEY"),
		}); err == nil {
			searcher = c
		} else {
			searcher = disabledSearcher{}
		}
	}

	positions := opts.Positions
	if positions == nil {
		if c, err := ipgeo.NewClient(ipgeo.Config{BaseURL: os.Getenv("GEOIP_URL")}); err == nil {
			positions = c
		}
		// nil provider => el resolver usa la coordenada fallback.
	}

	m := opts.Metrics

	// Services por módulo
	normalizer := capture.NewNormalizer(log.With(map[string]any{"component": "capture"}))
	gateway := diagnosis.NewGateway(cls, log.With(map[string]any{"component": "diagnosis"}), m)
	resolver := geo.NewResolver(positions, log.With(map[string]any{"component": "geo"}), m)
	newEngine := func() *discovery.Engine {
		return discovery.NewEngine(searcher, log.With(map[string]any{"component": "discovery"}), m)
	}

	svc := intake.NewService(repo, normalizer, gateway, resolver, newEngine, log.With(map[string]any{"component": "intake"}))

	intake.RegisterRoutes(r, svc, results.NewExporter())

	return r
}

// disabledSearcher se usa cuando no hay place-search configurado: la
// búsqueda gruesa falla con un error visible en el snapshot (retry afford),
// no con un panic.
type disabledSearcher struct{}

func (disabledSearcher) NearbySearch(context.Context, places.LatLng, int, string) ([]places.PlaceRef, error) {
	return nil, placeapi.ErrNotConfigured
}

func (disabledSearcher) Details(context.Context, places.PlaceRef, []string) (places.Details, error) {
	return places.Details{}, placeapi.ErrNotConfigured
}
