// Package server wires the apartment map services into one HTTP handler.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/Mad0squirrel/MLOps-pet-project/internal/api"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/api/viewer"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/db"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/logger"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/mapconfig"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/maperr"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/maphost"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/metrics"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/service"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/templates"
)

// Version is published in the OpenAPI document and /api/v1/info.
const Version = "0.1.0"

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	WebDir  string // Path to web/ directory for static files and templates

	StyleURL      string // remote base style, key already applied
	StyleCacheTTL time.Duration
	StyleClient   *http.Client

	Center    [2]float64
	Zoom      float64
	Container string
	Mode      string
	APIHost   string

	ApartmentsFile string
	DistrictsFile  string // empty disables the districts overlay
	DBName         string // empty keeps analytics in memory

	Logger *slog.Logger
}

// Validate checks the widget settings the viewer will be handed.
func (c Config) Validate() error {
	if c.ApartmentsFile == "" {
		return maperr.Configf("validate server config", "apartments file is empty")
	}
	withDistricts := c.DistrictsFile != ""
	if err := mapconfig.Validate(mapconfig.SourceSpecs(withDistricts), mapconfig.Layers(withDistricts, 0)); err != nil {
		return maperr.New(maperr.Config, "validate server config", err)
	}
	return c.hostConfig("http://localhost").Validate()
}

func (c Config) hostConfig(baseURL string) maphost.Config {
	return maphost.Config{
		StyleURL:    c.StyleURL,
		Center:      c.Center,
		Zoom:        c.Zoom,
		Container:   c.Container,
		DataBaseURL: baseURL,
		Districts:   c.DistrictsFile != "",
	}
}

// Server is the apartment map HTTP server.
type Server struct {
	config   Config
	log      *slog.Logger
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	db       *sql.DB
	services *api.Services
	renderer *templates.Renderer
	started  time.Time
}

// New validates cfg, loads the datasets and builds the route table. Dataset
// load failures are logged and surface as 503s; configuration errors fail.
func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	mux := http.NewServeMux()

	humaConfig := huma.DefaultConfig("Apartment Map API", Version)
	humaConfig.Info.Description = "Map configuration, apartment listings and popups for the apartment price map."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append([]huma.Transformer{api.LinkTransformer()}, humaConfig.Transformers...)

	humaAPI := humago.New(mux, humaConfig)

	s := &Server{
		config:  cfg,
		log:     log,
		mux:     mux,
		humaAPI: humaAPI,
		started: time.Now(),
	}

	apartments := service.NewApartmentService(cfg.ApartmentsFile)
	if err := apartments.Load(); err != nil {
		log.Warn("apartments_load_error", "path", cfg.ApartmentsFile, "kind", maperr.KindOf(err).String(), "err", err)
	}
	districts := service.NewDistrictService(cfg.DistrictsFile)
	if err := districts.Load(); err != nil {
		log.Warn("districts_load_error", "path", cfg.DistrictsFile, "kind", maperr.KindOf(err).String(), "err", err)
	}

	conn, err := db.Open(db.Config{DataDir: cfg.DataDir, DBName: cfg.DBName})
	if err != nil {
		log.Warn("db_open_error", "err", err)
	} else {
		s.db = conn
	}
	analytics := service.NewAnalyticsService(s.db)
	if all, err := apartments.All(); err == nil && s.db != nil {
		if err := analytics.LoadApartments(context.Background(), all); err != nil {
			log.Warn("analytics_load_error", "err", err)
		}
	}

	s.services = &api.Services{
		Apartments: apartments,
		Districts:  districts,
		Style:      service.NewStyleService(cfg.StyleURL, cfg.StyleCacheTTL, cfg.StyleClient),
		Analytics:  analytics,
		Bus:        service.NewEventBus(),
	}
	s.renderer = s.loadRenderer()

	s.routes()
	s.handler = logger.AccessMiddleware(log)(metrics.Middleware(routeLabel)(mux))
	return s, nil
}

// loadRenderer prefers fragments on disk so they can be edited without a
// rebuild.
func (s *Server) loadRenderer() *templates.Renderer {
	if s.config.WebDir != "" {
		fragmentsDir := filepath.Join(s.config.WebDir, "templates", "fragments")
		if _, err := os.Stat(fragmentsDir); err == nil {
			r, err := templates.New(fragmentsDir)
			if err == nil {
				s.log.Info("fragments_loaded", "dir", fragmentsDir)
				return r
			}
			s.log.Warn("fragments_load_error", "dir", fragmentsDir, "err", err)
		}
	}
	return templates.Default()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the generated API description.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Services exposes the loaded services.
func (s *Server) Services() *api.Services {
	return s.services
}

// HostConfig returns the map host configuration for a widget talking to this
// server at baseURL. The widget gets the proxied base style and attaches the
// overlays itself.
func (s *Server) HostConfig(baseURL string) maphost.Config {
	cfg := s.config.hostConfig(baseURL)
	cfg.StyleURL = baseURL + "/api/v1/map/style?base=true"
	cfg.MaxPrice = s.services.Apartments.MaxPrice()
	return cfg
}

// Close ends open event streams and closes the database.
func (s *Server) Close() error {
	s.services.Bus.Close()
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Server) routes() {
	settings := api.MapSettings{
		Center:    s.config.Center,
		Zoom:      s.config.Zoom,
		Container: s.config.Container,
		Mode:      s.config.Mode,
		APIHost:   s.config.APIHost,
	}
	huma.AutoRegister(s.humaAPI, api.NewAPIHandler(s.services, settings))
	api.NewDBHandler(s.db).RegisterRoutes(s.humaAPI)
	build := api.Build{Name: "apartment-map", Version: Version, Mode: s.config.Mode, DataDir: s.config.DataDir, Started: s.started}
	api.NewInfoHandler(build, s.services, s.db != nil).RegisterRoutes(s.humaAPI)

	viewer.NewPopupHandler(s.services.Apartments, s.renderer).RegisterRoutes(s.humaAPI)
	viewer.NewEventHandler(s.services.Bus).RegisterRoutes(s.humaAPI)

	s.mux.Handle("GET "+mapconfig.ApartmentsDataPath, s.handleGeoJSON(s.services.Apartments.Raw))
	if s.services.Districts.Enabled() {
		s.mux.Handle("GET "+mapconfig.DistrictsDataPath, s.handleGeoJSON(s.services.Districts.Raw))
	}
	s.mux.Handle("GET /metrics", metrics.Handler())

	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}

	s.mux.HandleFunc("GET /viewer", s.handleViewer)
	s.mux.HandleFunc("/", s.handleRoot)
}

// handleGeoJSON serves a dataset exactly as loaded.
func (s *Server) handleGeoJSON(raw func() ([]byte, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := raw()
		if errors.Is(err, service.ErrNotLoaded) {
			http.Error(w, "dataset not loaded", http.StatusServiceUnavailable)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Write(data)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/viewer", http.StatusFound)
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	// dev: pick up fragment edits on every page load
	if s.config.Mode == "dev" && s.renderer.Dir() != "" {
		if err := s.renderer.Reload(); err != nil {
			s.log.Warn("fragments_reload_error", "dir", s.renderer.Dir(), "err", err)
		}
	}
	templatePath := filepath.Join(s.config.WebDir, "templates", "viewer.html")
	if _, err := os.Stat(templatePath); err != nil {
		http.Error(w, "viewer page not installed", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, templatePath)
}

// routeLabel names the matched route for metrics.
func routeLabel(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}
	return r.Pattern
}
