package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Mad0squirrel/MLOps-pet-project/internal/logger"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/mapconfig"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/maperr"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/maphost"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/server"
)

// Options defines all CLI flags and env vars for the map server.
// Flags: --host, --port, --style-base, --api-key, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_STYLE_BASE, SERVICE_API_KEY, ...
type Options struct {
	Host    string `doc:"Host to bind to" default:"0.0.0.0"`
	Port    int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir string `doc:"Directory for the analytics database" default:".data"`
	WebDir  string `doc:"Path to web/ directory" default:"web"`

	StyleBase     string `doc:"Base map style URL; {key} is replaced by the API key" default:"https://demotiles.maplibre.org/style.json"`
	APIKey        string `doc:"Map tiles API key"`
	StyleCacheTTL int    `doc:"Seconds to cache the remote style" default:"600"`

	APIHost   string `doc:"Price prediction API host handed to the viewer" default:"localhost:8000"`
	Mode      string `doc:"Deployment mode (dev, prod)" default:"dev"`
	Center    string `doc:"Initial map center as lon,lat" default:"37.6173,55.7558"`
	Zoom      int    `doc:"Initial zoom level" default:"10"`
	Container string `doc:"Element id the map mounts into" default:"map"`

	Apartments string `doc:"Apartments GeoJSON file" default:"web/static/apartments.geojson"`
	Districts  string `doc:"Districts GeoJSON file; empty disables the overlay"`
	DBName     string `doc:"DuckDB file name under the data dir; empty keeps it in memory" default:"apartments"`

	LogLevel  string `doc:"Log level (debug, info, warn, error)" default:"info"`
	LogFormat string `doc:"Log format (text, json)" default:"text"`
}

func parseCenter(s string) ([2]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return [2]float64{}, maperr.Configf("parse center", "center %q is not lon,lat", s)
	}
	var c [2]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return [2]float64{}, maperr.New(maperr.Config, "parse center", err)
		}
		c[i] = v
	}
	return c, nil
}

func newServer(opts *Options) (*server.Server, error) {
	l := logger.Setup(opts.LogLevel, opts.LogFormat)

	styleURL, err := mapconfig.StyleURL(opts.StyleBase, opts.APIKey)
	if err != nil {
		return nil, err
	}
	center, err := parseCenter(opts.Center)
	if err != nil {
		return nil, err
	}

	return server.New(server.Config{
		Host:           opts.Host,
		Port:           strconv.Itoa(opts.Port),
		DataDir:        opts.DataDir,
		WebDir:         opts.WebDir,
		StyleURL:       styleURL,
		StyleCacheTTL:  time.Duration(opts.StyleCacheTTL) * time.Second,
		Center:         center,
		Zoom:           float64(opts.Zoom),
		Container:      opts.Container,
		Mode:           opts.Mode,
		APIHost:        opts.APIHost,
		ApartmentsFile: opts.Apartments,
		DistrictsFile:  opts.Districts,
		DBName:         opts.DBName,
		Logger:         l,
	})
}

func mustServer(opts *Options) *server.Server {
	srv, err := newServer(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return srv
}

func main() {
	_ = godotenv.Load(".env")

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var httpServer *http.Server

		hooks.OnStart(func() {
			srv := mustServer(opts)
			defer srv.Close()

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)
			slog.Info("server_start",
				"addr", addr,
				"viewer", baseURL+"/viewer",
				"docs", baseURL+"/docs",
				"openapi", baseURL+"/openapi.json",
			)

			httpServer = &http.Server{Addr: addr, Handler: srv}
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("server_error", "err", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			if httpServer == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpServer.Shutdown(ctx)
		})
	})

	cli.Root().Use = "apartment-map"
	cli.Root().Short = "Apartment price map: markers, heatmap and popups"
	cli.Root().Version = server.Version

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := mustServer(opts)
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			var err error
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// check subcommand: mount a headless map against an in-process server
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Load the map headlessly and report whether it becomes ready",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			timeout, _ := cmd.Flags().GetDuration("timeout")
			click, _ := cmd.Flags().GetString("click")
			if err := runCheck(cmd.Context(), opts, timeout, click); err != nil {
				fmt.Fprintf(os.Stderr, "Check failed: %v\n", err)
				os.Exit(1)
			}
		}),
	}
	checkCmd.Flags().Duration("timeout", 30*time.Second, "How long to wait for the map to load")
	checkCmd.Flags().String("click", "", "Click at lon,lat once loaded and print the popup")
	cli.Root().AddCommand(checkCmd)

	cli.Run()
}

// runCheck serves the API on a loopback port and drives a headless map host
// through its full lifecycle against it.
func runCheck(ctx context.Context, opts *Options, timeout time.Duration, click string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	srv, err := newServer(opts)
	if err != nil {
		return err
	}
	defer srv.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	hs := &http.Server{Handler: srv}
	go hs.Serve(ln)
	defer hs.Close()

	cfg := srv.HostConfig("http://" + ln.Addr().String())
	page := maphost.NewPage(cfg.Container)
	host, err := maphost.New(cfg, maphost.HeadlessFactory(page, &http.Client{Timeout: timeout}))
	if err != nil {
		return err
	}
	dispose, err := host.Mount(ctx)
	defer dispose()
	if err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	switch st := host.Wait(waitCtx); st {
	case maphost.StateReady:
		slog.Info("check_ready", "layers", len(host.Layers()))
	case maphost.StateFailed:
		return fmt.Errorf("map failed (%s): %w", maperr.KindOf(host.Err()), host.Err())
	default:
		return fmt.Errorf("map still %s after %s", st, timeout)
	}

	if click == "" {
		return nil
	}
	at, err := parseCenter(click)
	if err != nil {
		return err
	}
	p, ok, err := host.Click(waitCtx, at[0], at[1])
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("no apartments at", click)
		return nil
	}
	out, _ := json.MarshalIndent(p, "", "  ")
	fmt.Println(string(out))
	return nil
}
