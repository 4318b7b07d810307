package cli

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/matzehuels/afcplot/pkg/analysis"
	aerrors "github.com/matzehuels/afcplot/pkg/errors"
	afcio "github.com/matzehuels/afcplot/pkg/io"
	"github.com/matzehuels/afcplot/pkg/observability"
	"github.com/matzehuels/afcplot/pkg/pipeline"
	"github.com/matzehuels/afcplot/pkg/plot"
)

const requestIDKey ctxKey = 1

// serveCommand creates the serve command, which answers figure requests
// for one trial table over HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve <trials.json>",
		Short: "Serve interactive figures over HTTP",
		Long: `Serve interactive figures of a trial table over HTTP.

Endpoints:
  GET /                       index of animals and figures
  GET /healthz                liveness probe
  GET /api/animals            animals with session and trial counts
  GET /api/figures/{kind}     figure JSON (?animal=M1&format=json|html)
  GET /figures/{kind}         standalone figure page (?animal=M1)

The server always uses the interactive backend.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = c.Config.Server.Addr
			}
			return c.runServe(cmd.Context(), args[0], addr, noCache)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the figure cache")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, input, addr string, noCache bool) error {
	plot.SetMode(plot.ModeInteractive)

	trials, err := afcio.ImportTrials(input)
	if err != nil {
		return err
	}
	runner, err := c.newRunner(noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	srv := newServer(trials, runner, c.Logger)
	srv.width, srv.height = c.Config.Width, c.Config.Height
	srv.policy = c.Config.AxisPolicy

	hs := &http.Server{
		Addr:              addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- hs.ListenAndServe() }()

	printSuccess(c.out, "Serving %d animals on http://%s", len(srv.animals), addr)
	printKeyValue(c.out, "Trials", strconv.Itoa(len(trials)))
	printKeyValue(c.out, "Figures", strings.Join(pipeline.Kinds, ", "))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := c.Config.Server.ShutdownTimeout.Duration
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	c.Logger.Info("shutting down", "timeout", timeout)
	return hs.Shutdown(shutdownCtx)
}

// =============================================================================
// Server
// =============================================================================

// server answers figure requests for one trial table. Handlers share the
// runner; each request draws on its own Plotter.
type server struct {
	trials  []analysis.Trial
	animals []AnimalSummary
	runner  *pipeline.Runner
	logger  *log.Logger

	width, height int
	policy        string
}

func newServer(trials []analysis.Trial, runner *pipeline.Runner, logger *log.Logger) *server {
	return &server{
		trials:  trials,
		animals: summarizeAnimals(trials, runner.Analyzer),
		runner:  runner,
		logger:  logger,
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Get("/api/animals", s.handleAnimals)
	r.Get("/api/figures/{kind}", s.handleFigure)
	r.Get("/figures/{kind}", s.handlePage)
	return r
}

// requestID tags each request with the caller's X-Request-ID or a fresh
// UUID and attaches a logger carrying it.
func (s *server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		ctx = withLogger(ctx, s.logger.With("request_id", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// observe reports each request to the server hooks and logs it.
func (s *server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := r.Context().Value(requestIDKey).(string)
		hooks := observability.Server()
		hooks.OnRequest(r.Context(), id, r.Method, r.URL.Path)

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		hooks.OnResponse(r.Context(), id, status, elapsed)
		loggerFromContext(r.Context(), s.logger).Debug("request",
			"method", r.Method, "path", r.URL.Path, "status", status, "duration", elapsed)
	})
}

func (s *server) handleAnimals(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.animals)
}

func (s *server) handleFigure(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	s.serveFigure(w, r, format)
}

func (s *server) handlePage(w http.ResponseWriter, r *http.Request) {
	s.serveFigure(w, r, "html")
}

func (s *server) serveFigure(w http.ResponseWriter, r *http.Request, format string) {
	logger := loggerFromContext(r.Context(), s.logger)
	result, err := s.runner.Execute(r.Context(), s.trials, pipeline.Options{
		Kind:     chi.URLParam(r, "kind"),
		Animal:   r.URL.Query().Get("animal"),
		Formats:  []string{format},
		Width:    s.width,
		Height:   s.height,
		Policy:   s.policy,
		WTFilter: r.URL.Query().Get("wt_filter"),
		Logger:   logger,
	})
	if err != nil {
		writeError(w, logger, err)
		return
	}

	contentType := "application/json"
	if format == "html" {
		contentType = "text/html; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Data-Hash", result.DataHash)
	if result.CacheInfo.RenderHit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	_, _ = w.Write(result.Artifacts[format])
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>afcplot</title></head>
<body style="font-family: sans-serif">
<h1>afcplot</h1>
<table>
<tr><th>Animal</th><th>Sessions</th><th>Trials</th><th>Figures</th></tr>
{{- range .Animals}}
<tr><td>{{.Display}}</td><td>{{.Sessions}}</td><td>{{.Trials}}</td>
<td>{{$name := .Name}}{{range $.Kinds}}<a href="/figures/{{.}}?animal={{$name}}">{{.}}</a> {{end}}</td></tr>
{{- end}}
</table>
</body>
</html>
`))

func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := indexTemplate.Execute(w, struct {
		Animals []AnimalSummary
		Kinds   []string
	}{s.animals, pipeline.Kinds})
	if err != nil {
		loggerFromContext(r.Context(), s.logger).Error("index", "err", err)
	}
}

// =============================================================================
// Responses
// =============================================================================

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeError answers with the coded error. Usage-order errors come from the
// analysis code itself, so they are logged loudly and hidden from the client.
func writeError(w http.ResponseWriter, logger *log.Logger, err error) {
	if aerrors.IsCallerBug(err) {
		logger.Error("figure code misused the plot API", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error: "internal error",
			Code:  string(aerrors.ErrCodeInternal),
		})
		return
	}
	logger.Warn("figure failed", "err", err)
	writeJSON(w, aerrors.HTTPStatus(err), errorBody{
		Error: aerrors.UserMessage(err),
		Code:  string(aerrors.GetCode(err)),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
