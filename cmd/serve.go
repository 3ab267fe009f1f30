package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/config"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/metrics"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/model"
	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/queue"
	"github.com/ShaunandDavid/lead-generator-firecrawl/pkg/sheets"
)

const maxRequestBody = 1 << 20

var servePort int

// runQueue is the part of the job queue the HTTP surface uses.
type runQueue interface {
	Submit(ctx context.Context, opts model.RunOptions) (model.Run, error)
	Get(id string) (model.Run, bool)
	List() []model.Run
	Stats() model.RunStats
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the run queue and HTTP control surface",
	RunE: func(cmd *cobra.Command, args []string) error {
		if servePort > 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve", false); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		q := queue.New(env.Store, env.Pipeline)
		if err := q.Recover(ctx); err != nil {
			return err
		}
		q.Start(ctx)

		srv := &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           buildRouter(q, cfg.Google.CredentialsPath),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("lead generator API listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		<-q.Done()
		return nil
	},
}

func buildRouter(q runQueue, credentialsPath string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	r.Get("/service-account", func(w http.ResponseWriter, _ *http.Request) {
		email, err := sheets.ServiceAccountEmail(credentialsPath)
		if err != nil {
			zap.L().Warn("unable to read service account email", zap.Error(err))
			writeError(w, http.StatusNotFound, "Service account email not available")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"email": email})
	})

	r.Handle("/metrics", metrics.Handler())

	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, q.Stats())
	})

	r.Route("/runs", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, req *http.Request) {
			var body runRequest
			if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxRequestBody)).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			opts := body.options()
			if !opts.HasInputs() {
				writeError(w, http.StatusBadRequest, "Provide at least one directory or domain URL")
				return
			}

			run, err := q.Submit(req.Context(), opts)
			if err != nil {
				status := http.StatusInternalServerError
				if errors.Is(err, queue.ErrClosed) || errors.Is(err, queue.ErrNotStarted) {
					status = http.StatusServiceUnavailable
				}
				zap.L().Error("submit run failed", zap.Error(err))
				writeError(w, status, err.Error())
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]string{"id": run.ID, "status": string(run.Status)})
		})

		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string][]model.Run{"runs": q.List()})
		})

		r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
			run, ok := q.Get(chi.URLParam(req, "id"))
			if !ok {
				writeError(w, http.StatusNotFound, "Run not found")
				return
			}
			writeJSON(w, http.StatusOK, run)
		})
	})

	return r
}

// runRequest is the POST /runs body.
type runRequest struct {
	URL               string          `json:"url"`
	URLs              []string        `json:"urls"`
	DomainsFile       string          `json:"domainsFile"`
	HTMLFolder        string          `json:"htmlFolder"`
	ICP               string          `json:"icp"`
	Directory         bool            `json:"directory"`
	MaxBusinesses     int             `json:"maxBusinesses"`
	SheetName         string          `json:"sheetName"`
	Title             string          `json:"title"`
	Keyword           string          `json:"keyword"`
	ShareWith         json.RawMessage `json:"shareWith"`
	SheetFolderID     string          `json:"sheetFolderId"`
	ReuseSheet        bool            `json:"reuseSheet"`
	SheetID           string          `json:"sheetId"`
	SheetURL          string          `json:"sheetUrl"`
	MaxDepth          int             `json:"maxDepth"`
	MaxPages          int             `json:"maxPages"`
	PageConcurrency   int             `json:"pageConcurrency"`
	DomainConcurrency int             `json:"domainConcurrency"`
	Model             string          `json:"model"`
	Delay             int             `json:"delay"`
	PollInterval      int             `json:"pollInterval"`
	DryRun            bool            `json:"dryRun"`
}

func (b runRequest) options() model.RunOptions {
	sheetID := parseSheetID(b.SheetURL)
	if sheetID == "" {
		sheetID = parseSheetID(b.SheetID)
	}
	return model.RunOptions{
		URL:               strings.TrimSpace(b.URL),
		URLs:              b.URLs,
		DomainsFile:       b.DomainsFile,
		HTMLFolder:        b.HTMLFolder,
		ICP:               b.ICP,
		Directory:         b.Directory,
		MaxBusinesses:     b.MaxBusinesses,
		SheetName:         b.SheetName,
		Title:             b.Title,
		Keyword:           b.Keyword,
		ShareWith:         normaliseShareList(b.ShareWith),
		SheetFolderID:     b.SheetFolderID,
		ReuseSheet:        b.ReuseSheet,
		SheetID:           sheetID,
		MaxDepth:          b.MaxDepth,
		MaxPages:          b.MaxPages,
		PageConcurrency:   b.PageConcurrency,
		DomainConcurrency: b.DomainConcurrency,
		Model:             b.Model,
		Delay:             b.Delay,
		PollInterval:      b.PollInterval,
		DryRun:            b.DryRun,
	}
}

var (
	rawSheetIDRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{20,}$`)
	sheetPathRe  = regexp.MustCompile(`/d/([a-zA-Z0-9_-]+)`)
)

// parseSheetID accepts a bare spreadsheet id or a URL containing /d/<id>.
func parseSheetID(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if rawSheetIDRe.MatchString(value) {
		return value
	}
	if m := sheetPathRe.FindStringSubmatch(value); m != nil {
		return m[1]
	}
	return ""
}

// normaliseShareList accepts either a separated string or an array of
// emails.
func normaliseShareList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return config.SplitList(s)
	}
	var list []any
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	var out []string
	for _, item := range list {
		var v string
		switch t := item.(type) {
		case string:
			v = t
		case float64:
			v = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			v = strconv.FormatBool(t)
		}
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
