package serverapp

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dayparty/internal/auth"
	"dayparty/internal/config"
	"dayparty/internal/httpmw"
	"dayparty/internal/taskapi"
	"dayparty/internal/web"
	staticfiles "dayparty/static"

	"github.com/a-h/templ"
)

type Options struct {
	Config        *config.Config
	DataDir       string
	StaticDir     string
	UseDiskStatic bool
	Logger        *log.Logger
}

func NewHandler(opts Options) (http.Handler, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if strings.TrimSpace(opts.DataDir) == "" {
		opts.DataDir = opts.Config.DataDir
	}
	if strings.TrimSpace(opts.DataDir) == "" {
		opts.DataDir = "data"
	}
	if strings.TrimSpace(opts.StaticDir) == "" {
		opts.StaticDir = "static"
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	mux := http.NewServeMux()

	staticHandler := http.FileServer(http.FS(staticfiles.EmbeddedFS()))
	if opts.UseDiskStatic {
		staticHandler = http.FileServer(http.Dir(opts.StaticDir))
	}
	mux.Handle("/static/", http.StripPrefix("/static/", staticHandler))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"service": "dayparty",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	authRepo, err := auth.NewFileRepo(filepath.Join(opts.DataDir, "auth"))
	if err != nil {
		return nil, err
	}
	authService := auth.NewService(authRepo, opts.Config.BaseURL, opts.Logger)
	authService.SetTTLs(
		time.Duration(opts.Config.Auth.LinkTTLMinutes)*time.Minute,
		time.Duration(opts.Config.Auth.SessionTTLDays)*24*time.Hour,
	)
	logSecurityHints(opts.Logger)
	authHandler := auth.NewHandler(authService)
	mux.HandleFunc("/api/auth/request-link", authHandler.RequestLink)
	mux.HandleFunc("/api/auth/verify", authHandler.VerifyToken)
	mux.HandleFunc("/api/auth/session", authHandler.Session)
	mux.HandleFunc("/api/auth/logout", authHandler.Logout)
	mux.HandleFunc("/auth/verify", authHandler.VerifyLink)

	taskRepo, err := taskapi.NewFileRepo(filepath.Join(opts.DataDir, "tasks"))
	if err != nil {
		return nil, err
	}
	taskHandler := taskapi.NewHandler(taskRepo)
	taskHandler.SetRepoResolver(func(r *http.Request) taskapi.Repo {
		u, ok := auth.UserFromContext(r.Context())
		if !ok {
			return taskRepo
		}
		return taskRepo.ForUser(u.ID)
	})
	mux.Handle("/api/tasks", authService.RequireAPI(http.HandlerFunc(taskHandler.Tasks)))
	mux.Handle("/api/tasks/sync", authService.RequireAPI(http.HandlerFunc(taskHandler.Sync)))

	mux.Handle("/api/config", authService.RequireAPI(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(opts.Config); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})))

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if _, err := taskRepo.List(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"ok":    false,
				"error": "task storage unavailable",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"service": "dayparty",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	mux.Handle("/", templ.Handler(web.HomePage()))
	mux.Handle("/login", templ.Handler(web.LoginPage()))
	mux.HandleFunc("/app", authService.HandleAppRoute)
	mux.Handle("/planner", authService.RequirePage(templ.Handler(web.PlannerPage())))

	return httpmw.Chain(
		mux,
		httpmw.WithAccessLog(opts.Logger),
		httpmw.WithRequestID,
		httpmw.WithRecover(opts.Logger),
	), nil
}

func UseDiskStaticByEnv() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DAYPARTY_DEV_STATIC"))) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func logSecurityHints(logger *log.Logger) {
	if logger == nil {
		return
	}
	env := strings.ToLower(strings.TrimSpace(os.Getenv("DAYPARTY_ENV")))
	cookieSecure := strings.ToLower(strings.TrimSpace(os.Getenv("DAYPARTY_COOKIE_SECURE")))

	if env == "production" || env == "prod" {
		if cookieSecure != "1" && cookieSecure != "true" && cookieSecure != "yes" {
			logger.Printf("[security] DAYPARTY_ENV=%s but DAYPARTY_COOKIE_SECURE is not explicitly true", env)
		}
	}
}
