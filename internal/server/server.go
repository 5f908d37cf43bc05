package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"tcm-wellness-backend/internal/config"
	"tcm-wellness-backend/internal/consult"
	"tcm-wellness-backend/internal/db"
	"tcm-wellness-backend/internal/llm"
	"tcm-wellness-backend/internal/logger"
	"tcm-wellness-backend/internal/store"
	"tcm-wellness-backend/internal/types"
)

const (
	// APIKeyHeader carries a browser-supplied DeepSeek key when allowed.
	APIKeyHeader = "X-DeepSeek-Api-Key"

	maxBodyBytes    = 64 << 10
	archiveTimeout  = 5 * time.Second
	janitorInterval = time.Minute
)

type Server struct {
	router    *chi.Mux
	cfg       config.Config
	log       logger.Logger
	script    *consult.Script
	chat      llm.ChatStreamer
	store     *store.MemoryStore
	snapshots *store.FileSnapshotStore
	database  *db.DB
	reports   *store.DatabaseStore
	validate  *validator.Validate
	now       func() time.Time
}

func NewServer(cfg config.Config, log logger.Logger, chat llm.ChatStreamer) (*Server, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if chat == nil {
		return nil, fmt.Errorf("chat client is required")
	}

	sc, err := loadScript(cfg.ScriptFile)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:   chi.NewRouter(),
		cfg:      cfg,
		log:      log,
		script:   sc,
		chat:     chat,
		store:    store.NewMemoryStore(cfg.MaxMessages, cfg.SessionTTL),
		validate: validator.New(),
		now:      time.Now,
	}

	if cfg.SnapshotFile != "" {
		s.snapshots = store.NewFileSnapshotStore(cfg.SnapshotFile)
		sessions, err := s.snapshots.Read()
		if err != nil {
			log.Warn("failed to read session snapshot, starting empty:", err)
		} else if len(sessions) > 0 {
			adjusted := 0
			for _, sess := range sessions {
				if sess != nil && sess.Fit(sc, sess.UpdatedAt) {
					adjusted++
				}
			}
			if adjusted > 0 {
				log.Warn("sessions adjusted to the current script:", adjusted)
			}
			log.Info("restored sessions from", s.snapshots.Path(), s.store.Restore(sessions))
		}
	}

	if cfg.DatabaseURL != "" {
		database, err := db.New(cfg.DatabaseURL, func(format string, args ...any) {
			log.Info(fmt.Sprintf(format, args...))
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		log.Info("database connection established")
		if err := database.RunMigrations(db.Migrations()); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database migrations completed")
		s.database = database
		s.reports = store.NewDatabaseStore(database)
	} else {
		log.Info("db_url not provided, reports will not be archived")
	}

	s.middleware()
	s.routes()
	return s, nil
}

func loadScript(path string) (*consult.Script, error) {
	if path == "" {
		return consult.DefaultScript()
	}
	sc, err := consult.LoadScript(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load script %s: %w", path, err)
	}
	return sc, nil
}

func (s *Server) middleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With", "X-Session-Id", APIKeyHeader},
		ExposedHeaders:   []string{"X-Session-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) routes() {
	s.router.Get("/", s.handleIndex)
	s.router.Get("/api/health", s.handleHealth)
	s.router.Route("/api/session", func(r chi.Router) {
		r.Get("/", s.handleSession)
		r.Post("/profile", s.handleProfile)
		r.Post("/message", s.handleMessage)
		r.Post("/option", s.handleOption)
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/faq", s.handleFAQ)
		r.Post("/reset", s.handleReset)
		r.Get("/reports", s.handleReports)
	})
}

func (s *Server) Router() http.Handler { return s.router }

// StartJanitor prunes expired sessions until ctx is cancelled.
func (s *Server) StartJanitor(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(janitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.store.Prune(); n > 0 {
					s.log.Debug("pruned expired sessions:", n)
				}
			}
		}
	}()
}

// Close snapshots live sessions and releases the database.
func (s *Server) Close() error {
	var errs []error
	if s.snapshots != nil {
		sessions := s.store.All()
		if err := s.snapshots.Write(sessions); err != nil {
			errs = append(errs, fmt.Errorf("failed to write session snapshot: %w", err))
		} else {
			s.log.Info("saved sessions to snapshot:", len(sessions))
		}
	}
	if s.database != nil {
		if err := s.database.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug(fmt.Sprintf("[http] %s %s %d %dB %s reqid=%s",
			r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start).Round(time.Millisecond),
			middleware.GetReqID(r.Context())))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := types.HealthResponse{Status: "ok", Database: "disabled", Sessions: s.store.Len()}
	if s.database != nil {
		resp.Database = "ok"
		if err := s.database.HealthCheck(); err != nil {
			s.log.Warn("database health check failed:", err)
			resp.Status = "degraded"
			resp.Database = "unavailable"
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, types.ErrorResponse{Error: msg})
}

// writeErr maps domain and store errors to a status code.
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, consult.ErrEmptyInput),
		errors.Is(err, consult.ErrInvalidOption),
		errors.Is(err, consult.ErrInvalidProfile):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, consult.ErrWrongPhase), errors.Is(err, store.ErrBusy):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	default:
		s.log.Error("request failed:", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decode reads a JSON body into v and validates its tags.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return false
	}
	return true
}

// apiKey picks the key for this request without storing it.
func (s *Server) apiKey(r *http.Request) string {
	if s.cfg.AllowClientKey {
		if k := strings.TrimSpace(r.Header.Get(APIKeyHeader)); k != "" {
			return k
		}
	}
	return s.cfg.DeepSeekAPIKey
}

func (s *Server) view(sess *consult.Session) types.SessionView {
	sc := s.script
	msgs := make([]types.Message, 0, len(sess.Messages))
	for _, m := range sess.Messages {
		msgs = append(msgs, types.Message{Role: string(m.Role), Content: m.Content})
	}
	faq := []string{}
	for _, f := range sess.FAQ(sc) {
		faq = append(faq, f.Label)
	}
	quick := sess.QuickOptions(sc)
	if quick == nil {
		quick = []string{}
	}
	return types.SessionView{
		SessionID:    sess.ID,
		Phase:        string(sess.Phase),
		Messages:     msgs,
		Placeholder:  sess.Placeholder(sc),
		QuickOptions: quick,
		FAQ:          faq,
		CanAnalyze:   sess.CanAnalyze(),
		AnalyzeLabel: sc.StartAnalysis,
		Busy:         s.store.Busy(sess.ID),
		Profile: types.ProfileView{
			Age:           sess.Profile.Age,
			Gender:        sess.Profile.Gender,
			Menses:        sess.Profile.Menses,
			Genders:       sc.Profile.Genders,
			MensesOptions: sc.Profile.MensesOptions,
			ShowMenses:    sc.IsFemale(sess.Profile.Gender),
			MinAge:        consult.MinAge,
			MaxAge:        consult.MaxAge,
		},
		HasServerKey:     s.cfg.HasServerKey(),
		AllowClientKey:   s.cfg.AllowClientKey,
		MissingKeyNotice: sc.Notices.MissingKey,
		Model:            s.cfg.Model,
		ReportsEnabled:   s.reports != nil,
	}
}

func (s *Server) writeView(w http.ResponseWriter, sid string) {
	sess, err := s.store.Get(sid)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.view(sess))
}
