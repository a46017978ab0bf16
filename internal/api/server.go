package api

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"primetrade/internal/auth"
	"primetrade/internal/models"
	"primetrade/internal/otp"
	"primetrade/internal/tasks"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Accounts is the account side of the API.
type Accounts interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.RegisterResult, error)
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	Me(ctx context.Context, userID string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, req auth.ProfileRequest) (*models.ProfileUpdate, error)
}

// Codes is the one-time code workflow.
type Codes interface {
	Verify(ctx context.Context, email, code string) (otp.Outcome, error)
	Resend(ctx context.Context, email string) (otp.Outcome, error)
	RequestPasswordChange(ctx context.Context, email string) error
}

// Tasks is the task store behind the CRUD routes.
type Tasks interface {
	Create(ctx context.Context, req tasks.CreateRequest) (*models.Task, error)
	Get(ctx context.Context, id string) (*models.Task, error)
	ListByEmail(ctx context.Context, email string) ([]models.Task, error)
	Update(ctx context.Context, id string, req tasks.UpdateRequest) (*models.Task, error)
	Delete(ctx context.Context, id string) error
}

// TokenVerifier resolves a bearer token to its subject.
type TokenVerifier interface {
	Subject(token string) (string, error)
}

// Options tunes the HTTP surface.
type Options struct {
	UploadDir  string
	RateLimit  float64
	RateBurst  int
	TrustProxy bool
}

type Server struct {
	accounts Accounts
	codes    Codes
	tasks    Tasks
	tokens   TokenVerifier
	limiter  *ipLimiter
	opts     Options
	logger   *slog.Logger
}

func NewServer(accounts Accounts, codes Codes, taskSvc Tasks, tokens TokenVerifier, opts Options, logger *slog.Logger) *Server {
	return &Server{
		accounts: accounts,
		codes:    codes,
		tasks:    taskSvc,
		tokens:   tokens,
		limiter:  newIPLimiter(opts.RateLimit, opts.RateBurst),
		opts:     opts,
		logger:   logger,
	}
}

// SweepLimiter drops idle rate-limit state until ctx is cancelled.
func (s *Server) SweepLimiter(ctx context.Context) {
	s.limiter.run(ctx)
}

// Handler builds the full route table wrapped in CORS and panic recovery.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestLogger)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "Route not found")
	})

	r.HandleFunc("/", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	if s.opts.UploadDir != "" {
		files := http.FileServer(onlyFiles{http.Dir(s.opts.UploadDir)})
		r.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", files)).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/auth").Subrouter()
	limited := func(h http.HandlerFunc) http.Handler { return s.limiter.middleware(h) }

	api.Handle("/register", limited(s.register)).Methods(http.MethodPost)
	api.Handle("/login", limited(s.login)).Methods(http.MethodPost)
	api.Handle("/verify-otp", limited(s.verifyOTP)).Methods(http.MethodPost)
	api.Handle("/resend-otp", limited(s.resendOTP)).Methods(http.MethodPost)
	api.Handle("/request-password-otp", limited(s.requestPasswordOTP)).Methods(http.MethodPost)
	api.Handle("/me", s.requireAuth(http.HandlerFunc(s.me))).Methods(http.MethodGet)
	api.HandleFunc("/profile", s.updateProfile).Methods(http.MethodPut)

	api.HandleFunc("/create-task", s.createTask).Methods(http.MethodPost)
	api.HandleFunc("/get-task/{id}", s.getTask).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{email}", s.listTasks).Methods(http.MethodGet)
	api.HandleFunc("/update-task/{id}", s.updateTask).Methods(http.MethodPut)
	api.HandleFunc("/delete-task/{id}", s.deleteTask).Methods(http.MethodDelete)

	var h http.Handler = r
	if s.opts.TrustProxy {
		h = handlers.ProxyHeaders(h)
	}
	h = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)(h)
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError)),
	)(h)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("API is running"))
}

// onlyFiles hides directory listings from the uploads file server.
type onlyFiles struct {
	fs http.FileSystem
}

func (o onlyFiles) Open(name string) (http.File, error) {
	f, err := o.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}
