// Package api exposes the HTTP surface: a public gallery read path, the
// auth endpoints, and the admin-gated image lifecycle.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sakhistudio/gallery-service/internal/auth"
	"github.com/sakhistudio/gallery-service/internal/catalog"
	"github.com/sakhistudio/gallery-service/internal/config"
	"github.com/sakhistudio/gallery-service/internal/model"
	"github.com/sakhistudio/gallery-service/internal/uploader"
)

// AuthService is the slice of the auth gate the server consumes.
type AuthService interface {
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	SignUp(ctx context.Context, email, password string) error
	SignOut(ctx context.Context, claims *auth.Claims)
	Verify(ctx context.Context, token string) (*auth.Claims, error)
	IsAdmin(ctx context.Context, userID string) bool
}

// CatalogService produces snapshots and mutates individual records.
type CatalogService interface {
	Fetch(ctx context.Context) (*catalog.Snapshot, error)
	Update(ctx context.Context, id string, upd model.ImageUpdate) error
	Delete(ctx context.Context, rec model.ImageRecord) error
}

// RecordGetter loads one record, used by the delete path to derive the
// storage key before the row disappears.
type RecordGetter interface {
	Get(ctx context.Context, id string) (*model.ImageRecord, error)
}

// UploadService runs a staged batch for a user.
type UploadService interface {
	Run(ctx context.Context, userID string, items []*uploader.StagedImage, progress func(int)) (*uploader.Result, error)
}

// Server hosts the HTTP handlers.
type Server struct {
	cfg      *config.Config
	gate     AuthService
	catalog  CatalogService
	images   RecordGetter
	uploads  UploadService
	stager   *uploader.Stager
	validate *validator.Validate
	log      *zap.SugaredLogger
	server   *http.Server
	once     sync.Once
}

// New constructs a Server.
func New(cfg *config.Config, gate AuthService, cat CatalogService, images RecordGetter, uploads UploadService, log *zap.SugaredLogger) *Server {
	return &Server{
		cfg:     cfg,
		gate:    gate,
		catalog: cat,
		images:  images,
		uploads: uploads,
		stager: &uploader.Stager{
			MaxFileSize:  cfg.MaxFileSize,
			AllowedTypes: cfg.AllowedTypes,
		},
		validate: validator.New(),
		log:      log,
	}
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:    s.cfg.Address,
			Handler: s.Routes(),
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.log.Infof("api listening on %s", s.cfg.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Routes builds the handler tree. Exported so tests can drive it through
// httptest without a listener.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/gallery", s.handleGallery)
	mux.HandleFunc("/auth/signup", s.handleSignUp)
	mux.HandleFunc("/auth/signin", s.handleSignIn)
	mux.HandleFunc("/auth/signout", s.handleSignOut)
	mux.Handle("/admin/images", s.requireAdmin(http.HandlerFunc(s.handleAdminImages)))
	mux.Handle("/admin/images/", s.requireAdmin(http.HandlerFunc(s.handleAdminImageRoute)))
	return corsMiddleware(s.loggingMiddleware(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ctxKey string

const (
	ctxUserID ctxKey = "userID"
	ctxEmail  ctxKey = "email"
)

// requireAdmin authenticates the bearer token and performs the fail-closed
// admin lookup on every request, so the flag is never read stale relative to
// the identity. Unauthenticated callers get 401, authenticated non-admins 403.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.bearerClaims(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !s.gate.IsAdmin(r.Context(), claims.UserID) {
			respondError(w, http.StatusForbidden, "admin access required")
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxEmail, claims.Email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) bearerClaims(r *http.Request) (*auth.Claims, error) {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, auth.ErrTokenInvalid
	}
	return s.gate.Verify(r.Context(), parts[1])
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Infof("%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}
