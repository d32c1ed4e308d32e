package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sakhistudio/gallery-service/internal/auth"
	"github.com/sakhistudio/gallery-service/internal/catalog"
	"github.com/sakhistudio/gallery-service/internal/model"
	"github.com/sakhistudio/gallery-service/internal/repository"
	"github.com/sakhistudio/gallery-service/internal/uploader"
)

// handleGallery serves the public read path: the full snapshot with
// displayable URLs and category counts, optionally narrowed to one category.
func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snapshot, err := s.catalog.Fetch(r.Context())
	if err != nil {
		s.log.Warnf("gallery fetch: %v", err)
		respondError(w, http.StatusServiceUnavailable, "failed to load gallery, please retry")
		return
	}
	images := catalog.Filter(snapshot.Images, model.Category(r.URL.Query().Get("category")))
	if images == nil {
		images = []model.ImageRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"images": images,
		"counts": snapshot.Counts,
	})
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req credentialsRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	// Minimum length is the caller's check, before the gate is invoked.
	if len(req.Password) < auth.MinPasswordLen {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLen))
		return
	}
	if err := s.gate.SignUp(r.Context(), req.Email, req.Password); err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		s.log.Warnf("sign up: %v", err)
		respondError(w, http.StatusInternalServerError, "sign up failed")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req credentialsRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	session, err := s.gate.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondJSON(w, http.StatusUnauthorized, map[string]any{
				"error":   err.Error(),
				"isAdmin": false,
			})
			return
		}
		s.log.Warnf("sign in: %v", err)
		respondError(w, http.StatusInternalServerError, "sign in failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"token":     session.Token,
		"isAdmin":   session.IsAdmin,
		"expiresAt": session.ExpiresAt,
	})
}

// handleSignOut clears the session regardless of token state; revocation is
// best effort and a bad token still signs out locally.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	claims, err := s.bearerClaims(r)
	if err != nil {
		claims = nil
	}
	s.gate.SignOut(r.Context(), claims)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminImages(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleGallery(w, r)
	case http.MethodPost:
		s.handleUpload(w, r)
	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleUpload stages every file part, surfacing per-file rejections, then
// runs the accepted items through the pipeline one at a time.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(string)

	// Generous outer bound; the stager enforces the per-file ceiling.
	r.Body = http.MaxBytesReader(w, r.Body, 32*(s.cfg.MaxFileSize+1024))
	if err := r.ParseMultipartForm(s.cfg.MaxFileSize); err != nil {
		respondError(w, http.StatusBadRequest, "expecting multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File["file"]
	var (
		staged   []*uploader.StagedImage
		rejected []map[string]string
	)
	for i, header := range files {
		f, err := header.Open()
		if err != nil {
			respondError(w, http.StatusBadRequest, "failed to read upload")
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			respondError(w, http.StatusBadRequest, "failed to read upload")
			return
		}
		item, err := s.stager.Stage(header.Filename, data)
		if err != nil {
			var rej *uploader.RejectionError
			if errors.As(err, &rej) {
				rejected = append(rejected, map[string]string{
					"filename": rej.Filename,
					"reason":   rej.Reason,
				})
				continue
			}
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		applyMetadata(item, r, i)
		staged = append(staged, item)
	}
	if len(staged) == 0 && len(rejected) > 0 {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":    "all files were rejected",
			"rejected": rejected,
		})
		return
	}

	var trace []int
	result, err := s.uploads.Run(r.Context(), userID, staged, func(pct int) {
		trace = append(trace, pct)
	})
	if err != nil {
		s.respondUploadError(w, err, result, rejected)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"result":   result,
		"message":  result.Message(),
		"progress": trace,
		"rejected": rejected,
	})
}

func (s *Server) respondUploadError(w http.ResponseWriter, err error, result *uploader.Result, rejected []map[string]string) {
	var vErr *uploader.ValidationError
	switch {
	case errors.As(err, &vErr):
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":   vErr.Error(),
			"missing": vErr.Missing,
		})
	case errors.Is(err, uploader.ErrNoImages):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, uploader.ErrNotAuthenticated):
		respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, uploader.ErrOffline):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, uploader.ErrConnectionLost):
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":    err.Error(),
			"result":   result,
			"rejected": rejected,
		})
	default:
		s.log.Warnf("upload batch: %v", err)
		respondError(w, http.StatusInternalServerError, "upload failed")
	}
}

// applyMetadata overlays the indexed form fields onto a staged item, keeping
// the staging defaults where fields are absent.
func applyMetadata(item *uploader.StagedImage, r *http.Request, index int) {
	field := func(name string) string {
		return r.FormValue(fmt.Sprintf("%s_%d", name, index))
	}
	if v := field("title"); v != "" {
		item.Title = v
	}
	if v := field("category"); v != "" {
		item.Category = model.Category(v)
	}
	if v := field("description"); v != "" {
		item.Description = v
	}
	if v := field("tags"); v != "" {
		item.RawTags = v
	}
}

func (s *Server) handleAdminImageRoute(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/admin/images/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPut:
		s.handleUpdateImage(w, r, id)
	case http.MethodDelete:
		s.handleDeleteImage(w, r, id)
	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleUpdateImage(w http.ResponseWriter, r *http.Request, id string) {
	var upd model.ImageUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(upd); err != nil {
		respondError(w, http.StatusBadRequest, "title and category are required")
		return
	}
	if err := s.catalog.Update(r.Context(), id, upd); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "image not found")
			return
		}
		s.log.Warnf("update image %s: %v", id, err)
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	// No optimistic merge; the client re-fetches to see server state.
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := s.images.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "image not found")
			return
		}
		s.log.Warnf("load image %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to load image")
		return
	}
	if err := s.catalog.Delete(r.Context(), *rec); err != nil {
		s.log.Warnf("delete image %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to delete image")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, req *credentialsRequest) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "valid email and password are required")
		return false
	}
	return true
}
