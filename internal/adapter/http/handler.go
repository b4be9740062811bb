package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vodmill/vodmill/internal/adapter/http/validation"
	"github.com/vodmill/vodmill/internal/domain"
	"github.com/vodmill/vodmill/internal/infrastructure/logger"
	"github.com/vodmill/vodmill/internal/service"
)

type VideoService interface {
	Publish(ownerID int64, file service.UploadedFile, title, description string, visibility domain.Visibility) (*domain.Video, error)
	Edit(ownerID int64, videoID string, patch service.EditPatch, newFile *service.UploadedFile) (*domain.Video, error)
	Delete(ownerID int64, videoID string) error
	Get(ownerID int64, videoID string) (*domain.Video, error)
	List(ownerID int64) ([]*domain.Video, error)
	Watch(videoID string) (*domain.Video, error)
	Search(query string) ([]*domain.Video, error)
}

type Handlers struct {
	videoSvc  VideoService
	outputDir string
	maxSizeMB int
}

func NewHandlers(videoSvc VideoService, outputDir string, maxSizeMB int) *Handlers {
	return &Handlers{
		videoSvc:  videoSvc,
		outputDir: outputDir,
		maxSizeMB: maxSizeMB,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps service and domain errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "video not found")
	case errors.Is(err, domain.ErrJobActive):
		writeError(w, http.StatusConflict, "a job for this video is still active")
	case errors.Is(err, validation.ErrDisallowedFileType):
		writeError(w, http.StatusUnsupportedMediaType, "file type not allowed")
	default:
		logger.Error.Printf("request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// ClientIP extracts the client address, honoring X-Forwarded-For only when
// the server is explicitly configured behind a reverse proxy.
func ClientIP(r *http.Request, behindProxy bool) string {
	if behindProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			if first, _, ok := strings.Cut(fwd, ","); ok {
				return strings.TrimSpace(first)
			}
			return strings.TrimSpace(fwd)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// receiveUpload validates the multipart file and spools it to a temp file
// the video service can take ownership of.
func receiveUpload(file multipart.File, header *multipart.FileHeader) (service.UploadedFile, error) {
	if err := validation.ValidateVideoUpload(file, header.Filename); err != nil {
		return service.UploadedFile{}, err
	}

	tmpFile, err := os.CreateTemp("", "vodmill-upload-*.tmp")
	if err != nil {
		return service.UploadedFile{}, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmpFile, file); err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		return service.UploadedFile{}, fmt.Errorf("spool upload: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpFile.Name())
		return service.UploadedFile{}, fmt.Errorf("close temp file: %w", err)
	}

	return service.UploadedFile{
		TempPath:     tmpFile.Name(),
		OriginalName: validation.SanitizeFilename(header.Filename),
	}, nil
}

// Upload handles POST /api/videos: multipart form with the source file and
// the initial metadata. Responds 202 with the waiting video record.
func (h *Handlers) Upload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := UserFrom(r.Context())
		maxBytes := int64(h.maxSizeMB) * 1024 * 1024
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing file field")
			return
		}
		defer file.Close() //nolint:errcheck

		upload, err := receiveUpload(file, header)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		video, err := h.videoSvc.Publish(
			user.ID,
			upload,
			r.FormValue("title"),
			r.FormValue("description"),
			domain.Visibility(r.FormValue("visibility")),
		)
		if err != nil {
			os.Remove(upload.TempPath)
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusAccepted, video)
	}
}

func (h *Handlers) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := UserFrom(r.Context())
		videos, err := h.videoSvc.List(user.ID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if videos == nil {
			videos = []*domain.Video{}
		}
		writeJSON(w, http.StatusOK, videos)
	}
}

func (h *Handlers) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := UserFrom(r.Context())
		video, err := h.videoSvc.Get(user.ID, r.PathValue("id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, video)
	}
}

// Update handles PATCH /api/videos/{id}: multipart form with any of title,
// description, visibility, and an optional replacement file.
func (h *Handlers) Update() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := UserFrom(r.Context())
		maxBytes := int64(h.maxSizeMB) * 1024 * 1024
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}

		var patch service.EditPatch
		if values, ok := r.MultipartForm.Value["title"]; ok && len(values) > 0 {
			patch.Title = &values[0]
		}
		if values, ok := r.MultipartForm.Value["description"]; ok && len(values) > 0 {
			patch.Description = &values[0]
		}
		if values, ok := r.MultipartForm.Value["visibility"]; ok && len(values) > 0 {
			vis := domain.Visibility(values[0])
			if !vis.Valid() {
				writeError(w, http.StatusBadRequest, "invalid visibility")
				return
			}
			patch.Visibility = &vis
		}

		var newFile *service.UploadedFile
		if file, header, err := r.FormFile("file"); err == nil {
			defer file.Close() //nolint:errcheck
			upload, err := receiveUpload(file, header)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			newFile = &upload
		}

		video, err := h.videoSvc.Edit(user.ID, r.PathValue("id"), patch, newFile)
		if err != nil {
			if newFile != nil {
				os.Remove(newFile.TempPath)
			}
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, video)
	}
}

func (h *Handlers) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := UserFrom(r.Context())
		if err := h.videoSvc.Delete(user.ID, r.PathValue("id")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type watchResponse struct {
	*domain.Video
	PlaylistURL  string `json:"playlist_url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// Watch handles GET /api/watch/{id}: anonymous playback info for a public
// finished video, including where its HLS tree is served from.
func (h *Handlers) Watch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		video, err := h.videoSvc.Watch(r.PathValue("id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, watchResponse{
			Video:        video,
			PlaylistURL:  "/v/" + video.UniqueFileName + "/master.m3u8",
			ThumbnailURL: "/v/" + video.UniqueFileName + "/thumbnail.jpg",
		})
	}
}

func (h *Handlers) Search() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videos, err := h.videoSvc.Search(r.URL.Query().Get("q"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if videos == nil {
			videos = []*domain.Video{}
		}
		writeJSON(w, http.StatusOK, videos)
	}
}

// Media serves the HLS trees (playlists, segments, thumbnails) under /v/.
func (h *Handlers) Media() http.Handler {
	fs := http.FileServer(http.Dir(h.outputDir))
	return http.StripPrefix("/v/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, ".m3u8"):
			w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
			w.Header().Set("Cache-Control", "no-cache")
		case strings.HasSuffix(r.URL.Path, ".ts"):
			w.Header().Set("Content-Type", "video/mp2t")
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		case strings.HasSuffix(r.URL.Path, ".jpg"):
			w.Header().Set("Content-Type", "image/jpeg")
		}
		fs.ServeHTTP(w, r)
	}))
}

func (h *Handlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
