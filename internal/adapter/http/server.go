package http

import (
	"net/http"
	"time"

	"github.com/vodmill/vodmill/internal/adapter/http/middleware"
	"github.com/vodmill/vodmill/internal/adapter/http/ratelimit"
	"github.com/vodmill/vodmill/internal/service"
)

type Server struct {
	mux         *http.ServeMux
	handlers    *Handlers
	sseHandler  *SSEHandler
	authSvc     AuthService
	authLimiter *ratelimit.Limiter
	behindProxy bool
}

func NewServer(authSvc AuthService, videoSvc VideoService, eventBus *service.EventBus, outputDir string, maxSizeMB int, behindProxy bool) *Server {
	s := &Server{
		mux:        http.NewServeMux(),
		handlers:   NewHandlers(videoSvc, outputDir, maxSizeMB),
		sseHandler: NewSSEHandler(eventBus, videoSvc),
		authSvc:    authSvc,
		authLimiter: ratelimit.NewLimiter(
			5,
			15*time.Minute,
			30*time.Minute,
		),
		behindProxy: behindProxy,
	}

	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/auth/register", RegisterHandler(s.authSvc, s.authLimiter, s.behindProxy))
	s.mux.HandleFunc("POST /api/auth/login", LoginHandler(s.authSvc, s.authLimiter, s.behindProxy))
	s.mux.HandleFunc("POST /api/auth/logout", LogoutHandler())
	s.mux.HandleFunc("GET /api/auth/me", AuthMiddleware(s.authSvc, MeHandler()))

	s.mux.HandleFunc("POST /api/videos", AuthMiddleware(s.authSvc, s.handlers.Upload()))
	s.mux.HandleFunc("GET /api/videos", AuthMiddleware(s.authSvc, s.handlers.List()))
	s.mux.HandleFunc("GET /api/videos/{id}", AuthMiddleware(s.authSvc, s.handlers.Get()))
	s.mux.HandleFunc("PATCH /api/videos/{id}", AuthMiddleware(s.authSvc, s.handlers.Update()))
	s.mux.HandleFunc("DELETE /api/videos/{id}", AuthMiddleware(s.authSvc, s.handlers.Delete()))
	s.mux.HandleFunc("GET /api/videos/{id}/events", AuthMiddleware(s.authSvc, s.sseHandler.Events()))

	s.mux.HandleFunc("GET /api/watch/{id}", s.handlers.Watch())
	s.mux.HandleFunc("GET /api/search", s.handlers.Search())
	s.mux.HandleFunc("GET /api/health", s.handlers.Health())

	s.mux.Handle("GET /v/", s.handlers.Media())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	middleware.SecurityHeaders(s.mux).ServeHTTP(w, r)
}
