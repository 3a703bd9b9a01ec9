package api

import (
	"log/slog"
	"net/http"
	"time"

	"acquire/internal/config"
	"acquire/internal/lobby"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

const (
	usernameCookie = "username"
	lobbyIDCookie  = "lobbyId"
)

type Server struct {
	cfg     config.ServerConfig
	log     *slog.Logger
	manager *lobby.Manager
	mux     *chi.Mux
}

func New(cfg config.ServerConfig, logger *slog.Logger, manager *lobby.Manager) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		log:     logger,
		manager: manager,
		mux:     chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Get("/list", s.handleList)
	r.Post("/host", s.handleHost)

	r.Route("/lobby/{id}", func(r chi.Router) {
		r.Post("/players", s.handleJoin)
		r.Get("/status", s.handleLobbyStatus)
		r.Post("/leave", s.handleLeave)
	})

	r.Route("/game/{id}", func(r chi.Router) {
		r.Use(httprate.Limit(
			s.cfg.GameRateLimitRPS,
			time.Second,
			httprate.WithKeyFuncs(keyByIdentity),
			httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
				writeError(w, http.StatusTooManyRequests, CodeRateLimited, "slow down")
			}),
		))
		r.Use(s.requireUsername)

		r.Post("/start", s.handleStart)
		r.Get("/status", s.handleGameStatus)
		r.Post("/tile", s.handlePlaceTile)
		r.Post("/establish", s.handleEstablish)
		r.Post("/buy-stocks", s.handleBuyStocks)
		r.Post("/end-turn", s.handleEndTurn)
		r.Post("/merger/deal", s.handleMergerDeal)
		r.Post("/merger/end-turn", s.handleMergerEndTurn)
		r.Post("/merger/resolve-conflict", s.handleResolveConflict)
		r.Post("/merger/resolve-acquirer", s.handleResolveAcquirer)
		r.Post("/merger/confirm-defunct", s.handleConfirmDefunct)
		r.Post("/end-merge", s.handleEndMerge)
		r.Get("/end-result", s.handleEndResult)
	})
}

// keyByIdentity buckets rate limits by username cookie, falling back to
// the remote IP for clients without one.
func keyByIdentity(r *http.Request) (string, error) {
	if c, err := r.Cookie(usernameCookie); err == nil && c.Value != "" {
		return "u:" + c.Value, nil
	}
	return httprate.KeyByIP(r)
}

// requireUsername gates game routes on the identity cookie.
func (s *Server) requireUsername(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if username(r) == "" {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing username cookie")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func username(r *http.Request) string {
	c, err := r.Cookie(usernameCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func setIdentityCookies(w http.ResponseWriter, user, lobbyID string) {
	http.SetCookie(w, &http.Cookie{Name: usernameCookie, Value: user, Path: "/", HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: lobbyIDCookie, Value: lobbyID, Path: "/", HttpOnly: true})
}

func clearIdentityCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: usernameCookie, Value: "", Path: "/", HttpOnly: true, MaxAge: -1})
	http.SetCookie(w, &http.Cookie{Name: lobbyIDCookie, Value: "", Path: "/", HttpOnly: true, MaxAge: -1})
}
