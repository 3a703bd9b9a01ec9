package api

import (
	"net/http"
	"strings"

	"acquire/internal/lobby"

	"github.com/go-chi/chi/v5"
)

const (
	defaultMinPlayers = 2
	defaultMaxPlayers = 6
)

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"lobbies": s.manager.ListLobbies()})
}

func (s *Server) handleHost(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username   string `json:"username"`
		MinPlayers int    `json:"minPlayers,omitempty"`
		MaxPlayers int    `json:"maxPlayers,omitempty"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid body")
		return
	}
	user := strings.TrimSpace(in.Username)
	if user == "" {
		writeError(w, http.StatusBadRequest, CodeValidation, "username is required")
		return
	}
	size := lobby.Size{Min: defaultMinPlayers, Max: defaultMaxPlayers}
	if in.MinPlayers >= 2 && in.MinPlayers <= defaultMaxPlayers {
		size.Min = in.MinPlayers
	}
	if in.MaxPlayers >= size.Min && in.MaxPlayers <= defaultMaxPlayers {
		size.Max = in.MaxPlayers
	}
	l, err := s.manager.CreateLobby(size, user)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	setIdentityCookies(w, user, l.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"lobbyId": l.ID})
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var in struct {
		Username string `json:"username"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid body")
		return
	}
	user := strings.TrimSpace(in.Username)
	if user == "" {
		writeError(w, http.StatusBadRequest, CodeValidation, "username is required")
		return
	}
	if err := s.manager.Join(id, user); err != nil {
		s.writeDomainError(w, err)
		return
	}
	setIdentityCookies(w, user, id)
	http.Redirect(w, r, "/lobby/"+id, http.StatusFound)
}

func (s *Server) handleLobbyStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user := username(r)

	var status lobby.LobbyStatus
	err := s.manager.WithRecord(id, func(rec *lobby.Record) error {
		if user == "" || !rec.Lobby.HasPlayer(user) {
			return lobby.ErrNotMember
		}
		status = rec.Lobby.Status(user)
		return nil
	})
	switch err {
	case nil:
		writeJSON(w, http.StatusOK, status)
	case lobby.ErrNotMember, lobby.ErrNotFound:
		http.Redirect(w, r, "/", http.StatusFound)
	default:
		s.writeDomainError(w, err)
	}
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user := username(r)
	if user == "" {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing username cookie")
		return
	}
	if err := s.manager.Leave(id, user); err != nil {
		s.writeDomainError(w, err)
		return
	}
	clearIdentityCookies(w)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
