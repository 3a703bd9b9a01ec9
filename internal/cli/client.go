package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a thin cookie-authenticated wrapper over the HTTP API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (c *Client) ListLobbies(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/list", Session{}, nil, &out)
	return out, err
}

func (c *Client) Host(ctx context.Context, username string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/host", Session{}, map[string]any{"username": username}, &out)
	return out, err
}

func (c *Client) Join(ctx context.Context, lobbyID, username string) error {
	return c.jsonRequest(ctx, http.MethodPost, "/lobby/"+url.PathEscape(lobbyID)+"/players", Session{},
		map[string]any{"username": username}, nil)
}

func (c *Client) LobbyStatus(ctx context.Context, s Session) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/lobby/"+url.PathEscape(s.LobbyID)+"/status", s, nil, &out)
	return out, err
}

func (c *Client) Leave(ctx context.Context, s Session) error {
	return c.jsonRequest(ctx, http.MethodPost, "/lobby/"+url.PathEscape(s.LobbyID)+"/leave", s, nil, nil)
}

func (c *Client) StartGame(ctx context.Context, s Session) error {
	return c.jsonRequest(ctx, http.MethodPost, "/game/"+url.PathEscape(s.LobbyID)+"/start", s, nil, nil)
}

func (c *Client) GameStatus(ctx context.Context, s Session) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/game/"+url.PathEscape(s.LobbyID)+"/status", s, nil, &out)
	return out, err
}

func (c *Client) PlaceTile(ctx context.Context, s Session, x, y int) error {
	return c.jsonRequest(ctx, http.MethodPost, "/game/"+url.PathEscape(s.LobbyID)+"/tile", s,
		map[string]any{"x": x, "y": y}, nil)
}

func (c *Client) Establish(ctx context.Context, s Session, name string) error {
	return c.jsonRequest(ctx, http.MethodPost, "/game/"+url.PathEscape(s.LobbyID)+"/establish", s,
		map[string]any{"name": name}, nil)
}

func (c *Client) BuyStocks(ctx context.Context, s Session, names []string) error {
	orders := make([]map[string]any, 0, len(names))
	for _, n := range names {
		orders = append(orders, map[string]any{"name": n})
	}
	return c.jsonRequest(ctx, http.MethodPost, "/game/"+url.PathEscape(s.LobbyID)+"/buy-stocks", s, orders, nil)
}

func (c *Client) EndTurn(ctx context.Context, s Session) error {
	return c.jsonRequest(ctx, http.MethodPost, "/game/"+url.PathEscape(s.LobbyID)+"/end-turn", s, nil, nil)
}

func (c *Client) EndResult(ctx context.Context, s Session) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/game/"+url.PathEscape(s.LobbyID)+"/end-result", s, nil, &out)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, s Session, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.Username != "" {
		req.AddCookie(&http.Cookie{Name: "username", Value: s.Username})
	}
	if s.LobbyID != "" {
		req.AddCookie(&http.Cookie{Name: "lobbyId", Value: s.LobbyID})
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Code != "" {
			return fmt.Errorf("%s: %s", envelope.Error.Code, envelope.Error.Message)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if out != nil && len(raw) > 0 {
		return json.Unmarshal(raw, out)
	}
	return nil
}
