// internal/client/client.go
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/jason-s-yu/heist/internal/game"
	"github.com/jason-s-yu/heist/internal/models"
	"github.com/jason-s-yu/heist/internal/realtime"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Code    string `json:"code"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap maps the error code back onto the domain error kinds so callers
// can use errors.Is(err, models.ErrConflict) on either side of the wire.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "not_found":
		return models.ErrNotFound
	case "ability_already_used":
		return models.ErrAbilityAlreadyUsed
	case "conflict":
		return models.ErrConflict
	case "precondition_failed":
		return models.ErrPreconditionFailed
	case "invalid_input":
		return models.ErrInvalidInput
	case "code_space_exhausted":
		return models.ErrCodeSpaceExhausted
	}
	return nil
}

// Client talks to a heist server on behalf of one user.
type Client struct {
	baseURL string
	http    *http.Client

	Token  string
	UserID string
	Name   string
}

// New returns a client for the server at baseURL. A nil httpClient uses
// http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var r io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Guest starts a guest session and keeps its token for later calls.
func (c *Client) Guest(ctx context.Context, name string) error {
	var resp struct {
		UserID string `json:"userId"`
		Name   string `json:"name"`
		Token  string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/guest", map[string]string{"name": name}, &resp); err != nil {
		return err
	}
	c.Token, c.UserID, c.Name = resp.Token, resp.UserID, resp.Name
	return nil
}

func (c *Client) CreateRoom(ctx context.Context, params game.CreateRoomParams) (*game.RoomView, error) {
	var resp struct {
		Room *game.RoomView `json:"room"`
	}
	if err := c.do(ctx, http.MethodPost, "/rooms", params, &resp); err != nil {
		return nil, err
	}
	return resp.Room, nil
}

func (c *Client) Room(ctx context.Context, roomID uuid.UUID) (*game.RoomView, error) {
	var v game.RoomView
	if err := c.do(ctx, http.MethodGet, "/rooms/"+roomID.String(), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) RoomByCode(ctx context.Context, code string) (*game.RoomView, error) {
	var v game.RoomView
	if err := c.do(ctx, http.MethodGet, "/codes/"+url.PathEscape(code), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Join enters the lobby behind code. An empty displayName uses the
// session name; avatarID 0 lets the server pick.
func (c *Client) Join(ctx context.Context, code, displayName string, avatarID int) (*models.Player, error) {
	body := map[string]interface{}{"displayName": displayName, "avatarId": avatarID}
	var p models.Player
	if err := c.do(ctx, http.MethodPost, "/codes/"+url.PathEscape(code)+"/join", body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) SetReady(ctx context.Context, roomID uuid.UUID, ready bool) (*models.Player, error) {
	var p models.Player
	if err := c.do(ctx, http.MethodPost, "/rooms/"+roomID.String()+"/ready", map[string]bool{"ready": ready}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Start(ctx context.Context, roomID uuid.UUID) (*game.RoomView, error) {
	var v game.RoomView
	if err := c.do(ctx, http.MethodPost, "/rooms/"+roomID.String()+"/start", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Advance ends the current phase early. Host only.
func (c *Client) Advance(ctx context.Context, roomID uuid.UUID) (*game.RoomView, error) {
	var v game.RoomView
	if err := c.do(ctx, http.MethodPost, "/rooms/"+roomID.String()+"/advance", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) Act(ctx context.Context, roomID uuid.UUID, a game.Action) (*game.ActionResult, error) {
	var res game.ActionResult
	if err := c.do(ctx, http.MethodPost, "/rooms/"+roomID.String()+"/actions", a, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Say(ctx context.Context, roomID uuid.UUID, content string) (*models.Message, error) {
	var m models.Message
	if err := c.do(ctx, http.MethodPost, "/rooms/"+roomID.String()+"/messages", map[string]string{"content": content}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) Messages(ctx context.Context, roomID uuid.UUID) ([]*models.Message, error) {
	var msgs []*models.Message
	if err := c.do(ctx, http.MethodGet, "/rooms/"+roomID.String()+"/messages", nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Session is an open room socket.
type Session struct {
	conn *websocket.Conn
}

// Dial opens the room socket for roomID.
func (c *Client) Dial(ctx context.Context, roomID uuid.UUID) (*Session, error) {
	u := c.baseURL + "/rooms/" + roomID.String() + "/ws"
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	header := http.Header{}
	if c.Token != "" {
		header.Set("Authorization", "Bearer "+c.Token)
	}
	conn, _, err := websocket.Dial(ctx, u, &websocket.DialOptions{
		HTTPClient:   c.http,
		HTTPHeader:   header,
		Subprotocols: []string{realtime.Subprotocol},
	})
	if err != nil {
		return nil, fmt.Errorf("dial room %s: %w", roomID, err)
	}
	return &Session{conn: conn}, nil
}

// Next blocks for the next server frame.
func (s *Session) Next(ctx context.Context) (realtime.ServerFrame, error) {
	var f realtime.ServerFrame
	err := wsjson.Read(ctx, s.conn, &f)
	return f, err
}

func (s *Session) Send(ctx context.Context, f realtime.ClientFrame) error {
	return wsjson.Write(ctx, s.conn, f)
}

func (s *Session) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}

// Watch streams frames from roomID to fn, feeding state frames into m
// when it is non-nil, until ctx ends, the socket closes or fn fails.
func (c *Client) Watch(ctx context.Context, roomID uuid.UUID, m *Mirror, fn func(realtime.ServerFrame) error) error {
	s, err := c.Dial(ctx, roomID)
	if err != nil {
		return err
	}
	defer s.Close()

	for {
		f, err := s.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return err
		}
		if m != nil && f.Type == realtime.FrameState && f.State != nil {
			m.Apply(f.State)
		}
		if err := fn(f); err != nil {
			return err
		}
	}
}
