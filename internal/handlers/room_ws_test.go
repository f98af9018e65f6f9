package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/heist/internal/game"
	"github.com/jason-s-yu/heist/internal/models"
	"github.com/jason-s-yu/heist/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialRoom(t *testing.T, ctx context.Context, srv *httptest.Server, roomID, token string, protocols ...string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/rooms/" + roomID + "/ws?token=" + token
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: protocols})
	require.NoError(t, err)
	t.Cleanup(func() { c.CloseNow() })
	return c
}

// readUntil reads frames until match returns true.
func readUntil(t *testing.T, ctx context.Context, c *websocket.Conn, match func(realtime.ServerFrame) bool) realtime.ServerFrame {
	t.Helper()
	for {
		var f realtime.ServerFrame
		require.NoError(t, wsjson.Read(ctx, c, &f))
		if match(f) {
			return f
		}
	}
}

func TestRoomSocket(t *testing.T) {
	env := newTestAPI(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	room, members := env.setupRoom(t, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := dialRoom(t, ctx, srv, room.ID.String(), members[1].token, realtime.Subprotocol)
	assert.Equal(t, realtime.Subprotocol, c.Subprotocol())

	var first realtime.ServerFrame
	require.NoError(t, wsjson.Read(ctx, c, &first))
	require.Equal(t, realtime.FrameState, first.Type)
	require.NotNil(t, first.State)
	assert.Equal(t, room.ID, first.State.ID)
	assert.Equal(t, members[1].userID, first.State.ViewerID)
	assert.Equal(t, 1, env.hub.Count(room.ID))

	require.NoError(t, wsjson.Write(ctx, c, realtime.ClientFrame{Type: realtime.FrameChat, Content: "ready when you are"}))
	f := readUntil(t, ctx, c, func(f realtime.ServerFrame) bool { return f.Type == realtime.FrameEvent })
	require.NotNil(t, f.Event)
	assert.Equal(t, game.EventMessagePosted, f.Event.Type)
	assert.Equal(t, members[1].userID, f.Event.ActorID)

	require.NoError(t, wsjson.Write(ctx, c, realtime.ClientFrame{Type: realtime.FrameReady, Ready: false}))
	f = readUntil(t, ctx, c, func(f realtime.ServerFrame) bool {
		return f.Type == realtime.FrameEvent && f.Event.Type == game.EventPlayerReady
	})
	f = readUntil(t, ctx, c, func(f realtime.ServerFrame) bool { return f.Type == realtime.FrameState })
	me := f.State.Player(members[1].userID)
	require.NotNil(t, me)
	assert.False(t, me.Ready)

	require.NoError(t, wsjson.Write(ctx, c, realtime.ClientFrame{Type: realtime.FrameAction}))
	f = readUntil(t, ctx, c, func(f realtime.ServerFrame) bool { return f.Type == realtime.FrameError })
	assert.Equal(t, "invalid_input", f.Code)

	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte("{nope")))
	f = readUntil(t, ctx, c, func(f realtime.ServerFrame) bool { return f.Type == realtime.FrameError })
	assert.Equal(t, "invalid_input", f.Code)

	c.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return env.hub.Count(room.ID) == 0 }, time.Second, 10*time.Millisecond)
}

func TestRoomSocketResults(t *testing.T) {
	env := newTestAPI(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	room, members := env.setupRoom(t, 4)
	rec := env.do(t, "POST", "/rooms/"+room.ID.String()+"/start", members[0].token, nil)
	require.Equal(t, 200, rec.Code, rec.Body.String())
	rec = env.do(t, "POST", "/rooms/"+room.ID.String()+"/advance", members[0].token, nil)
	require.Equal(t, 200, rec.Code, rec.Body.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c := dialRoom(t, ctx, srv, room.ID.String(), members[1].token, realtime.Subprotocol)
	first := readUntil(t, ctx, c, func(f realtime.ServerFrame) bool { return f.Type == realtime.FrameState })
	assert.Equal(t, models.PhaseDay, first.State.Game.Phase)

	vote := &game.Action{Kind: game.ActionVote, TargetID: members[2].userID}
	require.NoError(t, wsjson.Write(ctx, c, realtime.ClientFrame{Type: realtime.FrameAction, Action: vote}))
	f := readUntil(t, ctx, c, func(f realtime.ServerFrame) bool { return f.Type == realtime.FrameResult || f.Type == realtime.FrameError })
	require.Equal(t, realtime.FrameResult, f.Type, f.Error)
	assert.Equal(t, game.ActionVote, f.Result.Kind)

	require.NoError(t, wsjson.Write(ctx, c, realtime.ClientFrame{Type: realtime.FrameAction, Action: vote}))
	f = readUntil(t, ctx, c, func(f realtime.ServerFrame) bool { return f.Type == realtime.FrameError })
	assert.Equal(t, "conflict", f.Code)
}

func TestRoomSocketRejections(t *testing.T) {
	env := newTestAPI(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	room, members := env.setupRoom(t, 2)
	_, outsider := env.guest(t, "Outsider")

	cases := []struct {
		name      string
		roomID    string
		token     string
		protocols []string
		want      websocket.StatusCode
	}{
		{"no subprotocol", room.ID.String(), members[1].token, nil, BadSubprotocolError},
		{"bad token", room.ID.String(), "garbage", []string{realtime.Subprotocol}, InvalidAuthTokenError},
		{"bad room id", "not-a-room", members[1].token, []string{realtime.Subprotocol}, InvalidRoomIDError},
		{"unknown room", "8a1f4f9e-5b55-4a8e-9a4b-3f7cbf3d0c11", members[1].token, []string{realtime.Subprotocol}, InvalidRoomIDError},
		{"not a member", room.ID.String(), outsider, []string{realtime.Subprotocol}, InvalidUserIDError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			c := dialRoom(t, ctx, srv, tc.roomID, tc.token, tc.protocols...)
			_, _, err := c.Read(ctx)
			require.Error(t, err)
			assert.Equal(t, tc.want, websocket.CloseStatus(err))
		})
	}
}
