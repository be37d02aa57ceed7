package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/huddle/internal/adapters/storage/memory"
	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/config"
	"github.com/dkeye/huddle/internal/domain"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	cfg := &config.Config{
		Mode:       "test",
		StaticPath: t.TempDir(),
		Secret:     "test-secret",
		Auth:       config.AuthConfig{TrustHeader: true, UserHeader: "X-User-ID"},
		RTC: config.RTCConfig{ICEServers: []config.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
			{URLs: []string{"turn:turn.example.com:3478?transport=udp"}, Username: "u", Credential: "p"},
			{URLs: []string{"http://not-ice"}},
		}},
	}
	rooms := app.NewRoomRegistry(memory.New(), app.RegistryOptions{Cache: true, MaxRetries: 3})
	return SetupRouter(context.Background(), cfg, Deps{Rooms: rooms})
}

func do(t *testing.T, r http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeRoom(t *testing.T, w *httptest.ResponseRecorder) domain.Room {
	t.Helper()
	var room domain.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))
	return room
}

func TestMe_TrustedHeader(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/api/me", "alice", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":"alice"}`, w.Body.String())

	w = do(t, r, http.MethodGet, "/api/me", strings.Repeat("x", domain.MaxUserIDLen+1), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMe_SessionCookie(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/api/me", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var first struct {
		UserID string `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	require.NotEmpty(t, first.UserID)

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":"`+first.UserID+`"}`, w.Body.String())
}

func TestRooms_Lifecycle(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/api/rooms", "alice", `{"name":"standup","recordingEnabled":true}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	room := decodeRoom(t, w)
	assert.Equal(t, "standup", room.Name)
	assert.Equal(t, domain.UserID("alice"), room.HostID)
	assert.True(t, room.RecordingEnabled)
	assert.True(t, room.Moderators.Has("alice"))
	path := "/api/rooms/" + string(room.ID)

	w = do(t, r, http.MethodGet, path, "bob", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, room.ID, decodeRoom(t, w).ID)

	w = do(t, r, http.MethodGet, "/api/rooms", "bob", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Rooms []domain.Room `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Rooms, 1)

	w = do(t, r, http.MethodPost, path+"/moderators", "bob", `{"userId":"bob"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodPost, path+"/moderators", "alice", `{"userId":"bob"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeRoom(t, w).Moderators.Has("bob"))

	w = do(t, r, http.MethodDelete, path+"/moderators/alice", "alice", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeRoom(t, w).Moderators.Has("alice"), "host stays moderator")

	w = do(t, r, http.MethodDelete, path+"/moderators/bob", "alice", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeRoom(t, w).Moderators.Has("bob"))

	w = do(t, r, http.MethodDelete, path, "bob", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodDelete, path, "alice", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeRoom(t, w).Active)

	w = do(t, r, http.MethodGet, "/api/rooms", "alice", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"rooms":[]}`, w.Body.String())

	w = do(t, r, http.MethodGet, path, "alice", "")
	require.Equal(t, http.StatusOK, w.Code, "inactive rooms stay resolvable")
}

func TestRooms_BadRequests(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/api/rooms", "alice", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/rooms", "alice", `{"name":"`+strings.Repeat("n", 65)+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/api/rooms/missing", "alice", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodDelete, "/api/rooms/missing", "alice", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodPost, "/api/rooms/missing/moderators", "alice", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRTCConfig(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/api/rtc/config", "alice", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		ICEServers []struct {
			URLs     []string `json:"urls"`
			Username string   `json:"username"`
		} `json:"iceServers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.ICEServers, 2, "invalid urls are skipped")
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, body.ICEServers[0].URLs)
	assert.Equal(t, "u", body.ICEServers[1].Username)
}
