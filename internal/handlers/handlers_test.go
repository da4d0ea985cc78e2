package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/voxnote/internal/database"
	"github.com/thereayou/voxnote/internal/middleware"
	"github.com/thereayou/voxnote/internal/models"
	"github.com/thereayou/voxnote/internal/services"
	ws "github.com/thereayou/voxnote/internal/websocket"
	"github.com/thereayou/voxnote/internal/workers"
	"github.com/thereayou/voxnote/pkg/auth"
	"go.uber.org/zap"
)

type frame map[string]interface{}

type fakeSigner struct{}

func (fakeSigner) UploadURL(key string) (string, error) {
	return "https://storage.test/upload/" + key, nil
}

func (fakeSigner) DownloadURL(key string) (string, error) {
	return "https://storage.test/download/" + key, nil
}

func (fakeSigner) TTL() time.Duration { return 7 * 24 * time.Hour }

type testEnv struct {
	t        *testing.T
	db       *database.Database
	hub      *ws.Hub
	jwt      *auth.JWTManager
	identity *services.IdentityService
	srv      *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Connect("file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	require.NoError(t, db.Migrate())

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	hub := ws.NewHub(ws.NewLocalBroker(), nil)
	go hub.Run()

	jwtMgr := auth.NewJWTManager("test-secret", time.Hour)
	pool := workers.NewPool(4)
	identity := services.NewIdentityService(jwtMgr, db, rdb, pool)
	deps := &Deps{DB: db, Hub: hub, Signer: fakeSigner{}, Pool: pool, Log: zap.NewNop()}

	wsH := NewWebSocketHandler(deps)
	accountH := NewAccountHandler(deps, identity)

	r := gin.New()
	wsGroup := r.Group("/ws", middleware.WSAuthMiddleware(identity, deps.Log))
	wsGroup.GET("/users/:user_id", wsH.HandleUser)
	wsGroup.GET("/rooms", wsH.HandleRoom)
	api := r.Group("/api", middleware.AuthMiddleware(identity, deps.Log))
	api.POST("/logout", accountH.Logout)
	api.DELETE("/account", accountH.DeleteAccount)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Stop()
		srv.Close()
		_ = rdb.Close()
		_ = db.Close()
	})

	return &testEnv{t: t, db: db, hub: hub, jwt: jwtMgr, identity: identity, srv: srv}
}

// user создаёт пользователя и возвращает его токен
func (e *testEnv) user(uid, phone, name string) (*models.User, string) {
	e.t.Helper()
	ctx := context.Background()
	u, err := e.db.UpsertUser(ctx, uid, phone, "US")
	require.NoError(e.t, err)
	require.NoError(e.t, e.db.UpdateDisplayName(ctx, u.ID, name))
	u.DisplayName = name

	token, err := e.jwt.Generate(uid, phone)
	require.NoError(e.t, err)
	return u, token
}

func (e *testEnv) wsURL(path, token string) string {
	u := "ws" + strings.TrimPrefix(e.srv.URL, "http") + path
	if token != "" {
		u += "?token=" + token
	}
	return u
}

func (e *testEnv) dial(path, token string) *websocket.Conn {
	e.t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(e.wsURL(path, token), nil)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

// readUntil пропускает кадры, пока не придёт кадр нужного типа, подходящий под match
func readUntil(t *testing.T, conn *websocket.Conn, typ string, match func(frame) bool) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %s", typ)
		if f["type"] == typ && (match == nil || match(f)) {
			return f
		}
	}
}

// readAll читает, пока не встретит все перечисленные типы, в любом порядке
func readAll(t *testing.T, conn *websocket.Conn, types ...string) map[string]frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	want := make(map[string]bool, len(types))
	for _, typ := range types {
		want[typ] = true
	}
	got := make(map[string]frame, len(types))
	for len(got) < len(types) {
		var f frame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %v", types)
		typ, _ := f["type"].(string)
		if _, seen := got[typ]; want[typ] && !seen {
			got[typ] = f
		}
	}
	return got
}

// assertNoFrame ждёт wait и проверяет, что кадр типа typ не пришёл.
// После таймаута соединение читать больше нельзя.
func assertNoFrame(t *testing.T, conn *websocket.Conn, typ string, wait time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		assert.NotEqual(t, typ, f["type"])
	}
}

// roomEntry ищет комнату в кадре notifications
func roomEntry(f frame, roomID string) frame {
	list, _ := f["notifications"].([]interface{})
	for _, item := range list {
		entry, _ := item.(map[string]interface{})
		if entry["room_id"] == roomID {
			return entry
		}
	}
	return nil
}

func (e *testEnv) doRequest(method, path, token string) *http.Response {
	e.t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, nil)
	require.NoError(e.t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	_ = resp.Body.Close()
	return resp
}

const (
	waitFor = 2 * time.Second
	tick   = 10 * time.Millisecond
)
