package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/voxnote/pkg/apperr"
)

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user("alice", "+16502530000", "Alice")

	resp := env.doRequest(http.MethodPost, "/api/logout", token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, resp, err := websocket.DefaultDialer.Dial(env.wsURL("/ws/rooms", token), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.doRequest(http.MethodPost, "/api/logout", token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDeleteAccountRemovesPairRooms(t *testing.T) {
	env := newTestEnv(t)
	env.user("bob", "+16502530001", "Bob")
	env.user("carol", "+16502530002", "Carol")
	alice, pair := env.join("alice", "+16502530000", "Alice", "+16502530001")
	_, group := env.join("alice", "+16502530000", "Alice", "+16502530001", "+16502530002")
	_, token := env.user("alice", "+16502530000", "Alice")

	resp := env.doRequest(http.MethodDelete, "/api/account", token)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	ctx := context.Background()
	_, err := env.db.GetUser(ctx, alice.user.ID)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	_, err = env.db.GetRoom(ctx, uuid.MustParse(pair))
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	members, err := env.db.RoomMembers(ctx, uuid.MustParse(group))
	require.NoError(t, err)
	assert.Len(t, members, 2)

	// токен удалённого аккаунта больше не пускает
	resp = env.doRequest(http.MethodDelete, "/api/account", token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
