package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/voxnote/internal/models"
	ws "github.com/thereayou/voxnote/internal/websocket"
)

type member struct {
	user  *models.User
	inbox *websocket.Conn
	room  *websocket.Conn
}

// join открывает личный канал и канал комнаты и ждёт, пока комната будет отмечена прочитанной
func (e *testEnv) join(uid, phone, name string, peers ...string) (*member, string) {
	e.t.Helper()
	user, token := e.user(uid, phone, name)
	m := &member{user: user, inbox: e.dial("/ws/users/"+uid, token), room: e.dial("/ws/rooms", token)}
	readUntil(e.t, m.inbox, "notifications", nil)

	send(e.t, m.room, frame{"command": "connect", "phone_numbers": peers})
	created := readUntil(e.t, m.room, "new_room", nil)
	roomID := created["room_id"].(string)

	readUntil(e.t, m.inbox, "notifications", func(f frame) bool {
		entry := roomEntry(f, roomID)
		return entry != nil && entry["read"] == true
	})
	return m, roomID
}

func TestConnectFromBothSidesLandsInSameRoom(t *testing.T) {
	env := newTestEnv(t)
	env.user("bob", "+16502530001", "Bob")
	alice, roomA := env.join("alice", "+16502530000", "Alice", "+16502530001")
	_, token := env.user("bob", "+16502530001", "Bob")

	bobRoom := env.dial("/ws/rooms", token)
	send(t, bobRoom, frame{"command": "connect", "phone_numbers": []string{"(650) 253-0000"}})
	f := readUntil(t, bobRoom, "new_room", nil)

	assert.Equal(t, roomA, f["room_id"])
	assert.Equal(t, "Alice", f["room_name"])
	assert.ElementsMatch(t, []interface{}{"+16502530000", "+16502530001"}, f["room_members"])

	// повторный connect тем же набором
	send(t, alice.room, frame{"command": "connect", "phone_numbers": []string{"+16502530001"}})
	again := readUntil(t, alice.room, "new_room", nil)
	assert.Equal(t, roomA, again["room_id"])
	assert.Equal(t, "Bob", again["room_name"])
}

func TestConnectWithUnknownNumbersFails(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user("alice", "+16502530000", "Alice")

	conn := env.dial("/ws/rooms", token)
	send(t, conn, frame{"command": "connect", "phone_numbers": []string{"+16502539999"}})
	f := readUntil(t, conn, "error", nil)
	assert.Equal(t, "NOT_FOUND", f["code"])

	send(t, conn, frame{"command": "fetch_message_notifications"})
	f = readUntil(t, conn, "error", nil)
	assert.Equal(t, "NOT_FOUND", f["code"])
}

func TestSendMessageFlow(t *testing.T) {
	env := newTestEnv(t)
	env.user("bob", "+16502530001", "Bob")
	alice, roomID := env.join("alice", "+16502530000", "Alice", "+16502530001")
	bob, bobRoomID := env.join("bob", "+16502530001", "Bob", "+16502530000")
	require.Equal(t, roomID, bobRoomID)

	send(t, alice.room, frame{"command": "fetch_upload_url"})
	upload := readUntil(t, alice.room, "upload_url", nil)
	filename := upload["upload_filename"].(string)
	assert.Equal(t, "https://storage.test/upload/"+filename, upload["upload_url"])
	assert.EqualValues(t, (7*24-1)*60*60*1000, upload["refresh_upload_destination_in"])

	send(t, alice.room, frame{"command": "send_message", "filename": filename})

	// отправитель получает new_message со своей записью и новую ссылку, в любом порядке
	got := readAll(t, alice.room, "new_message", "upload_url")
	assert.Equal(t, filename, got["new_message"]["message_id"])
	own, ok := got["new_message"]["message"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, filename, own["message_id"])
	assert.Equal(t, "Alice", own["creator_display_name"])
	assert.NotEqual(t, filename, got["upload_url"]["upload_filename"])

	// получатель видит свою запись во входящих
	incoming := readUntil(t, bob.room, "new_message", nil)
	msg, ok := incoming["message"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEqual(t, own["id"], msg["id"])
	assert.Equal(t, filename, msg["message_id"])
	assert.Equal(t, "Alice", msg["creator_display_name"])
	assert.Equal(t, "+16502530000", msg["creator_phone_number"])
	assert.Equal(t, "https://storage.test/download/"+filename, msg["download_url"])

	readUntil(t, bob.inbox, "notifications", func(f frame) bool {
		entry := roomEntry(f, roomID)
		return entry != nil && entry["latest_message_id"] == filename && entry["read"] == false
	})
	readUntil(t, alice.inbox, "notifications", func(f frame) bool {
		entry := roomEntry(f, roomID)
		return entry != nil && entry["latest_message_id"] == filename && entry["read"] == true && entry["is_own_message"] == true
	})

	ctx := context.Background()
	rid := uuid.MustParse(roomID)
	bobLedger, err := env.db.GetRoomNotification(ctx, rid, bob.user.ID)
	require.NoError(t, err)
	assert.False(t, bobLedger.Read)
	aliceLedger, err := env.db.GetRoomNotification(ctx, rid, alice.user.ID)
	require.NoError(t, err)
	assert.True(t, aliceLedger.Read)

	// повторная отправка того же файла ничего не дублирует
	send(t, alice.room, frame{"command": "send_message", "filename": filename})
	readUntil(t, alice.room, "upload_url", nil)
	var count int64
	require.NoError(t, env.db.DB().Model(&models.Message{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	// свои сообщения во входящие не попадают
	send(t, alice.room, frame{"command": "fetch_message_notifications"})
	mine := readUntil(t, alice.room, "message_notifications", nil)
	assert.Empty(t, mine["message_notifications"])

	send(t, bob.room, frame{"command": "fetch_message_notifications"})
	listed := readUntil(t, bob.room, "message_notifications", nil)
	entries := listed["message_notifications"].([]interface{})
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]interface{})
	assert.Equal(t, msg["id"], entry["id"])

	send(t, bob.room, frame{"command": "report_message_notification", "message_notification_id": entry["id"]})
	after := readUntil(t, bob.room, "message_notifications", nil)
	assert.Empty(t, after["message_notifications"])

	var reports []models.Report
	require.NoError(t, env.db.DB().Find(&reports).Error)
	require.Len(t, reports, 1)
	assert.Equal(t, bob.user.ID, reports[0].ReporterID)
	assert.Equal(t, alice.user.ID, reports[0].ReportedUserID)
}

func TestSendMessageWithoutFilenameIsNoop(t *testing.T) {
	env := newTestEnv(t)
	env.user("bob", "+16502530001", "Bob")
	alice, _ := env.join("alice", "+16502530000", "Alice", "+16502530001")

	send(t, alice.room, frame{"command": "send_message"})
	send(t, alice.room, frame{"command": "send_message", "filename": "not-a-uuid"})
	f := readUntil(t, alice.room, "error", nil)
	assert.Equal(t, "INVALID_ARGUMENT", f["code"])

	var count int64
	require.NoError(t, env.db.DB().Model(&models.Message{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRenameGroupRoom(t *testing.T) {
	env := newTestEnv(t)
	env.user("bob", "+16502530001", "Bob")
	env.user("carol", "+16502530002", "Carol")
	alice, roomID := env.join("alice", "+16502530000", "Alice", "+16502530001", "+16502530002")
	bob, _ := env.join("bob", "+16502530001", "Bob", "+16502530000", "+16502530002")
	carol, _ := env.join("carol", "+16502530002", "Carol", "+16502530000", "+16502530001")

	send(t, bob.room, frame{"command": "update_room_name", "name": "Hiking"})

	for _, m := range []*member{alice, bob, carol} {
		f := readUntil(t, m.room, "updated_room_name", nil)
		assert.Equal(t, "Hiking", f["room_name"])
		readUntil(t, m.inbox, "notifications", func(f frame) bool {
			entry := roomEntry(f, roomID)
			return entry != nil && entry["room_name"] == "Hiking"
		})
	}
}

func TestRenameTwoMemberRoomIsNoop(t *testing.T) {
	env := newTestEnv(t)
	env.user("bob", "+16502530001", "Bob")
	alice, roomID := env.join("alice", "+16502530000", "Alice", "+16502530001")

	send(t, alice.room, frame{"command": "update_room_name", "name": "Nope"})
	assertNoFrame(t, alice.room, "updated_room_name", 300*time.Millisecond)

	room, err := env.db.GetRoom(context.Background(), uuid.MustParse(roomID))
	require.NoError(t, err)
	assert.Equal(t, models.DefaultRoomName, room.DisplayName)
}

func TestRebindLeavesPreviousRoom(t *testing.T) {
	env := newTestEnv(t)
	env.user("bob", "+16502530001", "Bob")
	env.user("carol", "+16502530002", "Carol")
	alice, first := env.join("alice", "+16502530000", "Alice", "+16502530001")

	send(t, alice.room, frame{"command": "connect", "phone_numbers": []string{"+16502530002"}})
	second := readUntil(t, alice.room, "new_room", nil)
	assert.NotEqual(t, first, second["room_id"])
	assert.Equal(t, "Carol", second["room_name"])

	require.Eventually(t, func() bool {
		return env.hub.GroupSize(ws.RoomGroup(uuid.MustParse(first))) == 0 &&
			env.hub.GroupSize(ws.RoomGroup(uuid.MustParse(second["room_id"].(string)))) == 1
	}, waitFor, tick)
}

func TestReconnectMarksRoomRead(t *testing.T) {
	env := newTestEnv(t)
	env.user("bob", "+16502530001", "Bob")
	alice, roomID := env.join("alice", "+16502530000", "Alice", "+16502530001")
	bob, _ := env.join("bob", "+16502530001", "Bob", "+16502530000")

	send(t, alice.room, frame{"command": "send_message", "filename": uuid.New().String()})
	readUntil(t, bob.inbox, "notifications", func(f frame) bool {
		entry := roomEntry(f, roomID)
		return entry != nil && entry["read"] == false
	})

	ctx := context.Background()
	rid := uuid.MustParse(roomID)
	require.Eventually(t, func() bool {
		n, err := env.db.GetRoomNotification(ctx, rid, bob.user.ID)
		return err == nil && !n.Read
	}, waitFor, tick)

	send(t, bob.room, frame{"command": "connect", "phone_numbers": []string{"+16502530000"}})
	readUntil(t, bob.room, "new_room", nil)
	readUntil(t, bob.inbox, "notifications", func(f frame) bool {
		entry := roomEntry(f, roomID)
		return entry != nil && entry["read"] == true
	})

	n, err := env.db.GetRoomNotification(ctx, rid, bob.user.ID)
	require.NoError(t, err)
	assert.True(t, n.Read)
}

func TestRenameOfAnotherRoomIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	env.user("bob", "+16502530001", "Bob")
	alice, roomID := env.join("alice", "+16502530000", "Alice", "+16502530001")
	group := ws.RoomGroup(uuid.MustParse(roomID))
	ctx := context.Background()

	require.NoError(t, env.hub.Publish(ctx, group, ws.RoomRenamed{RoomID: uuid.New(), RoomName: "Elsewhere"}))
	require.NoError(t, env.hub.Publish(ctx, group, ws.RoomRenamed{RoomID: uuid.MustParse(roomID), RoomName: "Here"}))

	// события одной группы приходят по порядку, поэтому первым должно быть "Here"
	f := readUntil(t, alice.room, "updated_room_name", nil)
	assert.Equal(t, "Here", f["room_name"])
}
