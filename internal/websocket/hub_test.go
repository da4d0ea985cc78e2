package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(NewLocalBroker(), nil)
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func newTestClient(hub *Hub, username string) *Client {
	c := NewClient(hub, nil, uuid.New(), username)
	hub.Register(c)
	return c
}

func nextEvent(t *testing.T, c *Client) Payload {
	t.Helper()
	select {
	case ev := <-c.events:
		p, err := ev.Decode()
		require.NoError(t, err)
		return p
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return nil
	}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case ev := <-c.events:
		t.Fatalf("unexpected event %s", ev.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishReachesEveryGroupMember(t *testing.T) {
	hub := newTestHub(t)
	phone := newTestClient(hub, "alice")
	tablet := newTestClient(hub, "alice")
	other := newTestClient(hub, "bob")

	hub.Subscribe(UserGroup("alice"), phone)
	hub.Subscribe(UserGroup("alice"), tablet)
	hub.Subscribe(UserGroup("bob"), other)

	require.NoError(t, hub.Publish(context.Background(), UserGroup("alice"), DisplayNameChanged{DisplayName: "Al"}))

	for _, c := range []*Client{phone, tablet} {
		p := nextEvent(t, c)
		changed, ok := p.(*DisplayNameChanged)
		require.True(t, ok)
		assert.Equal(t, "Al", changed.DisplayName)
	}
	assertNoEvent(t, other)
}

func TestUnregisterLeavesAllGroups(t *testing.T) {
	hub := newTestHub(t)
	c := newTestClient(hub, "alice")
	room := RoomGroup(uuid.New())

	hub.Subscribe(UserGroup("alice"), c)
	hub.Subscribe(room, c)
	assert.Equal(t, 1, hub.GroupSize(room))

	hub.Unregister(c)
	assert.Equal(t, 0, hub.GroupSize(room))
	assert.Equal(t, 0, hub.GroupSize(UserGroup("alice")))
	assert.Empty(t, c.Groups())
	assert.Equal(t, 0, hub.ClientCount())

	require.NoError(t, hub.Publish(context.Background(), room, RefreshNotifications{}))
	assertNoEvent(t, c)

	// подписка после отключения игнорируется
	hub.Subscribe(room, c)
	assert.Equal(t, 0, hub.GroupSize(room))
}

func TestUnsubscribeSingleGroup(t *testing.T) {
	hub := newTestHub(t)
	c := newTestClient(hub, "alice")
	first, second := RoomGroup(uuid.New()), RoomGroup(uuid.New())

	hub.Subscribe(first, c)
	hub.Unsubscribe(first, c)
	hub.Subscribe(second, c)

	require.NoError(t, hub.Publish(context.Background(), first, RoomRenamed{RoomName: "old"}))
	require.NoError(t, hub.Publish(context.Background(), second, RoomRenamed{RoomName: "new"}))

	p := nextEvent(t, c)
	renamed, ok := p.(*RoomRenamed)
	require.True(t, ok)
	assert.Equal(t, "new", renamed.RoomName)
	assertNoEvent(t, c)
}

func TestSendTargetsOneConnection(t *testing.T) {
	hub := newTestHub(t)
	a := newTestClient(hub, "alice")
	b := newTestClient(hub, "alice")
	roomID := uuid.New()

	require.NoError(t, hub.Send(a, RoomNotified{RoomID: roomID}))

	p := nextEvent(t, a)
	notified, ok := p.(*RoomNotified)
	require.True(t, ok)
	assert.Equal(t, roomID, notified.RoomID)
	assertNoEvent(t, b)

	hub.Unregister(a)
	assert.ErrorIs(t, hub.Send(a, RefreshNotifications{}), ErrClientClosed)
}

func TestPublishOrderWithinGroup(t *testing.T) {
	hub := newTestHub(t)
	c := newTestClient(hub, "alice")
	group := RoomGroup(uuid.New())
	hub.Subscribe(group, c)

	for i := 0; i < 5; i++ {
		require.NoError(t, hub.Publish(context.Background(), group, RoomRenamed{RoomName: string(rune('a' + i))}))
	}
	for i := 0; i < 5; i++ {
		p := nextEvent(t, c)
		assert.Equal(t, string(rune('a'+i)), p.(*RoomRenamed).RoomName)
	}
}

func TestClosedClientGetsNothing(t *testing.T) {
	hub := newTestHub(t)
	c := newTestClient(hub, "alice")

	c.Close()
	assert.ErrorIs(t, c.Push(map[string]string{"type": "display_name"}), ErrClientClosed)
	assert.ErrorIs(t, c.enqueue(Event{Kind: KindRefreshNotifications}), ErrClientClosed)
}

func TestSendErrorHidesInternalDetails(t *testing.T) {
	hub := newTestHub(t)
	c := newTestClient(hub, "alice")

	c.SendError(assert.AnError)

	var frame ErrorFrame
	require.NoError(t, json.Unmarshal(<-c.Send, &frame))
	assert.Equal(t, "error", frame.Type)
	assert.Equal(t, "INTERNAL", string(frame.Code))
	assert.Equal(t, "internal error", frame.Error)
}

func TestEventDecode(t *testing.T) {
	msgID, sender := uuid.New(), uuid.New()
	ev, err := NewEvent(NewMessage{MessageID: msgID, SenderID: sender})
	require.NoError(t, err)
	assert.Equal(t, KindNewMessage, ev.Kind)

	p, err := ev.Decode()
	require.NoError(t, err)
	assert.Equal(t, &NewMessage{MessageID: msgID, SenderID: sender}, p)

	_, err = Event{Kind: "bogus"}.Decode()
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand([]byte(`{"command":"send_message","filename":"abc"}`))
	require.NoError(t, err)
	assert.Equal(t, "send_message", cmd.Name)

	var body struct {
		Filename string `json:"filename"`
	}
	require.NoError(t, cmd.Bind(&body))
	assert.Equal(t, "abc", body.Filename)

	_, err = ParseCommand([]byte(`{"filename":"abc"}`))
	assert.ErrorIs(t, err, ErrInvalidMessage)
	_, err = ParseCommand([]byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidMessage)
}
