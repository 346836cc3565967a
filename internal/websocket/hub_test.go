package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func attach(hub *Hub, userID uuid.UUID) *Client {
	c := &Client{hub: hub, userID: userID, send: make(chan []byte, 4)}
	hub.register <- c
	return c
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestPushReachesEveryConnectionOfUser(t *testing.T) {
	hub := startHub(t)
	alice, bob := uuid.New(), uuid.New()

	tab1 := attach(hub, alice)
	tab2 := attach(hub, alice)
	other := attach(hub, bob)

	hub.PushToUser(alice, []byte(`{"type":"price_accepted"}`))

	assert.JSONEq(t, `{"type":"price_accepted"}`, string(receive(t, tab1)))
	assert.JSONEq(t, `{"type":"price_accepted"}`, string(receive(t, tab2)))

	select {
	case msg := <-other.send:
		t.Fatalf("unexpected message for other user: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnregisterClosesSend(t *testing.T) {
	hub := startHub(t)
	user := uuid.New()
	c := attach(hub, user)
	require.Eventually(t, func() bool { return hub.Connected() == 1 }, time.Second, 5*time.Millisecond)

	hub.unregister <- c

	select {
	case _, ok := <-c.send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
	assert.Eventually(t, func() bool { return hub.Connected() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSlowConsumerIsDropped(t *testing.T) {
	hub := startHub(t)
	user := uuid.New()
	c := &Client{hub: hub, userID: user, send: make(chan []byte)}
	hub.register <- c

	hub.PushToUser(user, []byte(`{}`))

	assert.Eventually(t, func() bool { return hub.Connected() == 0 }, time.Second, 5*time.Millisecond)
}

func TestPushWithoutConnectionsIsNoop(t *testing.T) {
	hub := startHub(t)
	hub.PushToUser(uuid.New(), []byte(`{}`))
	assert.Zero(t, hub.Connected())
}

func TestEnvelopeRoundTrip(t *testing.T) {
	user := uuid.New()
	raw, err := encodeEnvelope(user, []byte(`{"title":"Contrato listo"}`))
	require.NoError(t, err)

	env, err := decodeEnvelope(string(raw))
	require.NoError(t, err)
	assert.Equal(t, user, env.UserID)
	assert.JSONEq(t, `{"title":"Contrato listo"}`, string(env.Payload))

	_, err = encodeEnvelope(user, []byte("not json"))
	assert.Error(t, err)
	_, err = decodeEnvelope(`{"payload":{}}`)
	assert.Error(t, err)
	_, err = decodeEnvelope(`garbage`)
	assert.Error(t, err)
}
