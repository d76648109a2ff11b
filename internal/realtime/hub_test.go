package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Skotchmaster/jewelry_shop/internal/domain"
	"github.com/Skotchmaster/jewelry_shop/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()

	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

func fakeClient(role string) *Client {
	return newClient(nil, domain.Actor{UserID: uuid.New(), Role: role}, nil)
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()

	select {
	case data, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		return data
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		return nil
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()

	select {
	case data := <-c.send:
		t.Fatalf("unexpected message %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_StaffJoinAdminRoom(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{AdminRoom}, fakeClient(domain.RoleAdmin).rooms[1:])
	assert.Len(t, fakeClient(domain.RoleStaff).rooms, 2)
	assert.Len(t, fakeClient(domain.RoleCustomer).rooms, 1)
}

func TestHub_MessageReachesOwnerAndStaffOnce(t *testing.T) {
	t.Parallel()
	h := startHub(t)

	customer := fakeClient(domain.RoleCustomer)
	admin := fakeClient(domain.RoleAdmin)
	bystander := fakeClient(domain.RoleCustomer)
	for _, c := range []*Client{customer, admin, bystander} {
		h.Register(c)
	}
	require.Eventually(t, func() bool { return h.Online() == 3 }, time.Second, 5*time.Millisecond)

	conv := &models.Conversation{ID: uuid.New(), UserID: customer.actor.UserID}
	msg := &models.Message{ID: uuid.New(), ConversationID: conv.ID, Content: "hello"}
	h.MessageAppended(context.Background(), conv, msg)

	for _, c := range []*Client{customer, admin} {
		var f Frame
		require.NoError(t, json.Unmarshal(receive(t, c), &f))
		assert.Equal(t, EventServerMessage, f.Event)

		var data serverMessage
		require.NoError(t, json.Unmarshal(f.Data, &data))
		assert.Equal(t, conv.ID, data.ConversationID)
		assert.Equal(t, "hello", data.Message.Content)
	}
	assertSilent(t, bystander)
}

func TestHub_DedupesAcrossRooms(t *testing.T) {
	t.Parallel()
	h := startHub(t)

	admin := fakeClient(domain.RoleAdmin)
	h.Register(admin)
	require.Eventually(t, func() bool { return h.Online() == 1 }, time.Second, 5*time.Millisecond)

	h.Publish(context.Background(), []string{admin.actor.UserID.String(), AdminRoom}, []byte(`{"event":"x"}`))

	assert.Equal(t, `{"event":"x"}`, string(receive(t, admin)))
	assertSilent(t, admin)
}

func TestHub_DropsSlowClient(t *testing.T) {
	t.Parallel()
	h := startHub(t)

	slow := fakeClient(domain.RoleCustomer)
	h.Register(slow)
	room := []string{slow.actor.UserID.String()}

	for i := 0; i < sendBuffer+1; i++ {
		h.Publish(context.Background(), room, []byte("x"))
	}
	require.Eventually(t, func() bool { return h.Online() == 0 }, time.Second, 5*time.Millisecond)

	n := 0
	for range slow.send {
		n++
	}
	assert.Equal(t, sendBuffer, n, "buffered messages drain, then the channel is closed")
	assert.False(t, slow.enqueue([]byte("late")))
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	t.Parallel()
	h := startHub(t)

	c := fakeClient(domain.RoleStaff)
	h.Register(c)
	h.Unregister(c)

	_, ok := <-c.send
	assert.False(t, ok)
	require.Eventually(t, func() bool { return h.Online() == 0 }, time.Second, 5*time.Millisecond)

	// a second unregister is harmless
	h.Unregister(c)
}
