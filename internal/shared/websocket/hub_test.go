package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(hub *Hub, id, auctionID string, buffer int) *Client {
	return &Client{
		Hub:       hub,
		Send:      make(chan []byte, buffer),
		ID:        id,
		AuctionID: auctionID,
	}
}

func recv(t *testing.T, ch chan []byte) []byte {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "channel closed before a message arrived")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestHub_SnapshotOnRegister(t *testing.T) {
	hub := NewHub()
	hub.SetSnapshotProvider(func(auctionID string) ([]byte, error) {
		return []byte(`{"auction":"` + auctionID + `"}`), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := newTestClient(hub, "c1", "auction-1", sendBufferSize)
	hub.RegisterClient(client)

	// The snapshot is the first message a new subscriber sees, with no
	// bid required to trigger it.
	require.JSONEq(t, `{"auction":"auction-1"}`, string(recv(t, client.Send)))

	hub.BroadcastToAuction("auction-1", []byte(`{"seq":1}`))
	require.JSONEq(t, `{"seq":1}`, string(recv(t, client.Send)))
}

func TestHub_SlowClientDroppedWithoutStallingPeers(t *testing.T) {
	hub := NewHub()
	hub.SetSnapshotProvider(func(string) ([]byte, error) {
		return []byte(`{"snapshot":true}`), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	slow := newTestClient(hub, "slow", "auction-1", 1)
	healthy := newTestClient(hub, "healthy", "auction-1", sendBufferSize)
	hub.RegisterClient(slow)
	hub.RegisterClient(healthy)

	// Snapshot receipt doubles as the registration barrier.
	recv(t, slow.Send)
	recv(t, healthy.Send)

	// Saturate the slow client's buffer so the next delivery cannot land.
	slow.Send <- []byte(`{"filler":true}`)

	hub.BroadcastToAuction("auction-1", []byte(`{"seq":1}`))

	// The healthy peer gets the broadcast regardless of the slow one.
	require.JSONEq(t, `{"seq":1}`, string(recv(t, healthy.Send)))

	// The slow client is dropped: its channel closes after the filler.
	require.JSONEq(t, `{"filler":true}`, string(recv(t, slow.Send)))
	select {
	case _, ok := <-slow.Send:
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("slow client was not dropped")
	}

	// Later broadcasts still reach the healthy peer.
	hub.BroadcastToAuction("auction-1", []byte(`{"seq":2}`))
	require.JSONEq(t, `{"seq":2}`, string(recv(t, healthy.Send)))
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := NewHub()
	hub.SetSnapshotProvider(func(string) ([]byte, error) {
		return []byte(`{}`), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := newTestClient(hub, "c1", "auction-1", sendBufferSize)
	hub.RegisterClient(client)
	recv(t, client.Send)

	hub.UnregisterClient(client)
	select {
	case _, ok := <-client.Send:
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("send channel was not closed on unregister")
	}

	// Broadcasting to the now-empty group is a no-op, not a panic.
	hub.BroadcastToAuction("auction-1", []byte(`{"seq":1}`))
}
