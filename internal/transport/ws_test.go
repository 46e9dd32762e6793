package transport

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubRoutesPacketsBetweenBuses(t *testing.T) {
	hub, err := NewHub(2)
	require.NoError(t, err)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	a, err := DialWS(url, 0, 2)
	require.NoError(t, err)
	defer a.Finalize()
	b, err := DialWS(url, 1, 2)
	require.NoError(t, err)
	defer b.Finalize()

	ab, err := a.Channel(1, TagChild2Parent)
	require.NoError(t, err)
	ba, err := b.Channel(0, TagChild2Parent)
	require.NoError(t, err)

	ok, err := ab.TrySend(Packet{Positions: []float64{1, 2}, Fitness: []float64{3}, Status: 1})
	require.NoError(t, err)
	require.True(t, ok)

	pkt, err := ba.Recv()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, pkt.Positions)
	assert.Equal(t, []float64{3}, pkt.Fitness)
	assert.Equal(t, 1, pkt.Status)
}

func TestWSChannelCoalescesToNewest(t *testing.T) {
	hub, err := NewHub(2)
	require.NoError(t, err)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	a, err := DialWS(url, 0, 2)
	require.NoError(t, err)
	defer a.Finalize()
	b, err := DialWS(url, 1, 2)
	require.NoError(t, err)
	defer b.Finalize()

	ab, err := a.Channel(1, TagParent2Child)
	require.NoError(t, err)
	ba, err := b.Channel(0, TagParent2Child)
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		require.NoError(t, ab.Send(Packet{Status: i}))
	}

	// Wait until the last frame has crossed the hub.
	deadline := time.Now().Add(2 * time.Second)
	var last Packet
	for time.Now().Before(deadline) {
		pkt, got, err := ba.TryRecvLatest()
		require.NoError(t, err)
		if got {
			last = pkt
		}
		if last.Status == 5 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 5, last.Status)
}

func TestHubValidation(t *testing.T) {
	_, err := NewHub(0)
	assert.Error(t, err)

	hub, err := NewHub(1)
	require.NoError(t, err)
	assert.NotEmpty(t, hub.Session())
	assert.Equal(t, 1, hub.Size())

	_, err = DialWS("ws://127.0.0.1:1/ws", 5, 2)
	assert.Error(t, err)
}
