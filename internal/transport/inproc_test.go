package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pair(t *testing.T) (PeerChannel, PeerChannel) {
	t.Helper()
	net, err := NewNetwork(2)
	require.NoError(t, err)
	a, err := net.Bus(0)
	require.NoError(t, err)
	b, err := net.Bus(1)
	require.NoError(t, err)
	ab, err := a.Channel(1, TagChild2Parent)
	require.NoError(t, err)
	ba, err := b.Channel(0, TagChild2Parent)
	require.NoError(t, err)
	return ab, ba
}

func TestTrySendSkipsWhileInFlight(t *testing.T) {
	sender, receiver := pair(t)

	ok, err := sender.TrySend(Packet{Status: 1})
	require.NoError(t, err)
	assert.True(t, ok)

	// The previous send has not been consumed yet.
	ok, err = sender.TrySend(Packet{Status: 2})
	require.NoError(t, err)
	assert.False(t, ok)

	pkt, got, err := receiver.TryRecvLatest()
	require.NoError(t, err)
	require.True(t, got)
	assert.Equal(t, 1, pkt.Status)

	ok, err = sender.TrySend(Packet{Status: 3})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTryRecvLatestKeepsNewest(t *testing.T) {
	sender, receiver := pair(t)

	require.NoError(t, sender.Send(Packet{Status: 1}))
	pkt, got, err := receiver.TryRecvLatest()
	require.NoError(t, err)
	require.True(t, got)
	first := pkt.Seq

	require.NoError(t, sender.Send(Packet{Status: 2}))
	require.NoError(t, sender.Send(Packet{Status: 3}))

	pkt, got, err = receiver.TryRecvLatest()
	require.NoError(t, err)
	require.True(t, got)
	assert.Equal(t, 3, pkt.Status)
	assert.Greater(t, pkt.Seq, first)

	_, got, err = receiver.TryRecvLatest()
	require.NoError(t, err)
	assert.False(t, got)
}

func TestSequenceNumbersGrowWithEachDelivery(t *testing.T) {
	sender, receiver := pair(t)

	var last uint64
	for i := 1; i <= 5; i++ {
		require.NoError(t, sender.Send(Packet{Status: i}))
		pkt, got, err := receiver.TryRecvLatest()
		require.NoError(t, err)
		require.True(t, got)
		assert.Greater(t, pkt.Seq, last, "the newest read must carry the largest send index")
		last = pkt.Seq
	}
}

func TestSkippedTrySendDoesNotConsumeSequence(t *testing.T) {
	sender, receiver := pair(t)

	ok, err := sender.TrySend(Packet{Status: 1})
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = sender.TrySend(Packet{Status: 2})
	require.NoError(t, err)
	require.False(t, ok)

	pkt, got, err := receiver.TryRecvLatest()
	require.NoError(t, err)
	require.True(t, got)
	assert.Equal(t, uint64(1), pkt.Seq)

	require.NoError(t, sender.Send(Packet{Status: 3}))
	pkt, got, err = receiver.TryRecvLatest()
	require.NoError(t, err)
	require.True(t, got)
	assert.Equal(t, uint64(2), pkt.Seq)
}

func TestWaitDrainReturnsAfterConsumption(t *testing.T) {
	sender, receiver := pair(t)

	require.NoError(t, sender.Send(Packet{Status: 1}))
	done := make(chan struct{})
	go func() {
		_ = sender.WaitDrain()
		close(done)
	}()
	_, got, err := receiver.TryRecvLatest()
	require.NoError(t, err)
	require.True(t, got)
	<-done
}

func TestBlockingRecvDeliversInOrder(t *testing.T) {
	sender, receiver := pair(t)

	go func() {
		_ = sender.Send(Packet{Status: 10})
	}()
	pkt, err := receiver.Recv()
	require.NoError(t, err)
	assert.Equal(t, 10, pkt.Status)
}

func TestChannelsAreDistinctPerTag(t *testing.T) {
	net, err := NewNetwork(2)
	require.NoError(t, err)
	a, err := net.Bus(0)
	require.NoError(t, err)
	b, err := net.Bus(1)
	require.NoError(t, err)

	aStartup, err := a.Channel(1, TagStartup)
	require.NoError(t, err)
	bData, err := b.Channel(0, TagChild2Parent)
	require.NoError(t, err)

	require.NoError(t, aStartup.Send(Packet{Status: 1}))
	_, got, err := bData.TryRecvLatest()
	require.NoError(t, err)
	assert.False(t, got, "a startup packet must not surface on the data tag")
}

func TestBusValidation(t *testing.T) {
	net, err := NewNetwork(2)
	require.NoError(t, err)
	_, err = net.Bus(5)
	assert.Error(t, err)

	a, err := net.Bus(0)
	require.NoError(t, err)
	_, err = a.Channel(0, TagStartup)
	assert.Error(t, err, "a bus cannot open a channel to itself")
	_, err = a.Channel(9, TagStartup)
	assert.Error(t, err)
}
