package adapter

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixxel-company-limited/escpos-feed-printer/adapter/adaptertest"
)

func TestNetworkAdapterOpenWriteClose(t *testing.T) {
	sink := adaptertest.NewSink(t)
	adapter := NewNetworkAdapter(sink.Addr(), time.Second, zerolog.Nop())
	assert.Equal(t, sink.Addr(), adapter.Address())
	assert.False(t, adapter.IsOpen())

	require.NoError(t, adapter.Open())
	assert.True(t, adapter.IsOpen())

	err := adapter.Open()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already open")

	n, err := adapter.Write([]byte{0x1B, 0x40})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, adapter.Close())
	assert.False(t, adapter.IsOpen())
	assert.NoError(t, adapter.Close())

	assert.Eventually(t, func() bool {
		return string(sink.Received(0)) == "\x1b@"
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, sink.Connections())
}

func TestNetworkAdapterNotOpen(t *testing.T) {
	adapter := NewNetworkAdapter("127.0.0.1:9", time.Second, zerolog.Nop())

	_, err := adapter.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrNotOpen)

	_, err = adapter.Read(make([]byte, 4))
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestNetworkAdapterUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	adapter := NewNetworkAdapter(addr, time.Second, zerolog.Nop())
	assert.Error(t, adapter.Open())
	assert.False(t, adapter.IsOpen())
}

func TestOpenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mock := &adaptertest.MockAdapter{}
	err := OpenContext(ctx, mock)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, mock.IsOpen())

	sink := adaptertest.NewSink(t)
	network := NewNetworkAdapter(sink.Addr(), time.Second, zerolog.Nop())
	assert.Error(t, OpenContext(ctx, network))
	assert.False(t, network.IsOpen())
}
