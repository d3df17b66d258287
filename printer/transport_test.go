package printer

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixxel-company-limited/escpos-feed-printer/adapter"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind("USB")
	require.NoError(t, err)
	assert.Equal(t, KindUSB, k)

	k, err = ParseKind("network")
	require.NoError(t, err)
	assert.Equal(t, KindNetwork, k)

	_, err = ParseKind("serial")
	assert.Error(t, err)
}

func TestParsePolicy(t *testing.T) {
	testCases := map[string]Policy{
		"":           PolicyAuto,
		"auto":       PolicyAuto,
		"per-job":    PolicyPerJob,
		"persistent": PolicyPersistent,
	}
	for in, want := range testCases {
		got, err := ParsePolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParsePolicy("sometimes")
	assert.Error(t, err)
}

func TestTransportPersistent(t *testing.T) {
	usb := Transport{Kind: KindUSB}
	net := Transport{Kind: KindNetwork, Host: "printer.local"}

	assert.False(t, usb.Persistent(PolicyAuto))
	assert.True(t, net.Persistent(PolicyAuto))
	assert.True(t, usb.Persistent(PolicyPersistent))
	assert.False(t, net.Persistent(PolicyPerJob))
}

func TestTransportAddress(t *testing.T) {
	assert.Equal(t, "printer.local:9100", Transport{Kind: KindNetwork, Host: "printer.local"}.Address())
	assert.Equal(t, "[fe80::1]:9100", Transport{Kind: KindNetwork, Host: "fe80::1"}.Address())
}

func TestTransportAdapter(t *testing.T) {
	a, err := Transport{Kind: KindNetwork, Host: "10.0.0.5"}.Adapter(zerolog.Nop())
	require.NoError(t, err)
	na, ok := a.(*adapter.NetworkAdapter)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.5:9100", na.Address())

	_, err = Transport{Kind: KindNetwork}.Adapter(zerolog.Nop())
	assert.Error(t, err)

	_, err = Transport{}.Adapter(zerolog.Nop())
	assert.Error(t, err)
}

func TestTransportString(t *testing.T) {
	assert.Equal(t, "usb://auto", Transport{Kind: KindUSB}.String())
	assert.Equal(t, "usb://04b8:0202", Transport{Kind: KindUSB, VendorID: 0x04b8, ProductID: 0x0202}.String())
	assert.Equal(t, "network://h:9100", Transport{Kind: KindNetwork, Host: "h"}.String())
}
