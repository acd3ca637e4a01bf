package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIPAddress(t *testing.T) {
	for _, tc := range []struct {
		s     string
		value IPAddress
	}{
		{"0.0.0.0", 0x00000000},
		{"1.2.3.4", 0x01020304},
		{"127.0.0.1", 0x7f000001},
		{"254.253.252.251", 0xfefdfcfb},
		{"255.255.255.255", 0xffffffff},
	} {
		t.Run(tc.s, func(t *testing.T) {
			addr, err := ParseIPAddress(tc.s)
			require.NoError(t, err)
			assert.Equal(t, tc.value, addr)
			assert.Equal(t, tc.s, addr.String())
		})
	}
}

func TestParseIPAddress_Invalid(t *testing.T) {
	for _, s := range []string{
		"",
		".0.0.0.0",
		"0..0.0.0",
		"0.0.0",
		"0.0.0.",
		"0.0.0.0.",
		"0.0.0.0.0",
		"0.0.0.00",
		"0.0.0.01",
		"0.0.0.256",
		"00.0.0.0",
		"01.0.0.0",
		"256.0.0.0",
		"::1",
		"::ffff:1.2.3.4",
		"localhost",
	} {
		t.Run(s, func(t *testing.T) {
			_, err := ParseIPAddress(s)
			assert.ErrorIs(t, err, ErrInvalidAddress)
		})
	}
}

func TestIPAddress_Octets(t *testing.T) {
	addr := IPv4(254, 253, 252, 251)
	assert.Equal(t, IPAddress(0xfefdfcfb), addr)
	assert.Equal(t, [4]byte{254, 253, 252, 251}, addr.As4())
	assert.Equal(t, addr, IPAddressFrom4(addr.As4()))
}

func TestIPAddress_IsLoopback(t *testing.T) {
	for s, want := range map[string]bool{
		"127.0.0.1":       true,
		"127.1.1.1":       true,
		"127.1.0.0":       true,
		"127.255.255.255": true,
		"255.0.0.0":       false,
		"255.255.255.255": false,
		"128.1.0.0":       false,
		"192.168.1.1":     false,
		"10.0.0.1":        false,
	} {
		addr, err := ParseIPAddress(s)
		require.NoError(t, err)
		assert.Equal(t, want, addr.IsLoopback(), s)
	}
}

func TestIPAddress_IsPrivate(t *testing.T) {
	for s, want := range map[string]bool{
		// 10.0.0.0/8
		"10.0.0.0":        true,
		"10.0.0.1":        true,
		"10.0.0.255":      true,
		"10.255.255.255":  true,
		"11.0.0.255":      false,
		"9.0.0.0":         false,
		"138.0.0.1":       false,
		"255.255.255.255": false,
		// 172.16.0.0/12
		"172.16.0.255":   true,
		"172.17.0.0":     true,
		"172.19.1.1":     true,
		"172.31.255.255": true,
		"172.32.0.0":     false,
		"172.32.0.1":     false,
		"172.15.0.0":     false,
		"172.15.255.255": false,
		// 192.168.0.0/16
		"192.168.0.0":     true,
		"192.168.1.1":     true,
		"192.168.100.100": true,
		"192.168.255.255": true,
		"192.167.255.255": false,
		"191.168.255.255": false,
		"192.169.255.255": false,
		"192.169.0.0":     false,
	} {
		addr, err := ParseIPAddress(s)
		require.NoError(t, err)
		assert.Equal(t, want, addr.IsPrivate(), s)
	}
}
