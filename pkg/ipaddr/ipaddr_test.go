package ipaddr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Run("plain ipv4", func(t *testing.T) {
		ip := Normalize("203.0.113.7")
		require.NotNil(t, ip)
		assert.Equal(t, "203.0.113.7", ip.String())
	})

	t.Run("ipv4-mapped ipv6 collapses to ipv4", func(t *testing.T) {
		ip := Normalize("::ffff:203.0.113.7")
		require.NotNil(t, ip)
		assert.Equal(t, "203.0.113.7", ip.String())
	})

	t.Run("ipv6 loopback folds to ipv4 loopback", func(t *testing.T) {
		ip := Normalize("::1")
		require.NotNil(t, ip)
		assert.Equal(t, "127.0.0.1", ip.String())
	})

	t.Run("plain ipv6 preserved", func(t *testing.T) {
		ip := Normalize("2001:db8::1")
		require.NotNil(t, ip)
		assert.Equal(t, "2001:db8::1", ip.String())
	})

	t.Run("garbage returns nil", func(t *testing.T) {
		assert.Nil(t, Normalize("not-an-ip"))
		assert.Nil(t, Normalize(""))
	})
}

func TestMask(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ipv4 zeroes last octet", "198.51.100.23", "198.51.100.0"},
		{"ipv4 already on boundary", "198.51.100.0", "198.51.100.0"},
		{"ipv6 keeps 48-bit prefix", "2001:db8:abcd:12:34:56:78:9a", "2001:db8:abcd::"},
		{"ipv4-mapped masked as ipv4", "::ffff:198.51.100.23", "198.51.100.0"},
		{"unparseable yields empty", "bogus", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Mask(tt.in))
		})
	}
}
