package arp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheLookupMiss(t *testing.T) {
	c := NewCache()
	_, ok := c.Lookup(0x0A000001)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCacheInsertLookup(t *testing.T) {
	c := NewCache()
	macA := [6]byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}
	macB := [6]byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x02}

	c.Insert(0x0A000001, macA)
	c.Insert(0x0A000002, macB)

	mac, ok := c.Lookup(0x0A000002)
	require.True(t, ok)
	assert.Equal(t, macB, mac)

	mac, ok = c.Lookup(0x0A000001)
	require.True(t, ok)
	assert.Equal(t, macA, mac)
}

func TestCacheDuplicateIsShadowed(t *testing.T) {
	c := NewCache()
	macA := [6]byte{0x02, 0, 0, 0, 0, 0xA}
	macB := [6]byte{0x02, 0, 0, 0, 0, 0xB}

	c.Insert(0x0A000001, macA)
	c.Insert(0x0A000001, macB)

	assert.Equal(t, 2, c.Len())
	mac, ok := c.Lookup(0x0A000001)
	require.True(t, ok)
	assert.Equal(t, macA, mac)
}
