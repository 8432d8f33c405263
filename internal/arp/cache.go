// Package arp holds the address-resolution cache filled from observed ARP
// replies.
package arp

// Entry maps a next-hop IPv4 address to its hardware address.
type Entry struct {
	IP  uint32
	MAC [6]byte
}

// Cache is an append-only list of resolutions. Entries never expire and are
// never replaced: a second reply for the same address adds a new entry which
// stays shadowed by the first. Not safe for concurrent use.
type Cache struct {
	entries []Entry
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Lookup returns the hardware address of the first entry for ip.
func (c *Cache) Lookup(ip uint32) ([6]byte, bool) {
	for i := range c.entries {
		if c.entries[i].IP == ip {
			return c.entries[i].MAC, true
		}
	}
	return [6]byte{}, false
}

// Insert appends a resolution.
func (c *Cache) Insert(ip uint32, mac [6]byte) {
	c.entries = append(c.entries, Entry{IP: ip, MAC: mac})
}

// Len returns the number of entries, duplicates included.
func (c *Cache) Len() int {
	return len(c.entries)
}
