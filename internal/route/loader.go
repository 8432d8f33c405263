package route

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"firestige.xyz/router/internal/core"
	"firestige.xyz/router/internal/core/header"
)

// Load reads a routing table file and returns the sorted table. Files ending
// in .yaml or .yml are decoded as YAML, anything else as the line format
// accepted by Parse.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open routing table %s: %w", path, err)
	}
	defer f.Close()

	var entries []Entry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		entries, err = ParseYAML(f)
	default:
		entries, err = Parse(f)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse routing table %s: %w", path, err)
	}
	return NewTable(entries), nil
}

// Parse reads one route per line in the form
//
//	prefix next_hop mask interface
//
// e.g. "192.168.0.0 192.168.0.2 255.255.255.0 0". Blank lines and lines
// starting with '#' are skipped.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 4 {
			return nil, fmt.Errorf("line %d: expected 4 fields, got %d: %w", lineNo, len(fields), core.ErrRouteMalformed)
		}
		iface, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid interface %q: %w", lineNo, fields[3], core.ErrRouteMalformed)
		}
		e, err := makeEntry(fields[0], fields[1], fields[2], iface)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// yamlRoute is one element of a YAML routing table.
type yamlRoute struct {
	Prefix    string `yaml:"prefix"`
	NextHop   string `yaml:"next_hop"`
	Mask      string `yaml:"mask"`
	Interface int    `yaml:"interface"`
}

// ParseYAML reads a YAML routing table:
//
//	routes:
//	  - {prefix: 10.0.0.0, next_hop: 10.0.0.1, mask: 255.255.255.0, interface: 1}
func ParseYAML(r io.Reader) ([]Entry, error) {
	var doc struct {
		Routes []yamlRoute `yaml:"routes"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, err
	}

	entries := make([]Entry, 0, len(doc.Routes))
	for i, yr := range doc.Routes {
		e, err := makeEntry(yr.Prefix, yr.NextHop, yr.Mask, yr.Interface)
		if err != nil {
			return nil, fmt.Errorf("route %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func makeEntry(prefix, nextHop, mask string, iface int) (Entry, error) {
	var e Entry
	var err error
	if e.Prefix, err = header.ParseAddr(prefix); err != nil {
		return e, fmt.Errorf("prefix: %v: %w", err, core.ErrRouteMalformed)
	}
	if e.NextHop, err = header.ParseAddr(nextHop); err != nil {
		return e, fmt.Errorf("next hop: %v: %w", err, core.ErrRouteMalformed)
	}
	if e.Mask, err = header.ParseAddr(mask); err != nil {
		return e, fmt.Errorf("mask: %v: %w", err, core.ErrRouteMalformed)
	}
	// Masks must be contiguous ones followed by zeros.
	if inv := ^e.Mask; inv&(inv+1) != 0 {
		return e, fmt.Errorf("non-contiguous mask %s: %w", mask, core.ErrRouteMalformed)
	}
	if !e.Valid() {
		return e, fmt.Errorf("prefix %s has bits outside mask %s: %w", prefix, mask, core.ErrRouteMalformed)
	}
	if iface < 0 {
		return e, fmt.Errorf("negative interface %d: %w", iface, core.ErrRouteMalformed)
	}
	e.Interface = iface
	return e, nil
}
