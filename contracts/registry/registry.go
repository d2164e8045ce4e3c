// Package registry mirrors the on-chain name registry the resolver consults:
// name -> (owner, expiry). The production deployment reads the contract; the
// static implementation here is seedable for development and tests and keeps
// the record shape identical either way.
package registry

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Record is one registry entry.
type Record struct {
	Name   string         `json:"name"`
	Owner  common.Address `json:"owner"`
	Expiry time.Time      `json:"expiry"`
}

// Expired reports whether the registration has lapsed. A zero expiry means
// no expiry.
func (r Record) Expired(now time.Time) bool {
	return !r.Expiry.IsZero() && r.Expiry.Before(now)
}

// Static is an in-memory registry keyed case-insensitively by name.
type Static struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewStatic builds an empty registry.
func NewStatic() *Static {
	return &Static{records: make(map[string]Record)}
}

// Register adds or replaces a record.
func (s *Static) Register(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[strings.ToLower(rec.Name)] = rec
}

// Lookup returns the record for name, ok=false when unregistered.
func (s *Static) Lookup(name string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[strings.ToLower(name)]
	return rec, ok
}

// seedEntry is the JSON seed-file shape: addresses as hex strings, expiry
// optional RFC 3339.
type seedEntry struct {
	Name   string `json:"name"`
	Owner  string `json:"owner"`
	Expiry string `json:"expiry,omitempty"`
}

// LoadSeed populates the registry from a JSON array of {name, owner, expiry}.
func (s *Static) LoadSeed(r io.Reader) error {
	var entries []seedEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return fmt.Errorf("decode registry seed: %w", err)
	}
	for _, e := range entries {
		if e.Name == "" {
			return fmt.Errorf("registry seed entry missing name")
		}
		if !common.IsHexAddress(e.Owner) {
			return fmt.Errorf("registry seed entry %q: invalid owner address %q", e.Name, e.Owner)
		}
		rec := Record{Name: e.Name, Owner: common.HexToAddress(e.Owner)}
		if e.Expiry != "" {
			expiry, err := time.Parse(time.RFC3339, e.Expiry)
			if err != nil {
				return fmt.Errorf("registry seed entry %q: invalid expiry: %w", e.Name, err)
			}
			rec.Expiry = expiry
		}
		s.Register(rec)
	}
	return nil
}
