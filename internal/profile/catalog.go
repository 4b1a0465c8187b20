package profile

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Catalog is the live, in-memory view of all profiles keyed by group and
// profile key. The automation engine reads it for recalculation and for
// resolving event payloads at publish time; the host mirrors saved profile
// edits into it via Put.
type Catalog struct {
	mu     sync.RWMutex
	groups map[string]map[string]*Profile
}

// NewCatalog returns an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{groups: make(map[string]map[string]*Profile)}
}

// Get retrieves a profile, reporting whether it exists
func (c *Catalog) Get(groupID, profileKey string) (*Profile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	profiles, ok := c.groups[groupID]
	if !ok {
		return nil, false
	}
	p, ok := profiles[profileKey]
	return p, ok
}

// Put inserts or replaces a profile
func (c *Catalog) Put(groupID, profileKey string, p *Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()

	profiles, ok := c.groups[groupID]
	if !ok {
		profiles = make(map[string]*Profile)
		c.groups[groupID] = profiles
	}
	profiles[profileKey] = p
}

// Remove deletes a profile if present
func (c *Catalog) Remove(groupID, profileKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if profiles, ok := c.groups[groupID]; ok {
		delete(profiles, profileKey)
		if len(profiles) == 0 {
			delete(c.groups, groupID)
		}
	}
}

// Len returns the total number of profiles across all groups
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, profiles := range c.groups {
		n += len(profiles)
	}
	return n
}

// catalogDocument is the persisted JSON shape:
// {"<groupId>": {"profiles": {"<profileKey>": {...}}}}
type catalogDocument map[string]struct {
	Profiles map[string]*Profile `json:"profiles"`
}

// LoadJSON replaces the catalog contents from a serialized document
func (c *Catalog) LoadJSON(data []byte) error {
	var doc catalogDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse profile catalog: %w", err)
	}

	groups := make(map[string]map[string]*Profile, len(doc))
	for groupID, group := range doc {
		profiles := make(map[string]*Profile, len(group.Profiles))
		for key, p := range group.Profiles {
			profiles[key] = p
		}
		groups[groupID] = profiles
	}

	c.mu.Lock()
	c.groups = groups
	c.mu.Unlock()
	return nil
}
