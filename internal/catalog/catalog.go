// Package catalog holds the services and characteristics discovered on the
// active peer, and resolves the receive and transmit roles.
package catalog

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cornelk/hashmap"
	"github.com/srg/rclink/internal/device"
)

// Role names what the link uses a characteristic for.
type Role int

const (
	RoleReceive Role = iota
	RoleTransmit
)

func (r Role) String() string {
	if r == RoleTransmit {
		return "transmit"
	}
	return "receive"
}

// Roles maps the two well-known characteristic UUIDs to their roles.
type Roles struct {
	Receive  string
	Transmit string
}

// RoleOf returns the role of a characteristic UUID.
func (r Roles) RoleOf(uuid string) (Role, bool) {
	switch {
	case device.SameUUID(uuid, r.Transmit):
		return RoleTransmit, true
	case device.SameUUID(uuid, r.Receive):
		return RoleReceive, true
	default:
		return 0, false
	}
}

// UUID returns the characteristic UUID configured for role.
func (r Roles) UUID(role Role) string {
	if role == RoleTransmit {
		return r.Transmit
	}
	return r.Receive
}

// Catalog stores the capability metadata of the connected peer.
//
// Writers are the session loop only; readers may be any goroutine. Lookups by
// UUID go through a lock-free index so the transmit path never waits on
// discovery bookkeeping.
type Catalog struct {
	roles Roles

	mu              sync.RWMutex
	services        []device.ServiceInfo
	characteristics []device.CharacteristicInfo

	index atomic.Pointer[hashmap.Map[string, device.CharacteristicInfo]]
}

// New creates an empty catalog resolving roles with the given mapping.
func New(roles Roles) *Catalog {
	c := &Catalog{roles: roles}
	c.index.Store(hashmap.New[string, device.CharacteristicInfo]())
	return c
}

// Roles returns the configured role mapping.
func (c *Catalog) Roles() Roles {
	return c.roles
}

// RecordService appends a discovered service.
func (c *Catalog) RecordService(svc device.ServiceInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services = append(c.services, svc)
}

// RecordCharacteristics appends characteristics in the given order.
func (c *Catalog) RecordCharacteristics(chars []device.CharacteristicInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.index.Load()
	for _, ch := range chars {
		c.characteristics = append(c.characteristics, ch)
		idx.Set(device.NormalizeUUID(ch.UUID), ch)
	}
}

// ClearCharacteristics drops characteristics but keeps recorded services.
func (c *Catalog) ClearCharacteristics() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.characteristics = nil
	c.index.Store(hashmap.New[string, device.CharacteristicInfo]())
}

// Clear drops everything.
func (c *Catalog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.services = nil
	c.characteristics = nil
	c.index.Store(hashmap.New[string, device.CharacteristicInfo]())
}

// Services returns a snapshot of recorded services.
func (c *Catalog) Services() []device.ServiceInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]device.ServiceInfo(nil), c.services...)
}

// Service returns the recorded service with the given UUID.
func (c *Catalog) Service(uuid string) (device.ServiceInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, s := range c.services {
		if device.SameUUID(s.UUID, uuid) {
			return s, nil
		}
	}
	return device.ServiceInfo{}, &device.NotFoundError{Resource: "service", UUIDs: []string{uuid}}
}

// Characteristics returns a snapshot of recorded characteristics in discovery order.
func (c *Catalog) Characteristics() []device.CharacteristicInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]device.CharacteristicInfo(nil), c.characteristics...)
}

// Characteristic looks a characteristic up by UUID.
func (c *Catalog) Characteristic(uuid string) (device.CharacteristicInfo, bool) {
	return c.index.Load().Get(device.NormalizeUUID(uuid))
}

// CharacteristicByRole returns the characteristic recorded for role.
func (c *Catalog) CharacteristicByRole(role Role) (device.CharacteristicInfo, bool) {
	return c.Characteristic(c.roles.UUID(role))
}

// SelectRoles filters chars down to those that play a role, in input order.
// It fails with ErrMissingCapability unless both roles are present.
func (c *Catalog) SelectRoles(chars []device.CharacteristicInfo) ([]device.CharacteristicInfo, error) {
	var selected []device.CharacteristicInfo
	found := map[Role]bool{}
	for _, ch := range chars {
		role, ok := c.roles.RoleOf(ch.UUID)
		if !ok || found[role] {
			continue
		}
		found[role] = true
		selected = append(selected, ch)
	}

	if len(selected) < 2 {
		var missing []string
		for _, role := range []Role{RoleReceive, RoleTransmit} {
			if !found[role] {
				missing = append(missing, role.String())
			}
		}
		return selected, fmt.Errorf("%w: missing %v characteristics", device.ErrMissingCapability, missing)
	}
	return selected, nil
}
