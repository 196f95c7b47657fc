// Package registry keeps the deduplicated, address-keyed list of discovered peers.
package registry

import (
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/srg/rclink/internal/device"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ChangeFunc is invoked after every mutation with the new peer count.
type ChangeFunc func(count int)

// Registry holds discovered peers in first-seen order. Rediscovery of an
// address replaces its descriptor without moving it. Thread-safe.
type Registry struct {
	mu       sync.RWMutex
	peers    *orderedmap.OrderedMap[string, device.Peer]
	onChange ChangeFunc
	logger   *logrus.Logger
}

// New creates an empty registry. onChange may be nil.
func New(logger *logrus.Logger, onChange ChangeFunc) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	return &Registry{
		peers:    orderedmap.New[string, device.Peer](),
		onChange: onChange,
		logger:   logger,
	}
}

// Upsert appends a new peer or replaces the existing entry with the same address in place.
// It reports whether the address was already known.
func (r *Registry) Upsert(peer device.Peer) bool {
	r.mu.Lock()
	_, existed := r.peers.Set(peer.Address, peer)
	count := r.peers.Len()
	r.mu.Unlock()

	if !existed {
		r.logger.WithFields(logrus.Fields{
			"address": peer.Address,
			"name":    peer.Name,
			"rssi":    peer.RSSI,
		}).Info("Discovered new peer")
	}

	r.changed(count)
	return existed
}

// Clear removes every peer and fires a change notification.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.peers = orderedmap.New[string, device.Peer]()
	r.mu.Unlock()

	r.changed(0)
}

// Find returns the peer registered under address.
func (r *Registry) Find(address string) (device.Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.peers.Get(address)
}

// List returns a snapshot of all peers in first-seen order.
func (r *Registry) List() []device.Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]device.Peer, 0, r.peers.Len())
	for pair := r.peers.Oldest(); pair != nil; pair = pair.Next() {
		result = append(result, pair.Value)
	}
	return result
}

// Len returns the number of registered peers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.peers.Len()
}

func (r *Registry) changed(count int) {
	if r.onChange != nil {
		r.onChange(count)
	}
}
