// Package torrentreg tracks which torrents are currently supported and
// active locally. The dispatch core consults it before touching any
// message for a torrent (spec.md §3): an info hash absent from the
// registry is treated as inactive, never as an error.
package torrentreg

import (
	"sync"

	"github.com/torrentkit/peercore/core"
)

// Registry is a concurrency-safe set of active torrent info hashes.
type Registry struct {
	active sync.Map // core.InfoHash -> struct{}
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{}
}

// Add marks h as supported and active.
func (r *Registry) Add(h core.InfoHash) {
	r.active.Store(h, struct{}{})
}

// Remove marks h as no longer supported or active.
func (r *Registry) Remove(h core.InfoHash) {
	r.active.Delete(h)
}

// IsSupportedAndActive reports whether h is currently registered.
func (r *Registry) IsSupportedAndActive(h core.InfoHash) bool {
	_, ok := r.active.Load(h)
	return ok
}
