package registry

import (
	"sync"

	"github.com/elC0mpa/ec2-concierge/model"
)

// Registry is the in-process cache of who owns what. The cloud's ownership
// tags are the durable record; Rebuild reconstructs this entire structure
// from them after a restart.
//
// Record pointers handed out by lookup methods may only be mutated while
// holding the per-resource lock for their id.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]*model.InstanceRecord
	volumes   map[string]*model.VolumeRecord

	locks lockTable
}
