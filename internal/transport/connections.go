package transport

import (
	"sync"

	"github.com/pkg/errors"
)

var ErrServerFull = errors.New("SERVER_FULL: every seat is taken")

// ConnectionManager maps live connections to the fixed player slots of a
// session.
type ConnectionManager struct {
	capacity    int
	connections map[string]*Conn // connectionID → connection
	slots       map[string]int   // connectionID → slot
	bySlot      map[int]string   // slot → connectionID
	mu          sync.RWMutex
}

func NewConnectionManager(capacity int) *ConnectionManager {
	return &ConnectionManager{
		capacity:    capacity,
		connections: make(map[string]*Conn),
		slots:       make(map[string]int),
		bySlot:      make(map[int]string),
	}
}

// AddConnection registers conn under the lowest free slot.
func (cm *ConnectionManager) AddConnection(conn *Conn) (int, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for slot := 0; slot < cm.capacity; slot++ {
		if _, taken := cm.bySlot[slot]; taken {
			continue
		}
		cm.connections[conn.ID()] = conn
		cm.slots[conn.ID()] = slot
		cm.bySlot[slot] = conn.ID()
		return slot, nil
	}
	return -1, ErrServerFull
}

// RemoveConnection frees the connection's slot and returns it.
func (cm *ConnectionManager) RemoveConnection(id string) (int, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	slot, ok := cm.slots[id]
	if !ok {
		return -1, false
	}
	delete(cm.connections, id)
	delete(cm.slots, id)
	delete(cm.bySlot, slot)
	return slot, true
}

// GetConnectionBySlot returns the connection holding slot, or nil.
func (cm *ConnectionManager) GetConnectionBySlot(slot int) *Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	id, ok := cm.bySlot[slot]
	if !ok {
		return nil
	}
	return cm.connections[id]
}

func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

// All returns a snapshot of the live connections.
func (cm *ConnectionManager) All() []*Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	out := make([]*Conn, 0, len(cm.connections))
	for _, c := range cm.connections {
		out = append(out, c)
	}
	return out
}
