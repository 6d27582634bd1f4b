// Package behaviour runs per-frame scripts against the scene and camera.
package behaviour

// Behaviour is started once, before its first update, then updated every
// frame with the elapsed time in seconds.
type Behaviour interface {
	Start()
	Update(deltaTime float64)
}

type entry struct {
	behaviour Behaviour
	started   bool
}

// Manager updates behaviours in the order they were added.
type Manager struct {
	entries []entry
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) Add(b Behaviour) {
	m.entries = append(m.entries, entry{behaviour: b})
}

// Remove drops b, keeping the order of the others.
func (m *Manager) Remove(b Behaviour) {
	for i := range m.entries {
		if m.entries[i].behaviour == b {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return
		}
	}
}

func (m *Manager) Clear() {
	m.entries = m.entries[:0]
}

func (m *Manager) Len() int { return len(m.entries) }

func (m *Manager) UpdateAll(deltaTime float64) {
	for i := range m.entries {
		e := &m.entries[i]
		if !e.started {
			e.behaviour.Start()
			e.started = true
		}
		e.behaviour.Update(deltaTime)
	}
}
