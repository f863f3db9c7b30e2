// Package robotstate keeps the latest snapshot of every robot: in memory,
// written through to Redis on each update, and persisted to SQL at most
// once per interval per robot.
package robotstate

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/Tractonomy/free-fleet-ros2/store"
)

// Cache is the fast snapshot store. *RedisStore implements it.
type Cache interface {
	Put(ctx context.Context, s *Snapshot) error
	Get(ctx context.Context, name string) (*Snapshot, error)
	Names(ctx context.Context) ([]string, error)
	Flush(ctx context.Context) error
}

type Manager struct {
	mu           sync.Mutex
	db           *store.DB
	cache        Cache
	fleet        string
	persistEvery time.Duration
	now          func() time.Time

	snapshots   map[string]*Snapshot
	lastPersist map[string]time.Time
	cacheDown   bool
}

func NewManager(db *store.DB, cache Cache, fleet string, persistEvery time.Duration) *Manager {
	return &Manager{
		db:           db,
		cache:        cache,
		fleet:        fleet,
		persistEvery: persistEvery,
		now:          time.Now,
		snapshots:    make(map[string]*Snapshot),
		lastPersist:  make(map[string]time.Time),
	}
}

// Update applies fn to the robot's snapshot, creating it if needed, and
// writes the result through.
func (m *Manager) Update(name string, fn func(*Snapshot)) {
	m.update(name, false, fn)
}

// UpdateAndPersist is Update without the SQL throttle, for changes that
// must survive a restart.
func (m *Manager) UpdateAndPersist(name string, fn func(*Snapshot)) {
	m.update(name, true, fn)
}

func (m *Manager) update(name string, force bool, fn func(*Snapshot)) {
	m.mu.Lock()
	s, ok := m.snapshots[name]
	if !ok {
		s = &Snapshot{Name: name, Fleet: m.fleet, Waypoint: -1}
		m.snapshots[name] = s
	}
	fn(s)
	now := m.now()
	s.UpdatedAt = now
	snap := s.clone()
	persist := force || now.Sub(m.lastPersist[name]) >= m.persistEvery
	if persist {
		m.lastPersist[name] = now
	}
	m.mu.Unlock()

	m.writeCache(snap)
	if persist && m.db != nil {
		if err := m.db.UpsertRobot(toRow(snap)); err != nil {
			log.Printf("robotstate: persist %s: %v", name, err)
		}
	}
}

func (m *Manager) writeCache(s *Snapshot) {
	if m.cache == nil {
		return
	}
	err := m.cache.Put(context.Background(), s)
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case err != nil && !m.cacheDown:
		log.Printf("robotstate: cache write failed, continuing without cache: %v", err)
		m.cacheDown = true
	case err == nil && m.cacheDown:
		log.Printf("robotstate: cache write recovered")
		m.cacheDown = false
	}
}

// Get returns the robot's snapshot from memory, then the cache, then SQL.
func (m *Manager) Get(name string) (*Snapshot, bool) {
	m.mu.Lock()
	if s, ok := m.snapshots[name]; ok {
		c := s.clone()
		m.mu.Unlock()
		return c, true
	}
	m.mu.Unlock()

	if m.cache != nil {
		if s, err := m.cache.Get(context.Background(), name); err == nil && s != nil {
			return s, true
		}
	}
	if m.db != nil {
		if r, err := m.db.GetRobot(name); err == nil && r.Fleet == m.fleet {
			return fromRow(r), true
		}
	}
	return nil, false
}

// List returns all in-memory snapshots sorted by name.
func (m *Manager) List() []*Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Snapshot, 0, len(m.snapshots))
	for _, s := range m.snapshots {
		out = append(out, s.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SyncFromSQL rebuilds memory and the cache from SQL. Called on startup.
func (m *Manager) SyncFromSQL() error {
	if m.db == nil {
		return nil
	}
	ctx := context.Background()
	if m.cache != nil {
		if err := m.cache.Flush(ctx); err != nil {
			log.Printf("robotstate: flush cache: %v", err)
		}
	}
	rows, err := m.db.ListRobots(m.fleet)
	if err != nil {
		return err
	}
	m.mu.Lock()
	for _, r := range rows {
		m.snapshots[r.Name] = fromRow(r)
	}
	m.mu.Unlock()
	for _, r := range rows {
		m.writeCache(fromRow(r))
	}
	log.Printf("robotstate: synced %d robots from SQL", len(rows))
	return nil
}

func toRow(s *Snapshot) *store.Robot {
	return &store.Robot{
		Name:       s.Name,
		Fleet:      s.Fleet,
		Model:      s.Model,
		MapName:    s.Map,
		X:          s.X,
		Y:          s.Y,
		Yaw:        s.Yaw,
		BatterySOC: s.BatterySOC,
		Mode:       s.Mode,
		CommandID:  s.CommandID,
		Waypoint:   s.Waypoint,
		Placed:     s.Placed,
	}
}

func fromRow(r *store.Robot) *Snapshot {
	return &Snapshot{
		Name:       r.Name,
		Fleet:      r.Fleet,
		Model:      r.Model,
		Map:        r.MapName,
		X:          r.X,
		Y:          r.Y,
		Yaw:        r.Yaw,
		BatterySOC: r.BatterySOC,
		Mode:       r.Mode,
		CommandID:  r.CommandID,
		Waypoint:   r.Waypoint,
		Placed:     r.Placed,
		UpdatedAt:  r.UpdatedAt,
	}
}
