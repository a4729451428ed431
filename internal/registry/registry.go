// Package registry tracks known sensors, connected sessions and their tasks.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/beathard/internal/detection"
	"github.com/srg/beathard/internal/device"
	"github.com/srg/beathard/internal/discovery"
)

// DefaultResolveBudget bounds the targeted scan on a cache miss.
const DefaultResolveBudget = 10 * time.Second

// Finder locates one sensor by id.
type Finder interface {
	FindByID(ctx context.Context, id string, budget time.Duration) (discovery.Candidate, error)
}

// Task is a running session that can be cancelled.
type Task interface {
	Cancel()
}

// Record is a resolved sensor. Records are cached until Purge.
type Record struct {
	ID         string
	Name       string
	Limb       detection.Limb
	Peripheral device.Peripheral
}

// Connected describes a live session.
type Connected struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	CompetitorName string         `json:"competitor_name,omitempty"`
	Limb           detection.Limb `json:"limb_type"`
	LimbName       string         `json:"limb_name"`
	Battery        *uint8         `json:"battery,omitempty"`
	ConnectedAt    time.Time      `json:"connected_at"`
}

// Registry is safe for concurrent use. No lock is held across a scan.
type Registry struct {
	finder Finder
	budget time.Duration
	logger *logrus.Logger

	mu        sync.Mutex
	cache     map[string]Record
	connected map[string]*Connected
	tasks     map[string]Task
}

func New(finder Finder, budget time.Duration, logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	if budget <= 0 {
		budget = DefaultResolveBudget
	}
	return &Registry{
		finder:    finder,
		budget:    budget,
		logger:    logger,
		cache:     make(map[string]Record),
		connected: make(map[string]*Connected),
		tasks:     make(map[string]Task),
	}
}

// Resolve returns the cached record for id, or finds and caches it.
func (r *Registry) Resolve(ctx context.Context, id string) (Record, error) {
	r.mu.Lock()
	rec, ok := r.cache[id]
	r.mu.Unlock()

	log := r.logger.WithField("device_id", id)
	if ok {
		log.Info("Using cached device handle for fast reconnection")
		return rec, nil
	}

	log.WithField("budget", r.budget).Info("Device not cached, scanning")
	c, err := r.finder.FindByID(ctx, id, r.budget)
	if err != nil {
		return Record{}, fmt.Errorf("resolve %s: %w", id, err)
	}

	limb, known := detection.LimbFromName(c.Name)
	if !known {
		log.WithField("name", c.Name).Warn("No limb pattern in device name, assuming left hand")
	}

	rec = Record{ID: id, Name: c.Name, Limb: limb, Peripheral: c.Peripheral}

	r.mu.Lock()
	r.cache[id] = rec
	r.mu.Unlock()
	return rec, nil
}

// Cached reports whether id has a cached record.
func (r *Registry) Cached(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.cache[id]
	return ok
}

// Register adds id to the connected set, replacing any previous entry.
func (r *Registry) Register(id, name string, limb detection.Limb, competitorName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected[id] = &Connected{
		ID:             id,
		Name:           name,
		CompetitorName: competitorName,
		Limb:           limb,
		LimbName:       limb.DisplayName(),
		ConnectedAt:    time.Now(),
	}
}

// Unregister removes id from the connected set. It reports whether id was present.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.connected[id]
	delete(r.connected, id)
	return ok
}

// IsConnected reports whether id is in the connected set.
func (r *Registry) IsConnected(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.connected[id]
	return ok
}

// UpdateBattery records the last battery level reported by a connected sensor.
func (r *Registry) UpdateBattery(id string, pct uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.connected[id]; ok {
		c.Battery = &pct
	}
}

// ListConnected returns a snapshot sorted by id.
func (r *Registry) ListConnected() []Connected {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Connected, 0, len(r.connected))
	for _, c := range r.connected {
		cp := *c
		if c.Battery != nil {
			b := *c.Battery
			cp.Battery = &b
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AttachTask binds a session task to id. At most one task may be attached.
func (r *Registry) AttachTask(id string, t Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.tasks[id]; busy {
		return &device.ConnectionError{State: device.AlreadyConnected, Msg: id}
	}
	r.tasks[id] = t
	return nil
}

// DetachTask removes and returns the task attached to id, or nil.
func (r *Registry) DetachTask(id string) Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.tasks[id]
	delete(r.tasks, id)
	return t
}

// DetachTaskIf removes the task for id only if it is t. A session ending on its
// own uses this so it never detaches a newer session for the same device.
func (r *Registry) DetachTaskIf(id string, t Task) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.tasks[id]; ok && cur == t {
		delete(r.tasks, id)
		return true
	}
	return false
}

// HasTask reports whether a task is attached to id.
func (r *Registry) HasTask(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[id]
	return ok
}

// ActiveTasks returns the number of attached tasks.
func (r *Registry) ActiveTasks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// DrainTasks detaches and returns every task.
func (r *Registry) DrainTasks() map[string]Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.tasks
	r.tasks = make(map[string]Task)
	return out
}

// Purge clears the connected set, task map and device cache. It is the only
// operation that evicts cached records.
func (r *Registry) Purge() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]Record)
	r.connected = make(map[string]*Connected)
	r.tasks = make(map[string]Task)
	r.logger.Info("Device registry purged")
}
