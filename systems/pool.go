package systems

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/tracer/components"
)

// Spawner initialises a freshly emitted particle. All components arrive
// zeroed except Life.Slot, which the pool owns.
type Spawner func(m *components.Motion, l *components.Life, look *components.Look, tr *components.Trace)

// ParticlePool is a fixed-capacity set of particle entities. Entities are
// created lazily up to capacity and never removed; retired particles are
// marked inactive and their slots recycled.
type ParticlePool struct {
	world    *ecs.World
	mapper   *ecs.Map4[components.Motion, components.Life, components.Look, components.Trace]
	filter   *ecs.Filter4[components.Motion, components.Life, components.Look, components.Trace]
	capacity int

	slots  []ecs.Entity // slot -> entity
	free   []int32      // stack of inactive slots
	active int
}

// NewParticlePool creates an empty pool that will hold at most capacity particles.
func NewParticlePool(capacity int) *ParticlePool {
	world := ecs.NewWorld()
	return &ParticlePool{
		world:    world,
		mapper:   ecs.NewMap4[components.Motion, components.Life, components.Look, components.Trace](world),
		filter:   ecs.NewFilter4[components.Motion, components.Life, components.Look, components.Trace](world),
		capacity: capacity,
		slots:    make([]ecs.Entity, 0, capacity),
	}
}

// Capacity returns the fixed maximum number of particles.
func (p *ParticlePool) Capacity() int { return p.capacity }

// Count returns the number of entities allocated so far (active or not).
func (p *ParticlePool) Count() int { return len(p.slots) }

// Active returns the number of live particles.
func (p *ParticlePool) Active() int { return p.active }

// Emit spawns up to n particles, reusing inactive slots before allocating new
// ones. It returns how many were spawned; the rest are dropped once the pool
// is full.
func (p *ParticlePool) Emit(n int, spawn Spawner) int {
	spawned := 0
	for ; spawned < n; spawned++ {
		if k := len(p.free); k > 0 {
			slot := p.free[k-1]
			p.free = p.free[:k-1]
			m, l, look, tr := p.mapper.Get(p.slots[slot])
			*m, *l, *look, *tr = components.Motion{}, components.Life{}, components.Look{}, components.Trace{}
			p.init(slot, m, l, look, tr, spawn)
			continue
		}
		if len(p.slots) >= p.capacity {
			break
		}
		slot := int32(len(p.slots))
		var (
			m    components.Motion
			l    components.Life
			look components.Look
			tr   components.Trace
		)
		p.init(slot, &m, &l, &look, &tr, spawn)
		p.slots = append(p.slots, p.mapper.NewEntity(&m, &l, &look, &tr))
	}
	return spawned
}

func (p *ParticlePool) init(slot int32, m *components.Motion, l *components.Life, look *components.Look, tr *components.Trace, spawn Spawner) {
	tr.Index = components.NoTarget
	spawn(m, l, look, tr)
	l.Slot = slot
	l.Active = true
	p.active++
}

// retire marks the particle inactive and queues its slot for reuse.
func (p *ParticlePool) retire(l *components.Life) {
	l.Active = false
	p.free = append(p.free, l.Slot)
	p.active--
}

// Each calls fn for every active particle. fn must not emit into the pool.
func (p *ParticlePool) Each(fn func(m *components.Motion, l *components.Life, look *components.Look, tr *components.Trace)) {
	q := p.filter.Query()
	for q.Next() {
		m, l, look, tr := q.Get()
		if l.Active {
			fn(m, l, look, tr)
		}
	}
}
