package item

import (
	"sync"
	"sync/atomic"
)

const (
	GravityGunID = "gravityguns:gravity_gun"
	powerTag     = "power"
)

var nextStackID atomic.Int64

// ItemStack is a single held item with its tag data.
type ItemStack struct {
	Item string

	mu  sync.RWMutex
	id  int64
	tag map[string]any
}

func NewStack(item string) *ItemStack {
	return &ItemStack{Item: item}
}

func NewGravityGun(power float64) *ItemStack {
	s := NewStack(GravityGunID)
	s.SetPower(power)
	return s
}

// ID returns the stack's animation id, assigning one on first use.
func (s *ItemStack) ID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == 0 {
		s.id = nextStackID.Add(1)
	}
	return s.id
}

// Power is the lifting power stored in the stack tag; 0 when absent.
func (s *ItemStack) Power() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch v := s.tag[powerTag].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func (s *ItemStack) SetPower(power float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tag == nil {
		s.tag = make(map[string]any)
	}
	s.tag[powerTag] = power
}

func (s *ItemStack) Tag(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.tag[key]
	return v, ok
}
