package game

import (
	"sync"
)

// Binding — привязка соединения к комнате
type Binding struct {
	Code     string
	UserID   uint
	Username string
}

// Registry отслеживает, в какой комнате находится каждое соединение.
// Инвариант: одно соединение состоит не более чем в одной комнате.
type Registry struct {
	mu       sync.RWMutex
	bindings map[string]Binding // connID -> binding
}

// NewRegistry создает пустой реестр соединений
func NewRegistry() *Registry {
	return &Registry{
		bindings: make(map[string]Binding),
	}
}

// Bind привязывает соединение к комнате. Возвращает ErrAlreadyJoined,
// если соединение уже состоит в какой-либо комнате.
func (r *Registry) Bind(connID string, binding Binding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bindings[connID]; ok {
		return ErrAlreadyJoined
	}
	r.bindings[connID] = binding
	return nil
}

// Resolve возвращает привязку соединения
func (r *Registry) Resolve(connID string) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	binding, ok := r.bindings[connID]
	return binding, ok
}

// Unbind снимает привязку соединения. Идемпотентна.
func (r *Registry) Unbind(connID string) (Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	binding, ok := r.bindings[connID]
	if ok {
		delete(r.bindings, connID)
	}
	return binding, ok
}

// Count возвращает число привязанных соединений
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings)
}
