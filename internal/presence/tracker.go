// Package presence связывает живое соединение с (комната, участник).
package presence

import "sync"

type Session struct {
	Room string
	UID  string
}

type Tracker struct {
	mu    sync.RWMutex
	conns map[string]Session // connection id -> session
}

func NewTracker() *Tracker {
	return &Tracker{conns: make(map[string]Session)}
}

// Bind привязывает соединение к комнате. Повторный Bind того же
// соединения (переход в другую комнату) возвращает прежнюю сессию.
func (t *Tracker) Bind(connID, room, uid string) (prev Session, rebound bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, rebound = t.conns[connID]
	t.conns[connID] = Session{Room: room, UID: uid}
	return prev, rebound
}

func (t *Tracker) Lookup(connID string) (Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.conns[connID]
	return s, ok
}

// Drop снимает привязку при закрытии соединения. Соединение, которое
// никуда не заходило, даёт ok=false.
func (t *Tracker) Drop(connID string) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.conns[connID]
	if ok {
		delete(t.conns, connID)
	}
	return s, ok
}
