package ws

import (
	"net/http"
	"sync"
	"testing"
)

type recordConn struct {
	id string

	mu     sync.Mutex
	events []string
}

func (c *recordConn) ID() string { return c.id }

func (c *recordConn) Send(event string, _ any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *recordConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestHubBroadcastPerRoom(t *testing.T) {
	h := NewHub()
	a := &recordConn{id: "a"}
	b := &recordConn{id: "b"}
	other := &recordConn{id: "c"}

	h.Subscribe("R1", a)
	h.Subscribe("R1", b)
	h.Subscribe("R2", other)

	h.Broadcast("R1", "updateUsers", nil)

	if a.count() != 1 || b.count() != 1 {
		t.Fatalf("R1 subscribers: a=%d b=%d", a.count(), b.count())
	}
	if other.count() != 0 {
		t.Fatalf("R2 subscriber must not receive R1 broadcast")
	}
}

func TestHubUnsubscribe(t *testing.T) {
	h := NewHub()
	a := &recordConn{id: "a"}

	h.Subscribe("R1", a)
	h.Unsubscribe("R1", a)
	h.Broadcast("R1", "updateUsers", nil)

	if a.count() != 0 {
		t.Fatalf("unsubscribed conn still receives broadcasts")
	}
}

func TestHubBroadcastUnknownRoom(t *testing.T) {
	h := NewHub()
	h.Broadcast("nope", "updateUsers", nil) // не должно паниковать
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:5173"})

	r := newRequestWithOrigin(t, "http://localhost:5173")
	if !check(r) {
		t.Fatalf("listed origin rejected")
	}
	r = newRequestWithOrigin(t, "https://evil.example")
	if check(r) {
		t.Fatalf("unlisted origin accepted")
	}

	wildcard := originChecker(nil)
	if !wildcard(r) {
		t.Fatalf("empty list must allow any origin")
	}
}

func newRequestWithOrigin(t *testing.T, origin string) *http.Request {
	t.Helper()
	r, err := http.NewRequest(http.MethodGet, "/ws", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	r.Header.Set("Origin", origin)
	return r
}
