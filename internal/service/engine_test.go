package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cwrk-planet/poker-service/internal/domain"
	"github.com/cwrk-planet/poker-service/internal/memory"
	"github.com/cwrk-planet/poker-service/internal/presence"
	"github.com/cwrk-planet/poker-service/internal/service"
	"github.com/cwrk-planet/poker-service/internal/vault"
)

type sent struct {
	Event   string
	Payload any
}

type fakeConn struct {
	id string

	mu     sync.Mutex
	events []sent
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, sent{event, payload})
	return nil
}

func (c *fakeConn) last(event string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Event == event {
			return c.events[i].Payload, true
		}
	}
	return nil, false
}

type cast struct {
	Room    string
	Event   string
	Payload any
}

type fakeHub struct {
	mu    sync.Mutex
	subs  map[string]map[service.Conn]bool
	casts []cast
}

func newFakeHub() *fakeHub {
	return &fakeHub{subs: make(map[string]map[service.Conn]bool)}
}

func (h *fakeHub) Subscribe(room string, c service.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[room] == nil {
		h.subs[room] = make(map[service.Conn]bool)
	}
	h.subs[room][c] = true
}

func (h *fakeHub) Unsubscribe(room string, c service.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[room], c)
}

func (h *fakeHub) Broadcast(room, event string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.casts = append(h.casts, cast{room, event, payload})
}

func (h *fakeHub) last(room, event string) (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.casts) - 1; i >= 0; i-- {
		if h.casts[i].Room == room && h.casts[i].Event == event {
			return h.casts[i].Payload, true
		}
	}
	return nil, false
}

func (h *fakeHub) count(room, event string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.casts {
		if c.Room == room && c.Event == event {
			n++
		}
	}
	return n
}

func newEngine(t *testing.T) (*service.Engine, *fakeHub, *memory.RoomStore) {
	t.Helper()
	v, err := vault.New("secretkey")
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	hub := newFakeHub()
	st := memory.NewRoomStore()
	return service.NewEngine(st, v, hub, presence.NewTracker()), hub, st
}

func TestCreateRoom(t *testing.T) {
	ctx := context.Background()
	eng, hub, st := newEngine(t)
	c1 := &fakeConn{id: "c1"}

	if err := eng.CreateRoom(ctx, c1, "R1", domain.Participant{UID: "u1", DisplayName: "Ann"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	p, ok := c1.last(service.EventInit)
	if !ok {
		t.Fatalf("creator did not receive init")
	}
	init := p.(service.InitPayload)
	if len(init.Users) != 1 || init.Users[0].Role != domain.RoleAdmin || !init.Users[0].Online {
		t.Fatalf("init users: %+v", init.Users)
	}
	if init.Users[0].PhotoURL == "" {
		t.Fatalf("avatar default not applied")
	}
	if _, ok := hub.last("R1", service.EventUpdateUsers); !ok {
		t.Fatalf("updateUsers not broadcast")
	}

	room, err := st.Get(ctx, "R1")
	if err != nil {
		t.Fatalf("room not persisted: %v", err)
	}
	if room.Users[0].ConnectionID != "c1" {
		t.Fatalf("connection id not recorded: %+v", room.Users[0])
	}
}

func TestCreateRoomValidation(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newEngine(t)
	c := &fakeConn{id: "c1"}

	if err := eng.CreateRoom(ctx, c, "", domain.Participant{UID: "u1"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("missing room: %v", err)
	}
	if err := eng.CreateRoom(ctx, c, "R1", domain.Participant{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("missing uid: %v", err)
	}
}

func TestCreateRoomDuplicate(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newEngine(t)

	if err := eng.CreateRoom(ctx, &fakeConn{id: "c1"}, "R1", domain.Participant{UID: "u1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := eng.CreateRoom(ctx, &fakeConn{id: "c2"}, "R1", domain.Participant{UID: "u2"})
	if !errors.Is(err, domain.ErrRoomExists) {
		t.Fatalf("expected ErrRoomExists, got %v", err)
	}
}

func TestJoinRoom(t *testing.T) {
	ctx := context.Background()
	eng, hub, _ := newEngine(t)

	if err := eng.CreateRoom(ctx, &fakeConn{id: "c1"}, "R1", domain.Participant{UID: "u1", DisplayName: "Ann"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	c2 := &fakeConn{id: "c2"}
	if err := eng.JoinRoom(ctx, c2, "R1", domain.Participant{UID: "u2", DisplayName: "Bob"}); err != nil {
		t.Fatalf("join: %v", err)
	}

	p, ok := c2.last(service.EventInit)
	if !ok {
		t.Fatalf("joiner did not receive init")
	}
	init := p.(service.InitPayload)
	if len(init.Users) != 2 || init.Users[1].Role != domain.RoleMember {
		t.Fatalf("init users: %+v", init.Users)
	}

	mp, ok := hub.last("R1", service.EventUpdateMessages)
	if !ok {
		t.Fatalf("updateMessages not broadcast")
	}
	msgs := mp.([]domain.Message)
	if len(msgs) != 1 || !strings.Contains(msgs[0].Content, "Bob se ha unido") {
		t.Fatalf("join message: %+v", msgs)
	}
}

func TestJoinUnknownRoom(t *testing.T) {
	eng, _, _ := newEngine(t)
	err := eng.JoinRoom(context.Background(), &fakeConn{id: "c1"}, "nope", domain.Participant{UID: "u1"})
	if !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestRejoinDoesNotDuplicate(t *testing.T) {
	ctx := context.Background()
	eng, _, st := newEngine(t)

	if err := eng.CreateRoom(ctx, &fakeConn{id: "c1"}, "R1", domain.Participant{UID: "u1", DisplayName: "Ann"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := eng.JoinRoom(ctx, &fakeConn{id: "c2"}, "R1", domain.Participant{UID: "u2", DisplayName: "Bob"}); err != nil {
		t.Fatalf("join: %v", err)
	}
	// реконнект того же uid под новым соединением
	if err := eng.JoinRoom(ctx, &fakeConn{id: "c3"}, "R1", domain.Participant{UID: "u2", DisplayName: "Bob"}); err != nil {
		t.Fatalf("rejoin: %v", err)
	}

	room, _ := st.Get(ctx, "R1")
	if len(room.Users) != 2 {
		t.Fatalf("duplicate participant after rejoin: %+v", room.Users)
	}
	u2 := room.FindUser("u2")
	if u2.ConnectionID != "c3" || !u2.Online {
		t.Fatalf("reconnect did not rebind: %+v", u2)
	}
}

func TestVoteStaysSecret(t *testing.T) {
	ctx := context.Background()
	eng, hub, st := newEngine(t)

	if err := eng.CreateRoom(ctx, &fakeConn{id: "c1"}, "R1", domain.Participant{UID: "u1", DisplayName: "Ann"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := eng.Vote(ctx, "R1", "u1", "5"); err != nil {
		t.Fatalf("vote: %v", err)
	}

	room, _ := st.Get(ctx, "R1")
	v := room.FindUser("u1").Vote
	if v == "" || v == "5" {
		t.Fatalf("stored vote must be ciphertext, got %q", v)
	}

	p, ok := hub.last("R1", service.EventUpdateUsers)
	if !ok {
		t.Fatalf("updateUsers not broadcast")
	}
	users := p.([]domain.Participant)
	if users[0].Vote == "5" {
		t.Fatalf("plaintext vote leaked in broadcast")
	}

	mp, _ := hub.last("R1", service.EventUpdateMessages)
	msgs := mp.([]domain.Message)
	if msgs[len(msgs)-1].Content != "ha votado." {
		t.Fatalf("vote message: %+v", msgs[len(msgs)-1])
	}
}

func TestEmptyVoteClearsWithoutMessage(t *testing.T) {
	ctx := context.Background()
	eng, hub, st := newEngine(t)

	if err := eng.CreateRoom(ctx, &fakeConn{id: "c1"}, "R1", domain.Participant{UID: "u1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := eng.Vote(ctx, "R1", "u1", "5"); err != nil {
		t.Fatalf("vote: %v", err)
	}
	before := hub.count("R1", service.EventUpdateMessages)

	if err := eng.Vote(ctx, "R1", "u1", ""); err != nil {
		t.Fatalf("clear vote: %v", err)
	}

	room, _ := st.Get(ctx, "R1")
	if room.FindUser("u1").Vote != "" {
		t.Fatalf("vote not cleared")
	}
	if hub.count("R1", service.EventUpdateMessages) != before {
		t.Fatalf("empty vote must not append a message")
	}
}

func TestVoteUnknownUser(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newEngine(t)
	if err := eng.CreateRoom(ctx, &fakeConn{id: "c1"}, "R1", domain.Participant{UID: "u1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := eng.Vote(ctx, "R1", "ghost", "5"); !errors.Is(err, domain.ErrNotInRoom) {
		t.Fatalf("expected ErrNotInRoom, got %v", err)
	}
}

func TestConcurrentVotesBothLand(t *testing.T) {
	ctx := context.Background()
	eng, _, st := newEngine(t)

	if err := eng.CreateRoom(ctx, &fakeConn{id: "c1"}, "R1", domain.Participant{UID: "u1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := eng.JoinRoom(ctx, &fakeConn{id: "c2"}, "R1", domain.Participant{UID: "u2"}); err != nil {
		t.Fatalf("join: %v", err)
	}

	var wg sync.WaitGroup
	for _, uid := range []string{"u1", "u2"} {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			if err := eng.Vote(ctx, "R1", uid, "5"); err != nil {
				t.Errorf("vote %s: %v", uid, err)
			}
		}(uid)
	}
	wg.Wait()

	room, _ := st.Get(ctx, "R1")
	for _, uid := range []string{"u1", "u2"} {
		if room.FindUser(uid).Vote == "" {
			t.Fatalf("vote of %s lost", uid)
		}
	}
}

func TestRevealScenario(t *testing.T) {
	ctx := context.Background()
	eng, hub, st := newEngine(t)

	if err := eng.CreateRoom(ctx, &fakeConn{id: "c1"}, "R1", domain.Participant{UID: "u1", DisplayName: "Ann"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := eng.JoinRoom(ctx, &fakeConn{id: "c2"}, "R1", domain.Participant{UID: "u2", DisplayName: "Bob"}); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := eng.Vote(ctx, "R1", "u1", "5"); err != nil {
		t.Fatalf("vote u1: %v", err)
	}
	if err := eng.Vote(ctx, "R1", "u2", "8"); err != nil {
		t.Fatalf("vote u2: %v", err)
	}

	if err := eng.RevealVotes(ctx, "R1"); err != nil {
		t.Fatalf("reveal: %v", err)
	}

	p, ok := hub.last("R1", service.EventResults)
	if !ok {
		t.Fatalf("results not broadcast")
	}
	res := p.(service.ResultsPayload).Results
	// raw avg 6.5 равноудалён от 5 и 8 — побеждает более ранний элемент шкалы
	want := domain.Result{Avg: 5, Min: 5, Max: 8, Ratio: 50}
	if res != want {
		t.Fatalf("results = %+v, want %+v", res, want)
	}

	room, _ := st.Get(ctx, "R1")
	if room.FindUser("u1").Vote != "5" || room.FindUser("u2").Vote != "8" {
		t.Fatalf("plaintext votes not persisted after reveal: %+v", room.Users)
	}
	if len(room.Rounds) != 1 {
		t.Fatalf("round not archived: %d", len(room.Rounds))
	}
	rd := room.Rounds[0]
	if rd.Results != want || len(rd.Users) != 2 {
		t.Fatalf("round snapshot: %+v", rd)
	}

	last := room.Messages[len(room.Messages)-1]
	if !strings.HasPrefix(last.Content, "[SYSTEM] Los resultados son:") {
		t.Fatalf("results message: %q", last.Content)
	}
	if !strings.Contains(last.Content, "Ratio = 50.00%") {
		t.Fatalf("ratio formatting: %q", last.Content)
	}
}

func TestRevealWithNoVotes(t *testing.T) {
	ctx := context.Background()
	eng, hub, st := newEngine(t)

	if err := eng.CreateRoom(ctx, &fakeConn{id: "c1"}, "R1", domain.Participant{UID: "u1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := eng.RevealVotes(ctx, "R1"); err != nil {
		t.Fatalf("reveal: %v", err)
	}

	p, _ := hub.last("R1", service.EventResults)
	if res := p.(service.ResultsPayload).Results; res != (domain.Result{}) {
		t.Fatalf("empty reveal must yield zeros, got %+v", res)
	}
	room, _ := st.Get(ctx, "R1")
	if len(room.Rounds) != 1 {
		t.Fatalf("empty reveal still archives a round")
	}
}

func TestGetVoteIsPrivate(t *testing.T) {
	ctx := context.Background()
	eng, hub, _ := newEngine(t)
	c1 := &fakeConn{id: "c1"}

	if err := eng.CreateRoom(ctx, c1, "R1", domain.Participant{UID: "u1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := eng.Vote(ctx, "R1", "u1", "5"); err != nil {
		t.Fatalf("vote: %v", err)
	}

	if err := eng.GetVote(ctx, c1, "R1", "u1"); err != nil {
		t.Fatalf("getVote: %v", err)
	}
	p, ok := c1.last(service.EventReceiveVote)
	if !ok || p.(string) != "5" {
		t.Fatalf("receiveVote: %v ok=%v", p, ok)
	}
	if _, ok := hub.last("R1", service.EventReceiveVote); ok {
		t.Fatalf("receiveVote must never be broadcast")
	}
}

func TestGetVoteNoVote(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newEngine(t)
	c1 := &fakeConn{id: "c1"}

	if err := eng.CreateRoom(ctx, c1, "R1", domain.Participant{UID: "u1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := eng.GetVote(ctx, c1, "R1", "u1"); err != nil {
		t.Fatalf("getVote: %v", err)
	}
	if p, ok := c1.last(service.EventReceiveVote); !ok || p.(string) != "" {
		t.Fatalf("expected empty vote, got %v", p)
	}
}

func TestChangeTopicClearsVotes(t *testing.T) {
	ctx := context.Background()
	eng, hub, st := newEngine(t)

	if err := eng.CreateRoom(ctx, &fakeConn{id: "c1"}, "R1", domain.Participant{UID: "u1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := eng.Vote(ctx, "R1", "u1", "5"); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if err := eng.ChangeTopic(ctx, "R1", "checkout flow"); err != nil {
		t.Fatalf("changeTopic: %v", err)
	}

	if p, ok := hub.last("R1", service.EventNewTopic); !ok || p.(string) != "checkout flow" {
		t.Fatalf("newTopic: %v", p)
	}
	room, _ := st.Get(ctx, "R1")
	if room.Topic != "checkout flow" || room.FindUser("u1").Vote != "" {
		t.Fatalf("topic/votes: %+v", room)
	}
}

func TestResetRoom(t *testing.T) {
	ctx := context.Background()
	eng, hub, st := newEngine(t)

	if err := eng.CreateRoom(ctx, &fakeConn{id: "c1"}, "R1", domain.Participant{UID: "u1", DisplayName: "Ann"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := eng.Vote(ctx, "R1", "u1", "5"); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if err := eng.NewMessage(ctx, "R1", domain.Message{User: domain.Participant{UID: "u1"}, Content: "hola"}); err != nil {
		t.Fatalf("message: %v", err)
	}

	if err := eng.ResetRoom(ctx, "R1"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	room, _ := st.Get(ctx, "R1")
	if len(room.Messages) != 0 || room.FindUser("u1").Vote != "" {
		t.Fatalf("reset left state behind: %+v", room)
	}

	p, ok := hub.last("R1", service.EventResults)
	if !ok {
		t.Fatalf("reset must broadcast results")
	}
	res := p.(service.ResultsPayload).Results
	if !res.Reset || res.Avg != 0 || res.Min != 0 || res.Max != 0 || res.Ratio != 0 {
		t.Fatalf("reset results: %+v", res)
	}
}

func TestDisconnect(t *testing.T) {
	ctx := context.Background()
	eng, hub, st := newEngine(t)
	c2 := &fakeConn{id: "c2"}

	if err := eng.CreateRoom(ctx, &fakeConn{id: "c1"}, "R1", domain.Participant{UID: "u1", DisplayName: "Ann"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := eng.JoinRoom(ctx, c2, "R1", domain.Participant{UID: "u2", DisplayName: "Bob"}); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := eng.Disconnect(ctx, c2); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	room, _ := st.Get(ctx, "R1")
	u2 := room.FindUser("u2")
	if u2.Online || u2.ConnectionID != "" {
		t.Fatalf("disconnect did not mark offline: %+v", u2)
	}
	mp, _ := hub.last("R1", service.EventUpdateMessages)
	msgs := mp.([]domain.Message)
	if !strings.Contains(msgs[len(msgs)-1].Content, "Bob ha abandonado") {
		t.Fatalf("left message: %+v", msgs[len(msgs)-1])
	}
}

func TestDisconnectNeverJoined(t *testing.T) {
	eng, hub, _ := newEngine(t)
	if err := eng.Disconnect(context.Background(), &fakeConn{id: "cX"}); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if len(hub.casts) != 0 {
		t.Fatalf("unbound connection must produce no broadcasts")
	}
}

func TestStaleDisconnectAfterReconnect(t *testing.T) {
	ctx := context.Background()
	eng, _, st := newEngine(t)
	c2 := &fakeConn{id: "c2"}
	c3 := &fakeConn{id: "c3"}

	if err := eng.CreateRoom(ctx, &fakeConn{id: "c1"}, "R1", domain.Participant{UID: "u1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := eng.JoinRoom(ctx, c2, "R1", domain.Participant{UID: "u2", DisplayName: "Bob"}); err != nil {
		t.Fatalf("join: %v", err)
	}
	// u2 переподключился, старое соединение закрылось позже
	if err := eng.JoinRoom(ctx, c3, "R1", domain.Participant{UID: "u2", DisplayName: "Bob"}); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if err := eng.Disconnect(ctx, c2); err != nil {
		t.Fatalf("stale disconnect: %v", err)
	}

	room, _ := st.Get(ctx, "R1")
	u2 := room.FindUser("u2")
	if !u2.Online || u2.ConnectionID != "c3" {
		t.Fatalf("stale disconnect knocked out live session: %+v", u2)
	}
}
