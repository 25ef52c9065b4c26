package domain

// Room — канонический документ сессии, уникален по Name. Мутации идут
// только через RoomStore.Mutate.
type Room struct {
	Name     string        `json:"name"`
	Users    []Participant `json:"users"`
	Messages []Message     `json:"messages"`
	Topic    string        `json:"topic"`
	Rounds   []Round       `json:"rounds"`
}

func NewRoom(name string, admin Participant) *Room {
	admin.Role = RoleAdmin
	admin.Online = true
	admin.Vote = ""
	admin.EnsureAvatar()
	return &Room{
		Name:     name,
		Users:    []Participant{admin},
		Messages: []Message{},
		Rounds:   []Round{},
	}
}

// FindUser возвращает указатель на участника внутри r.Users, либо nil.
func (r *Room) FindUser(uid string) *Participant {
	for i := range r.Users {
		if r.Users[i].UID == uid {
			return &r.Users[i]
		}
	}
	return nil
}

// Upsert по uid: реконнект обновляет соединение, новый участник
// добавляется в конец как member.
func (r *Room) UpsertUser(u Participant, connID string) *Participant {
	if p := r.FindUser(u.UID); p != nil {
		p.Online = true
		p.ConnectionID = connID
		return p
	}
	u.Role = RoleMember
	u.Online = true
	u.Vote = ""
	u.ConnectionID = connID
	u.EnsureAvatar()
	r.Users = append(r.Users, u)
	return &r.Users[len(r.Users)-1]
}

func (r *Room) ClearVotes() {
	for i := range r.Users {
		r.Users[i].Vote = ""
	}
}

func (r *Room) AppendMessage(m Message) {
	r.Messages = append(r.Messages, m)
}

// UsersSnapshot — копия списка участников (для раундов и бродкастов).
func (r *Room) UsersSnapshot() []Participant {
	out := make([]Participant, len(r.Users))
	copy(out, r.Users)
	return out
}

// Clone — глубокая копия документа; in-memory store отдаёт наружу только клоны.
func (r *Room) Clone() *Room {
	cp := &Room{
		Name:     r.Name,
		Topic:    r.Topic,
		Users:    make([]Participant, len(r.Users)),
		Messages: make([]Message, len(r.Messages)),
		Rounds:   make([]Round, len(r.Rounds)),
	}
	copy(cp.Users, r.Users)
	copy(cp.Messages, r.Messages)
	for i, rd := range r.Rounds {
		rd.Users = append([]Participant(nil), rd.Users...)
		cp.Rounds[i] = rd
	}
	return cp
}
