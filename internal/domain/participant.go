package domain

import "net/url"

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Participant — участник комнаты. Vote держит шифртекст до reveal,
// пустая строка значит «не голосовал».
type Participant struct {
	UID          string `json:"uid"`
	DisplayName  string `json:"displayName"`
	PhotoURL     string `json:"photoURL,omitempty"`
	Online       bool   `json:"online"`
	Role         Role   `json:"role"`
	ConnectionID string `json:"id,omitempty"`
	Vote         string `json:"vote"`
}

// EnsureAvatar подставляет сгенерированный аватар, если клиент не прислал свой.
func (p *Participant) EnsureAvatar() {
	if p.PhotoURL != "" {
		return
	}
	p.PhotoURL = "https://ui-avatars.com/api/?name=" + url.QueryEscape(p.DisplayName) + "&background=random"
}
