package models

import "time"

// User is a participant located somewhere on the map.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	LastSeen  time.Time `json:"lastSeen"`
	IsOnline  bool      `json:"isOnline"`
}

// UserPatch lists the fields of a User that UpdateUser may change. Nil fields are left untouched.
type UserPatch struct {
	Username  *string
	Latitude  *float64
	Longitude *float64
	IsOnline  *bool
}

// Apply merges the patch into u.
func (p UserPatch) Apply(u User) User {
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Latitude != nil {
		u.Latitude = *p.Latitude
	}
	if p.Longitude != nil {
		u.Longitude = *p.Longitude
	}
	if p.IsOnline != nil {
		u.IsOnline = *p.IsOnline
	}
	return u
}

// Stats is a read-only snapshot of store counters.
type Stats struct {
	TotalUsers         int `json:"totalUsers"`
	OnlineUsers        int `json:"onlineUsers"`
	TotalMessages      int `json:"totalMessages"`
	TotalConversations int `json:"totalConversations"`
}
