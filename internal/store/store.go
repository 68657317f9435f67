// Package store owns all presence and message state of the proximity engine.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"geo-chat-service/internal/geo"
	"geo-chat-service/internal/models"
)

// Store keeps users, the public message log and private conversations in
// memory. Every method takes the same mutex, so read-modify-write sequences
// never interleave.
type Store struct {
	mu            sync.Mutex
	users         map[string]models.User
	messages      []models.Message
	conversations map[string]*models.Conversation
	now           func() time.Time
	newID         func() string
}

// Option customises a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the uuid based id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		users:         make(map[string]models.User),
		conversations: make(map[string]*models.Conversation),
		now:           time.Now,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewID returns a fresh identifier from the store's generator.
func (s *Store) NewID() string {
	return s.newID()
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// AddUser inserts or replaces a user by id.
func (s *Store) AddUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// RemoveUser deletes a user. Unknown ids are ignored.
func (s *Store) RemoveUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

// UpdateUser merges patch into the user and refreshes LastSeen.
func (s *Store) UpdateUser(id string, patch models.UserPatch) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, false
	}
	u = patch.Apply(u)
	u.LastSeen = s.now()
	s.users[id] = u
	return u, true
}

// GetUser looks a user up by id.
func (s *Store) GetUser(id string) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok
}

// UsersWithinRange returns every other known user, online or not, no farther
// than radiusKm from the observer. Order is unspecified.
func (s *Store) UsersWithinRange(observerID string, radiusKm float64) []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	observer, ok := s.users[observerID]
	if !ok {
		return []models.User{}
	}
	result := make([]models.User, 0)
	for id, other := range s.users {
		if id == observerID {
			continue
		}
		if geo.Distance(observer.Latitude, observer.Longitude, other.Latitude, other.Longitude) <= radiusKm {
			result = append(result, other)
		}
	}
	return result
}

// MessagesWithinRange returns public messages authored within radiusKm of the
// observer's current location, oldest first.
func (s *Store) MessagesWithinRange(observerID string, radiusKm float64) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	observer, ok := s.users[observerID]
	if !ok {
		return []models.Message{}
	}
	result := make([]models.Message, 0)
	for _, m := range s.messages {
		if m.IsDirect() {
			continue
		}
		if geo.Distance(observer.Latitude, observer.Longitude, m.Latitude, m.Longitude) <= radiusKm {
			result = append(result, m)
		}
	}
	sortByTimestamp(result)
	return result
}

// AddMessage stamps the draft and files it either in the public log or in the
// conversation between author and recipient.
func (s *Store) AddMessage(d models.MessageDraft) models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := models.Message{
		ID:          s.newID(),
		UserID:      d.UserID,
		Username:    d.Username,
		Content:     d.Content,
		Timestamp:   s.now(),
		Latitude:    d.Latitude,
		Longitude:   d.Longitude,
		RecipientID: d.RecipientID,
	}
	if !msg.IsDirect() {
		s.messages = append(s.messages, msg)
		return msg
	}

	chatID := models.ConversationID(msg.UserID, msg.RecipientID)
	conv, ok := s.conversations[chatID]
	if !ok {
		conv = &models.Conversation{
			ID:           chatID,
			Participants: [2]string{msg.UserID, msg.RecipientID},
		}
		s.conversations[chatID] = conv
	}
	conv.Messages = append(conv.Messages, msg)
	conv.LastActivity = msg.Timestamp
	return msg
}

// GetConversation returns a copy of the conversation between two users.
func (s *Store) GetConversation(userA, userB string) (models.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[models.ConversationID(userA, userB)]
	if !ok {
		return models.Conversation{}, false
	}
	cp := *conv
	cp.Messages = append([]models.Message(nil), conv.Messages...)
	return cp, true
}

// ConversationMessages returns the messages exchanged by two users, oldest first.
func (s *Store) ConversationMessages(userA, userB string) []models.Message {
	conv, ok := s.GetConversation(userA, userB)
	if !ok {
		return []models.Message{}
	}
	sortByTimestamp(conv.Messages)
	return conv.Messages
}

// EvictStale removes offline users not seen for longer than threshold and
// returns their ids. Online users are never evicted.
func (s *Store) EvictStale(threshold time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var evicted []string
	for id, u := range s.users {
		if !u.IsOnline && now.Sub(u.LastSeen) > threshold {
			delete(s.users, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// Stats returns a snapshot of the store counters.
func (s *Store) Stats() models.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := models.Stats{
		TotalUsers:         len(s.users),
		TotalMessages:      len(s.messages),
		TotalConversations: len(s.conversations),
	}
	for _, u := range s.users {
		if u.IsOnline {
			stats.OnlineUsers++
		}
	}
	return stats
}

// SeedWelcome appends the greeting shown to users joining around the default location.
func (s *Store) SeedWelcome() models.Message {
	return s.AddMessage(models.MessageDraft{
		UserID:    "system",
		Username:  "System",
		Content:   "Welcome to Geo Chat! You can chat with people nearby.",
		Latitude:  40.7128,
		Longitude: -74.0060,
	})
}

func sortByTimestamp(msgs []models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
}
