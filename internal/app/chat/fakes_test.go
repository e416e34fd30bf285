package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"modchat/internal/app/message"
	"modchat/internal/app/user"
)

// fakeConn records everything the core sends through it.
type fakeConn struct {
	mu         sync.Mutex
	frames     [][]byte
	full       bool
	kicked     bool
	kickReason string
}

func (c *fakeConn) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return false
	}
	frame := make([]byte, len(data))
	copy(frame, data)
	c.frames = append(c.frames, frame)
	return true
}

func (c *fakeConn) Kick(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kicked = true
	c.kickReason = reason
}

func (c *fakeConn) wasKicked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kicked
}

// receivedEvent is a decoded outbound frame.
type receivedEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (c *fakeConn) events(t *testing.T) []receivedEvent {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	events := make([]receivedEvent, 0, len(c.frames))
	for _, frame := range c.frames {
		var ev receivedEvent
		if err := json.Unmarshal(frame, &ev); err != nil {
			t.Fatalf("undecodable outbound frame %q: %v", frame, err)
		}
		events = append(events, ev)
	}
	return events
}

// countEvents returns how many frames of the given type were sent.
func (c *fakeConn) countEvents(t *testing.T, eventType string) int {
	t.Helper()
	count := 0
	for _, ev := range c.events(t) {
		if ev.Type == eventType {
			count++
		}
	}
	return count
}

// lastEvent returns the most recent frame of the given type, or nil.
func (c *fakeConn) lastEvent(t *testing.T, eventType string) *receivedEvent {
	t.Helper()
	var found *receivedEvent
	for _, ev := range c.events(t) {
		if ev.Type == eventType {
			cp := ev
			found = &cp
		}
	}
	return found
}

// fakeDirectory is an in-memory user.Directory.
type fakeDirectory struct {
	mu    sync.Mutex
	users map[string]user.User
	err   error
}

func newFakeDirectory(users ...user.User) *fakeDirectory {
	d := &fakeDirectory{users: make(map[string]user.User)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *fakeDirectory) FindByID(ctx context.Context, id string) (*user.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	u, ok := d.users[id]
	if !ok || u.IsDeleted {
		return nil, nil
	}
	cp := u
	return &cp, nil
}

func (d *fakeDirectory) FindByUsername(ctx context.Context, username string) (*user.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	for _, u := range d.users {
		if u.Username == username && !u.IsDeleted {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

// fakeStore is an in-memory Store. Its Approve and Reject mirror the
// conditional semantics of the Postgres store: only a still-pending message
// can be mutated, and a miss is reported as (nil, nil) / (false, nil).
type fakeStore struct {
	mu        sync.Mutex
	usernames map[string]string
	public    map[string]*message.PublicMessage
	private   []*message.PrivateMessage
	nextID    int

	createErr  error
	approveErr error

	// approveGate, when set, is closed once an approve reaches the store and
	// approveRelease is then awaited, letting tests hold a transition open.
	approveGate    chan struct{}
	approveRelease chan struct{}
}

func newFakeStore(usernames map[string]string) *fakeStore {
	if usernames == nil {
		usernames = make(map[string]string)
	}
	return &fakeStore{
		usernames: usernames,
		public:    make(map[string]*message.PublicMessage),
	}
}

func (s *fakeStore) newID() string {
	s.nextID++
	return fmt.Sprintf("msg-%d", s.nextID)
}

func (s *fakeStore) CreatePublicMessage(ctx context.Context, senderID, content string) (*message.PublicMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}

	m := &message.PublicMessage{
		ID:        s.newID(),
		Sender:    user.Ref{ID: senderID, Username: s.usernames[senderID]},
		Content:   content,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.public[m.ID] = m
	cp := *m
	return &cp, nil
}

func (s *fakeStore) ApprovePublicMessage(ctx context.Context, messageID, adminID string) (*message.PublicMessage, error) {
	if s.approveGate != nil {
		close(s.approveGate)
		s.approveGate = nil
		<-s.approveRelease
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.approveErr != nil {
		return nil, s.approveErr
	}

	m, ok := s.public[messageID]
	if !ok || m.Approved {
		return nil, nil
	}

	now := time.Now()
	m.Approved = true
	m.ApprovedBy = &user.Ref{ID: adminID, Username: s.usernames[adminID]}
	m.ApprovedAt = &now
	m.UpdatedAt = now
	cp := *m
	return &cp, nil
}

func (s *fakeStore) RejectPublicMessage(ctx context.Context, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.public[messageID]
	if !ok || m.Approved {
		return false, nil
	}
	delete(s.public, messageID)
	return true, nil
}

func (s *fakeStore) ListPublicMessages(ctx context.Context, approved bool, limit, offset int) ([]message.PublicMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]message.PublicMessage, 0)
	for _, m := range s.public {
		if m.Approved == approved {
			messages = append(messages, *m)
		}
	}
	return messages, nil
}

func (s *fakeStore) CreatePrivateMessage(ctx context.Context, senderID, recipientID, content string) (*message.PrivateMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}

	m := &message.PrivateMessage{
		ID:        s.newID(),
		Sender:    user.Ref{ID: senderID, Username: s.usernames[senderID]},
		Recipient: user.Ref{ID: recipientID, Username: s.usernames[recipientID]},
		Content:   content,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.private = append(s.private, m)
	cp := *m
	return &cp, nil
}

// getPublic reads a stored message directly, bypassing the queue.
func (s *fakeStore) getPublic(id string) *message.PublicMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.public[id]
	if !ok {
		return nil
	}
	cp := *m
	return &cp
}
