package dating

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	svcErr "github.com/purr4furr/purr-backend/internal/errors"
)

// MemoryBackend is the fully in-memory rendition of the dating state
// machine, kept behind the same Backend interface as the live Service. It
// predates the store-backed implementation and survives as the reference
// model and test fixture: same like/match/read-state semantics, no network.
type MemoryBackend struct {
	mu       sync.Mutex
	profiles map[string]Profile
	likes    map[string]map[string]bool // liker -> set of liked
	passes   map[string]map[string]bool // user -> set of passed
	matches  []*memoryMatch

	msgSubs   map[string]map[int]func(Message) // matchID -> subscriber set
	matchSubs map[string]map[int]func(Match)   // userID -> subscriber set
	nextSub   int

	seq int
	now func() time.Time
}

type memoryMatch struct {
	id            string
	user1, user2  string
	matchedAt     time.Time
	lastMessageAt time.Time
	messages      []Message
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		profiles:  make(map[string]Profile),
		likes:     make(map[string]map[string]bool),
		passes:    make(map[string]map[string]bool),
		msgSubs:   make(map[string]map[int]func(Message)),
		matchSubs: make(map[string]map[int]func(Match)),
		now:       time.Now,
	}
}

// AddProfile seeds a profile into the candidate pool.
func (b *MemoryBackend) AddProfile(p Profile) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.profiles[p.ID] = p
}

// SeedLike seeds an existing like edge, typically the "already liked me"
// fixture set that makes a later reciprocal like match instantly.
func (b *MemoryBackend) SeedLike(likerID, likedID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addLike(likerID, likedID)
}

// SeedMessage injects an incoming message into a match, unread. Lets tests
// exercise read-state transitions without a second live participant.
func (b *MemoryBackend) SeedMessage(matchID, senderID, receiverID, content string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.findMatch(matchID)
	if m == nil {
		return
	}
	msg := Message{
		ID:          b.nextID("msg"),
		MatchID:     matchID,
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Content:     content,
		MessageType: messageTypeText,
		CreatedAt:   b.now(),
	}
	m.messages = append(m.messages, msg)
	m.lastMessageAt = msg.CreatedAt
}

func (b *MemoryBackend) addLike(likerID, likedID string) {
	if b.likes[likerID] == nil {
		b.likes[likerID] = make(map[string]bool)
	}
	b.likes[likerID][likedID] = true
}

func (b *MemoryBackend) nextID(prefix string) string {
	b.seq++
	return fmt.Sprintf("%s_%d", prefix, b.seq)
}

func (b *MemoryBackend) findMatch(id string) *memoryMatch {
	for _, m := range b.matches {
		if m.id == id {
			return m
		}
	}
	return nil
}

func (b *MemoryBackend) findMatchByPair(a, c string) (int, *memoryMatch) {
	for i, m := range b.matches {
		if (m.user1 == a && m.user2 == c) || (m.user1 == c && m.user2 == a) {
			return i, m
		}
	}
	return -1, nil
}

// GetFeed returns shuffled candidates excluding self and anyone already
// liked or passed.
func (b *MemoryBackend) GetFeed(ctx context.Context, userID string, limit int) ([]Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}

	out := make([]Profile, 0, len(b.profiles))
	for id, p := range b.profiles {
		if id == userID || b.likes[userID][id] || b.passes[userID][id] {
			continue
		}
		out = append(out, p)
	}
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LikeUser adds to the liked set, idempotently, and creates the match
// synchronously when the reciprocal like already exists.
func (b *MemoryBackend) LikeUser(ctx context.Context, userID, likedID string) (bool, error) {
	if userID == likedID {
		return false, svcErr.ErrSelfTarget
	}

	b.mu.Lock()

	if b.likes[userID][likedID] {
		// duplicate like no-ops; report the existing match state
		_, m := b.findMatchByPair(userID, likedID)
		b.mu.Unlock()
		return m != nil, nil
	}

	b.addLike(userID, likedID)

	if !b.likes[likedID][userID] {
		b.mu.Unlock()
		return false, nil
	}

	if _, existing := b.findMatchByPair(userID, likedID); existing != nil {
		b.mu.Unlock()
		return true, nil
	}

	now := b.now()
	m := &memoryMatch{
		id:            b.nextID("match"),
		user1:         userID,
		user2:         likedID,
		matchedAt:     now,
		lastMessageAt: now,
	}
	b.matches = append(b.matches, m)

	notify := b.matchNotifications(m)
	b.mu.Unlock()
	notify()

	return true, nil
}

// matchNotifications builds the subscriber fan-out for a new match.
// Returned closure runs outside the lock.
func (b *MemoryBackend) matchNotifications(m *memoryMatch) func() {
	type delivery struct {
		cb    func(Match)
		entry Match
	}
	var deliveries []delivery
	for _, uid := range []string{m.user1, m.user2} {
		entry := b.matchEntry(m, uid)
		for _, cb := range b.matchSubs[uid] {
			deliveries = append(deliveries, delivery{cb: cb, entry: entry})
		}
	}
	return func() {
		for _, d := range deliveries {
			d.cb(d.entry)
		}
	}
}

func (b *MemoryBackend) matchEntry(m *memoryMatch, viewerID string) Match {
	otherID := m.user1
	if otherID == viewerID {
		otherID = m.user2
	}
	entry := Match{
		MatchID:       m.id,
		MatchedAt:     m.matchedAt,
		LastMessageAt: m.lastMessageAt,
		OtherUserID:   otherID,
	}
	if p, ok := b.profiles[otherID]; ok {
		entry.FirstName = p.FirstName
		entry.DisplayName = p.DisplayName
		entry.Age = p.Age
		entry.ProfilePicture = p.ProfilePicture
		entry.Bio = p.Bio
		entry.LastActive = p.LastActive
		entry.IsActive = p.IsActive
	}
	for _, msg := range m.messages {
		if msg.ReceiverID == viewerID && msg.ReadAt == nil {
			entry.UnreadCount++
		}
	}
	if n := len(m.messages); n > 0 {
		last := m.messages[n-1]
		t := last.CreatedAt
		entry.LastMessageContent = last.Content
		entry.LastMessageTime = &t
		entry.LastMessageSender = last.SenderID
	}
	return entry
}

func (b *MemoryBackend) PassUser(ctx context.Context, userID, passedID string) error {
	if userID == passedID {
		return svcErr.ErrSelfTarget
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.passes[userID] == nil {
		b.passes[userID] = make(map[string]bool)
	}
	b.passes[userID][passedID] = true
	return nil
}

// UnlikeUser removes the edge and deletes any match keyed to that pair:
// withdrawing a like retracts the relationship, not just the edge.
func (b *MemoryBackend) UnlikeUser(ctx context.Context, userID, likedID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.likes[userID], likedID)
	if i, m := b.findMatchByPair(userID, likedID); m != nil {
		b.matches = append(b.matches[:i], b.matches[i+1:]...)
	}
	return nil
}

func (b *MemoryBackend) GetLikedProfiles(ctx context.Context, userID string) ([]Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []Profile{}
	for id := range b.likes[userID] {
		if p, ok := b.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (b *MemoryBackend) GetMatches(ctx context.Context, userID string) ([]Match, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []Match{}
	for _, m := range b.matches {
		if m.user1 != userID && m.user2 != userID {
			continue
		}
		out = append(out, b.matchEntry(m, userID))
	}
	// newest conversation first, same ordering contract as the live service
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].LastMessageAt.After(out[i].LastMessageAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (b *MemoryBackend) GetMatchMessages(ctx context.Context, matchID string) ([]Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.findMatch(matchID)
	if m == nil {
		return []Message{}, nil
	}
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out, nil
}

// SendMessage appends a message authored by the sender, born read (there is
// nothing for the sender to unread), and moves the match's last-message
// pointer.
func (b *MemoryBackend) SendMessage(ctx context.Context, matchID, senderID, receiverID, content string) (*Message, error) {
	b.mu.Lock()

	m := b.findMatch(matchID)
	if m == nil {
		b.mu.Unlock()
		return nil, fmt.Errorf("match %s: %w", matchID, svcErr.ErrNotFound)
	}
	if senderID != m.user1 && senderID != m.user2 {
		b.mu.Unlock()
		return nil, svcErr.ErrForbidden
	}
	receiverID = m.user1
	if receiverID == senderID {
		receiverID = m.user2
	}

	now := b.now()
	msg := Message{
		ID:          b.nextID("msg"),
		MatchID:     matchID,
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Content:     content,
		MessageType: messageTypeText,
		CreatedAt:   now,
		ReadAt:      &now,
	}
	m.messages = append(m.messages, msg)
	m.lastMessageAt = now

	subs := make([]func(Message), 0, len(b.msgSubs[matchID]))
	for _, cb := range b.msgSubs[matchID] {
		subs = append(subs, cb)
	}
	b.mu.Unlock()

	for _, cb := range subs {
		cb(msg)
	}
	return &msg, nil
}

// MarkMessagesAsRead flips read state only for messages not authored by the
// caller, and only mutates when at least one message actually needs it.
func (b *MemoryBackend) MarkMessagesAsRead(ctx context.Context, matchID, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	m := b.findMatch(matchID)
	if m == nil {
		return nil
	}

	needsUpdate := false
	for _, msg := range m.messages {
		if msg.ReadAt == nil && msg.SenderID != userID {
			needsUpdate = true
			break
		}
	}
	if !needsUpdate {
		return nil
	}

	now := b.now()
	for i := range m.messages {
		if m.messages[i].ReadAt == nil && m.messages[i].SenderID != userID {
			t := now
			m.messages[i].ReadAt = &t
		}
	}
	return nil
}

type memorySubscription struct {
	close func()
}

func (s *memorySubscription) Close() error {
	s.close()
	return nil
}

func (b *MemoryBackend) SubscribeToMessages(matchID string, cb func(Message)) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.msgSubs[matchID] == nil {
		b.msgSubs[matchID] = make(map[int]func(Message))
	}
	id := b.nextSub
	b.nextSub++
	b.msgSubs[matchID][id] = cb

	return &memorySubscription{close: func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.msgSubs[matchID], id)
	}}, nil
}

func (b *MemoryBackend) SubscribeToMatches(userID string, cb func(Match)) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.matchSubs[userID] == nil {
		b.matchSubs[userID] = make(map[int]func(Match))
	}
	id := b.nextSub
	b.nextSub++
	b.matchSubs[userID][id] = cb

	return &memorySubscription{close: func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.matchSubs[userID], id)
	}}, nil
}

func (b *MemoryBackend) UpdateLastActive(ctx context.Context, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.profiles[userID]; ok {
		p.LastActive = b.now()
		p.IsActive = true
		b.profiles[userID] = p
	}
	return nil
}

func (b *MemoryBackend) SetUserInactive(ctx context.Context, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.profiles[userID]; ok {
		p.IsActive = false
		b.profiles[userID] = p
	}
	return nil
}
