package memory

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Turn is a single dialogue turn in the conversation buffer.
type Turn struct {
	Role      string
	Text      string
	Timestamp time.Time
}

// Buffer keeps a capped sliding window of recent dialogue turns per user.
// It is purely in-process: contents are lost on restart, which is the
// intended durability for this tier. All operations are O(cap) under a
// single lock so callers on the chat path never wait on I/O here.
type Buffer struct {
	mu    sync.RWMutex
	turns map[string][]Turn
	cap   int
}

// NewBuffer creates a conversation buffer holding up to size turns per user.
func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = 20
	}
	return &Buffer{
		turns: make(map[string][]Turn),
		cap:   size,
	}
}

// Append pushes a turn and trims to the cap, evicting the oldest turns.
func (b *Buffer) Append(userID string, turn Turn) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	window := append(b.turns[userID], turn)
	if len(window) > b.cap {
		window = window[len(window)-b.cap:]
	}
	b.turns[userID] = window
}

// Recent returns the last k turns in chronological order.
func (b *Buffer) Recent(userID string, k int) []Turn {
	b.mu.RLock()
	defer b.mu.RUnlock()

	window := b.turns[userID]
	if k <= 0 || k > len(window) {
		k = len(window)
	}
	out := make([]Turn, k)
	copy(out, window[len(window)-k:])
	return out
}

// RecentText renders the last k turns as plain "role: text" lines.
func (b *Buffer) RecentText(userID string, k int) string {
	turns := b.Recent(userID, k)
	if len(turns) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&sb, "%s: %s\n", t.Role, t.Text)
	}
	return sb.String()
}

// Len returns the number of buffered turns for a user.
func (b *Buffer) Len(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.turns[userID])
}

// Reset drops a user's window. Called after consolidation.
func (b *Buffer) Reset(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.turns, userID)
}
