// Package routing associates operator-side relayed message identifiers with
// the users that originated them, so the operator can address a user simply
// by replying to a relayed message.
package routing

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity bounds the number of live message->user mappings when no
// explicit capacity is configured. Reply routing only has to work within a
// conversation's active window, so old entries can be evicted.
const DefaultCapacity = 4096

// Table maps relayed message IDs back to users. Lookups and inserts are safe
// for concurrent use; no lock is ever held across outbound I/O (the table
// does none).
type Table struct {
	byMessage *lru.Cache[int, int64]

	mu         sync.RWMutex
	lastByUser map[int64]int
}

// NewTable builds a table retaining at most capacity message mappings.
// A capacity of zero or less selects DefaultCapacity.
func NewTable(capacity int) (*Table, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	cache, err := lru.New[int, int64](capacity)
	if err != nil {
		return nil, fmt.Errorf("routing: build cache: %w", err)
	}
	return &Table{
		byMessage:  cache,
		lastByUser: make(map[int64]int),
	}, nil
}

// RecordRelay stores messageID -> userID and refreshes the user's
// back-reference. An existing mapping for messageID is overwritten.
func (t *Table) RecordRelay(messageID int, userID int64) {
	t.byMessage.Add(messageID, userID)
	t.RecordLast(userID, messageID)
}

// RecordLast refreshes only the back-reference to the user's most recent
// relayed message. Used for operator-to-user copies, whose IDs do not need
// to resolve back.
func (t *Table) RecordLast(userID int64, messageID int) {
	t.mu.Lock()
	t.lastByUser[userID] = messageID
	t.mu.Unlock()
}

// ResolveUser looks up which user a relayed message belongs to. A miss is a
// normal outcome: the message simply is not a tracked reply target.
func (t *Table) ResolveUser(messageID int) (int64, bool) {
	return t.byMessage.Get(messageID)
}

// LastRelayOf returns the most recent relayed message ID recorded for a
// user. Informational only; routing correctness never depends on it.
func (t *Table) LastRelayOf(userID int64) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.lastByUser[userID]
	return id, ok
}

// PurgeUser drops the user's back-reference and its forward mapping.
// Called when a session ends; remaining forward entries for the user age
// out of the cache on their own.
func (t *Table) PurgeUser(userID int64) {
	t.mu.Lock()
	last, ok := t.lastByUser[userID]
	delete(t.lastByUser, userID)
	t.mu.Unlock()

	if ok {
		t.byMessage.Remove(last)
	}
}

// Len reports the number of live message mappings.
func (t *Table) Len() int {
	return t.byMessage.Len()
}
