// Package offlinequeue implements C8: a capped, per-room in-memory FIFO of
// messages produced while no peer was present to receive them.
package offlinequeue

import (
	"sync"

	"roomcoordinator/pkg/types"
)

// MaxEntriesPerRoom bounds memory under sustained one-sided traffic with no
// peer ever joining; overflow drops the oldest entry (open question #4).
const MaxEntriesPerRoom = 200

type Queue struct {
	mu      sync.Mutex
	entries map[string][]types.OfflineEntry
}

func New() *Queue {
	return &Queue{entries: make(map[string][]types.OfflineEntry)}
}

// Enqueue appends entry to roomID's queue, dropping the oldest entry if the
// cap is already reached.
func (q *Queue) Enqueue(roomID string, entry types.OfflineEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	queue := q.entries[roomID]
	if len(queue) >= MaxEntriesPerRoom {
		queue = queue[1:]
	}
	q.entries[roomID] = append(queue, entry)
}

// Drain returns and clears roomID's queue.
func (q *Queue) Drain(roomID string) []types.OfflineEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries := q.entries[roomID]
	delete(q.entries, roomID)
	return entries
}
