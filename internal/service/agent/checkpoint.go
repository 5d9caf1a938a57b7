package agent

import (
	"sync"
	"time"
)

const (
	// maxCheckpoints bounds the number of interrupted turns held in memory.
	maxCheckpoints = 1024
	// checkpointTTL is how long an abandoned checkpoint stays resumable.
	checkpointTTL = time.Hour
)

// Checkpoints lets an interrupted turn resume from the last completed
// stage. This is an optimization only: persistence steps stay idempotent
// whether or not a checkpoint exists. State lives in memory, keyed by
// thread id, for the lifetime of the process.
type Checkpoints struct {
	mu       sync.Mutex
	byThread map[string]checkpoint
	now      func() time.Time
}

type checkpoint struct {
	stage   int
	state   State
	savedAt time.Time
}

func NewCheckpoints() *Checkpoints {
	return &Checkpoints{
		byThread: make(map[string]checkpoint),
		now:      time.Now,
	}
}

// LoadTurn returns the checkpoint for the thread when it belongs to the
// same turn, identified by the user message it was saved with. A checkpoint
// left behind by a different turn is stale: resuming from it would answer
// the old message and drop the new one, so it gets discarded instead.
func (c *Checkpoints) LoadTurn(threadID, userMessage string) (State, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp, ok := c.byThread[threadID]
	if !ok {
		return State{}, 0, false
	}
	if cp.state.UserMessage != userMessage || c.now().Sub(cp.savedAt) > checkpointTTL {
		delete(c.byThread, threadID)
		return State{}, 0, false
	}
	return cp.state, cp.stage, true
}

func (c *Checkpoints) Save(threadID string, stage int, state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byThread[threadID]; !ok && len(c.byThread) >= maxCheckpoints {
		c.evictLocked()
	}
	c.byThread[threadID] = checkpoint{stage: stage, state: state, savedAt: c.now()}
}

func (c *Checkpoints) Clear(threadID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byThread, threadID)
}

// evictLocked drops expired checkpoints, and when nothing has expired yet
// drops the single oldest one to make room.
func (c *Checkpoints) evictLocked() {
	cutoff := c.now().Add(-checkpointTTL)
	for id, cp := range c.byThread {
		if cp.savedAt.Before(cutoff) {
			delete(c.byThread, id)
		}
	}
	if len(c.byThread) < maxCheckpoints {
		return
	}
	var oldestID string
	var oldestAt time.Time
	for id, cp := range c.byThread {
		if oldestID == "" || cp.savedAt.Before(oldestAt) {
			oldestID, oldestAt = id, cp.savedAt
		}
	}
	delete(c.byThread, oldestID)
}
