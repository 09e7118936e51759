package alert

import (
	"time"

	"github.com/lookout-bot/lookout/internal/cv"
)

// ruleState is the engine's memory for one rule. A nil baseline means
// the rule is uninitialized and the next good frame only seeds it.
type ruleState struct {
	baseline      *cv.Frame
	streak        int
	cooldownUntil time.Time
	failures      int

	// pipelineKey identifies the capture path and geometry the
	// baseline came from. A different key on the next frame means the
	// comparison space changed and the baseline must be rebuilt.
	pipelineKey string
}

func (s *ruleState) clear() {
	*s = ruleState{}
}

// stateStore maps effective rule keys to their evolving state. All
// access happens under the engine mutex.
type stateStore struct {
	entries map[string]*ruleState
}

func newStateStore() *stateStore {
	return &stateStore{entries: make(map[string]*ruleState)}
}

// get returns the state for key, creating an uninitialized entry on
// first use.
func (st *stateStore) get(key string) *ruleState {
	if s, ok := st.entries[key]; ok {
		return s
	}
	s := &ruleState{}
	st.entries[key] = s
	return s
}

// noteFailure records one capture failure for key and reports whether
// the failure threshold was hit, in which case the state has been
// cleared back to uninitialized.
func (st *stateStore) noteFailure(key string) bool {
	s := st.get(key)
	s.failures++
	if s.failures >= failureResetThreshold {
		s.clear()
		return true
	}
	return false
}

// prune drops every entry whose key is absent from active.
func (st *stateStore) prune(active map[string]struct{}) {
	for key := range st.entries {
		if _, ok := active[key]; !ok {
			delete(st.entries, key)
		}
	}
}

func (st *stateStore) clearAll() {
	st.entries = make(map[string]*ruleState)
}

func (st *stateStore) len() int {
	return len(st.entries)
}
