package alert

import (
	"testing"

	"github.com/lookout-bot/lookout/internal/cv"
)

func TestStateStoreGetCreates(t *testing.T) {
	st := newStateStore()
	s := st.get("a")
	if s == nil {
		t.Fatal("Expected a state entry")
	}
	if !s.baseline.Empty() || s.streak != 0 || s.failures != 0 {
		t.Error("Expected a fresh entry to be uninitialized")
	}
	if st.get("a") != s {
		t.Error("Expected repeated get to return the same entry")
	}
	if st.len() != 1 {
		t.Errorf("Expected 1 entry, got %d", st.len())
	}
}

func TestStateStoreFailureThreshold(t *testing.T) {
	st := newStateStore()
	s := st.get("a")
	s.baseline = cv.NewFrame(4, 4)
	s.streak = 1
	s.pipelineKey = "direct:BitBlt(clientDC)"

	if st.noteFailure("a") {
		t.Error("Expected no reset after first failure")
	}
	if st.noteFailure("a") {
		t.Error("Expected no reset after second failure")
	}
	if s.baseline.Empty() {
		t.Error("Expected baseline retained before the threshold")
	}

	if !st.noteFailure("a") {
		t.Error("Expected reset on third consecutive failure")
	}
	if !s.baseline.Empty() || s.streak != 0 || s.failures != 0 || s.pipelineKey != "" {
		t.Error("Expected state cleared back to uninitialized")
	}
	if st.len() != 1 {
		t.Error("Expected the entry itself to survive a reset")
	}
}

func TestStateStorePrune(t *testing.T) {
	st := newStateStore()
	st.get("keep")
	st.get("drop")

	st.prune(map[string]struct{}{"keep": {}})
	if st.len() != 1 {
		t.Fatalf("Expected 1 entry after prune, got %d", st.len())
	}
	if _, ok := st.entries["drop"]; ok {
		t.Error("Expected pruned entry to be gone")
	}
	if _, ok := st.entries["keep"]; !ok {
		t.Error("Expected active entry to survive")
	}
}

func TestStateStoreClearAll(t *testing.T) {
	st := newStateStore()
	st.get("a")
	st.get("b")
	st.clearAll()
	if st.len() != 0 {
		t.Errorf("Expected empty store, got %d entries", st.len())
	}
}
