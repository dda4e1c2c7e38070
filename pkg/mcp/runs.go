package mcp

import (
	"sync"

	"github.com/Sriram-PR/page-auditor/pkg/orchestrate"
	"github.com/Sriram-PR/page-auditor/pkg/utils"
)

const defaultRunHistory = 20

// RunState labels a run for MCP clients
type RunState string

const (
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateCancelled RunState = "cancelled"
)

// RunManager remembers recent runs so their results stay retrievable after they finish
type RunManager struct {
	mu    sync.RWMutex
	runs  map[string]*orchestrate.Run
	order []string // oldest first
	max   int
}

// NewRunManager keeps at most max runs
func NewRunManager(max int) *RunManager {
	if max <= 0 {
		max = defaultRunHistory
	}
	return &RunManager{
		runs: make(map[string]*orchestrate.Run),
		max:  max,
	}
}

// Add records a run, forgetting the oldest finished runs beyond capacity
func (m *RunManager) Add(run *orchestrate.Run) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs[run.ID()] = run
	m.order = append(m.order, run.ID())

	for len(m.order) > m.max {
		evicted := false
		for i, id := range m.order {
			if isDone(m.runs[id]) {
				delete(m.runs, id)
				m.order = append(m.order[:i], m.order[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			break
		}
	}
}

// Get returns the run with id, or the most recent run when id is empty
func (m *RunManager) Get(id string) (*orchestrate.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if id == "" {
		if len(m.order) == 0 {
			return nil, utils.WrapErrorf(utils.ErrRunNotFound, "no runs yet")
		}
		id = m.order[len(m.order)-1]
	}
	run, ok := m.runs[id]
	if !ok {
		return nil, utils.WrapErrorf(utils.ErrRunNotFound, "run '%s'", id)
	}
	return run, nil
}

// Len returns the number of remembered runs
func (m *RunManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}

// StateOf labels a run by whether it is still going and how it ended
func StateOf(run *orchestrate.Run) RunState {
	st := run.Status()
	switch {
	case st.Active:
		return RunStateRunning
	case st.Aborted:
		return RunStateCancelled
	default:
		return RunStateCompleted
	}
}

func isDone(run *orchestrate.Run) bool {
	select {
	case <-run.Done():
		return true
	default:
		return false
	}
}
