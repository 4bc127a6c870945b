// Package registry keeps the ordered run history plus the at-most-one active
// run. The coordinator is the single writer; all access is funneled through
// its guard, so the registry itself carries no locking.
package registry

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/agentstepper/agentstepper/internal/domain"
)

// Registry holds completed runs in insertion (= chronological) order.
type Registry struct {
	history []*domain.Run
	active  *domain.Run
}

func New() *Registry {
	return &Registry{}
}

// Active returns the run currently receiving events, or nil.
func (r *Registry) Active() *domain.Run { return r.active }

// SetActive installs the run currently receiving events. A nil run clears it.
func (r *Registry) SetActive(run *domain.Run) { r.active = run }

// Append adds a completed run to the history.
func (r *Registry) Append(run *domain.Run) {
	r.history = append(r.history, run)
}

// History returns the completed runs in insertion order.
func (r *Registry) History() []*domain.Run { return r.history }

// All returns history plus the active run (last), the snapshot order the UI
// receives on connect.
func (r *Registry) All() []*domain.Run {
	runs := make([]*domain.Run, len(r.history), len(r.history)+1)
	copy(runs, r.history)
	if r.active != nil {
		runs = append(runs, r.active)
	}
	return runs
}

// Lookup finds a run by id string, checking the active run first. An invalid
// UUID or unknown id yields nil, not an error.
func (r *Registry) Lookup(id string) *domain.Run {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil
	}
	if r.active != nil && r.active.ID == parsed {
		return r.active
	}
	for _, run := range r.history {
		if run.ID == parsed {
			return run
		}
	}
	return nil
}

// Delete removes a run from the history. The active run cannot be deleted.
func (r *Registry) Delete(id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: %q", domain.ErrNotFound, id)
	}
	if r.active != nil && r.active.ID == parsed {
		return domain.ErrCannotDeleteActive
	}
	for i, run := range r.history {
		if run.ID == parsed {
			r.history = append(r.history[:i], r.history[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", domain.ErrNotFound, id)
}

// NextRunName returns the default name for a new run of the given program:
// "Run #n of <program>" where n counts prior runs of the same program.
func (r *Registry) NextRunName(programName string) string {
	n := 1
	for _, run := range r.history {
		if run.ProgramName == programName {
			n++
		}
	}
	return fmt.Sprintf("Run #%d of %s", n, programName)
}
