// Package history implements the merge timeline: an undo/redo/branching
// DAG of snapshots produced by successive manual merges, persisted via a
// debounced save to an injectable Store.
package history

import (
	"fmt"
	"time"

	"github.com/amscore/gcodeslots/internal/gcode/model"
	"github.com/amscore/gcodeslots/internal/merge"
	"github.com/amscore/gcodeslots/pkg/toposort"
)

// TimelineError flags an action the timeline's invariants forbid.
type TimelineError struct {
	Action string
	Reason string
}

func (e *TimelineError) Error() string {
	return fmt.Sprintf("history: illegal action %q: %s", e.Action, e.Reason)
}

// StateSnapshot is one node in the merge DAG.
type StateSnapshot struct {
	ID        string
	ParentID  string // "" for the root.
	Stats     *model.GcodeStats
	Entry     model.MergeHistoryEntry // zero value for the root snapshot.
	CreatedAt time.Time
}

// MergeTimeline tracks the branching history of merges applied to an
// initial GcodeStats. Every ApplyMerge call is copy-on-write: the prior
// snapshot's GcodeStats is never mutated (merge.Merge already guarantees
// that), so branching backward and re-merging differently is always safe.
type MergeTimeline struct {
	snapshots map[string]*StateSnapshot
	children  map[string][]string
	graph     *toposort.Graph
	current   string
	nextID    int

	store         Store
	saveDebounce  time.Duration
	pendingSave   *time.Timer
}

// Store persists timeline state. Callers typically back it with
// pkg/persist's Codec-based SaveState/LoadState.
type Store interface {
	Save(snapshots []*StateSnapshot, current string) error
	Load() (snapshots []*StateSnapshot, current string, err error)
}

// New creates a timeline rooted at initial. store may be nil to disable
// persistence (e.g. in tests). debounce of 0 disables debouncing — every
// ApplyMerge saves synchronously.
func New(initial *model.GcodeStats, store Store, debounce time.Duration) *MergeTimeline {
	t := &MergeTimeline{
		snapshots:    map[string]*StateSnapshot{},
		children:     map[string][]string{},
		graph:        toposort.NewGraph(),
		store:        store,
		saveDebounce: debounce,
	}

	root := &StateSnapshot{ID: t.allocID(), Stats: initial, CreatedAt: time.Now()}
	t.snapshots[root.ID] = root
	t.graph.AddNode(root.ID)
	t.current = root.ID

	return t
}

func (t *MergeTimeline) allocID() string {
	id := fmt.Sprintf("s%d", t.nextID)
	t.nextID++

	return id
}

// Current returns the snapshot the timeline is positioned at.
func (t *MergeTimeline) Current() *StateSnapshot {
	return t.snapshots[t.current]
}

// ApplyMerge folds sources into target starting from the current snapshot
// and advances the timeline to the resulting child snapshot.
func (t *MergeTimeline) ApplyMerge(target model.ColorID, sources []model.ColorID) (*StateSnapshot, error) {
	cur := t.Current()

	merged, entry, err := merge.Merge(cur.Stats, target, sources)
	if err != nil {
		return nil, err
	}

	child := &StateSnapshot{
		ID:        t.allocID(),
		ParentID:  cur.ID,
		Stats:     merged,
		Entry:     entry,
		CreatedAt: time.Now(),
	}

	if err := t.link(cur.ID, child); err != nil {
		return nil, err
	}

	t.current = child.ID
	t.scheduleSave()

	return child, nil
}

// link registers child in the DAG under parent, rejecting anything that
// would create a cycle (structurally impossible via ApplyMerge alone, but
// Import can hand back an adversarial graph).
func (t *MergeTimeline) link(parentID string, child *StateSnapshot) error {
	t.graph.AddNode(child.ID)
	t.graph.AddEdge(parentID, child.ID)

	if _, ok := t.graph.Toposort(); !ok {
		return &TimelineError{Action: "link", Reason: "would introduce a cycle into the merge DAG"}
	}

	t.snapshots[child.ID] = child
	t.children[parentID] = append(t.children[parentID], child.ID)

	return nil
}

// Undo moves the timeline to the current snapshot's parent.
func (t *MergeTimeline) Undo() error {
	cur := t.Current()
	if cur.ParentID == "" {
		return &TimelineError{Action: "undo", Reason: "already at the root snapshot"}
	}

	t.current = cur.ParentID
	t.scheduleSave()

	return nil
}

// Redo moves forward to the current snapshot's only child. If the current
// snapshot has branched into more than one child, callers must disambiguate
// with RedoTo.
func (t *MergeTimeline) Redo() error {
	kids := t.children[t.current]

	switch len(kids) {
	case 0:
		return &TimelineError{Action: "redo", Reason: "no child snapshot to redo into"}
	case 1:
		t.current = kids[0]
		t.scheduleSave()

		return nil
	default:
		return &TimelineError{Action: "redo", Reason: "ambiguous: multiple branches, use RedoTo"}
	}
}

// RedoTo moves forward to a specific child snapshot id.
func (t *MergeTimeline) RedoTo(id string) error {
	for _, kid := range t.children[t.current] {
		if kid == id {
			t.current = id
			t.scheduleSave()

			return nil
		}
	}

	return &TimelineError{Action: "redo_to", Reason: fmt.Sprintf("%q is not a child of the current snapshot", id)}
}

// Branches returns every leaf snapshot id (no children) reachable from the
// root — the set of distinct merge histories a user has explored.
func (t *MergeTimeline) Branches() []string {
	var leaves []string

	for id := range t.snapshots {
		if len(t.children[id]) == 0 {
			leaves = append(leaves, id)
		}
	}

	return leaves
}

// Snapshots returns every snapshot the timeline holds, for export.
func (t *MergeTimeline) Snapshots() []*StateSnapshot {
	out := make([]*StateSnapshot, 0, len(t.snapshots))
	for _, s := range t.snapshots {
		out = append(out, s)
	}

	return out
}

func (t *MergeTimeline) scheduleSave() {
	if t.store == nil {
		return
	}

	if t.saveDebounce <= 0 {
		_ = t.store.Save(t.Snapshots(), t.current)
		return
	}

	if t.pendingSave != nil {
		t.pendingSave.Stop()
	}

	t.pendingSave = time.AfterFunc(t.saveDebounce, func() {
		_ = t.store.Save(t.Snapshots(), t.current)
	})
}

// Flush forces any debounced save to happen immediately, e.g. before
// process exit.
func (t *MergeTimeline) Flush() error {
	if t.pendingSave != nil {
		t.pendingSave.Stop()
		t.pendingSave = nil
	}

	if t.store == nil {
		return nil
	}

	return t.store.Save(t.Snapshots(), t.current)
}

// Load replaces the timeline's state with whatever store.Load returns,
// rebuilding the DAG and child index from the flat snapshot list.
func Load(store Store) (*MergeTimeline, error) {
	snapshots, current, err := store.Load()
	if err != nil {
		return nil, err
	}

	t := &MergeTimeline{
		snapshots: map[string]*StateSnapshot{},
		children:  map[string][]string{},
		graph:     toposort.NewGraph(),
		store:     store,
	}

	for _, s := range snapshots {
		t.graph.AddNode(s.ID)
		t.snapshots[s.ID] = s

		n := 0
		if _, err := fmt.Sscanf(s.ID, "s%d", &n); err == nil && n >= t.nextID {
			t.nextID = n + 1
		}
	}

	for _, s := range snapshots {
		if s.ParentID == "" {
			continue
		}

		t.graph.AddEdge(s.ParentID, s.ID)
		t.children[s.ParentID] = append(t.children[s.ParentID], s.ID)
	}

	if _, ok := t.graph.Toposort(); !ok {
		return nil, &TimelineError{Action: "load", Reason: "persisted merge DAG contains a cycle"}
	}

	t.current = current

	return t, nil
}
