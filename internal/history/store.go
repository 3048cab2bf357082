package history

import (
	"gopkg.in/yaml.v3"

	"github.com/amscore/gcodeslots/pkg/persist"
)

// timelineDoc is the flat, codec-friendly shape a MergeTimeline round-trips
// through — snapshots don't reference each other by pointer so any Codec
// (JSON, gob, or the YAML export below) can serialize them directly.
type timelineDoc struct {
	Snapshots []*StateSnapshot
	Current   string
}

// FileStore persists a timeline under dir/basename<ext> using the given
// Codec (pkg/persist's JSONCodec or GobCodec).
type FileStore struct {
	dir       string
	persister *persist.Persister[timelineDoc]
}

// NewFileStore creates a Store backed by pkg/persist.
func NewFileStore(dir, basename string, codec persist.Codec) *FileStore {
	return &FileStore{dir: dir, persister: persist.NewPersister[timelineDoc](basename, codec)}
}

func (f *FileStore) Save(snapshots []*StateSnapshot, current string) error {
	return f.persister.Save(f.dir, func() *timelineDoc {
		return &timelineDoc{Snapshots: snapshots, Current: current}
	})
}

func (f *FileStore) Load() ([]*StateSnapshot, string, error) {
	var doc timelineDoc

	err := f.persister.Load(f.dir, func(d *timelineDoc) { doc = *d })
	if err != nil {
		return nil, "", err
	}

	return doc.Snapshots, doc.Current, nil
}

// ExportYAML renders a timeline's full snapshot list as YAML, for the
// "history export" CLI command.
func ExportYAML(t *MergeTimeline) ([]byte, error) {
	doc := timelineDoc{Snapshots: t.Snapshots(), Current: t.current}

	return yaml.Marshal(doc)
}

// ImportYAML rebuilds a timeline from a previously exported YAML document.
func ImportYAML(data []byte, store Store) (*MergeTimeline, error) {
	var doc timelineDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	return rebuild(doc.Snapshots, doc.Current, store)
}

// rebuild is the shared reconstruction path Load and ImportYAML both use.
func rebuild(snapshots []*StateSnapshot, current string, store Store) (*MergeTimeline, error) {
	memStore := &memoryStore{snapshots: snapshots, current: current}

	t, err := Load(memStore)
	if err != nil {
		return nil, err
	}

	t.store = store

	return t, nil
}

// memoryStore adapts an in-memory snapshot list to the Store interface so
// Load's reconstruction logic can be reused by ImportYAML.
type memoryStore struct {
	snapshots []*StateSnapshot
	current   string
}

func (m *memoryStore) Save([]*StateSnapshot, string) error { return nil }

func (m *memoryStore) Load() ([]*StateSnapshot, string, error) {
	return m.snapshots, m.current, nil
}
