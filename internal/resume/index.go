package resume

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// Index is the sorted set of identifiers already present in column 0 of an output
// store. It is built once and never mutated, so it may be shared between goroutines.
type Index struct {
	ids []string
	set map[string]struct{}
}

// New builds an index from ids. Duplicates collapse.
func New(ids ...string) *Index {
	idx := &Index{set: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if _, dup := idx.set[id]; dup {
			continue
		}
		idx.set[id] = struct{}{}
		idx.ids = append(idx.ids, id)
	}
	sort.Strings(idx.ids)
	return idx
}

// Load reads column 0 of the CSV at path, skipping the header row. A missing file is an
// empty index.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(), nil
		}
		return nil, common.PersistenceError(err, "open output for resume")
	}
	defer f.Close()
	return Read(f)
}

// Read builds an index from a CSV stream.
func Read(r io.Reader) (*Index, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	var ids []string
	header := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, common.PersistenceError(err, "read output for resume")
		}
		if header {
			header = false
			continue
		}
		if len(rec) == 0 {
			continue
		}
		if id := strings.TrimSpace(rec[0]); id != "" {
			ids = append(ids, id)
		}
	}
	return New(ids...), nil
}

func (i *Index) Contains(id string) bool {
	if i == nil {
		return false
	}
	_, ok := i.set[id]
	return ok
}

func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.ids)
}

// IDs returns a copy of the sorted identifiers.
func (i *Index) IDs() []string {
	if i == nil {
		return nil
	}
	return append([]string(nil), i.ids...)
}
