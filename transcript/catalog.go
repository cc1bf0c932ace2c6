package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"sita/core"
)

const (
	sessionPrefix     = "session_"
	sessionExt        = ".txt"
	sessionTimeLayout = "20060102_150405"
	maxSameSecond     = 1000
)

// SessionRef names one transcript file in the catalog.
type SessionRef struct {
	Name      string    `json:"name"` // file name, e.g. session_20260101_120000.txt
	Path      string    `json:"path"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	Seq       int       `json:"seq"` // 1 for the first session of a given second
}

// Catalog is the directory holding every session transcript.
type Catalog struct {
	Dir string
}

func NewCatalog(dir string) (*Catalog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &core.PersistenceError{Op: "mkdir", Path: dir, Err: err}
	}
	return &Catalog{Dir: dir}, nil
}

// SessionName builds a catalog file name. Seq values above 1 get a "_N" suffix.
func SessionName(createdAt time.Time, seq int) string {
	name := sessionPrefix + createdAt.Format(sessionTimeLayout)
	if seq > 1 {
		name += "_" + strconv.Itoa(seq)
	}
	return name + sessionExt
}

// ParseSessionName is the inverse of SessionName. Times are interpreted in the local zone.
func ParseSessionName(name string) (SessionRef, bool) {
	if !strings.HasPrefix(name, sessionPrefix) || !strings.HasSuffix(name, sessionExt) {
		return SessionRef{}, false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(name, sessionPrefix), sessionExt)
	if len(id) < len(sessionTimeLayout) {
		return SessionRef{}, false
	}
	createdAt, err := time.ParseInLocation(sessionTimeLayout, id[:len(sessionTimeLayout)], time.Local)
	if err != nil {
		return SessionRef{}, false
	}

	seq := 1
	if rest := id[len(sessionTimeLayout):]; rest != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(rest, "_"))
		if err != nil || !strings.HasPrefix(rest, "_") || n < 2 {
			return SessionRef{}, false
		}
		seq = n
	}
	return SessionRef{Name: name, SessionID: id, CreatedAt: createdAt, Seq: seq}, true
}

// SessionIDFromPath returns the session id embedded in a catalog file name, or the bare
// file name for transcripts that live elsewhere.
func SessionIDFromPath(path string) string {
	base := filepath.Base(path)
	if ref, ok := ParseSessionName(base); ok {
		return ref.SessionID
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Create reserves a new, empty transcript file named after now.
func (c *Catalog) Create(now time.Time) (SessionRef, error) {
	now = now.Truncate(time.Second)
	for seq := 1; seq <= maxSameSecond; seq++ {
		name := SessionName(now, seq)
		path := filepath.Join(c.Dir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return SessionRef{}, &core.PersistenceError{Op: "create", Path: path, Err: err}
		}
		f.Close()

		ref, _ := ParseSessionName(name)
		ref.Path = path
		return ref, nil
	}
	return SessionRef{}, fmt.Errorf("catalog: more than %d sessions at %s", maxSameSecond, now.Format(sessionTimeLayout))
}

// List returns every session, most recent first.
func (c *Catalog) List() ([]SessionRef, error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SessionRef{}, nil
		}
		return nil, &core.PersistenceError{Op: "list", Path: c.Dir, Err: err}
	}

	refs := make([]SessionRef, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ref, ok := ParseSessionName(entry.Name())
		if !ok {
			continue
		}
		ref.Path = filepath.Join(c.Dir, entry.Name())
		refs = append(refs, ref)
	}

	sort.Slice(refs, func(i, j int) bool {
		if !refs[i].CreatedAt.Equal(refs[j].CreatedAt) {
			return refs[i].CreatedAt.After(refs[j].CreatedAt)
		}
		return refs[i].Seq > refs[j].Seq
	})
	return refs, nil
}

// Resolve looks up a session by file name.
func (c *Catalog) Resolve(name string) (SessionRef, error) {
	if name != filepath.Base(name) || strings.Contains(name, "..") {
		return SessionRef{}, &core.NotFoundError{Resource: "session", Name: name}
	}
	ref, ok := ParseSessionName(name)
	if !ok {
		return SessionRef{}, &core.NotFoundError{Resource: "session", Name: name}
	}
	ref.Path = filepath.Join(c.Dir, name)
	if _, err := os.Stat(ref.Path); err != nil {
		return SessionRef{}, &core.NotFoundError{Resource: "session", Name: name}
	}
	return ref, nil
}
