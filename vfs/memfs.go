package vfs

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process fake FS used by disk tier tests so they don't
// touch a real directory. Renames and writes are applied under a single
// mutex, so from the caller's point of view they are atomic.
type Memory struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool
}

// NewMemory returns an empty in-memory filesystem rooted at "/".
func NewMemory() *Memory {
	return &Memory{
		files: make(map[string][]byte),
		dirs:  map[string]bool{"/": true},
	}
}

func (m *Memory) MkdirAll(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range parents(p) {
		m.dirs[d] = true
	}
	return nil
}

func parents(p string) []string {
	p = path.Clean(p)
	var out []string
	for p != "/" && p != "." {
		out = append(out, p)
		p = path.Dir(p)
	}
	out = append(out, "/")
	return out
}

func (m *Memory) WriteFile(p string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.files[path.Clean(p)] = cp
	return nil
}

func (m *Memory) ReadFile(p string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path.Clean(p)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, fs.ErrNotExist)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (m *Memory) Rename(oldPath, newPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	oldPath, newPath = path.Clean(oldPath), path.Clean(newPath)
	data, ok := m.files[oldPath]
	if !ok {
		return fmt.Errorf("%s: %w", oldPath, fs.ErrNotExist)
	}
	m.files[newPath] = data
	delete(m.files, oldPath)
	return nil
}

func (m *Memory) Remove(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path.Clean(p))
	return nil
}

func (m *Memory) RemoveAll(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := path.Clean(p) + "/"
	for k := range m.files {
		if k == path.Clean(p) || strings.HasPrefix(k, prefix) {
			delete(m.files, k)
		}
	}
	for d := range m.dirs {
		if d == path.Clean(p) || strings.HasPrefix(d, prefix) {
			delete(m.dirs, d)
		}
	}
	return nil
}

func (m *Memory) ListDir(p string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := path.Clean(p) + "/"
	seen := map[string]bool{}
	var names []string
	for k := range m.files {
		if strings.HasPrefix(k, prefix) {
			rest := strings.TrimPrefix(k, prefix)
			name := strings.SplitN(rest, "/", 2)[0]
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) Stat(p string) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = path.Clean(p)
	if data, ok := m.files[p]; ok {
		return Info{Size: int64(len(data))}, nil
	}
	if m.dirs[p] {
		return Info{IsDir: true}, nil
	}
	return Info{}, fmt.Errorf("%s: %w", p, fs.ErrNotExist)
}

func (m *Memory) TempFile(dir, pattern string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := path.Join(dir, strings.Replace(pattern, "*", uuid.NewString(), 1))
	m.files[name] = nil
	return name, nil
}
