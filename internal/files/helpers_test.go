package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// memBlobs is a write-once in-memory BlobStore with failure injection
type memBlobs struct {
	mu         sync.Mutex
	blobs      map[string][]byte
	removed    map[string]int
	failPut    error
	failDelete map[string]error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{
		blobs:      make(map[string][]byte),
		removed:    make(map[string]int),
		failDelete: make(map[string]error),
	}
}

func (m *memBlobs) Put(_ context.Context, key string, content io.Reader) (int64, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failPut != nil {
		return 0, m.failPut
	}
	if _, ok := m.blobs[key]; ok {
		return 0, fmt.Errorf("%w: %s", ErrCodeCollision, key)
	}
	m.blobs[key] = data
	return int64(len(data)), nil
}

func (m *memBlobs) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.blobs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memBlobs) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failDelete[key]; err != nil {
		return err
	}
	if _, ok := m.blobs[key]; ok {
		delete(m.blobs, key)
		m.removed[key]++
	}
	return nil
}

func (m *memBlobs) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.blobs[key]
	return ok
}

func (m *memBlobs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.blobs)
}

func (m *memBlobs) removals(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.removed[key]
}

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// scriptedGenerator returns codes in order, then repeats the last one
type scriptedGenerator struct {
	mu    sync.Mutex
	codes []string
}

func (g *scriptedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	code := g.codes[0]
	if len(g.codes) > 1 {
		g.codes = g.codes[1:]
	}
	return code
}

type progressEvent struct {
	sessionID string
	percent   int
	phase     Phase
}

type recordingNotifier struct {
	mu        sync.Mutex
	progress  []progressEvent
	completed []string
}

func (n *recordingNotifier) NotifyProgress(sessionID string, percent int, phase Phase) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.progress = append(n.progress, progressEvent{sessionID, percent, phase})
}

func (n *recordingNotifier) NotifyComplete(sessionID, code, fileName string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, sessionID+"/"+code+"/"+fileName)
}

// memJournal is an in-memory Journal
type memJournal struct {
	mu      sync.Mutex
	files   map[string]File
	failAll bool
}

func newMemJournal() *memJournal {
	return &memJournal{files: make(map[string]File)}
}

func (j *memJournal) Save(_ context.Context, file File) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.failAll {
		return errors.New("journal unavailable")
	}
	j.files[file.Code] = file
	return nil
}

func (j *memJournal) Delete(_ context.Context, code string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.files, code)
	return nil
}

func (j *memJournal) List(_ context.Context) ([]File, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var list []File
	for _, f := range j.files {
		list = append(list, f)
	}
	return list, nil
}

func (j *memJournal) has(code string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.files[code]
	return ok
}
