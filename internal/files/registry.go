package files

import (
	"fmt"
	"sync"
	"time"
)

// Registry is the concurrent in-memory mapping from access code to File.
// Insert and Remove are linearizable: for a given code exactly one Insert
// wins and exactly one Remove returns the record.
type Registry struct {
	mu    sync.RWMutex
	files map[string]File
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{files: make(map[string]File)}
}

// Insert adds file under its code. It fails with ErrCodeCollision if the code
// is already present.
func (r *Registry) Insert(file File) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.files[file.Code]; ok {
		return fmt.Errorf("%w: %s", ErrCodeCollision, file.Code)
	}
	r.files[file.Code] = file
	activeFiles.Inc()
	return nil
}

// Get returns the record for code without interpreting expiry
func (r *Registry) Get(code string) (File, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	file, ok := r.files[code]
	return file, ok
}

// Contains reports whether code is live
func (r *Registry) Contains(code string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.files[code]
	return ok
}

// Remove deletes the record for code and hands it to the caller. Under
// concurrent calls only one receives ok == true; that caller owns blob cleanup.
func (r *Registry) Remove(code string) (File, bool) {
	return r.RemoveIf(code, nil)
}

// RemoveIf is Remove that only fires when match accepts the current record.
// A nil match accepts any record.
func (r *Registry) RemoveIf(code string, match func(File) bool) (File, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	file, ok := r.files[code]
	if !ok || (match != nil && !match(file)) {
		return File{}, false
	}
	delete(r.files, code)
	activeFiles.Dec()

	file.Available = false
	return file, true
}

// Len returns the number of live records
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.files)
}

// ScanExpired returns the records expired at now. The result is a candidate
// list; removal must still go through Remove.
func (r *Registry) ScanExpired(now time.Time) []File {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var expired []File
	for _, file := range r.files {
		if file.Expired(now) {
			expired = append(expired, file)
		}
	}
	return expired
}
