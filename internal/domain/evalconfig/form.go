package evalconfig

import (
	"sync"

	"github.com/google/uuid"
)

// Reader is the read-only view handed to results and submission consumers.
type Reader interface {
	Snapshot() EvaluationConfig
}

// Form holds the mutable configuration of one playground session.
type Form struct {
	mu  sync.RWMutex
	cfg EvaluationConfig
}

// NewForm starts a form from initial. The caller keeps no reference into the form.
func NewForm(initial EvaluationConfig) *Form {
	cfg := initial.Clone()
	if cfg.Files == nil {
		cfg.Files = []FileRef{}
	}
	return &Form{cfg: cfg}
}

// NewDefaultForm is NewForm(Defaults()).
func NewDefaultForm() *Form {
	return NewForm(Defaults())
}

// Snapshot returns a deep copy of the current configuration.
func (f *Form) Snapshot() EvaluationConfig {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cfg.Clone()
}

// Update edits a single field. A rejected value leaves the form unchanged and
// is reported as *FieldError.
func (f *Form) Update(field string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := f.cfg
	if err := setField(&next, field, value); err != nil {
		return err
	}
	f.cfg = next
	return nil
}

// Apply edits several fields at once. Either every value is accepted or none
// is; rejections are reported together as FieldErrors.
func (f *Form) Apply(values map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := f.cfg
	errs := FieldErrors{}
	for field, value := range values {
		if err := setField(&next, field, value); err != nil {
			errs.add(err)
		}
	}
	if len(errs) > 0 {
		return errs
	}
	f.cfg = next
	return nil
}

// AddFiles appends refs in the order given.
func (f *Form) AddFiles(refs ...FileRef) {
	if len(refs) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	files := make([]FileRef, 0, len(f.cfg.Files)+len(refs))
	files = append(files, f.cfg.Files...)
	files = append(files, refs...)
	f.cfg.Files = files
}

// RemoveFile drops the file with id, keeping the order of the rest.
func (f *Form) RemoveFile(id uuid.UUID) (FileRef, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.cfg.FileIndex(id)
	if idx < 0 {
		return FileRef{}, false
	}
	removed := f.cfg.Files[idx]
	files := make([]FileRef, 0, len(f.cfg.Files)-1)
	files = append(files, f.cfg.Files[:idx]...)
	files = append(files, f.cfg.Files[idx+1:]...)
	f.cfg.Files = files
	return removed, true
}

// Reset restores every parameter to its default. Uploaded files are kept.
func (f *Form) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	files := f.cfg.Files
	f.cfg = Defaults()
	f.cfg.Files = files
}

var _ Reader = (*Form)(nil)
