package notify

import (
	"sync"
	"time"

	"github.com/saiset-co/sai-request/types"
)

// Recorder keeps every notice in memory. Useful for headless callers that
// render notices themselves.
type Recorder struct {
	mu      sync.Mutex
	notices []types.Notice
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Notify(severity types.Severity, text string) {
	r.mu.Lock()
	r.notices = append(r.notices, types.Notice{Severity: severity, Text: text, Timestamp: time.Now()})
	r.mu.Unlock()
}

func (r *Recorder) Notices() []types.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]types.Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notices)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.notices = nil
	r.mu.Unlock()
}
