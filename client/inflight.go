package client

import (
	"context"
	"sync"

	"github.com/saiset-co/sai-request/types"
)

// Token identifies one registration. Only the live token may resolve its
// identity.
type Token struct {
	identity string
	seq      uint64
}

func (t *Token) Identity() string {
	return t.identity
}

type inflightHandle struct {
	token  *Token
	cancel context.CancelCauseFunc
}

// Registry holds at most one pending request per identity.
type Registry struct {
	mu      sync.Mutex
	seq     uint64
	handles map[string]*inflightHandle
}

func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]*inflightHandle)}
}

// Register cancels any pending request for identity with
// types.ErrRequestSuperseded, then records the new one. The returned context
// is cancelled when the registration is superseded or cancelled.
func (r *Registry) Register(parent context.Context, identity string) (context.Context, *Token) {
	ctx, cancel := context.WithCancelCause(parent)

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.handles[identity]; ok {
		prev.cancel(types.ErrRequestSuperseded)
	}

	r.seq++
	token := &Token{identity: identity, seq: r.seq}
	r.handles[identity] = &inflightHandle{token: token, cancel: cancel}

	return ctx, token
}

// Resolve removes the handle if token is still the live one for identity and
// reports whether it was.
func (r *Registry) Resolve(identity string, token *Token) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.handles[identity]
	if !ok || current.token != token {
		return false
	}

	delete(r.handles, identity)
	current.cancel(nil)

	return true
}

// Cancel aborts the pending request for identity, if any.
func (r *Registry) Cancel(identity string, cause error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.handles[identity]
	if !ok {
		return false
	}

	delete(r.handles, identity)
	current.cancel(cause)

	return true
}

// CancelAll aborts every pending request and empties the registry.
func (r *Registry) CancelAll(reason string) int {
	cause := types.Errorf(types.ErrRequestCancelled, "%s", reason)

	r.mu.Lock()
	defer r.mu.Unlock()

	count := len(r.handles)
	for identity, h := range r.handles {
		h.cancel(cause)
		delete(r.handles, identity)
	}

	return count
}

func (r *Registry) Pending(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.handles[identity]
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.handles)
}
