package wmi

import (
	"log/slog"
	"sync"

	"github.com/pkg/errors"
)

// Record is one object of a result set.
//
// Records handed out by an Iterator are owned by it and released on the
// next Advance; Clone returns a copy the caller owns and must Close.
type Record struct {
	session *Session
	obj     Object

	mu     sync.RWMutex
	closed bool
}

// newRecord takes ownership of obj. The session must be alive.
func newRecord(s *Session, obj Object) *Record {
	s.refs.Add(1)

	return &Record{session: s, obj: obj}
}

func (r *Record) logger() *slog.Logger {
	return r.session.log
}

// Property returns the raw value of name. It reports false when the object
// has no such property or the record has been closed.
func (r *Record) Property(name string) (Value, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return Value{}, false
	}

	v, err := r.obj.Get(name)
	if err != nil {
		r.logger().Debug("property lookup failed", "property", name, "err", err)
		return Value{}, false
	}

	return v, true
}

// Names lists the non-system property names of the object.
func (r *Record) Names() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, errors.New("wmi: record has been closed")
	}

	names, err := r.obj.Names()
	if err != nil {
		return nil, errors.Wrap(err, "wmi: list property names")
	}

	return names, nil
}

// Clone returns an independently owned reference to the same object.
func (r *Record) Clone() *Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return &Record{session: r.session, closed: true}
	}

	r.obj.AddRef()

	return newRecord(r.session, r.obj)
}

// Close releases the object and the session reference. It is safe to call
// more than once.
func (r *Record) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	r.obj.Release()
	r.obj = nil
	r.session.release()

	return nil
}
