package wmi

import (
	"iter"
	"sync"

	"github.com/pkg/errors"
)

var errResultSetClosed = errors.New("wmi: result set has been closed")

// ResultSet is the lazily enumerated result of ExecuteQuery. It is forward
// only: iterators obtained from Begin share the same native enumerator.
type ResultSet struct {
	session *Session
	query   string
	enum    Enumerator

	mu     sync.Mutex
	iters  map[*Iterator]struct{}
	closed bool
}

func newResultSet(s *Session, query string, enum Enumerator) *ResultSet {
	return &ResultSet{
		session: s,
		query:   query,
		enum:    enum,
		iters:   make(map[*Iterator]struct{}),
	}
}

// Query returns the WQL text the result set was produced by.
func (rs *ResultSet) Query() string {
	return rs.query
}

// Begin rewinds the enumerator and returns an iterator positioned on the
// first record, or an exhausted one if there is none.
func (rs *ResultSet) Begin() *Iterator {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	it := &Iterator{rs: rs}
	if rs.closed {
		it.err = errResultSetClosed
		it.done = true

		return it
	}

	if err := rs.enum.Reset(); err != nil {
		// Forward-only enumerators may refuse to rewind; Next still works.
		rs.session.log.Debug("enumerator reset failed", "query", rs.query, "err", err)
	}

	it.fetch()
	if !it.done {
		rs.iters[it] = struct{}{}
	}

	return it
}

// End returns the exhausted sentinel iterator.
func (rs *ResultSet) End() *Iterator {
	return &Iterator{rs: rs, done: true}
}

// All iterates the records from Begin. Each yielded record is valid only
// for the duration of the loop body unless cloned.
func (rs *ResultSet) All() iter.Seq[*Record] {
	return func(yield func(*Record) bool) {
		it := rs.Begin()
		defer it.Close()

		for ; !it.Done(); it.Advance() {
			if !yield(it.Record()) {
				return
			}
		}
	}
}

// Each calls fn for every record from Begin. It stops at the first error
// from fn and returns it; otherwise it returns the error, if any, that
// ended the enumeration early.
func (rs *ResultSet) Each(fn func(*Record) error) error {
	it := rs.Begin()
	defer it.Close()

	for ; !it.Done(); it.Advance() {
		if err := fn(it.Record()); err != nil {
			return err
		}
	}

	return it.Err()
}

// Close releases the enumerator, the records still buffered by open
// iterators and the session reference. It is safe to call more than once.
func (rs *ResultSet) Close() error {
	rs.mu.Lock()
	if rs.closed {
		rs.mu.Unlock()
		return nil
	}
	rs.closed = true

	iters := make([]*Iterator, 0, len(rs.iters))
	for it := range rs.iters {
		iters = append(iters, it)
	}
	rs.iters = nil
	rs.mu.Unlock()

	for _, it := range iters {
		it.drop()
	}

	rs.enum.Release()
	rs.session.release()

	return nil
}

func (rs *ResultSet) forget(it *Iterator) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	delete(rs.iters, it)
}

// Iterator walks a ResultSet one record at a time, fetching batches of
// objects from the native enumerator as needed.
type Iterator struct {
	rs    *ResultSet
	batch []*Record
	pos   int
	done  bool
	err   error
}

// Done reports whether the iterator is exhausted.
func (it *Iterator) Done() bool {
	return it.done
}

// Record returns the current record, or nil once exhausted. The record is
// released by the next Advance.
func (it *Iterator) Record() *Record {
	if it.done {
		return nil
	}

	return it.batch[it.pos]
}

// Advance moves to the next record, fetching a new batch when the current
// one is used up. A failed or empty fetch exhausts the iterator.
func (it *Iterator) Advance() {
	if it.done {
		return
	}

	it.batch[it.pos].Close()
	it.batch[it.pos] = nil
	it.pos++

	if it.pos >= len(it.batch) {
		it.fetch()
		if it.done {
			it.rs.forget(it)
		}
	}
}

// Equal reports whether both iterators are exhausted. Two iterators that
// still have records are never equal, whatever their position.
func (it *Iterator) Equal(other *Iterator) bool {
	return other != nil && it.done && other.done
}

// Err returns the enumerator failure that ended iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Close releases the records still buffered and exhausts the iterator.
func (it *Iterator) Close() error {
	if it.done {
		return nil
	}

	it.drop()
	it.rs.forget(it)

	return nil
}

func (it *Iterator) fetch() {
	it.batch = it.batch[:0]
	it.pos = 0

	s := it.rs.session
	objs, err := it.rs.enum.Next(WBEM_INFINITE, s.batchSize)
	if err != nil {
		s.log.Warn("enumerator fetch failed", "query", it.rs.query, "err", err)
		it.err = err
	}

	if err != nil || len(objs) == 0 {
		it.done = true
		return
	}

	for _, obj := range objs {
		it.batch = append(it.batch, newRecord(s, obj))
	}
}

// drop releases unread records without touching the result set.
func (it *Iterator) drop() {
	for i := it.pos; i < len(it.batch); i++ {
		if it.batch[i] != nil {
			it.batch[i].Close()
		}
	}

	it.batch = nil
	it.pos = 0
	it.done = true
}
