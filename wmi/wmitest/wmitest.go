// Package wmitest provides an in-memory wmi.Driver for tests.
package wmitest

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/42wim/wmix/wmi"
)

// Row is one WMI object: property name to value.
type Row map[string]wmi.Value

// Driver serves canned rows keyed by exact query text. Its exported error
// fields make the corresponding native call fail.
type Driver struct {
	LocatorErr error
	ConnectErr error
	BlanketErr error
	QueryErr   map[string]error

	// NextErr is returned by Next once NextErrAfter objects have been
	// handed out by an enumerator.
	NextErr      error
	NextErrAfter int

	mu        sync.Mutex
	tables    map[string][]Row
	resources []string
	batches   []int
	resets    int
	live      int
}

// NewDriver returns an empty Driver.
func NewDriver() *Driver {
	return &Driver{
		tables:   make(map[string][]Row),
		QueryErr: make(map[string]error),
	}
}

// AddTable registers the rows returned for query.
func (d *Driver) AddTable(query string, rows ...Row) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.tables[query] = rows

	return d
}

// Live returns the number of handles (locators, services, enumerators and
// object references) not yet released.
func (d *Driver) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.live
}

// Resources returns the object paths ConnectServer was called with.
func (d *Driver) Resources() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]string(nil), d.resources...)
}

// Batches returns the count argument of every Next call.
func (d *Driver) Batches() []int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]int(nil), d.batches...)
}

// Resets returns the number of enumerator Reset calls.
func (d *Driver) Resets() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.resets
}

func (d *Driver) acquire() {
	d.mu.Lock()
	d.live++
	d.mu.Unlock()
}

func (d *Driver) drop() {
	d.mu.Lock()
	d.live--
	d.mu.Unlock()
}

func (d *Driver) NewLocator() (wmi.Locator, error) {
	if d.LocatorErr != nil {
		return nil, d.LocatorErr
	}
	d.acquire()

	return &locator{d: d}, nil
}

type locator struct {
	d    *Driver
	once sync.Once
}

func (l *locator) ConnectServer(resource string) (wmi.Services, error) {
	l.d.mu.Lock()
	l.d.resources = append(l.d.resources, resource)
	l.d.mu.Unlock()

	if l.d.ConnectErr != nil {
		return nil, l.d.ConnectErr
	}
	l.d.acquire()

	return &services{d: l.d}, nil
}

func (l *locator) Release() {
	l.once.Do(l.d.drop)
}

type services struct {
	d    *Driver
	once sync.Once
}

func (s *services) SetProxyBlanket() error {
	return s.d.BlanketErr
}

func (s *services) ExecQuery(language, query string, flags wmi.QueryFlag) (wmi.Enumerator, error) {
	if language != "WQL" {
		return nil, errors.Wrapf(wmi.WBEM_E_INVALID_QUERY, "language %s", language)
	}

	if err := s.d.QueryErr[query]; err != nil {
		return nil, err
	}

	s.d.mu.Lock()
	rows, ok := s.d.tables[query]
	s.d.mu.Unlock()
	if !ok {
		return nil, errors.Wrapf(wmi.WBEM_E_INVALID_CLASS, "no table for %q", query)
	}
	s.d.acquire()

	return &enumerator{d: s.d, rows: rows}, nil
}

func (s *services) Release() {
	s.once.Do(s.d.drop)
}

type enumerator struct {
	d    *Driver
	rows []Row
	pos  int
	once sync.Once
}

func (e *enumerator) Reset() error {
	e.d.mu.Lock()
	e.d.resets++
	e.d.mu.Unlock()

	e.pos = 0

	return nil
}

func (e *enumerator) Next(timeout wmi.Timeout, count int) ([]wmi.Object, error) {
	e.d.mu.Lock()
	e.d.batches = append(e.d.batches, count)
	e.d.mu.Unlock()

	if e.d.NextErr != nil && e.pos >= e.d.NextErrAfter {
		return nil, e.d.NextErr
	}

	end := e.pos + count
	if end > len(e.rows) {
		end = len(e.rows)
	}
	if e.d.NextErr != nil && end > e.d.NextErrAfter {
		end = e.d.NextErrAfter
	}

	objs := make([]wmi.Object, 0, end-e.pos)
	for _, row := range e.rows[e.pos:end] {
		e.d.acquire()
		objs = append(objs, &object{d: e.d, row: row, refs: 1})
	}
	e.pos = end

	return objs, nil
}

func (e *enumerator) Release() {
	e.once.Do(e.d.drop)
}

type object struct {
	d    *Driver
	row  Row
	mu   sync.Mutex
	refs int
}

func (o *object) Get(name string) (wmi.Value, error) {
	v, ok := o.row[name]
	if !ok {
		return wmi.Value{}, errors.Wrapf(wmi.WBEM_E_NOT_FOUND, "property %s", name)
	}

	return v, nil
}

func (o *object) Names() ([]string, error) {
	names := make([]string, 0, len(o.row))
	for name := range o.row {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

func (o *object) AddRef() {
	o.mu.Lock()
	o.refs++
	o.mu.Unlock()

	o.d.acquire()
}

func (o *object) Release() {
	o.mu.Lock()
	if o.refs == 0 {
		o.mu.Unlock()
		panic("wmitest: object released more often than referenced")
	}
	o.refs--
	o.mu.Unlock()

	o.d.drop()
}
