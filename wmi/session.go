package wmi

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
)

const (
	// DefaultNamespace is used by Connect when no namespace is given.
	DefaultNamespace = "cimv2"

	// BatchSize is the number of objects requested per enumerator fetch.
	BatchSize = 10

	queryLanguage = "WQL"
)

// Option configures a Session.
type Option func(*Session)

// WithDriver replaces DefaultDriver.
func WithDriver(d Driver) Option {
	return func(s *Session) {
		if d != nil {
			s.driver = d
		}
	}
}

// WithLogger sets the logger used for diagnostics on the session and on
// everything derived from it.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithBatchSize overrides BatchSize. Values below one are ignored.
func WithBatchSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// Session is a connection to one WMI namespace.
//
// A Session is reference counted: Connect returns it holding one reference
// and every ResultSet and Record derived from it holds another. The native
// handles are released when the last reference goes away, so Close may be
// called while results are still being read.
type Session struct {
	namespace string
	resource  string
	batchSize int
	driver    Driver
	log       *slog.Logger

	locator  Locator
	services Services

	refs   atomic.Int32
	closed atomic.Bool
}

// ResourcePath returns the object path ConnectServer is called with. Short
// names are placed under \\.\root\; paths that already start with root\ or
// name a server (\\host\...) are used as given.
func ResourcePath(namespace string) string {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	lower := strings.ToLower(namespace)
	if strings.HasPrefix(namespace, `\\`) || strings.HasPrefix(lower, `root\`) || lower == "root" {
		return namespace
	}

	return `\\.\root\` + namespace
}

// Connect opens a session on namespace ("cimv2" when empty). Either a fully
// usable Session or an *Error is returned; handles acquired before a
// failing step are released.
func Connect(namespace string, opts ...Option) (*Session, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	s := &Session{
		namespace: namespace,
		resource:  ResourcePath(namespace),
		batchSize: BatchSize,
		driver:    DefaultDriver,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	locator, err := s.driver.NewLocator()
	if err != nil {
		return nil, newError(KindConnect,
			"Failed to create WbemLocator object",
			"Check if WMI service is available", err)
	}

	services, err := locator.ConnectServer(s.resource)
	if err != nil {
		locator.Release()

		return nil, newError(KindConnect,
			fmt.Sprintf("Could not connect to WMI namespace '%s'", namespace),
			"Verify namespace exists and access permissions", err)
	}

	if err := services.SetProxyBlanket(); err != nil {
		services.Release()
		locator.Release()

		return nil, newError(KindSecurity,
			"Could not set proxy blanket for WMI connection",
			"Authentication may have failed", err)
	}

	s.locator = locator
	s.services = services
	s.refs.Store(1)

	s.log.Debug("connected", "resource", s.resource)

	return s, nil
}

// Namespace returns the namespace the session was opened with.
func (s *Session) Namespace() string {
	return s.namespace
}

// ExecuteQuery submits a WQL query and returns its lazily enumerated
// results. The query text is passed through unvalidated.
func (s *Session) ExecuteQuery(query string) (*ResultSet, error) {
	if s.closed.Load() || !s.retain() {
		return nil, errors.WithStack(ErrSessionClosed)
	}

	enum, err := s.services.ExecQuery(queryLanguage, query,
		WBEM_FLAG_FORWARD_ONLY|WBEM_FLAG_RETURN_IMMEDIATELY)
	if err != nil {
		s.release()

		return nil, newError(KindQuery,
			fmt.Sprintf("WQL query execution failed for query: '%s'", query),
			"Check query syntax and target class availability", err)
	}

	s.log.Debug("query submitted", "query", query)

	return newResultSet(s, query, enum), nil
}

// Query runs query and decodes every record into dst, which must point to
// a slice of structs or of struct pointers. Records are decoded leniently;
// see Record.Decode.
func (s *Session) Query(query string, dst interface{}) error {
	dv := reflect.ValueOf(dst)
	if dv.Kind() != reflect.Ptr || dv.IsNil() || dv.Elem().Kind() != reflect.Slice {
		return errors.Errorf("wmi: Query destination must be a pointer to a slice, got %T", dst)
	}

	slice := dv.Elem()
	elemType := slice.Type().Elem()
	isPtr := elemType.Kind() == reflect.Ptr
	if isPtr {
		elemType = elemType.Elem()
	}
	if elemType.Kind() != reflect.Struct {
		return errors.Errorf("wmi: Query destination element must be a struct, got %s", elemType)
	}

	rs, err := s.ExecuteQuery(query)
	if err != nil {
		return err
	}
	defer rs.Close()

	slice.SetLen(0)
	return rs.Each(func(r *Record) error {
		ev := reflect.New(elemType)
		if err := r.Decode(ev.Interface()); err != nil {
			return err
		}

		if isPtr {
			slice.Set(reflect.Append(slice, ev))
		} else {
			slice.Set(reflect.Append(slice, ev.Elem()))
		}

		return nil
	})
}

// Close drops the caller's reference. Further ExecuteQuery calls fail with
// ErrSessionClosed; results obtained earlier stay readable until they are
// closed too.
func (s *Session) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.release()
	}

	return nil
}

func (s *Session) retain() bool {
	for {
		n := s.refs.Load()
		if n <= 0 {
			return false
		}
		if s.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (s *Session) release() {
	if s.refs.Add(-1) != 0 {
		return
	}

	s.services.Release()
	s.locator.Release()
	s.log.Debug("session released", "resource", s.resource)
}
