package wmi

import (
	stderrors "errors"
	"fmt"

	"github.com/go-ole/go-ole"
	"github.com/pkg/errors"
)

// HRESULT is a COM status code.
type HRESULT uint32

// Status codes returned by COM and WMI that this package tells apart.
const (
	S_OK                     HRESULT = 0x00000000
	S_FALSE                  HRESULT = 0x00000001
	WBEM_S_FALSE             HRESULT = 0x00000001
	E_NOTIMPL                HRESULT = 0x80004001
	E_FAIL                   HRESULT = 0x80004005
	RPC_E_CHANGED_MODE       HRESULT = 0x80010106
	RPC_E_TOO_LATE           HRESULT = 0x80010119
	WBEM_E_FAILED            HRESULT = 0x80041001
	WBEM_E_NOT_FOUND         HRESULT = 0x80041002
	WBEM_E_ACCESS_DENIED     HRESULT = 0x80041003
	WBEM_E_INVALID_NAMESPACE HRESULT = 0x8004100E
	WBEM_E_INVALID_CLASS     HRESULT = 0x80041010
	WBEM_E_INVALID_QUERY     HRESULT = 0x80041017
)

// Failed reports whether hr is a failure code.
func (hr HRESULT) Failed() bool {
	return int32(hr) < 0
}

// Succeeded reports whether hr is a success code, including S_FALSE.
func (hr HRESULT) Succeeded() bool {
	return int32(hr) >= 0
}

func (hr HRESULT) Error() string {
	return fmt.Sprintf("HRESULT 0x%08X", uint32(hr))
}

// Kind classifies structural failures.
type Kind int

const (
	KindInitialize Kind = iota + 1
	KindSecurity
	KindConnect
	KindQuery
)

func (k Kind) String() string {
	switch k {
	case KindInitialize:
		return "initialize"
	case KindSecurity:
		return "security"
	case KindConnect:
		return "connect"
	case KindQuery:
		return "query"
	default:
		return "unknown"
	}
}

// Error is the single error type for structural failures: the COM runtime
// could not be initialized, a session could not be established or a query
// could not be submitted. It is never returned for per-property problems.
type Error struct {
	Kind    Kind
	Message string
	Hint    string
	Code    HRESULT
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return "wmi: " + e.Kind.String() + " error"
	}

	msg := e.Message
	if e.Hint != "" {
		msg += ". " + e.Hint
	}

	return fmt.Sprintf("%s (HRESULT: 0x%08X)", msg, uint32(e.Code))
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels (ErrInitialize, ErrConnect, ...) so that
// errors.Is(err, wmi.ErrConnect) works for every connect failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Message == "" && t.Kind == e.Kind
}

var (
	ErrInitialize = &Error{Kind: KindInitialize}
	ErrSecurity   = &Error{Kind: KindSecurity}
	ErrConnect    = &Error{Kind: KindConnect}
	ErrQuery      = &Error{Kind: KindQuery}

	// ErrNotSupported is returned by the default driver on platforms without
	// WMI.
	ErrNotSupported = stderrors.New("wmi: not supported on this platform")

	// ErrSessionClosed is returned for queries on a closed Session.
	ErrSessionClosed = stderrors.New("wmi: session has been closed")
)

func newError(kind Kind, message, hint string, cause error) error {
	return errors.WithStack(&Error{
		Kind:    kind,
		Message: message,
		Hint:    hint,
		Code:    codeOf(cause),
		Err:     cause,
	})
}

// codeOf extracts the status code carried by err.
func codeOf(err error) HRESULT {
	if err == nil {
		return S_OK
	}

	var hr HRESULT
	if stderrors.As(err, &hr) {
		return hr
	}

	var oleErr *ole.OleError
	if stderrors.As(err, &oleErr) {
		return HRESULT(uint32(oleErr.Code()))
	}

	if stderrors.Is(err, ErrNotSupported) {
		return E_NOTIMPL
	}

	return E_FAIL
}
