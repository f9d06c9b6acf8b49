package wmi

// QueryFlag is a WBEM_GENERIC_FLAG_TYPE bit set passed to ExecQuery.
type QueryFlag uint32

const (
	WBEM_FLAG_RETURN_IMMEDIATELY QueryFlag = 0x10
	WBEM_FLAG_FORWARD_ONLY       QueryFlag = 0x20
)

// Timeout is the wait passed to IEnumWbemClassObject::Next, in milliseconds.
type Timeout uint32

const (
	WBEM_NO_WAIT  Timeout = 0
	WBEM_INFINITE Timeout = 0xFFFFFFFF
)

// Driver is the native WMI surface a Session is built on. DefaultDriver
// talks to COM on Windows; package wmitest provides an in-memory one.
//
// Every handle returned by a Driver is owned by the caller and must be
// released exactly once.
type Driver interface {
	NewLocator() (Locator, error)
}

// Locator mirrors IWbemLocator.
type Locator interface {
	ConnectServer(resource string) (Services, error)
	Release()
}

// Services mirrors IWbemServices.
type Services interface {
	// SetProxyBlanket applies the impersonation security used for calls
	// on this proxy.
	SetProxyBlanket() error
	ExecQuery(language, query string, flags QueryFlag) (Enumerator, error)
	Release()
}

// Enumerator mirrors IEnumWbemClassObject.
type Enumerator interface {
	Reset() error
	// Next returns up to count objects. A short or empty batch with a nil
	// error means the enumeration is complete.
	Next(timeout Timeout, count int) ([]Object, error)
	Release()
}

// Object mirrors IWbemClassObject.
type Object interface {
	Get(name string) (Value, error)
	// Names lists the non-system property names.
	Names() ([]string, error)
	AddRef()
	Release()
}
