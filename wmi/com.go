package wmi

import (
	"runtime"
	"sync"

	"github.com/go-ole/go-ole"
)

// ThreadingModel selects the COM apartment joined by InitializeCOM.
type ThreadingModel uint32

const (
	MultiThreaded     ThreadingModel = ole.COINIT_MULTITHREADED
	ApartmentThreaded ThreadingModel = ole.COINIT_APARTMENTTHREADED
)

func (m ThreadingModel) String() string {
	switch m {
	case MultiThreaded:
		return "multithreaded"
	case ApartmentThreaded:
		return "apartment"
	default:
		return "unknown"
	}
}

// Native entry points, replaced in tests.
var (
	coInitializeEx       = nativeCoInitializeEx
	coInitializeSecurity = nativeCoInitializeSecurity
	coUninitialize       = nativeCoUninitialize
)

// COM is a scoped acquisition of the COM runtime for the calling goroutine.
//
// InitializeCOM locks the goroutine to its OS thread; Close must be called
// from the same goroutine. A COM value must not be copied.
type COM struct {
	noCopy noCopy

	mu          sync.Mutex
	initialized bool
	closed      bool
}

// InitializeCOM initializes COM with the given threading model and sets the
// process default security (default authentication, impersonate).
//
// A thread that was already initialized with a different model is not an
// error; the guard is returned with Initialized() == false and will not
// uninitialize on Close. Security that was already set is not an error
// either.
func InitializeCOM(model ThreadingModel) (*COM, error) {
	runtime.LockOSThread()

	c := &COM{}

	hr := coInitializeEx(model)
	switch {
	case hr.Succeeded():
		c.initialized = true
	case hr == RPC_E_CHANGED_MODE:
	default:
		runtime.UnlockOSThread()
		return nil, newError(KindInitialize, "Failed to initialize COM library", "", hr)
	}

	hr = coInitializeSecurity()
	if hr.Failed() && hr != RPC_E_TOO_LATE {
		if c.initialized {
			coUninitialize()
			c.initialized = false
		}
		runtime.UnlockOSThread()

		return nil, newError(KindSecurity, "Failed to initialize COM security", "", hr)
	}

	return c, nil
}

// Initialized reports whether this guard performed the initialization and
// will undo it on Close.
func (c *COM) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.initialized
}

// Close releases COM if this guard initialized it and unlocks the OS
// thread. Calling Close more than once is a no-op.
func (c *COM) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.initialized {
		coUninitialize()
		c.initialized = false
	}
	runtime.UnlockOSThread()

	return nil
}

// noCopy trips go vet's copylocks check.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
