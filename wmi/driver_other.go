//go:build !windows

package wmi

// DefaultDriver fails every call with ErrNotSupported outside Windows.
var DefaultDriver Driver = unsupportedDriver{}

type unsupportedDriver struct{}

func (unsupportedDriver) NewLocator() (Locator, error) {
	return nil, ErrNotSupported
}
