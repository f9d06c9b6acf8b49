//go:build windows

package wmi

import (
	"errors"

	"github.com/go-ole/go-ole"
	"golang.org/x/sys/windows"
)

const (
	rpcCAuthnLevelDefault   = 0
	rpcCAuthnDefault        = 0xFFFFFFFF
	rpcCAuthzNone           = 0
	rpcCImpLevelImpersonate = 3
	eoacNone                = 0
	coleDefaultPrincipal    = ^uintptr(0)
)

var (
	modole32    = windows.NewLazySystemDLL("ole32.dll")
	modoleaut32 = windows.NewLazySystemDLL("oleaut32.dll")

	procCoInitializeSecurity = modole32.NewProc("CoInitializeSecurity")
	procCoSetProxyBlanket    = modole32.NewProc("CoSetProxyBlanket")
	procSafeArrayGetElement  = modoleaut32.NewProc("SafeArrayGetElement")
)

func nativeCoInitializeEx(model ThreadingModel) HRESULT {
	return hresultOf(ole.CoInitializeEx(0, uint32(model)))
}

func nativeCoInitializeSecurity() HRESULT {
	hr, _, _ := procCoInitializeSecurity.Call(
		0,
		uintptr(rpcCAuthnDefault), // cAuthSvc: let COM choose
		0,
		0,
		uintptr(rpcCAuthnLevelDefault),
		uintptr(rpcCImpLevelImpersonate),
		0,
		uintptr(eoacNone),
		0)

	return HRESULT(uint32(hr))
}

func nativeCoUninitialize() {
	ole.CoUninitialize()
}

// hresultOf maps a go-ole error back to its status code.
func hresultOf(err error) HRESULT {
	if err == nil {
		return S_OK
	}

	var oleErr *ole.OleError
	if errors.As(err, &oleErr) {
		return HRESULT(uint32(oleErr.Code()))
	}

	return E_FAIL
}
