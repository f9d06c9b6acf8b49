//go:build !windows

package wmi

func nativeCoInitializeEx(ThreadingModel) HRESULT {
	return E_NOTIMPL
}

func nativeCoInitializeSecurity() HRESULT {
	return E_NOTIMPL
}

func nativeCoUninitialize() {}
