//go:build windows

package wmi

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"github.com/go-ole/go-ole"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/scjalliance/comshim"
)

var (
	clsidWbemLocator = ole.NewGUID("4590f811-1d3a-11d0-891f-00aa004b2e24")
	iidIWbemLocator  = ole.NewGUID("dc12a687-737f-11cf-884d-00aa004b2e24")
)

// GetNames flags: every property, system ones excluded.
const (
	wbemFlagAlways        = 0
	wbemFlagNonsystemOnly = 0x40
)

// DefaultDriver calls into COM through the WbemLocator vtables.
var DefaultDriver Driver = comDriver{}

type iWbemLocatorVtbl struct {
	QueryInterface uintptr
	AddRef         uintptr
	Release        uintptr
	ConnectServer  uintptr
}

type iWbemServicesVtbl struct {
	QueryInterface             uintptr
	AddRef                     uintptr
	Release                    uintptr
	OpenNamespace              uintptr
	CancelAsyncCall            uintptr
	QueryObjectSink            uintptr
	GetObject                  uintptr
	GetObjectAsync             uintptr
	PutClass                   uintptr
	PutClassAsync              uintptr
	DeleteClass                uintptr
	DeleteClassAsync           uintptr
	CreateClassEnum            uintptr
	CreateClassEnumAsync       uintptr
	PutInstance                uintptr
	PutInstanceAsync           uintptr
	DeleteInstance             uintptr
	DeleteInstanceAsync        uintptr
	CreateInstanceEnum         uintptr
	CreateInstanceEnumAsync    uintptr
	ExecQuery                  uintptr
	ExecQueryAsync             uintptr
	ExecNotificationQuery      uintptr
	ExecNotificationQueryAsync uintptr
	ExecMethod                 uintptr
	ExecMethodAsync            uintptr
}

type iEnumWbemClassObjectVtbl struct {
	QueryInterface uintptr
	AddRef         uintptr
	Release        uintptr
	Reset          uintptr
	Next           uintptr
	NextAsync      uintptr
	Clone          uintptr
	Skip           uintptr
}

// Only the leading entries are called; the table is longer.
type iWbemClassObjectVtbl struct {
	QueryInterface  uintptr
	AddRef          uintptr
	Release         uintptr
	GetQualifierSet uintptr
	Get             uintptr
	Put             uintptr
	Delete          uintptr
	GetNames        uintptr
}

type comDriver struct{}

func (comDriver) NewLocator() (l Locator, err error) {
	// The shim keeps an MTA thread alive for as long as a locator exists.
	comshim.Add(1)
	defer func() {
		if err != nil {
			comshim.Done()
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			err = multierror.Append(err, fmt.Errorf("runtime panic; %v", r))
		}
	}()

	unk, err := ole.CreateInstance(clsidWbemLocator, iidIWbemLocator)
	if err != nil {
		return nil, errors.Wrap(err, "CoCreateInstance(WbemLocator)")
	}

	return &comLocator{unk: unk}, nil
}

type comLocator struct {
	unk  *ole.IUnknown
	once sync.Once
}

func (l *comLocator) ConnectServer(resource string) (Services, error) {
	res := ole.SysAllocString(resource)
	defer ole.SysFreeString(res)

	var svc *ole.IUnknown
	vt := (*iWbemLocatorVtbl)(unsafe.Pointer(l.unk.RawVTable))
	hr, _, _ := syscall.SyscallN(vt.ConnectServer,
		uintptr(unsafe.Pointer(l.unk)),
		uintptr(unsafe.Pointer(res)),
		0, // user
		0, // password
		0, // locale
		0, // security flags
		0, // authority
		0, // context
		uintptr(unsafe.Pointer(&svc)))
	if HRESULT(hr).Failed() {
		return nil, errors.Wrap(HRESULT(hr), "IWbemLocator::ConnectServer")
	}

	return &comServices{unk: svc}, nil
}

func (l *comLocator) Release() {
	l.once.Do(func() {
		l.unk.Release()
		comshim.Done()
	})
}

type comServices struct {
	unk  *ole.IUnknown
	once sync.Once
}

func (s *comServices) SetProxyBlanket() error {
	hr, _, _ := procCoSetProxyBlanket.Call(
		uintptr(unsafe.Pointer(s.unk)),
		uintptr(rpcCAuthnDefault),
		uintptr(rpcCAuthzNone),
		coleDefaultPrincipal,
		uintptr(rpcCAuthnLevelDefault),
		uintptr(rpcCImpLevelImpersonate),
		0,
		uintptr(eoacNone))
	if HRESULT(hr).Failed() {
		return errors.Wrap(HRESULT(hr), "CoSetProxyBlanket")
	}

	return nil
}

func (s *comServices) ExecQuery(language, query string, flags QueryFlag) (Enumerator, error) {
	lang := ole.SysAllocString(language)
	defer ole.SysFreeString(lang)
	q := ole.SysAllocString(query)
	defer ole.SysFreeString(q)

	var enum *ole.IUnknown
	vt := (*iWbemServicesVtbl)(unsafe.Pointer(s.unk.RawVTable))
	hr, _, _ := syscall.SyscallN(vt.ExecQuery,
		uintptr(unsafe.Pointer(s.unk)),
		uintptr(unsafe.Pointer(lang)),
		uintptr(unsafe.Pointer(q)),
		uintptr(flags),
		0,
		uintptr(unsafe.Pointer(&enum)))
	if HRESULT(hr).Failed() {
		return nil, errors.Wrap(HRESULT(hr), "IWbemServices::ExecQuery")
	}

	return &comEnumerator{unk: enum}, nil
}

func (s *comServices) Release() {
	s.once.Do(func() { s.unk.Release() })
}

type comEnumerator struct {
	unk  *ole.IUnknown
	once sync.Once
}

func (e *comEnumerator) vtbl() *iEnumWbemClassObjectVtbl {
	return (*iEnumWbemClassObjectVtbl)(unsafe.Pointer(e.unk.RawVTable))
}

func (e *comEnumerator) Reset() error {
	hr, _, _ := syscall.SyscallN(e.vtbl().Reset, uintptr(unsafe.Pointer(e.unk)))
	if HRESULT(hr).Failed() {
		return errors.Wrap(HRESULT(hr), "IEnumWbemClassObject::Reset")
	}

	return nil
}

func (e *comEnumerator) Next(timeout Timeout, count int) ([]Object, error) {
	if count <= 0 {
		return nil, nil
	}

	raw := make([]*ole.IUnknown, count)
	var returned uint32
	hr, _, _ := syscall.SyscallN(e.vtbl().Next,
		uintptr(unsafe.Pointer(e.unk)),
		uintptr(timeout),
		uintptr(count),
		uintptr(unsafe.Pointer(&raw[0])),
		uintptr(unsafe.Pointer(&returned)))

	objs := make([]Object, 0, returned)
	for _, unk := range raw[:returned] {
		objs = append(objs, &comObject{unk: unk})
	}

	if HRESULT(hr).Failed() {
		for _, o := range objs {
			o.Release()
		}

		return nil, errors.Wrap(HRESULT(hr), "IEnumWbemClassObject::Next")
	}

	return objs, nil
}

func (e *comEnumerator) Release() {
	e.once.Do(func() { e.unk.Release() })
}

type comObject struct {
	unk *ole.IUnknown
}

func (o *comObject) vtbl() *iWbemClassObjectVtbl {
	return (*iWbemClassObjectVtbl)(unsafe.Pointer(o.unk.RawVTable))
}

func (o *comObject) Get(name string) (Value, error) {
	wname, err := syscall.UTF16PtrFromString(name)
	if err != nil {
		return Value{}, errors.Wrapf(err, "property name %q", name)
	}

	var v ole.VARIANT
	ole.VariantInit(&v)
	hr, _, _ := syscall.SyscallN(o.vtbl().Get,
		uintptr(unsafe.Pointer(o.unk)),
		uintptr(unsafe.Pointer(wname)),
		0,
		uintptr(unsafe.Pointer(&v)),
		0,
		0)
	if HRESULT(hr).Failed() {
		return Value{}, errors.Wrapf(HRESULT(hr), "IWbemClassObject::Get(%s)", name)
	}
	defer ole.VariantClear(&v)

	return variantToValue(&v), nil
}

func (o *comObject) Names() ([]string, error) {
	var names *ole.SafeArray
	hr, _, _ := syscall.SyscallN(o.vtbl().GetNames,
		uintptr(unsafe.Pointer(o.unk)),
		0,
		uintptr(wbemFlagAlways|wbemFlagNonsystemOnly),
		0,
		uintptr(unsafe.Pointer(&names)))
	if HRESULT(hr).Failed() {
		return nil, errors.Wrap(HRESULT(hr), "IWbemClassObject::GetNames")
	}

	sac := ole.SafeArrayConversion{Array: names}
	defer sac.Release()

	return sac.ToStringArray(), nil
}

func (o *comObject) AddRef() {
	o.unk.AddRef()
}

func (o *comObject) Release() {
	o.unk.Release()
}

// variantToValue copies a VARIANT into Go memory. The caller still owns v.
func variantToValue(v *ole.VARIANT) Value {
	switch {
	case v.VT == ole.VT_NULL || v.VT == ole.VT_EMPTY:
		return Value{VT: v.VT}
	case v.VT&ole.VT_ARRAY != 0:
		if v.Val == 0 {
			return Value{VT: v.VT}
		}

		sac := v.ToArray()
		if v.VT&^ole.VT_ARRAY == ole.VT_BSTR {
			return Value{VT: v.VT, Val: bstrArray(sac)}
		}

		return Value{VT: v.VT, Val: sac.ToValueArray()}
	case v.VT == ole.VT_BSTR:
		p := *(**uint16)(unsafe.Pointer(&v.Val))
		if p == nil {
			return Value{VT: v.VT}
		}

		return Value{VT: v.VT, Val: ole.BstrToString(p)}
	default:
		return Value{VT: v.VT, Val: v.Value()}
	}
}

// bstrArray reads a BSTR SAFEARRAY keeping null entries as nil, which
// ToStringArray would flatten to "".
func bstrArray(sac *ole.SafeArrayConversion) []interface{} {
	total, err := sac.TotalElements(0)
	if err != nil {
		return nil
	}

	out := make([]interface{}, total)
	for i := int32(0); i < total; i++ {
		var p *uint16
		hr, _, _ := procSafeArrayGetElement.Call(
			uintptr(unsafe.Pointer(sac.Array)),
			uintptr(unsafe.Pointer(&i)),
			uintptr(unsafe.Pointer(&p)))
		if HRESULT(hr).Failed() || p == nil {
			continue
		}

		out[i] = ole.BstrToString(p)
		ole.SysFreeString((*int16)(unsafe.Pointer(p)))
	}

	return out
}
