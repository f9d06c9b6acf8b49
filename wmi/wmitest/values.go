package wmitest

import (
	"strconv"
	"time"

	"github.com/go-ole/go-ole"

	"github.com/42wim/wmix/wmi"
)

// Value constructors shaped like the native driver's output.

func BSTR(s string) wmi.Value {
	return wmi.Value{VT: ole.VT_BSTR, Val: s}
}

// NullBSTR is a VT_BSTR with a null pointer.
func NullBSTR() wmi.Value {
	return wmi.Value{VT: ole.VT_BSTR}
}

func Null() wmi.Value {
	return wmi.Value{VT: ole.VT_NULL}
}

func I4(n int32) wmi.Value {
	return wmi.Value{VT: ole.VT_I4, Val: n}
}

func UI1(n uint8) wmi.Value {
	return wmi.Value{VT: ole.VT_UI1, Val: n}
}

func R8(f float64) wmi.Value {
	return wmi.Value{VT: ole.VT_R8, Val: f}
}

func Bool(b bool) wmi.Value {
	return wmi.Value{VT: ole.VT_BOOL, Val: b}
}

func Date(t time.Time) wmi.Value {
	return wmi.Value{VT: ole.VT_DATE, Val: t}
}

// UI8 is a 64-bit unsigned property, which WMI delivers as a BSTR.
func UI8(n uint64) wmi.Value {
	return BSTR(strconv.FormatUint(n, 10))
}

// BSTRArray builds a VT_ARRAY|VT_BSTR value. Elements must be strings or
// nil for a null entry.
func BSTRArray(elems ...interface{}) wmi.Value {
	return wmi.Value{VT: ole.VT_ARRAY | ole.VT_BSTR, Val: elems}
}

func I4Array(elems ...int32) wmi.Value {
	vals := make([]interface{}, len(elems))
	for i, e := range elems {
		vals[i] = e
	}

	return wmi.Value{VT: ole.VT_ARRAY | ole.VT_I4, Val: vals}
}
