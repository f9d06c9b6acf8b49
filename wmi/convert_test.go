package wmi_test

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/go-ole/go-ole"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/42wim/wmix/wmi"
	"github.com/42wim/wmix/wmi/wmitest"
)

func TestAsString(t *testing.T) {
	s, err := wmi.As[string](wmitest.BSTR("C:"))
	require.NoError(t, err)
	assert.Equal(t, "C:", s)

	_, err = wmi.As[string](wmitest.I4(3))
	assert.True(t, errors.Is(err, wmi.ErrTypeMismatch))

	_, err = wmi.As[string](wmitest.NullBSTR())
	assert.True(t, errors.Is(err, wmi.ErrNull))

	_, err = wmi.As[string](wmitest.BSTRArray("a"))
	assert.True(t, errors.Is(err, wmi.ErrTypeMismatch))
}

func TestAsStringSlice(t *testing.T) {
	got, err := wmi.As[[]string](wmitest.BSTRArray("a", nil, "b", nil, "c"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)

	got, err = wmi.As[[]string](wmitest.BSTRArray())
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = wmi.As[[]string](wmitest.BSTR("a"))
	assert.True(t, errors.Is(err, wmi.ErrTypeMismatch))

	_, err = wmi.As[[]string](wmitest.I4Array(1, 2))
	assert.True(t, errors.Is(err, wmi.ErrTypeMismatch))
}

func TestAsNumbers(t *testing.T) {
	n, err := wmi.As[uint64](wmitest.UI8(17179869184))
	require.NoError(t, err)
	assert.Equal(t, uint64(17179869184), n)

	i, err := wmi.As[int](wmitest.I4(3))
	require.NoError(t, err)
	assert.Equal(t, 3, i)

	u8, err := wmi.As[uint8](wmitest.I4(255))
	require.NoError(t, err)
	assert.Equal(t, uint8(255), u8)

	_, err = wmi.As[uint8](wmitest.I4(256))
	assert.True(t, errors.Is(err, wmi.ErrTypeMismatch))

	_, err = wmi.As[uint32](wmitest.I4(-1))
	assert.True(t, errors.Is(err, wmi.ErrTypeMismatch))

	_, err = wmi.As[int64](wmitest.UI8(math.MaxUint64))
	assert.True(t, errors.Is(err, wmi.ErrTypeMismatch))

	_, err = wmi.As[int64](wmi.Value{VT: ole.VT_UI8, Val: uint64(math.MaxUint64)})
	assert.True(t, errors.Is(err, wmi.ErrTypeMismatch))

	f, err := wmi.As[float64](wmitest.BSTR("2.5"))
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	f32, err := wmi.As[float32](wmitest.R8(1.5))
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), f32)

	_, err = wmi.As[float32](wmitest.R8(math.MaxFloat64))
	assert.True(t, errors.Is(err, wmi.ErrTypeMismatch))

	_, err = wmi.As[int32](wmitest.BSTR("not a number"))
	assert.True(t, errors.Is(err, wmi.ErrTypeMismatch))

	_, err = wmi.As[int32](wmitest.BSTR(""))
	assert.True(t, errors.Is(err, wmi.ErrTypeMismatch))

	_, err = wmi.As[int32](wmitest.I4Array(1))
	assert.True(t, errors.Is(err, wmi.ErrTypeMismatch))

	_, err = wmi.As[int32](wmitest.Null())
	assert.True(t, errors.Is(err, wmi.ErrNull))
}

func TestAsNumbersLikeVariantCast(t *testing.T) {
	tests := []struct {
		in   wmi.Value
		want int64
	}{
		{wmitest.BSTR("010"), 10},
		{wmitest.BSTR("08"), 8},
		{wmitest.BSTR("-007"), -7},
		{wmitest.BSTR("+42"), 42},
		{wmitest.BSTR("000"), 0},
		{wmitest.BSTR(" 12 "), 12},
		{wmitest.BSTR("2.5"), 2},
		{wmitest.BSTR("3.5"), 4},
		{wmitest.R8(2.7), 3},
		{wmitest.R8(2.5), 2},
		{wmitest.R8(3.5), 4},
		{wmitest.R8(-2.5), -2},
		{wmi.Value{VT: ole.VT_R4, Val: float32(1.5)}, 2},
	}

	for _, tt := range tests {
		got, err := wmi.As[int64](tt.in)
		require.NoError(t, err, tt.in.String())
		assert.Equal(t, tt.want, got, tt.in.String())
	}

	u, err := wmi.As[uint32](wmitest.BSTR("0042"))
	require.NoError(t, err)
	assert.Equal(t, uint32(42), u)

	i32, err := wmi.As[int32](wmitest.R8(2.7))
	require.NoError(t, err)
	assert.Equal(t, int32(3), i32)

	big, err := wmi.As[uint64](wmitest.BSTR("018446744073709551615"))
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), big)

	for _, bad := range []string{"0x10", "0b1", "1e3", "1_000", "-", "2.", "1.2.3"} {
		_, err := wmi.As[int64](wmitest.BSTR(bad))
		assert.True(t, errors.Is(err, wmi.ErrTypeMismatch), bad)

		_, err = wmi.As[uint64](wmitest.BSTR(bad))
		assert.True(t, errors.Is(err, wmi.ErrTypeMismatch), bad)
	}
}

func TestAsBool(t *testing.T) {
	b, err := wmi.As[bool](wmitest.Bool(true))
	require.NoError(t, err)
	assert.True(t, b)

	b, err = wmi.As[bool](wmitest.I4(0))
	require.NoError(t, err)
	assert.False(t, b)

	b, err = wmi.As[bool](wmitest.BSTR("true"))
	require.NoError(t, err)
	assert.True(t, b)

	_, err = wmi.As[bool](wmitest.BSTR("maybe"))
	assert.True(t, errors.Is(err, wmi.ErrTypeMismatch))
}

func TestAsTime(t *testing.T) {
	got, err := wmi.As[time.Time](wmitest.BSTR("20240102030405.123456-300"))
	require.NoError(t, err)
	want := time.Date(2024, 1, 2, 3, 4, 5, 123456000, time.FixedZone("", -5*3600))
	assert.True(t, want.Equal(got), got.String())

	d := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	got, err = wmi.As[time.Time](wmitest.Date(d))
	require.NoError(t, err)
	assert.Equal(t, d, got)

	_, err = wmi.As[time.Time](wmitest.BSTR("yesterday"))
	assert.True(t, errors.Is(err, wmi.ErrTypeMismatch))

	_, err = wmi.As[time.Time](wmitest.I4(1))
	assert.True(t, errors.Is(err, wmi.ErrTypeMismatch))
}

func TestParseDateTime(t *testing.T) {
	got, err := wmi.ParseDateTime("20231231235959.000000+060")
	require.NoError(t, err)
	assert.Equal(t, 2023, got.Year())
	_, offset := got.Zone()
	assert.Equal(t, 3600, offset)

	_, err = wmi.ParseDateTime("2023")
	assert.Error(t, err)
	_, err = wmi.ParseDateTime("20231231235959.000000+0x0")
	assert.Error(t, err)
}

func TestAsValue(t *testing.T) {
	v, err := wmi.As[wmi.Value](wmitest.Null())
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "C:", wmitest.BSTR("C:").String())
	assert.Equal(t, "", wmitest.NullBSTR().String())
	assert.Equal(t, "3", wmitest.I4(3).String())
	assert.Equal(t, "{a, b}", wmitest.BSTRArray("a", nil, "b").String())
	assert.True(t, wmitest.BSTRArray().IsArray())
	assert.Equal(t, ole.VT_BSTR, wmitest.BSTRArray().ElemType())
}

func TestProperty(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	drv := wmitest.NewDriver().AddTable(diskQuery, wmitest.Row{
		"DeviceID":   wmitest.BSTR("C:"),
		"DriveType":  wmitest.I4(3),
		"VolumeName": wmitest.NullBSTR(),
		"Size":       wmitest.UI8(1 << 40),
		"Paths":      wmitest.BSTRArray(`C:\`, nil, `D:\mnt`),
	})
	s := connect(t, drv, wmi.WithLogger(logger))

	rs, err := s.ExecuteQuery(diskQuery)
	require.NoError(t, err)
	defer rs.Close()

	r := rs.Begin().Record()
	require.NotNil(t, r)

	id, ok := wmi.Property[string](r, "DeviceID")
	assert.True(t, ok)
	assert.Equal(t, "C:", id)

	dt, ok := wmi.Property[uint32](r, "DriveType")
	assert.True(t, ok)
	assert.Equal(t, uint32(3), dt)

	_, ok = wmi.Property[string](r, "DriveType")
	assert.False(t, ok, "string requires a BSTR")

	_, ok = wmi.Property[[]string](r, "DeviceID")
	assert.False(t, ok, "[]string requires a BSTR array")

	paths, ok := wmi.Property[[]string](r, "Paths")
	assert.True(t, ok)
	assert.Equal(t, []string{`C:\`, `D:\mnt`}, paths)

	_, ok = wmi.Property[string](r, "VolumeName")
	assert.False(t, ok)

	_, ok = wmi.Property[uint8](r, "Size")
	assert.False(t, ok)

	raw, ok := wmi.Property[wmi.Value](r, "VolumeName")
	assert.True(t, ok)
	assert.True(t, raw.IsNull())

	for _, name := range []string{"Missing", ""} {
		_, ok = wmi.Property[string](r, name)
		assert.False(t, ok)
		_, ok = wmi.Property[wmi.Value](r, name)
		assert.False(t, ok)
		_, ok = wmi.Property[int](r, name)
		assert.False(t, ok)
	}

	names, err := r.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"DeviceID", "DriveType", "Paths", "Size", "VolumeName"}, names)

	assert.Contains(t, logs.String(), "property conversion failed")
	assert.Contains(t, logs.String(), "property=Size")
	assert.Contains(t, logs.String(), "null property")
}

func TestRecordClose(t *testing.T) {
	drv := wmitest.NewDriver().AddTable(diskQuery, rows(1)...)
	s := connect(t, drv)

	rs, err := s.ExecuteQuery(diskQuery)
	require.NoError(t, err)
	defer rs.Close()

	r := rs.Begin().Record().Clone()
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, ok := r.Property("DeviceID")
	assert.False(t, ok)
	_, err = r.Names()
	assert.Error(t, err)

	c := r.Clone()
	_, ok = c.Property("DeviceID")
	assert.False(t, ok)
	assert.NoError(t, c.Close())
}
