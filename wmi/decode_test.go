package wmi_test

import (
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/42wim/wmix/wmi"
	"github.com/42wim/wmix/wmi/wmitest"
)

type common struct {
	Caption string
}

type Win32_LogicalDisk struct {
	common
	DeviceID    string
	Size        uint64
	FreeSpace   *uint64
	DriveType   uint32
	Compressed  bool
	VolumeName  *string
	Paths       []string `wmi:"VolumeDirs"`
	Codes       []uint16
	InstallDate time.Time
	Raw         wmi.Value `wmi:"DeviceID"`
	Ignored     string    `wmi:"-"`
	internal    int
}

func diskRecord(t *testing.T, row wmitest.Row) *wmi.Record {
	t.Helper()

	drv := wmitest.NewDriver().AddTable(diskQuery, row)
	s := connect(t, drv)

	rs, err := s.ExecuteQuery(diskQuery)
	require.NoError(t, err)

	r := rs.Begin().Record().Clone()
	require.NoError(t, rs.Close())
	t.Cleanup(func() { r.Close() })

	return r
}

func TestDecode(t *testing.T) {
	r := diskRecord(t, wmitest.Row{
		"Caption":     wmitest.BSTR("Local Fixed Disk"),
		"DeviceID":    wmitest.BSTR("C:"),
		"Size":        wmitest.UI8(500107862016),
		"FreeSpace":   wmitest.UI8(1024),
		"DriveType":   wmitest.I4(3),
		"Compressed":  wmitest.Bool(true),
		"VolumeName":  wmitest.NullBSTR(),
		"VolumeDirs":  wmitest.BSTRArray("a", nil, "b"),
		"Codes":       wmitest.I4Array(1, 2),
		"InstallDate": wmitest.BSTR("20200101000000.000000+000"),
		"Ignored":     wmitest.BSTR("nope"),
	})

	var d Win32_LogicalDisk
	require.NoError(t, r.DecodeStrict(&d))

	assert.Equal(t, "Local Fixed Disk", d.Caption)
	assert.Equal(t, "C:", d.DeviceID)
	assert.Equal(t, uint64(500107862016), d.Size)
	require.NotNil(t, d.FreeSpace)
	assert.Equal(t, uint64(1024), *d.FreeSpace)
	assert.Equal(t, uint32(3), d.DriveType)
	assert.True(t, d.Compressed)
	assert.Nil(t, d.VolumeName)
	assert.Equal(t, []string{"a", "b"}, d.Paths)
	assert.Equal(t, []uint16{1, 2}, d.Codes)
	assert.Equal(t, 2020, d.InstallDate.Year())
	assert.Equal(t, "C:", d.Raw.String())
	assert.Empty(t, d.Ignored)
}

func TestDecodeLenientSkipsBadFields(t *testing.T) {
	r := diskRecord(t, wmitest.Row{
		"DeviceID":  wmitest.I4(7),
		"DriveType": wmitest.I4(-1),
		"Size":      wmitest.UI8(42),
	})

	d := Win32_LogicalDisk{DeviceID: "keep"}
	require.NoError(t, r.Decode(&d))
	assert.Equal(t, "keep", d.DeviceID)
	assert.Equal(t, uint64(42), d.Size)
	assert.Zero(t, d.DriveType)
}

func TestDecodeStrictReportsFields(t *testing.T) {
	r := diskRecord(t, wmitest.Row{
		"DeviceID":  wmitest.I4(7),
		"DriveType": wmitest.I4(3),
	})

	var d struct {
		DeviceID  string
		DriveType uint8
		Missing   int
	}
	err := r.DecodeStrict(&d)
	require.Error(t, err)

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	require.Len(t, merr.Errors, 2)

	var fe *wmi.FieldError
	require.True(t, errors.As(merr.Errors[0], &fe))
	assert.Equal(t, "DeviceID", fe.Field)
	assert.ErrorIs(t, fe, wmi.ErrTypeMismatch)

	require.True(t, errors.As(merr.Errors[1], &fe))
	assert.Equal(t, "Missing", fe.Property)
	assert.ErrorIs(t, fe, wmi.ErrPropertyNotFound)
	assert.Contains(t, fe.Error(), "field Missing (property Missing)")

	assert.Equal(t, uint8(3), d.DriveType)
}

func TestDecodeInvalidDestination(t *testing.T) {
	r := diskRecord(t, wmitest.Row{})

	var d Win32_LogicalDisk
	assert.Error(t, r.Decode(d))
	assert.Error(t, r.Decode(nil))
	var n int
	assert.Error(t, r.Decode(&n))
}
