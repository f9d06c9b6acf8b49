package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/42wim/wmix/report"
	"github.com/42wim/wmix/wmi"
	"github.com/42wim/wmix/wmi/wmitest"
)

type fakeCOM struct {
	initialized bool
	closed      int
}

func (c *fakeCOM) Initialized() bool { return c.initialized }

func (c *fakeCOM) Close() error {
	c.closed++
	return nil
}

type harness struct {
	app    *wmix
	drv    *wmitest.Driver
	com    *fakeCOM
	models []wmi.ThreadingModel
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	isolate(t, t.TempDir())

	h := &harness{
		drv: wmitest.NewDriver().
			AddTable(report.OperatingSystemQuery, wmitest.Row{
				"TotalVisibleMemorySize": wmitest.UI8(8388608),
				"FreePhysicalMemory":     wmitest.UI8(2097152),
			}).
			AddTable(report.PhysicalMemoryQuery, wmitest.Row{
				"Capacity": wmitest.UI8(8589934592),
				"Speed":    wmitest.I4(3200),
			}).
			AddTable(report.LogicalDiskQuery, wmitest.Row{
				"DeviceID":  wmitest.BSTR("C:"),
				"Size":      wmitest.UI8(1 << 30),
				"FreeSpace": wmitest.UI8(1 << 29),
				"DriveType": wmitest.I4(3),
			}).
			AddTable(report.DiskDriveQuery).
			AddTable("SELECT Name, State FROM Win32_Service",
				wmitest.Row{"Name": wmitest.BSTR("Spooler"), "State": wmitest.BSTR("Running")},
			),
		com: &fakeCOM{initialized: true},
	}

	h.app = newApp(&h.stdout, &h.stderr)
	h.app.driver = h.drv
	h.app.initCOM = func(m wmi.ThreadingModel) (comGuard, error) {
		h.models = append(h.models, m)
		return h.com, nil
	}

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h.app.now = func() time.Time {
		clock = clock.Add(42 * time.Millisecond)
		return clock
	}

	return h
}

func (h *harness) run(args ...string) error {
	return h.runContext(context.Background(), args...)
}

func (h *harness) runContext(ctx context.Context, args ...string) error {
	cmd := h.app.rootCmd()
	cmd.SetArgs(append([]string{}, args...))
	cmd.SetOut(&h.stdout)
	cmd.SetErr(&h.stderr)

	return cmd.ExecuteContext(ctx)
}

func TestReportText(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run())
	out := h.stdout.String()

	assert.Contains(t, out, "wmix system report\n\n")
	assert.Contains(t, out, "COM library initialized successfully.\n")
	assert.Contains(t, out, "WMI interface created successfully!\n")
	assert.Contains(t, out, "  Total Physical Memory: 8192.00 MB\n")
	assert.Contains(t, out, "  Drive C:\n")
	assert.Contains(t, out, "  No physical disks found.\n")
	assert.Contains(t, out, "All queries completed successfully! (42 ms)\n")

	assert.Equal(t, 1, h.com.closed)
	assert.Zero(t, h.drv.Live())
}

func TestReportAlreadyInitialized(t *testing.T) {
	h := newHarness(t)
	h.com.initialized = false

	require.NoError(t, h.run("report"))
	assert.Contains(t, h.stdout.String(), "COM library was already initialized (using existing initialization).\n")
}

func TestReportJSON(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("report", "-o", "json"))

	var got report.Summary
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &got))
	require.Len(t, got.Memory.System, 1)
	assert.EqualValues(t, 8388608, got.Memory.System[0].TotalKB)
	require.Len(t, got.Storage.LogicalDisks, 1)
	assert.Equal(t, "Local Disk", got.Storage.LogicalDisks[0].DriveTypeName)
	assert.NotContains(t, h.stdout.String(), "COM library")
}

func TestMemoryAndStorageCommands(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("memory"))
	assert.Contains(t, h.stdout.String(), "    Speed: 3200 MHz\n")
	assert.NotContains(t, h.stdout.String(), "Drive C:")

	h.stdout.Reset()
	require.NoError(t, h.run("storage", "--output", "yaml"))
	assert.Contains(t, h.stdout.String(), "logical_disks:")
	assert.Contains(t, h.stdout.String(), "drive_type_name: Local Disk")
	assert.Zero(t, h.drv.Live())
}

func TestQueryCommand(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("query", "-o", "json", "SELECT Name, State FROM Win32_Service"))

	var got []map[string]string
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &got))
	assert.Equal(t, []map[string]string{{"Name": "Spooler", "State": "Running"}}, got)
}

func TestQueryCommandRequiresQuery(t *testing.T) {
	h := newHarness(t)

	require.Error(t, h.run("query"))
}

func TestQueryFailurePrintsWMIError(t *testing.T) {
	h := newHarness(t)

	err := h.run("query", "SELECT * FROM Win32_Nope")
	require.Error(t, err)

	h.app.printError(err)
	assert.Equal(t, "WMI Error: WQL query execution failed for query: 'SELECT * FROM Win32_Nope'. "+
		"Check query syntax and target class availability (HRESULT: 0x80041010)\n", h.stderr.String())
	assert.Equal(t, 1, h.com.closed)
	assert.Zero(t, h.drv.Live())
}

func TestConnectFailureReleasesCOM(t *testing.T) {
	h := newHarness(t)
	h.drv.ConnectErr = wmi.WBEM_E_INVALID_NAMESPACE

	err := h.run("memory", "--namespace", "bogus")
	require.Error(t, err)
	assert.ErrorIs(t, err, wmi.ErrConnect)
	assert.Equal(t, []string{`\\.\root\bogus`}, h.drv.Resources())
	assert.Equal(t, 1, h.com.closed)
}

func TestCOMFailure(t *testing.T) {
	h := newHarness(t)
	h.app.initCOM = func(wmi.ThreadingModel) (comGuard, error) {
		return nil, wmi.ErrInitialize
	}

	err := h.run("memory")
	require.ErrorIs(t, err, wmi.ErrInitialize)
	assert.Empty(t, h.drv.Resources())
}

func TestInvalidOutputFlag(t *testing.T) {
	h := newHarness(t)

	err := h.run("memory", "-o", "xml")
	require.ErrorIs(t, err, report.ErrUnknownFormat)

	h.app.printError(err)
	assert.Contains(t, h.stderr.String(), "Error: ")
	assert.NotContains(t, h.stderr.String(), "WMI Error")
}

func TestThreadingFlag(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("memory", "--threading", "apartment"))
	assert.Equal(t, []wmi.ThreadingModel{wmi.ApartmentThreaded}, h.models)
}

func TestServeForcesMultithreaded(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, h.runContext(ctx, "serve", "--threading", "apartment", "--listen", "127.0.0.1:0"))
	assert.Equal(t, []wmi.ThreadingModel{wmi.MultiThreaded}, h.models)
	assert.Contains(t, h.stderr.String(), "serve forces the multithreaded COM model")
	assert.Equal(t, 1, h.com.closed)
	assert.Zero(t, h.drv.Live())
}

func TestReportPartialFailure(t *testing.T) {
	h := newHarness(t)
	h.drv.QueryErr[report.OperatingSystemQuery] = wmi.WBEM_E_ACCESS_DENIED

	err := h.run("report")
	require.Error(t, err)
	assert.ErrorIs(t, err, wmi.ErrQuery)

	out := h.stdout.String()
	assert.Contains(t, out, "Memory query error: ")
	assert.Contains(t, out, "  Drive C:\n")
	assert.NotContains(t, out, "All queries completed successfully!")

	h.app.printError(err)
	assert.Contains(t, h.stderr.String(), "WMI Error: WQL query execution failed for query: '"+report.OperatingSystemQuery+"'")
	assert.Equal(t, 1, h.com.closed)
	assert.Zero(t, h.drv.Live())
}
