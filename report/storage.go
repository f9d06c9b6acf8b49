package report

import (
	"github.com/42wim/wmix/wmi"
)

var driveTypeNames = [...]string{
	0: "Unknown",
	1: "No Root Directory",
	2: "Removable Disk",
	3: "Local Disk",
	4: "Network Drive",
	5: "Compact Disc",
	6: "RAM Disk",
}

// DriveTypeName maps a Win32_LogicalDisk.DriveType code to its label.
func DriveTypeName(code uint32) string {
	if int(code) < len(driveTypeNames) {
		return driveTypeNames[code]
	}

	return "Unknown Type"
}

// LogicalDisk is one Win32_LogicalDisk instance. UsedBytes and
// UsagePercent are set only when both size and free space are known.
type LogicalDisk struct {
	DeviceID      string   `json:"device_id" yaml:"device_id"`
	SizeBytes     *uint64  `json:"size_bytes,omitempty" yaml:"size_bytes,omitempty"`
	FreeBytes     *uint64  `json:"free_bytes,omitempty" yaml:"free_bytes,omitempty"`
	UsedBytes     *uint64  `json:"used_bytes,omitempty" yaml:"used_bytes,omitempty"`
	UsagePercent  *float64 `json:"usage_percent,omitempty" yaml:"usage_percent,omitempty"`
	FileSystem    *string  `json:"file_system,omitempty" yaml:"file_system,omitempty"`
	DriveType     *uint32  `json:"drive_type,omitempty" yaml:"drive_type,omitempty"`
	DriveTypeName string   `json:"drive_type_name,omitempty" yaml:"drive_type_name,omitempty"`
}

// PhysicalDisk is one Win32_DiskDrive instance.
type PhysicalDisk struct {
	Model         *string `json:"model,omitempty" yaml:"model,omitempty"`
	SizeBytes     *uint64 `json:"size_bytes,omitempty" yaml:"size_bytes,omitempty"`
	MediaType     *string `json:"media_type,omitempty" yaml:"media_type,omitempty"`
	InterfaceType *string `json:"interface_type,omitempty" yaml:"interface_type,omitempty"`
}

type StorageReport struct {
	LogicalDisks  []LogicalDisk  `json:"logical_disks" yaml:"logical_disks"`
	PhysicalDisks []PhysicalDisk `json:"physical_disks" yaml:"physical_disks"`
}

// LogicalDisks lists logical disks; instances without a DeviceID are
// skipped.
func LogicalDisks(q Querier) ([]LogicalDisk, error) {
	disks := []LogicalDisk{}

	err := each(q, LogicalDiskQuery, func(r *wmi.Record) {
		id, ok := wmi.Property[string](r, "DeviceID")
		if !ok {
			return
		}

		d := LogicalDisk{
			DeviceID:   id,
			SizeBytes:  optional[uint64](r, "Size"),
			FreeBytes:  optional[uint64](r, "FreeSpace"),
			FileSystem: optional[string](r, "FileSystem"),
			DriveType:  optional[uint32](r, "DriveType"),
		}
		if d.SizeBytes != nil && d.FreeBytes != nil {
			used, pct := usage(*d.SizeBytes, *d.FreeBytes)
			d.UsedBytes = &used
			d.UsagePercent = &pct
		}
		if d.DriveType != nil {
			d.DriveTypeName = DriveTypeName(*d.DriveType)
		}

		disks = append(disks, d)
	})
	if err != nil {
		return nil, err
	}

	return disks, nil
}

func PhysicalDisks(q Querier) ([]PhysicalDisk, error) {
	disks := []PhysicalDisk{}

	err := each(q, DiskDriveQuery, func(r *wmi.Record) {
		disks = append(disks, PhysicalDisk{
			Model:         optional[string](r, "Model"),
			SizeBytes:     optional[uint64](r, "Size"),
			MediaType:     optional[string](r, "MediaType"),
			InterfaceType: optional[string](r, "InterfaceType"),
		})
	})
	if err != nil {
		return nil, err
	}

	return disks, nil
}

// Storage combines LogicalDisks and PhysicalDisks.
func Storage(q Querier) (*StorageReport, error) {
	logical, err := LogicalDisks(q)
	if err != nil {
		return nil, err
	}

	physical, err := PhysicalDisks(q)
	if err != nil {
		return nil, err
	}

	return &StorageReport{LogicalDisks: logical, PhysicalDisks: physical}, nil
}
