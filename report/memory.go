package report

import (
	"github.com/42wim/wmix/wmi"
)

// SystemMemory is the visible physical memory reported by
// Win32_OperatingSystem, in kilobytes.
type SystemMemory struct {
	TotalKB      uint64  `json:"total_kb" yaml:"total_kb"`
	FreeKB       uint64  `json:"free_kb" yaml:"free_kb"`
	UsedKB       uint64  `json:"used_kb" yaml:"used_kb"`
	UsagePercent float64 `json:"usage_percent" yaml:"usage_percent"`
}

// NewSystemMemory derives the used amount and percentage.
func NewSystemMemory(totalKB, freeKB uint64) SystemMemory {
	used, pct := usage(totalKB, freeKB)

	return SystemMemory{
		TotalKB:      totalKB,
		FreeKB:       freeKB,
		UsedKB:       used,
		UsagePercent: pct,
	}
}

// MemoryModule is one Win32_PhysicalMemory instance. Properties WMI did not
// return are nil.
type MemoryModule struct {
	CapacityBytes *uint64 `json:"capacity_bytes,omitempty" yaml:"capacity_bytes,omitempty"`
	SpeedMHz      *uint32 `json:"speed_mhz,omitempty" yaml:"speed_mhz,omitempty"`
	Manufacturer  *string `json:"manufacturer,omitempty" yaml:"manufacturer,omitempty"`
	PartNumber    *string `json:"part_number,omitempty" yaml:"part_number,omitempty"`
}

type MemoryReport struct {
	System  []SystemMemory `json:"system" yaml:"system"`
	Modules []MemoryModule `json:"modules" yaml:"modules"`
}

// Memory queries the operating system totals and the installed modules.
// Operating system instances lacking either total or free memory are
// skipped.
func Memory(q Querier) (*MemoryReport, error) {
	m := &MemoryReport{
		System:  []SystemMemory{},
		Modules: []MemoryModule{},
	}

	err := each(q, OperatingSystemQuery, func(r *wmi.Record) {
		total, okTotal := wmi.Property[uint64](r, "TotalVisibleMemorySize")
		free, okFree := wmi.Property[uint64](r, "FreePhysicalMemory")
		if okTotal && okFree {
			m.System = append(m.System, NewSystemMemory(total, free))
		}
	})
	if err != nil {
		return nil, err
	}

	err = each(q, PhysicalMemoryQuery, func(r *wmi.Record) {
		m.Modules = append(m.Modules, MemoryModule{
			CapacityBytes: optional[uint64](r, "Capacity"),
			SpeedMHz:      optional[uint32](r, "Speed"),
			Manufacturer:  optional[string](r, "Manufacturer"),
			PartNumber:    optional[string](r, "PartNumber"),
		})
	})
	if err != nil {
		return nil, err
	}

	return m, nil
}
