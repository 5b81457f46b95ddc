package bmu

import "time"

// ModuleReading is the decoded cell-level snapshot of one battery module.
type ModuleReading struct {
	ModuleID    int `json:"moduleId"`
	PayloadSize int `json:"payloadSize"`

	// Per-cell data. CellVoltagesMv always has CellsPerModule entries and
	// CellTemperaturesC always has TempSensorsPerModule entries; sensors the
	// module does not populate read as zero rather than being dropped.
	CellVoltagesMv    []int16 `json:"cellVoltagesMv"`
	CellTemperaturesC []int8  `json:"cellTemperaturesC"`

	MaxCellVoltageMv int16 `json:"maxCellVoltageMv"`
	MinCellVoltageMv int16 `json:"minCellVoltageMv"`
	MaxVoltageCell   int   `json:"maxVoltageCell"`
	MaxTempC         int16 `json:"maxTempC"`
	MinTempC         int16 `json:"minTempC"`
	MaxTempSensor    int   `json:"maxTempSensor"`

	// BalancingMask has bit i set when cell i+1 is balancing.
	// BalancingCells carries the same information as 1-based cell numbers.
	BalancingMask  uint16 `json:"balancingMask"`
	BalancingCells []int  `json:"balancingCells"`

	StateOfChargePct float64 `json:"stateOfChargePct"`
	StateOfHealthPct float64 `json:"stateOfHealthPct"`

	// CurrentA is positive while charging.
	CurrentA        float64 `json:"currentA"`
	BatteryVoltageV float64 `json:"batteryVoltageV"`
	OutputVoltageV  float64 `json:"outputVoltageV"`
	PowerW          float64 `json:"powerW"`

	WarningFlags [3]uint16 `json:"warningFlags"`
	ErrorFlags   uint16    `json:"errorFlags"`

	ChargeLifetimeKwh    float64 `json:"chargeLifetimeKwh"`
	DischargeLifetimeKwh float64 `json:"dischargeLifetimeKwh"`

	SerialNumber string `json:"serialNumber"`
}

// SystemSummary is the coarse system-level snapshot from the summary block.
type SystemSummary struct {
	StateOfChargePct int     `json:"stateOfChargePct"`
	StateOfHealthPct int     `json:"stateOfHealthPct"`
	MaxCellVoltageV  float64 `json:"maxCellVoltageV"`
	MinCellVoltageV  float64 `json:"minCellVoltageV"`
	CurrentA         float64 `json:"currentA"`
	PackVoltageV     float64 `json:"packVoltageV"`
	// PackVoltage2V is the second pack-voltage measurement the BMU reports
	// alongside the primary one, not an inverter-side output voltage.
	PackVoltage2V float64 `json:"packVoltage2V"`
	MaxCellTempC  int     `json:"maxCellTempC"`
	MinCellTempC     int     `json:"minCellTempC"`
	ChargeKwh        float64 `json:"chargeKwh"`
	DischargeKwh     float64 `json:"dischargeKwh"`
	Towers           int     `json:"towers"`
}

// ModuleFailure records why one module could not be read. The scan carries
// on past it; a failed module is reported, never silently omitted.
type ModuleFailure struct {
	ModuleID int    `json:"moduleId"`
	Reason   string `json:"reason"`
	Err      error  `json:"-"`
}

// ScanResult is one complete pass over the battery: summary plus one
// ModuleReading per reachable module, in ascending module ID order.
// It is immutable once Scan returns.
type ScanResult struct {
	Timestamp   time.Time       `json:"timestamp"`
	BMUSerial   string          `json:"bmuSerial,omitempty"`
	ModuleCount int             `json:"moduleCount"`
	Towers      int             `json:"towers"`
	Summary     *SystemSummary  `json:"summary,omitempty"`
	Modules     []ModuleReading `json:"modules"`
	Failures    []ModuleFailure `json:"failures,omitempty"`
}

// Module returns the reading for the given module ID, or nil if that module
// failed or was not part of the scan.
func (r *ScanResult) Module(id int) *ModuleReading {
	for i := range r.Modules {
		if r.Modules[i].ModuleID == id {
			return &r.Modules[i]
		}
	}
	return nil
}
