package bmu

import (
	"github.com/oliveres/byd-lvs-monitor/internal/bmu/parser"
)

// DecodeModuleReading turns the flat 260-register buffer drained from the
// FIFO into a structured ModuleReading. It is pure: the only failure mode is
// a buffer of the wrong length, which is rejected before any index is
// touched.
func DecodeModuleReading(moduleID int, regs []uint16) (*ModuleReading, error) {
	if len(regs) != ModuleRegisters {
		return nil, &MalformedDataError{What: "module buffer", Expected: ModuleRegisters, Got: len(regs)}
	}

	maxVoltCell, _ := parser.BytePair(regs[offMaxVoltCell])
	maxTempCell, _ := parser.BytePair(regs[offMaxTempCell])

	m := &ModuleReading{
		ModuleID:    moduleID,
		PayloadSize: int(regs[offPayloadSize]),

		MaxCellVoltageMv: parser.Signed16(regs[offMaxCellMv]),
		MinCellVoltageMv: parser.Signed16(regs[offMinCellMv]),
		MaxVoltageCell:   int(maxVoltCell),
		MaxTempC:         parser.Signed16(regs[offMaxTemp]),
		MinTempC:         parser.Signed16(regs[offMinTemp]),
		MaxTempSensor:    int(maxTempCell),

		BalancingMask:  regs[offBalancing],
		BalancingCells: parser.MaskBits(regs[offBalancing], CellsPerModule),

		ChargeLifetimeKwh:    parser.EnergyKwh(regs[offChargeKwh], regs[offChargeKwh+1]),
		DischargeLifetimeKwh: parser.EnergyKwh(regs[offDischargeKwh], regs[offDischargeKwh+1]),

		BatteryVoltageV:  parser.ScaledSigned(regs[offBatVoltage], 0.1),
		OutputVoltageV:   parser.ScaledSigned(regs[offOutVoltage], 0.1),
		StateOfChargePct: parser.ScaledSigned(regs[offSoc], 0.1),
		StateOfHealthPct: float64(parser.Signed16(regs[offSoh])),

		// The BMU reports discharge as positive; flip so that positive
		// current means charging, matching the summary block convention.
		CurrentA: -parser.ScaledSigned(regs[offCurrent], 0.1),

		WarningFlags: [3]uint16{regs[offWarnings1], regs[offWarnings2], regs[offWarnings3]},
		ErrorFlags:   regs[offErrors],

		SerialNumber: parser.ASCII(regs[offSerialStart:offSerialEnd]),
	}

	m.CellVoltagesMv = make([]int16, CellsPerModule)
	for i := 0; i < CellsPerModule; i++ {
		m.CellVoltagesMv[i] = parser.Signed16(regs[offCellVolts+i])
	}

	// Two sensors per register, high byte first. The slice always has the
	// full sensor count; modules with fewer NTCs leave the tail at zero.
	m.CellTemperaturesC = make([]int8, TempSensorsPerModule)
	for i := 0; i < TempSensorsPerModule/2; i++ {
		hi, lo := parser.SignedBytePair(regs[offCellTemps+i])
		m.CellTemperaturesC[i*2] = hi
		m.CellTemperaturesC[i*2+1] = lo
	}

	m.PowerW = round1(m.CurrentA * m.OutputVoltageV)

	return m, nil
}

// DecodeSummary decodes the directly readable 25-register summary block.
func DecodeSummary(regs []uint16) (*SystemSummary, error) {
	if len(regs) != SummaryRegisters {
		return nil, &MalformedDataError{What: "summary block", Expected: SummaryRegisters, Got: len(regs)}
	}

	return &SystemSummary{
		StateOfChargePct: int(parser.Signed16(regs[sumSoc])),
		StateOfHealthPct: int(parser.Signed16(regs[sumSoh])),
		MaxCellVoltageV:  parser.ScaledSigned(regs[sumMaxCellVolt], 0.01),
		MinCellVoltageV:  parser.ScaledSigned(regs[sumMinCellVolt], 0.01),
		CurrentA:         -parser.ScaledSigned(regs[sumCurrent], 0.1),
		PackVoltageV:     parser.ScaledSigned(regs[sumPackVoltage], 0.01),
		PackVoltage2V:    parser.ScaledSigned(regs[sumPackVoltage2], 0.01),
		MaxCellTempC:     int(parser.Signed16(regs[sumMaxTemp])),
		MinCellTempC:     int(parser.Signed16(regs[sumMinTemp])),
		ChargeKwh:        parser.EnergyKwh(regs[sumChargeKwh], regs[sumChargeKwh+1]),
		DischargeKwh:     parser.EnergyKwh(regs[sumDischargeKwh], regs[sumDischargeKwh+1]),
	}, nil
}

func round1(v float64) float64 {
	if v < 0 {
		return float64(int64(v*10-0.5)) / 10
	}
	return float64(int64(v*10+0.5)) / 10
}
