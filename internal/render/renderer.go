package render

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"

	"github.com/oliveres/byd-lvs-monitor/internal/bmu"
)

// Scan renders a complete scan result to the terminal: a system summary box
// followed by one box per module, grouped by tower.
func Scan(result *bmu.ScanResult, host string, port int) {
	title := fmt.Sprintf("BYD Battery-Box LVS Monitor  |  %s:%d", host, port)
	pterm.DefaultHeader.WithFullWidth().Println(title)

	renderSummary(result)

	towers := result.Towers
	if towers < 1 {
		towers = 1
	}
	perTower := ModulesPerTower(result.ModuleCount, towers)

	for tower := 1; tower <= towers; tower++ {
		if towers > 1 {
			pterm.DefaultSection.Printfln("Tower %d", tower)
		}

		first, last := TowerRange(tower, perTower, result.ModuleCount)
		for id := first; id <= last; id++ {
			if module := result.Module(id); module != nil {
				renderModule(module, perTower)
			}
		}
	}

	for _, failure := range result.Failures {
		pterm.Error.Printfln("BMS%d: %s", failure.ModuleID, failure.Reason)
	}
}

func renderSummary(result *bmu.ScanResult) {
	if result.Summary == nil {
		pterm.Warning.Println("System summary unavailable")
		return
	}

	s := result.Summary
	power := s.CurrentA * s.PackVoltageV

	lines := []string{
		fmt.Sprintf("SoC: %3d%%  SoH: %3d%%  Voltage: %6.2fV  Current: %+.1fA  Power: %+.0fW",
			s.StateOfChargePct, s.StateOfHealthPct, s.PackVoltageV, s.CurrentA, power),
		fmt.Sprintf("Cells: %.2f - %.2fV  Temp: %d - %d°C  Energy in: %.0f kWh  Energy out: %.0f kWh  Round trip: %.1f%%",
			s.MinCellVoltageV, s.MaxCellVoltageV, s.MinCellTempC, s.MaxCellTempC,
			s.ChargeKwh, s.DischargeKwh, Efficiency(s.ChargeKwh, s.DischargeKwh)),
	}

	boxTitle := fmt.Sprintf("System  |  Modules: %d", result.ModuleCount)
	if result.BMUSerial != "" {
		boxTitle += "  |  BMU SN: " + result.BMUSerial
	}

	pterm.DefaultBox.WithTitle(boxTitle).WithTitleTopLeft().Println(strings.Join(lines, "\n"))
}

func renderModule(m *bmu.ModuleReading, modulesPerTower int) {
	minMv, maxMv, avgMv, spreadMv := CellStats(m.CellVoltagesMv)
	minC, maxC, _ := TempStats(m.CellTemperaturesC)

	state := pterm.FgGreen.Sprint("OK")
	switch {
	case m.ErrorFlags != 0:
		state = pterm.FgRed.Sprintf("ERR:0x%04X", m.ErrorFlags)
	case m.WarningFlags[0] != 0 || m.WarningFlags[1] != 0 || m.WarningFlags[2] != 0:
		state = pterm.FgYellow.Sprintf("W:0x%04X", m.WarningFlags[0])
	}

	balancing := pterm.FgGreen.Sprint("OFF")
	if len(m.BalancingCells) > 0 {
		balancing = pterm.FgYellow.Sprintf("%d cells", len(m.BalancingCells))
	}

	info1 := fmt.Sprintf("State: %s  Balancing: %s  Cycles: ~%.0f  SoH: %.0f%%  Warranty rem: %.1f%%",
		state, balancing,
		Cycles(m.DischargeLifetimeKwh), m.StateOfHealthPct,
		WarrantyRemainingPct(m.DischargeLifetimeKwh, modulesPerTower))

	info2 := fmt.Sprintf("SoC: %.1f%%  Volt: %.1fV  Curr: %+.1fA  Pwr: %+.0fW  Temp: %d-%d°C  kWh in: %.1f  kWh out: %.1f  η: %.0f%%",
		m.StateOfChargePct, m.BatteryVoltageV, m.CurrentA, m.PowerW,
		minC, maxC, m.ChargeLifetimeKwh, m.DischargeLifetimeKwh,
		Efficiency(m.ChargeLifetimeKwh, m.DischargeLifetimeKwh))

	table, err := pterm.DefaultTable.WithHasHeader().WithData(cellTable(m, avgMv, spreadMv, minMv, maxMv)).Srender()
	if err != nil {
		table = fmt.Sprintf("failed to render cell table: %v", err)
	}

	boxTitle := fmt.Sprintf("BMS%d  |  Module %d", m.ModuleID, PositionInTower(m.ModuleID, modulesPerTower))
	if m.SerialNumber != "" {
		boxTitle += "  |  SN: " + m.SerialNumber
	}

	pterm.DefaultBox.WithTitle(boxTitle).WithTitleTopLeft().
		Println(info1 + "\n" + info2 + "\n\n" + table)
}

// cellTable builds the per-cell voltage and temperature matrix. Balancing
// cells show yellow; voltage extremes show cyan (low) and red (high) when
// the module has any drift at all.
func cellTable(m *bmu.ModuleReading, avgMv float64, spreadMv, minMv, maxMv int16) pterm.TableData {
	header := []string{""}
	for i := 1; i <= len(m.CellVoltagesMv); i++ {
		header = append(header, fmt.Sprintf("C%d", i))
	}
	header = append(header, "Avg", "Drift")

	balancing := make(map[int]bool, len(m.BalancingCells))
	for _, cell := range m.BalancingCells {
		balancing[cell] = true
	}

	voltRow := []string{"mV"}
	for i, v := range m.CellVoltagesMv {
		cell := fmt.Sprintf("%d", v)
		switch {
		case balancing[i+1]:
			cell = pterm.FgYellow.Sprint(cell)
		case spreadMv > 0 && v == maxMv:
			cell = pterm.FgRed.Sprint(cell)
		case spreadMv > 0 && v == minMv:
			cell = pterm.FgCyan.Sprint(cell)
		}
		voltRow = append(voltRow, cell)
	}
	voltRow = append(voltRow, fmt.Sprintf("%.0f", avgMv), fmt.Sprintf("%d mV", spreadMv))

	tempRow := []string{"°C"}
	for _, t := range m.CellTemperaturesC {
		if t <= 0 {
			tempRow = append(tempRow, "")
			continue
		}
		tempRow = append(tempRow, fmt.Sprintf("%d", t))
	}
	for len(tempRow) < len(header) {
		tempRow = append(tempRow, "")
	}

	return pterm.TableData{header, voltRow, tempRow}
}
