// Package render formats scan results for the terminal and derives the
// display-only statistics (drift, cycles, efficiency, warranty headroom)
// that are not part of the wire data.
package render

// moduleUsableKwh is the usable capacity per cycle of one LVS module
// (4.0 kWh nameplate at ~90% usable depth of discharge).
const moduleUsableKwh = 3.6

// warrantyMwh maps tower size (modules per tower) to the Minimum Throughput
// Energy in MWh from the BYD Battery-Box Premium LVS limited warranty.
var warrantyMwh = map[int]float64{
	1: 11.88, // LVS 4.0
	2: 23.76, // LVS 8.0
	3: 35.64, // LVS 12.0
	4: 47.53, // LVS 16.0
	5: 59.41, // LVS 20.0
	6: 71.29, // LVS 24.0
}

// Cycles estimates the number of full charge cycles a module has seen from
// its lifetime discharge energy.
func Cycles(dischargeKwh float64) float64 {
	return dischargeKwh / moduleUsableKwh
}

// Efficiency is the lifetime round-trip efficiency in percent. Zero charge
// energy yields zero rather than a division error.
func Efficiency(chargeKwh, dischargeKwh float64) float64 {
	if chargeKwh <= 0 {
		return 0
	}
	return dischargeKwh / chargeKwh * 100
}

// WarrantyRemainingPct estimates how much of the warranted throughput energy
// a module still has, in percent. Tower sizes outside the warranty table
// yield zero.
func WarrantyRemainingPct(dischargeKwh float64, modulesPerTower int) float64 {
	towerKwh := warrantyMwh[modulesPerTower] * 1000
	if towerKwh <= 0 {
		return 0
	}
	moduleKwh := towerKwh / float64(modulesPerTower)
	return 100 - dischargeKwh/moduleKwh*100
}

// CellStats summarizes a module's cell voltages.
func CellStats(voltagesMv []int16) (minMv, maxMv int16, avgMv float64, spreadMv int16) {
	if len(voltagesMv) == 0 {
		return 0, 0, 0, 0
	}

	minMv, maxMv = voltagesMv[0], voltagesMv[0]
	sum := 0
	for _, v := range voltagesMv {
		if v < minMv {
			minMv = v
		}
		if v > maxMv {
			maxMv = v
		}
		sum += int(v)
	}

	return minMv, maxMv, float64(sum) / float64(len(voltagesMv)), maxMv - minMv
}

// TempStats summarizes a module's temperature sensors. Sensors reading zero
// or below are unpopulated and excluded.
func TempStats(temps []int8) (minC, maxC int8, valid int) {
	for _, t := range temps {
		if t <= 0 {
			continue
		}
		if valid == 0 || t < minC {
			minC = t
		}
		if valid == 0 || t > maxC {
			maxC = t
		}
		valid++
	}
	return minC, maxC, valid
}

// ModulesPerTower splits the module count across towers, rounding up so an
// uneven count leaves the last tower short rather than dropping modules.
func ModulesPerTower(moduleCount, towers int) int {
	if towers <= 1 {
		return moduleCount
	}
	return (moduleCount + towers - 1) / towers
}

// TowerRange returns the inclusive module ID range belonging to the given
// 1-based tower.
func TowerRange(tower, modulesPerTower, moduleCount int) (first, last int) {
	first = (tower-1)*modulesPerTower + 1
	last = first + modulesPerTower - 1
	if last > moduleCount {
		last = moduleCount
	}
	return first, last
}

// PositionInTower converts a module ID to its 1-based position within its
// tower.
func PositionInTower(moduleID, modulesPerTower int) int {
	if modulesPerTower <= 0 {
		return moduleID
	}
	return (moduleID-1)%modulesPerTower + 1
}
