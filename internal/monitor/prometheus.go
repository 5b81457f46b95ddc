package monitor

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/oliveres/byd-lvs-monitor/internal/bmu"
)

// PrometheusCollector exposes scan data as Prometheus metrics. Per-cell
// series carry module and cell labels so a single tower shows up as one
// coherent grid in Grafana.
type PrometheusCollector struct {
	failures      prometheus.Counter
	moduleFailure *prometheus.GaugeVec

	systemSoc         prometheus.Gauge
	systemSoh         prometheus.Gauge
	packVoltage       prometheus.Gauge
	packCurrent       prometheus.Gauge
	systemMaxCellVolt prometheus.Gauge
	systemMinCellVolt prometheus.Gauge

	moduleSoc         *prometheus.GaugeVec
	moduleSoh         *prometheus.GaugeVec
	moduleCurrent     *prometheus.GaugeVec
	modulePower       *prometheus.GaugeVec
	moduleVoltage     *prometheus.GaugeVec
	moduleChargeKwh   *prometheus.GaugeVec
	moduleDischarge   *prometheus.GaugeVec
	moduleBalancing   *prometheus.GaugeVec
	moduleErrorFlags  *prometheus.GaugeVec

	cellVoltage     *prometheus.GaugeVec
	cellBalancing   *prometheus.GaugeVec
	cellTemperature *prometheus.GaugeVec
}

func NewPrometheusCollector() *PrometheusCollector {
	c := &PrometheusCollector{
		failures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_failures",
			Help:      "Number of battery scans that failed entirely.",
		}),
		moduleFailure: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "module_failed",
			Help:      "1 when the module could not be read in the last scan.",
		}, []string{"module"}),

		systemSoc: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "system_soc",
			Help:      "System state of charge (%).",
		}),
		systemSoh: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "system_soh",
			Help:      "System state of health (%).",
		}),
		packVoltage: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pack_voltage",
			Help:      "Battery pack voltage (V).",
		}),
		packCurrent: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pack_current",
			Help:      "Battery pack current (A), positive while charging.",
		}),
		systemMaxCellVolt: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "max_cell_voltage",
			Help:      "Highest cell voltage in the system (V).",
		}),
		systemMinCellVolt: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "min_cell_voltage",
			Help:      "Lowest cell voltage in the system (V).",
		}),

		moduleSoc: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "module_soc",
			Help:      "Module state of charge (%).",
		}, []string{"module"}),
		moduleSoh: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "module_soh",
			Help:      "Module state of health (%).",
		}, []string{"module"}),
		moduleCurrent: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "module_current",
			Help:      "Module current (A), positive while charging.",
		}, []string{"module"}),
		modulePower: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "module_power",
			Help:      "Module power (W).",
		}, []string{"module"}),
		moduleVoltage: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "module_voltage",
			Help:      "Module battery voltage (V).",
		}, []string{"module"}),
		moduleChargeKwh: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "module_charge_energy",
			Help:      "Module lifetime charge energy (kWh).",
		}, []string{"module"}),
		moduleDischarge: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "module_discharge_energy",
			Help:      "Module lifetime discharge energy (kWh).",
		}, []string{"module"}),
		moduleBalancing: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "module_balancing_cells",
			Help:      "Number of cells currently balancing in the module.",
		}, []string{"module"}),
		moduleErrorFlags: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "module_error_flags",
			Help:      "Raw module error bitmask.",
		}, []string{"module"}),

		cellVoltage: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cell_voltage_millivolts",
			Help:      "Cell voltage (mV).",
		}, []string{"module", "cell"}),
		cellBalancing: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cell_balancing",
			Help:      "1 when the cell is balancing.",
		}, []string{"module", "cell"}),
		cellTemperature: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cell_temperature",
			Help:      "NTC sensor temperature (C).",
		}, []string{"module", "sensor"}),
	}

	return c
}

func (c *PrometheusCollector) IncrementFailures() {
	c.failures.Inc()
}

func (c *PrometheusCollector) SetMetrics(result *bmu.ScanResult) {
	if result == nil {
		return
	}

	if s := result.Summary; s != nil {
		c.systemSoc.Set(float64(s.StateOfChargePct))
		c.systemSoh.Set(float64(s.StateOfHealthPct))
		c.packVoltage.Set(s.PackVoltageV)
		c.packCurrent.Set(s.CurrentA)
		c.systemMaxCellVolt.Set(s.MaxCellVoltageV)
		c.systemMinCellVolt.Set(s.MinCellVoltageV)
	}

	for _, m := range result.Modules {
		module := strconv.Itoa(m.ModuleID)

		c.moduleFailure.WithLabelValues(module).Set(0)
		c.moduleSoc.WithLabelValues(module).Set(m.StateOfChargePct)
		c.moduleSoh.WithLabelValues(module).Set(m.StateOfHealthPct)
		c.moduleCurrent.WithLabelValues(module).Set(m.CurrentA)
		c.modulePower.WithLabelValues(module).Set(m.PowerW)
		c.moduleVoltage.WithLabelValues(module).Set(m.BatteryVoltageV)
		c.moduleChargeKwh.WithLabelValues(module).Set(m.ChargeLifetimeKwh)
		c.moduleDischarge.WithLabelValues(module).Set(m.DischargeLifetimeKwh)
		c.moduleBalancing.WithLabelValues(module).Set(float64(len(m.BalancingCells)))
		c.moduleErrorFlags.WithLabelValues(module).Set(float64(m.ErrorFlags))

		for i, v := range m.CellVoltagesMv {
			cell := strconv.Itoa(i + 1)
			c.cellVoltage.WithLabelValues(module, cell).Set(float64(v))

			balancing := 0.0
			if m.BalancingMask&(1<<i) != 0 {
				balancing = 1.0
			}
			c.cellBalancing.WithLabelValues(module, cell).Set(balancing)
		}

		for i, t := range m.CellTemperaturesC {
			c.cellTemperature.WithLabelValues(module, strconv.Itoa(i+1)).Set(float64(t))
		}
	}

	for _, f := range result.Failures {
		c.moduleFailure.WithLabelValues(strconv.Itoa(f.ModuleID)).Set(1)
	}
}
