package bmu

// Register map of the BYD Battery-Box BMU. The BMU speaks Modbus RTU framed
// over a plain TCP socket, slave ID 1, and rejects reads larger than 65
// registers. The cell-level dataset is not directly addressable: it has to
// be requested via the command register and drained from a FIFO-like data
// register in fixed-size chunks.
const (
	// Directly readable blocks.
	regBMUSerial   uint16 = 0x0000 // 10 registers, ASCII byte pairs
	regModuleCount uint16 = 0x0010 // module count in the low nibble
	regSummary     uint16 = 0x0500 // 25 registers, system snapshot

	// Per-module query sequence.
	regCommand uint16 = 0x0550 // write [moduleID, cmdRequestData]
	regStatus  uint16 = 0x0551 // poll until respDataReady
	regData    uint16 = 0x0558 // FIFO data, chunkSize registers per read

	cmdRequestData uint16 = 0x8100
	respDataReady  uint16 = 0x8801
)

const (
	// SerialRegisters is the width of the BMU serial number block.
	SerialRegisters = 10

	// SummaryRegisters is the width of the system summary block.
	SummaryRegisters = 25

	// ChunkSize is the largest read the BMU accepts, and the exact size of
	// one FIFO slice.
	ChunkSize = 65

	// ChunkCount FIFO reads compose one module's dataset. Each read of
	// regData returns the next slice, so read order is part of the
	// contract.
	ChunkCount = 4

	// ModuleRegisters is the full per-module buffer: ChunkCount * ChunkSize.
	ModuleRegisters = ChunkCount * ChunkSize

	// CellsPerModule is the number of LFP cells in one LVS module.
	CellsPerModule = 16

	// TempSensorsPerModule is the number of NTC sensors in one LVS module.
	TempSensorsPerModule = 8

	// DefaultModuleCount is assumed when auto-detection fails. LVS towers
	// are documented up to 8 modules; IDs beyond that get no response.
	DefaultModuleCount = 8
)

// Offsets into the 260-register module buffer. These positions come from
// reverse engineering of the BE Connect exchange and must be treated as a
// versioned binary contract: do not re-derive them, pin them with fixtures.
const (
	offPayloadSize  = 0
	offMaxCellMv    = 1
	offMinCellMv    = 2
	offMaxVoltCell  = 3 // hi byte cell, lo byte module
	offMaxTemp      = 4
	offMinTemp      = 5
	offMaxTempCell  = 6 // hi byte sensor, lo byte module
	offBalancing    = 7
	offChargeKwh    = 15 // dword, low word first
	offDischargeKwh = 17 // dword, low word first
	offBatVoltage   = 21
	offOutVoltage   = 24
	offSoc          = 25
	offSoh          = 26
	offCurrent      = 27
	offWarnings1    = 28
	offWarnings2    = 29
	offWarnings3    = 30
	offSerialStart  = 34
	offSerialEnd    = 46 // exclusive, 12 registers = 24 ASCII bytes
	offErrors       = 48
	offCellVolts    = 49 // 16 registers, one cell each
	offCellTemps    = 180 // 4 registers in chunk 2, two signed bytes each
)

// Offsets into the 25-register summary block.
const (
	sumSoc          = 0
	sumMaxCellVolt  = 1
	sumMinCellVolt  = 2
	sumSoh          = 3
	sumCurrent      = 4
	sumPackVoltage  = 5
	sumMaxTemp      = 6
	sumMinTemp      = 7
	sumPackVoltage2 = 16
	sumChargeKwh    = 17 // dword, low word first
	sumDischargeKwh = 19 // dword, low word first
)
