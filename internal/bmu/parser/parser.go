// Package parser holds the pure byte- and word-level decoding primitives for
// the BYD register formats. Nothing in here does I/O; everything operates on
// register values already read from the device.
package parser

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Signed register threshold: raw values at or above this are negative.
const (
	SignedThreshold = 32768
	SignedOffset    = 65536
)

// EnergyDivisor converts raw lifetime energy counters to kWh.
const EnergyDivisor = 1000.0

// Registers converts a raw Modbus response (big-endian byte pairs) into
// 16-bit register values.
func Registers(data []byte) ([]uint16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("register data must be an even number of bytes, got %d", len(data))
	}

	regs := make([]uint16, len(data)/2)
	for i := range regs {
		regs[i] = binary.BigEndian.Uint16(data[i*2 : i*2+2])
	}

	return regs, nil
}

// Signed16 reinterprets an unsigned register as a signed 16-bit value.
func Signed16(raw uint16) int16 {
	v := int32(raw)
	if v >= SignedThreshold {
		v -= SignedOffset
	}
	return int16(v)
}

// ScaledSigned sign-extends the register and then applies the scale factor.
// Scaling always happens after sign extension, never before.
func ScaledSigned(raw uint16, scale float64) float64 {
	return float64(Signed16(raw)) * scale
}

// EnergyKwh assembles a 32-bit lifetime energy counter from two registers in
// little-endian word order (low word first) and converts it to kWh.
func EnergyKwh(low, high uint16) float64 {
	return float64(uint32(low)+uint32(high)*65536) / EnergyDivisor
}

// ASCII decodes packed text from registers: each register carries two
// characters, high byte first. Bytes outside the printable range [32, 126]
// are dropped, and trailing pad characters ('x', space, NUL) are stripped.
func ASCII(regs []uint16) string {
	var b strings.Builder
	for _, r := range regs {
		for _, c := range [2]byte{byte(r >> 8), byte(r)} {
			if c >= 32 && c <= 126 {
				b.WriteByte(c)
			}
		}
	}
	return strings.TrimRight(b.String(), "x \x00")
}

// SignedBytePair splits a register into two independent signed 8-bit values,
// high byte first. The values are unrelated; only the packing is paired.
func SignedBytePair(reg uint16) (hi, lo int8) {
	return int8(reg >> 8), int8(reg)
}

// BytePair splits a register into two unsigned bytes, high byte first.
func BytePair(reg uint16) (hi, lo uint8) {
	return uint8(reg >> 8), uint8(reg)
}

// MaskBits expands a bitmask into 1-based unit numbers: bit i set means
// unit i+1. The same convention applies to every mask the BMU reports.
func MaskBits(mask uint16, width int) []int {
	var units []int
	for bit := 0; bit < width; bit++ {
		if mask&(1<<bit) != 0 {
			units = append(units, bit+1)
		}
	}
	return units
}

// EncodeUint16s encodes register values to bytes in big-endian order, the
// layout Modbus write requests expect.
func EncodeUint16s(values []uint16) []byte {
	data := make([]byte, len(values)*2)
	for i, v := range values {
		binary.BigEndian.PutUint16(data[i*2:], v)
	}
	return data
}
