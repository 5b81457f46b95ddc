package bmu

import "context"

// Transport is the register-level access the BMU exposes. The production
// implementation is Client; tests substitute fixtures. The device serves one
// client and one in-flight request at a time, so a Transport must never be
// shared across concurrent scans.
type Transport interface {
	// ReadHoldingRegisters reads quantity registers starting at address and
	// returns them as big-endian byte pairs.
	ReadHoldingRegisters(ctx context.Context, address, quantity uint16) ([]byte, error)

	// WriteMultipleRegisters writes quantity registers starting at address.
	WriteMultipleRegisters(ctx context.Context, address, quantity uint16, value []byte) ([]byte, error)

	// Close releases the underlying connection.
	Close()
}
