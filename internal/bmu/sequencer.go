package bmu

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/oliveres/byd-lvs-monitor/internal/bmu/parser"
)

// Poll timing defaults. The BMU needs real wall-clock time to stage a
// module's data after the command write; a blind fixed delay would race it.
const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultPollTimeout  = 10 * time.Second
	DefaultChunkDelay   = 200 * time.Millisecond
)

// SleepFunc waits for d or until the context is cancelled. Injectable so
// tests exercise timeout and busy-retry paths without real delays.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sequencer drives the write / poll / chunked-read exchange that retrieves
// one module's cell-level dataset:
//
//  1. write [moduleID, 0x8100] to the command register
//  2. poll the status register until it reads 0x8801
//  3. drain four 65-register chunks from the data register, in order
//
// Each read of the data register returns the next FIFO slice, so the chunk
// reads must happen sequentially and must not be reordered.
type Sequencer struct {
	transport Transport

	pollInterval time.Duration
	pollTimeout  time.Duration
	chunkDelay   time.Duration

	sleep SleepFunc
}

// SequencerOption adjusts sequencer timing.
type SequencerOption func(*Sequencer)

// WithPollInterval sets the spacing between status polls.
func WithPollInterval(d time.Duration) SequencerOption {
	return func(s *Sequencer) { s.pollInterval = d }
}

// WithPollTimeout sets the total budget to wait for the ready flag.
func WithPollTimeout(d time.Duration) SequencerOption {
	return func(s *Sequencer) { s.pollTimeout = d }
}

// WithChunkDelay sets the settling delay between FIFO chunk reads.
func WithChunkDelay(d time.Duration) SequencerOption {
	return func(s *Sequencer) { s.chunkDelay = d }
}

// WithSleep replaces the wall-clock wait, for tests.
func WithSleep(fn SleepFunc) SequencerOption {
	return func(s *Sequencer) { s.sleep = fn }
}

// NewSequencer creates a sequencer over the given transport.
func NewSequencer(transport Transport, opts ...SequencerOption) *Sequencer {
	s := &Sequencer{
		transport:    transport,
		pollInterval: DefaultPollInterval,
		pollTimeout:  DefaultPollTimeout,
		chunkDelay:   DefaultChunkDelay,
		sleep:        sleepContext,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// QueryModule runs the full exchange for one module and returns the flat
// 260-register buffer for decoding. Errors are typed: *TransportError when a
// register operation fails outright, *TimeoutError when the ready flag never
// appears within the poll budget. A partially drained FIFO is discarded.
func (s *Sequencer) QueryModule(ctx context.Context, moduleID int) ([]uint16, error) {
	command := parser.EncodeUint16s([]uint16{uint16(moduleID), cmdRequestData})

	if _, err := s.transport.WriteMultipleRegisters(ctx, regCommand, 2, command); err != nil {
		return nil, &TransportError{Op: fmt.Sprintf("request module %d", moduleID), Err: err}
	}

	if err := s.waitReady(ctx, moduleID); err != nil {
		return nil, err
	}

	regs := make([]uint16, 0, ModuleRegisters)

	for chunk := 0; chunk < ChunkCount; chunk++ {
		if err := s.sleep(ctx, s.chunkDelay); err != nil {
			return nil, &TransportError{Op: fmt.Sprintf("module %d chunk %d", moduleID, chunk), Err: err}
		}

		data, err := s.transport.ReadHoldingRegisters(ctx, regData, ChunkSize)
		if err != nil {
			return nil, &TransportError{Op: fmt.Sprintf("module %d chunk %d", moduleID, chunk), Err: err}
		}

		chunkRegs, err := parser.Registers(data)
		if err != nil || len(chunkRegs) != ChunkSize {
			return nil, &MalformedDataError{What: fmt.Sprintf("module %d chunk %d", moduleID, chunk), Expected: ChunkSize, Got: len(data) / 2}
		}

		regs = append(regs, chunkRegs...)
	}

	return regs, nil
}

// waitReady polls the status register until the ready flag appears or the
// budget runs out. Transient read errors are absorbed and counted against
// the same budget: the BMU legitimately answers "busy" while it is serving
// its CAN link to the inverter.
func (s *Sequencer) waitReady(ctx context.Context, moduleID int) error {
	for waited := time.Duration(0); waited < s.pollTimeout; waited += s.pollInterval {
		if err := s.sleep(ctx, s.pollInterval); err != nil {
			return &TransportError{Op: fmt.Sprintf("poll module %d", moduleID), Err: err}
		}

		data, err := s.transport.ReadHoldingRegisters(ctx, regStatus, 1)
		if err != nil {
			log.Debugf("module %d status poll failed, retrying: %s", moduleID, err)
			continue
		}

		regs, err := parser.Registers(data)
		if err != nil || len(regs) != 1 {
			log.Debugf("module %d status poll returned %d bytes, retrying", moduleID, len(data))
			continue
		}

		if regs[0] == respDataReady {
			return nil
		}
	}

	return &TimeoutError{ModuleID: moduleID, Budget: s.pollTimeout}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
