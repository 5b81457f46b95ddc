package bmu

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/oliveres/byd-lvs-monitor/internal/bmu/parser"
)

// fakeTransport serves scripted register responses and records the exact
// order of operations so tests can assert the write -> poll -> read
// sequence. All timing goes through an injected no-op sleep.
type fakeTransport struct {
	ops []string

	// Poll behavior: number of polls answered "not ready" before the ready
	// flag appears. readyNever keeps the flag down for the whole budget,
	// busyPolls answers the first N polls with an error instead of a value.
	pollsUntilReady int
	readyNever      bool
	busyPolls       int

	failWriteModule int // module ID whose command write fails, 0 = none
	failChunk       int // chunk index whose read fails, -1 = none
	failSummary     int // number of summary reads to fail before succeeding

	moduleData map[int][]uint16 // full 260-register buffer per module

	currentModule int
	polls         int
	chunkCursor   int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{failChunk: -1, moduleData: map[int][]uint16{}}
}

func (f *fakeTransport) WriteMultipleRegisters(_ context.Context, address, quantity uint16, value []byte) ([]byte, error) {
	f.ops = append(f.ops, fmt.Sprintf("write 0x%04X", address))

	if address != regCommand || quantity != 2 {
		return nil, fmt.Errorf("unexpected write to 0x%04X", address)
	}

	regs, err := parser.Registers(value)
	if err != nil {
		return nil, err
	}
	if regs[1] != cmdRequestData {
		return nil, fmt.Errorf("unexpected command 0x%04X", regs[1])
	}

	f.currentModule = int(regs[0])
	f.polls = 0
	f.chunkCursor = 0

	if f.failWriteModule != 0 && f.currentModule == f.failWriteModule {
		return nil, errors.New("write refused")
	}

	return value, nil
}

func (f *fakeTransport) ReadHoldingRegisters(_ context.Context, address, quantity uint16) ([]byte, error) {
	f.ops = append(f.ops, fmt.Sprintf("read 0x%04X", address))

	switch address {
	case regStatus:
		f.polls++
		if f.polls <= f.busyPolls {
			return nil, errors.New("device busy")
		}
		if f.readyNever || f.polls <= f.busyPolls+f.pollsUntilReady {
			return parser.EncodeUint16s([]uint16{0x0000}), nil
		}
		return parser.EncodeUint16s([]uint16{respDataReady}), nil

	case regData:
		if f.chunkCursor == f.failChunk {
			return nil, errors.New("read failed")
		}
		data := f.moduleData[f.currentModule]
		if data == nil {
			data = moduleFixture()
		}
		chunk := data[f.chunkCursor*ChunkSize : (f.chunkCursor+1)*ChunkSize]
		f.chunkCursor++
		return parser.EncodeUint16s(chunk), nil

	case regModuleCount:
		return parser.EncodeUint16s([]uint16{0x0014}), nil // low nibble 4

	case regBMUSerial:
		if quantity != SerialRegisters {
			return nil, fmt.Errorf("unexpected serial quantity %d", quantity)
		}
		return parser.EncodeUint16s(packASCII("BYD2305xxxxxxxxxxxxx")), nil

	case regSummary:
		if f.failSummary > 0 {
			f.failSummary--
			return nil, errors.New("crc mismatch")
		}
		if quantity != SummaryRegisters {
			return nil, fmt.Errorf("unexpected summary quantity %d", quantity)
		}
		return parser.EncodeUint16s(summaryFixture()), nil
	}

	return nil, fmt.Errorf("unexpected read of 0x%04X", address)
}

func (f *fakeTransport) Close() {}

func packASCII(s string) []uint16 {
	regs := make([]uint16, len(s)/2)
	for i := range regs {
		regs[i] = uint16(s[i*2])<<8 | uint16(s[i*2+1])
	}
	return regs
}

// noSleep fulfils the wall-clock waits instantly while recording them.
func noSleep(slept *[]time.Duration) SleepFunc {
	return func(_ context.Context, d time.Duration) error {
		if slept != nil {
			*slept = append(*slept, d)
		}
		return nil
	}
}

func TestSequencerQueryModule(t *testing.T) {
	transport := newFakeTransport()
	transport.pollsUntilReady = 2

	var slept []time.Duration
	seq := NewSequencer(transport, WithSleep(noSleep(&slept)))

	regs, err := seq.QueryModule(context.Background(), 1)
	if err != nil {
		t.Fatalf("QueryModule() error = %v", err)
	}
	if len(regs) != ModuleRegisters {
		t.Fatalf("QueryModule() returned %d registers, want %d", len(regs), ModuleRegisters)
	}

	// Exactly one write, then only status polls, then exactly four data
	// reads in order. No data read may precede the ready flag.
	if len(transport.ops) != 1+3+ChunkCount {
		t.Fatalf("operation count = %d (%v)", len(transport.ops), transport.ops)
	}
	if transport.ops[0] != "write 0x0550" {
		t.Errorf("first op = %s, want write 0x0550", transport.ops[0])
	}
	for i := 1; i <= 3; i++ {
		if transport.ops[i] != "read 0x0551" {
			t.Errorf("op %d = %s, want status poll", i, transport.ops[i])
		}
	}
	for i := 4; i < 4+ChunkCount; i++ {
		if transport.ops[i] != "read 0x0558" {
			t.Errorf("op %d = %s, want data read", i, transport.ops[i])
		}
	}
}

func TestSequencerAbsorbsBusyPolls(t *testing.T) {
	transport := newFakeTransport()
	transport.busyPolls = 3

	seq := NewSequencer(transport, WithSleep(noSleep(nil)))

	regs, err := seq.QueryModule(context.Background(), 2)
	if err != nil {
		t.Fatalf("QueryModule() error = %v", err)
	}
	if len(regs) != ModuleRegisters {
		t.Fatalf("QueryModule() returned %d registers, want %d", len(regs), ModuleRegisters)
	}
	if transport.polls != 4 {
		t.Errorf("polls = %d, want 4 (3 busy + 1 ready)", transport.polls)
	}
}

func TestSequencerPollTimeout(t *testing.T) {
	transport := newFakeTransport()
	transport.readyNever = true

	seq := NewSequencer(transport,
		WithSleep(noSleep(nil)),
		WithPollInterval(500*time.Millisecond),
		WithPollTimeout(10*time.Second),
	)

	_, err := seq.QueryModule(context.Background(), 9)

	var timeout *TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("QueryModule() error = %v, want TimeoutError", err)
	}
	if timeout.ModuleID != 9 {
		t.Errorf("TimeoutError.ModuleID = %d, want 9", timeout.ModuleID)
	}
	if transport.polls != 20 {
		t.Errorf("polls = %d, want 20 within the 10s budget", transport.polls)
	}

	// The budget expiring must never be followed by data reads.
	for _, op := range transport.ops {
		if op == "read 0x0558" {
			t.Fatalf("data read after poll timeout: %v", transport.ops)
		}
	}
}

func TestSequencerWriteFailure(t *testing.T) {
	transport := newFakeTransport()
	transport.failWriteModule = 1

	seq := NewSequencer(transport, WithSleep(noSleep(nil)))

	_, err := seq.QueryModule(context.Background(), 1)

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("QueryModule() error = %v, want TransportError", err)
	}
	if len(transport.ops) != 1 {
		t.Errorf("ops after failed write = %v, want only the write", transport.ops)
	}
}

func TestSequencerChunkFailureDiscardsBuffer(t *testing.T) {
	transport := newFakeTransport()
	transport.failChunk = 2

	seq := NewSequencer(transport, WithSleep(noSleep(nil)))

	regs, err := seq.QueryModule(context.Background(), 1)

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("QueryModule() error = %v, want TransportError", err)
	}
	if regs != nil {
		t.Errorf("partial buffer returned (%d registers), want nil", len(regs))
	}

	// A failed FIFO read must never be re-issued: the retry would consume
	// the next slice and shift every following field.
	dataReads := 0
	for _, op := range transport.ops {
		if op == "read 0x0558" {
			dataReads++
		}
	}
	if dataReads != 3 {
		t.Errorf("data reads = %d, want 3 (two good chunks plus the single failed attempt)", dataReads)
	}
}

func TestSequencerSleepCancellation(t *testing.T) {
	transport := newFakeTransport()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	seq := NewSequencer(transport) // real context-aware sleep

	_, err := seq.QueryModule(ctx, 1)
	if err == nil {
		t.Fatal("QueryModule() with cancelled context should fail")
	}
}
