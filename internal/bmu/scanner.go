package bmu

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	log "github.com/sirupsen/logrus"

	"github.com/oliveres/byd-lvs-monitor/internal/bmu/parser"
)

const (
	blockReadAttempts   = 2
	blockReadRetryDelay = 100 * time.Millisecond
)

// ScannerConfig controls a scan. Modules = 0 means auto-detect from the
// configuration register; Towers only affects how results are grouped for
// display and defaults to 1.
type ScannerConfig struct {
	Modules int
	Towers  int
}

// Scanner runs complete battery scans: summary, identity, then every module
// in ascending ID order through the sequencer. One module failing does not
// stop the scan of the remaining modules.
type Scanner struct {
	transport Transport
	sequencer *Sequencer
	config    ScannerConfig
}

// NewScanner creates a scanner that owns the transport for the duration of
// each Scan call. The transport must not be used concurrently elsewhere.
func NewScanner(transport Transport, config ScannerConfig, opts ...SequencerOption) *Scanner {
	if config.Towers < 1 {
		config.Towers = 1
	}

	return &Scanner{
		transport: transport,
		sequencer: NewSequencer(transport, opts...),
		config:    config,
	}
}

// DetectModules reads the installed module count from the low nibble of the
// configuration register.
func (s *Scanner) DetectModules(ctx context.Context) (int, error) {
	regs, err := s.readRegisters(ctx, regModuleCount, 1, "module count")
	if err != nil {
		return 0, err
	}

	count := int(regs[0] & 0x0F)
	if count == 0 {
		return 0, fmt.Errorf("configuration register reports zero modules")
	}

	return count, nil
}

// ReadBMUSerial reads the BMU serial number from the identity block.
func (s *Scanner) ReadBMUSerial(ctx context.Context) (string, error) {
	regs, err := s.readRegisters(ctx, regBMUSerial, SerialRegisters, "bmu serial")
	if err != nil {
		return "", err
	}

	return parser.ASCII(regs), nil
}

// ReadSummary reads and decodes the system summary block.
func (s *Scanner) ReadSummary(ctx context.Context) (*SystemSummary, error) {
	regs, err := s.readRegisters(ctx, regSummary, SummaryRegisters, "summary")
	if err != nil {
		return nil, err
	}

	summary, err := DecodeSummary(regs)
	if err != nil {
		return nil, err
	}

	summary.Towers = s.config.Towers

	return summary, nil
}

// Scan performs one complete pass over the battery. Module-scoped failures
// (timeout, transport error, malformed buffer) are recorded on the result;
// only a summary or identity read failing is logged and left empty. A
// cancelled context aborts the scan with an error instead of piling up one
// failure per remaining module. The returned result is immutable and owned
// by the caller.
func (s *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	result := &ScanResult{
		Timestamp: time.Now(),
		Towers:    s.config.Towers,
	}

	count := s.config.Modules
	if count <= 0 {
		detected, err := s.DetectModules(ctx)
		if err != nil {
			if sessionDead(err) {
				return nil, &TransportError{Op: "scan aborted detecting module count", Err: err}
			}
			log.Warnf("cannot auto-detect module count, assuming %d: %s", DefaultModuleCount, err)
			count = DefaultModuleCount
		} else {
			count = detected
		}
	}
	result.ModuleCount = count

	serial, err := s.ReadBMUSerial(ctx)
	if err != nil {
		if sessionDead(err) {
			return nil, &TransportError{Op: "scan aborted reading bmu serial", Err: err}
		}
		log.Warnf("failed to read bmu serial: %s", err)
	}
	result.BMUSerial = serial

	summary, err := s.ReadSummary(ctx)
	if err != nil {
		if sessionDead(err) {
			return nil, &TransportError{Op: "scan aborted reading summary", Err: err}
		}
		log.Warnf("failed to read system summary: %s", err)
	}
	result.Summary = summary

	for id := 1; id <= count; id++ {
		log.Debugf("querying module %d of %d", id, count)

		regs, err := s.sequencer.QueryModule(ctx, id)
		if err != nil {
			if sessionDead(err) {
				return nil, &TransportError{Op: fmt.Sprintf("scan aborted at module %d", id), Err: err}
			}
			log.Warnf("module %d query failed: %s", id, err)
			result.Failures = append(result.Failures, ModuleFailure{ModuleID: id, Reason: err.Error(), Err: err})
			continue
		}

		reading, err := DecodeModuleReading(id, regs)
		if err != nil {
			log.Warnf("module %d decode failed: %s", id, err)
			result.Failures = append(result.Failures, ModuleFailure{ModuleID: id, Reason: err.Error(), Err: err})
			continue
		}

		result.Modules = append(result.Modules, *reading)
	}

	return result, nil
}

// readRegisters reads a directly addressable block. These blocks are
// idempotent (unlike the FIFO data register, which must never be re-read),
// so a transient failure gets one retry.
func (s *Scanner) readRegisters(ctx context.Context, address, quantity uint16, what string) ([]uint16, error) {
	var data []byte

	err := retry.Do(
		func() error {
			var readErr error
			data, readErr = s.transport.ReadHoldingRegisters(ctx, address, quantity)
			return readErr
		},
		retry.Attempts(blockReadAttempts),
		retry.Delay(blockReadRetryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warnf("read %s at 0x%04X retry #%d: %s", what, address, n, err)
		}),
		retry.Context(ctx),
	)
	if err != nil {
		return nil, &TransportError{Op: fmt.Sprintf("read %s", what), Err: err}
	}

	regs, err := parser.Registers(data)
	if err != nil || len(regs) != int(quantity) {
		return nil, &MalformedDataError{What: what, Expected: int(quantity), Got: len(data) / 2}
	}

	return regs, nil
}

// sessionDead reports whether an error means the whole session is unusable,
// as opposed to one module misbehaving.
func sessionDead(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
