package qr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"luka-points/internal/core/domain"

	"github.com/rs/zerolog"
)

// ScanState is the scanner lifecycle state.
type ScanState int32

const (
	StateIdle ScanState = iota
	StateScanning
	StateDecoded
)

func (s ScanState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateDecoded:
		return "decoded"
	default:
		return "unknown"
	}
}

// defaultInterval targets roughly 10 frames per second.
const defaultInterval = 100 * time.Millisecond

// ErrScanActive reports that a scan is already running on this scanner.
var ErrScanActive = errors.New("qr: scan already in progress")

// FrameSource supplies video frames to the scanner. Open acquires the
// underlying device and Close releases it. NextFrame blocks until a
// frame is available or the context ends.
type FrameSource interface {
	Open(ctx context.Context) error
	NextFrame(ctx context.Context) (image.Image, error)
	Close() error
}

// Scanner polls a FrameSource for frames until one yields a well-formed
// payment request. Frames without a code and frames whose payload fails
// the schema are both skipped silently; scanning only stops on success,
// cancellation, or a frame-source failure.
type Scanner struct {
	source   FrameSource
	interval time.Duration
	log      zerolog.Logger

	state     atomic.Int32
	malformed atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewScanner builds a scanner over source. An interval of zero selects
// the default polling rate.
func NewScanner(source FrameSource, interval time.Duration, log zerolog.Logger) *Scanner {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scanner{
		source:   source,
		interval: interval,
		log:      log.With().Str("component", "qr_scanner").Logger(),
	}
}

// State reports the current lifecycle state.
func (s *Scanner) State() ScanState {
	return ScanState(s.state.Load())
}

// MalformedFrames reports how many decoded codes were skipped because
// their payload failed the schema.
func (s *Scanner) MalformedFrames() int64 {
	return s.malformed.Load()
}

// Scan acquires the frame source and polls until a payment request is
// decoded or the context is cancelled. The source is released on every
// exit path after a successful Open. Only one scan may run at a time.
func (s *Scanner) Scan(ctx context.Context) (*domain.PaymentRequest, error) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return nil, ErrScanActive
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.state.Store(int32(StateScanning))

	defer func() {
		cancel()
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
	}()

	if err := s.source.Open(ctx); err != nil {
		s.state.Store(int32(StateIdle))
		return nil, fmt.Errorf("open frame source: %w", err)
	}
	defer s.source.Close()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.state.Store(int32(StateIdle))
			return nil, ctx.Err()
		case <-ticker.C:
			frame, err := s.source.NextFrame(ctx)
			if err != nil {
				s.state.Store(int32(StateIdle))
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return nil, fmt.Errorf("next frame: %w", err)
			}

			p, err := s.decode(frame)
			if err != nil {
				continue
			}

			s.state.Store(int32(StateDecoded))
			s.log.Debug().
				Str("recipient", string(p.Recipient())).
				Int64("amount", p.Amount).
				Msg("payment request decoded")
			return p, nil
		}
	}
}

// Stop cancels an in-flight scan. It is safe to call from another
// goroutine and is a no-op when no scan is running.
func (s *Scanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Scanner) decode(frame image.Image) (*domain.PaymentRequest, error) {
	p, err := DecodeFrame(frame)
	switch {
	case err == nil:
		return p, nil
	case errors.Is(err, ErrNoCode):
		// Most frames carry no code at all.
		return nil, err
	default:
		// A readable code with a broken payload. Keep polling; the user
		// may still be pointing at the wrong screen.
		s.malformed.Add(1)
		s.log.Debug().Err(err).Msg("skipping malformed payload frame")
		return nil, err
	}
}
