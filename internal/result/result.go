// Package result holds the pure data containers describing the outcome of a
// single calibration procedure: tracked data files, per-channel and per-board
// measurement summaries, and the durable ProcedureResult record itself. All
// stored items map to primitive types so the persisted form is plain text.
package result

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"
)

// Board is the sentinel channel index used for results that describe the
// whole board rather than a single channel.
const Board = -999

// ErrFrozen is returned by mutation calls made after the owning Session has
// frozen the result.
var ErrFrozen = errors.New("result is frozen")

// SingularResult is the outcome of one measurement, scoped either to a single
// channel or (with the Board sentinel) to the whole board.
type SingularResult struct {
	Channel int
	Status  Status
	Summary string
	Payload Payload
}

// DataEntry records one output file produced during execution. Path is kept
// relative to the session storage root so the same history resolves on any
// station.
type DataEntry struct {
	Name      string
	Path      string
	Desc      string
	Timestamp time.Time
	Payload   Payload
}

// ProcedureResult is the durable record of one procedure invocation. It is
// created empty when the invocation starts, mutated incrementally by the
// running procedure, then frozen and appended to the session history.
type ProcedureResult struct {
	Name    string
	Version string
	ID      string

	StartedAt  time.Time
	FinishedAt time.Time

	// Input holds the concrete argument values the invocation ran with,
	// after defaults were applied.
	Input map[string]cty.Value

	// Code and Message describe the engine's view of the invocation
	// (ok, resolution failure, execution failure, canceled).
	Code    Code
	Message string

	DataFiles []DataEntry
	Channels  []SingularResult
	Board     *SingularResult

	frozen bool
}

// New creates the empty record for a starting invocation.
func New(name, version string, input map[string]cty.Value) *ProcedureResult {
	return &ProcedureResult{
		Name:      name,
		Version:   version,
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Input:     input,
	}
}

// AddDataFile appends a tracked output file. Data files accumulate; they are
// never overwritten by later calls.
func (r *ProcedureResult) AddDataFile(e DataEntry) error {
	if r.frozen {
		return ErrFrozen
	}
	if e.Path == "" {
		return fmt.Errorf("data entry %q has no path", e.Name)
	}
	if err := e.Payload.check(); err != nil {
		return err
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	r.DataFiles = append(r.DataFiles, e)
	return nil
}

// SetChannelResult records the outcome for one channel. Calling it again for
// the same channel replaces the earlier outcome (last write wins).
func (r *ProcedureResult) SetChannelResult(channel int, status Status, summary string, payload Payload) error {
	if r.frozen {
		return ErrFrozen
	}
	if channel == Board {
		return fmt.Errorf("channel %d is reserved for board results", Board)
	}
	if err := payload.check(); err != nil {
		return err
	}
	sr := SingularResult{Channel: channel, Status: status, Summary: summary, Payload: payload}
	for i := range r.Channels {
		if r.Channels[i].Channel == channel {
			r.Channels[i] = sr
			return nil
		}
	}
	r.Channels = append(r.Channels, sr)
	return nil
}

// SetBoardResult records the board-scoped outcome, replacing any earlier one.
func (r *ProcedureResult) SetBoardResult(status Status, summary string, payload Payload) error {
	if r.frozen {
		return ErrFrozen
	}
	if err := payload.check(); err != nil {
		return err
	}
	r.Board = &SingularResult{Channel: Board, Status: status, Summary: summary, Payload: payload}
	return nil
}

// Freeze marks the record immutable. It is idempotent and is triggered only
// by the Session when the invocation terminates.
func (r *ProcedureResult) Freeze() {
	r.frozen = true
}

// Frozen reports whether the record has been frozen.
func (r *ProcedureResult) Frozen() bool {
	return r.frozen
}

// ChannelResult returns the recorded outcome for a channel, if any.
func (r *ProcedureResult) ChannelResult(channel int) (SingularResult, bool) {
	for _, sr := range r.Channels {
		if sr.Channel == channel {
			return sr, true
		}
	}
	return SingularResult{}, false
}

// LastData returns the most recently added data entry, or nil.
func (r *ProcedureResult) LastData() *DataEntry {
	if len(r.DataFiles) == 0 {
		return nil
	}
	return &r.DataFiles[len(r.DataFiles)-1]
}

// IsValid reports whether the invocation completed and the board outcome is
// OK. It is the flag session browsers use to mark a step as passed.
func (r *ProcedureResult) IsValid() bool {
	if r.Code != CodeOK {
		return false
	}
	if r.Board == nil {
		return false
	}
	return r.Board.Status == StatusOK
}
