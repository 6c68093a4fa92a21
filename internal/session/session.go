// Package session owns everything stateful about one physical board: the
// append-only history of procedure results, the hardware capabilities bound
// at this station, and the single-flight execution of procedures
// (resolve, run, finalize, persist). The persisted session file is the
// single source of truth for the board, independent of which station
// produced any individual entry.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/vk/tileqc/internal/codec"
	"github.com/vk/tileqc/internal/hw"
	"github.com/vk/tileqc/internal/registry"
	"github.com/vk/tileqc/internal/resolver"
	"github.com/vk/tileqc/internal/result"
)

// FileName is the session file kept inside each board directory.
const FileName = "session.yaml"

// IteratorFactory builds the loop-iteration capability for one invocation.
// GUI sessions install their own to drive progress bars.
type IteratorFactory func(ctx context.Context) hw.Iterate

// Session is the aggregate root for one board. All output files live under
// <root>/<board_type>.<board_id>/, including the session file itself.
type Session struct {
	mu        sync.Mutex
	state     State
	cancelRun context.CancelFunc

	boardType string
	boardID   string
	rootDir   string

	registry *registry.Registry
	history  []*result.ProcedureResult
	hardware []any
	iterator IteratorFactory
}

// New starts a blank session for a board. It refuses to proceed if the board
// directory already exists, so an existing history cannot be clobbered, and
// writes the initial session file immediately.
func New(rootDir, boardType, boardID string, reg *registry.Registry) (*Session, error) {
	s := &Session{
		boardType: boardType,
		boardID:   boardID,
		rootDir:   rootDir,
		registry:  reg,
	}
	base := s.SaveBase()
	if _, err := os.Stat(base); err == nil {
		return nil, fmt.Errorf("board directory %s already exists, cannot safely create a new session", base)
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create board directory: %w", err)
	}
	if err := s.save(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load restores a session from its persisted file. Hardware bindings are not
// part of the persisted form; the caller binds whatever this station has.
func Load(rootDir, boardType, boardID string, reg *registry.Registry) (*Session, error) {
	s := &Session{
		boardType: boardType,
		boardID:   boardID,
		rootDir:   rootDir,
		registry:  reg,
	}
	f, err := os.Open(filepath.Join(s.SaveBase(), FileName))
	if err != nil {
		return nil, &codec.PersistenceError{Op: "open", Err: err}
	}
	defer f.Close()

	snap, err := codec.Load(f)
	if err != nil {
		return nil, err
	}
	if snap.BoardType != boardType || snap.BoardID != boardID {
		return nil, fmt.Errorf("session file identifies board %s.%s, expected %s.%s",
			snap.BoardType, snap.BoardID, boardType, boardID)
	}
	s.history = snap.Results
	return s, nil
}

// BoardType returns the board's type identifier.
func (s *Session) BoardType() string { return s.boardType }

// BoardID returns the board's unit identifier.
func (s *Session) BoardID() string { return s.boardID }

// State returns the current invocation state for observers (GUI/CLI).
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SaveBase returns the board's storage directory.
func (s *Session) SaveBase() string {
	return filepath.Join(s.rootDir, s.boardType+"."+s.boardID)
}

// ResolveDataPath resolves a data entry's relative path against this
// station's storage root.
func (s *Session) ResolveDataPath(e result.DataEntry) string {
	return filepath.Join(s.SaveBase(), filepath.FromSlash(e.Path))
}

// History returns the ordered result history, one entry per completed
// invocation including failed ones. The returned slice is the caller's.
func (s *Session) History() []*result.ProcedureResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*result.ProcedureResult, len(s.history))
	copy(out, s.history)
	return out
}

// BindHardware makes a capability instance available for resolution. Only
// permitted while idle; instances stay bound until the session is discarded.
func (s *Session) BindHardware(instance any) error {
	if instance == nil {
		return fmt.Errorf("cannot bind a nil hardware instance")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return &SessionBusyError{State: s.state}
	}
	s.hardware = append(s.hardware, instance)
	return nil
}

// SetIterator installs a custom loop-iteration capability factory. Only
// permitted while idle.
func (s *Session) SetIterator(factory IteratorFactory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return &SessionBusyError{State: s.state}
	}
	s.iterator = factory
	return nil
}

// Resolvable reports whether a procedure's hardware requirements are
// currently satisfiable, without invoking anything. GUIs use it to enable or
// disable per-procedure controls.
func (s *Session) Resolvable(ctx context.Context, name string) error {
	def, ok := s.registry.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown procedure %q", name)
	}
	_, err := resolver.Resolve(ctx, def, s.view(ctx))
	return err
}

// view is the read-only resolver.Source for one invocation.
type view struct {
	s   *Session
	ctx context.Context
}

func (s *Session) view(ctx context.Context) view {
	return view{s: s, ctx: ctx}
}

// Capability returns the first bound instance implementing the capability
// interface type. Binding order breaks ties.
func (v view) Capability(t reflect.Type) (any, bool) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, instance := range v.s.hardware {
		if reflect.TypeOf(instance).Implements(t) {
			return instance, true
		}
	}
	return nil, false
}

func (v view) History() []*result.ProcedureResult {
	return v.s.History()
}

func (v view) Iterator() hw.Iterate {
	if v.s.iterator != nil {
		return v.s.iterator(v.ctx)
	}
	return hw.LogIterator(v.ctx)
}

// timestampf renders a timestamp in a filename-friendly form. Not meant to
// parse back; it only keeps invocation directories unique and sortable.
func timestampf(t time.Time) string {
	return strings.ReplaceAll(t.Format("2006-01-02T15:04:05.000Z07:00"), ":", "")
}
