package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tileqc/internal/codec"
	"github.com/vk/tileqc/internal/ctxlog"
	"github.com/vk/tileqc/internal/registry"
	"github.com/vk/tileqc/internal/resolver"
	"github.com/vk/tileqc/internal/result"
)

// Start runs one procedure invocation end to end: resolve the declared
// requirements, run the execution routine, finalize the result, persist the
// session file. Every termination, including resolution failures and
// cancellation, leaves a durable history entry, so the record
// never silently omits an attempted action.
//
// If an invocation is already in flight, Start fails immediately with
// *SessionBusyError and records nothing. Otherwise the returned error is
// non-nil only when persisting the entry failed; per-invocation failures are
// reported through the returned result's Code and board status.
func (s *Session) Start(ctx context.Context, name string, args map[string]cty.Value) (*result.ProcedureResult, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		busy := &SessionBusyError{State: s.state}
		s.mu.Unlock()
		return nil, busy
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.state = StateResolving
	s.cancelRun = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.state = StateIdle
		s.cancelRun = nil
		s.mu.Unlock()
	}()

	logger := ctxlog.FromContext(ctx).With("procedure", name, "board", s.boardType+"."+s.boardID)
	logger.Info("▶️ Starting procedure")

	def, ok := s.registry.Lookup(name)
	if !ok {
		res := result.New(name, "", recordableInput(args))
		return s.failResolution(logger, res, fmt.Sprintf("unknown procedure %q", name))
	}

	input, resolved, err := resolver.BindArguments(def, args, s)
	if err != nil {
		res := result.New(name, def.Version, recordableInput(args))
		return s.failResolution(logger, res, err.Error())
	}
	res := result.New(name, def.Version, resolved)

	deps, err := resolver.Resolve(runCtx, def, s.view(runCtx))
	if err != nil {
		return s.failResolution(logger, res, err.Error())
	}

	s.setState(StateRunning)
	storeRel := def.Name + "_" + timestampf(res.StartedAt)
	runErr := os.MkdirAll(filepath.Join(s.SaveBase(), filepath.FromSlash(storeRel)), 0o755)
	if runErr == nil {
		rec := result.NewRecorder(res, s.SaveBase(), storeRel)
		runErr = invoke(runCtx, def, deps, input, rec)
	}

	switch {
	case runCtx.Err() != nil:
		// Cancellation wins over whatever the routine returned: the partial
		// result is preserved, never silently discarded.
		s.setState(StateFailed)
		msg := "canceled at iteration boundary"
		if runErr != nil {
			msg = fmt.Sprintf("canceled: %v", runErr)
		}
		res.Code = result.CodeCanceled
		res.Message = msg
		res.SetBoardResult(result.StatusError, msg, nil)
		logger.Warn("Procedure canceled.")
	case runErr != nil:
		s.setState(StateFailed)
		res.Code = result.CodeExecutionFailed
		res.Message = runErr.Error()
		res.SetBoardResult(result.StatusError, runErr.Error(), nil)
		logger.Error("Procedure failed.", "error", runErr)
	default:
		s.setState(StateFinalizing)
		res.Code = result.CodeOK
		logger.Info("✅ Procedure finished")
	}

	return res, s.finalize(res)
}

// Cancel asks the in-flight invocation, if any, to stop at the next
// iteration boundary.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelRun != nil {
		s.cancelRun()
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// recordableInput keeps a rejected invocation's argument values
// representable in the durable form. Raw caller values never went through
// argument binding, so anything outside the payload kinds is recorded as its
// textual rendering instead of making every later session save fail.
func recordableInput(args map[string]cty.Value) map[string]cty.Value {
	if len(args) == 0 {
		return args
	}
	out := make(map[string]cty.Value, len(args))
	for name, v := range args {
		if result.CheckValue(v) == nil {
			out[name] = v
		} else {
			out[name] = cty.StringVal(v.GoString())
		}
	}
	return out
}

// failResolution records a resolution-time failure as a durable history
// entry: even "an operator attempted X and it could not run" is part of the
// board's record. The execution routine was never invoked.
func (s *Session) failResolution(logger *slog.Logger, res *result.ProcedureResult, msg string) (*result.ProcedureResult, error) {
	s.setState(StateFailed)
	logger.Warn("Procedure could not be resolved.", "reason", msg)
	res.Code = result.CodeResolutionFailed
	res.Message = msg
	res.SetBoardResult(result.StatusError, msg, nil)
	return res, s.finalize(res)
}

// finalize freezes the result, appends it to the history and flushes the
// session file. Called on every termination path.
func (s *Session) finalize(res *result.ProcedureResult) error {
	res.FinishedAt = time.Now()
	res.Freeze()
	s.mu.Lock()
	s.history = append(s.history, res)
	s.mu.Unlock()
	return s.save()
}

// save writes the session file via the codec, through a temp file so a crash
// mid-write cannot corrupt the existing document.
func (s *Session) save() error {
	s.mu.Lock()
	snap := &codec.Snapshot{
		BoardType: s.boardType,
		BoardID:   s.boardID,
		Results:   make([]*result.ProcedureResult, len(s.history)),
	}
	copy(snap.Results, s.history)
	s.mu.Unlock()

	path := filepath.Join(s.SaveBase(), FileName)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return &codec.PersistenceError{Op: "create", Err: err}
	}
	if err := snap.Save(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		return &codec.PersistenceError{Op: "close", Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return &codec.PersistenceError{Op: "rename", Err: err}
	}
	return nil
}

// invoke calls the definition's execution routine with the bound arguments.
// A panic inside physicist-authored procedure code is converted into an
// ordinary execution error so partial progress survives.
func invoke(ctx context.Context, def *registry.Definition, deps, input any, rec *result.Recorder) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("procedure panic: %v", r)
		}
	}()
	fn := reflect.ValueOf(def.Fn)
	out := fn.Call([]reflect.Value{
		reflect.ValueOf(ctx),
		reflect.ValueOf(deps),
		reflect.ValueOf(input),
		reflect.ValueOf(rec),
	})
	if e := out[0].Interface(); e != nil {
		return e.(error)
	}
	return nil
}
