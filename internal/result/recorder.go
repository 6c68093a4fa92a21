package result

import (
	"os"
	"path"
	"path/filepath"
)

// Recorder is the mutable handle an execution routine receives. It wraps the
// in-flight ProcedureResult and owns the per-invocation store directory, so
// procedures can emit output files without any path bookkeeping. Routines
// must not retain the Recorder after returning.
type Recorder struct {
	res      *ProcedureResult
	baseDir  string // absolute session storage root
	storeRel string // invocation directory, relative to baseDir
}

// NewRecorder binds a Recorder to an in-flight result. baseDir is the
// session's absolute storage root and storeRel the invocation's directory
// inside it.
func NewRecorder(res *ProcedureResult, baseDir, storeRel string) *Recorder {
	return &Recorder{res: res, baseDir: baseDir, storeRel: storeRel}
}

// Result exposes the underlying record for direct reads.
func (r *Recorder) Result() *ProcedureResult {
	return r.res
}

// StorePath returns the absolute path for a named output file inside the
// invocation's store directory.
func (r *Recorder) StorePath(name string) string {
	return filepath.Join(r.baseDir, filepath.FromSlash(r.storeRel), name)
}

// ResolvePath resolves a history data entry's relative path against the
// session storage root, so procedures can read files produced by earlier
// invocations.
func (r *Recorder) ResolvePath(rel string) string {
	return filepath.Join(r.baseDir, filepath.FromSlash(rel))
}

// CreateFile creates a named output file in the store directory and tracks
// it as a data entry. The caller owns closing the file.
func (r *Recorder) CreateFile(name, desc string, payload Payload) (*os.File, error) {
	if err := r.AddDataFile(name, desc, payload); err != nil {
		return nil, err
	}
	return os.Create(r.StorePath(name))
}

// AddDataFile tracks a named file in the store directory that the procedure
// has written (or is about to write) itself.
func (r *Recorder) AddDataFile(name, desc string, payload Payload) error {
	return r.res.AddDataFile(DataEntry{
		Name:    name,
		Path:    path.Join(r.storeRel, name),
		Desc:    desc,
		Payload: payload,
	})
}

// SetChannelResult records the outcome for one channel (last write wins).
func (r *Recorder) SetChannelResult(channel int, status Status, summary string, payload Payload) error {
	return r.res.SetChannelResult(channel, status, summary, payload)
}

// SetBoardResult records the board-scoped outcome.
func (r *Recorder) SetBoardResult(status Status, summary string, payload Payload) error {
	return r.res.SetBoardResult(status, summary, payload)
}
