// Package codec serializes a session's result history to and from the
// durable single-file representation: one YAML document per board, diffable
// and readable without tooling. The file is the single source of truth for a
// board's calibration state; in-memory hardware bindings are never part of
// the persisted form.
package codec

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vk/tileqc/internal/result"
)

// Snapshot is the persistable part of a session: board identity plus the
// ordered result history.
type Snapshot struct {
	BoardType string
	BoardID   string
	Results   []*result.ProcedureResult
}

// PersistenceError reports a durable read or write failure. It is fatal for
// the operation and surfaces to the caller; in-memory session state is never
// rolled back, so no progress is silently lost.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("session persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

type sessionDoc struct {
	BoardType string            `yaml:"board_type"`
	BoardID   string            `yaml:"board_id"`
	Rollup    map[string]string `yaml:"rollup,omitempty"`
	Results   []resultDoc       `yaml:"results"`
}

type statusDoc struct {
	Code    string `yaml:"code"`
	Message string `yaml:"message,omitempty"`
}

type dataDoc struct {
	Name      string         `yaml:"name,omitempty"`
	Path      string         `yaml:"path"`
	Desc      string         `yaml:"desc,omitempty"`
	Timestamp string         `yaml:"timestamp"`
	Extra     map[string]any `yaml:"extra,omitempty"`
}

type singularDoc struct {
	Channel int            `yaml:"channel"`
	Status  string         `yaml:"status"`
	Summary string         `yaml:"summary,omitempty"`
	Extra   map[string]any `yaml:"extra,omitempty"`
}

type resultDoc struct {
	Name           string         `yaml:"name"`
	Version        string         `yaml:"version"`
	ID             string         `yaml:"id"`
	StartTime      string         `yaml:"start_time"`
	EndTime        string         `yaml:"end_time"`
	Input          map[string]any `yaml:"input"`
	Status         statusDoc      `yaml:"status"`
	DataFiles      []dataDoc      `yaml:"data_files"`
	BoardSummary   *singularDoc   `yaml:"board_summary"`
	ChannelSummary []singularDoc  `yaml:"channel_summary"`
}

// Save writes the snapshot as the durable YAML document. The rollup section
// is derived from the history on every save and exists only for operators
// skimming the file.
func (s *Snapshot) Save(w io.Writer) error {
	doc := sessionDoc{
		BoardType: s.BoardType,
		BoardID:   s.BoardID,
		Rollup:    rollup(s.Results),
		Results:   make([]resultDoc, 0, len(s.Results)),
	}
	for _, res := range s.Results {
		rd, err := encodeResult(res)
		if err != nil {
			return &PersistenceError{Op: fmt.Sprintf("encode result %s", res.ID), Err: err}
		}
		doc.Results = append(doc.Results, rd)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return &PersistenceError{Op: "write", Err: err}
	}
	if err := enc.Close(); err != nil {
		return &PersistenceError{Op: "write", Err: err}
	}
	return nil
}

// Load reads a snapshot back from its durable form. Loaded results come back
// frozen: history is append-only and past entries are never mutated.
func Load(r io.Reader) (*Snapshot, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &PersistenceError{Op: "read", Err: err}
	}
	var doc sessionDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, &PersistenceError{Op: "decode", Err: err}
	}

	snap := &Snapshot{BoardType: doc.BoardType, BoardID: doc.BoardID}
	for i := range doc.Results {
		res, err := decodeResult(&doc.Results[i])
		if err != nil {
			return nil, &PersistenceError{Op: fmt.Sprintf("decode result %d", i), Err: err}
		}
		snap.Results = append(snap.Results, res)
	}
	return snap, nil
}

// rollup maps each procedure name to the board status of its latest entry.
func rollup(results []*result.ProcedureResult) map[string]string {
	out := make(map[string]string)
	for _, res := range results {
		status := result.StatusNotRun
		if res.Board != nil {
			status = res.Board.Status
		}
		out[res.Name] = status.String()
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func encodeResult(res *result.ProcedureResult) (resultDoc, error) {
	input, err := encodeValueMap(res.Input)
	if err != nil {
		return resultDoc{}, fmt.Errorf("input: %w", err)
	}
	rd := resultDoc{
		Name:      res.Name,
		Version:   res.Version,
		ID:        res.ID,
		StartTime: res.StartedAt.Format(time.RFC3339Nano),
		EndTime:   res.FinishedAt.Format(time.RFC3339Nano),
		Input:     input,
		Status:    statusDoc{Code: res.Code.String(), Message: res.Message},
	}
	for _, e := range res.DataFiles {
		extra, err := encodeValueMap(e.Payload)
		if err != nil {
			return resultDoc{}, fmt.Errorf("data file %s: %w", e.Path, err)
		}
		rd.DataFiles = append(rd.DataFiles, dataDoc{
			Name:      e.Name,
			Path:      e.Path,
			Desc:      e.Desc,
			Timestamp: e.Timestamp.Format(time.RFC3339Nano),
			Extra:     extra,
		})
	}
	if res.Board != nil {
		sd, err := encodeSingular(*res.Board)
		if err != nil {
			return resultDoc{}, err
		}
		rd.BoardSummary = &sd
	}
	for _, sr := range res.Channels {
		sd, err := encodeSingular(sr)
		if err != nil {
			return resultDoc{}, err
		}
		rd.ChannelSummary = append(rd.ChannelSummary, sd)
	}
	return rd, nil
}

func encodeSingular(sr result.SingularResult) (singularDoc, error) {
	extra, err := encodeValueMap(sr.Payload)
	if err != nil {
		return singularDoc{}, fmt.Errorf("channel %d: %w", sr.Channel, err)
	}
	return singularDoc{
		Channel: sr.Channel,
		Status:  sr.Status.String(),
		Summary: sr.Summary,
		Extra:   extra,
	}, nil
}

func decodeResult(rd *resultDoc) (*result.ProcedureResult, error) {
	started, err := time.Parse(time.RFC3339Nano, rd.StartTime)
	if err != nil {
		return nil, fmt.Errorf("start_time: %w", err)
	}
	finished, err := time.Parse(time.RFC3339Nano, rd.EndTime)
	if err != nil {
		return nil, fmt.Errorf("end_time: %w", err)
	}
	code, err := result.ParseCode(rd.Status.Code)
	if err != nil {
		return nil, err
	}
	input, err := decodeValueMap(rd.Input)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}

	res := &result.ProcedureResult{
		Name:       rd.Name,
		Version:    rd.Version,
		ID:         rd.ID,
		StartedAt:  started,
		FinishedAt: finished,
		Input:      input,
		Code:       code,
		Message:    rd.Status.Message,
	}
	for _, dd := range rd.DataFiles {
		ts, err := time.Parse(time.RFC3339Nano, dd.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("data file %s: timestamp: %w", dd.Path, err)
		}
		extra, err := decodeValueMap(dd.Extra)
		if err != nil {
			return nil, fmt.Errorf("data file %s: %w", dd.Path, err)
		}
		res.DataFiles = append(res.DataFiles, result.DataEntry{
			Name:      dd.Name,
			Path:      dd.Path,
			Desc:      dd.Desc,
			Timestamp: ts,
			Payload:   extra,
		})
	}
	if rd.BoardSummary != nil {
		sr, err := decodeSingular(rd.BoardSummary)
		if err != nil {
			return nil, err
		}
		res.Board = &sr
	}
	for i := range rd.ChannelSummary {
		sr, err := decodeSingular(&rd.ChannelSummary[i])
		if err != nil {
			return nil, err
		}
		res.Channels = append(res.Channels, sr)
	}
	res.Freeze()
	return res, nil
}

func decodeSingular(sd *singularDoc) (result.SingularResult, error) {
	status, err := result.ParseStatus(sd.Status)
	if err != nil {
		return result.SingularResult{}, fmt.Errorf("channel %d: %w", sd.Channel, err)
	}
	extra, err := decodeValueMap(sd.Extra)
	if err != nil {
		return result.SingularResult{}, fmt.Errorf("channel %d: %w", sd.Channel, err)
	}
	return result.SingularResult{
		Channel: sd.Channel,
		Status:  status,
		Summary: sd.Summary,
		Payload: extra,
	}, nil
}
