package app

import (
	"errors"
	"fmt"
	"strings"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PlanPath   string // hcl files
	ResultsDir string // per-board session directories

	BoardType  string
	BoardID    string
	NewSession bool
	List       bool

	Simulate bool
	SimSeed  uint64

	LogFormat string
	LogLevel  string
}

func NewConfig(cfg Config) (*Config, error) {
	if err := validateLogConfig(cfg.LogLevel, cfg.LogFormat); err != nil {
		return nil, err
	}

	if cfg.List {
		// Listing needs no board and no plan.
		return &cfg, nil
	}

	if cfg.PlanPath == "" {
		return nil, errors.New("PlanPath is a required configuration field and cannot be empty")
	}
	if cfg.BoardType == "" || cfg.BoardID == "" {
		return nil, errors.New("a board must be selected as TYPE:ID before running a plan")
	}
	if strings.ContainsAny(cfg.BoardType+cfg.BoardID, "/\\") {
		return nil, fmt.Errorf("board identifiers cannot contain path separators: %s.%s", cfg.BoardType, cfg.BoardID)
	}

	return &cfg, nil
}
