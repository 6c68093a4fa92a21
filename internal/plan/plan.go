// Package plan loads operator-authored run plans: HCL files listing the
// procedures to invoke, in order, with their argument values. A plan is pure
// CLI policy; the engine only ever sees the resulting Session.Start calls.
package plan

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tileqc/internal/ctxlog"
	"github.com/vk/tileqc/internal/fsutil"
)

// Invocation is one requested procedure run.
type Invocation struct {
	Procedure string
	Arguments map[string]cty.Value
}

// argsBlock holds the raw body of an `arguments` block; attribute names are
// validated against the procedure's declared schema at Start time, not here.
type argsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// runBlock is a `run "<procedure>" { arguments { ... } }` block.
type runBlock struct {
	Procedure string     `hcl:"procedure,label"`
	Arguments *argsBlock `hcl:"arguments,block"`
}

type planFile struct {
	Runs []*runBlock `hcl:"run,block"`
}

// Load reads all .hcl files under path (a file or a directory) and returns
// the requested invocations in file, then block, order.
func Load(ctx context.Context, path string) ([]Invocation, error) {
	logger := ctxlog.FromContext(ctx)

	filePaths, err := fsutil.FindFilesByExtension(path, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("failed to walk plan path %s: %w", path, err)
	}
	if len(filePaths) == 0 {
		return nil, fmt.Errorf("no .hcl plan files found in path %s", path)
	}
	logger.Debug("Found plan files to load.", "files", filePaths)

	parser := hclparse.NewParser()
	var invocations []Invocation

	for _, filePath := range filePaths {
		hclFile, diags := parser.ParseHCLFile(filePath)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse plan file %s: %w", filePath, diags)
		}

		var pf planFile
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &pf); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode plan file %s: %w", filePath, diags)
		}

		for _, run := range pf.Runs {
			inv := Invocation{Procedure: run.Procedure, Arguments: map[string]cty.Value{}}
			if run.Arguments != nil {
				attrs, diags := run.Arguments.Body.JustAttributes()
				if diags.HasErrors() {
					return nil, fmt.Errorf("arguments for run %q in %s: %w", run.Procedure, filePath, diags)
				}
				for name, attr := range attrs {
					// Plans are literal values only; there is no
					// cross-procedure expression context.
					val, diags := attr.Expr.Value(nil)
					if diags.HasErrors() {
						return nil, fmt.Errorf("argument %q for run %q in %s: %w", name, run.Procedure, filePath, diags)
					}
					inv.Arguments[name] = val
				}
			}
			invocations = append(invocations, inv)
		}
		logger.Debug("Loaded plan file.", "file", filePath)
	}

	logger.Info("Plan loaded successfully.", "runs", len(invocations))
	return invocations, nil
}
