package app

import (
	"context"
	"fmt"

	"github.com/vk/tileqc/internal/ctxlog"
	"github.com/vk/tileqc/internal/hw/sim"
	"github.com/vk/tileqc/internal/plan"
	"github.com/vk/tileqc/internal/result"
	"github.com/vk/tileqc/internal/session"
)

// Run executes the main application logic based on the provided configuration.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.List {
		return a.listProcedures()
	}

	sess, err := a.openSession()
	if err != nil {
		return err
	}
	a.logger.Info("Session ready.",
		"board", sess.BoardType()+"."+sess.BoardID(),
		"entries", len(sess.History()))

	if a.config.Simulate {
		if err := sess.BindHardware(sim.NewBoard(a.config.SimSeed)); err != nil {
			return err
		}
		a.logger.Info("Simulated tileboard bound.", "seed", a.config.SimSeed)
	}

	invocations, err := plan.Load(ctx, a.config.PlanPath)
	if err != nil {
		return err
	}

	a.logger.Info("🚀 Starting plan execution.", "runs", len(invocations))
	for _, inv := range invocations {
		res, err := sess.Start(ctx, inv.Procedure, inv.Arguments)
		if err != nil {
			return fmt.Errorf("session could not record %q: %w", inv.Procedure, err)
		}
		if res.Code != result.CodeOK {
			// The failed attempt is already persisted; the remaining plan
			// entries are not attempted.
			return fmt.Errorf("procedure %q did not complete (%s): %s", inv.Procedure, res.Code, res.Message)
		}
	}
	a.logger.Info("🏁 Plan finished.", "history_length", len(sess.History()))

	a.logger.Debug("App.Run method finished.")
	return nil
}

// openSession creates or restores the session for the selected board.
func (a *App) openSession() (*session.Session, error) {
	if a.config.NewSession {
		return session.New(a.config.ResultsDir, a.config.BoardType, a.config.BoardID, a.registry)
	}
	return session.Load(a.config.ResultsDir, a.config.BoardType, a.config.BoardID, a.registry)
}
