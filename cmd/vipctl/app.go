package main

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/alanwang5210/telegram-bot/internal/app"
)

// withApp starts the service graph without the HTTP server or the
// scheduler, populates targets and runs fn.
func withApp(ctx context.Context, fn func(ctx context.Context) error, targets ...any) error {
	a := fx.New(
		app.Core,
		fx.NopLogger,
		fx.Populate(targets...),
	)
	if err := a.Err(); err != nil {
		return fmt.Errorf("build app: %w", err)
	}
	startCtx, cancel := context.WithTimeout(ctx, app.DefaultStartTimeout)
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		return fmt.Errorf("start app: %w", err)
	}
	runErr := fn(ctx)

	stopCtx, cancel2 := context.WithTimeout(context.WithoutCancel(ctx), app.DefaultStopTimeout)
	defer cancel2()
	if err := a.Stop(stopCtx); err != nil && runErr == nil {
		return fmt.Errorf("stop app: %w", err)
	}
	return runErr
}
