package main

import (
	"context"
	"errors"
	"os"
	"webharvest/cmd/webharvest/commands"
	"webharvest/lib/telemetry"
	"webharvest/lib/util/serviceutil"
)

func main() {
	ctx := serviceutil.SignalContext()
	telemetry.InitSlog(false)

	t, err := telemetry.SetupFromEnv(ctx, "webharvest")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	if err == nil {
		defer t.Shutdown(context.Background())
		telemetry.InstrumentPerfStats(ctx)
	}

	commands.ExecuteContext(ctx)
}
