package main

import (
	"loadscout-backend/cmd/loadscout/commands"
	"loadscout-backend/lib/serviceutil"
	"loadscout-backend/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()

	tel, err := telemetry.SetupFromEnv(ctx, "loadscout")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer tel.Shutdown(ctx)
	telemetry.InstrumentPerfStats(ctx)

	commands.ExecuteContext(ctx)
}
