package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/V-Sekai-fire/forge/envconfig"
)

func main() {
	cobra.CheckErr(envconfig.LoadDotEnv(".env"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cobra.CheckErr(NewCLI().ExecuteContext(ctx))
}
