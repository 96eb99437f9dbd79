// Package cli implements the retailctl operator commands.
package cli

import (
	"fmt"
	"os"

	"github.com/ariefcatur/go-retail-orders/internal/config"
	"github.com/ariefcatur/go-retail-orders/internal/logx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "retailctl",
	Short: "Operator tools for the retail order service",
	Long: `retailctl applies the database schema, runs or queues partner
price-list imports and inspects background task status.

Connection settings come from the same environment variables as the API
and worker (POSTGRES_DSN, REDIS_ADDR, KAFKA_BROKERS, ...).`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setup() (config.Config, *zap.Logger) {
	cfg := config.Load()
	return cfg, logx.New(logx.ForEnvironment(cfg.Env, cfg.LogLevel, cfg.LogFormat))
}
