package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/idle-bit/idlebit/internal/daemon"
)

// ─── serve ──────────────────────────────────────────────────────────────────

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the game daemon",
		Long: `Run the game loop and the HTTP control plane until interrupted.
The game is saved every few seconds and once more on shutdown.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().Int("port", 0, "Override api.port")
	cmd.Flags().Bool("no-api", false, "Run the game loop without the HTTP API")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	home := homeDir(cmd)
	cfg, err := daemon.LoadConfig(home)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.API.Port = port
	}
	if noAPI, _ := cmd.Flags().GetBool("no-api"); noAPI {
		cfg.API.Enabled = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := daemon.New(ctx, home, cfg)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Run(ctx)
}
