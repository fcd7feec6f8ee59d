// Package cli implements the idlebit command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/idle-bit/idlebit/internal/daemon"
	"github.com/idle-bit/idlebit/internal/infra/sqlite"
)

// NewRootCmd builds the idlebit command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "idlebit",
		Short: "An idle game about filling disks with bits",
		Long: `idlebit runs the bit-farming idle game as a local daemon.
Chips write bits to disks, disks are spent on upgrades, and the cloud
buffer absorbs what the disks cannot hold. Progress is saved to SQLite
under $IDLEBIT_HOME (default ~/.idlebit).`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("home", "", "Data directory (default $IDLEBIT_HOME or ~/.idlebit)")

	root.AddCommand(
		newServeCmd(),
		newStatusCmd(),
		newExportCmd(),
		newImportCmd(),
		newResetCmd(),
		newHistoryCmd(),
	)
	return root
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// homeDir resolves --home, falling back to daemon.HomeDir.
func homeDir(cmd *cobra.Command) string {
	if h, _ := cmd.Flags().GetString("home"); h != "" {
		return h
	}
	return daemon.HomeDir()
}

// openStore opens the save store the daemon would use. The caller closes
// the returned database.
func openStore(cmd *cobra.Command) (*sqlite.DB, *sqlite.Store, error) {
	home := homeDir(cmd)
	cfg, err := daemon.LoadConfig(home)
	if err != nil {
		return nil, nil, err
	}
	db, err := sqlite.Open(cfg.StorageDir(home))
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	return db, sqlite.NewStore(db, cfg.Storage.HistoryLimit), nil
}
