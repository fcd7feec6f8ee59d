package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/idle-bit/idlebit/internal/app/game"
	"github.com/idle-bit/idlebit/internal/domain"
	"github.com/idle-bit/idlebit/internal/infra/savefile"
)

// These commands work on the stored save directly. A running daemon keeps
// its own state and overwrites the store on its next autosave.
const daemonNote = "note: stop a running daemon first or it will overwrite this on its next save"

// ─── status ─────────────────────────────────────────────────────────────────

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarise the stored save",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	db, store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	data, err := store.Load(cmd.Context())
	if errors.Is(err, domain.ErrNoSave) {
		fmt.Fprintln(cmd.OutOrStdout(), "No saved game. Start one with: idlebit serve")
		return nil
	}
	if err != nil {
		return err
	}
	printStatus(cmd.OutOrStdout(), *data)
	return nil
}

// printStatus renders a save through a player so every field is sanitised
// the same way the daemon would load it.
func printStatus(w io.Writer, data domain.SaveData) {
	p := game.NewPlayer(game.Options{})
	p.LoadSnapshot(data)

	fmt.Fprintf(w, "Bits:      %s / %s\n",
		domain.FormatBits(p.TotalBits(), false), domain.FormatBits(p.MaxStorage(), false))
	fmt.Fprintf(w, "Best:      %s\n", domain.FormatBits(p.Stats().MaxBits(), false))

	fmt.Fprintf(w, "Disks (%d):\n", len(p.Disks()))
	for _, d := range p.Disks() {
		fmt.Fprintf(w, "  %-10s %s / %s\n", d.Name(),
			domain.FormatBits(d.Bits(), true), domain.FormatBits(d.Capacity(), true))
	}

	if chips := p.Chips(); len(chips) > 0 {
		fmt.Fprintf(w, "Chips (%d):\n", len(chips))
		for i, c := range chips {
			target := "idle"
			if d := p.Disk(c.Target()); d != nil {
				target = "-> " + d.Name()
			}
			fmt.Fprintf(w, "  #%-3d %s  overclock x%d  %s\n",
				i, domain.FormatHertz(c.ClockSpeed(), true), c.OverclockLevel(), target)
		}
	}

	if c := p.Cloud(); c != nil {
		fmt.Fprintf(w, "Cloud:     %s at %s/s\n",
			domain.FormatBits(c.Bits(), false), domain.FormatBits(c.UploadSpeed(), true))
	}
}

// ─── export / import ────────────────────────────────────────────────────────

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print the stored save as a save string",
		Args:  cobra.NoArgs,
		RunE:  runExport,
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	db, store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	data, err := store.Load(cmd.Context())
	if err != nil {
		return err
	}
	str, err := savefile.Export(*data)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), str)
	return nil
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import SAVE_STRING",
		Short: "Replace the stored save with a save string",
		Long: `Replace the stored save with an exported save string. Strings from
the browser version of the game are accepted, including version 1 saves.`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := savefile.Import(strings.TrimSpace(args[0]))
	if err != nil {
		return err
	}

	p := game.NewPlayer(game.Options{})
	p.LoadSnapshot(data)

	db, store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.Save(cmd.Context(), p.Snapshot()); err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "Save imported.")
	printStatus(w, p.Snapshot())
	fmt.Fprintln(cmd.ErrOrStderr(), daemonNote)
	return nil
}

// ─── reset ──────────────────────────────────────────────────────────────────

func newResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the stored save",
		Long:  `Delete the current save. Previous saves stay in the history.`,
		Args:  cobra.NoArgs,
		RunE:  runReset,
	}
	cmd.Flags().Bool("yes", false, "Confirm the reset")
	return cmd
}

func runReset(cmd *cobra.Command, args []string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		return fmt.Errorf("reset deletes your progress; rerun with --yes to confirm")
	}
	db, store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.Clear(cmd.Context()); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Save deleted.")
	fmt.Fprintln(cmd.ErrOrStderr(), daemonNote)
	return nil
}

// ─── history ────────────────────────────────────────────────────────────────

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List previous saves",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	cmd.Flags().IntP("limit", "n", 10, "Number of saves to list")
	cmd.Flags().String("restore", "", "Make the save with this id current again")
	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	db, store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()
	w := cmd.OutOrStdout()

	if id, _ := cmd.Flags().GetString("restore"); id != "" {
		data, err := store.LoadHistory(cmd.Context(), id)
		if err != nil {
			return err
		}
		if err := store.Save(cmd.Context(), *data); err != nil {
			return err
		}
		fmt.Fprintf(w, "Restored save %s.\n", id)
		printStatus(w, *data)
		fmt.Fprintln(cmd.ErrOrStderr(), daemonNote)
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	entries, err := store.History(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No saves yet.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %-14s  %s  (v%d)\n",
			e.ID, domain.FormatBits(e.TotalBits, true), humanize.Time(e.SavedAt), e.Version)
	}
	return nil
}
