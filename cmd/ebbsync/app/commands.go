package app

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ebbworks/ebbsync/internal/batchfile"
	"github.com/ebbworks/ebbsync/pkg/events"
	"github.com/ebbworks/ebbsync/pkg/model"
)

// NewInitCommand creates the init command.
func (a *App) NewInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the local store",
		Long:  "Creates the local store database and its schema if they do not exist.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.OpenStore()
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			fmt.Fprintf(cmd.OutOrStdout(), "store initialized at %s\n", s.Path())
			return nil
		},
	}
}

// NewReconcileCommand creates the reconcile command.
func (a *App) NewReconcileCommand() *cobra.Command {
	var batchPath string
	var showEvents bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile a batch of remote mutations into the local store",
		Long: `Loads a batch of remote model mutations from a YAML file and merges
it into the local store. Pending local mutations are never overwritten;
their items get a metadata-only merge.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			batch, err := batchfile.Load(batchPath)
			if err != nil {
				return err
			}

			s, err := a.OpenStore()
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			sink := events.NewCaptureSink()
			eng, err := a.Engine(s, sink)
			if err != nil {
				return err
			}

			result, err := eng.Reconcile(cmd.Context(), batch)
			if result != nil {
				fmt.Fprintln(cmd.OutOrStdout(), result.Summary())
				if showEvents {
					printEvents(cmd, sink.Events())
				}
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&batchPath, "batch", "b", "", "path to the batch YAML file (required)")
	cmd.Flags().BoolVar(&showEvents, "events", false, "print the per-item outcome events")
	_ = cmd.MarkFlagRequired("batch")

	return cmd
}

// printEvents writes one line per outcome event.
func printEvents(cmd *cobra.Command, evs []events.Event) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	fmt.Fprintln(w, "MODEL\tOUTCOME\tDETAIL")
	for _, e := range evs {
		switch e.Kind {
		case events.KindApplied:
			version := int64(0)
			if e.Applied != nil {
				version = e.Applied.Metadata.Version
			}
			fmt.Fprintf(w, "%s\tapplied\tv%d\n", e.Key, version)
		case events.KindDropped:
			detail := string(e.Reason)
			if e.Err != nil {
				detail = fmt.Sprintf("%s: %v", e.Reason, e.Err)
			}
			fmt.Fprintf(w, "%s\tdropped\t%s\n", e.Key, detail)
		}
	}
}

// NewPendingCommand creates the pending command.
func (a *App) NewPendingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List outstanding local mutations",
		Long:  "Lists local mutations that have not been pushed remotely. Their models are protected from body overwrites during reconciliation.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.OpenStore()
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			pending, err := s.PendingAll(cmd.Context())
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no pending mutations")
				return nil
			}

			printPending(cmd, pending)
			return nil
		},
	}
}

// printPending writes one line per pending mutation.
func printPending(cmd *cobra.Command, pending []model.PendingMutation) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	fmt.Fprintln(w, "MODEL\tKIND\tQUEUED")
	for _, p := range pending {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.Key, p.Kind, p.QueuedAt.Format(time.RFC3339))
	}
}

// NewVersionCommand creates the version command.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ebbsync %s (commit %s, built %s)\n", a.version, a.commit, a.date)
		},
	}
}
