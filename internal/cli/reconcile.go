package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telimart/telimart/internal/doctype"
)

// ReconcileOptions holds flags for the reconcile command.
type ReconcileOptions struct {
	*RootOptions
	All bool
}

// ReconcileResult is the JSON payload of a reconcile run.
type ReconcileResult struct {
	Reconciled int `json:"reconciled"`
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile [name]",
		Short: "Re-run share reconciliation for stored records",
		Long: `Re-run the on_update hook for stored IWO Number records without
changing them. Use it to repair shares that were added or removed by
hand outside telimart.

Give a record name, or --all for every record.

Examples:
  telimart reconcile IWO-0001
  telimart reconcile --all`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.All == (len(args) == 1) {
				return NewExitError(ExitCommandError, "give exactly one of a record name or --all")
			}
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return runReconcile(opts, name, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "reconcile every record")

	return cmd
}

func runReconcile(opts *ReconcileOptions, name string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	rt, err := opts.bootstrap(cmd)
	if err != nil {
		return f.Fail(err)
	}
	defer rt.Close()

	ctx := cmd.Context()
	count := 1
	if opts.All {
		count, err = rt.docs.ReconcileAll(ctx, doctype.IWONumber)
	} else {
		err = rt.docs.Reconcile(ctx, doctype.IWONumber, name)
	}
	if err != nil {
		return f.Fail(WrapExitError(ExitFailure, "reconcile failed", err))
	}

	if f.JSON() {
		return f.Success(ReconcileResult{Reconciled: count})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Reconciled %d record(s)\n", count)
	return nil
}
