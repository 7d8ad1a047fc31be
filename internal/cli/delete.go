package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telimart/telimart/internal/doctype"
)

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RootOptions
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a record and revoke all its shares",
		Long: `Delete an IWO Number record. Its on_trash hook runs first and removes
every DocShare grant on the record; the record is deleted only if the
hook succeeds.

Example:
  telimart delete IWO-0001`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(opts, args[0], cmd)
		},
	}

	return cmd
}

func runDelete(opts *DeleteOptions, name string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	rt, err := opts.bootstrap(cmd)
	if err != nil {
		return f.Fail(err)
	}
	defer rt.Close()

	if err := rt.docs.Delete(cmd.Context(), doctype.IWONumber, name); err != nil {
		return f.Fail(WrapExitError(ExitFailure, "delete failed", err))
	}

	if f.JSON() {
		return f.Success(map[string]string{"doctype": doctype.IWONumber, "name": name})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", doctype.IWONumber, name)
	return nil
}
