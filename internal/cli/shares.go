package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/telimart/telimart/internal/doctype"
)

// NewSharesCommand creates the shares command.
func NewSharesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shares <name>",
		Short: "List the DocShare grants of a record",
		Long: `List who an IWO Number record is shared with and which permissions
each grant carries.

Examples:
  telimart shares IWO-0001
  telimart shares IWO-0001 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShares(rootOpts, args[0], cmd)
		},
	}
}

func runShares(opts *RootOptions, name string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	rt, err := opts.bootstrap(cmd)
	if err != nil {
		return f.Fail(err)
	}
	defer rt.Close()

	ctx := cmd.Context()
	if _, err := rt.docs.Get(ctx, doctype.IWONumber, name); err != nil {
		return f.Fail(WrapExitError(ExitFailure, "record lookup failed", err))
	}
	grants, err := rt.store.Grants(ctx, doctype.IWONumber, name)
	if err != nil {
		return f.Fail(WrapExitError(ExitFailure, "failed to list shares", err))
	}

	if f.JSON() {
		return f.Success(grants)
	}
	if len(grants) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s is not shared with anyone\n", doctype.IWONumber, name)
		return nil
	}

	rows := make([][]string, 0, len(grants))
	for _, g := range grants {
		rows = append(rows, []string{
			g.User,
			yesNo(g.Perms.Read),
			yesNo(g.Perms.Write),
			yesNo(g.Perms.Share),
			yesNo(g.Perms.Notify),
			g.Name,
		})
	}
	return f.Table([]string{"User", "Read", "Write", "Share", "Notify", "Grant"}, rows)
}

// NewRecordsCommand creates the records command.
func NewRecordsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "records",
		Short: "List IWO Number records and their teams",
		Args:  cobra.NoArgs,
		Example: `  telimart records
  telimart records --db /var/lib/telimart/telimart.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecords(rootOpts, cmd)
		},
	}
}

func runRecords(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	rt, err := opts.bootstrap(cmd)
	if err != nil {
		return f.Fail(err)
	}
	defer rt.Close()

	records, err := rt.docs.List(cmd.Context(), doctype.IWONumber)
	if err != nil {
		return f.Fail(WrapExitError(ExitFailure, "failed to list records", err))
	}

	if f.JSON() {
		return f.Success(records)
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No records")
		return nil
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.Name,
			strconv.Itoa(len(rec.TeamMembers)),
			strings.Join(rec.Users(), ", "),
		})
	}
	if err := f.Table([]string{"Name", "Rows", "Team"}, rows); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nTotal records: %d\n", len(records))
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
