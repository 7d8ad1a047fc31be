package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/telimart/telimart/internal/doctype"
)

// SaveOptions holds flags for the save command.
type SaveOptions struct {
	*RootOptions
}

// SaveResult is the JSON payload of a successful save.
type SaveResult struct {
	Record doctype.Record `json:"record"`
	Shares []string       `json:"shares"`
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SaveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "save <file>",
		Short: "Save a record and share it with its team",
		Long: `Save an IWO Number record from a YAML or JSON document and run its
on_update hook, which shares the record with every team member and
unshares it from everyone else.

Use "-" to read the document from stdin.

Example document:
  name: IWO-0001
  team_members:
    - user: alice@example.com
    - user: bob@example.com

Examples:
  telimart save iwo-0001.yaml
  cat iwo-0001.json | telimart save - --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(opts, args[0], cmd)
		},
	}

	return cmd
}

func runSave(opts *SaveOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	data, err := readDocument(cmd, path)
	if err != nil {
		return f.Fail(WrapExitError(ExitCommandError, "failed to read record", err))
	}
	rec, err := doctype.DecodeRecord(data)
	if err != nil {
		return f.Fail(WrapExitError(ExitFailure, "invalid record", err))
	}

	rt, err := opts.bootstrap(cmd)
	if err != nil {
		return f.Fail(err)
	}
	defer rt.Close()

	ctx := cmd.Context()
	saved, err := rt.docs.Save(ctx, rec)
	if err != nil {
		return f.Fail(WrapExitError(ExitFailure, "save failed", err))
	}

	grants, err := rt.store.Grants(ctx, saved.Doctype, saved.Name)
	if err != nil {
		return f.Fail(WrapExitError(ExitFailure, "failed to list shares", err))
	}
	users := make([]string, 0, len(grants))
	for _, g := range grants {
		users = append(users, g.User)
	}

	if f.JSON() {
		return f.Success(SaveResult{Record: saved, Shares: users})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Saved %s %s (%d team rows)\n", saved.Doctype, saved.Name, len(saved.TeamMembers))
	if len(users) == 0 {
		fmt.Fprintln(w, "Shared with: nobody")
	} else {
		fmt.Fprintf(w, "Shared with: %s\n", strings.Join(users, ", "))
	}
	return nil
}

// readDocument reads path, or stdin when path is "-".
func readDocument(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}
