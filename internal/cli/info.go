package cli

import (
	"github.com/spf13/cobra"

	"github.com/telimart/telimart/internal/app"
)

// NewInfoCommand creates the info command.
func NewInfoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "info",
		Short:         "Show app metadata",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			info := app.Metadata()
			if f.JSON() {
				return f.Success(info)
			}
			return f.Table([]string{"Field", "Value"}, [][]string{
				{"Name", info.Name},
				{"Title", info.Title},
				{"Publisher", info.Publisher},
				{"Description", info.Description},
				{"Email", info.Email},
				{"License", info.License},
				{"Version", info.Version},
			})
		},
	}
}
