package cmd

import (
	"io"

	"github.com/spf13/cobra"
)

func newListCmd(o *options, d deps) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List applicable plugins",
		Long: `List the validation plugins applicable to this host with their
mandatory (M) or optional (O) tag. Same as servicereport -l.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(o, d, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func runList(o *options, d deps, stdout, stderr io.Writer) error {
	if o.quiet {
		stdout = io.Discard
	}
	s, err := openSession(o, d, stdout, stderr)
	if err != nil {
		return err
	}
	defer s.close()

	listings := s.validator.List()
	if o.jsonOutput {
		return s.printer.ListJSON(listings)
	}
	s.printer.List(listings)
	return nil
}
