package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete archived sessions and the answer log",
	Long: `Delete archived sessions and the answer log.

The catalog is kept. Asks for confirmation unless --yes is given.`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
}

func runReset(cmd *cobra.Command, _ []string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		fmt.Fprint(cmd.OutOrStdout(), "Delete all recorded sessions and answers? [y/N] ")
		in := bufio.NewScanner(cmd.InOrStdin())
		if !in.Scan() {
			return in.Err()
		}
		switch strings.ToLower(strings.TrimSpace(in.Text())) {
		case "y", "yes":
		default:
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.SessionRepo().Reset(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Session history cleared.")
	return nil
}
