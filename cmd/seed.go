package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed [file]",
	Short: "Load a catalog seed into the database",
	Long: `Load a catalog seed into the database.

Without a file the configured seed (or the embedded catalog) is used. The
catalog is only replaced when the seed's version is newer than the stored
one, unless --force is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().Bool("force", false, "Replace the stored catalog regardless of version")
}

func runSeed(cmd *cobra.Command, args []string) error {
	path := cfg.Storage.SeedPath
	if len(args) == 1 {
		path = args[0]
	}
	force, _ := cmd.Flags().GetBool("force")

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	repo := st.CatalogRepo()
	written, err := reseed(cmd.Context(), repo, path, force)
	if err != nil {
		return err
	}
	version, err := repo.CatalogVersion(cmd.Context())
	if err != nil {
		return err
	}

	if written {
		fmt.Fprintf(cmd.OutOrStdout(), "Catalog %s loaded.\n", version)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Catalog %s is already current (use --force to reload).\n", version)
	}
	return nil
}
