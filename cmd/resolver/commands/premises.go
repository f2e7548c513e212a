package commands

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(assignPremisesCmd)
}

var assignPremisesCmd = &cobra.Command{
	Use:   "assign-premises",
	Short: "Groups markets without a premises into chains of duplicates and commits each chain.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, closeDB, err := openRepository(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		_, err = newPremisesService(repo).AssignPremises(cmd.Context())
		return err
	},
}
