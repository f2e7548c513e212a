package commands

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(assignGeonameCmd)
}

var assignGeonameCmd = &cobra.Command{
	Use:   "assign-geoname",
	Short: "Locates every premises without a geoname through the geocoding providers.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, closeDB, err := openRepository(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		svc, err := newGeonameService(repo)
		if err != nil {
			return err
		}
		_, err = svc.AssignGeonames(cmd.Context())
		return err
	},
}
