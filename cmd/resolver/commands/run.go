package commands

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs premises assignment, then geoname assignment.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, closeDB, err := openRepository(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		// Fail on missing credentials before stage 1 writes anything.
		geonames, err := newGeonameService(repo)
		if err != nil {
			return err
		}

		start := time.Now()
		premises, err := newPremisesService(repo).AssignPremises(cmd.Context())
		if err != nil {
			return err
		}
		located, err := geonames.AssignGeonames(cmd.Context())
		if err != nil {
			return err
		}

		log.Info().
			Int("chains", premises.Chains).
			Int("premises_bound", located.Bound).
			Int("premises_unresolved", located.Ambiguous+located.Unmatched).
			Dur("elapsed", time.Since(start)).
			Msg("resolution finished")
		return nil
	},
}
