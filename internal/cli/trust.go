package cli

import (
	"fmt"

	"github.com/lazypower/vigil/internal/config"
	"github.com/lazypower/vigil/internal/store"
	"github.com/spf13/cobra"
)

var trustCmd = &cobra.Command{
	Use:   "trust <user-id>",
	Short: "Show a user's trust score and tier",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrust,
}

func runTrust(cmd *cobra.Command, args []string) error {
	db, err := openConfiguredDB()
	if err != nil {
		return err
	}
	defer db.Close()

	score, err := db.GetTrustScore(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d (%s)\n", args[0], score, store.TrustTier(score))
	return nil
}

func openConfiguredDB() (*store.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	return store.Open(dbPath)
}
