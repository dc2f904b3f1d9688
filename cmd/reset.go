package cmd

import (
	"fmt"

	"github.com/spigell/interview-trainer/internal/logger"
	"github.com/spigell/interview-trainer/internal/snapshot"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard the saved session",
	Run: func(*cobra.Command, []string) {
		logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
		if err != nil {
			fmt.Printf("unable to create logger: %s", err)
			return
		}

		config, err := getConfig()
		if err != nil {
			logger.Fatal("unable to parse config", zap.Error(err))
		}

		snap := snapshot.New(snapshotPath(config), logger)
		if err := snap.Clear(); err != nil {
			logger.Fatal("unable to remove the saved session", zap.Error(err))
		}

		fmt.Printf("Saved session removed from %s.\n", snap.Path())
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
