package cmd

import (
	"fmt"

	"github.com/spigell/interview-trainer/internal/logger"
	"github.com/spigell/interview-trainer/internal/session"
	"github.com/spigell/interview-trainer/internal/snapshot"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the saved session, if any",
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
		saved, err := snap.Load()
		if err != nil {
			logger.Fatal("unable to read the saved session", zap.Error(err))
		}
		if saved == nil {
			fmt.Printf("No saved session at %s.\n", snap.Path())
			return
		}

		store := session.NewStore(nil, logger)
		store.Restore(saved)
		p := store.Progress()

		fmt.Printf("Saved session %s\n", saved.SessionID)
		fmt.Printf("Position:  %q\n", saved.Settings.JobTitle)
		fmt.Printf("Progress:  %d/%d questions (%.0f%%)\n", p.CurrentQuestion, p.TotalQuestions, p.Percent)
		fmt.Printf("Level:     %d\n", p.CurrentLevel)
		fmt.Printf("Snapshot:  %s\n", snap.Path())
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
