package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spigell/interview-trainer/internal/ai"
	"github.com/spigell/interview-trainer/internal/ai/gemini"
	"github.com/spigell/interview-trainer/internal/logger"
	"github.com/spigell/interview-trainer/internal/secrets"
	"github.com/spigell/interview-trainer/internal/session"
	"github.com/spigell/interview-trainer/internal/simulator"
	"github.com/spigell/interview-trainer/internal/snapshot"
	"github.com/spigell/interview-trainer/internal/utils"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	choiceResume    = "Resume saved session"
	choiceStartOver = "Discard it and start over"
	choiceRetry     = "Retry"
	choiceQuit      = "Quit (progress is kept)"

	retryPause = 2 * time.Second
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an interview session",
	Long: "Starts an adaptive interview session and drives it to the final summary. " +
		"An interrupted session is picked up from the snapshot file on the next run.",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.PersistentFlags().Bool("fresh", false, "ignore a saved session and start over")
	viper.BindPFlag("fresh", runCmd.PersistentFlags().Lookup("fresh"))
}

func run(*cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		fmt.Printf("unable to create logger: %s", err)
		os.Exit(1)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("unable to parse config", zap.Error(err))
	}
	if config == nil || config.Interview == nil {
		logger.Fatal("an interview section is required in the config")
	}

	snap := snapshot.New(snapshotPath(config), logger)
	store := session.NewStore(snap, logger)

	source, eval, err := buildCollaborators(ctx, config, logger)
	if err != nil {
		logger.Fatal("unable to create the interview backend", zap.Error(err))
	}

	ctrl := session.NewController(ctx, store, source, eval, logger)
	if config.AutoAdvance != nil {
		if config.AutoAdvance.NextDelay > 0 {
			ctrl.NextDelay = config.AutoAdvance.NextDelay
		}
		if config.AutoAdvance.CompleteDelay > 0 {
			ctrl.CompleteDelay = config.AutoAdvance.CompleteDelay
		}
	}

	if err := startOrResume(ctx, ctrl, snap, config, logger); err != nil {
		logger.Fatal("unable to start the session", zap.Error(err))
	}

	interviewLoop(ctx, ctrl, logger)
}

// startOrResume offers to pick up a persisted session if one is found and
// otherwise starts a new one from the configured settings.
func startOrResume(ctx context.Context, ctrl *session.Controller, snap *snapshot.File, config *Config, logger *zap.Logger) error {
	saved, err := snap.Load()
	if err != nil {
		logger.Warn("saved session is unreadable, starting over", zap.Error(err))
		saved = nil
	}
	if viper.GetBool("fresh") {
		saved = nil
	}

	if saved != nil {
		prompt := promptui.Select{
			Label: fmt.Sprintf("Found a saved session for %q (%d/%d questions answered)",
				saved.Settings.JobTitle, saved.AskedCount, saved.TotalQuestions),
			Items: []string{choiceResume, choiceStartOver},
		}
		_, choice, err := prompt.Run()
		if err != nil {
			return err
		}

		if choice == choiceResume {
			if err := ctrl.Resume(saved); err != nil {
				return err
			}
			// The first fetch tells us whether the backend still knows
			// the session.
			err := ctrl.FetchNext(ctx)
			if err == nil {
				return nil
			}
			if !errors.Is(err, session.ErrSessionExpired) {
				return err
			}
			fmt.Println("The saved session is no longer recognized by the backend. Starting over.")
		} else if err := snap.Clear(); err != nil {
			logger.Warn("unable to remove the saved session", zap.Error(err))
		}
	}

	settings := session.Settings{
		JobTitle:     config.Interview.JobTitle,
		NumQuestions: config.Interview.NumQuestions,
		SoftPct:      config.Interview.SoftPct,
		InitialLevel: config.Interview.InitialLevel,
		Keywords:     config.Interview.Keywords,
		Language:     config.Interview.Language,
	}

	return ctrl.Start(ctx, settings)
}

// buildCollaborators wires the question source and evaluator: either the
// remote simulator API or the local Gemini-backed engine.
func buildCollaborators(ctx context.Context, config *Config, logger *zap.Logger) (session.QuestionSource, session.Evaluator, error) {
	if config.AI != nil && config.AI.Enabled {
		provider := strings.ToLower(strings.TrimSpace(config.AI.Provider))
		if provider != "" && provider != "gemini" {
			return nil, nil, fmt.Errorf("unsupported ai provider %q", config.AI.Provider)
		}
		if config.AI.Gemini == nil {
			return nil, nil, errors.New("an ai.gemini section is required when ai is enabled")
		}

		key, err := secrets.Load(secrets.Source{
			Name: "gemini api key",
			File: viper.GetString("ai.gemini.api-key-file"),
		})
		if err != nil {
			return nil, nil, err
		}

		generator, err := gemini.New(ctx, key, config.AI.Gemini.Model, config.AI.Gemini.MaxRetries, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using the local ai interview engine", zap.String("model", generator.Model()))

		engine := ai.NewEngine(generator, logger, config.AI.Gemini.MaxLogLength)

		return engine, engine, nil
	}

	token := ""
	if file := viper.GetString("backend.token-file"); file != "" {
		loaded, err := secrets.Load(secrets.Source{Name: "backend api token", File: file})
		if err != nil {
			return nil, nil, err
		}
		token = loaded
	}

	client := simulator.New(logger, token)
	if config.Backend != nil {
		if config.Backend.BaseURL != "" {
			client.APIURL = config.Backend.BaseURL
		}
		if config.Backend.UserAgent != "" {
			client.UserAgent = config.Backend.UserAgent
		}
	}

	return client, client, nil
}

// interviewLoop renders whatever state the controller is in and feeds user
// input back into it until the session completes or the context is canceled.
func interviewLoop(ctx context.Context, ctrl *session.Controller, logger *zap.Logger) {
	in := bufio.NewReader(os.Stdin)
	store := ctrl.Store()

	for {
		if ctx.Err() != nil {
			fmt.Println("\nInterrupted. Run again to resume where you left off.")
			return
		}

		switch ctrl.State() {
		case session.StateAwaitingAnswer:
			q := store.CurrentQuestion()
			if q == nil {
				err := ctrl.FetchNext(ctx)
				if err != nil && !errors.Is(err, session.ErrSessionExpired) {
					if !askRetry(ctx, "Unable to fetch the next question", err, logger) {
						return
					}
				}
				continue
			}

			printQuestion(q, store.Progress())
			answer, err := readAnswer(in)
			if err != nil {
				logger.Fatal("unable to read the answer", zap.Error(err))
			}

			// The draft survives a failed submit, so a retry resends the
			// same answer without retyping.
			for ctrl.State() == session.StateAwaitingAnswer {
				err := ctrl.SubmitAnswer(ctx, answer)
				if err == nil {
					break
				}
				var verr *session.ValidationError
				if errors.As(err, &verr) {
					fmt.Printf("Your answer was not accepted: %s. Please try again.\n\n", verr.Reason)
					break
				}
				if errors.Is(err, session.ErrSessionExpired) {
					fmt.Println("The session expired on the backend. Run again to start over.")
					return
				}
				if !askRetry(ctx, "Unable to submit the answer", err, logger) {
					return
				}
			}

		case session.StateShowingFeedback:
			printFeedback(store.LastEvaluation(), store.Progress())
			select {
			case <-ctx.Done():
			case <-ctrl.AutoAdvance():
			}

		case session.StateSummarizing:
			if err := ctrl.Complete(ctx); err != nil {
				if !askRetry(ctx, "Unable to fetch the summary", err, logger) {
					return
				}
			}

		case session.StateComplete:
			printSummary(store.Summary())
			return

		case session.StateSetup:
			if msg := store.Failure(); msg != "" {
				fmt.Println(msg)
			}
			return

		default:
			// Starting or Evaluating is in flight on another goroutine.
			if err := utils.WaitFor(ctx, 100*time.Millisecond); err != nil {
				return
			}
		}
	}
}

// askRetry reports the failure and asks whether to try again. It pauses
// before returning true so a struggling backend gets a moment to recover.
func askRetry(ctx context.Context, what string, err error, logger *zap.Logger) bool {
	logger.Warn(what, zap.Error(err))

	prompt := promptui.Select{
		Label: what,
		Items: []string{choiceRetry, choiceQuit},
	}
	_, choice, perr := prompt.Run()
	if perr != nil || choice != choiceRetry {
		return false
	}

	if err := utils.WaitFor(ctx, retryPause); err != nil {
		return false
	}

	return true
}

// readAnswer collects a multi-line answer terminated by an empty line.
func readAnswer(in *bufio.Reader) (string, error) {
	fmt.Println("Your answer (finish with an empty line):")

	var lines []string
	for {
		line, err := in.ReadString('\n')
		if err != nil {
			return "", err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		lines = append(lines, line)
	}

	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

func printQuestion(q *session.Question, p session.Progress) {
	fmt.Printf("\n=== Question %d of %d (level %d, %s) ===\n",
		q.Ordinal, p.TotalQuestions, q.Level, q.Category)
	if q.Context != "" {
		fmt.Printf("Context: %s\n", q.Context)
	}
	fmt.Println(q.Text)
	if len(q.Topics) > 0 {
		fmt.Printf("Topics: %s\n", strings.Join(q.Topics, ", "))
	}
	if q.EstimatedTime > 0 {
		fmt.Printf("Suggested time: %d min\n", q.EstimatedTime)
	}
	fmt.Println()
}

func printFeedback(ev *session.Evaluation, p session.Progress) {
	if ev == nil {
		return
	}

	fmt.Printf("\nScore: %.0f/100 (correctness %.0f, depth %.0f, clarity %.0f, relevance %.0f)\n",
		ev.OverallScore, ev.Subscores.Correctness, ev.Subscores.Depth,
		ev.Subscores.Clarity, ev.Subscores.Relevance)
	if ev.Feedback != "" {
		fmt.Println(ev.Feedback)
	}
	for _, s := range ev.Strengths {
		fmt.Printf("  + %s\n", s)
	}
	for _, s := range ev.Improvements {
		fmt.Printf("  - %s\n", s)
	}

	switch {
	case p.LevelDelta > 0:
		fmt.Printf("Difficulty raised to level %d.\n", p.CurrentLevel)
	case p.LevelDelta < 0:
		fmt.Printf("Difficulty lowered to level %d.\n", p.CurrentLevel)
	default:
		fmt.Printf("Difficulty stays at level %d.\n", p.CurrentLevel)
	}
	fmt.Printf("Progress: %d/%d (%.0f%%)\n", p.CurrentQuestion, p.TotalQuestions, p.Percent)
}

func printSummary(sum *session.Summary) {
	if sum == nil {
		return
	}

	fmt.Println("\n=== Interview complete ===")
	fmt.Printf("Overall score: %.1f/100\n", sum.OverallScore)
	fmt.Printf("Technical: %.1f, soft skills: %.1f\n", sum.TechnicalScore, sum.SoftSkillsScore)
	fmt.Printf("Final level: %d, questions answered: %d\n", sum.FinalLevel, sum.QuestionsAnswered)
	if len(sum.Strengths) > 0 {
		fmt.Printf("Strengths: %s\n", strings.Join(sum.Strengths, ", "))
	}
	if len(sum.AreasForImprovement) > 0 {
		fmt.Printf("To improve: %s\n", strings.Join(sum.AreasForImprovement, ", "))
	}
	fmt.Printf("Recommendation: %s\n", sum.Recommendation)
}
