package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prepdeck/interviewd/internal/interview"
	"github.com/prepdeck/interviewd/internal/logger"
	"github.com/prepdeck/interviewd/internal/session"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run an interactive interview in the terminal against an in-memory session",
	Run: func(cmd *cobra.Command, _ []string) {
		simulate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringP("job-title", "t", "Software Engineer", "job title to interview for")
	simulateCmd.Flags().StringP("name", "n", "Candidate", "candidate name")
	simulateCmd.Flags().StringP("topics", "s", "", "comma-separated skill topics to probe")
}

// simulate drives a full interview loop in the terminal. Sessions live only
// in memory, nothing touches redis or the database.
func simulate(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		config = &Config{}
	}

	oracle, err := buildOracle(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal(
			"building ai oracle",
			zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY_FILE environment variable or the 'ai.gemini.api-key-file' key in the configuration file"),
		)
	}

	store := session.NewMemoryStore()
	sessions := session.NewManager(store, logger)
	orchestrator := interview.NewOrchestrator(store, oracle, logger)

	topics := splitTopics(cmd.Flag("topics").Value.String())

	interviewID := uuid.New().String()
	if _, err := sessions.Start(ctx, session.StartParams{
		InterviewID:   interviewID,
		JobTitle:      cmd.Flag("job-title").Value.String(),
		CandidateName: cmd.Flag("name").Value.String(),
		InitialTopics: topics,
	}); err != nil {
		logger.Fatal("starting session", zap.Error(err))
	}

	fmt.Printf("Starting interview %s. Press Ctrl+C to abort.\n\n", interviewID)

	answer := ""
	for {
		result, err := orchestrator.AdvanceTurn(ctx, interviewID, answer)
		if err != nil {
			logger.Fatal("advancing turn", zap.Error(err))
		}

		if result.Feedback != "" {
			fmt.Printf("\nInterviewer: %s\n", result.Feedback)
		}

		if result.Action == interview.ActionEndInterview {
			fmt.Println("\nThe interview has concluded.")
			return
		}

		fmt.Printf("\nQuestion: %s\n\n", result.Question)

		answer, err = readAnswer()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) {
				logger.Info("exiting", zap.String("reason", "interrupted"))
				return
			}
			logger.Fatal("reading answer", zap.Error(err))
		}
	}
}

// splitTopics parses the comma-separated --topics flag. Without explicit
// topics the session falls back to the same triad the service uses.
func splitTopics(raw string) []string {
	var topics []string
	for _, topic := range strings.Split(raw, ",") {
		if topic = strings.TrimSpace(topic); topic != "" {
			topics = append(topics, topic)
		}
	}
	if len(topics) == 0 {
		return interview.DefaultTopics
	}
	return topics
}

func readAnswer() (string, error) {
	prompt := promptui.Prompt{
		Label: "Your answer",
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("answer must not be empty")
			}
			return nil
		},
	}

	return prompt.Run()
}
