// Command interviewctl is the operator CLI: offline scoring, API key
// hashing and the demo memory reset.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	httpserver "github.com/fairyhunter13/ai-mock-interview/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/observability"
	qdrantcli "github.com/fairyhunter13/ai-mock-interview/internal/adapter/vector/qdrant"
	"github.com/fairyhunter13/ai-mock-interview/internal/app"
	"github.com/fairyhunter13/ai-mock-interview/internal/config"
	"github.com/fairyhunter13/ai-mock-interview/internal/feedback"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "interviewctl",
		Short:        "Operate the AI mock interview service",
		SilenceUsage: true,
	}
	root.AddCommand(newScoreCmd(), newHashKeyCmd(), newDemoResetCmd())
	return root
}

type scoreOutput struct {
	feedback.Record
	ToneLabel      string `json:"tone_label"`
	StructureLabel string `json:"sentence_structure_label"`
}

func newScoreCmd() *cobra.Command {
	var contentPath string
	cmd := &cobra.Command{
		Use:   "score [text]",
		Short: "Score an answer with the heuristic scorer; reads stdin when no text is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := ""
			if len(args) == 1 {
				text = args[0]
			} else {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = string(b)
			}
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("answer text is empty")
			}
			content, err := config.LoadInterviewContent(contentPath)
			if err != nil {
				return err
			}
			rec := feedback.New(content.Scorer).Score(text)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(scoreOutput{Record: rec, ToneLabel: rec.Tone.Label(), StructureLabel: rec.SentenceStructure.Label()})
		},
	}
	cmd.Flags().StringVar(&contentPath, "config", "", "interview YAML with scorer lexicons (embedded defaults when empty)")
	return cmd
}

func newHashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key <api-key>",
		Short: "Print the argon2id hash to put in API_KEY_HASHES",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := httpserver.HashAPIKey(args[0], httpserver.DefaultArgon2Params)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), h)
			return err
		},
	}
}

func newDemoResetCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "demo-reset",
		Short: "Drop the interview memory collection and store the demo record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			slog.SetDefault(observability.SetupLogger(cfg))
			aiStack, err := app.BuildAI(cfg)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			store := qdrantcli.NewMemoryStore(qdrantcli.New(cfg.QdrantURL, cfg.QdrantAPIKey), aiStack.Client, cfg.MemoryCollection, cfg.EmbeddingsDim)
			if err := store.Reset(ctx, qdrantcli.DemoSeed()); err != nil {
				return fmt.Errorf("demo reset: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "memory collection %q reset\n", cfg.MemoryCollection)
			return err
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "overall timeout")
	return cmd
}
