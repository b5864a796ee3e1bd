package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/amendbot/amend/internal/config"
	"github.com/amendbot/amend/internal/generator"
	"github.com/amendbot/amend/internal/github"
	"github.com/amendbot/amend/internal/updater"
)

var (
	repoURL     string
	prompt      string
	baseBranch  string
	newBranch   string
	filePattern string
)

var rootCmd = &cobra.Command{
	Use:   "amend",
	Short: "Update GitHub repository code using AI",
	Long:  "amend fetches a repository's files, asks an AI model to apply a natural-language instruction, and writes the result to a new branch.",
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Generate changes and commit them to a new branch",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipeline, logger, err := newPipeline()
		if err != nil {
			return err
		}
		defer logger.Sync()

		result, err := pipeline.Run(cmd.Context(), updater.Request{
			RepoURL:     repoURL,
			Prompt:      prompt,
			BaseBranch:  baseBranch,
			NewBranch:   newBranch,
			FilePattern: filePattern,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Branch:  %s\n", result.Branch)
		if result.CommitSHA != "" {
			fmt.Printf("Commit:  %s\n", result.CommitSHA)
		}
		fmt.Printf("Files:   %d\n", len(result.FilesChanged))
		for _, path := range result.FilesChanged {
			fmt.Printf("  - %s\n", path)
		}
		fmt.Println(result.Message)
		return nil
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show proposed changes without committing them",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipeline, logger, err := newPipeline()
		if err != nil {
			return err
		}
		defer logger.Sync()

		preview, err := pipeline.Preview(cmd.Context(), updater.Request{
			RepoURL:     repoURL,
			Prompt:      prompt,
			BaseBranch:  baseBranch,
			FilePattern: filePattern,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Files to update: %d\n", preview.FilesToUpdate)
		for _, change := range preview.Changes {
			fmt.Printf("\n=== %s ===\n", change.Path)
			if change.Original != "" {
				fmt.Printf("--- original ---\n%s\n", change.Original)
			}
			fmt.Printf("--- updated ---\n%s\n", change.Updated)
		}
		return nil
	},
}

func newPipeline() (*updater.Updater, *zap.Logger, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	githubClient := github.NewClient(cfg.GitHubToken, github.Options{
		MaxFileBytes:      cfg.MaxFileBytes,
		SkipExtensions:    cfg.SkipExtensions,
		FetchWorkers:      cfg.FetchWorkers,
		RequestsPerSecond: cfg.GitHubRPS,
	}, logger)

	gen, err := generator.New(cfg.GeneratorMode, cfg.OpenAIKey, generator.Options{
		Model:     cfg.OpenAIModel,
		MaxTokens: cfg.OpenAIMaxTokens,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	return updater.New(githubClient, gen, githubClient, logger), logger, nil
}

func init() {
	for _, cmd := range []*cobra.Command{updateCmd, previewCmd} {
		cmd.Flags().StringVarP(&repoURL, "repo", "r", "", "GitHub repository URL (e.g., https://github.com/user/repo)")
		cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "instruction for code changes (e.g., 'Add error handling')")
		cmd.Flags().StringVarP(&baseBranch, "base-branch", "b", "main", "base branch to read from")
		cmd.Flags().StringVar(&filePattern, "pattern", "", "file pattern to filter (e.g., '*.py')")
		cmd.MarkFlagRequired("repo")
		cmd.MarkFlagRequired("prompt")
	}
	updateCmd.Flags().StringVarP(&newBranch, "new-branch", "n", "", "name for the new branch (auto-generated if not provided)")

	rootCmd.AddCommand(updateCmd, previewCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
