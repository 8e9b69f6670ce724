package main

import (
	"errors"
	"fmt"
	"log"

	"github.com/google/go-github/v66/github"
	"github.com/spf13/cobra"

	"github.com/dferrero/diffscope/internal/config"
	"github.com/dferrero/diffscope/internal/db"
	"github.com/dferrero/diffscope/internal/ingest"
	"github.com/dferrero/diffscope/internal/logging"
	"github.com/dferrero/diffscope/internal/queue"
)

var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Backfill ingestion CLI",
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Enqueue recent commits and open pull requests for a repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		repoID, _ := cmd.Flags().GetString("repo")
		if repoID == "" {
			return errors.New("--repo owner/name is required")
		}
		maxCommits, _ := cmd.Flags().GetInt("commits")
		if maxCommits <= 0 {
			maxCommits = config.BackfillCommitMax()
		}
		includePRs, _ := cmd.Flags().GetBool("prs")

		if config.PostgresURL() == "" {
			return errors.New("POSTGRES_URL must be set")
		}

		database, err := db.NewDatabase(db.Config{DSN: config.PostgresURL(), Debug: config.DBDebug()})
		if err != nil {
			return err
		}
		defer database.Close()

		logger := logging.New(logging.DefaultLogger(config.LogLevel()))
		queueSvc := queue.NewService(db.NewQueueRepository(database), logger)
		client := ingest.NewGitHubClient(config.GitHubToken())

		ctx := cmd.Context()
		owner, name, err := ingest.SplitRepoID(repoID)
		if err != nil {
			return err
		}

		enqueued := 0
		opts := &github.CommitsListOptions{ListOptions: github.ListOptions{PerPage: 100}}
		for enqueued < maxCommits {
			commits, resp, err := client.Repositories.ListCommits(ctx, owner, name, opts)
			if err != nil {
				return fmt.Errorf("list commits: %w", err)
			}
			for _, c := range commits {
				if enqueued >= maxCommits {
					break
				}
				sha := c.GetSHA()
				if sha == "" {
					continue
				}
				if _, err := queueSvc.Enqueue(ctx, queue.EnqueueRequest{
					RepoID:     repoID,
					TargetType: queue.TargetCommit,
					TargetID:   sha,
					Priority:   queue.PriorityNormal,
					Metadata:   map[string]string{"source": "backfill"},
				}); err != nil {
					return err
				}
				enqueued++
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
		fmt.Fprintf(cmd.OutOrStdout(), "enqueued %d commits\n", enqueued)

		if !includePRs {
			return nil
		}

		prCount := 0
		prOpts := &github.PullRequestListOptions{State: "open", ListOptions: github.ListOptions{PerPage: 100}}
		for {
			prs, resp, err := client.PullRequests.List(ctx, owner, name, prOpts)
			if err != nil {
				return fmt.Errorf("list pull requests: %w", err)
			}
			for _, pr := range prs {
				if pr.GetNumber() == 0 {
					continue
				}
				if _, err := queueSvc.Enqueue(ctx, queue.EnqueueRequest{
					RepoID:     repoID,
					TargetType: queue.TargetPullRequest,
					TargetID:   fmt.Sprintf("%d", pr.GetNumber()),
					Priority:   queue.PriorityHigh,
					Metadata:   map[string]string{"source": "backfill", "title": pr.GetTitle()},
				}); err != nil {
					return err
				}
				prCount++
			}
			if resp.NextPage == 0 {
				break
			}
			prOpts.Page = resp.NextPage
		}
		fmt.Fprintf(cmd.OutOrStdout(), "enqueued %d pull requests\n", prCount)
		return nil
	},
}

func main() {
	config.Init(rootCmd)

	backfillCmd.Flags().String("repo", "", "Repository as owner/name")
	backfillCmd.Flags().Int("commits", 0, "Maximum commits to enqueue (0 = configured default)")
	backfillCmd.Flags().Bool("prs", true, "Also enqueue open pull requests")

	rootCmd.AddCommand(backfillCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("ingest: %v", err)
	}
}
