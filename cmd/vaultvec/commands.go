package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/vaultvec/internal"
	"github.com/starford/vaultvec/internal/index"
	"github.com/starford/vaultvec/internal/search"
)

// withStack opens the configured stores for a one-shot command. Logs go to
// stderr so stdout carries only the command output.
func withStack(ctx context.Context, cmd *cli.Command, fn func(*internal.Stack) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	stack, err := internal.Open(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return err
	}
	runErr := fn(stack)
	if err := stack.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:      "index",
		Usage:     "Index the whole vault, or only the given note paths",
		ArgsUsage: "[path ...]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withStack(ctx, cmd, func(s *internal.Stack) error {
				paths := cmd.Args().Slice()
				var (
					res *index.Result
					err error
				)
				if len(paths) == 0 {
					res, err = s.Service.Sync(ctx)
				} else {
					res, err = s.Pipeline.SyncPaths(ctx, paths)
				}
				if err != nil {
					return err
				}
				fmt.Println(res.Message())
				return nil
			})
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Run a semantic query",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: search.DefaultLimit, Usage: "Maximum results (1-50)"},
			&cli.FloatFlag{Name: "min-score", Value: -1, Usage: "Minimum similarity; negative uses the configured default"},
			&cli.StringSliceFlag{Name: "tag", Usage: "Keep notes with any of these tags"},
			&cli.StringFlag{Name: "sort-by", Value: string(search.SortRelevance), Usage: "relevance, createdAt or modifiedAt"},
			&cli.BoolFlag{Name: "content", Usage: "Print the full body of each result"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			query := strings.Join(cmd.Args().Slice(), " ")
			if strings.TrimSpace(query) == "" {
				return fmt.Errorf("a query is required")
			}
			req := search.Request{
				Query:          query,
				Limit:          search.ClampLimit(int(cmd.Int("limit")), search.MaxLimit),
				Tags:           cmd.StringSlice("tag"),
				SortBy:         search.ParseSortBy(cmd.String("sort-by")),
				IncludeContent: cmd.Bool("content"),
			}
			if v := cmd.Float("min-score"); v >= 0 {
				req.MinScore = &v
			}
			return withStack(ctx, cmd, func(s *internal.Stack) error {
				resp, err := s.Service.Search(ctx, req)
				if err != nil {
					return err
				}
				fmt.Println(resp.Message())
				for i, r := range resp.Results {
					fmt.Printf("%2d. %.3f  %s  (%s)\n", i+1, r.Score, r.Title, r.Path)
					if r.Content != "" {
						fmt.Printf("\n%s\n\n", r.Content)
					}
				}
				return nil
			})
		},
	}
}

func orphansCommand() *cli.Command {
	return &cli.Command{
		Name:  "orphans",
		Usage: "List indexed notes whose vault file no longer exists",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withStack(ctx, cmd, func(s *internal.Stack) error {
				orphans, err := s.Service.Orphans(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("%d orphaned notes\n", len(orphans))
				for _, p := range orphans {
					fmt.Println(p)
				}
				return nil
			})
		},
	}
}

func cleanupCommand() *cli.Command {
	return &cli.Command{
		Name:      "cleanup",
		Usage:     "Delete orphaned notes, or the given paths, from both stores",
		ArgsUsage: "[path ...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Skip the confirmation prompt"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withStack(ctx, cmd, func(s *internal.Stack) error {
				paths := cmd.Args().Slice()
				if len(paths) == 0 {
					orphans, err := s.Service.Orphans(ctx)
					if err != nil {
						return err
					}
					paths = orphans
				}
				if len(paths) == 0 {
					fmt.Println("Nothing to clean up.")
					return nil
				}
				for _, p := range paths {
					fmt.Println(p)
				}
				if !cmd.Bool("yes") && !confirm(os.Stdin, os.Stdout, fmt.Sprintf("Delete %d notes from the index?", len(paths))) {
					fmt.Println("Aborted.")
					return nil
				}
				res, err := s.Service.Cleanup(ctx, paths)
				if err != nil {
					return err
				}
				fmt.Println(res.Message())
				return nil
			})
		},
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show store totals",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withStack(ctx, cmd, func(s *internal.Stack) error {
				st, err := s.Service.Stats(ctx)
				if err != nil {
					return err
				}
				fmt.Println(st.Message())
				for _, f := range st.SampleFiles {
					fmt.Printf("  %s  %s\n", f.Size, f.Key)
				}
				return nil
			})
		},
	}
}

// confirm asks a yes/no question; anything but y or yes is a no.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
