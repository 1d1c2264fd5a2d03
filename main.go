package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/modfin/clix"
	"github.com/modfin/qualm/internal/ai"
	"github.com/modfin/qualm/internal/completion"
	"github.com/modfin/qualm/internal/confidence"
	"github.com/modfin/qualm/internal/config"
	"github.com/modfin/qualm/internal/db"
	"github.com/modfin/qualm/internal/render"
	"github.com/modfin/qualm/internal/session"
	"github.com/urfave/cli/v3"
)

func main() {

	defer func() {
		db.Statistics()
	}()

	if wd, err := os.Getwd(); err == nil {
		if err := config.LoadEnv(wd); err != nil {
			slog.Default().Warn("could not load .env", "err", err)
		}
	}

	if err := app().Run(context.Background(), os.Args); err != nil {
		slog.Default().Error("got error running qualm", "err", err)
		os.Exit(1)
	}
}

func app() *cli.Command {
	return &cli.Command{
		Name:  "qualm",
		Usage: "ask a language model and see how confident it was, token by token and sentence by sentence",

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Value:   "./qualm.db",
				Sources: cli.EnvVars("QUALM_DB"),
			},
			&cli.StringFlag{
				Name:    "session",
				Usage:   "the chat history to use",
				Value:   "default",
				Sources: cli.EnvVars("QUALM_SESSION"),
			},

			&cli.StringFlag{
				Name:    "openai-url",
				Value:   completion.DefaultBaseURL,
				Sources: cli.EnvVars("QUALM_OPENAI_URL"),
			},
			&cli.StringFlag{
				Name:    "openai-key",
				Sources: cli.EnvVars("QUALM_OPENAI_KEY", "OPENAI_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "api",
				Usage:   "completions or chat",
				Value:   "completions",
				Sources: cli.EnvVars("QUALM_API"),
			},

			&cli.StringFlag{
				Name:    "model",
				Value:   completion.Defaults.Model,
				Sources: cli.EnvVars("QUALM_MODEL"),
			},
			&cli.IntFlag{
				Name:    "max-tokens",
				Value:   int64(completion.Defaults.MaxTokens),
				Sources: cli.EnvVars("QUALM_MAX_TOKENS"),
			},
			&cli.FloatFlag{
				Name:    "temperature",
				Value:   completion.Defaults.Temperature,
				Sources: cli.EnvVars("QUALM_TEMPERATURE"),
			},
			&cli.IntFlag{
				Name:    "top-logprobs",
				Usage:   "candidates returned per generated position",
				Value:   int64(completion.Defaults.TopLogprobs),
				Sources: cli.EnvVars("QUALM_TOP_LOGPROBS"),
			},

			&cli.StringFlag{
				Name:    "bands-preset",
				Usage:   "default, alternate or legacy",
				Value:   "default",
				Sources: cli.EnvVars("QUALM_BANDS_PRESET"),
			},
			&cli.StringSliceFlag{
				Name:    "band",
				Usage:   "a severity band as lower:name[:color], e.g. 90:High:green",
				Sources: cli.EnvVars("QUALM_BANDS"),
			},
			&cli.StringFlag{
				Name:    "bands-file",
				Usage:   "a TOML file of [[band]] tables",
				Sources: cli.EnvVars("QUALM_BANDS_FILE"),
			},

			&cli.StringFlag{
				Name:    "assess-model",
				Usage:   "provider/model used to have the answer rated verbally, e.g. OpenAI/gpt-4o-mini",
				Sources: cli.EnvVars("QUALM_ASSESS_MODEL"),
			},
			&cli.StringFlag{
				Name:    "bellman-url",
				Sources: cli.EnvVars("QUALM_BELLMAN_URL"),
			},
			&cli.StringFlag{
				Name:    "bellman-key",
				Sources: cli.EnvVars("QUALM_BELLMAN_KEY"),
			},
			&cli.StringFlag{
				Name:    "bellman-key-name",
				Value:   "qualm",
				Sources: cli.EnvVars("QUALM_BELLMAN_KEY_NAME"),
			},
			&cli.StringFlag{
				Name:    "vertexai-credential",
				Sources: cli.EnvVars("QUALM_VERTEXAI_CREDENTIAL"),
			},
			&cli.StringFlag{
				Name:    "vertexai-project",
				Sources: cli.EnvVars("QUALM_VERTEXAI_PROJECT"),
			},
			&cli.StringFlag{
				Name:    "vertexai-region",
				Sources: cli.EnvVars("QUALM_VERTEXAI_REGION"),
			},
			&cli.StringFlag{
				Name:    "anthropic-key",
				Sources: cli.EnvVars("QUALM_ANTHROPIC_KEY"),
			},

			&cli.StringFlag{
				Name:    "view",
				Usage:   "sentences, tokens, both or none",
				Value:   "sentences",
				Sources: cli.EnvVars("QUALM_VIEW"),
			},
			&cli.BoolFlag{
				Name:    "json",
				Sources: cli.EnvVars("QUALM_JSON"),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Sources: cli.EnvVars("QUALM_VERBOSE"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			slog.SetDefault(config.Logger(os.Stderr, cmd.Bool("verbose")))
			return ctx, nil
		},

		Commands: []*cli.Command{
			{
				Name:      "ask",
				Usage:     "ask a question and score the answer",
				ArgsUsage: "<question>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					question := strings.Join(cmd.Args().Slice(), " ")

					source, err := completion.New(clix.ParseCommand[completion.Config](cmd), slog.Default())
					if err != nil {
						return err
					}
					return ask(ctx, cmd, source, question)
				},
			},

			{
				Name:      "score",
				Usage:     "score a saved completion or API response",
				ArgsUsage: "<file.json>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "question",
						Usage: "the question the completion answered, stored with --save",
					},
					&cli.BoolFlag{
						Name:  "save",
						Usage: "append the scored completion to the history",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 1 {
						return fmt.Errorf("expected exactly one completion file")
					}
					source := completion.NewFileSource(cmd.Args().First())

					if cmd.Bool("save") {
						question := cmd.String("question")
						if question == "" {
							question = cmd.Args().First()
						}
						return ask(ctx, cmd, source, question)
					}

					table, err := bands(cmd)
					if err != nil {
						return err
					}
					c, err := source.Complete(ctx, completion.Request{})
					if err != nil {
						return err
					}
					res := confidence.Score(c)
					if cmd.Bool("json") {
						return render.JSON(os.Stdout, res)
					}
					view, err := render.ParseView(cmd.String("view"))
					if err != nil {
						return err
					}
					return render.Entry(os.Stdout, db.Entry{Question: cmd.String("question"), Response: c.Text}, res, table, view)
				},
			},

			{
				Name:  "history",
				Usage: "show or clear the chat history",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "full",
						Usage: "print every entry with its confidences",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return history(ctx, cmd, func(s *session.Session) ([]db.Entry, error) {
						return s.History(ctx, int(cmd.Int("limit")))
					})
				},
				Commands: []*cli.Command{
					{
						Name:  "weakest",
						Usage: "entries holding the least confident tokens",
						Flags: []cli.Flag{
							&cli.IntFlag{
								Name:  "limit",
								Value: 5,
							},
						},
						Action: func(ctx context.Context, cmd *cli.Command) error {
							return history(ctx, cmd, func(s *session.Session) ([]db.Entry, error) {
								return s.Weakest(ctx, int(cmd.Int("limit")))
							})
						},
					},
					{
						Name:  "clear",
						Usage: "delete every entry of the session",
						Action: func(ctx context.Context, cmd *cli.Command) error {
							conn, queries, err := db.Open(ctx, cmd.String("db"))
							if err != nil {
								return err
							}
							defer conn.Close()

							s := session.New(nil, queries, cmd.String("session"))
							n, err := s.Clear(ctx)
							if err != nil {
								return fmt.Errorf("failed to clear history: %w", err)
							}
							fmt.Printf("removed %d entries from session %s\n", n, s.Name())
							return nil
						},
					},
					{
						Name:  "sessions",
						Usage: "list the sessions that have history",
						Action: func(ctx context.Context, cmd *cli.Command) error {
							conn, queries, err := db.Open(ctx, cmd.String("db"))
							if err != nil {
								return err
							}
							defer conn.Close()

							names, err := queries.Sessions(ctx)
							if err != nil {
								return fmt.Errorf("failed to list sessions: %w", err)
							}
							if cmd.Bool("json") {
								return render.JSON(os.Stdout, names)
							}
							for _, name := range names {
								fmt.Println(name)
							}
							return nil
						},
					},
				},
			},

			{
				Name:  "bands",
				Usage: "print the severity band legend",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "toml",
						Usage: "print the table in the --bands-file format",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					table, err := bands(cmd)
					if err != nil {
						return err
					}
					switch {
					case cmd.Bool("toml"):
						return config.WriteBands(os.Stdout, table)
					case cmd.Bool("json"):
						return render.JSON(os.Stdout, table)
					}
					return render.Bands(os.Stdout, table)
				},
			},
		},
	}
}

func bands(cmd *cli.Command) (confidence.Table, error) {
	return config.Bands(cmd.String("bands-preset"), cmd.StringSlice("band"), cmd.String("bands-file"))
}

func ask(ctx context.Context, cmd *cli.Command, source completion.Source, question string) error {
	table, err := bands(cmd)
	if err != nil {
		return err
	}
	view, err := render.ParseView(cmd.String("view"))
	if err != nil {
		return err
	}

	conn, queries, err := db.Open(ctx, cmd.String("db"))
	if err != nil {
		return err
	}
	defer conn.Close()

	opts := []session.Option{
		session.WithRequest(completion.Request{
			Model:       cmd.String("model"),
			MaxTokens:   int(cmd.Int("max-tokens")),
			Temperature: cmd.Float("temperature"),
			TopLogprobs: int(cmd.Int("top-logprobs")),
		}),
	}

	if m := cmd.String("assess-model"); m != "" {
		model, err := ai.ParseModel(m)
		if err != nil {
			return err
		}
		proxy, err := ai.New(clix.ParseCommand[ai.APICredentials](cmd), slog.Default())
		if err != nil {
			return fmt.Errorf("failed to create proxy: %w", err)
		}
		slog.Default().Debug("assess model", "provider", model.Provider, "model", model.Name, "providers", proxy.Providers())
		opts = append(opts, session.WithAssessor(ai.NewAssessor(proxy, model)))
	}

	s := session.New(source, queries, cmd.String("session"), opts...)

	start := time.Now()
	entry, res, err := s.Ask(ctx, question)
	if err != nil {
		return err
	}
	slog.Default().Debug("ask", "took", time.Since(start), "tokens", len(res.TokenConfidences))

	if cmd.Bool("json") {
		return render.JSON(os.Stdout, struct {
			Entry  db.Entry          `json:"entry"`
			Result confidence.Result `json:"result"`
		}{entry, res})
	}
	return render.Entry(os.Stdout, entry, res, table, view)
}

func history(ctx context.Context, cmd *cli.Command, list func(*session.Session) ([]db.Entry, error)) error {
	table, err := bands(cmd)
	if err != nil {
		return err
	}

	conn, queries, err := db.Open(ctx, cmd.String("db"))
	if err != nil {
		return err
	}
	defer conn.Close()

	entries, err := list(session.New(nil, queries, cmd.String("session")))
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	if cmd.Bool("json") {
		return render.JSON(os.Stdout, entries)
	}
	if !cmd.Bool("full") {
		return render.Summary(os.Stdout, entries, table, time.Now())
	}

	view, err := render.ParseView(cmd.String("view"))
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := render.Entry(os.Stdout, e, session.ResultOf(e), table, view); err != nil {
			return err
		}
		fmt.Println()
	}
	return nil
}
