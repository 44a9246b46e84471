package main

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestIngestCommandArgs(t *testing.T) {
	app := &cli.App{
		Name: "weavit",
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "project",
						Aliases: []string{"p"},
						Value:   "default",
					},
				},
			},
		},
	}

	t.Run("no paths fails before connecting anywhere", func(t *testing.T) {
		err := app.Run([]string{"weavit", "ingest"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least one file or directory")
	})
}

func TestQueryCommandArgs(t *testing.T) {
	app := &cli.App{
		Name: "weavit",
		Commands: []*cli.Command{
			{
				Name:   "query",
				Action: queryCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "max-hits", Value: 10},
				},
			},
		},
	}

	t.Run("missing text fails", func(t *testing.T) {
		err := app.Run([]string{"weavit", "query"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "query text is required")
	})
}

func TestWatchCommandArgs(t *testing.T) {
	app := &cli.App{
		Name: "weavit",
		Commands: []*cli.Command{
			{
				Name:   "watch",
				Action: watchCommand,
			},
		},
	}

	t.Run("missing directory fails", func(t *testing.T) {
		err := app.Run([]string{"weavit", "watch"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exactly one directory")
	})
}

func TestFirstLine(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single line unchanged", "short chunk", "short chunk"},
		{"newline trimmed", "first\nsecond", "first"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, firstLine(tt.in))
		})
	}

	t.Run("long lines are shortened", func(t *testing.T) {
		long := make([]byte, 300)
		for i := range long {
			long[i] = 'x'
		}
		got := firstLine(string(long))
		assert.Less(t, len(got), 300)
	})
}

func TestSetupLogger(t *testing.T) {
	t.Run("valid log levels", func(t *testing.T) {
		testCases := []struct {
			input    string
			expected slog.Level
		}{
			{"debug", slog.LevelDebug},
			{"info", slog.LevelInfo},
			{"warn", slog.LevelWarn},
			{"error", slog.LevelError},
		}

		for _, tc := range testCases {
			t.Run(tc.input, func(t *testing.T) {
				app := &cli.App{
					Name: "test",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:  "log-level",
							Value: tc.input,
						},
					},
					Before: setupLogger,
					Action: func(c *cli.Context) error { return nil },
				}

				err := app.Run([]string{"test", "--log-level", tc.input})
				require.NoError(t, err)
			})
		}
	})

	t.Run("case insensitive log levels", func(t *testing.T) {
		for _, tc := range []string{"DEBUG", "Info", "WaRn", "ERROR"} {
			t.Run(tc, func(t *testing.T) {
				app := &cli.App{
					Name: "test",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:  "log-level",
							Value: "info",
						},
					},
					Before: setupLogger,
					Action: func(c *cli.Context) error { return nil },
				}

				err := app.Run([]string{"test", "--log-level", tc})
				require.NoError(t, err)
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		app := &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "log-level",
					Value: "info",
				},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error { return nil },
		}

		err := app.Run([]string{"test", "--log-level", "invalid"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("log-level flag has alias -l", func(t *testing.T) {
		app := &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "log-level",
					Aliases: []string{"l"},
					Value:   "info",
				},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error {
				assert.Equal(t, "debug", c.String("log-level"))
				return nil
			},
		}

		err := app.Run([]string{"test", "-l", "debug"})
		require.NoError(t, err)
	})
}

func TestMain(m *testing.M) {
	code := m.Run()
	os.Exit(code)
}
