// Command krossplay plays today's KrossWordle puzzle in the terminal against a server.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"krosswordle/internal/client"
	"krosswordle/internal/puzzle"
)

type options struct {
	server   string
	email    string
	password string
	token    string
	timezone string
	verbose  bool
}

func main() {
	// KROSSWORDLE_* defaults may come from a .env file
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "krossplay: .env:", err)
	}
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "krossplay:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "krossplay",
		Short:         "Play today's KrossWordle puzzle",
		Long:          "Signs in to a KrossWordle server and plays the daily crossword with line commands. Type help once connected.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.server, "server", envOr("KROSSWORDLE_SERVER", "http://localhost:8080"), "server base URL")
	cmd.Flags().StringVar(&opts.email, "email", os.Getenv("KROSSWORDLE_EMAIL"), "account email")
	cmd.Flags().StringVar(&opts.password, "password", os.Getenv("KROSSWORDLE_PASSWORD"), "account password")
	cmd.Flags().StringVar(&opts.token, "token", os.Getenv("KROSSWORDLE_TOKEN"), "bearer token instead of email and password")
	cmd.Flags().StringVar(&opts.timezone, "timezone", "Europe/Istanbul", "puzzle time zone")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log remote calls")
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(cmd *cobra.Command, opts options) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := time.LoadLocation(opts.timezone)
	if err != nil {
		return fmt.Errorf("unknown time zone %q: %w", opts.timezone, err)
	}

	token := opts.token
	if token == "" {
		if opts.email == "" || opts.password == "" {
			return errors.New("either --token or both --email and --password are required")
		}
		token, _, err = client.FetchToken(ctx, client.Config{BaseURL: opts.server}, opts.email, opts.password)
		if err != nil {
			return fmt.Errorf("sign in failed: %w", err)
		}
	}

	level := zerolog.WarnLevel
	if opts.verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	remote := client.NewRemote(client.Config{BaseURL: opts.server, Token: token})
	g := puzzle.NewGame(remote, puzzle.Options{Location: loc, Logger: &logger})
	if err := g.Load(ctx); err != nil {
		return err
	}
	g.Run()

	p := newPlayer(g, cmd.OutOrStdout())
	defer p.shutdown()
	p.render()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		p.prompt()
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if p.handle(ctx, line) {
				return nil
			}
		}
	}
}
