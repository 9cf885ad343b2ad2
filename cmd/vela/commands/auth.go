package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/vela-proxy/internal/app"
)

// authCommand returns the 'auth' subcommand for managing the upstream session cookie.
func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the upstream session cookie",
		Commands: []*cli.Command{
			authSetCommand(),
			authClearCommand(),
		},
	}
}

// authSetCommand returns the 'auth set' subcommand.
func authSetCommand() *cli.Command {
	return &cli.Command{
		Name:   "set",
		Usage:  "Save the upstream session cookie (read from the terminal or stdin)",
		Action: authSetAction,
	}
}

// authClearCommand returns the 'auth clear' subcommand.
func authClearCommand() *cli.Command {
	return &cli.Command{
		Name:   "clear",
		Usage:  "Remove the saved upstream session cookie",
		Action: authClearAction,
	}
}

// authSetAction stores the cookie in the configured store.
func authSetAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Auth.Storage == app.CookieStorageTypeEnv {
		return fmt.Errorf("cannot save cookie with env storage (read-only). Configure file or keyring storage")
	}

	store, err := cfg.Auth.NewCookieStore()
	if err != nil {
		return fmt.Errorf("failed to create cookie store: %w", err)
	}

	cookie, err := readCookie(ctx, os.Stdin)
	if err != nil {
		return err
	}
	if cookie == "" {
		return errors.New("cookie cannot be empty")
	}

	if err := store.Write(ctx, cookie); err != nil {
		return fmt.Errorf("failed to write cookie: %w", err)
	}

	fmt.Println()
	fmt.Println("=== Cookie Saved ===")
	fmt.Printf("Upstream requests to %s will use the saved cookie\n", cfg.Upstream.URL)

	return nil
}

// authClearAction clears the cookie from the configured store.
func authClearAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Auth.Storage == app.CookieStorageTypeEnv {
		return fmt.Errorf("cannot clear cookie with env storage (read-only). Unset %s instead", cfg.Auth.EnvVar)
	}

	store, err := cfg.Auth.NewCookieStore()
	if err != nil {
		return fmt.Errorf("failed to create cookie store: %w", err)
	}

	// Clear via empty string write to maintain storage abstraction
	if err := store.Write(ctx, ""); err != nil {
		return fmt.Errorf("failed to clear cookie: %w", err)
	}

	fmt.Println()
	fmt.Println("=== Cookie Cleared ===")

	return nil
}

// readCookie reads the cookie hidden from a terminal, or as the first line of piped input.
func readCookie(ctx context.Context, in *os.File) (string, error) {
	if term.IsTerminal(int(in.Fd())) {
		return readSecureInput(ctx, in, "Paste the upstream Cookie header value: ")
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read cookie from stdin: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// readSecureInput reads user input with hidden display and context cancellation support.
// Goroutine+select pattern required because term.ReadPassword has no native context support.
func readSecureInput(ctx context.Context, in *os.File, prompt string) (string, error) {
	fmt.Print(prompt)
	defer fmt.Println()

	type result struct {
		value string
		err   error
	}
	resultCh := make(chan result, 1)

	go func() {
		inputBytes, err := term.ReadPassword(int(in.Fd()))
		resultCh <- result{value: string(inputBytes), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-resultCh:
		if res.err != nil {
			return "", fmt.Errorf("failed to read input: %w", res.err)
		}
		return strings.TrimSpace(res.value), nil
	}
}
