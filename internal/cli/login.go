package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tansive/tmdbauth/internal/auth"
	"github.com/tansive/tmdbauth/internal/common/httpclient"
	"github.com/tansive/tmdbauth/internal/credstore"
	"github.com/tansive/tmdbauth/internal/eventbus"
	"golang.org/x/term"
)

// loginResponse is printed with -j.
type loginResponse struct {
	Status    string `json:"status"`
	UserID    int64  `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Stage     string `json:"stage,omitempty"`
	Message   string `json:"message,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// newLoginCmd creates and returns a new login command
func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to TMDB and print the account id and session id",
		Long: `Log in to TMDB with the request token handshake:
request a token, validate it with your username and password, create a session
and resolve the account id.

Missing values are prompted for; the password is read without echo.
Press Ctrl-C to abandon the login.

Example:
  tmdbauth login --username alice
  tmdbauth login -j --username alice --password secret`,
		RunE: runLogin,
	}

	cmd.Flags().String("username", "", "TMDB username (default from config)")
	cmd.Flags().String("password", "", "TMDB password (prompted for when omitted)")
	return cmd
}

// runLogin handles the login command execution
func runLogin(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if cfg == nil {
		return fmt.Errorf("no configuration loaded")
	}

	creds, err := readCredentials(cmd, cfg)
	if err != nil {
		return err
	}

	client := httpclient.NewClient(cfg, httpclient.ClientOptions{Timeout: cfg.GetTimeout()})
	store := credstore.NewMemory()

	bus := eventbus.New()
	defer bus.Shutdown()
	events, unsubscribe := bus.Subscribe("login.*", 16)
	printed := make(chan struct{})
	if jsonOutput {
		unsubscribe()
		close(printed)
	} else {
		go printLoginEvents(cmd.OutOrStdout(), events, printed)
	}

	executor := auth.NewSerialExecutor(16)
	pipeline := auth.New(client, store,
		auth.WithPresenter(auth.NewBusPresenter(bus, time.Second)),
		auth.WithExecutor(executor),
		auth.WithValidateMethod(cfg.GetValidateMethod()),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome, err := startAndWait(ctx, pipeline, creds)
	executor.Close()
	unsubscribe()
	<-printed
	if err != nil {
		return err
	}

	return reportOutcome(outcome)
}

// startAndWait runs one attempt. When ctx ends first the attempt is abandoned and its
// outcome still collected.
func startAndWait(ctx context.Context, p *auth.Pipeline, creds auth.Credentials) (auth.Outcome, error) {
	out, err := p.Start(ctx, creds)
	if err != nil {
		return auth.Outcome{}, err
	}
	select {
	case o := <-out:
		return o, nil
	case <-ctx.Done():
		p.Abandon()
		return <-out, nil
	}
}

func reportOutcome(o auth.Outcome) error {
	if o.Err == nil {
		if jsonOutput {
			printJSON(loginResponse{
				Status:    "success",
				UserID:    o.Result.User.ID,
				SessionID: o.Result.Session.ID,
			})
		}
		return nil
	}

	if errors.Is(o.Err, auth.ErrAbandoned) {
		if jsonOutput {
			printJSON(loginResponse{Status: "abandoned"})
		} else {
			fmt.Println("Login abandoned")
		}
		return ErrAlreadyHandled
	}

	var f *auth.Failure
	if !errors.As(o.Err, &f) {
		return o.Err
	}
	log.Debug().Str("stage", string(f.Stage)).Str("reason", f.Reason).Msg("login failed")
	if jsonOutput {
		printJSON(loginResponse{
			Status:  "failed",
			Stage:   string(f.Stage),
			Message: f.Message,
			Reason:  f.Reason,
		})
	}
	return ErrAlreadyHandled
}

var stdin = bufio.NewReader(os.Stdin)

func readCredentials(cmd *cobra.Command, cfg *Config) (auth.Credentials, error) {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")

	if username == "" {
		username = cfg.Username
	}
	if username == "" {
		u, err := promptLine("Username: ")
		if err != nil {
			return auth.Credentials{}, err
		}
		username = u
	}
	if !cmd.Flags().Changed("password") {
		p, err := promptPassword("Password: ")
		if err != nil {
			return auth.Credentials{}, err
		}
		password = p
	}
	return auth.Credentials{Username: username, Password: password}, nil
}

func promptLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := stdin.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("unable to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// promptPassword reads without echo from a terminal, or a plain line otherwise.
func promptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptLine(prompt)
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("unable to read password: %w", err)
	}
	return string(b), nil
}
