package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tansive/tmdbauth/internal/tmdbfake"
)

// newFakeServerCmd creates and returns a new fake-server command
func newFakeServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fake-server",
		Short: "Run a local fake TMDB authentication API",
		Long: `Run an in-memory stand-in for the TMDB authentication endpoints, for local
development. Point tmdbauth at it with --server http://localhost:8089/3.

Accounts are given as name:password or name:password:id.

Example:
  tmdbauth fake-server --user alice:secret --user bob:hunter2:77 --api-key dev`,
		RunE: runFakeServer,
	}

	cmd.Flags().String("addr", ":8089", "Listen address")
	cmd.Flags().StringArray("user", nil, "Account as name:password[:id] (repeatable)")
	cmd.Flags().String("api-key", "", "Required API key (default $"+EnvAPIKey+", any key if empty)")
	cmd.Flags().Bool("soft-reject", false, "Answer bad logins with 200 {\"success\":false}")
	cmd.Flags().Duration("token-ttl", tmdbfake.DefaultTokenTTL, "Request token lifetime")
	return cmd
}

// parseAccounts parses name:password[:id] specs. Accounts without an id are numbered
// from 1 in order.
func parseAccounts(specs []string) ([]tmdbfake.Account, error) {
	var accounts []tmdbfake.Account
	for i, spec := range specs {
		parts := strings.SplitN(spec, ":", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid account %q, expected name:password[:id]", spec)
		}
		a := tmdbfake.Account{ID: int64(i + 1), Username: parts[0], Password: parts[1]}
		if len(parts) == 3 {
			id, err := strconv.ParseInt(parts[2], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid account id in %q: %w", spec, err)
			}
			a.ID = id
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

func runFakeServer(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	users, _ := cmd.Flags().GetStringArray("user")
	apiKey, _ := cmd.Flags().GetString("api-key")
	softReject, _ := cmd.Flags().GetBool("soft-reject")
	tokenTTL, _ := cmd.Flags().GetDuration("token-ttl")

	loadDotEnv("")
	if apiKey == "" {
		apiKey = os.Getenv(EnvAPIKey)
	}
	accounts, err := parseAccounts(users)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		log.Warn().Msg("no accounts configured, every login will be rejected")
	}

	fake := tmdbfake.New(tmdbfake.Options{
		APIKey:     apiKey,
		Accounts:   accounts,
		TokenTTL:   tokenTTL,
		SoftReject: softReject,
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           fake.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)

	// Start the service listening for requests.
	go func() {
		log.Info().Str("addr", addr).Int("accounts", len(accounts)).Msg("fake TMDB server started")
		serverErrors <- srv.ListenAndServe()
	}()
	if !jsonOutput {
		okLabel.Printf("Fake TMDB API listening on %s\n", addr)
	}

	// Channel to listen for an interrupt or terminate signal from the OS.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	}

	// Give outstanding requests 5 seconds to complete and initiate the shutdown.
	shutdownCtx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("could not stop server gracefully")
		if err := srv.Close(); err != nil {
			log.Error().Err(err).Msg("could not stop server")
		}
	}

	log.Info().Int("requests", fake.TotalCalls()).Msg("server stopped")
	return nil
}
