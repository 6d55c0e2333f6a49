// Command authd-bootstrap ensures a privileged account exists. It is safe to
// run repeatedly and from several instances at once.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/itchan-dev/authd/backend/internal/service"
	"github.com/itchan-dev/authd/backend/internal/storage/pg"
	"github.com/itchan-dev/authd/shared/config"
	"github.com/itchan-dev/authd/shared/logger"
	sharedpg "github.com/itchan-dev/authd/shared/storage/pg"
)

const (
	defaultEmail    = "admin@example.com"
	defaultPassword = "admin"
	passwordEnv     = "AUTHD_BOOTSTRAP_PASSWORD"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

func main() {
	var configFolder, email, password string
	flag.StringVar(&configFolder, "config_folder", "backend/config", "path to folder with configs")
	flag.StringVar(&email, "email", "", "email of the privileged account (default "+defaultEmail+")")
	flag.StringVar(&password, "password", "", "password; falls back to $"+passwordEnv+", then a prompt")
	flag.Parse()

	cfg := config.MustLoad(configFolder)
	logger.Initialize(cfg.Public.LogLevel, cfg.Public.LogJSON)

	email, password, err := resolveCredentials(email, password, os.Getenv, os.Stderr)
	if err != nil {
		logger.Log.Error("failed to read credentials", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	created, err := run(ctx, cfg, email, password)
	if err != nil {
		logger.Log.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	if created {
		fmt.Printf("Privileged account %s created\n", email)
	} else {
		fmt.Printf("Account %s already exists, left unchanged\n", email)
	}
}

func run(ctx context.Context, cfg *config.Config, email, password string) (bool, error) {
	storage, err := pg.New(ctx, cfg.Private.Pg, sharedpg.LightweightConnectionConfig())
	if err != nil {
		return false, err
	}
	defer storage.Cleanup()

	credentials, err := service.NewCredentials(storage, cfg.Public.BcryptCost)
	if err != nil {
		return false, err
	}
	return service.NewProvisioner(credentials).EnsurePrivilegedAccount(ctx, email, password)
}

// resolveCredentials fills in whatever the flags left empty. The password
// comes from the environment, then an interactive prompt, then the default.
func resolveCredentials(email, password string, getenv func(string) string, w io.Writer) (string, string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		logger.Log.Warn("no email given, using default", "email", defaultEmail)
		email = defaultEmail
	}

	if password == "" {
		password = getenv(passwordEnv)
	}
	if password == "" && isTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintf(w, "Password for %s (empty for default): ", email)
		pw, err := readPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(w)
		if err != nil {
			return "", "", err
		}
		password = string(pw)
	}
	if password == "" {
		logger.Log.Warn("no password given, using the insecure default; change it after first login")
		password = defaultPassword
	}
	return email, password, nil
}
