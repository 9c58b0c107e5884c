// Command certctl is the wallet-side client: it connects to a credential
// provider, logs in against the authorization registry and issues, looks up
// or retrieves certificates.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/99minutos/certificate-system/internal/core/domain"
	"github.com/99minutos/certificate-system/internal/pkg/config"
	"github.com/99minutos/certificate-system/pkg/logger"
)

type command struct {
	summary string
	run     func(ctx context.Context, env *env, args []string) error
}

var commands = map[string]command{
	"connect":       {"connect the wallet and switch it to the deployment network", runConnect},
	"login":         {"log in with the connected account", runLogin},
	"logout":        {"forget the cached session", runLogout},
	"whoami":        {"show the cached session", runWhoami},
	"issue":         {"issue a certificate (teacher role)", runIssue},
	"lookup":        {"show the record linked to a certificate id", runLookup},
	"retrieve":      {"download a certificate image by reference or id", runRetrieve},
	"register-user": {"register an account in the authorization registry", runRegisterUser},
	"admin-token":   {"mint a bearer token for the HTTP admin routes", runAdminToken},
}

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdout, os.Stderr))
}

func realMain(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		usage(stderr)
		return 2
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "certctl: unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}

	cfg, err := config.LoadContext(context.Background())
	if err != nil {
		fmt.Fprintf(stderr, "certctl: %v\n", err)
		return 1
	}
	opts := logger.OptionsFor("certctl", cfg.Env, cfg.LogLevel)
	opts.Output = stderr
	logger.Init(opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := newEnv(cfg, stdout)
	defer e.close()

	if err := cmd.run(ctx, e, args[1:]); err != nil {
		fmt.Fprintf(stderr, "certctl %s: %s\n", args[0], describe(err))
		log := logger.Get()
		log.Debug().Err(err).Str("stage", string(domain.StageOf(err))).Msg("command failed")
		return 1
	}
	return 0
}

// describe turns a workflow error into the message shown to the operator.
func describe(err error) string {
	var usageErr usageError
	if errors.As(err, &usageErr) {
		return usageErr.Error()
	}
	msg := domain.UserMessage(err)
	if stage := domain.StageOf(err); stage != "" {
		return fmt.Sprintf("%s (%s)", msg, stage)
	}
	if msg == domain.GenericMessage {
		return fmt.Sprintf("%s: %v", msg, err)
	}
	return msg
}

type usageError string

func (e usageError) Error() string { return string(e) }

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: certctl <command> [flags]")
	fmt.Fprintln(w)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-14s %s\n", name, commands[name].summary)
	}
}
