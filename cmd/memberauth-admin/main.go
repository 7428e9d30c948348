// Command memberauth-admin is an operator CLI for the directory and
// session services: connectivity checks, member lookups, credential and
// password operations, and session token management.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"memberauth/internal/bootstrap"
	"memberauth/session"
)

type commandFn func(cmdCtx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config bootstrap.AppConfig
}

const defaultCommandTimeout = 30 * time.Second

// stdin is shared so consecutive prompts do not lose buffered lines.
var stdin = bufio.NewReader(os.Stdin)

func main() {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		bootstrap.InitLogger("info").Error("load config", "error", err)
		os.Exit(1)
	}
	logger := bootstrap.InitLogger(cfg.LogLevel)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmdName)
		printUsage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmdCtx := &commandContext{
		Ctx:    ctx,
		Logger: logger,
		Config: cfg,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.Error("command failed", "command", cmdName, "error", runErr)
		os.Exit(1)
	}
}

func commands() map[string]command {
	return map[string]command{
		"ping": {
			name:        "ping",
			description: "Check directory connectivity with a service-account bind",
			run:         runPing,
		},
		"validate": {
			name:        "validate",
			description: "Validate a member's credentials by binding as that member",
			run:         runValidate,
		},
		"member": {
			name:        "member",
			description: "Look up a member entry and print it as JSON",
			run:         runMember,
		},
		"passwd": {
			name:        "passwd",
			description: "Change a member's password after verifying the old one",
			run:         runPasswd,
		},
		"token-new": {
			name:        "token-new",
			description: "Issue a session token for a member",
			run:         runTokenNew,
		},
		"token-check": {
			name:        "token-check",
			description: "Verify a session token and print its subject",
			run:         runTokenCheck,
		},
		"token-revoke": {
			name:        "token-revoke",
			description: "Revoke a session token (requires Redis)",
			run:         runTokenRevoke,
		},
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: memberauth-admin <command> [flags]\n\n")
	fmt.Fprintf(os.Stderr, "Available commands:\n")
	for _, c := range commands() {
		fmt.Fprintf(os.Stderr, "  %-14s %s\n", c.name, c.description)
	}
}

func runPing(cmdCtx *commandContext, _ []string) error {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	authn, err := bootstrap.NewAuthenticator(&cmdCtx.Config, cmdCtx.Logger)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := authn.Ping(ctx); err != nil {
		return fmt.Errorf("directory ping failed: %w", err)
	}

	fmt.Printf("ok: %s reachable in %s\n", cmdCtx.Config.LDAP.URL, time.Since(start).Round(time.Millisecond))
	return nil
}

func runValidate(cmdCtx *commandContext, args []string) error {
	username, err := parseUsernameFlag("validate", args)
	if err != nil {
		return err
	}

	password, err := promptSecret("Password: ")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	authn, err := bootstrap.NewAuthenticator(&cmdCtx.Config, cmdCtx.Logger)
	if err != nil {
		return err
	}

	res := authn.ValidateUser(ctx, username, password)
	if res.Error {
		return fmt.Errorf("validation failed: %s", res.Message)
	}

	fmt.Println("ok: credentials accepted")
	return nil
}

func runMember(cmdCtx *commandContext, args []string) error {
	username, err := parseUsernameFlag("member", args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	authn, err := bootstrap.NewAuthenticator(&cmdCtx.Config, cmdCtx.Logger)
	if err != nil {
		return err
	}

	info, err := authn.GetMemberInfo(ctx, username)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("encode member info: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func runPasswd(cmdCtx *commandContext, args []string) error {
	username, err := parseUsernameFlag("passwd", args)
	if err != nil {
		return err
	}

	oldPassword, err := promptSecret("Old password: ")
	if err != nil {
		return err
	}
	newPassword, err := promptSecret("New password: ")
	if err != nil {
		return err
	}
	confirm, err := promptSecret("Repeat new password: ")
	if err != nil {
		return err
	}
	if newPassword != confirm {
		return errors.New("new passwords do not match")
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	authn, err := bootstrap.NewAuthenticator(&cmdCtx.Config, cmdCtx.Logger)
	if err != nil {
		return err
	}

	res := authn.ChangePassword(ctx, username, oldPassword, newPassword)
	if res.Error {
		return fmt.Errorf("password change failed: %s", res.Message)
	}

	fmt.Println("ok: password changed")
	return nil
}

func runTokenNew(cmdCtx *commandContext, args []string) error {
	username, err := parseUsernameFlag("token-new", args)
	if err != nil {
		return err
	}

	svc, client, err := newSessionService(cmdCtx)
	if err != nil {
		return err
	}
	defer closeRedis(cmdCtx.Logger, client)

	token, err := svc.CreateSession(username)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}

func runTokenCheck(cmdCtx *commandContext, args []string) error {
	token, err := readTokenArg("token-check", args)
	if err != nil {
		return err
	}

	svc, client, err := newSessionService(cmdCtx)
	if err != nil {
		return err
	}
	defer closeRedis(cmdCtx.Logger, client)

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	subject := svc.VerifySession(ctx, token)
	if subject == "" {
		return errors.New("token rejected")
	}

	fmt.Printf("ok: token issued to %s\n", subject)
	return nil
}

func runTokenRevoke(cmdCtx *commandContext, args []string) error {
	token, err := readTokenArg("token-revoke", args)
	if err != nil {
		return err
	}

	svc, client, err := newSessionService(cmdCtx)
	if err != nil {
		return err
	}
	defer closeRedis(cmdCtx.Logger, client)

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	if err := svc.RevokeSession(ctx, token); err != nil {
		if errors.Is(err, session.ErrNoDenylist) {
			return errors.New("revocation requires REDIS_ADDR to be configured")
		}
		return err
	}

	fmt.Println("ok: token revoked")
	return nil
}

func newSessionService(cmdCtx *commandContext) (*session.Service, redisCloser, error) {
	svc, client, err := bootstrap.NewSessionService(&cmdCtx.Config, cmdCtx.Logger)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return svc, nil, nil
	}
	return svc, client, nil
}

type redisCloser interface {
	Close() error
}

func closeRedis(logger *slog.Logger, client redisCloser) {
	if client == nil {
		return
	}
	if err := client.Close(); err != nil {
		logger.Warn("redis close failed", "error", err)
	}
}

func parseUsernameFlag(name string, args []string) (string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var username string
	fs.StringVar(&username, "username", "", "Member login name (required)")

	if err := fs.Parse(args); err != nil {
		return "", err
	}

	username = strings.TrimSpace(username)
	if username == "" {
		return "", errors.New("--username is required")
	}
	return username, nil
}

// readTokenArg takes the token from --token or, when absent, from stdin so
// tokens can be piped without landing in shell history.
func readTokenArg(name string, args []string) (string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var token string
	fs.StringVar(&token, "token", "", "Session token (read from stdin when omitted)")

	if err := fs.Parse(args); err != nil {
		return "", err
	}

	token = strings.TrimSpace(token)
	if token != "" {
		return token, nil
	}

	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", errors.New("no token provided")
	}
	token = strings.TrimSpace(line)
	if token == "" {
		return "", errors.New("no token provided")
	}
	return token, nil
}

// promptSecret reads a line from stdin with the prompt on stderr. The
// value is never logged or echoed back.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", errors.New("failed to read input")
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return "", errors.New("empty input")
	}
	return secret, nil
}
