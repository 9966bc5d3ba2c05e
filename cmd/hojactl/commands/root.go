// Package commands implements the hojactl command tree.
package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fedtaxi/hojaruta/internal/apiclient"
	"github.com/fedtaxi/hojaruta/internal/config"
	"github.com/fedtaxi/hojaruta/pkg/logger"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Env holds what commands need from the outside world.
type Env struct {
	LoadConfig func() (*config.Config, error)
	NewClient  func(ctx context.Context, cfg *config.Config) (*apiclient.Client, error)
	In         io.Reader
	Out        io.Writer
}

// Defaults reads configuration from the environment and talks to the configured API.
func Defaults() Env {
	return Env{
		LoadConfig: config.LoadConfig,
		NewClient:  apiclient.NewFromConfig,
		In:         os.Stdin,
		Out:        os.Stdout,
	}
}

type globals struct {
	baseURL  string
	variant  string
	backend  string
	device   string
	logLevel string

	stdin *bufio.Reader
}

// NewRootCommand builds hojactl.
func NewRootCommand(env Env) *cobra.Command {
	g := &globals{}
	cmd := &cobra.Command{
		Use:           "hojactl",
		Short:         "Route-sheet API client",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.SetIn(env.In)
	cmd.SetOut(env.Out)

	f := cmd.PersistentFlags()
	f.StringVar(&g.baseURL, "base-url", "", "API base URL (CLIENT_BASE_URL)")
	f.StringVar(&g.variant, "variant", "", "credential variant: web or mobile (CLIENT_VARIANT)")
	f.StringVar(&g.backend, "token-backend", "", "credential storage: memory, redis or mongo (CLIENT_TOKEN_BACKEND)")
	f.StringVar(&g.device, "device", "", "device id the credentials are stored under (CLIENT_DEVICE_ID)")
	f.StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error (LOG_LEVEL)")

	cmd.AddCommand(
		newLoginCommand(env, g),
		newRegisterCommand(env, g),
		newWhoamiCommand(env, g),
		newRefreshCommand(env, g),
		newLogoutCommand(env, g),
		newPasswdCommand(env, g),
		newSheetsCommand(env, g),
	)
	return cmd
}

// client loads config, applies flag overrides and builds an API client.
// restore rebuilds the stored session first.
func (g *globals) client(cmd *cobra.Command, env Env, restore bool) (*apiclient.Client, error) {
	cfg, err := env.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %v", err)
	}
	if g.baseURL != "" {
		cfg.Client.BaseURL = strings.TrimRight(g.baseURL, "/")
	}
	if g.variant != "" {
		cfg.Client.Variant = strings.ToLower(g.variant)
	}
	if g.backend != "" {
		cfg.Client.TokenBackend = strings.ToLower(g.backend)
	}
	if g.device != "" {
		cfg.Client.DeviceID = g.device
	}
	if g.logLevel != "" {
		cfg.Client.LogLevel = g.logLevel
	}
	logger.Init(cfg.Client.LogLevel)
	switch {
	case cfg.Client.Variant == config.VariantWeb:
		logger.Warn("web variant keeps the refresh cookie in memory; the session will not outlive this command")
	case cfg.Client.TokenBackend == "memory":
		logger.Warn("token backend is memory; the session will not outlive this command")
	}

	c, err := env.NewClient(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	if restore {
		if err := c.Session().Restore(cmd.Context()); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("restore session: %w", err)
		}
	}
	return c, nil
}

// readSecret prompts on a terminal without echo, otherwise reads one line.
func (g *globals) readSecret(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		return string(b), err
	}
	if g.stdin == nil {
		g.stdin = bufio.NewReader(cmd.InOrStdin())
	}
	line, err := g.stdin.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func requireLogin(c *apiclient.Client) error {
	if !c.Session().State().Authenticated {
		return fmt.Errorf("not logged in; run hojactl login")
	}
	return nil
}
