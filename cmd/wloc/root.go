package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wlocate/wlocate/internal/wloc"
	"github.com/wlocate/wlocate/internal/wloc/apple"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	Endpoint     string
	IdentityPath string
	Timeout      time.Duration
	Verbose      bool
}

// app carries state built by the root command for its subcommands.
type app struct {
	flags  globalFlags
	logger zerolog.Logger

	// newLocator is replaced in tests.
	newLocator func() (locator, error)
}

func newApp() *app {
	a := &app{logger: zerolog.Nop()}
	a.newLocator = a.serviceLocator
	return a
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "wloc",
		Short:         "Resolve Wi-Fi BSSIDs to coordinates",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := zerolog.WarnLevel
			if a.flags.Verbose {
				level = zerolog.DebugLevel
			}
			a.logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}).
				Level(level).
				With().
				Timestamp().
				Logger()
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.flags.Endpoint, "endpoint", getEnvOrDefault("WLOC_ENDPOINT", apple.DefaultEndpoint), "lookup endpoint URL")
	rootCmd.PersistentFlags().StringVar(&a.flags.IdentityPath, "identity", "", "TOML file overriding the client identity")
	rootCmd.PersistentFlags().DurationVar(&a.flags.Timeout, "timeout", 10*time.Second, "request timeout")
	rootCmd.PersistentFlags().BoolVarP(&a.flags.Verbose, "verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(newLocateCmd(a))
	rootCmd.AddCommand(newLookupCmd(a))
	rootCmd.AddCommand(newTokenCmd())

	return rootCmd
}

func (a *app) serviceLocator() (locator, error) {
	identity := apple.IdentityFromEnv()
	if a.flags.IdentityPath != "" {
		var err error
		identity, err = loadIdentity(a.flags.IdentityPath, identity)
		if err != nil {
			return nil, err
		}
	}

	a.logger.Debug().
		Str("endpoint", a.flags.Endpoint).
		Str("locale", identity.Locale).
		Str("identifier", identity.Identifier).
		Str("version", identity.Version).
		Msg("using lookup endpoint")

	client := apple.NewClient(apple.ClientConfig{
		Endpoint:  a.flags.Endpoint,
		UserAgent: identity.UserAgent,
		Timeout:   a.flags.Timeout,
	})

	return wloc.NewService(wloc.ServiceConfig{
		Transport: client,
		Identity:  identity,
		Logger:    a.logger,
	}), nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
