package cli

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"smallsh/internal/config"
	"smallsh/internal/shell"
)

type rootOptions struct {
	configFile string
	debugLog   string
}

// NewRootCommand builds the smallsh command line on top of fs.
func NewRootCommand(version string, fs afero.Fs) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "smallsh",
		Short: "smallsh is a small interactive shell.",
		Long: `smallsh runs commands with optional < and > redirection, a trailing &
for background execution, and the built-ins cd, status and exit.
Ctrl-Z toggles foreground-only mode.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(fs, opts)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "configuration file (default $HOME/"+config.FileName+")")
	rootCmd.Flags().StringVar(&opts.debugLog, "debug-log", "", "append diagnostic logs to this file")

	rootCmd.AddCommand(NewConfigCommand(fs, opts))

	return rootCmd
}

func loadConfig(fs afero.Fs, opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(fs, opts.configFile)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	if opts.debugLog != "" {
		cfg.DebugLog = opts.debugLog
	}
	return cfg, nil
}

func openLogger(fs afero.Fs, cfg *config.Config) (*log.Logger, io.Closer, error) {
	if cfg.DebugLog == "" {
		return log.New(io.Discard, "", 0), io.NopCloser(nil), nil
	}
	f, err := fs.OpenFile(cfg.DebugLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening debug log: %w", err)
	}
	return log.New(f, fmt.Sprintf("%s[%d] ", cfg.ShellName, os.Getpid()), log.LstdFlags|log.Lmicroseconds), f, nil
}

func runShell(fs afero.Fs, opts *rootOptions) error {
	cfg, err := loadConfig(fs, opts)
	if err != nil {
		return err
	}

	logger, closer, err := openLogger(fs, cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	s, err := shell.New(cfg, shell.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("error initializing shell: %w", err)
	}

	logger.Printf("started, config %+v", *cfg)
	return s.Run()
}
