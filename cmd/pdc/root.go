package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rendis/pdc/internal/logging"
)

// rootOptions are the persistent flags and the configuration they resolve to.
type rootOptions struct {
	settings  string
	envFiles  []string
	logLevel  string
	logFormat string
	llmMode   string

	cfg Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "pdc",
		Short: "Product diagram copilot",
		Long: `pdc turns free-form product descriptions into validated diagram specs,
Mermaid markup, draw.io documents and integration plans.

Configuration is layered: defaults, ~/.pdc/settings.yaml, .env files,
environment variables (PDC_*, LLM_MODE, OPENAI_COMPAT_*, OLLAMA_*, MINIO_*,
DATABASE_URL, ...) and finally flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return opts.resolve()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.settings, "config", settingsPath(), "settings file")
	pf.StringSliceVar(&opts.envFiles, "env-file", defaultEnvFiles, ".env files to read (missing files are skipped)")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&opts.logFormat, "log-format", "", "log format: text or json")
	pf.StringVar(&opts.llmMode, "llm-mode", "", "text-generation backend: mock, openai_compat, ollama, gemini")

	root.AddCommand(
		newServeCmd(opts),
		newMCPCmd(opts),
		newGenerateCmd(opts),
		newRenderCmd(opts),
		newValidateDrawioCmd(),
		newMigrateCmd(opts),
		newInstallCmd(opts),
		newVersionCmd(),
	)
	return root
}

// resolve loads the configuration and applies flag overrides.
func (o *rootOptions) resolve() error {
	cfg, err := loadConfig(o.settings, o.envFiles)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}
	if o.llmMode != "" {
		cfg.LLM.Mode = strings.TrimSpace(o.llmMode)
	}
	o.cfg = cfg
	return nil
}

// logger writes to stderr so stdout stays free for command output and the
// MCP stdio transport.
func (o *rootOptions) logger(cmd *cobra.Command) *slog.Logger {
	var w io.Writer = cmd.ErrOrStderr()
	return logging.New(w, o.cfg.LogLevel, o.cfg.LogFormat)
}
