package main

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"mixcard/internal/cardapi"
	"mixcard/internal/providers"
	"mixcard/internal/shared"
	"mixcard/internal/tokenstore"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	provider   providers.Provider
	store      *tokenstore.Store
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Provider   providers.Provider
	Store      *tokenstore.Store
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Store == nil {
		cfg := opts.Config.Destination
		opts.Store = tokenstore.New(opts.Config.DefaultTokenPath(), cfg.ClientID, cfg.AuthURL, cfg.APIURL, opts.Logger)
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		provider:   opts.Provider,
		store:      opts.Store,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, runCommand, serveCommand, cardsCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger swaps the runner's logger, used when the TUI redirects log output.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// resolveProvider returns the configured audio source, honoring a --provider
// override.
func (r *Runner) resolveProvider(kind string) (providers.Provider, error) {
	if kind != "" {
		cfg := *r.config
		cfg.Provider.Kind = kind
		return providers.FromConfig(&cfg)
	}
	if r.provider != nil {
		return r.provider, nil
	}

	provider, err := providers.FromConfig(r.config)
	if err != nil {
		return nil, err
	}
	r.provider = provider
	return provider, nil
}

// cardsClient builds the destination API client backed by the token store.
func (r *Runner) cardsClient() *cardapi.Client {
	return cardapi.NewClient(r.config.Destination.APIURL, r.store, r.httpClient)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
