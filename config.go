package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	scoringServer = "server"
	scoringClient = "client"
)

type Config struct {
	bind             string
	commandBurst     int
	commandRate      float64
	generateRate     int
	generatorTimeout time.Duration
	generatorURL     string
	maxChars         int
	playerTimeout    time.Duration
	port             int
	prefix           string
	profile          bool
	questionTime     time.Duration
	scoring          string
	sessionTimeout   time.Duration
	tlsCert          string
	tlsKey           string
	verbose          bool
	version          bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.scoring != scoringServer && c.scoring != scoringClient {
		return fmt.Errorf("invalid scoring mode (must be %q or %q): %q", scoringServer, scoringClient, c.scoring)
	}
	if c.questionTime < time.Second {
		return fmt.Errorf("invalid question time (must be at least 1s): %s", c.questionTime)
	}
	if c.playerTimeout < time.Second {
		return fmt.Errorf("invalid player timeout (must be at least 1s): %s", c.playerTimeout)
	}
	if c.maxChars < minQuizText {
		return fmt.Errorf("invalid max chars (must be at least %d): %d", minQuizText, c.maxChars)
	}
	if c.commandRate <= 0 || c.commandBurst < 1 {
		return errors.New("--command-rate must be positive and --command-burst at least 1")
	}
	if c.generateRate < 1 {
		return fmt.Errorf("invalid generate rate (must be at least 1 per minute): %d", c.generateRate)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// questionSeconds is the per-question time limit in whole seconds.
func (c *Config) questionSeconds() int {
	return int(c.questionTime / time.Second)
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("QUIZBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "quizbox",
		Short:         "A real-time multiplayer quiz room server.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: QUIZBOX_BIND)")
	fs.IntVar(&cfg.commandBurst, "command-burst", 10, "websocket commands a client may send in a burst (env: QUIZBOX_COMMAND_BURST)")
	fs.Float64Var(&cfg.commandRate, "command-rate", 5, "sustained websocket commands per second per client (env: QUIZBOX_COMMAND_RATE)")
	fs.IntVar(&cfg.generateRate, "generate-rate", 30, "quiz generation requests allowed per minute (env: QUIZBOX_GENERATE_RATE)")
	fs.DurationVar(&cfg.generatorTimeout, "generator-timeout", 30*time.Second, "timeout for a single quiz generation call (env: QUIZBOX_GENERATOR_TIMEOUT)")
	fs.StringVar(&cfg.generatorURL, "generator-url", "http://localhost:5001/generate_quiz", "url of the quiz generation service (env: QUIZBOX_GENERATOR_URL)")
	fs.IntVar(&cfg.maxChars, "max-chars", 2000, "maximum characters of source text sent for generation (env: QUIZBOX_MAX_CHARS)")
	fs.DurationVar(&cfg.playerTimeout, "player-timeout", 2*time.Minute, "time before silent connections are dropped (env: QUIZBOX_PLAYER_TIMEOUT)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: QUIZBOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: QUIZBOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: QUIZBOX_PROFILE)")
	fs.DurationVar(&cfg.questionTime, "question-time", 30*time.Second, "time limit for each question (env: QUIZBOX_QUESTION_TIME)")
	fs.StringVar(&cfg.scoring, "scoring", scoringServer, "who computes points: server or client (env: QUIZBOX_SCORING)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle rooms are closed, 0 to disable (env: QUIZBOX_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: QUIZBOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: QUIZBOX_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: QUIZBOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: QUIZBOX_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("quizbox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
