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

type Config struct {
	bind           string
	port           int
	prefix         string
	profile        bool
	sessionTimeout time.Duration
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool

	// Bird-fly match tunables
	totalRounds     int
	roundDuration   time.Duration
	countdownStep   time.Duration
	startGrace      time.Duration
	roundPause      time.Duration
	disconnectGrace time.Duration
	maxPlayers      int
	minPlayers      int
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.totalRounds < 1 {
		return fmt.Errorf("invalid round count: %d", c.totalRounds)
	}
	if c.roundDuration <= 0 {
		return fmt.Errorf("invalid round duration: %s", c.roundDuration)
	}
	if c.minPlayers < 2 {
		return fmt.Errorf("invalid minimum player count (must be at least 2): %d", c.minPlayers)
	}
	if c.maxPlayers < c.minPlayers || c.maxPlayers > maxRoomSize {
		return fmt.Errorf("invalid maximum player count (must be between %d-%d inclusive): %d",
			c.minPlayers, maxRoomSize, c.maxPlayers)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("CHIDIYA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "chidiya",
		Short:         "Chidiya Udd, the bird-fly reaction game, as a self-hosted webapp.",
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

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: CHIDIYA_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: CHIDIYA_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: CHIDIYA_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: CHIDIYA_PROFILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle game rooms are ended (env: CHIDIYA_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: CHIDIYA_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: CHIDIYA_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: CHIDIYA_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: CHIDIYA_VERSION)")

	fs.IntVar(&cfg.totalRounds, "rounds", 15, "rounds per match (env: CHIDIYA_ROUNDS)")
	fs.DurationVar(&cfg.roundDuration, "round-duration", time.Second, "response window per round (env: CHIDIYA_ROUND_DURATION)")
	fs.DurationVar(&cfg.countdownStep, "countdown-step", time.Second, "duration of each 3-2-1-GO countdown step (env: CHIDIYA_COUNTDOWN_STEP)")
	fs.DurationVar(&cfg.startGrace, "start-grace", 500*time.Millisecond, "settle window after GO before round 1, letting touch status propagate (env: CHIDIYA_START_GRACE)")
	fs.DurationVar(&cfg.roundPause, "round-pause", 2*time.Second, "pause between rounds for result feedback (env: CHIDIYA_ROUND_PAUSE)")
	fs.DurationVar(&cfg.disconnectGrace, "disconnect-grace", 5*time.Second, "time a disconnected player may rejoin before removal (env: CHIDIYA_DISCONNECT_GRACE)")
	fs.IntVar(&cfg.maxPlayers, "max-players", maxRoomSize, "maximum players per room (env: CHIDIYA_MAX_PLAYERS)")
	fs.IntVar(&cfg.minPlayers, "min-players", 2, "minimum players required to start a match (env: CHIDIYA_MIN_PLAYERS)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("chidiya v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
