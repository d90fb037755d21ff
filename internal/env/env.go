// Package env loads the process bootstrap settings from the environment.
package env

import "github.com/kelseyhightower/envconfig"

// Env is everything the process needs before the runtime config file takes
// over. Runtime-tunable settings live in internal/config instead.
type Env struct {
	DiscordToken   string `envconfig:"DISCORD_TOKEN" required:"true"`
	ConfigPath     string `envconfig:"CONFIG_PATH" default:"config.txt"`
	CommandPrefix  string `envconfig:"COMMAND_PREFIX" default:"!"`
	RescanSchedule string `envconfig:"RESCAN_SCHEDULE" default:"@every 6h"`
	MetricsAddr    string `envconfig:"METRICS_ADDR" default:""`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads TALLY_-prefixed environment variables.
func Load() (Env, error) {
	var e Env
	err := envconfig.Process("tally", &e)
	return e, err
}
