package config

const (
	defaultContext         = "default"
	defaultSince           = "1h"
	defaultHistoryPath     = "~/.local/share/sternmux/history.db"
	defaultLogFormat       = "text"
	defaultLogLevel        = "info"
	defaultTerminateGraceS = 5
)

// Default returns a Config populated with repository defaults. The gather
// defaults mirror the documented option table: fix-up and trailing space on,
// everything else off, one hour of history.
func Default() Config {
	return Config{
		Gather: Gather{
			Contexts:              []string{defaultContext},
			SternDefaults:         true,
			FixUpMessages:         true,
			SpaceAfterMessage:     true,
			Since:                 defaultSince,
			TerminateGraceSeconds: defaultTerminateGraceS,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		History: History{
			Enabled: true,
			Path:    defaultHistoryPath,
		},
	}
}
