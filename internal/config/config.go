// Package config layers the client's settings: built-in defaults, an
// optional rtrpkic.ini file, then CLI flags — highest priority last.
package config

import (
	"flag"
	"fmt"
	"time"

	"gopkg.in/ini.v1"
)

// Config is the fully-resolved set of knobs the driver needs.
type Config struct {
	Host               string
	Port               string
	LogLevel           string
	PollInterval       time.Duration
	DataDir            string
	RawCapture         bool
	StrictSessionReset bool

	// StartSerial and StartSessionID resume an existing journal rather than
	// forcing a ResetQuery on first connect. Nil means "unknown".
	StartSerial    *uint32
	StartSessionID *uint16
}

const (
	defaultHost         = "rtr.rpki.cloudflare.com"
	defaultPort         = "8282"
	defaultLogLevel     = "info"
	defaultPollInterval = 300 * time.Second
	defaultDataDir      = "data"
)

// Load resolves a Config from defaults, an optional ini file, and CLI
// flags, in that priority order.
func Load(args []string) (*Config, error) {
	cfg := &Config{
		Host:         defaultHost,
		Port:         defaultPort,
		LogLevel:     defaultLogLevel,
		PollInterval: defaultPollInterval,
		DataDir:      defaultDataDir,
	}

	fs := flag.NewFlagSet("rtrpkic", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to an optional rtrpkic.ini file")
	host := fs.String("host", "", "RPKI cache hostname")
	port := fs.String("port", "", "RPKI cache port")
	loglevel := fs.String("loglevel", "", "log level (debug, info, warn, error)")
	pollInterval := fs.Duration("poll-interval", 0, "base poll interval, e.g. 300s")
	dataDir := fs.String("data-dir", "", "directory for journal and snapshot files")
	rawCapture := fs.Bool("raw-capture", false, "tee raw wire bytes to data/<ts>-raw-data.bin")
	strictSessionReset := fs.Bool("strict-session-reset", false, "treat a session id change as a CacheReset instead of adopting it")
	serial := fs.Uint("serial", 0, "resume from this serial number (requires -session-id)")
	sessionID := fs.Uint("session-id", 0, "resume with this session id (requires -serial)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("config: parse flags: %w", err)
	}

	if *configPath != "" {
		if err := applyINI(cfg, *configPath); err != nil {
			return nil, err
		}
	}

	applyFlagOverrides(cfg, fs, host, port, loglevel, pollInterval, dataDir, rawCapture, strictSessionReset)

	haveSerial, haveSessionID := false, false
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "serial":
			haveSerial = true
		case "session-id":
			haveSessionID = true
		}
	})
	if haveSerial && haveSessionID {
		s := uint32(*serial)
		id := uint16(*sessionID)
		cfg.StartSerial = &s
		cfg.StartSessionID = &id
	}

	return cfg, nil
}

func applyINI(cfg *Config, path string) error {
	f, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	sec := f.Section("")

	if k := sec.Key("host"); k.String() != "" {
		cfg.Host = k.String()
	}
	if k := sec.Key("port"); k.String() != "" {
		cfg.Port = k.String()
	}
	if k := sec.Key("loglevel"); k.String() != "" {
		cfg.LogLevel = k.String()
	}
	if k := sec.Key("data_dir"); k.String() != "" {
		cfg.DataDir = k.String()
	}
	if sec.HasKey("poll_interval_seconds") {
		secs, err := sec.Key("poll_interval_seconds").Int()
		if err != nil {
			return fmt.Errorf("config: poll_interval_seconds: %w", err)
		}
		cfg.PollInterval = time.Duration(secs) * time.Second
	}
	if sec.HasKey("raw_capture") {
		b, err := sec.Key("raw_capture").Bool()
		if err != nil {
			return fmt.Errorf("config: raw_capture: %w", err)
		}
		cfg.RawCapture = b
	}
	if sec.HasKey("strict_session_reset") {
		b, err := sec.Key("strict_session_reset").Bool()
		if err != nil {
			return fmt.Errorf("config: strict_session_reset: %w", err)
		}
		cfg.StrictSessionReset = b
	}
	return nil
}

func applyFlagOverrides(
	cfg *Config,
	fs *flag.FlagSet,
	host, port, loglevel *string,
	pollInterval *time.Duration,
	dataDir *string,
	rawCapture, strictSessionReset *bool,
) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = *host
		case "port":
			cfg.Port = *port
		case "loglevel":
			cfg.LogLevel = *loglevel
		case "poll-interval":
			cfg.PollInterval = *pollInterval
		case "data-dir":
			cfg.DataDir = *dataDir
		case "raw-capture":
			cfg.RawCapture = *rawCapture
		case "strict-session-reset":
			cfg.StrictSessionReset = *strictSessionReset
		}
	})
}
