package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"fswatch/internal/cli"
	"fswatch/internal/existcache"
	"fswatch/internal/logging"
	"fswatch/internal/watcher"
)

const defaultConfigFile = "fswatch.toml"

type Config struct {
	ConfigPath  string
	Port        int
	AuthToken   string
	Throttle    time.Duration
	MaxBatch    int
	Recursive   bool
	Filter      string
	CacheTTL    time.Duration
	CacheMax    int
	LogLevel    logging.Level
	LogFile     string
	ShowVersion bool
	Paths       []string
	Sources     map[string]configSource
}

type configSource string

const (
	sourceDefault configSource = "default"
	sourceFile    configSource = "file"
	sourceEnv     configSource = "env"
	sourceFlag    configSource = "flag"
)

type configDefaults struct {
	ConfigPath string
	Port       int
	Throttle   time.Duration
	MaxBatch   int
	Recursive  bool
	Filter     string
	CacheTTL   time.Duration
	CacheMax   int
	LogLevel   logging.Level
}

type flagValues struct {
	ConfigPath string
	Port       int
	Token      string
	Throttle   time.Duration
	MaxBatch   int
	Recursive  bool
	Filter     string
	CacheTTL   time.Duration
	CacheMax   int
	LogLevel   string
	LogFile    string
	Verbose    bool
	Quiet      bool
	Help       bool
	Version    bool
	Args       []string
	Set        map[string]bool
}

func defaultConfigValues() configDefaults {
	return configDefaults{
		ConfigPath: defaultConfigFile,
		Throttle:   watcher.DefaultThrottleInterval,
		CacheTTL:   existcache.DefaultTTL,
		CacheMax:   existcache.DefaultMaxEntries,
		LogLevel:   logging.LevelInfo,
	}
}

// loadConfig resolves every setting from defaults, then the watch file, then
// FSWATCH_* variables, then flags. The watch file is returned so the caller
// can start the watches it declares.
func loadConfig(args []string, stdout io.Writer) (Config, WatchFile, error) {
	defaults := defaultConfigValues()
	flags, err := parseFlags(args, defaults, stdout)
	if err != nil {
		return Config{}, WatchFile{}, err
	}

	cfg := Config{
		Paths:       flags.Args,
		ShowVersion: flags.Version,
		Sources:     make(map[string]configSource),
	}

	configPath, configSource := resolveString("config", defaults.ConfigPath, "FSWATCH_CONFIG", flags.Set, flags.ConfigPath)
	cfg.ConfigPath = configPath
	cfg.Sources["config"] = configSource

	var watchFile WatchFile
	if configPath != "" {
		loaded, err := loadWatchFile(configPath)
		switch {
		case err == nil:
			watchFile = loaded
		case errors.Is(err, os.ErrNotExist) && configSource == sourceDefault:
			cfg.ConfigPath = ""
		default:
			return Config{}, WatchFile{}, err
		}
	}
	fileThrottle, fileCacheTTL, err := watchFile.durations()
	if err != nil {
		return Config{}, WatchFile{}, err
	}

	port, source, err := resolveInt("port", defaults.Port, 0, "FSWATCH_PORT", flags.Set, flags.Port, 0)
	if err != nil {
		return Config{}, WatchFile{}, err
	}
	cfg.Port, cfg.Sources["port"] = port, source

	cfg.AuthToken, cfg.Sources["token"] = resolveString("token", "", "FSWATCH_TOKEN", flags.Set, flags.Token)

	throttle, source, err := resolveDuration("throttle", defaults.Throttle, fileThrottle, "FSWATCH_THROTTLE", flags.Set, flags.Throttle)
	if err != nil {
		return Config{}, WatchFile{}, err
	}
	cfg.Throttle, cfg.Sources["throttle"] = throttle, source

	maxBatch, source, err := resolveInt("max-batch", defaults.MaxBatch, watchFile.MaxBatch, "FSWATCH_MAX_BATCH", flags.Set, flags.MaxBatch, 0)
	if err != nil {
		return Config{}, WatchFile{}, err
	}
	cfg.MaxBatch, cfg.Sources["max-batch"] = maxBatch, source

	recursive, source, err := resolveBool("recursive", defaults.Recursive, "FSWATCH_RECURSIVE", flags.Set, flags.Recursive)
	if err != nil {
		return Config{}, WatchFile{}, err
	}
	cfg.Recursive, cfg.Sources["recursive"] = recursive, source

	cfg.Filter, cfg.Sources["filter"] = resolveString("filter", defaults.Filter, "FSWATCH_FILTER", flags.Set, flags.Filter)

	cacheTTL, source, err := resolveDuration("cache-ttl", defaults.CacheTTL, fileCacheTTL, "FSWATCH_CACHE_TTL", flags.Set, flags.CacheTTL)
	if err != nil {
		return Config{}, WatchFile{}, err
	}
	cfg.CacheTTL, cfg.Sources["cache-ttl"] = cacheTTL, source

	cacheMax, source, err := resolveInt("cache-max", defaults.CacheMax, watchFile.Cache.MaxEntries, "FSWATCH_CACHE_MAX", flags.Set, flags.CacheMax, 1)
	if err != nil {
		return Config{}, WatchFile{}, err
	}
	cfg.CacheMax, cfg.Sources["cache-max"] = cacheMax, source

	cfg.LogFile, cfg.Sources["log-file"] = resolveString("log-file", "", "FSWATCH_LOG_FILE", flags.Set, flags.LogFile)

	level, source, err := resolveLogLevel(defaults.LogLevel, flags)
	if err != nil {
		return Config{}, WatchFile{}, err
	}
	cfg.LogLevel, cfg.Sources["log-level"] = level, source

	return cfg, watchFile, nil
}

func parseFlags(args []string, defaults configDefaults, stdout io.Writer) (flagValues, error) {
	if args == nil {
		args = []string{}
	}
	fs := flag.NewFlagSet("fswatch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", defaults.ConfigPath, "Watch file (.toml, .yaml, .yml)")
	port := fs.Int("port", defaults.Port, "HTTP API port, 0 disables the API")
	token := fs.String("token", "", "Auth token for REST/WS")
	throttle := fs.Duration("throttle", defaults.Throttle, "Quiet period before a batch is delivered")
	maxBatch := fs.Int("max-batch", defaults.MaxBatch, "Deliver early once a batch holds this many events, 0 is unlimited")
	recursive := fs.Bool("recursive", defaults.Recursive, "Watch path arguments recursively")
	filter := fs.String("filter", defaults.Filter, "Glob filter for path arguments")
	cacheTTL := fs.Duration("cache-ttl", defaults.CacheTTL, "Existence cache entry lifetime")
	cacheMax := fs.Int("cache-max", defaults.CacheMax, "Existence cache size before a bulk clear")
	logLevel := fs.String("log-level", string(defaults.LogLevel), "Log level (debug, info, warning, error)")
	logFile := fs.String("log-file", "", "Write logs to a rotating file instead of stdout")
	verbose := fs.Bool("verbose", false, "Enable debug logging")
	quiet := fs.Bool("quiet", false, "Reduce logging to warnings")
	helpVersion := cli.AddHelpVersionFlags(fs, "Show help", "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return flagValues{}, err
	}

	flags := flagValues{
		ConfigPath: *configPath,
		Port:       *port,
		Token:      *token,
		Throttle:   *throttle,
		MaxBatch:   *maxBatch,
		Recursive:  *recursive,
		Filter:     *filter,
		CacheTTL:   *cacheTTL,
		CacheMax:   *cacheMax,
		LogLevel:   *logLevel,
		LogFile:    *logFile,
		Verbose:    *verbose,
		Quiet:      *quiet,
		Help:       helpVersion.Help,
		Version:    helpVersion.Version,
		Args:       fs.Args(),
		Set:        cli.SetFlags(fs),
	}

	if flags.Help {
		printHelp(stdout, defaults)
		return flags, flag.ErrHelp
	}
	if flags.Verbose && flags.Quiet {
		return flags, fmt.Errorf("--verbose and --quiet are mutually exclusive")
	}
	return flags, nil
}

func printHelp(out io.Writer, defaults configDefaults) {
	cli.WriteHelp(out, "fswatch [flags] [path...]", map[string][]cli.HelpOption{
		"Commands": {
			{Name: "schema", Desc: "Print the watch file JSON schema"},
			{Name: "version", Desc: "Print version information"},
		},
		"Flags": {
			{Name: "--config PATH", Desc: fmt.Sprintf("Watch file (default %s)", defaults.ConfigPath)},
			{Name: "--port N", Desc: "HTTP API port, 0 disables the API"},
			{Name: "--token TOKEN", Desc: "Auth token for REST/WS"},
			{Name: "--throttle DURATION", Desc: fmt.Sprintf("Quiet period before delivery (default %s)", defaults.Throttle)},
			{Name: "--max-batch N", Desc: "Deliver early at N buffered events"},
			{Name: "--recursive", Desc: "Watch path arguments recursively"},
			{Name: "--filter GLOB", Desc: "Glob filter for path arguments"},
			{Name: "--cache-ttl DURATION", Desc: fmt.Sprintf("Existence cache TTL (default %s)", defaults.CacheTTL)},
			{Name: "--cache-max N", Desc: fmt.Sprintf("Existence cache size (default %d)", defaults.CacheMax)},
			{Name: "--log-level LEVEL", Desc: "debug, info, warning or error"},
			{Name: "--log-file PATH", Desc: "Rotating log file"},
			{Name: "--verbose", Desc: "Enable debug logging"},
			{Name: "--quiet", Desc: "Reduce logging to warnings"},
			{Name: "--help", Desc: "Show help"},
			{Name: "--version", Desc: "Print version and exit"},
		},
		"Environment": {
			{Name: "FSWATCH_<FLAG>", Desc: "Any flag above, upper case with '-' as '_'"},
		},
	}, "Commands", "Flags", "Environment")
}

func resolveString(name, fallback, envKey string, set map[string]bool, flagValue string) (string, configSource) {
	value, source := fallback, sourceDefault
	if raw := strings.TrimSpace(os.Getenv(envKey)); raw != "" {
		value, source = raw, sourceEnv
	}
	if set[name] {
		value, source = strings.TrimSpace(flagValue), sourceFlag
	}
	return value, source
}

// resolveInt ignores unparsable environment values, as a typo in the
// environment should not stop the daemon; flags are validated strictly.
func resolveInt(name string, fallback, fileValue int, envKey string, set map[string]bool, flagValue, minValue int) (int, configSource, error) {
	value, source := fallback, sourceDefault
	if fileValue != 0 {
		if fileValue < minValue {
			return 0, "", fmt.Errorf("invalid %s in watch file: must be >= %d", name, minValue)
		}
		value, source = fileValue, sourceFile
	}
	if raw := strings.TrimSpace(os.Getenv(envKey)); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= minValue {
			value, source = parsed, sourceEnv
		}
	}
	if set[name] {
		if flagValue < minValue {
			return 0, "", fmt.Errorf("invalid --%s: must be >= %d", name, minValue)
		}
		value, source = flagValue, sourceFlag
	}
	return value, source, nil
}

func resolveDuration(name string, fallback, fileValue time.Duration, envKey string, set map[string]bool, flagValue time.Duration) (time.Duration, configSource, error) {
	value, source := fallback, sourceDefault
	if fileValue > 0 {
		value, source = fileValue, sourceFile
	}
	if raw := strings.TrimSpace(os.Getenv(envKey)); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			value, source = parsed, sourceEnv
		}
	}
	if set[name] {
		if flagValue <= 0 {
			return 0, "", fmt.Errorf("invalid --%s: must be > 0", name)
		}
		value, source = flagValue, sourceFlag
	}
	return value, source, nil
}

func resolveBool(name string, fallback bool, envKey string, set map[string]bool, flagValue bool) (bool, configSource, error) {
	value, source := fallback, sourceDefault
	if raw := strings.TrimSpace(os.Getenv(envKey)); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return false, "", fmt.Errorf("invalid %s: %w", envKey, err)
		}
		value, source = parsed, sourceEnv
	}
	if set[name] {
		value, source = flagValue, sourceFlag
	}
	return value, source, nil
}

func resolveLogLevel(fallback logging.Level, flags flagValues) (logging.Level, configSource, error) {
	level, source := fallback, sourceDefault
	if raw := strings.TrimSpace(os.Getenv("FSWATCH_LOG_LEVEL")); raw != "" {
		if parsed, ok := logging.ParseLevel(raw); ok {
			level, source = parsed, sourceEnv
		}
	}
	if flags.Set["log-level"] {
		parsed, ok := logging.ParseLevel(flags.LogLevel)
		if !ok {
			return "", "", fmt.Errorf("invalid --log-level %q", flags.LogLevel)
		}
		level, source = parsed, sourceFlag
	}
	switch {
	case flags.Verbose:
		level, source = logging.LevelDebug, sourceFlag
	case flags.Quiet:
		level, source = logging.LevelWarning, sourceFlag
	}
	return level, source, nil
}
