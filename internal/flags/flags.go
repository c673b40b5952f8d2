package flags

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Defaults for the monitor options.
const (
	defaultStopTimeout     = 10 * time.Second
	defaultRegistryTimeout = 12 * time.Second
	defaultCacheTTL        = time.Hour
	defaultWarmInterval    = 15 * time.Minute
	defaultWorkers         = 4
	defaultHTTPAPIPort     = 8080
	maxWorkers             = 64
	maxPort                = 65535
)

// Errors for flag handling.
var (
	// errInvalidLogFormat indicates an invalid log format was specified.
	errInvalidLogFormat = errors.New("invalid log format specified")
	// errInvalidLogLevel indicates an invalid log level was specified.
	errInvalidLogLevel = errors.New("invalid log level specified")
	// errSetEnvFailed indicates a failure to set an environment variable.
	errSetEnvFailed = errors.New("failed to set environment variable")
	// errOpenFileFailed indicates a failure to open a file for reading secrets.
	errOpenFileFailed = errors.New("failed to open secret file")
	// errCloseFileFailed indicates a failure to close a file after reading secrets.
	errCloseFileFailed = errors.New("failed to close secret file")
	// errReplaceSliceFailed indicates a failure to replace a slice value in a flag.
	errReplaceSliceFailed = errors.New("failed to replace slice value in flag")
	// errReadFileFailed indicates a failure to read a file's contents.
	errReadFileFailed = errors.New("failed to read secret file")
	// errSetFlagFailed indicates a failure to read or set a flag's value.
	errSetFlagFailed = errors.New("failed to set flag value")
	// errInvalidFlagName indicates an invalid flag name was provided.
	errInvalidFlagName = errors.New("invalid flag name provided")
	// errNotSliceValue indicates a flag does not support slice values.
	errNotSliceValue = errors.New("flag does not support slice values")
	// errInvalidPorcelain indicates an unsupported porcelain version.
	errInvalidPorcelain = errors.New("unknown porcelain version")
	// errInvalidOption indicates an option value outside its allowed range.
	errInvalidOption = errors.New("invalid option value")
)

// Options holds the monitor settings read from the persistent flags.
type Options struct {
	StopTimeout      time.Duration
	RegistryTimeout  time.Duration
	CacheTTL         time.Duration
	WarmInterval     time.Duration
	WarmOnStart      bool
	Workers          int
	SelfName         string
	APIHost          string
	APIPort          int
	APIToken         string
	NoStartupMessage bool
}

// APIAddress returns the listen address of the HTTP API.
func (o Options) APIAddress() string {
	return net.JoinHostPort(o.APIHost, strconv.Itoa(o.APIPort))
}

// RegisterDockerFlags adds flags used directly by the Docker API client to the root command.
func RegisterDockerFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()
	flags.StringP("host", "H", envString("DOCKER_HOST"), "daemon socket to connect to")
	flags.BoolP("tlsverify", "v", envBool("DOCKER_TLS_VERIFY"), "use TLS and verify the remote")
	flags.StringP(
		"api-version",
		"a",
		envString("DOCKER_API_VERSION"),
		"api version to use by docker client, negotiated when empty",
	)
}

// RegisterSystemFlags adds the monitor, HTTP API and logging flags to the root command.
func RegisterSystemFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()

	flags.DurationP(
		"stop-timeout",
		"t",
		envDuration("MONITOR_STOP_TIMEOUT"),
		"Timeout before a container is forcefully stopped during an update")

	flags.Duration(
		"registry-timeout",
		envDuration("MONITOR_REGISTRY_TIMEOUT"),
		"Timeout of a single registry request")

	flags.Duration(
		"cache-ttl",
		envDuration("MONITOR_CACHE_TTL"),
		"How long a resolved remote digest is reused")

	flags.Duration(
		"warm-interval",
		envDuration("MONITOR_WARM_INTERVAL"),
		"Delay between two background digest cache warming passes")

	flags.Bool(
		"warm-on-start",
		envBool("MONITOR_WARM_ON_START"),
		"Warm the digest cache once right after startup")

	flags.Int(
		"workers",
		envInt("MONITOR_WORKERS"),
		"Number of containers classified concurrently")

	flags.String(
		"self-name",
		envString("MONITOR_SELF_NAME"),
		"Name of the monitor's own container, detected when empty")

	flags.String(
		"http-api-host",
		envString("MONITOR_HTTP_API_HOST"),
		"Host to bind the HTTP API to, all interfaces when empty")

	flags.Int(
		"http-api-port",
		envInt("MONITOR_HTTP_API_PORT"),
		"Port to bind the HTTP API to")

	flags.String(
		"http-api-token",
		envString("MONITOR_HTTP_API_TOKEN"),
		"Bearer token required by HTTP API requests, or a file containing it")

	flags.Bool(
		"no-startup-message",
		envBool("MONITOR_NO_STARTUP_MESSAGE"),
		"Do not log the startup summary")

	flags.StringP(
		"log-format",
		"l",
		viper.GetString("MONITOR_LOG_FORMAT"),
		"Sets what logging format to use for console output. Possible values: Auto, LogFmt, Pretty, JSON",
	)

	flags.String(
		"log-level",
		envString("MONITOR_LOG_LEVEL"),
		"The maximum log level that will be written to STDERR. Possible values: panic, fatal, error, warn, info, debug or trace",
	)

	flags.BoolP(
		"debug",
		"d",
		envBool("MONITOR_DEBUG"),
		"Enable debug mode with verbose logging")

	flags.Bool(
		"trace",
		envBool("MONITOR_TRACE"),
		"Enable trace mode with very verbose logging - caution, exposes credentials")

	// https://no-color.org/
	flags.Bool(
		"no-color",
		viper.IsSet("NO_COLOR"),
		"Disable ANSI color escape codes in log output")

	flags.StringP(
		"porcelain",
		"P",
		envString("MONITOR_PORCELAIN"),
		`Write update outcomes to stdout using a stable versioned format. Supported values: "v1"`)
}

// RegisterNotificationFlags adds flags for update notifications to the root command.
func RegisterNotificationFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()

	flags.StringArray(
		"notification-url",
		envStringSlice("MONITOR_NOTIFICATION_URL"),
		"The shoutrrr URL to send notifications to")

	flags.String(
		"notification-template",
		envString("MONITOR_NOTIFICATION_TEMPLATE"),
		"The shoutrrr text/template for the messages, or the name of a built-in template")

	flags.Int(
		"notifications-delay",
		envInt("MONITOR_NOTIFICATIONS_DELAY"),
		"Delay before sending a notification, expressed in seconds")

	flags.String(
		"notifications-hostname",
		envString("MONITOR_NOTIFICATIONS_HOSTNAME"),
		"Custom hostname for the notification title")

	flags.String(
		"notification-title-tag",
		envString("MONITOR_NOTIFICATION_TITLE_TAG"),
		"Title prefix tag for notifications")

	flags.Bool(
		"notification-skip-title",
		envBool("MONITOR_NOTIFICATION_SKIP_TITLE"),
		"Do not pass the title param to notifications")

	flags.Bool(
		"notification-log-stdout",
		envBool("MONITOR_NOTIFICATION_LOG_STDOUT"),
		"Write notification logs to stdout instead of logging (to stderr)")
}

// envString retrieves a string value from an environment variable via Viper.
func envString(key string) string {
	viper.MustBindEnv(key)

	return viper.GetString(key)
}

// envStringSlice retrieves a string slice from an environment variable via Viper.
func envStringSlice(key string) []string {
	viper.MustBindEnv(key)

	return viper.GetStringSlice(key)
}

// envInt retrieves an integer value from an environment variable via Viper.
func envInt(key string) int {
	viper.MustBindEnv(key)

	return viper.GetInt(key)
}

// envBool retrieves a boolean value from an environment variable via Viper.
func envBool(key string) bool {
	viper.MustBindEnv(key)

	return viper.GetBool(key)
}

// envDuration retrieves a duration value from an environment variable via Viper.
func envDuration(key string) time.Duration {
	viper.MustBindEnv(key)

	return viper.GetDuration(key)
}

// SetDefaults configures default values for environment variables.
// It must run before the flags are registered.
func SetDefaults() {
	viper.AutomaticEnv()
	viper.SetDefault("DOCKER_HOST", "unix:///var/run/docker.sock")
	viper.SetDefault("MONITOR_STOP_TIMEOUT", defaultStopTimeout)
	viper.SetDefault("MONITOR_REGISTRY_TIMEOUT", defaultRegistryTimeout)
	viper.SetDefault("MONITOR_CACHE_TTL", defaultCacheTTL)
	viper.SetDefault("MONITOR_WARM_INTERVAL", defaultWarmInterval)
	viper.SetDefault("MONITOR_WORKERS", defaultWorkers)
	viper.SetDefault("MONITOR_HTTP_API_PORT", defaultHTTPAPIPort)
	viper.SetDefault("MONITOR_NOTIFICATION_URL", []string{})
	viper.SetDefault("MONITOR_LOG_LEVEL", "info")
	viper.SetDefault("MONITOR_LOG_FORMAT", "auto")
}

// EnvConfig exports the Docker flags to the environment read by the Docker client.
func EnvConfig(cmd *cobra.Command) error {
	flags := cmd.PersistentFlags()

	host, err := flags.GetString("host")
	if err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	tls, err := flags.GetBool("tlsverify")
	if err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	version, err := flags.GetString("api-version")
	if err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if err := setEnvOptStr("DOCKER_HOST", host); err != nil {
		return err
	}

	if err := setEnvOptBool("DOCKER_TLS_VERIFY", tls); err != nil {
		return err
	}

	return setEnvOptStr("DOCKER_API_VERSION", version)
}

// ReadFlags reads and validates the monitor options.
func ReadFlags(cmd *cobra.Command) (Options, error) {
	flags := cmd.PersistentFlags()

	var (
		opts Options
		errs []error
	)

	getDuration := func(name string) time.Duration {
		value, err := flags.GetDuration(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", errSetFlagFailed, err))
		} else if value <= 0 {
			errs = append(errs, fmt.Errorf("%w: --%s must be positive, got %s", errInvalidOption, name, value))
		}

		return value
	}

	getInt := func(name string, maxValue int) int {
		value, err := flags.GetInt(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", errSetFlagFailed, err))
		} else if value < 1 || value > maxValue {
			errs = append(errs, fmt.Errorf("%w: --%s must be between 1 and %d, got %d", errInvalidOption, name, maxValue, value))
		}

		return value
	}

	getString := func(name string) string {
		value, err := flags.GetString(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", errSetFlagFailed, err))
		}

		return value
	}

	getBool := func(name string) bool {
		value, err := flags.GetBool(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", errSetFlagFailed, err))
		}

		return value
	}

	opts.StopTimeout = getDuration("stop-timeout")
	opts.RegistryTimeout = getDuration("registry-timeout")
	opts.CacheTTL = getDuration("cache-ttl")
	opts.WarmInterval = getDuration("warm-interval")
	opts.WarmOnStart = getBool("warm-on-start")
	opts.Workers = getInt("workers", maxWorkers)
	opts.SelfName = getString("self-name")
	opts.APIHost = getString("http-api-host")
	opts.APIPort = getInt("http-api-port", maxPort)
	opts.APIToken = getString("http-api-token")
	opts.NoStartupMessage = getBool("no-startup-message")

	return opts, errors.Join(errs...)
}

// setEnvOptStr sets an environment variable unless the value is empty or already set.
func setEnvOptStr(env string, opt string) error {
	if opt == "" || opt == os.Getenv(env) {
		return nil
	}

	if err := os.Setenv(env, opt); err != nil {
		return fmt.Errorf("%w: %s: %w", errSetEnvFailed, env, err)
	}

	return nil
}

// setEnvOptBool sets an environment variable to "1" if the boolean is true.
func setEnvOptBool(env string, opt bool) error {
	if opt {
		return setEnvOptStr(env, "1")
	}

	return nil
}

// GetSecretsFromFiles replaces secret flag values with file contents when they name a file.
func GetSecretsFromFiles(rootCmd *cobra.Command) error {
	flags := rootCmd.PersistentFlags()

	secrets := []string{
		"notification-url",
		"http-api-token",
	}
	for _, secret := range secrets {
		if err := getSecretFromFile(flags, secret); err != nil {
			return fmt.Errorf("failed to get secret from flag %s: %w", secret, err)
		}
	}

	return nil
}

// getSecretFromFile updates a flag's value with file contents if it references a file.
// Slice flags get one value per non-empty line.
func getSecretFromFile(flags *pflag.FlagSet, secret string) error {
	flag := flags.Lookup(secret)
	if flag == nil {
		return fmt.Errorf("%w: %q", errInvalidFlagName, secret)
	}

	if sliceValue, ok := flag.Value.(pflag.SliceValue); ok {
		oldValues := sliceValue.GetSlice()
		values := make([]string, 0, len(oldValues))

		for _, value := range oldValues {
			if value == "" || !isFilePath(value) {
				values = append(values, value)

				continue
			}

			lines, err := readLines(value)
			if err != nil {
				return err
			}

			values = append(values, lines...)
		}

		if err := sliceValue.Replace(values); err != nil {
			return fmt.Errorf("%w: %w", errReplaceSliceFailed, err)
		}

		return nil
	}

	value := flag.Value.String()
	if value != "" && isFilePath(value) {
		content, err := os.ReadFile(value)
		if err != nil {
			return fmt.Errorf("%w: %w", errReadFileFailed, err)
		}

		if err := flags.Set(secret, strings.TrimSpace(string(content))); err != nil {
			return fmt.Errorf("%w: %w", errSetFlagFailed, err)
		}
	}

	return nil
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errOpenFileFailed, err)
	}

	var lines []string

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}

	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("%w: %w", errCloseFileFailed, err)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", errReadFileFailed, err)
	}

	return lines, nil
}

// isFilePath determines if a string likely represents an existing file path.
// Strings with a colon anywhere but the second character are treated as URLs.
func isFilePath(path string) bool {
	firstColon := strings.IndexRune(path, ':')
	if firstColon != 1 && firstColon != -1 {
		return false
	}

	_, err := os.Stat(path)

	return !errors.Is(err, os.ErrNotExist)
}

// ProcessFlagAliases applies the helper flags to the flags they stand for.
//
// --porcelain routes notifications to stdout with the porcelain template, --debug and --trace
// raise the log level.
func ProcessFlagAliases(flags *pflag.FlagSet) error {
	porcelain, err := flags.GetString("porcelain")
	if err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if porcelain != "" {
		if porcelain != "v1" {
			return fmt.Errorf("%w: %q, supported values: \"v1\"", errInvalidPorcelain, porcelain)
		}

		if err := appendFlagValue(flags, "notification-url", "logger://"); err != nil {
			return err
		}

		setFlagIfDefault(flags, "notification-log-stdout", "true")
		setFlagIfDefault(flags, "notification-template", "porcelain."+porcelain)
	}

	if flagIsEnabled(flags, "debug") {
		if err := flags.Set("log-level", "debug"); err != nil {
			return fmt.Errorf("%w: %w", errSetFlagFailed, err)
		}
	}

	if flagIsEnabled(flags, "trace") {
		if err := flags.Set("log-level", "trace"); err != nil {
			return fmt.Errorf("%w: %w", errSetFlagFailed, err)
		}
	}

	return nil
}

// SetupLogging configures the global logger based on log-related flags.
func SetupLogging(flags *pflag.FlagSet) error {
	logFormat, err := flags.GetString("log-format")
	if err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	noColor, err := flags.GetBool("no-color")
	if err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if err := configureLogFormat(logFormat, noColor); err != nil {
		return err
	}

	rawLogLevel, err := flags.GetString("log-level")
	if err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	logLevel, err := logrus.ParseLevel(rawLogLevel)
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidLogLevel, err)
	}

	logrus.SetLevel(logLevel)

	return nil
}

// configureLogFormat sets the logrus formatter for the format and color preference.
func configureLogFormat(logFormat string, noColor bool) error {
	switch strings.ToLower(logFormat) {
	case "auto":
		logrus.SetFormatter(&logrus.TextFormatter{
			DisableColors:             noColor,
			EnvironmentOverrideColors: true,
		})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "logfmt":
		logrus.SetFormatter(&logrus.TextFormatter{
			DisableColors: true,
			FullTimestamp: true,
		})
	case "pretty":
		logrus.SetFormatter(&logrus.TextFormatter{
			ForceColors:   !noColor,
			FullTimestamp: false,
		})
	default:
		return fmt.Errorf("%w: %s", errInvalidLogFormat, logFormat)
	}

	return nil
}

// flagIsEnabled reports whether a boolean flag is set. Undefined flags count as disabled.
func flagIsEnabled(flags *pflag.FlagSet, name string) bool {
	value, err := flags.GetBool(name)
	if err != nil {
		logrus.WithField("flag", name).Debug("Flag is not defined")

		return false
	}

	return value
}

// appendFlagValue appends values to a slice-type flag.
func appendFlagValue(flags *pflag.FlagSet, name string, values ...string) error {
	flag := flags.Lookup(name)
	if flag == nil {
		return fmt.Errorf("%w: %q", errInvalidFlagName, name)
	}

	flagValues, ok := flag.Value.(pflag.SliceValue)
	if !ok {
		return fmt.Errorf("%w: %q", errNotSliceValue, name)
	}

	for _, value := range values {
		if err := flagValues.Append(value); err != nil {
			return fmt.Errorf("%w: %w", errSetFlagFailed, err)
		}
	}

	return nil
}

// setFlagIfDefault sets a flag's value if it hasn't been explicitly changed.
func setFlagIfDefault(flags *pflag.FlagSet, name string, value string) {
	if flags.Changed(name) {
		return
	}

	if err := flags.Set(name, value); err != nil {
		logrus.WithError(err).WithField("flag", name).Error("Failed to set flag")
	}
}
