package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nicholas-fedor/docker-monitor/internal/actions"
	internalAPI "github.com/nicholas-fedor/docker-monitor/internal/api"
	"github.com/nicholas-fedor/docker-monitor/internal/flags"
	"github.com/nicholas-fedor/docker-monitor/internal/logging"
	"github.com/nicholas-fedor/docker-monitor/internal/meta"
	"github.com/nicholas-fedor/docker-monitor/internal/scheduling"
	"github.com/nicholas-fedor/docker-monitor/pkg/container"
	"github.com/nicholas-fedor/docker-monitor/pkg/metrics"
	"github.com/nicholas-fedor/docker-monitor/pkg/notifications"
	"github.com/nicholas-fedor/docker-monitor/pkg/registry"
	"github.com/nicholas-fedor/docker-monitor/pkg/registry/cache"
	"github.com/nicholas-fedor/docker-monitor/pkg/registry/digest"
	"github.com/nicholas-fedor/docker-monitor/pkg/types"
)

// client is the Docker client, initialized in preRun from the Docker flags.
var client types.Client

// notifier sends update outcome messages, nil when no notification URL is configured.
var notifier types.Notifier

// options holds the validated monitor settings.
var options flags.Options

// dockerHost is the Docker daemon address the client connects to.
var dockerHost string

var rootCmd = NewRootCommand()

// NewRootCommand creates the root command of the docker-monitor CLI.
func NewRootCommand() *cobra.Command {
	return &cobra.Command{
		Use:    "docker-monitor",
		Short:  "Reports and applies image updates of local Docker containers",
		Long:   "\ndocker-monitor detects when a newer image is available for a container and recreates\nthe container in place with its configuration preserved, driven through an HTTP API.",
		Run:    run,
		PreRun: preRun,
		Args:   cobra.NoArgs,
	}
}

func init() {
	flags.SetDefaults()
	flags.RegisterDockerFlags(rootCmd)
	flags.RegisterSystemFlags(rootCmd)
	flags.RegisterNotificationFlags(rootCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Fatal("Failed to execute root command")
	}
}

// preRun reads the configuration and connects to the Docker daemon.
func preRun(cmd *cobra.Command, _ []string) {
	flagsSet := cmd.PersistentFlags()

	if err := flags.ProcessFlagAliases(flagsSet); err != nil {
		logrus.WithError(err).Fatal("Failed to process flag aliases")
	}

	if err := flags.SetupLogging(flagsSet); err != nil {
		logrus.WithError(err).Fatal("Failed to initialize logging")
	}

	if err := flags.GetSecretsFromFiles(cmd); err != nil {
		logrus.WithError(err).Fatal("Failed to read secrets from files")
	}

	var err error

	options, err = flags.ReadFlags(cmd)
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	if err := flags.EnvConfig(cmd); err != nil {
		logrus.WithError(err).Fatal("Failed to configure Docker environment")
	}

	dockerHost, _ = flagsSet.GetString("host")

	digest.UserAgent = meta.UserAgent()

	client, err = container.NewClient(container.ClientOptions{})
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create Docker client")
	}

	notifier, err = notifications.NewNotifier(cmd)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize notifications")
	}
}

// run serves the monitor until it is interrupted.
func run(_ *cobra.Command, _ []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if exitCode := runMain(ctx); exitCode != 0 {
		logrus.WithField("exit_code", exitCode).Debug("Exiting with non-zero status")
		stop()
		os.Exit(exitCode)
	}
}

// services are the long-lived components assembled from the configuration.
type services struct {
	classifier *actions.Classifier
	recreator  *actions.Recreator
	warmer     *scheduling.Warmer
	selfName   string
}

// newServices builds the digest pipeline, the recreator and the cache warmer.
func newServices(
	ctx context.Context,
	client types.Client,
	notifier types.Notifier,
	opts flags.Options,
	recorder *metrics.Metrics,
) services {
	resolver := digest.NewResolver(
		digest.WithTimeout(opts.RegistryTimeout),
		digest.WithCredentials(registry.BasicCredentials),
	)

	digestCache := cache.New(resolver,
		cache.WithTTL(opts.CacheTTL),
		cache.WithRecorder(recorder),
	)

	classifier := actions.NewClassifier(digestCache, opts.Workers, recorder)
	selfName := container.SelfName(ctx, client, opts.SelfName)

	return services{
		classifier: classifier,
		recreator: actions.NewRecreator(client, classifier, actions.RecreatorOptions{
			SelfName:    selfName,
			StopTimeout: opts.StopTimeout,
			Notifier:    notifier,
			Recorder:    recorder,
		}),
		warmer:   scheduling.NewWarmer(client, digestCache, scheduling.IntervalSpec(opts.WarmInterval), recorder),
		selfName: selfName,
	}
}

// apiConfig returns the HTTP API configuration serving the services.
func (s services) apiConfig(client types.Client, opts flags.Options, dockerHost string) internalAPI.Config {
	return internalAPI.Config{
		Address:    opts.APIAddress(),
		Token:      opts.APIToken,
		DockerHost: dockerHost,
		Workers:    opts.Workers,
		Client:     client,
		Classifier: s.classifier,
		Updater:    s.recreator,
	}
}

// runMain starts the cache warmer and blocks serving the HTTP API until ctx ends.
// It returns the process exit code.
func runMain(ctx context.Context) int {
	recorder := metrics.Default()
	defer recorder.Shutdown()

	if notifier != nil {
		defer notifier.Close()
	}

	svc := newServices(ctx, client, notifier, options, recorder)

	if err := svc.warmer.Start(ctx); err != nil {
		logrus.WithError(err).Error("Failed to start cache warmer")

		return 1
	}
	defer svc.warmer.Stop()

	if options.WarmOnStart {
		go func() {
			if err := svc.warmer.RunOnce(ctx); err != nil {
				logrus.WithError(err).Info("Initial cache warming finished with failures")
			}
		}()
	}

	logging.WriteStartupMessage(client, notifier, logging.StartupInfo{
		Version:      meta.ResolvedVersion(),
		APIAddress:   options.APIAddress(),
		TokenEnabled: options.APIToken != "",
		SelfName:     svc.selfName,
		WarmSchedule: svc.warmer.Spec(),
		NextWarm:     svc.warmer.NextRun(time.Now()),
		WarmOnStart:  options.WarmOnStart,
		Suppressed:   options.NoStartupMessage,
	})

	if err := internalAPI.SetupAndStartAPI(ctx, svc.apiConfig(client, options, dockerHost)); err != nil {
		return 1
	}

	logrus.Info("Shutting down")

	return 0
}
