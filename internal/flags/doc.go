// Package flags manages the command-line flags and environment variables of docker-monitor.
// It configures the Docker connection, the monitor options, notifications and logging via Cobra
// and Viper.
//
// Usage example:
//
//	cmd := &cobra.Command{}
//	flags.SetDefaults()
//	flags.RegisterDockerFlags(cmd)
//	flags.RegisterSystemFlags(cmd)
//	if err := flags.SetupLogging(cmd.PersistentFlags()); err != nil {
//	    logrus.WithError(err).Fatal("Logging setup failed")
//	}
package flags
