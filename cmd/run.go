// -- cmd/run.go --
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/droidpilot-cli/internal/config"
	"github.com/xkilldash9x/droidpilot-cli/internal/device"
	"github.com/xkilldash9x/droidpilot-cli/internal/observability"
	"github.com/xkilldash9x/droidpilot-cli/internal/orchestrator"
)

var (
	profileFlag string
	unlockFlag  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the session daemon and run until interrupted.",
	Long: `Starts the mirror, draws the day's session triggers from the selected
profile and then waits. Sessions are spawned when their trigger comes due;
Ctrl-C (or SIGTERM) shuts everything down in order.

The perception API key is read from DROIDPILOT_PERCEPTION_API_KEY and the
unlock credential from DROIDPILOT_SESSION_CREDENTIAL; neither belongs in the
config file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		defer observability.Sync()

		cfg, err := config.NewConfigFromViper(viper.GetViper())
		if err != nil {
			return err
		}
		logger := observability.GetLogger()

		// Flags override the config file.
		profile := cfg.Schedule.Profile
		if profileFlag != "" {
			profile = profileFlag
		}
		unlock := config.UnlockMethod(cfg.Session.UnlockMethod)
		if unlockFlag != "" {
			unlock = config.UnlockMethod(unlockFlag)
		}

		adb := device.NewADB(cfg.Device, logger)
		mirror := device.NewMirror(cfg.Mirror, logger)

		orch, err := orchestrator.New(cfg, adb, mirror, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := orch.Start(profile, unlock, cfg.Session.Credential); err != nil {
			return err
		}

		logger.Info("Daemon running, waiting for triggers", zap.String("profile", profile))
		<-ctx.Done()
		logger.Info("Shutdown signal received")

		return orch.Stop()
	},
}

func init() {
	runCmd.Flags().StringVarP(&profileFlag, "profile", "p", "", "usage profile: u, h or p (overrides config)")
	runCmd.Flags().StringVar(&unlockFlag, "unlock", "", "unlock method: pin or no_pin (overrides config)")
	rootCmd.AddCommand(runCmd)
}
