package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olympum/oarsman/activity"
	"github.com/olympum/oarsman/ble"
	"github.com/olympum/oarsman/ftms"
	"github.com/olympum/oarsman/hrm"
	"github.com/olympum/oarsman/s4"
	"github.com/olympum/oarsman/session"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the S4/BLE gateway until interrupted",
	Long: `
Connects to the S4 ergometer, advertises it as a Bluetooth Fitness
Machine, optionally subscribes to a heart-rate monitor, and runs a
training session for the lifetime of the process. Shutdown is driven
by SIGINT/SIGTERM: stopping the session closes the S4 driver and then
disconnects the HRM client, and the FTMS peripheral is stopped last.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		InitializeConfig()
		driver, err := connectDriver()
		if err != nil {
			return err
		}
		return runGateway(driver)
	},
}

func init() {
	RootCmd.AddCommand(serveCmd)
}

// connectDriver builds and connects the S4 Driver from viper configuration,
// shared by every command that needs a live rower connection.
func connectDriver() (*s4.Driver, error) {
	driver := s4.New(s4.Config{
		PortName:        viper.GetString("SerialPort"),
		RefreshInterval: viper.GetDuration("RefreshInterval"),
		ActiveSubset:    viper.GetStringSlice("ActiveRegisters"),
		DataDir:         viper.GetString("RecordingFolder"),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := driver.Connect(ctx); err != nil {
		return nil, err
	}
	jww.INFO.Printf("commands: connected to S4 on %s", driver.PortName())
	return driver, nil
}

// runGateway is the outer orchestrator spec.md §2 and §9 describe as "out of
// scope" for the core components themselves: it owns the signal handler
// (spec.md §9 redesign flag — a leaf component must never call
// os.Exit/log.Fatal) and asks the Training Session to start/stop. It runs
// until SIGINT/SIGTERM and then tears components down in this order:
// Training Session (E), whose Stop closes the S4 Driver (B) and then
// disconnects the HRM Client (C), and finally the FTMS Peripheral (D).
func runGateway(driver *s4.Driver) error {
	peripheral := ftms.New(ble.NewTinygoPeripheral())
	periphCtx, periphCancel := context.WithCancel(context.Background())
	defer periphCancel()
	go peripheral.Run(periphCtx)
	// Peripheral.Subscribe's own goroutine exits once the S4 driver's
	// datapoints$ broadcaster closes, which Session.Stop (E) triggers by
	// closing the driver (B) — no separate unsubscribe call needed here.
	peripheral.Subscribe(driver)

	var hrmClient *hrm.Client
	if deviceID := viper.GetString("HRMDeviceID"); deviceID != "" {
		hrmClient = hrm.New(ble.NewTinygoCentral(), hrm.Config{})
		connectCtx, connectCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer connectCancel()
		if err := hrmClient.Connect(connectCtx, deviceID); err != nil {
			jww.WARN.Printf("commands: connecting to HRM %s: %v", deviceID, err)
			hrmClient = nil
		}
	}

	var sess *session.Session
	if hrmClient != nil {
		sess = session.New(driver, hrmClient, session.Config{})
	} else {
		sess = session.New(driver, nil, session.Config{})
	}
	if err := sess.Start(); err != nil {
		return err
	}
	jww.INFO.Printf("commands: training session %s started", sess.ID())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	received := <-sig
	jww.INFO.Printf("commands: shutting down (received %s)", received)

	// Stop (E) first: it already tears down its C/B subscriptions and
	// closes the HRM client and S4 driver as part of finishing. D (the
	// FTMS peripheral) is ours to stop explicitly, since the session never
	// owned it and neither adapter watches periphCtx for cancellation.
	samples, err := sess.Stop()
	if err != nil {
		jww.WARN.Printf("commands: stopping session: %v", err)
	}
	if err := peripheral.Stop(); err != nil {
		jww.WARN.Printf("commands: stopping ftms peripheral: %v", err)
	}

	summary := sess.Summary()
	payload := activity.Convert(summary, samples)
	jww.INFO.Printf("commands: session %s finished, %d points, %d cm", payload.SessionID, len(payload.Points), payload.FinalDistanceCm)

	return nil
}
