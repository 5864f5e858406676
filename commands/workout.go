package commands

import (
	"time"

	"github.com/olympum/oarsman/s4"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
)

var workoutDistance uint64
var workoutDuration time.Duration

var workoutCmd = &cobra.Command{
	Use:   "workout",
	Short: "Define a distance or duration workout on the rowing monitor, then start the gateway",
	Long: `
Pushes a single workout definition (distance or duration) to the S4's
own display before running the same session/FTMS/HRM loop as "serve".
A distance workout and a duration workout are mutually exclusive; when
both are zero no workout is defined and the display keeps whatever the
rower was last set to.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		InitializeConfig()
		driver, err := connectDriver()
		if err != nil {
			return err
		}

		switch {
		case workoutDistance > 0:
			if err := driver.DefineDistanceWorkout(uint32(workoutDistance), s4.UnitMeters); err != nil {
				jww.WARN.Printf("commands: define distance workout: %v", err)
			}
			if err := driver.DisplaySetDistance(s4.DisplayMeters); err != nil {
				jww.WARN.Printf("commands: set display distance: %v", err)
			}
		case workoutDuration > 0:
			if err := driver.DefineDurationWorkout(uint32(workoutDuration.Seconds())); err != nil {
				jww.WARN.Printf("commands: define duration workout: %v", err)
			}
		}

		return runGateway(driver)
	},
}

func init() {
	workoutCmd.Flags().Uint64Var(&workoutDistance, "distance", 0, "distance of workout in meters (0 disables)")
	workoutCmd.Flags().DurationVar(&workoutDuration, "duration", 0, "duration of workout, e.g. 30m (0 disables)")
	RootCmd.AddCommand(workoutCmd)
}
