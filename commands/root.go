package commands

import (
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/cobra"
)

var debug bool

// RootCmd is the entrypoint cobra.Command every subcommand registers onto
// in its init() function, matching the teacher's layout.
var RootCmd = &cobra.Command{
	Use:   "oarsman-gateway",
	Short: "WaterRower S4 BLE gateway daemon",
}

func init() {
	RootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	cobra.OnInitialize(func() {
		if debug {
			jww.SetLogThreshold(jww.LevelDebug)
			jww.SetStdoutThreshold(jww.LevelDebug)
		} else {
			jww.SetStdoutThreshold(jww.LevelInfo)
		}
	})
}

// Execute runs the root command, returning any error cobra surfaces.
func Execute() error {
	return RootCmd.Execute()
}
