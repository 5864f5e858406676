package commands

import (
	"strings"

	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
)

// InitializeConfig wires viper the way the teacher's commands package did:
// a JSON config file named "oarsman" searched in the current directory and
// in $HOME/.oarsman, overridable by OARSMAN_-prefixed environment variables.
// The on-disk store itself is the out-of-scope configuration component
// (spec.md §1); this only reads it.
func InitializeConfig() {
	viper.SetConfigName("oarsman")
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.oarsman")
	viper.SetEnvPrefix("OARSMAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("SerialPort", "")
	viper.SetDefault("RefreshInterval", "200ms")
	viper.SetDefault("ActiveRegisters", []string{})
	viper.SetDefault("RecordingFolder", ".")
	viper.SetDefault("HRMDeviceID", "")
	viper.SetDefault("BLEAdapterID", "")

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			jww.WARN.Printf("commands: reading config: %v", err)
		}
	}
}
