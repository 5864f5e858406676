// Command oarsman-gateway is the WaterRower S4 BLE gateway daemon.
package main

import (
	"os"

	"github.com/olympum/oarsman/commands"
	jww "github.com/spf13/jwalterweatherman"
)

func main() {
	if err := commands.Execute(); err != nil {
		jww.ERROR.Println(err)
		os.Exit(1)
	}
}
