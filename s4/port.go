package s4

import (
	"fmt"
	"io"
	"strings"

	jww "github.com/spf13/jwalterweatherman"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// Port is the narrow surface the driver needs from a serial connection.
// go.bug.st/serial.Port satisfies it directly; tests substitute an
// in-memory fake.
type Port interface {
	io.ReadWriteCloser
}

// vendorMatches is the substring test spec.md §4.B requires when
// auto-detecting the S4's USB CDC ACM port.
var vendorMatches = []string{
	"Microchip Technology, Inc.",
	"Microchip Technology Inc.",
}

// discoverPort enumerates available serial ports and returns the name of
// the first one whose USB product descriptor matches the S4's vendor
// strings.
func discoverPort() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("s4: enumerate ports: %w", err)
	}
	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		for _, want := range vendorMatches {
			if strings.Contains(p.Product, want) {
				return p.Name, nil
			}
		}
	}
	return "", ErrNoDeviceFound
}

const (
	baudRate = 19200
)

func openPort(name string) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("s4: open %s: %w", name, err)
	}
	jww.INFO.Printf("s4: opened port %s at %d baud", name, baudRate)
	return p, nil
}
