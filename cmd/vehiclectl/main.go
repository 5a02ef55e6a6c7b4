// Command vehiclectl is a thin CLI harness exercising the vehicle
// package's public surface: opening a connection, enumerating, arming,
// and streaming telemetry to the log.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/librescoot/vehicle-link/internal/events"
	"github.com/librescoot/vehicle-link/vehicle"
)

var (
	mode = flag.String("mode", "wired", "connection mode: wired, wireless, udp, enumerate")
	port = flag.String("port", "/dev/ttyUSB0", "serial port (wired/wireless/enumerate modes)")
	host = flag.String("host", "127.0.0.1", "tunnel host (udp mode)")
	udp  = flag.Int("udp", 9000, "tunnel UDP port (udp mode)")

	address = flag.Uint64("address", 0, "vehicle 64-bit address (wireless mode)")
	channel = flag.Uint("channel", 0x0C, "radio channel 0xC-0x17 (wireless mode)")
	config  = flag.Bool("config", false, "open in config-only mode")

	arm       = flag.Bool("arm", false, "arm the vehicle once connected")
	telemetry = flag.Bool("telemetry", false, "subscribe to telemetry once connected")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	c := vehicle.New()
	subscribeLogging(c)

	log.Printf("Starting vehiclectl in %s mode", *mode)
	if err := open(c); err != nil {
		log.Fatalf("Failed to open connection: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		time.Sleep(2 * time.Second)
		if *arm {
			if err := c.ArmHeli(); err != nil {
				log.Printf("Arm failed: %v", err)
			}
		}
		if *telemetry {
			c.StreamTelemetry(true)
		}
	}()

	<-sigCh
	log.Printf("Shutting down...")
	c.Close()
}

func open(c *vehicle.Client) error {
	switch *mode {
	case "wired":
		return c.OpenWired(*port, *config)
	case "wireless":
		return c.OpenWireless(*port, *address, uint8(*channel), *config)
	case "udp":
		return c.OpenUDPTunnel(*host, *udp)
	case "enumerate":
		return c.Enumerate(*port)
	default:
		log.Fatalf("Unknown mode %q", *mode)
		return nil
	}
}

func subscribeLogging(c *vehicle.Client) {
	bus := c.Events()
	bus.OnStateChange(func(e events.StateChange) {
		log.Printf("State changed: %d", e.State)
	})
	bus.OnVehicleFound(func(e events.VehicleFound) {
		log.Printf("Vehicle found: address=%016X channel=0x%02X", e.Address, e.Channel)
	})
	bus.OnTelemetry22(func(e events.Telemetry22) {
		log.Printf("Telemetry22: roll=%.1f pitch=%.1f yaw=%.1f batt=%.1fV", e.Roll, e.Pitch, e.Yaw, e.BattHeli)
	})
	bus.OnTelemetry23(func(e events.Telemetry23) {
		log.Printf("Telemetry23: lat=%.6f lng=%.6f pdop=%.1f", e.Lat, e.Lng, e.PDOP)
	})
}
