package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodieshq/goprov/internal/config"
	"github.com/goodieshq/goprov/internal/device"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.DebugLevel)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfgPath := flag.String("config", "", "path to device config (TOML)")
	flag.Parse()

	cfg := config.DefaultDevice()
	if *cfgPath != "" {
		var err error
		cfg, err = config.LoadDevice(*cfgPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load config")
		}
	}

	var err error
	if cfg.SerialPort != "" {
		err = runSerial(ctx, cfg)
	} else {
		err = runTCP(ctx, cfg)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Device stopped")
	}
	log.Info().Msg("Device stopped")
}

// agentOpts wires the simulated device callbacks.
func agentOpts(cfg config.Device) device.AgentOpts {
	return device.AgentOpts{
		Info: device.Info{
			Firmware: cfg.Firmware,
			Version:  cfg.Version,
			Hardware: cfg.Hardware,
			Name:     cfg.Name,
		},
		RequireAuthorization: cfg.RequireAuthorization,
		Provision: func(ctx context.Context, ssid, password string) (string, error) {
			if ssid == "" {
				return "", errors.New("empty ssid")
			}
			log.Info().Str("ssid", ssid).Msg("Connecting to network")
			select {
			case <-time.After(1500 * time.Millisecond):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			return cfg.RedirectURL, nil
		},
		Scan: func(context.Context) ([]device.Network, error) {
			return []device.Network{
				{SSID: "HomeWiFi", RSSI: -48, Secured: true},
				{SSID: "Guest", RSSI: -60, Secured: false},
				{SSID: "CoffeeShop", RSSI: -77, Secured: true},
			}, nil
		},
		OnCustom: func(_ context.Context, data [][]byte) ([]string, error) {
			fields := make([]string, len(data))
			for i, seg := range data {
				fields[i] = string(seg)
			}
			return fields, nil
		},
	}
}

// runSerial serves sessions over a serial port, reopening after each one.
func runSerial(ctx context.Context, cfg config.Device) error {
	log.Info().Str("port", cfg.SerialPort).Int("baud", cfg.BaudRate).Msg("Starting Improv device on serial port")

	port, err := serial.Open(cfg.SerialPort, &serial.Mode{BaudRate: cfg.BaudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}
	defer port.Close()

	go func() {
		// Unblock the read loop on shutdown.
		<-ctx.Done()
		port.Close()
	}()

	err = device.New(agentOpts(cfg)).Run(ctx, port)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// runTCP serves one agent session per connection.
func runTCP(ctx context.Context, cfg config.Device) error {
	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to start listener: %w", err)
	}
	defer listener.Close()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	log.Info().Str("addr", cfg.ListenAddr).Str("name", cfg.Name).Msg("Starting Improv device on TCP")

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil // shutting down
			}
			log.Error().Err(err).Msg("Failed to accept connection")
			continue
		}

		log.Debug().Str("remote_addr", conn.RemoteAddr().String()).Msg("Accepted new connection")
		go func() {
			defer conn.Close()
			if err := device.New(agentOpts(cfg)).Run(ctx, conn); err != nil {
				log.Error().Err(err).Msg("Session error")
			}
		}()
	}
}
