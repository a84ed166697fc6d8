package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodieshq/goprov/internal/client"
	"github.com/goodieshq/goprov/internal/protocol"
	"github.com/goodieshq/goprov/internal/utils"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	addr := flag.String("addr", "", "TCP address of the device (e.g. 192.168.4.1:7337)")
	port := flag.String("serial", "", "serial port of the device (e.g. /dev/ttyUSB0)")
	baud := flag.Int("baud", 115200, "serial baud rate")
	timeout := flag.Duration("timeout", 5*time.Second, "per-frame read timeout")
	info := flag.Bool("info", false, "query device info")
	state := flag.Bool("state", false, "query current provisioning state")
	scan := flag.Bool("scan", false, "scan for visible networks")
	ssid := flag.String("ssid", "", "network to provision")
	pass := flag.String("pass", "", "network password")
	flag.Parse()

	rw, err := openTransport(*addr, *port, *baud)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open transport")
	}
	defer rw.Close()

	cli := client.New(rw, utils.Ptr(*timeout))

	if !*info && !*state && !*scan && *ssid == "" {
		flag.Usage()
		os.Exit(2)
	}

	if *info {
		di, err := cli.DeviceInfo(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to query device info")
		}
		log.Info().
			Str("firmware", di.Firmware).
			Str("version", di.Version).
			Str("hardware", di.Hardware).
			Str("name", di.Name).
			Msg("Device info")
	}

	if *state {
		st, err := cli.CurrentState(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to query state")
		}
		log.Info().Str("state", protocol.StateToString(st)).Msg("Device state")
	}

	if *scan {
		networks, err := cli.ScanNetworks(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Network scan failed")
		}
		for _, n := range networks {
			log.Info().
				Str("ssid", n.SSID).
				Int("rssi", n.RSSI).
				Bool("secured", n.Secured).
				Msg("Network found")
		}
		log.Info().Int("count", len(networks)).Msg("Scan complete")
	}

	if *ssid != "" {
		log.Info().Str("ssid", *ssid).Msg("Provisioning device")
		url, err := cli.Provision(ctx, *ssid, *pass)
		if err != nil {
			log.Fatal().Err(err).Msg("Provisioning failed")
		}
		evt := log.Info().Str("ssid", *ssid)
		if url != "" {
			evt = evt.Str("redirect_url", url)
		}
		evt.Msg("Device provisioned")
	}
}

func openTransport(addr, port string, baud int) (io.ReadWriteCloser, error) {
	switch {
	case addr != "" && port != "":
		return nil, fmt.Errorf("choose either -addr or -serial, not both")
	case addr != "":
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
		}
		return conn, nil
	case port != "":
		p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
		if err != nil {
			return nil, fmt.Errorf("failed to open serial port %s: %w", port, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("a transport is required: -addr or -serial")
	}
}
