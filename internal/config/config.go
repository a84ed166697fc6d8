package config

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
)

// Device configures the simulated Improv device.
type Device struct {
	Name                 string `toml:"name"`
	Firmware             string `toml:"firmware"`
	Version              string `toml:"version"`
	Hardware             string `toml:"hardware"`
	ListenAddr           string `toml:"listen_addr"`
	SerialPort           string `toml:"serial_port"`
	BaudRate             int    `toml:"baud_rate"`
	RedirectURL          string `toml:"redirect_url"`
	RequireAuthorization bool   `toml:"require_authorization"`
}

// DefaultDevice returns the configuration used when no file is given.
func DefaultDevice() Device {
	return Device{
		Name:       "goprov-device",
		Firmware:   "goprov",
		Version:    "1.0.0",
		Hardware:   "simulator",
		ListenAddr: ":7337",
		BaudRate:   115200,
	}
}

// LoadDevice reads a TOML device config, fills defaults, and validates it.
func LoadDevice(path string) (Device, error) {
	cfg := DefaultDevice()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Device{}, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if err := ValidateDevice(cfg); err != nil {
		return Device{}, err
	}
	return cfg, nil
}

func ValidateDevice(cfg Device) error {
	if cfg.Name == "" {
		return errors.New("name must not be empty")
	}
	if cfg.Firmware == "" {
		return errors.New("firmware must not be empty")
	}
	if cfg.SerialPort != "" && cfg.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate %d", cfg.BaudRate)
	}
	if cfg.SerialPort == "" && cfg.ListenAddr == "" {
		return errors.New("either serial_port or listen_addr is required")
	}
	return nil
}
