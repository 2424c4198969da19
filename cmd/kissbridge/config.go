// go-kiss
// Copyright (c) 2026 The TNCware Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-kiss.
//
// go-kiss is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-kiss is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-kiss; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	kiss "github.com/tncware/go-kiss"
	"github.com/tncware/go-kiss/transport/serial"
)

// bridgeConfig is the resolved runtime configuration. Persistence and
// full duplex carry explicit Set flags because zero and false are
// meaningful wire values; timed parameters use zero as "not sent".
type bridgeConfig struct {
	ListenAddr     string
	Device         string
	Hardware       string
	BaudRate       int
	TNCPort        int
	MaxClients     int
	TXDelay        time.Duration
	SlotTime       time.Duration
	TXTail         time.Duration
	Persistence    byte
	PersistenceSet bool
	FullDuplex     bool
	FullDuplexSet  bool
}

// kissbridge config.toml key mapping to bridge runtime settings.
type fileConfig struct {
	Listen      string `toml:"listen"`
	Device      string `toml:"device"`
	Baud        int    `toml:"baud"`
	Port        int    `toml:"port"`
	MaxClients  int    `toml:"max_clients"`
	TXDelay     string `toml:"txdelay"`
	Persistence int    `toml:"persistence"`
	SlotTime    string `toml:"slottime"`
	TXTail      string `toml:"txtail"`
	FullDuplex  bool   `toml:"fullduplex"`
	Hardware    string `toml:"hardware"`
}

func defaultBridgeConfig() bridgeConfig {
	return bridgeConfig{
		ListenAddr: "0.0.0.0:8001",
		BaudRate:   serial.DefaultBaudRate,
		MaxClients: 10,
	}
}

// loadBridgeConfig reads a TOML config file over the defaults. Only keys
// present in the file override; an empty path returns the defaults.
func loadBridgeConfig(path string) (bridgeConfig, error) {
	cfg := defaultBridgeConfig()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return bridgeConfig{}, fmt.Errorf("load bridge config: %w", err)
	}

	if meta.IsDefined("listen") {
		cfg.ListenAddr = strings.TrimSpace(raw.Listen)
	}
	if meta.IsDefined("device") {
		cfg.Device = strings.TrimSpace(raw.Device)
	}
	if meta.IsDefined("baud") {
		cfg.BaudRate = raw.Baud
	}
	if meta.IsDefined("port") {
		cfg.TNCPort = raw.Port
	}
	if meta.IsDefined("max_clients") {
		cfg.MaxClients = raw.MaxClients
	}
	if meta.IsDefined("txdelay") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.TXDelay))
		if err != nil {
			return bridgeConfig{}, fmt.Errorf("parse txdelay: %w", err)
		}
		cfg.TXDelay = d
	}
	if meta.IsDefined("persistence") {
		if raw.Persistence < 0 || raw.Persistence > 255 {
			return bridgeConfig{}, fmt.Errorf("persistence out of range: %d", raw.Persistence)
		}
		cfg.Persistence = byte(raw.Persistence)
		cfg.PersistenceSet = true
	}
	if meta.IsDefined("slottime") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.SlotTime))
		if err != nil {
			return bridgeConfig{}, fmt.Errorf("parse slottime: %w", err)
		}
		cfg.SlotTime = d
	}
	if meta.IsDefined("txtail") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.TXTail))
		if err != nil {
			return bridgeConfig{}, fmt.Errorf("parse txtail: %w", err)
		}
		cfg.TXTail = d
	}
	if meta.IsDefined("fullduplex") {
		cfg.FullDuplex = raw.FullDuplex
		cfg.FullDuplexSet = true
	}
	if meta.IsDefined("hardware") {
		cfg.Hardware = strings.TrimSpace(raw.Hardware)
	}

	return cfg, nil
}

// validate rejects configurations the bridge cannot start with.
func (c *bridgeConfig) validate() error {
	if c.Device == "" {
		return fmt.Errorf("device is required (flag -device or config key device)")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate: %d", c.BaudRate)
	}
	if c.TNCPort < 0 || c.TNCPort > 15 {
		return fmt.Errorf("invalid TNC port: %d", c.TNCPort)
	}
	if c.MaxClients <= 0 {
		return fmt.Errorf("invalid max clients: %d", c.MaxClients)
	}
	return nil
}

// encoderOptions translates the configured TNC parameters into session
// options; the resulting parameter frames go out when the bridge opens
// the TNC.
func (c *bridgeConfig) encoderOptions() []kiss.EncoderOption {
	var opts []kiss.EncoderOption
	if c.TXDelay > 0 {
		opts = append(opts, kiss.WithTXDelay(c.TXDelay))
	}
	if c.PersistenceSet {
		opts = append(opts, kiss.WithPersistence(c.Persistence))
	}
	if c.SlotTime > 0 {
		opts = append(opts, kiss.WithSlotTime(c.SlotTime))
	}
	if c.TXTail > 0 {
		opts = append(opts, kiss.WithTXTail(c.TXTail))
	}
	if c.FullDuplexSet {
		opts = append(opts, kiss.WithFullDuplex(c.FullDuplex))
	}
	if c.Hardware != "" {
		opts = append(opts, kiss.WithHardwareString(c.Hardware))
	}
	return opts
}
