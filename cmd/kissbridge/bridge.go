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
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	kiss "github.com/tncware/go-kiss"
	"github.com/tncware/go-kiss/transport/i2c"
	"github.com/tncware/go-kiss/transport/serial"
)

// clientQueueDepth is how many frames may queue for one client before
// the bridge starts dropping. A stalled client must not back-pressure
// the radio side.
const clientQueueDepth = 32

// readBufferSize is the per-client read chunk size.
const readBufferSize = 4096

// client is one network KISS consumer.
type client struct {
	conn net.Conn
	out  chan []byte
	done chan struct{}
	id   int64
}

// bridge serves one TNC to many TCP clients: frames from the TNC fan
// out to every client, frames from any client go to the TNC.
type bridge struct {
	cfg      bridgeConfig
	tnc      *kiss.TNC
	listener net.Listener

	// mu guards clients, nextID and closed
	mu      sync.RWMutex
	clients map[int64]*client
	nextID  int64
	closed  bool

	// txMu serializes client frames onto the TNC transport
	txMu sync.Mutex
}

func newBridge(cfg bridgeConfig) *bridge {
	return &bridge{
		cfg:     cfg,
		clients: make(map[int64]*client),
	}
}

// run opens the TNC and the listener and serves until the context ends
// or the TNC link fails. Clients and listener are torn down before run
// returns; the TNC session is closed last.
func (b *bridge) run(ctx context.Context) error {
	transport, err := newTransport(b.cfg)
	if err != nil {
		return err
	}

	tnc, err := kiss.New(transport, b.cfg.TNCPort,
		kiss.WithEncoderOptions(b.cfg.encoderOptions()...))
	if err != nil {
		_ = transport.Close()
		return fmt.Errorf("failed to open TNC: %w", err)
	}
	b.tnc = tnc
	defer func() {
		if err := tnc.Close(); err != nil {
			logrus.WithError(err).Warn("TNC close failed")
		}
	}()

	listener, err := net.Listen("tcp", b.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", b.cfg.ListenAddr, err)
	}
	b.listener = listener

	logrus.WithFields(logrus.Fields{
		"device": b.cfg.Device,
		"listen": listener.Addr().String(),
		"port":   b.cfg.TNCPort,
	}).Info("bridge started")

	go b.acceptLoop()

	err = tnc.Listen(ctx, b.broadcast)
	b.shutdown()
	logrus.Info("bridge stopped")
	return err
}

// newTransport opens the configured TNC device. A path containing
// "i2c" selects the I2C transport, with an optional ":0xNN" address
// suffix; everything else is a serial port.
func newTransport(cfg bridgeConfig) (kiss.Transport, error) {
	if !strings.Contains(strings.ToLower(cfg.Device), "i2c") {
		transport, err := serial.New(cfg.Device, serial.WithBaudRate(cfg.BaudRate))
		if err != nil {
			return nil, fmt.Errorf("failed to open serial device: %w", err)
		}
		return transport, nil
	}

	bus := cfg.Device
	var opts []i2c.Option
	if idx := strings.LastIndex(bus, ":"); idx >= 0 {
		addr, err := strconv.ParseUint(bus[idx+1:], 0, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid I2C address in %q: %w", cfg.Device, err)
		}
		opts = append(opts, i2c.WithAddress(uint16(addr)))
		bus = bus[:idx]
	}
	transport, err := i2c.New(bus, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C device: %w", err)
	}
	return transport, nil
}

func (b *bridge) acceptLoop() {
	for {
		conn, err := b.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				logrus.WithError(err).Error("accept failed")
			}
			return
		}
		b.addClient(conn)
	}
}

func (b *bridge) addClient(conn net.Conn) {
	b.mu.Lock()
	if b.closed || len(b.clients) >= b.cfg.MaxClients {
		full := !b.closed
		b.mu.Unlock()
		if full {
			logrus.WithFields(logrus.Fields{
				"remoteAddr": conn.RemoteAddr().String(),
				"max":        b.cfg.MaxClients,
			}).Warn("client limit reached, rejecting")
		}
		_ = conn.Close()
		return
	}
	b.nextID++
	c := &client{
		id:   b.nextID,
		conn: conn,
		out:  make(chan []byte, clientQueueDepth),
		done: make(chan struct{}),
	}
	b.clients[c.id] = c
	count := len(b.clients)
	b.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"remoteAddr": conn.RemoteAddr().String(),
		"clients":    count,
	}).Info("client connected")

	go b.writeLoop(c)
	go b.readLoop(c)
}

// removeClient drops a client from the pool and closes its connection.
// Only the first caller for a given id does the teardown.
func (b *bridge) removeClient(id int64, reason error) {
	b.mu.Lock()
	c, ok := b.clients[id]
	if ok {
		delete(b.clients, id)
	}
	count := len(b.clients)
	b.mu.Unlock()
	if !ok {
		return
	}

	close(c.done)
	_ = c.conn.Close()

	entry := logrus.WithFields(logrus.Fields{
		"remoteAddr": c.conn.RemoteAddr().String(),
		"clients":    count,
	})
	if reason != nil && !errors.Is(reason, io.EOF) {
		entry.WithError(reason).Info("client disconnected")
		return
	}
	entry.Info("client disconnected")
}

// readLoop decodes frames from one client and forwards them to the TNC.
func (b *bridge) readLoop(c *client) {
	dec := kiss.NewDecoder()
	dec.OnFrame = func(frame kiss.Frame) {
		b.toTNC(c, frame)
	}

	buf := make([]byte, readBufferSize)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			if _, werr := dec.Write(buf[:n]); werr != nil {
				b.removeClient(c.id, werr)
				return
			}
		}
		if err != nil {
			b.removeClient(c.id, err)
			return
		}
	}
}

// writeLoop delivers queued frames to one client connection.
func (b *bridge) writeLoop(c *client) {
	for {
		select {
		case raw := <-c.out:
			if _, err := c.conn.Write(raw); err != nil {
				b.removeClient(c.id, err)
				return
			}
		case <-c.done:
			return
		}
	}
}

// broadcast fans one TNC frame out to every connected client. A client
// whose queue is full loses the frame rather than stalling the rest.
func (b *bridge) broadcast(frame kiss.Frame) {
	raw := encodeFrame(frame)

	logrus.WithFields(logrus.Fields{
		"port":  frame.Port(),
		"kind":  frame.Kind(),
		"bytes": len(frame.Data),
	}).Debug("frame from TNC")

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, c := range b.clients {
		select {
		case c.out <- raw:
		default:
			logrus.WithFields(logrus.Fields{
				"remoteAddr": c.conn.RemoteAddr().String(),
			}).Warn("client not draining, frame dropped")
		}
	}
}

// toTNC forwards one client frame to the TNC, preserving the client's
// command byte so multi-port traffic and parameter frames pass through.
func (b *bridge) toTNC(c *client, frame kiss.Frame) {
	raw := encodeFrame(frame)

	logrus.WithFields(logrus.Fields{
		"remoteAddr": c.conn.RemoteAddr().String(),
		"port":       frame.Port(),
		"kind":       frame.Kind(),
		"bytes":      len(frame.Data),
	}).Debug("frame from client")

	b.txMu.Lock()
	_, err := b.tnc.Transport().Write(raw)
	b.txMu.Unlock()
	if err != nil {
		logrus.WithError(err).Error("TNC write failed")
	}
}

// shutdown closes the listener and every client. New connections racing
// the shutdown are rejected by addClient.
func (b *bridge) shutdown() {
	if b.listener != nil {
		_ = b.listener.Close()
	}

	b.mu.Lock()
	b.closed = true
	ids := make([]int64, 0, len(b.clients))
	for id := range b.clients {
		ids = append(ids, id)
	}
	b.mu.Unlock()

	for _, id := range ids {
		b.removeClient(id, nil)
	}
}

// encodeFrame rebuilds the wire form of a decoded frame, preserving its
// original command byte. Content is escaped uniformly; the receiving
// decoder unescapes uniformly regardless of frame kind.
func encodeFrame(frame kiss.Frame) []byte {
	content := kiss.Escape(frame.Data)
	out := make([]byte, 0, len(content)+3)
	out = append(out, kiss.FEND, frame.Command)
	out = append(out, content...)
	out = append(out, kiss.FEND)
	return out
}
