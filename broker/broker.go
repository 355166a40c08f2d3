// Package broker runs an in-process MQTT broker for development and tests.
package broker

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	mqttserver "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
)

const readyTimeout = 5 * time.Second

var errConnectionDropped = errors.New("connection dropped by broker")

type Broker struct {
	server *mqttserver.Server
	addr   string
}

// Start listens on addr ("host:port") and accepts every client.
func Start(addr string, logger *slog.Logger) (*Broker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	server := mqttserver.New(&mqttserver.Options{Logger: logger})
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, fmt.Errorf("add auth hook: %w", err)
	}

	tcp := listeners.NewTCP(listeners.Config{ID: "zimage-tcp", Address: addr})
	if err := server.AddListener(tcp); err != nil {
		return nil, fmt.Errorf("add listener %s: %w", addr, err)
	}

	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve()
	}()

	b := &Broker{server: server, addr: addr}
	if err := b.waitReady(errc); err != nil {
		server.Close()
		return nil, err
	}
	logger.Info("embedded broker listening", "addr", addr)
	return b, nil
}

// StartLocal starts a broker on a free loopback port.
func StartLocal(logger *slog.Logger) (*Broker, error) {
	port, err := FreePort()
	if err != nil {
		return nil, err
	}
	return Start(fmt.Sprintf("127.0.0.1:%d", port), logger)
}

func (b *Broker) waitReady(errc <-chan error) error {
	deadline := time.Now().Add(readyTimeout)
	for time.Now().Before(deadline) {
		select {
		case err := <-errc:
			if err != nil {
				return fmt.Errorf("serve broker: %w", err)
			}
		default:
		}
		conn, err := net.DialTimeout("tcp", b.addr, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	return fmt.Errorf("broker on %s not ready after %s", b.addr, readyTimeout)
}

func (b *Broker) Addr() string {
	return b.addr
}

// URL is the address in the form bus clients expect.
func (b *Broker) URL() string {
	return "tcp://" + b.addr
}

// Drop closes the connection of a client without a DISCONNECT packet, as a
// crash or network failure would. The broker then publishes its will.
func (b *Broker) Drop(clientID string) bool {
	cl, ok := b.server.Clients.Get(clientID)
	if !ok {
		return false
	}
	cl.Stop(errConnectionDropped)
	return true
}

func (b *Broker) Close() error {
	return b.server.Close()
}

// FreePort asks the kernel for an unused TCP port.
func FreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
