// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transport

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/walletbridge/internal/cfgutil"
	"github.com/btcsuite/walletbridge/netparams"
)

const (
	// defaultNetwork is used when the URL names no network.
	defaultNetwork = "mainnet"

	// defaultReconnectAttempts is the number of connection attempts made
	// on first use when the URL does not say otherwise.
	defaultReconnectAttempts = 3
)

// ErrInvalidURL is returned, wrapped, for every transport URL that cannot be
// turned into a Config.
var ErrInvalidURL = errors.New("invalid transport url")

// Config describes a backend connection.
type Config struct {
	// Conn is the rpcclient connection configuration.
	Conn *rpcclient.ConnConfig

	// Net is the network the backend is expected to serve.
	Net *netparams.Params

	// ReconnectAttempts bounds the attempts made when the connection is
	// first established.  Zero retries forever.
	ReconnectAttempts int
}

// Websocket reports whether the backend is reached over a websocket and
// therefore delivers block notifications.
func (c *Config) Websocket() bool {
	return !c.Conn.HTTPPostMode
}

// ParseConfig builds a Config from a transport URL of the form
//
//	scheme://[user:pass@]host[:port][?net=NAME&cert=FILE&reconnect=N]
//
// where scheme is ws, wss, http or https.  The port defaults to the backend
// RPC port of the selected network.  Nothing is dialed.
func ParseConfig(rawURL string) (*Config, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	conn := &rpcclient.ConnConfig{
		Endpoint:            "ws",
		DisableConnectOnNew: true,
	}
	switch u.Scheme {
	case "ws":
		conn.DisableTLS = true
	case "wss":
	case "http":
		conn.DisableTLS = true
		conn.HTTPPostMode = true
	case "https":
		conn.HTTPPostMode = true
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL,
			u.Scheme)
	}

	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	if u.Path != "" && u.Path != "/" {
		return nil, fmt.Errorf("%w: unexpected path %q", ErrInvalidURL,
			u.Path)
	}
	if u.Fragment != "" {
		return nil, fmt.Errorf("%w: unexpected fragment", ErrInvalidURL)
	}

	if u.User != nil {
		conn.User = u.User.Username()
		conn.Pass, _ = u.User.Password()
	}

	cfg := &Config{
		Conn:              conn,
		ReconnectAttempts: defaultReconnectAttempts,
	}

	network := defaultNetwork
	for key, values := range u.Query() {
		if len(values) != 1 {
			return nil, fmt.Errorf("%w: parameter %q given %d times",
				ErrInvalidURL, key, len(values))
		}
		value := values[0]

		switch key {
		case "net":
			network = value

		case "cert":
			certs, err := readCert(value)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
			}
			conn.Certificates = certs

		case "reconnect":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%w: reconnect must be a "+
					"non-negative integer, got %q",
					ErrInvalidURL, value)
			}
			cfg.ReconnectAttempts = n

		default:
			return nil, fmt.Errorf("%w: unknown parameter %q",
				ErrInvalidURL, key)
		}
	}

	cfg.Net, err = netparams.ByName(network)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	host := u.Host
	if u.Port() == "" {
		host = u.Hostname()
	}
	conn.Host, err = cfgutil.NormalizeAddress(host, cfg.Net.RPCClientPort)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	return cfg, nil
}

// readCert loads a PEM encoded certificate used to verify the backend.
func readCert(path string) ([]byte, error) {
	path = cfgutil.CleanAndExpandPath(path)

	exists, err := cfgutil.FileExists(path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("certificate %s does not exist", path)
	}

	return os.ReadFile(path)
}
