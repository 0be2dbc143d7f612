// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cfgutil

import "net"

// NormalizeAddress returns addr as host:port, appending defaultPort when addr
// has no port.
func NormalizeAddress(addr, defaultPort string) (string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		return net.JoinHostPort(host, port), nil
	}

	// Only a missing port is repaired; anything else keeps the first
	// error.
	withPort := net.JoinHostPort(addr, defaultPort)
	if _, _, err2 := net.SplitHostPort(withPort); err2 != nil {
		return "", err
	}

	return withPort, nil
}

// NormalizeAddresses normalizes every address and drops duplicates, keeping
// the first occurrence order.
func NormalizeAddresses(addrs []string, defaultPort string) ([]string, error) {
	seen := make(map[string]struct{}, len(addrs))
	normalized := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		n, err := NormalizeAddress(addr, defaultPort)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		normalized = append(normalized, n)
	}

	return normalized, nil
}
