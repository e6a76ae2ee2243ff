// Container health probe: exits 0 when the API answers its health endpoint.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"
)

const probeTimeout = 2 * time.Second

func main() {
	if !healthy() {
		os.Exit(1)
	}
}

func healthy() bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	url := "http://" + probeAddr(os.Getenv("PRMONITOR_LISTEN_ADDR")) + "/api/v1/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := (&http.Client{Timeout: probeTimeout}).Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// probeAddr maps the configured bind address to something reachable from
// inside the container: a 0.0.0.0 bind is probed over loopback.
func probeAddr(raw string) string {
	if raw == "" {
		return "127.0.0.1:8080"
	}

	host, port, err := net.SplitHostPort(raw)
	if err != nil {
		return "127.0.0.1:8080"
	}
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
