// Package ports finds listening dev-server ports on the loopback interface.
package ports

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

const dialTimeout = 50 * time.Millisecond

// Info describes an open port and, where the platform allows, its owner.
type Info struct {
	Port    int
	PID     int    // 0 when unknown
	Process string // "" when unknown
}

// Label renders the port the way the dashboard's status bar shows it.
func (i Info) Label() string {
	if i.Process != "" {
		return fmt.Sprintf(":%d %s", i.Port, i.Process)
	}
	return fmt.Sprintf(":%d", i.Port)
}

// Candidates are the ports commonly used by dev servers.
func Candidates() []int {
	var ports []int
	for _, r := range [][2]int{{3000, 3010}, {4000, 4010}, {5000, 5010}, {8000, 8010}} {
		for p := r[0]; p <= r[1]; p++ {
			ports = append(ports, p)
		}
	}
	return append(ports, 8080, 9000)
}

// Scan reports which candidate ports accept connections on 127.0.0.1,
// in ascending order.
func Scan(ctx context.Context) []Info {
	return scan(ctx, Candidates())
}

func scan(ctx context.Context, candidates []int) []Info {
	open := make([]bool, len(candidates))
	var wg sync.WaitGroup
	for i, port := range candidates {
		wg.Add(1)
		go func(i, port int) {
			defer wg.Done()
			open[i] = isOpen(ctx, port)
		}(i, port)
	}
	wg.Wait()

	var out []Info
	for i, port := range candidates {
		if !open[i] {
			continue
		}
		info := Info{Port: port}
		info.PID, info.Process = ownerOf(port)
		out = append(out, info)
	}
	return out
}

func isOpen(ctx context.Context, port int) bool {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// FindAvailable returns the first port in 3000-3010 that can be bound.
func FindAvailable() (int, bool) {
	for p := 3000; p <= 3010; p++ {
		if available(p) {
			return p, true
		}
	}
	return 0, false
}

func available(port int) bool {
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}
