package query

import (
	"errors"
	"fmt"
)

// ProcessRecord is one process as reported by the query service. A record is
// never modified after it is fetched; a new fetch yields a new slice.
type ProcessRecord struct {
	PID            int     `json:"pid" yaml:"pid"`
	ParentPID      int     `json:"ppid,omitempty" yaml:"ppid,omitempty"` // 0 when absent
	Name           string  `json:"name,omitempty" yaml:"name,omitempty"`
	ExecutablePath string  `json:"exe,omitempty" yaml:"exe,omitempty"`
	MemoryBytes    *uint64 `json:"memory,omitempty" yaml:"memory,omitempty"`
	UptimeSeconds  *uint64 `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	CPUPercent     float64 `json:"cpu_usage,omitempty" yaml:"cpu_usage,omitempty"`
}

// HasParent reports whether the record names a parent pid.
func (r ProcessRecord) HasParent() bool {
	return r.ParentPID > 0
}

// Protocol is the transport of a socket.
type Protocol string

const (
	ProtocolTCP Protocol = "tcp"
	ProtocolUDP Protocol = "udp"
)

// SocketRecord is one socket and the processes that own it. Association with
// a process is by membership in PIDs; nothing is stored on the process.
type SocketRecord struct {
	PIDs       []int    `json:"pids" yaml:"pids"`
	Protocol   Protocol `json:"protocol" yaml:"protocol"`
	LocalAddr  string   `json:"local_addr" yaml:"local_addr"`
	LocalPort  int      `json:"local_port" yaml:"local_port"`
	RemoteAddr string   `json:"remote_addr,omitempty" yaml:"remote_addr,omitempty"`
	RemotePort int      `json:"remote_port,omitempty" yaml:"remote_port,omitempty"`
	State      string   `json:"state,omitempty" yaml:"state,omitempty"`
}

// OwnedBy reports whether pid is one of the socket's owners.
func (s SocketRecord) OwnedBy(pid int) bool {
	for _, p := range s.PIDs {
		if p == pid {
			return true
		}
	}
	return false
}

// ErrQueryFailure is wrapped by every error returned from a Service fetch.
var ErrQueryFailure = errors.New("query failure")

// QueryError records which fetch failed.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrQueryFailure, e.Err)
}

func (e *QueryError) Unwrap() []error {
	return []error{ErrQueryFailure, e.Err}
}

// Uint64 returns a pointer to v, for optional record fields.
func Uint64(v uint64) *uint64 {
	return &v
}
