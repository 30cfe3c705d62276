package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// SystemService queries the local host through gopsutil. Reading other
// users' executables and sockets may need elevated privileges; fields that
// cannot be read are left absent rather than failing the whole fetch.
type SystemService struct {
	protocols []Protocol
	sockets   bool
	log       *slog.Logger
	now       func() time.Time
}

// NewSystemService creates a service for the given socket protocols. With
// sockets disabled ListSockets always returns an empty list.
func NewSystemService(protocols []string, sockets bool, log *slog.Logger) (*SystemService, error) {
	s := &SystemService{sockets: sockets, log: log, now: time.Now}
	for _, p := range protocols {
		switch Protocol(p) {
		case ProtocolTCP, ProtocolUDP:
			s.protocols = append(s.protocols, Protocol(p))
		default:
			return nil, fmt.Errorf("unsupported socket protocol %q", p)
		}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s, nil
}

// ListProcesses enumerates every visible process.
func (s *SystemService) ListProcesses(ctx context.Context) ([]ProcessRecord, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, &QueryError{Op: "listProcesses", Err: err}
	}

	now := s.now()
	records := make([]ProcessRecord, 0, len(procs))
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return nil, &QueryError{Op: "listProcesses", Err: err}
		}
		rec := ProcessRecord{PID: int(p.Pid)}
		if ppid, err := p.PpidWithContext(ctx); err == nil && ppid > 0 {
			rec.ParentPID = int(ppid)
		}
		if name, err := p.NameWithContext(ctx); err == nil {
			rec.Name = name
		}
		if exe, err := p.ExeWithContext(ctx); err == nil {
			rec.ExecutablePath = exe
		}
		if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
			rec.MemoryBytes = Uint64(mem.RSS)
		}
		if created, err := p.CreateTimeWithContext(ctx); err == nil && created > 0 {
			up := now.Sub(time.UnixMilli(created))
			if up < 0 {
				up = 0
			}
			rec.UptimeSeconds = Uint64(uint64(up / time.Second))
		}
		if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
			rec.CPUPercent = cpu
		}
		records = append(records, rec)
	}

	s.log.Debug("listed processes", "count", len(records))
	return records, nil
}

type socketKey struct {
	proto      Protocol
	localAddr  string
	localPort  uint32
	remoteAddr string
	remotePort uint32
}

// ListSockets enumerates sockets for the configured protocols and groups
// per-pid connection entries into one record per socket.
func (s *SystemService) ListSockets(ctx context.Context) ([]SocketRecord, error) {
	if !s.sockets {
		return []SocketRecord{}, nil
	}

	var (
		order []socketKey
		byKey = make(map[socketKey]*SocketRecord)
	)
	for _, proto := range s.protocols {
		conns, err := psnet.ConnectionsWithContext(ctx, string(proto))
		if err != nil {
			return nil, &QueryError{Op: "listSockets", Err: err}
		}
		for _, c := range conns {
			key := socketKey{
				proto:      proto,
				localAddr:  c.Laddr.IP,
				localPort:  c.Laddr.Port,
				remoteAddr: c.Raddr.IP,
				remotePort: c.Raddr.Port,
			}
			rec, ok := byKey[key]
			if !ok {
				rec = &SocketRecord{
					Protocol:  proto,
					LocalAddr: c.Laddr.IP,
					LocalPort: int(c.Laddr.Port),
				}
				if proto == ProtocolTCP {
					rec.RemoteAddr = c.Raddr.IP
					rec.RemotePort = int(c.Raddr.Port)
					rec.State = c.Status
				}
				byKey[key] = rec
				order = append(order, key)
			}
			if c.Pid > 0 && !rec.OwnedBy(int(c.Pid)) {
				rec.PIDs = append(rec.PIDs, int(c.Pid))
			}
		}
	}

	out := make([]SocketRecord, 0, len(order))
	for _, k := range order {
		out = append(out, *byKey[k])
	}
	s.log.Debug("listed sockets", "count", len(out))
	return out, nil
}
