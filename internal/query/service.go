package query

import (
	"context"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Service is the external, privileged query service. Both operations are
// idempotent reads.
type Service interface {
	ListProcesses(ctx context.Context) ([]ProcessRecord, error)
	ListSockets(ctx context.Context) ([]SocketRecord, error)
}

// Result is one joined fetch: processes and sockets from the same refresh.
type Result struct {
	Processes []ProcessRecord
	Sockets   []SocketRecord
	FetchedAt time.Time
}

// Fetch issues both reads concurrently and returns only when both have
// settled. Either failure fails the whole fetch, so callers never see
// processes without their sockets or the reverse.
func Fetch(ctx context.Context, svc Service) (Result, error) {
	var (
		procs []ProcessRecord
		socks []SocketRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		procs, err = svc.ListProcesses(gctx)
		if err != nil {
			return asQueryError("listProcesses", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		socks, err = svc.ListSockets(gctx)
		if err != nil {
			return asQueryError("listSockets", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	return Result{
		Processes: NormalizeProcesses(procs),
		Sockets:   NormalizeSockets(socks),
		FetchedAt: time.Now(),
	}, nil
}

func asQueryError(op string, err error) error {
	if qe, ok := err.(*QueryError); ok {
		return qe
	}
	return &QueryError{Op: op, Err: err}
}

// NormalizeProcesses returns a copy with trimmed strings and negative parent
// pids treated as absent. Duplicate and invalid pids are left in place for the
// topology builder to reject.
func NormalizeProcesses(in []ProcessRecord) []ProcessRecord {
	out := make([]ProcessRecord, len(in))
	for i, r := range in {
		r.Name = strings.TrimSpace(r.Name)
		r.ExecutablePath = strings.TrimSpace(r.ExecutablePath)
		if r.ParentPID < 0 {
			r.ParentPID = 0
		}
		out[i] = r
	}
	return out
}

// NormalizeSockets drops sockets without owners and sorts and dedupes each
// owner set. Input order of sockets is preserved; first-match association
// depends on it.
func NormalizeSockets(in []SocketRecord) []SocketRecord {
	out := make([]SocketRecord, 0, len(in))
	for _, s := range in {
		pids := make([]int, 0, len(s.PIDs))
		for _, p := range s.PIDs {
			if p > 0 {
				pids = append(pids, p)
			}
		}
		if len(pids) == 0 {
			continue
		}
		slices.Sort(pids)
		s.PIDs = slices.Compact(pids)
		s.LocalAddr = strings.TrimSpace(s.LocalAddr)
		s.RemoteAddr = strings.TrimSpace(s.RemoteAddr)
		out = append(out, s)
	}
	return out
}
