package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	procs   []ProcessRecord
	socks   []SocketRecord
	procErr error
	sockErr error
}

func (f *fakeService) ListProcesses(ctx context.Context) ([]ProcessRecord, error) {
	return f.procs, f.procErr
}

func (f *fakeService) ListSockets(ctx context.Context) ([]SocketRecord, error) {
	return f.socks, f.sockErr
}

func TestFetchJoinsBothReads(t *testing.T) {
	svc := &fakeService{
		procs: []ProcessRecord{{PID: 1, Name: " init "}, {PID: 2, ParentPID: 1}},
		socks: []SocketRecord{{PIDs: []int{2}, LocalAddr: "127.0.0.1", LocalPort: 8080}},
	}

	res, err := Fetch(context.Background(), svc)
	require.NoError(t, err)
	assert.Len(t, res.Processes, 2)
	assert.Equal(t, "init", res.Processes[0].Name)
	assert.Len(t, res.Sockets, 1)
	assert.False(t, res.FetchedAt.IsZero())
}

func TestFetchFailure(t *testing.T) {
	tests := []struct {
		name string
		svc  *fakeService
		op   string
	}{
		{"processes", &fakeService{procErr: errors.New("denied")}, "listProcesses"},
		{"sockets", &fakeService{sockErr: errors.New("netlink")}, "listSockets"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fetch(context.Background(), tt.svc)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrQueryFailure)

			var qe *QueryError
			require.ErrorAs(t, err, &qe)
			assert.Equal(t, tt.op, qe.Op)
		})
	}
}

func TestNormalizeSockets(t *testing.T) {
	in := []SocketRecord{
		{PIDs: []int{3, 1, 3}, LocalPort: 22},
		{PIDs: nil, LocalPort: 53},
		{PIDs: []int{0, -1}, LocalPort: 80},
	}

	out := NormalizeSockets(in)
	require.Len(t, out, 1)
	assert.Equal(t, []int{1, 3}, out[0].PIDs)
	assert.Equal(t, 22, out[0].LocalPort)
}

func TestNormalizeProcessesKeepsDuplicates(t *testing.T) {
	out := NormalizeProcesses([]ProcessRecord{{PID: 5, ParentPID: -3}, {PID: 5}})
	require.Len(t, out, 2)
	assert.False(t, out[0].HasParent())
}

func TestSocketOwnedBy(t *testing.T) {
	s := SocketRecord{PIDs: []int{4, 9}}
	assert.True(t, s.OwnedBy(9))
	assert.False(t, s.OwnedBy(5))
}

func TestNewSystemServiceRejectsUnknownProtocol(t *testing.T) {
	_, err := NewSystemService([]string{"tcp", "sctp"}, true, nil)
	assert.Error(t, err)

	svc, err := NewSystemService([]string{"udp"}, false, nil)
	require.NoError(t, err)
	socks, err := svc.ListSockets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, socks)
}
