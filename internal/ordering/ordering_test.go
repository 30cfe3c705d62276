package ordering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row map[Field]string

func (r row) SortValue(f Field) string { return r[f] }

func pids(rows []row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r[FieldPID]
	}
	return out
}

func TestCompareNatural(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"2", "10", -1},
		{"10", "2", 1},
		{"proc9", "proc10", -1},
		{"Bash", "bash", 0},
		{"ALPHA", "beta", -1},
		{"", "a", -1},
		{"", "0", -1},
		{"x", "", 1},
		{"", "", 0},
		{"99999999999999999999", "100000000000000000000", -1},
		{"100000000000000000000", "99999999999999999999", 1},
		{"id-99999999999999999999-b", "id-100000000000000000000-a", -1},
		{"000100000000000000000000", "99999999999999999999", 1},
		{"x12345678901234567890y", "x12345678901234567891a", -1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
		})
	}
}

type value string

func (v value) SortValue(Field) string { return string(v) }

func TestSortLongDigitRunsByValue(t *testing.T) {
	items := []value{"100000000000000000000", "99999999999999999999", "2", "18446744073709551616"}
	require.NoError(t, Sort(items, []Key{{Field: FieldPID, Direction: Asc}}))
	assert.Equal(t, []value{"2", "18446744073709551616", "99999999999999999999", "100000000000000000000"}, items)
}

func TestSortEmptyKeysKeepsOrder(t *testing.T) {
	items := []row{{FieldPID: "3"}, {FieldPID: "1"}, {FieldPID: "2"}}
	require.NoError(t, Sort(items, nil))
	assert.Equal(t, []string{"3", "1", "2"}, pids(items))
}

func TestSortAscThenDescIsReverse(t *testing.T) {
	items := []row{{FieldPID: "30"}, {FieldPID: "4"}, {FieldPID: "100"}, {FieldPID: "7"}}

	require.NoError(t, Sort(items, []Key{{FieldPID, Asc}}))
	asc := pids(items)
	assert.Equal(t, []string{"4", "7", "30", "100"}, asc)

	require.NoError(t, Sort(items, []Key{{FieldPID, Desc}}))
	desc := pids(items)
	for i := range asc {
		assert.Equal(t, asc[len(asc)-1-i], desc[i])
	}
}

func TestSortTieBreakAndStability(t *testing.T) {
	items := []row{
		{FieldPID: "5", FieldName: "sshd", FieldParentPID: "1"},
		{FieldPID: "3", FieldName: "bash", FieldParentPID: "2"},
		{FieldPID: "9", FieldName: "SSHD", FieldParentPID: "1"},
		{FieldPID: "4", FieldName: "bash", FieldParentPID: "1"},
		{FieldPID: "8", FieldName: "", FieldParentPID: ""},
	}

	require.NoError(t, Sort(items, []Key{{FieldName, Asc}, {FieldParentPID, Asc}}))
	// "" first; bash ppid 1 before ppid 2; sshd/SSHD tie keeps input order.
	assert.Equal(t, []string{"8", "4", "3", "5", "9"}, pids(items))
}

func TestSortRejectsUnknownField(t *testing.T) {
	items := []row{{FieldPID: "2"}, {FieldPID: "1"}}
	err := Sort(items, []Key{{Field: "cpu", Direction: Asc}})
	assert.ErrorIs(t, err, ErrUnsupportedSortKey)
	assert.Equal(t, []string{"2", "1"}, pids(items))

	err = Sort(items, []Key{{Field: FieldPID, Direction: "sideways"}})
	assert.ErrorIs(t, err, ErrUnsupportedSortKey)
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		in      string
		want    Key
		wantErr bool
	}{
		{"name", Key{FieldName, Asc}, false},
		{"Memory:DESC", Key{FieldMemory, Desc}, false},
		{"parent-pid:asc", Key{FieldParentPID, Asc}, false},
		{"local-port", Key{FieldPort, Asc}, false},
		{"uptime:desc", Key{FieldUptime, Desc}, false},
		{"cpu", Key{}, true},
		{"pid:up", Key{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKey(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedSortKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseKeysStopsAtFirstError(t *testing.T) {
	_, err := ParseKeys([]string{"pid", "bogus", "name"})
	assert.ErrorIs(t, err, ErrUnsupportedSortKey)

	keys, err := ParseKeys([]string{"pid:desc", "name"})
	require.NoError(t, err)
	assert.Equal(t, "pid:desc", keys[0].String())
	assert.Len(t, keys, 2)
}
