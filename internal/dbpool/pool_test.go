package dbpool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenAppliesSchema(t *testing.T) {
	p, err := Open(":memory:", 4)
	require.NoError(t, err)
	defer p.Close()

	lease, err := p.Rent(context.Background())
	require.NoError(t, err)
	defer lease.Release()

	var name string
	err = lease.Conn.QueryRowContext(context.Background(),
		"SELECT name FROM sqlite_master WHERE type='table' AND name='search_document'").Scan(&name)
	require.NoError(t, err)
	require.Equal(t, "search_document", name)
}

func TestRentReleaseReusesConnection(t *testing.T) {
	p, err := Open(":memory:", 2)
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	l1, err := p.Rent(ctx)
	require.NoError(t, err)
	c1 := l1.Conn
	l1.Release()

	l2, err := p.Rent(ctx)
	require.NoError(t, err)
	defer l2.Release()
	require.Same(t, c1, l2.Conn)
}

func TestResetInvalidatesOutstandingLease(t *testing.T) {
	p, err := Open(":memory:", 2)
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	l1, err := p.Rent(ctx)
	require.NoError(t, err)

	p.Reset()
	l1.Release() // should discard rather than return to the bag

	l2, err := p.Rent(ctx)
	require.NoError(t, err)
	defer l2.Release()
	require.NotSame(t, l1.Conn, l2.Conn)
}

func TestRentBoundedByMaxSize(t *testing.T) {
	p, err := Open(":memory:", 1)
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	l1, err := p.Rent(ctx)
	require.NoError(t, err)

	ctx2, cancel := context.WithCancel(ctx)
	cancel()
	_, err = p.Rent(ctx2)
	require.Error(t, err, "pool at capacity with a canceled context should not block forever")

	l1.Release()
}
