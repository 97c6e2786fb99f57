package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runServer 啟動內嵌 NATS server（隨機埠）。
func runServer(t *testing.T) *server.Server {
	t.Helper()
	ns, err := server.NewServer(&server.Options{Port: -1, NoLog: true, NoSigs: true})
	require.NoError(t, err)
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		t.Fatal("embedded NATS server failed to start")
	}
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns
}

func TestNATSPublisher(t *testing.T) {
	ns := runServer(t)

	sub, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	defer sub.Close()
	ch := make(chan *nats.Msg, 4)
	_, err = sub.ChanSubscribe("test.accounts.>", ch)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	p, err := Connect(ns.ClientURL(), "test.accounts")
	require.NoError(t, err)
	defer p.Close()

	err = p.Publish(context.Background(), Event{
		Type:         TypeTransfer,
		Number:       1,
		Counterparty: 2,
		Amount:       decimal.RequireFromString("12.50"),
		Balance:      decimal.RequireFromString("87.50"),
	})
	require.NoError(t, err)

	select {
	case msg := <-ch:
		assert.Equal(t, "test.accounts.transfer", msg.Subject)
		var got Event
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, uint(1), got.Number)
		assert.Equal(t, uint(2), got.Counterparty)
		assert.True(t, got.Amount.Equal(decimal.RequireFromString("12.5")))
		assert.False(t, got.At.IsZero())
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}
}

func TestPublishCanceledContext(t *testing.T) {
	ns := runServer(t)
	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	p := NewNATSPublisher(nc, "")
	assert.Equal(t, "bank.accounts.deposit", p.Subject(TypeDeposit))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, Event{Type: TypeDeposit}), context.Canceled)

	// 外部連線不會被 Close 關閉
	p.Close()
	assert.True(t, nc.IsConnected())
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), Event{Type: TypeOpened}))
	p.Close()
}
