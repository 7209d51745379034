package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func prevTx() *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 3}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(1_000, []byte{0x51}))
	tx.AddTxOut(wire.NewTxOut(2_000, []byte{0x51, 0x20}))
	return tx
}

// rpcServer answers getrawtransaction for the transactions it knows.
func rpcServer(t *testing.T, txs ...*wire.MsgTx) *httptest.Server {
	t.Helper()
	known := make(map[string]string)
	for _, tx := range txs {
		var buf bytes.Buffer
		require.NoError(t, tx.Serialize(&buf))
		known[tx.TxHash().String()] = hex.EncodeToString(buf.Bytes())
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
			ID     json.RawMessage   `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := map[string]any{"id": req.ID, "result": nil, "error": nil}
		var txid string
		if req.Method == "getrawtransaction" && len(req.Params) > 0 {
			_ = json.Unmarshal(req.Params[0], &txid)
		}
		if raw, ok := known[txid]; ok {
			resp["result"] = raw
		} else {
			resp["error"] = map[string]any{"code": -5, "message": "No such mempool or blockchain transaction"}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := Dial(RPCConfig{
		Host:       strings.TrimPrefix(srv.URL, "http://"),
		User:       "user",
		Pass:       "pass",
		DisableTLS: true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestFetchPrevOutOverRPC(t *testing.T) {
	tx := prevTx()
	c := dial(t, rpcServer(t, tx))
	ctx := context.Background()

	out, err := c.FetchPrevOut(ctx, wire.OutPoint{Hash: tx.TxHash(), Index: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2_000), out.Value)
	assert.Equal(t, []byte{0x51, 0x20}, out.PkScript)

	_, err = c.FetchPrevOut(ctx, wire.OutPoint{Hash: tx.TxHash(), Index: 2})
	assert.ErrorIs(t, err, ErrUTXO)

	_, err = c.FetchPrevOut(ctx, wire.OutPoint{Index: 0})
	assert.ErrorIs(t, err, ErrClient)
}

func TestDialRequiresHost(t *testing.T) {
	_, err := Dial(RPCConfig{}, nil)
	assert.ErrorIs(t, err, ErrClient)
}

type fakeRPC struct {
	tx       *wire.MsgTx
	sent     []*wire.MsgTx
	sendErr  error
	shutdown bool
}

func (f *fakeRPC) GetRawTransaction(*chainhash.Hash) (*btcutil.Tx, error) {
	return btcutil.NewTx(f.tx), nil
}

func (f *fakeRPC) SendRawTransaction(tx *wire.MsgTx, _ bool) (*chainhash.Hash, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, tx)
	h := tx.TxHash()
	return &h, nil
}

func (f *fakeRPC) Shutdown() { f.shutdown = true }

func TestBroadcast(t *testing.T) {
	ctx := context.Background()
	tx := prevTx()

	rpc := &fakeRPC{}
	c := newClient(rpc, zaptest.NewLogger(t))
	txid, err := c.Broadcast(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, tx.TxHash(), *txid)
	assert.Len(t, rpc.sent, 1)

	rpc.sendErr = errors.New("rejected: min relay fee not met")
	_, err = c.Broadcast(ctx, tx)
	assert.ErrorIs(t, err, ErrClient)

	require.NoError(t, c.Close())
	assert.True(t, rpc.shutdown)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rpc := &fakeRPC{tx: prevTx()}
	c := newClient(rpc, nil)

	_, err := c.FetchPrevOut(ctx, wire.OutPoint{})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = c.Broadcast(ctx, prevTx())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rpc.sent)
}

func TestFetchPrevOutCopiesOutput(t *testing.T) {
	tx := prevTx()
	c := newClient(&fakeRPC{tx: tx}, nil)

	out, err := c.FetchPrevOut(context.Background(), wire.OutPoint{Index: 0})
	require.NoError(t, err)
	out.Value = 1
	assert.Equal(t, int64(1_000), tx.TxOut[0].Value)
}
