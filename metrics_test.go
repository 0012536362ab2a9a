package ethcore

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestInstrumentTrans(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	chain := newMockChain()
	chain.failNext("eth_blockNumber", io.ErrUnexpectedEOF)
	chain.failNext("eth_sendRawTransaction", RpcError{Code: -32000, Message: "nonce too low"})
	trans := InstrumentTrans(chain, metrics)
	ctx := context.Background()

	_, err := EthBlockNumber(ctx, trans)
	require.True(t, IsRetryable(err))
	_, err = EthBlockNumber(ctx, trans)
	require.NoError(t, err)
	_, err = EthSendRawTransaction(ctx, trans, []byte{1})
	require.True(t, IsFatal(err))

	require.Equal(t, 2.0, testutil.ToFloat64(metrics.RpcCallsTotal.WithLabelValues("eth_blockNumber")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.RpcCallsTotal.WithLabelValues("eth_sendRawTransaction")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.RpcErrorsTotal.WithLabelValues("eth_blockNumber", "retryable")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.RpcErrorsTotal.WithLabelValues("eth_sendRawTransaction", "fatal")))
	require.Equal(t, 2, testutil.CollectAndCount(metrics.RpcCallDuration))

	select {
	case <-trans.Connected():
	default:
		t.Fatal("instrumented transport must delegate to the wrapped one")
	}
}

func TestMetricsRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	require.Panics(t, func() { NewMetrics(reg) })

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	require.Equal(t, "ethcore_tx_confirm_duration_seconds", families[0].GetName())
}

func TestNilMetrics(t *testing.T) {
	chain := newMockChain()
	require.Equal(t, Trans(chain), InstrumentTrans(chain, nil))

	var metrics *Metrics
	require.NotPanics(t, func() {
		metrics.observeTransition(TxSubmitted, TxPending)
		metrics.observeOutcome("confirmed", time.Now(), time.Now())
	})
}
