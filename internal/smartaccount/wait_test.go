package smartaccount

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	waitUserOpHash = common.HexToHash("0x1a2b")
	waitTxHash     = common.HexToHash("0x3c4d")
)

func TestWaitForTxHash(t *testing.T) {
	env := newTestEnv(t)
	env.bundler.readyAfter = 2
	env.bundler.byHash = &userOpByHash{EntryPoint: testEntryPoint, TransactionHash: &waitTxHash}

	got, err := env.account.WaitForTxHash(context.Background(), waitUserOpHash)
	require.NoError(t, err)
	assert.Equal(t, waitTxHash, got)
	assert.Equal(t, 3, env.bundler.lookups)
}

func TestWaitForTxHash_NotBundledYet(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.WaitTimeout = 50 * time.Millisecond })
	// known to the bundler but without a transaction yet
	env.bundler.byHash = &userOpByHash{EntryPoint: testEntryPoint}

	_, err := env.account.WaitForTxHash(context.Background(), waitUserOpHash)
	assert.ErrorIs(t, err, ErrWaitTimeout)
}

func TestGetUserOperationByHash_Pending(t *testing.T) {
	env := newTestEnv(t)
	// encoded with "transactionHash":null and "blockHash":null
	env.bundler.byHash = &userOpByHash{EntryPoint: testEntryPoint}

	got, err := env.account.getUserOperationByHash(context.Background(), waitUserOpHash)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, testEntryPoint, got.EntryPoint)
	assert.Nil(t, got.TransactionHash)
	assert.Nil(t, got.BlockHash)
}

func TestWaitForTxHash_ErrorsAreRetried(t *testing.T) {
	env := newTestEnv(t)
	env.bundler.failLookups = 2
	env.bundler.byHash = &userOpByHash{TransactionHash: &waitTxHash}

	got, err := env.account.WaitForTxHash(context.Background(), waitUserOpHash)
	require.NoError(t, err)
	assert.Equal(t, waitTxHash, got)
}

func TestWaitForReceipt(t *testing.T) {
	env := newTestEnv(t)
	env.bundler.readyAfter = 1
	env.bundler.receipt = &UserOpReceipt{
		UserOpHash:    waitUserOpHash,
		Sender:        testAccount,
		ActualGasCost: quantity(123456),
		Success:       true,
		Receipt:       TxReceipt{TransactionHash: waitTxHash, Status: quantity(1)},
	}

	got, err := env.account.WaitForReceipt(context.Background(), waitUserOpHash)
	require.NoError(t, err)
	assert.True(t, bool(got.Success))
	assert.Equal(t, waitTxHash, got.Receipt.TransactionHash)
	assert.Equal(t, int64(123456), got.ActualGasCost.BigInt().Int64())
}

func TestWaitForReceipt_Timeout(t *testing.T) {
	start := time.Now()
	env := newTestEnv(t, func(o *Options) {
		o.WaitTimeout = 50 * time.Millisecond
		o.PollInterval = 10 * time.Millisecond
	})
	env.bundler.readyAfter = 1 << 30

	got, err := env.account.WaitForReceipt(context.Background(), waitUserOpHash)
	assert.ErrorIs(t, err, ErrWaitTimeout)
	assert.Nil(t, got)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestWaitForReceipt_Canceled(t *testing.T) {
	env := newTestEnv(t)
	env.bundler.readyAfter = 1 << 30

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.account.WaitForReceipt(ctx, waitUserOpHash)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrWaitTimeout)
}
