package smartaccount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

// ErrWaitTimeout means the bundler did not report the operation in time, its final state is unknown.
var ErrWaitTimeout = errors.New("timed out, unknown final state")

// WaitForTxHash waits until the bundler has put the user operation in a transaction.
func (a *Account) WaitForTxHash(ctx context.Context, userOpHash common.Hash) (common.Hash, error) {
	var txHash common.Hash
	err := a.poll(ctx, "transaction hash", func(ctx context.Context) (bool, error) {
		res, err := a.getUserOperationByHash(ctx, userOpHash)
		if err != nil {
			return false, err
		}
		if res == nil || res.TransactionHash == nil || *res.TransactionHash == (common.Hash{}) {
			return false, nil
		}
		txHash = *res.TransactionHash
		return true, nil
	})
	return txHash, err
}

// WaitForReceipt waits until the user operation is included and returns its receipt.
func (a *Account) WaitForReceipt(ctx context.Context, userOpHash common.Hash) (*UserOpReceipt, error) {
	var receipt *UserOpReceipt
	err := a.poll(ctx, "receipt", func(ctx context.Context) (bool, error) {
		res, err := a.getUserOperationReceipt(ctx, userOpHash)
		if err != nil {
			return false, err
		}
		if res == nil {
			return false, nil
		}
		receipt = res
		return true, nil
	})
	return receipt, err
}

// poll calls check until it reports done, re-checking every PollInterval until WaitTimeout.
// Errors from check are treated as not found yet.
func (a *Account) poll(ctx context.Context, what string, check func(context.Context) (bool, error)) error {
	waitCtx, cancel := context.WithTimeout(ctx, a.opts.WaitTimeout)
	defer cancel()

	ticker := time.NewTicker(a.opts.PollInterval)
	defer ticker.Stop()

	for {
		done, err := check(waitCtx)
		if err != nil {
			log.Debugf("waiting for %s: %v", what, err)
		} else if done {
			return nil
		}

		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			return fmt.Errorf("%w: no %s after %s", ErrWaitTimeout, what, a.opts.WaitTimeout)
		case <-ticker.C:
		}
	}
}
