package smartaccount

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
	"github.com/stackup-wallet/stackup-bundler/pkg/userop"
)

// gasEstimate is the result of eth_estimateUserOperationGas.
// Example of success response:
// {"id":1,"jsonrpc":"2.0","result":{"preVerificationGas":42832,"verificationGas":19364,"callGasLimit":33100}}
type gasEstimate struct {
	PreVerificationGas   *Quantity `json:"preVerificationGas"`
	VerificationGasLimit *Quantity `json:"verificationGasLimit"`
	VerificationGas      *Quantity `json:"verificationGas"` // older bundlers
	CallGasLimit         *Quantity `json:"callGasLimit"`
}

type userOpGas struct {
	PreVerificationGas   *big.Int
	VerificationGasLimit *big.Int
	CallGasLimit         *big.Int
}

// userOpByHash is the result of eth_getUserOperationByHash, transactionHash is null until bundled.
type userOpByHash struct {
	EntryPoint      common.Address  `json:"entryPoint"`
	TransactionHash *common.Hash    `json:"transactionHash"`
	BlockHash       *common.Hash    `json:"blockHash"`
	BlockNumber     *Quantity       `json:"blockNumber"`
	UserOperation   json.RawMessage `json:"userOperation"`
}

// estimateUserOperationGas returns preVerificationGas, verificationGasLimit and callGasLimit.
func (a *Account) estimateUserOperationGas(ctx context.Context, uo *userop.UserOperation) (*userOpGas, error) {
	var res gasEstimate
	if err := a.bundler.CallContext(ctx, &res, "eth_estimateUserOperationGas", uo, a.opts.EntryPoint); err != nil {
		return nil, fmt.Errorf("eth_estimateUserOperationGas failed: %w", err)
	}
	verification := res.VerificationGasLimit
	if verification == nil {
		verification = res.VerificationGas
	}
	if res.PreVerificationGas == nil || verification == nil || res.CallGasLimit == nil {
		return nil, fmt.Errorf("eth_estimateUserOperationGas failed: incomplete result")
	}
	return &userOpGas{
		PreVerificationGas:   res.PreVerificationGas.BigInt(),
		VerificationGasLimit: verification.BigInt(),
		CallGasLimit:         res.CallGasLimit.BigInt(),
	}, nil
}

// sendUserOperation sends a signed user operation via the bundler api.
func (a *Account) sendUserOperation(ctx context.Context, uo *userop.UserOperation) (common.Hash, error) {
	if log.IsLevelEnabled(log.DebugLevel) {
		if body, err := uo.MarshalJSON(); err == nil {
			log.Debugf("eth_sendUserOperation params: %s, %s", body, a.opts.EntryPoint)
		}
	}

	// Example of error response:
	// {"error":{"code":-32507,"data":null,"message":"Invalid UserOp signature or paymaster signature"},"id":1,"jsonrpc":"2.0"}
	var userOpHash common.Hash
	if err := a.bundler.CallContext(ctx, &userOpHash, "eth_sendUserOperation", uo, a.opts.EntryPoint); err != nil {
		return common.Hash{}, fmt.Errorf("eth_sendUserOperation failed: %w", err)
	}
	return userOpHash, nil
}

// getUserOperationByHash returns nil when the bundler does not know the operation yet.
func (a *Account) getUserOperationByHash(ctx context.Context, userOpHash common.Hash) (*userOpByHash, error) {
	var res *userOpByHash
	if err := a.bundler.CallContext(ctx, &res, "eth_getUserOperationByHash", userOpHash); err != nil {
		return nil, err
	}
	return res, nil
}

// getUserOperationReceipt returns nil while the operation is not included.
func (a *Account) getUserOperationReceipt(ctx context.Context, userOpHash common.Hash) (*UserOpReceipt, error) {
	var res *UserOpReceipt
	if err := a.bundler.CallContext(ctx, &res, "eth_getUserOperationReceipt", userOpHash); err != nil {
		return nil, err
	}
	return res, nil
}
