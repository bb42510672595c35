// Package smartaccount drives an ERC-4337 SimpleAccount through a bundler and a Biconomy style paymaster.
package smartaccount

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	log "github.com/sirupsen/logrus"
	"github.com/stackup-wallet/stackup-bundler/pkg/userop"

	"github.com/10gic/aasponsor/internal/intent"
)

var (
	// Conservative limits, the paymaster recalculates them when calculateGasLimits is set.
	DefaultCallGasLimit         = big.NewInt(200000)
	DefaultVerificationGasLimit = big.NewInt(1000000)
	DefaultPreVerificationGas   = big.NewInt(50000)

	// Buffers applied on top of bundler estimations.
	// +5000 avoids "preVerificationGas: below expected gas", +20000 avoids "AA40 over verificationGasLimit".
	preVerificationGasBuffer   = big.NewInt(5000)
	verificationGasLimitBuffer = big.NewInt(20000)

	// Well formed ECDSA signature with no owner, only the length and shape matter for simulation.
	dummySignature = hexutil.MustDecode("0xfffffffffffffffffffffffffffffff0000000000000000000000000000000007aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1c")
)

// ChainClient is the subset of *ethclient.Client used by the account.
type ChainClient interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// Options configures an Account.
type Options struct {
	EntryPoint common.Address
	ChainID    *big.Int
	// EstimateGas asks the bundler for gas limits when building a user operation,
	// otherwise the defaults are used and the paymaster fills the real values.
	EstimateGas  bool
	WaitTimeout  time.Duration
	PollInterval time.Duration
}

// Account is a smart account handle owned by an EOA key.
type Account struct {
	chain     ChainClient
	bundler   *rpc.Client
	paymaster *rpc.Client
	factory   *Factory

	owner   *ecdsa.PrivateKey
	address common.Address
	opts    Options
}

// New returns the handle of the smart account at address, owned by owner.
func New(chain ChainClient, bundler, paymaster *rpc.Client, factory *Factory, owner *ecdsa.PrivateKey, address common.Address, opts Options) (*Account, error) {
	if owner == nil {
		return nil, errors.New("owner key is nil")
	}
	if opts.ChainID == nil || opts.ChainID.Sign() <= 0 {
		return nil, errors.New("chain id is not set")
	}
	if opts.EntryPoint == (common.Address{}) {
		return nil, errors.New("entry point is not set")
	}
	if opts.WaitTimeout <= 0 || opts.PollInterval <= 0 {
		return nil, errors.New("wait timeout and poll interval must be positive")
	}
	return &Account{
		chain:     chain,
		bundler:   bundler,
		paymaster: paymaster,
		factory:   factory,
		owner:     owner,
		address:   address,
		opts:      opts,
	}, nil
}

// Address returns the smart account address.
func (a *Account) Address() common.Address {
	return a.address
}

// Owner returns the EOA that controls the smart account.
func (a *Account) Owner() common.Address {
	return crypto.PubkeyToAddress(a.owner.PublicKey)
}

// BuildUserOp builds an unsigned user operation executing txs.
func (a *Account) BuildUserOp(ctx context.Context, txs []intent.Transaction) (*userop.UserOperation, error) {
	if len(txs) == 0 {
		return nil, errors.New("no transaction to execute")
	}
	callData, err := encodeCallData(txs)
	if err != nil {
		return nil, fmt.Errorf("encodeCallData fail: %w", err)
	}

	nonce, err := a.getNonce(ctx)
	if err != nil {
		return nil, fmt.Errorf("getNonce fail: %w", err)
	}

	initCode, err := a.initCode(ctx)
	if err != nil {
		return nil, err
	}

	maxFeePerGas, maxPriorityFeePerGas, err := a.gasFees(ctx)
	if err != nil {
		return nil, fmt.Errorf("gasFees fail: %w", err)
	}

	uo := &userop.UserOperation{
		Sender:               a.address,
		Nonce:                nonce,
		InitCode:             initCode,
		CallData:             callData,
		CallGasLimit:         new(big.Int).Set(DefaultCallGasLimit),
		VerificationGasLimit: new(big.Int).Set(DefaultVerificationGasLimit),
		PreVerificationGas:   new(big.Int).Set(DefaultPreVerificationGas),
		MaxFeePerGas:         maxFeePerGas,
		MaxPriorityFeePerGas: maxPriorityFeePerGas,
		PaymasterAndData:     []byte{},
		Signature:            dummySignature,
	}

	if a.opts.EstimateGas {
		gas, err := a.estimateUserOperationGas(ctx, uo)
		if err != nil {
			return nil, err
		}
		uo.PreVerificationGas = new(big.Int).Add(gas.PreVerificationGas, preVerificationGasBuffer)
		uo.VerificationGasLimit = new(big.Int).Add(gas.VerificationGasLimit, verificationGasLimitBuffer)
		uo.CallGasLimit = gas.CallGasLimit
	}

	log.WithFields(log.Fields{
		"sender":   uo.Sender.Hex(),
		"nonce":    uo.Nonce,
		"deployed": len(uo.InitCode) == 0,
		"calls":    len(txs),
	}).Debug("user operation built")
	return uo, nil
}

// SendUserOp signs uo with the owner key and hands it to the bundler. It returns the user operation hash.
func (a *Account) SendUserOp(ctx context.Context, uo *userop.UserOperation) (common.Hash, error) {
	userOpHash := uo.GetUserOpHash(a.opts.EntryPoint, a.opts.ChainID)
	sig, err := personalSign(userOpHash.Bytes(), a.owner)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign user operation fail: %w", err)
	}
	uo.Signature = sig
	log.Printf("userOpHash: %s", userOpHash)

	return a.sendUserOperation(ctx, uo)
}

// SendTransaction builds a user operation for tx, attaches the paymaster authorization and sends it.
func (a *Account) SendTransaction(ctx context.Context, tx intent.Transaction, data PaymasterServiceData) (common.Hash, error) {
	uo, err := a.BuildUserOp(ctx, []intent.Transaction{tx})
	if err != nil {
		return common.Hash{}, fmt.Errorf("BuildUserOp fail: %w", err)
	}
	pm, err := a.GetPaymasterAndData(ctx, uo, data)
	if err != nil {
		return common.Hash{}, fmt.Errorf("GetPaymasterAndData fail: %w", err)
	}
	ApplyPaymasterAndData(uo, pm)
	return a.SendUserOp(ctx, uo)
}

// ApplyPaymasterAndData copies the paymaster blob and the gas limits it was computed for onto uo.
// Limits missing from the response are left untouched.
func ApplyPaymasterAndData(uo *userop.UserOperation, pm *PaymasterAndDataResponse) {
	uo.PaymasterAndData = pm.PaymasterAndData
	if pm.CallGasLimit != nil {
		uo.CallGasLimit = pm.CallGasLimit
	}
	if pm.VerificationGasLimit != nil {
		uo.VerificationGasLimit = pm.VerificationGasLimit
	}
	if pm.PreVerificationGas != nil {
		uo.PreVerificationGas = pm.PreVerificationGas
	}
}

// getNonce queries function getNonce in EntryPoint with key 0.
func (a *Account) getNonce(ctx context.Context) (*big.Int, error) {
	input, err := entryPointABI.Pack("getNonce", a.address, big.NewInt(0))
	if err != nil {
		return nil, err
	}
	output, err := a.chain.CallContract(ctx, ethereum.CallMsg{To: &a.opts.EntryPoint, Data: input}, nil)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(output), nil
}

// initCode returns the factory call deploying the account, or nil once it is deployed.
func (a *Account) initCode(ctx context.Context) ([]byte, error) {
	code, err := a.chain.CodeAt(ctx, a.address, nil)
	if err != nil {
		return nil, fmt.Errorf("CodeAt fail: %w", err)
	}
	if len(code) > 0 {
		return nil, nil
	}
	if a.factory == nil {
		return nil, fmt.Errorf("account %s is not deployed and no factory is set", a.address)
	}
	return a.factory.InitCode(a.Owner())
}

// gasFees returns maxFeePerGas and maxPriorityFeePerGas, leaving room for two base fee increases.
func (a *Account) gasFees(ctx context.Context) (*big.Int, *big.Int, error) {
	tip, err := a.chain.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, err
	}
	header, err := a.chain.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	maxFee := new(big.Int).Set(tip)
	if header.BaseFee != nil {
		maxFee.Add(maxFee, new(big.Int).Mul(header.BaseFee, big.NewInt(2)))
	}
	return maxFee, tip, nil
}

// encodeCallData encodes one call as execute and several as executeBatch.
func encodeCallData(txs []intent.Transaction) ([]byte, error) {
	if len(txs) == 1 {
		return accountABI.Pack("execute", txs[0].To, txs[0].ValueOrZero(), txs[0].Data)
	}
	dest := make([]common.Address, len(txs))
	value := make([]*big.Int, len(txs))
	data := make([][]byte, len(txs))
	for i, tx := range txs {
		dest[i] = tx.To
		value[i] = tx.ValueOrZero()
		data[i] = tx.Data
	}
	return accountABI.Pack("executeBatch", dest, value, data)
}

// decodeCallData is the inverse of encodeCallData.
func decodeCallData(callData []byte) ([]intent.Transaction, error) {
	method, args, err := intent.Decode(accountABI, callData)
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "execute":
		return []intent.Transaction{{
			To:    args[0].(common.Address),
			Value: args[1].(*big.Int),
			Data:  args[2].([]byte),
		}}, nil
	case "executeBatch":
		dest := args[0].([]common.Address)
		value := args[1].([]*big.Int)
		data := args[2].([][]byte)
		if len(dest) != len(value) || len(dest) != len(data) {
			return nil, fmt.Errorf("executeBatch length mismatch: %d, %d, %d", len(dest), len(value), len(data))
		}
		txs := make([]intent.Transaction, len(dest))
		for i := range dest {
			txs[i] = intent.Transaction{To: dest[i], Value: value[i], Data: data[i]}
		}
		return txs, nil
	default:
		return nil, fmt.Errorf("unsupported account method %s", method.Name)
	}
}

func cloneUserOp(uo *userop.UserOperation) *userop.UserOperation {
	cp := *uo
	cp.Nonce = cloneBig(uo.Nonce)
	cp.CallGasLimit = cloneBig(uo.CallGasLimit)
	cp.VerificationGasLimit = cloneBig(uo.VerificationGasLimit)
	cp.PreVerificationGas = cloneBig(uo.PreVerificationGas)
	cp.MaxFeePerGas = cloneBig(uo.MaxFeePerGas)
	cp.MaxPriorityFeePerGas = cloneBig(uo.MaxPriorityFeePerGas)
	cp.InitCode = common.CopyBytes(uo.InitCode)
	cp.CallData = common.CopyBytes(uo.CallData)
	cp.PaymasterAndData = common.CopyBytes(uo.PaymasterAndData)
	cp.Signature = common.CopyBytes(uo.Signature)
	return &cp
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
