package smartaccount

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	testEntryPoint = common.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")
	testFactory    = common.HexToAddress("0x9406Cc6185a346906296840746125a0E44976454")
	testAccount    = common.HexToAddress("0x6a6f8ad2d2a4f0b25ad4c3b33e32938c2b7fa0d4")
	testChainID    = big.NewInt(84532)
	testOwnerKey   = mustHexToKey("0x4f66baf5a1c3a91b6cf8173cdb60d12496e1f572cee6f9f86bc507d87a9790d7")
)

func mustHexToKey(s string) *ecdsa.PrivateKey {
	key, err := crypto.ToECDSA(hexutil.MustDecode(s))
	if err != nil {
		panic(err)
	}
	return key
}

func quantity(v int64) *Quantity {
	return (*Quantity)(big.NewInt(v))
}

func selector(contractABI abi.ABI, name string) string {
	return hexutil.Encode(contractABI.Methods[name].ID)
}

// mockChain dispatches CallContract on the target and the 4 bytes selector.
type mockChain struct {
	mock.Mock
}

func (m *mockChain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	args := m.Called(*msg.To, hexutil.Encode(msg.Data[:4]))
	if v := args.Get(0); v != nil {
		return v.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockChain) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	args := m.Called(account)
	if v := args.Get(0); v != nil {
		return v.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockChain) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.(*big.Int), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockChain) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.(*types.Header), args.Error(1)
	}
	return nil, args.Error(1)
}

// expectChain sets up a chain where the account has nonce, code, and a fee market of tip and baseFee.
func (m *mockChain) expectChain(nonce int64, code []byte, tip, baseFee *big.Int) {
	m.On("CallContract", testEntryPoint, selector(entryPointABI, "getNonce")).
		Return(common.LeftPadBytes(big.NewInt(nonce).Bytes(), 32), nil)
	m.On("CodeAt", testAccount).Return(code, nil)
	m.On("SuggestGasTipCap").Return(tip, nil)
	m.On("HeaderByNumber").Return(&types.Header{BaseFee: baseFee}, nil)
}

// fakeBundler serves the eth_ namespace of a bundler.
type fakeBundler struct {
	mu sync.Mutex

	sent        []map[string]any
	sendHash    common.Hash
	sendErr     error
	estimate    *gasEstimate
	byHash      *userOpByHash
	receipt     *UserOpReceipt
	readyAfter  int // lookups answered with null before the result is returned
	failLookups int // lookups answered with an error first
	lookups     int
}

func (b *fakeBundler) SendUserOperation(uo map[string]any, entryPoint common.Address) (common.Hash, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if entryPoint != testEntryPoint {
		return common.Hash{}, errors.New("unsupported entry point")
	}
	b.sent = append(b.sent, uo)
	return b.sendHash, b.sendErr
}

func (b *fakeBundler) EstimateUserOperationGas(uo map[string]any, entryPoint common.Address) (*gasEstimate, error) {
	return b.estimate, nil
}

func (b *fakeBundler) GetUserOperationByHash(userOpHash common.Hash) (*userOpByHash, error) {
	if !b.lookup() {
		return nil, nil
	}
	return b.byHash, nil
}

func (b *fakeBundler) GetUserOperationReceipt(userOpHash common.Hash) (*UserOpReceipt, error) {
	if !b.lookup() {
		return nil, nil
	}
	return b.receipt, nil
}

func (b *fakeBundler) lookup() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lookups++
	return b.lookups > b.readyAfter
}

// flakyBundler fails the first failLookups calls of eth_getUserOperationByHash.
type flakyBundler struct {
	*fakeBundler
}

func (b flakyBundler) GetUserOperationByHash(userOpHash common.Hash) (*userOpByHash, error) {
	b.mu.Lock()
	if b.failLookups > 0 {
		b.failLookups--
		b.mu.Unlock()
		return nil, errors.New("upstream unavailable")
	}
	b.mu.Unlock()
	return b.fakeBundler.GetUserOperationByHash(userOpHash)
}

// fakePaymaster serves the pm_ namespace and records the raw params it got.
type fakePaymaster struct {
	mu sync.Mutex

	quoteParams   []json.RawMessage
	sponsorParams []json.RawMessage
	quotes        *feeQuotesOrDataResult
	sponsor       *sponsorUserOperationResult
	err           error
}

func (p *fakePaymaster) GetFeeQuoteOrData(uo map[string]any, params json.RawMessage) (*feeQuotesOrDataResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quoteParams = append(p.quoteParams, params)
	return p.quotes, p.err
}

func (p *fakePaymaster) SponsorUserOperation(uo map[string]any, params json.RawMessage) (*sponsorUserOperationResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sponsorParams = append(p.sponsorParams, params)
	return p.sponsor, p.err
}

func dialFake(t *testing.T, namespace string, service any) *rpc.Client {
	t.Helper()
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName(namespace, service))
	client := rpc.DialInProc(server)
	t.Cleanup(func() {
		client.Close()
		server.Stop()
	})
	return client
}

type testEnv struct {
	chain     *mockChain
	bundler   *fakeBundler
	paymaster *fakePaymaster
	account   *Account
}

func newTestEnv(t *testing.T, opts ...func(*Options)) *testEnv {
	t.Helper()
	env := &testEnv{
		chain:     &mockChain{},
		bundler:   &fakeBundler{sendHash: common.HexToHash("0xabc")},
		paymaster: &fakePaymaster{},
	}
	options := Options{
		EntryPoint:   testEntryPoint,
		ChainID:      testChainID,
		WaitTimeout:  time.Second,
		PollInterval: 10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&options)
	}

	account, err := New(
		env.chain,
		dialFake(t, "eth", flakyBundler{env.bundler}),
		dialFake(t, "pm", env.paymaster),
		NewFactory(env.chain, testFactory, nil),
		testOwnerKey,
		testAccount,
		options,
	)
	require.NoError(t, err)
	env.account = account
	return env
}
