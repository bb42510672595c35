package cmd

import (
	"context"
	"fmt"
	"math/big"
	"regexp"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/10gic/aasponsor/internal/config"
	"github.com/10gic/aasponsor/internal/intent"
	"github.com/10gic/aasponsor/internal/smartaccount"
	"github.com/10gic/aasponsor/internal/wallet"
)

const (
	txMintNFT   = "mint-nft"
	txSendEth   = "send-eth"
	txSendToken = "send-token"
)

var ethAddressRE = regexp.MustCompile("^0x[0-9a-fA-F]{40}$")

// contains returns true if array arr contains str.
func contains(arr []string, str string) bool {
	for _, a := range arr {
		if a == str {
			return true
		}
	}
	return false
}

// isValidEthAddress returns true if v is a valid eth address.
func isValidEthAddress(v string) bool {
	return ethAddressRE.MatchString(v)
}

// parseAddressOpt parses an optional address flag, def is returned when v is empty.
func parseAddressOpt(name, v string, def common.Address) (common.Address, error) {
	if v == "" {
		return def, nil
	}
	if !isValidEthAddress(v) {
		return common.Address{}, fmt.Errorf("invalid option for --%s: %v", name, v)
	}
	return common.HexToAddress(v), nil
}

// parseAmountOpt converts v in unit to wei, nil is returned when v is empty so the builder default applies.
func parseAmountOpt(v, unit string) (*big.Int, error) {
	if v == "" {
		return nil, nil
	}
	amt, err := decimal.NewFromString(v)
	if err != nil {
		return nil, fmt.Errorf("invalid option for --amount: %v", v)
	}
	if amt.IsNegative() {
		return nil, fmt.Errorf("invalid option for --amount: %v, must not be negative", v)
	}
	return intent.ToWei(amt, unit)
}

// Client holds the connections used by one command.
type Client struct {
	EthClient *ethclient.Client
	Bundler   *rpc.Client
	Paymaster *rpc.Client
}

func (c *Client) Close() {
	for _, rc := range []*rpc.Client{c.Bundler, c.Paymaster} {
		if rc != nil {
			rc.Close()
		}
	}
	if c.EthClient != nil {
		c.EthClient.Close()
	}
}

// dialChain connects to the chain rpc and checks it serves the configured chain.
func dialChain(ctx context.Context, cfg *config.Config) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("dial %s fail: %w", cfg.RpcUrl, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ChainID fail: %w", err)
	}
	if chainID.Int64() != cfg.ChainID {
		client.Close()
		return nil, fmt.Errorf("rpc %s serves chain %v, expect %v", cfg.RpcUrl, chainID, cfg.ChainID)
	}
	return client, nil
}

// session is what every command works with once the wallet is bootstrapped.
type session struct {
	client  *Client
	wallet  *wallet.Wallet
	account *smartaccount.Account
}

func (s *session) Close() {
	s.client.Close()
}

// bootstrap connects, loads or creates the identity and opens the smart account.
// withServices is false for commands that only read the chain.
func bootstrap(ctx context.Context, cfg *config.Config, withServices bool) (*session, error) {
	chain, err := dialChain(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client := &Client{EthClient: chain}

	factory := smartaccount.NewFactory(chain, cfg.AccountFactory, nil)
	w, err := wallet.Bootstrap(ctx, wallet.Options{CacheFile: cfg.CacheFile, Mnemonic: cfg.OwnerMnemonic}, factory)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("bootstrap wallet fail: %w", err)
	}
	s := &session{client: client, wallet: w}
	if !withServices {
		return s, nil
	}

	if client.Bundler, err = rpc.DialContext(ctx, cfg.BundlerUrl); err != nil {
		client.Close()
		return nil, fmt.Errorf("dial bundler fail: %w", err)
	}
	if client.Paymaster, err = rpc.DialContext(ctx, cfg.PaymasterURL()); err != nil {
		client.Close()
		return nil, fmt.Errorf("dial paymaster fail: %w", err)
	}

	s.account, err = smartaccount.New(chain, client.Bundler, client.Paymaster, factory, w.Key, w.SmartAccountAddress, smartaccount.Options{
		EntryPoint:   cfg.EntryPoint,
		ChainID:      big.NewInt(cfg.ChainID),
		EstimateGas:  globalOptEstimateGas,
		WaitTimeout:  cfg.WaitTimeout,
		PollInterval: cfg.PollInterval,
	})
	if err != nil {
		client.Close()
		return nil, err
	}
	log.WithFields(log.Fields{
		"owner":      s.account.Owner().Hex(),
		"account":    s.account.Address().Hex(),
		"entryPoint": cfg.EntryPoint.Hex(),
		"chainId":    cfg.ChainID,
	}).Debug("smart account ready")
	return s, nil
}

// intentOpts selects and parameterizes the transaction to send.
type intentOpts struct {
	kind   string
	to     string
	amount string
	unit   string
	token  string
}

// buildIntent builds the transaction selected by opts, the receiver defaults to the owner.
func buildIntent(cfg *config.Config, owner common.Address, opts intentOpts) (intent.Transaction, error) {
	receiver, err := parseAddressOpt("to", opts.to, owner)
	if err != nil {
		return intent.Transaction{}, err
	}
	amount, err := parseAmountOpt(opts.amount, opts.unit)
	if err != nil {
		return intent.Transaction{}, err
	}

	switch opts.kind {
	case txMintNFT:
		return intent.MintNFT(cfg.NftContract, receiver)
	case txSendEth:
		return intent.NativeTransfer(receiver, amount), nil
	case txSendToken:
		token, err := parseAddressOpt("token", opts.token, cfg.FeeToken)
		if err != nil {
			return intent.Transaction{}, err
		}
		return intent.TokenTransfer(token, receiver, amount)
	default:
		return intent.Transaction{}, fmt.Errorf("invalid option for --tx: %v", opts.kind)
	}
}
