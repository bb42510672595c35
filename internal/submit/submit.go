// Package submit sends a transaction intent from a smart account with its gas covered by a paymaster.
package submit

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stackup-wallet/stackup-bundler/pkg/userop"

	"github.com/10gic/aasponsor/internal/intent"
	"github.com/10gic/aasponsor/internal/smartaccount"
)

// FeeQuoteMargin inflates the quoted maxGasFee, gas prices may rise between quoting and execution.
var FeeQuoteMargin = decimal.RequireFromString("1.2")

var ErrNoFeeQuote = errors.New("paymaster returned no fee quote")

// SmartAccount is what the submitter needs from a smart account. *smartaccount.Account implements it.
type SmartAccount interface {
	BuildUserOp(ctx context.Context, txs []intent.Transaction) (*userop.UserOperation, error)
	GetFeeQuotesOrData(ctx context.Context, uo *userop.UserOperation, req smartaccount.FeeQuotesRequest) (*smartaccount.FeeQuotesResponse, error)
	BuildTokenPaymasterUserOp(uo *userop.UserOperation, req smartaccount.TokenPaymasterRequest) (*userop.UserOperation, error)
	GetPaymasterAndData(ctx context.Context, uo *userop.UserOperation, data smartaccount.PaymasterServiceData) (*smartaccount.PaymasterAndDataResponse, error)
	SendUserOp(ctx context.Context, uo *userop.UserOperation) (common.Hash, error)
	SendTransaction(ctx context.Context, tx intent.Transaction, data smartaccount.PaymasterServiceData) (common.Hash, error)
	WaitForTxHash(ctx context.Context, userOpHash common.Hash) (common.Hash, error)
	WaitForReceipt(ctx context.Context, userOpHash common.Hash) (*smartaccount.UserOpReceipt, error)
}

// Mode is how the gas of the submission is paid.
type Mode int

const (
	// ModeSponsored: the paymaster pays unconditionally, from the gas tank.
	ModeSponsored Mode = iota
	// ModeERC20: the smart account pays the paymaster in an ERC-20 token.
	ModeERC20
)

func (m Mode) String() string {
	switch m {
	case ModeSponsored:
		return "sponsored"
	case ModeERC20:
		return "erc20"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "sponsored" or "erc20".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "sponsored":
		return ModeSponsored, nil
	case "erc20":
		return ModeERC20, nil
	default:
		return 0, fmt.Errorf("invalid mode %q, expect sponsored | erc20", s)
	}
}

// Outcome is the final state observed for a submission.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeIncluded
	OutcomeReverted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIncluded:
		return "included"
	case OutcomeReverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// Result is what is known about a submission. Fields are filled as far as the submission got.
type Result struct {
	UserOpHash common.Hash
	TxHash     common.Hash
	Receipt    *smartaccount.UserOpReceipt
	Outcome    Outcome
}

// Submitter sends intents through a smart account.
type Submitter struct {
	account  SmartAccount
	feeToken common.Address
}

// New returns a Submitter. feeToken is only used in ModeERC20 and must be allow-listed in the paymaster.
func New(account SmartAccount, feeToken common.Address) *Submitter {
	return &Submitter{account: account, feeToken: feeToken}
}

// Submit sends tx and waits for its transaction hash then its receipt.
// Nothing is retried. When a wait times out the error wraps smartaccount.ErrWaitTimeout and the
// returned Result has OutcomeUnknown.
func (s *Submitter) Submit(ctx context.Context, tx intent.Transaction, mode Mode) (*Result, error) {
	var userOpHash common.Hash
	var err error
	switch mode {
	case ModeSponsored:
		userOpHash, err = s.sendSponsored(ctx, tx)
	case ModeERC20:
		userOpHash, err = s.sendTokenSponsored(ctx, tx)
	default:
		return nil, fmt.Errorf("unsupported mode %v", mode)
	}
	if err != nil {
		return nil, err
	}

	res := &Result{UserOpHash: userOpHash, Outcome: OutcomeUnknown}

	res.TxHash, err = s.account.WaitForTxHash(ctx, userOpHash)
	if err != nil {
		return res, fmt.Errorf("wait for transaction hash of %s fail: %w", userOpHash, err)
	}
	log.Printf("Transaction Hash %s", res.TxHash)

	res.Receipt, err = s.account.WaitForReceipt(ctx, userOpHash)
	if err != nil {
		return res, fmt.Errorf("wait for receipt of %s fail: %w", userOpHash, err)
	}
	if res.Receipt.Success {
		res.Outcome = OutcomeIncluded
	} else {
		res.Outcome = OutcomeReverted
	}
	log.Printf("Transaction receipt success: %v", bool(res.Receipt.Success))

	return res, nil
}

// sendSponsored attaches a sponsored directive, the gas tank must hold enough ETH.
func (s *Submitter) sendSponsored(ctx context.Context, tx intent.Transaction) (common.Hash, error) {
	userOpHash, err := s.account.SendTransaction(ctx, tx, smartaccount.PaymasterServiceData{
		Mode:               smartaccount.ModeSponsored,
		CalculateGasLimits: true,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("send sponsored transaction fail: %w", err)
	}
	return userOpHash, nil
}

// sendTokenSponsored negotiates the fee with the paymaster: build, quote, build with approval, sponsor.
// The smart account must hold enough fee token, and the token must be whitelisted for transfer and approve.
func (s *Submitter) sendTokenSponsored(ctx context.Context, tx intent.Transaction) (common.Hash, error) {
	uo, err := s.account.BuildUserOp(ctx, []intent.Transaction{tx})
	if err != nil {
		return common.Hash{}, fmt.Errorf("BuildUserOp fail: %w", err)
	}

	quotes, err := s.account.GetFeeQuotesOrData(ctx, uo, smartaccount.FeeQuotesRequest{
		Mode:      smartaccount.ModeERC20,
		TokenList: []common.Address{s.feeToken},
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("GetFeeQuotesOrData fail: %w", err)
	}
	if len(quotes.FeeQuotes) == 0 {
		return common.Hash{}, fmt.Errorf("%w for token %s", ErrNoFeeQuote, s.feeToken.Hex())
	}

	quote := WithMargin(quotes.FeeQuotes[0])
	log.Printf("maxGasFee: %s, exchangeRate: %s", quote.MaxGasFee, quote.ExchangeRate)

	final, err := s.account.BuildTokenPaymasterUserOp(uo, smartaccount.TokenPaymasterRequest{
		FeeQuote:    quote,
		Spender:     quotes.TokenPaymasterAddress,
		MaxApproval: false,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("BuildTokenPaymasterUserOp fail: %w", err)
	}

	feeToken := quote.TokenAddress
	pm, err := s.account.GetPaymasterAndData(ctx, final, smartaccount.PaymasterServiceData{
		Mode:               smartaccount.ModeERC20,
		FeeTokenAddress:    &feeToken,
		CalculateGasLimits: true,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("GetPaymasterAndData fail: %w", err)
	}
	smartaccount.ApplyPaymasterAndData(final, pm)

	userOpHash, err := s.account.SendUserOp(ctx, final)
	if err != nil {
		return common.Hash{}, fmt.Errorf("SendUserOp fail: %w", err)
	}
	return userOpHash, nil
}

// WithMargin returns a copy of quote with MaxGasFee multiplied by FeeQuoteMargin.
func WithMargin(quote smartaccount.FeeQuote) smartaccount.FeeQuote {
	quote.MaxGasFee = quote.MaxGasFee.Mul(FeeQuoteMargin)
	return quote
}
