package smartaccount

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	log "github.com/sirupsen/logrus"
	"github.com/stackup-wallet/stackup-bundler/pkg/userop"

	"github.com/10gic/aasponsor/internal/intent"
)

var (
	ErrNoSpender  = errors.New("token paymaster address (spender) is missing")
	ErrNoFeeToken = errors.New("fee quote token address is missing")
)

// maxApprovalAmount is 2^256-1.
var maxApprovalAmount = new(uint256.Int).SetAllOne().ToBig()

// defaultExpiryDuration is the validity of the paymaster signature, in seconds.
const defaultExpiryDuration = 300

type smartAccountInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type sponsorshipInfo struct {
	WebhookData      map[string]any   `json:"webhookData"`
	SmartAccountInfo smartAccountInfo `json:"smartAccountInfo"`
}

type tokenInfo struct {
	TokenList       []common.Address `json:"tokenList,omitempty"`
	PreferredToken  *common.Address  `json:"preferredToken,omitempty"`
	FeeTokenAddress *common.Address  `json:"feeTokenAddress,omitempty"`
}

// paymasterParams is the second positional parameter of pm_getFeeQuoteOrData and pm_sponsorUserOperation.
type paymasterParams struct {
	Mode               PaymasterMode   `json:"mode"`
	CalculateGasLimits bool            `json:"calculateGasLimits"`
	ExpiryDuration     int             `json:"expiryDuration,omitempty"`
	TokenInfo          *tokenInfo      `json:"tokenInfo,omitempty"`
	SponsorshipInfo    sponsorshipInfo `json:"sponsorshipInfo"`
}

type feeQuotesOrDataResult struct {
	Mode                  PaymasterMode  `json:"mode"`
	FeeQuotes             []FeeQuote     `json:"feeQuotes"`
	PaymasterAddress      common.Address `json:"paymasterAddress"`
	TokenPaymasterAddress common.Address `json:"tokenPaymasterAddress"`
}

type sponsorUserOperationResult struct {
	PaymasterAndData     hexutil.Bytes `json:"paymasterAndData"`
	CallGasLimit         *Quantity     `json:"callGasLimit"`
	VerificationGasLimit *Quantity     `json:"verificationGasLimit"`
	PreVerificationGas   *Quantity     `json:"preVerificationGas"`
}

func newSponsorshipInfo() sponsorshipInfo {
	return sponsorshipInfo{
		WebhookData:      map[string]any{},
		SmartAccountInfo: smartAccountInfo{Name: "SIMPLE_ACCOUNT", Version: "0.6.0"},
	}
}

// GetFeeQuotesOrData asks the paymaster (pm_getFeeQuoteOrData) for the fee quotes of uo.
func (a *Account) GetFeeQuotesOrData(ctx context.Context, uo *userop.UserOperation, req FeeQuotesRequest) (*FeeQuotesResponse, error) {
	params := paymasterParams{
		Mode:               req.Mode,
		CalculateGasLimits: req.CalculateGasLimits,
		ExpiryDuration:     defaultExpiryDuration,
		TokenInfo:          &tokenInfo{TokenList: req.TokenList, PreferredToken: req.PreferredToken},
		SponsorshipInfo:    newSponsorshipInfo(),
	}

	var res feeQuotesOrDataResult
	if err := a.paymaster.CallContext(ctx, &res, "pm_getFeeQuoteOrData", uo, params); err != nil {
		return nil, fmt.Errorf("pm_getFeeQuoteOrData failed: %w", err)
	}

	spender := res.TokenPaymasterAddress
	if spender == (common.Address{}) {
		spender = res.PaymasterAddress
	}
	log.WithFields(log.Fields{
		"mode":    res.Mode,
		"quotes":  len(res.FeeQuotes),
		"spender": spender.Hex(),
	}).Debug("fee quotes received")

	return &FeeQuotesResponse{
		FeeQuotes:             res.FeeQuotes,
		TokenPaymasterAddress: spender,
	}, nil
}

// BuildTokenPaymasterUserOp returns a copy of uo whose calls are preceded by an approval of the fee token to the spender.
// The approved amount is the quoted maxGasFee in token base units, rounded up, unless MaxApproval is set.
func (a *Account) BuildTokenPaymasterUserOp(uo *userop.UserOperation, req TokenPaymasterRequest) (*userop.UserOperation, error) {
	if req.Spender == (common.Address{}) {
		return nil, ErrNoSpender
	}
	token := req.FeeQuote.TokenAddress
	if token == (common.Address{}) {
		return nil, ErrNoFeeToken
	}

	calls, err := decodeCallData(uo.CallData)
	if err != nil {
		return nil, fmt.Errorf("decode user operation call data fail: %w", err)
	}

	amount := ApprovalAmount(req.FeeQuote, req.MaxApproval)
	approveData, err := intent.ERC20ABI.Pack("approve", req.Spender, amount)
	if err != nil {
		return nil, err
	}
	log.Printf("approve %s of token %s to %s", amount, token.Hex(), req.Spender.Hex())

	batch := append([]intent.Transaction{{To: token, Data: approveData}}, calls...)
	callData, err := encodeCallData(batch)
	if err != nil {
		return nil, fmt.Errorf("encodeCallData fail: %w", err)
	}

	final := cloneUserOp(uo)
	final.CallData = callData
	return final, nil
}

// ApprovalAmount returns ceil(maxGasFee * 10^decimal), or 2^256-1 when maxApproval is set.
func ApprovalAmount(quote FeeQuote, maxApproval bool) *big.Int {
	if maxApproval {
		return new(big.Int).Set(maxApprovalAmount)
	}
	return quote.MaxGasFee.Shift(quote.Decimal).Ceil().BigInt()
}

// GetPaymasterAndData asks the paymaster (pm_sponsorUserOperation) to sponsor uo.
func (a *Account) GetPaymasterAndData(ctx context.Context, uo *userop.UserOperation, data PaymasterServiceData) (*PaymasterAndDataResponse, error) {
	params := paymasterParams{
		Mode:               data.Mode,
		CalculateGasLimits: data.CalculateGasLimits,
		ExpiryDuration:     defaultExpiryDuration,
		SponsorshipInfo:    newSponsorshipInfo(),
	}
	if data.FeeTokenAddress != nil {
		params.TokenInfo = &tokenInfo{FeeTokenAddress: data.FeeTokenAddress}
	}

	var res sponsorUserOperationResult
	if err := a.paymaster.CallContext(ctx, &res, "pm_sponsorUserOperation", uo, params); err != nil {
		return nil, fmt.Errorf("pm_sponsorUserOperation failed: %w", err)
	}
	if len(res.PaymasterAndData) == 0 {
		return nil, errors.New("pm_sponsorUserOperation failed: empty paymasterAndData")
	}

	return &PaymasterAndDataResponse{
		PaymasterAndData:     res.PaymasterAndData,
		CallGasLimit:         res.CallGasLimit.BigInt(),
		VerificationGasLimit: res.VerificationGasLimit.BigInt(),
		PreVerificationGas:   res.PreVerificationGas.BigInt(),
	}, nil
}
