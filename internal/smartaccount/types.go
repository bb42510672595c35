package smartaccount

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

// PaymasterMode selects how the paymaster covers gas.
type PaymasterMode string

const (
	// ModeSponsored: gas is paid from the gas tank, unconditionally.
	ModeSponsored PaymasterMode = "SPONSORED"
	// ModeERC20: gas is paid by the smart account in an allow-listed ERC-20 token.
	ModeERC20 PaymasterMode = "ERC20"
)

// FeeQuote is one paymaster offer to cover the gas in a given token.
// MaxGasFee is expressed in whole tokens, not base units.
type FeeQuote struct {
	Symbol            string          `json:"symbol"`
	TokenAddress      common.Address  `json:"tokenAddress"`
	Decimal           int32           `json:"decimal"`
	LogoUrl           string          `json:"logoUrl,omitempty"`
	MaxGasFee         decimal.Decimal `json:"maxGasFee"`
	MaxGasFeeUSD      decimal.Decimal `json:"maxGasFeeUSD"`
	UsdPayment        decimal.Decimal `json:"usdPayment"`
	PremiumPercentage decimal.Decimal `json:"premiumPercentage"`
	ValidUntil        int64           `json:"validUntil,omitempty"`
	ExchangeRate      decimal.Decimal `json:"exchangeRate"`
}

// FeeQuotesRequest asks for quotes in the listed tokens.
// PreferredToken, when set, is quoted even if it is not in TokenList.
type FeeQuotesRequest struct {
	Mode               PaymasterMode
	TokenList          []common.Address
	PreferredToken     *common.Address
	CalculateGasLimits bool
}

// FeeQuotesResponse carries the candidate quotes and the address that spends the fee token.
type FeeQuotesResponse struct {
	FeeQuotes             []FeeQuote
	TokenPaymasterAddress common.Address
}

// TokenPaymasterRequest is the input to BuildTokenPaymasterUserOp.
type TokenPaymasterRequest struct {
	FeeQuote FeeQuote
	Spender  common.Address
	// MaxApproval grants the spender an unlimited allowance. Keep it false to approve the quoted fee only.
	MaxApproval bool
}

// PaymasterServiceData is sent along with pm_sponsorUserOperation.
type PaymasterServiceData struct {
	Mode               PaymasterMode
	FeeTokenAddress    *common.Address
	CalculateGasLimits bool
}

// PaymasterAndDataResponse is the paymaster authorization for a user operation.
type PaymasterAndDataResponse struct {
	PaymasterAndData     []byte
	CallGasLimit         *big.Int
	VerificationGasLimit *big.Int
	PreVerificationGas   *big.Int
}

// UserOpReceipt is the result of eth_getUserOperationReceipt.
type UserOpReceipt struct {
	UserOpHash    common.Hash    `json:"userOpHash"`
	EntryPoint    common.Address `json:"entryPoint"`
	Sender        common.Address `json:"sender"`
	Nonce         *Quantity      `json:"nonce"`
	Paymaster     common.Address `json:"paymaster"`
	ActualGasCost *Quantity      `json:"actualGasCost"`
	ActualGasUsed *Quantity      `json:"actualGasUsed"`
	Success       FlexBool       `json:"success"`
	Reason        string         `json:"reason,omitempty"`
	Receipt       TxReceipt      `json:"receipt"`
}

// TxReceipt is the subset of the bundle transaction receipt we report.
type TxReceipt struct {
	TransactionHash common.Hash `json:"transactionHash"`
	BlockNumber     *Quantity   `json:"blockNumber"`
	GasUsed         *Quantity   `json:"gasUsed"`
	Status          *Quantity   `json:"status"`
}

// Quantity is a big integer that accepts JSON numbers, decimal strings and 0x-prefixed hex strings.
// Paymaster and bundler implementations disagree on the encoding.
type Quantity big.Int

// BigInt returns a copy, nil stays nil.
func (q *Quantity) BigInt() *big.Int {
	if q == nil {
		return nil
	}
	return new(big.Int).Set((*big.Int)(q))
}

func (q *Quantity) String() string {
	if q == nil {
		return "<nil>"
	}
	return (*big.Int)(q).String()
}

func (q *Quantity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + hexutil.EncodeBig((*big.Int)(q)) + `"`), nil
}

func (q *Quantity) UnmarshalJSON(input []byte) error {
	s := strings.Trim(strings.TrimSpace(string(input)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := ParseBigInt(s)
	if err != nil {
		return err
	}
	(*big.Int)(q).Set(v)
	return nil
}

// FlexBool accepts true/false as JSON booleans or strings.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(input []byte) error {
	switch strings.Trim(strings.TrimSpace(string(input)), `"`) {
	case "true":
		*b = true
	case "false", "", "null":
		*b = false
	default:
		return fmt.Errorf("invalid boolean %s", input)
	}
	return nil
}

// ParseBigInt parses a hex (0x prefixed) or decimal string.
func ParseBigInt(input string) (*big.Int, error) {
	base := 10
	if has0xPrefix(input) {
		// leading zero digits are allowed, unlike hexutil.DecodeBig
		input, base = input[2:], 16
	}
	n, ok := new(big.Int).SetString(input, base)
	if !ok {
		return nil, fmt.Errorf("parse big int failed: %s", input)
	}
	return n, nil
}

// has0xPrefix returns true if str starts with 0x or 0X.
func has0xPrefix(str string) bool {
	return len(str) >= 2 && str[0] == '0' && (str[1] == 'x' || str[1] == 'X')
}
