// Package intent builds the raw transactions a smart account executes.
package intent

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// ErrNoNFTContract is returned when no NFT contract address is configured.
var ErrNoNFTContract = errors.New("nft contract address is not configured")

var (
	// DefaultEthValue is 0.001 ether.
	DefaultEthValue = MustToWei(decimal.RequireFromString("0.001"), UnitEther)
	// DefaultTokenAmount is 1 token of 18 decimals.
	DefaultTokenAmount = MustToWei(decimal.RequireFromString("1"), UnitEther)
)

// Transaction is a single call from the smart account. A nil Value means zero.
type Transaction struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// ValueOrZero returns Value, or zero when unset.
func (t Transaction) ValueOrZero() *big.Int {
	if t.Value == nil {
		return new(big.Int)
	}
	return t.Value
}

func (t Transaction) String() string {
	return "{to: " + t.To.Hex() + ", data: " + hexutil.Encode(t.Data) + ", value: " + t.ValueOrZero().String() + "}"
}

// NativeTransfer sends valueWei of the native asset to receiver.
// The smart account must hold enough balance.
func NativeTransfer(receiver common.Address, valueWei *big.Int) Transaction {
	if valueWei == nil {
		valueWei = DefaultEthValue
	}
	log.Printf("Send ETH: %s %s", receiver.Hex(), valueWei)
	return Transaction{
		To:    receiver,
		Data:  []byte{},
		Value: new(big.Int).Set(valueWei),
	}
}

// TokenTransfer calls transfer(receiver, amount) on an ERC-20 token.
// The token contract must be whitelisted for transfer and approve in the paymaster rules.
func TokenTransfer(token, receiver common.Address, amount *big.Int) (Transaction, error) {
	if amount == nil {
		amount = DefaultTokenAmount
	}
	log.Printf("Send Token: %s %s", token.Hex(), receiver.Hex())
	data, err := ERC20ABI.Pack("transfer", receiver, amount)
	if err != nil {
		return Transaction{}, err
	}
	return Transaction{To: token, Data: data}, nil
}

// MintNFT calls mint(receiver) on the NFT contract.
// The NFT contract must be whitelisted for mint in the paymaster rules.
func MintNFT(nftContract, receiver common.Address) (Transaction, error) {
	if nftContract == (common.Address{}) {
		return Transaction{}, ErrNoNFTContract
	}
	log.Printf("Mint NFT: %s", receiver.Hex())
	data, err := NFTABI.Pack("mint", receiver)
	if err != nil {
		return Transaction{}, err
	}
	return Transaction{To: nftContract, Data: data}, nil
}
