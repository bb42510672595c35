package smartaccount

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Factory is the SimpleAccountFactory that deploys accounts at counterfactual addresses.
type Factory struct {
	chain   ChainClient
	address common.Address
	salt    *big.Int
}

func NewFactory(chain ChainClient, address common.Address, salt *big.Int) *Factory {
	if salt == nil {
		salt = big.NewInt(0)
	}
	return &Factory{chain: chain, address: address, salt: salt}
}

// GetAccountAddress queries the address of the account owned by owner by calling function getAddress.
func (f *Factory) GetAccountAddress(ctx context.Context, owner common.Address) (common.Address, error) {
	input, err := accountFactoryABI.Pack("getAddress", owner, f.salt)
	if err != nil {
		return common.Address{}, err
	}
	output, err := f.chain.CallContract(ctx, ethereum.CallMsg{To: &f.address, Data: input}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("call getAddress fail: %w", err)
	}
	res, err := accountFactoryABI.Unpack("getAddress", output)
	if err != nil {
		return common.Address{}, fmt.Errorf("unpack getAddress fail: %w", err)
	}
	return res[0].(common.Address), nil
}

// InitCode returns factory address ++ createAccount(owner, salt).
func (f *Factory) InitCode(owner common.Address) ([]byte, error) {
	input, err := accountFactoryABI.Pack("createAccount", owner, f.salt)
	if err != nil {
		return nil, err
	}
	return append(f.address.Bytes(), input...), nil
}

// personalSign returns personal_sign signature data, see https://eips.ethereum.org/EIPS/eip-191
func personalSign(message []byte, privateKey *ecdsa.PrivateKey) ([]byte, error) {
	fullMessage := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	hash := crypto.Keccak256Hash([]byte(fullMessage))
	signatureBytes, err := crypto.Sign(hash.Bytes(), privateKey)
	if err != nil {
		return nil, err
	}
	signatureBytes[64] += 27
	return signatureBytes, nil
}
