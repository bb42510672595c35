package intent

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	receiver = common.HexToAddress("0x8F36975cdeA2e6E64f85719788C8EFBBe89DFBbb")
	token    = common.HexToAddress("0x7683022d84F726a96c4A6611cD31DBf5409c0Ac9")
	nft      = common.HexToAddress("0x46ce18b119d0eb454cdbd37545bbca791bf325b3")
)

func TestNativeTransfer(t *testing.T) {
	tx := NativeTransfer(receiver, nil)
	assert.Equal(t, receiver, tx.To)
	assert.Empty(t, tx.Data)
	assert.Equal(t, "1000000000000000", tx.Value.String())

	tx = NativeTransfer(receiver, big.NewInt(7))
	assert.Equal(t, int64(7), tx.Value.Int64())
}

func TestTokenTransfer_DecodesBack(t *testing.T) {
	tx, err := TokenTransfer(token, receiver, nil)
	require.NoError(t, err)
	assert.Equal(t, token, tx.To)
	assert.Nil(t, tx.Value)
	// transfer(address,uint256)
	assert.Equal(t, "0xa9059cbb", hexutil.Encode(tx.Data[:4]))

	method, args, err := Decode(ERC20ABI, tx.Data)
	require.NoError(t, err)
	assert.Equal(t, "transfer", method.Name)
	require.Len(t, args, 2)
	assert.Equal(t, receiver, args[0])
	assert.Equal(t, 0, DefaultTokenAmount.Cmp(args[1].(*big.Int)))
}

func TestMintNFT_DecodesBack(t *testing.T) {
	tx, err := MintNFT(nft, receiver)
	require.NoError(t, err)
	assert.Equal(t, nft, tx.To)

	method, args, err := Decode(NFTABI, tx.Data)
	require.NoError(t, err)
	assert.Equal(t, "mint", method.Name)
	assert.Equal(t, []any{receiver}, args)
}

func TestMintNFT_NoContract(t *testing.T) {
	_, err := MintNFT(common.Address{}, receiver)
	assert.ErrorIs(t, err, ErrNoNFTContract)
}

func TestDecode_Invalid(t *testing.T) {
	_, _, err := Decode(ERC20ABI, []byte{0x01})
	assert.Error(t, err)

	_, _, err = Decode(ERC20ABI, hexutil.MustDecode("0xdeadbeef"))
	assert.Error(t, err)
}

func TestToWei(t *testing.T) {
	tests := []struct {
		amount string
		unit   string
		want   string
	}{
		{amount: "1", unit: "wei", want: "1"},
		{amount: "1.5", unit: "gwei", want: "1500000000"},
		{amount: "0.001", unit: "ether", want: "1000000000000000"},
		{amount: "123456789.012345678", unit: "gwei", want: "123456789012345678"},
	}

	for i, tc := range tests {
		got, err := ToWei(decimal.RequireFromString(tc.amount), tc.unit)
		if err != nil {
			t.Fatalf("test %d: unexpected error %v", i+1, err)
		}
		if tc.want != got.String() {
			t.Fatalf("test %d: expected: %v, got: %v", i+1, tc.want, got)
		}
	}

	_, err := ToWei(decimal.NewFromInt(1), "szabo")
	assert.Error(t, err)
}

func TestFromWei(t *testing.T) {
	tests := []struct {
		sourceAmtInWei string
		targetUnit     string
		output         string
	}{
		{sourceAmtInWei: "1", targetUnit: "wei", output: "1"},
		{sourceAmtInWei: "123456789012345678", targetUnit: "gwei", output: "123456789.012345678"},
		{sourceAmtInWei: "123456789012345678", targetUnit: "ether", output: "0.123456789012345678"},
	}

	for i, tc := range tests {
		amt, _ := new(big.Int).SetString(tc.sourceAmtInWei, 10)
		got, err := FromWei(amt, tc.targetUnit)
		if err != nil {
			t.Fatalf("test %d: unexpected error %v", i+1, err)
		}
		if tc.output != got.String() {
			t.Fatalf("test %d: expected: %v, got: %v", i+1, tc.output, got)
		}
	}
}
