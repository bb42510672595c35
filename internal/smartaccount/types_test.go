package smartaccount

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantity_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`42832`, "42832"},
		{`"42832"`, "42832"},
		{`"0xa750"`, "42832"},
		{`"0x00a750"`, "42832"},
		{`"0x0"`, "0"},
	}
	for _, tt := range tests {
		var q Quantity
		require.NoError(t, json.Unmarshal([]byte(tt.input), &q), tt.input)
		assert.Equal(t, tt.want, q.String(), tt.input)
	}

	var q Quantity
	assert.Error(t, json.Unmarshal([]byte(`"0xzz"`), &q))
	assert.Error(t, json.Unmarshal([]byte(`"12ab"`), &q))
}

func TestQuantity_RoundTrip(t *testing.T) {
	var s struct {
		Gas *Quantity `json:"gas"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"gas":"0x0186a0"}`), &s))
	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"gas":"0x186a0"}`, string(out))

	var empty struct {
		Gas *Quantity `json:"gas"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"gas":null}`), &empty))
	assert.Nil(t, empty.Gas.BigInt())
}

func TestFlexBool(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{`true`, true},
		{`false`, false},
		{`"true"`, true},
		{`"false"`, false},
	}
	for _, tt := range tests {
		var b FlexBool
		require.NoError(t, json.Unmarshal([]byte(tt.input), &b), tt.input)
		assert.Equal(t, tt.want, bool(b), tt.input)
	}

	var b FlexBool
	assert.Error(t, json.Unmarshal([]byte(`"yes"`), &b))
}

func TestFeeQuote_UnmarshalJSON(t *testing.T) {
	// numbers and strings are both seen in paymaster responses
	input := `{"symbol":"USDC","tokenAddress":"0x7683022d84F726a96c4A6611cD31DBf5409c0Ac9","decimal":6,
		"maxGasFee":0.031268,"maxGasFeeUSD":"0.0312","exchangeRate":2235.5,"premiumPercentage":"7"}`

	var q FeeQuote
	require.NoError(t, json.Unmarshal([]byte(input), &q))
	assert.Equal(t, "USDC", q.Symbol)
	assert.Equal(t, testFeeToken, q.TokenAddress)
	assert.Equal(t, "0.031268", q.MaxGasFee.String())
	assert.Equal(t, "2235.5", q.ExchangeRate.String())
	assert.Equal(t, "7", q.PremiumPercentage.String())
}

func TestUserOpByHash_UnmarshalPending(t *testing.T) {
	var res userOpByHash
	input := `{"entryPoint":"0x5ff137d4b0fdcd49dca30c7cf57e578a026d2789","transactionHash":null,"blockHash":null,"blockNumber":null,"userOperation":{}}`
	require.NoError(t, json.Unmarshal([]byte(input), &res))
	assert.Nil(t, res.TransactionHash)
	assert.Nil(t, res.BlockHash)
	assert.Nil(t, res.BlockNumber)

	input = `{"entryPoint":"0x5ff137d4b0fdcd49dca30c7cf57e578a026d2789","transactionHash":"0x0000000000000000000000000000000000000000000000000000000000003c4d","blockNumber":"0x10"}`
	require.NoError(t, json.Unmarshal([]byte(input), &res))
	require.NotNil(t, res.TransactionHash)
	assert.Equal(t, waitTxHash, *res.TransactionHash)
	assert.Equal(t, "16", res.BlockNumber.String())
}
