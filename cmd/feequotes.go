package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/10gic/aasponsor/internal/intent"
	"github.com/10gic/aasponsor/internal/smartaccount"
	"github.com/10gic/aasponsor/internal/submit"
)

var feeQuotesOptPreferredToken string

func init() {
	feeQuotesCmd.Flags().StringVarP(&sendOptTx, "tx", "", txMintNFT, "mint-nft | send-eth | send-token, the transaction to quote")
	feeQuotesCmd.Flags().StringVarP(&sendOptTo, "to", "", "", "the receiver, default is the owner address")
	feeQuotesCmd.Flags().StringVarP(&sendOptAmount, "amount", "", "", "amount of eth or token")
	feeQuotesCmd.Flags().StringVarP(&sendOptUnit, "unit", "u", intent.UnitEther, "wei | gwei | ether, unit of --amount")
	feeQuotesCmd.Flags().StringVarP(&sendOptToken, "token", "", "", "token contract of send-token, default is the fee token")
	feeQuotesCmd.Flags().StringVarP(&sendOptFeeToken, "fee-token", "", "", "token to quote, overrides AA_FEE_TOKEN")
	feeQuotesCmd.Flags().StringVarP(&feeQuotesOptPreferredToken, "preferred-token", "", "", "also quote this token, the paymaster lists it first")
}

var feeQuotesCmd = &cobra.Command{
	Use:   "fee-quotes",
	Short: "Print the paymaster fee quotes of a transaction, nothing is sent",
	RunE: func(cmd *cobra.Command, args []string) error {
		feeToken, err := parseAddressOpt("fee-token", sendOptFeeToken, globalConfig.FeeToken)
		if err != nil {
			return err
		}
		req, err := feeQuotesRequest(feeToken, feeQuotesOptPreferredToken)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		s, err := bootstrap(ctx, globalConfig, true)
		if err != nil {
			return err
		}
		defer s.Close()

		tx, err := buildIntent(globalConfig, s.wallet.Owner, intentOpts{
			kind:   sendOptTx,
			to:     sendOptTo,
			amount: sendOptAmount,
			unit:   sendOptUnit,
			token:  sendOptToken,
		})
		if err != nil {
			return err
		}

		uo, err := s.account.BuildUserOp(ctx, []intent.Transaction{tx})
		if err != nil {
			return fmt.Errorf("BuildUserOp fail: %w", err)
		}
		quotes, err := s.account.GetFeeQuotesOrData(ctx, uo, req)
		if err != nil {
			return fmt.Errorf("GetFeeQuotesOrData fail: %w", err)
		}
		if len(quotes.FeeQuotes) == 0 {
			return fmt.Errorf("%w for token %v", submit.ErrNoFeeQuote, feeToken.Hex())
		}

		if !globalOptTerseOutput {
			fmt.Printf("spender %v\n", quotes.TokenPaymasterAddress.Hex())
		}
		for _, q := range quotes.FeeQuotes {
			withMargin := submit.WithMargin(q)
			approval := smartaccount.ApprovalAmount(withMargin, false)
			if globalOptTerseOutput {
				fmt.Printf("%v %v %v %v\n", q.Symbol, q.TokenAddress.Hex(), withMargin.MaxGasFee, approval)
				continue
			}
			fmt.Printf("%v (%v): maxGasFee %v, with margin %v, approve %v base units, exchangeRate %v, maxGasFeeUSD %v\n",
				q.Symbol, q.TokenAddress.Hex(), q.MaxGasFee, withMargin.MaxGasFee, approval, q.ExchangeRate, q.MaxGasFeeUSD)
		}
		return nil
	},
}

// feeQuotesRequest asks for erc20 quotes in feeToken, plus preferred when it is not empty.
func feeQuotesRequest(feeToken common.Address, preferred string) (smartaccount.FeeQuotesRequest, error) {
	req := smartaccount.FeeQuotesRequest{
		Mode:      smartaccount.ModeERC20,
		TokenList: []common.Address{feeToken},
	}
	if preferred == "" {
		return req, nil
	}
	token, err := parseAddressOpt("preferred-token", preferred, common.Address{})
	if err != nil {
		return smartaccount.FeeQuotesRequest{}, err
	}
	req.PreferredToken = &token
	return req, nil
}
