package cmd

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/10gic/aasponsor/internal/config"
	"github.com/10gic/aasponsor/internal/intent"
	"github.com/10gic/aasponsor/internal/submit"
)

var (
	sendOptMode     string
	sendOptTx       string
	sendOptTo       string
	sendOptAmount   string
	sendOptUnit     string
	sendOptToken    string
	sendOptFeeToken string
)

func init() {
	sendCmd.Flags().StringVarP(&sendOptMode, "mode", "m", "erc20", "sponsored | erc20, how the gas is paid")
	sendCmd.Flags().StringVarP(&sendOptTx, "tx", "", txMintNFT, "mint-nft | send-eth | send-token, the transaction to send")
	sendCmd.Flags().StringVarP(&sendOptTo, "to", "", "", "the receiver, default is the owner address")
	sendCmd.Flags().StringVarP(&sendOptAmount, "amount", "", "", "amount of eth or token to send, default 0.001 eth or 1 token")
	sendCmd.Flags().StringVarP(&sendOptUnit, "unit", "u", intent.UnitEther, "wei | gwei | ether, unit of --amount, ether means 18 decimals for tokens")
	sendCmd.Flags().StringVarP(&sendOptToken, "token", "", "", "token contract of send-token, default is the fee token")
	sendCmd.Flags().StringVarP(&sendOptFeeToken, "fee-token", "", "", "token paying the gas in erc20 mode, overrides AA_FEE_TOKEN")
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a transaction from the smart account, gas covered by the paymaster",
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := submit.ParseMode(sendOptMode)
		if err != nil {
			return err
		}
		if !contains([]string{txMintNFT, txSendEth, txSendToken}, sendOptTx) {
			return fmt.Errorf("invalid option for --tx: %v", sendOptTx)
		}
		if !contains([]string{intent.UnitWei, intent.UnitGwei, intent.UnitEther}, sendOptUnit) {
			return fmt.Errorf("invalid option for --unit: %v", sendOptUnit)
		}
		feeToken, err := parseAddressOpt("fee-token", sendOptFeeToken, globalConfig.FeeToken)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		s, err := bootstrap(ctx, globalConfig, true)
		if err != nil {
			return err
		}
		defer s.Close()

		opts := intentOpts{
			kind:   sendOptTx,
			to:     sendOptTo,
			amount: sendOptAmount,
			unit:   sendOptUnit,
			token:  sendOptToken,
		}
		if err := sendTx(ctx, globalConfig, s, opts, feeToken, mode); err != nil {
			log.Errorf("send: %v", err)
		}
		fmt.Println("DONE")
		return nil
	},
}

// sendTx builds the selected intent and submits it, then reports the outcome.
func sendTx(ctx context.Context, cfg *config.Config, s *session, opts intentOpts, feeToken common.Address, mode submit.Mode) error {
	tx, err := buildIntent(cfg, s.wallet.Owner, opts)
	if err != nil {
		return err
	}
	log.Debugf("intent %v, mode %v", tx, mode)

	res, err := submit.New(s.account, feeToken).Submit(ctx, tx, mode)
	if res != nil && !globalOptTerseOutput {
		fmt.Printf("userOpHash %v\n", res.UserOpHash.Hex())
		if res.TxHash != (common.Hash{}) {
			fmt.Printf("txHash %v\n", res.TxHash.Hex())
		}
		fmt.Printf("outcome %v\n", res.Outcome)
	}
	if err != nil {
		return err
	}
	if res.Outcome == submit.OutcomeReverted {
		return fmt.Errorf("user operation %v reverted: %v", res.UserOpHash.Hex(), res.Receipt.Reason)
	}
	return nil
}
