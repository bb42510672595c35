package cmd

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"

	"github.com/10gic/aasponsor/internal/intent"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Print the owner and the smart account, creating the identity cache if needed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := bootstrap(ctx, globalConfig, false)
		if err != nil {
			return err
		}
		defer s.Close()

		chain := s.client.EthClient
		code, err := chain.CodeAt(ctx, s.wallet.SmartAccountAddress, nil)
		if err != nil {
			return fmt.Errorf("CodeAt fail: %w", err)
		}
		ethBalance, err := chain.BalanceAt(ctx, s.wallet.SmartAccountAddress, nil)
		if err != nil {
			return fmt.Errorf("BalanceAt fail: %w", err)
		}
		tokenBalance, err := tokenBalanceOf(ctx, chain, globalConfig.FeeToken, s.wallet.SmartAccountAddress)
		if err != nil {
			return err
		}
		ethBalanceInEther, err := intent.FromWei(ethBalance, intent.UnitEther)
		if err != nil {
			return err
		}

		if globalOptTerseOutput {
			fmt.Printf("%v %v\n", s.wallet.Owner.Hex(), s.wallet.SmartAccountAddress.Hex())
			return nil
		}
		fmt.Printf("owner %v\n", s.wallet.Owner.Hex())
		fmt.Printf("smart account %v (deployed: %v)\n", s.wallet.SmartAccountAddress.Hex(), len(code) > 0)
		fmt.Printf("balance %v ether\n", ethBalanceInEther)
		fmt.Printf("fee token %v balance %v (base units)\n", globalConfig.FeeToken.Hex(), tokenBalance)
		if s.wallet.Created {
			fmt.Printf("identity cached in %v\n", globalConfig.CacheFile)
		}
		return nil
	},
}

// tokenBalanceOf returns the balance of account in token base units.
func tokenBalanceOf(ctx context.Context, client *ethclient.Client, token, account common.Address) (*big.Int, error) {
	input, err := intent.ERC20ABI.Pack("balanceOf", account)
	if err != nil {
		return nil, err
	}
	output, err := client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("call balanceOf fail: %w", err)
	}
	res, err := intent.ERC20ABI.Unpack("balanceOf", output)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf fail: %w", err)
	}
	return res[0].(*big.Int), nil
}
