package cmd

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/10gic/aasponsor/internal/wallet"
)

var (
	genkeyNumOpt      int
	genkeyMnemonicOpt bool
)

func init() {
	genkeyCmd.Flags().IntVarP(&genkeyNumOpt, "number", "n", 1, "number of private key you want to generate, must greater than 1")
	genkeyCmd.Flags().BoolVarP(&genkeyMnemonicOpt, "mnemonic", "", false, "generate a mnemonic and print the key at m/44'/60'/0'/0/0, usable as AA_OWNER_MNEMONIC")
}

var genkeyCmd = &cobra.Command{
	Use:   "gen-private-key",
	Short: "Generate eth private key",
	RunE: func(cmd *cobra.Command, args []string) error {
		if genkeyNumOpt <= 0 {
			_ = cmd.Help()
			return fmt.Errorf("invalid option for --number: %v", genkeyNumOpt)
		}

		for i := 1; i <= genkeyNumOpt; i++ {
			var privateKey *ecdsa.PrivateKey
			var mnemonic string
			var err error
			if genkeyMnemonicOpt {
				if mnemonic, err = wallet.NewMnemonic(); err != nil {
					return err
				}
				privateKey, err = wallet.KeyFromMnemonic(mnemonic)
			} else {
				privateKey, err = crypto.GenerateKey()
			}
			if err != nil {
				return err
			}

			addr := crypto.PubkeyToAddress(privateKey.PublicKey).Hex()
			privateHexStr := hexutil.Encode(crypto.FromECDSA(privateKey))

			switch {
			case globalOptTerseOutput && mnemonic != "":
				fmt.Printf("%v %v %v\n", privateHexStr, addr, mnemonic)
			case globalOptTerseOutput:
				fmt.Printf("%v %v\n", privateHexStr, addr)
			case mnemonic != "":
				fmt.Printf("mnemonic %v\nprivate key %v, addr %v\n", mnemonic, privateHexStr, addr)
			default:
				fmt.Printf("private key %v, addr %v\n", privateHexStr, addr)
			}
		}
		return nil
	},
}
