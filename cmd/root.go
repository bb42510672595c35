package cmd

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/10gic/aasponsor/internal/config"
)

var (
	globalOptEnvFile      string
	globalOptCacheFile    string
	globalOptRpcUrl       string
	globalOptBundlerUrl   string
	globalOptPaymasterUrl string
	globalOptChainID      int64
	globalOptEstimateGas  bool
	globalOptVerbose      bool
	globalOptTerseOutput  bool
	rootCmd               = &cobra.Command{
		Use:               "aasponsor",
		Short:             "Send ERC-4337 user operations whose gas is covered by a Biconomy paymaster",
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}

	globalConfig *config.Config
)

// ExecuteContext runs the cobra root command, ctx is canceled on interrupt.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.EnableCommandSorting = false

	rootCmd.PersistentFlags().StringVarP(&globalOptEnvFile, "env-file", "", ".env", "dotenv file to load, a missing file is ignored")
	rootCmd.PersistentFlags().StringVarP(&globalOptCacheFile, "cache-file", "", "", "identity cache file, overrides AA_CACHE_FILE")
	rootCmd.PersistentFlags().StringVarP(&globalOptRpcUrl, "rpc-url", "", "", "chain rpc url, overrides AA_RPC_URL")
	rootCmd.PersistentFlags().StringVarP(&globalOptBundlerUrl, "bundler-url", "", "", "bundler url, overrides BICONOMY_BUNDLER_URL")
	rootCmd.PersistentFlags().StringVarP(&globalOptPaymasterUrl, "paymaster-url", "", "", "paymaster url, overrides BICONOMY_PAYMASTER_URL")
	rootCmd.PersistentFlags().Int64VarP(&globalOptChainID, "chain-id", "", 0, "chain id, overrides AA_CHAIN_ID")
	rootCmd.PersistentFlags().BoolVarP(&globalOptEstimateGas, "estimate-gas", "", false, "ask the bundler for gas limits instead of letting the paymaster calculate them")
	rootCmd.PersistentFlags().BoolVarP(&globalOptVerbose, "verbose", "v", false, "print debug logs")
	rootCmd.PersistentFlags().BoolVarP(&globalOptTerseOutput, "terse", "", false, "produce terse output")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(feeQuotesCmd)
	rootCmd.AddCommand(genkeyCmd)
}

func initConfig(cmd *cobra.Command, args []string) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if globalOptVerbose {
		log.SetLevel(log.DebugLevel)
	}

	if err := config.LoadEnvFile(globalOptEnvFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("cache-file") {
		cfg.CacheFile = globalOptCacheFile
	}
	if flags.Changed("rpc-url") {
		cfg.RpcUrl = globalOptRpcUrl
	}
	if flags.Changed("bundler-url") {
		cfg.BundlerUrl = globalOptBundlerUrl
	}
	if flags.Changed("paymaster-url") {
		cfg.PaymasterUrl = globalOptPaymasterUrl
	}
	if flags.Changed("chain-id") {
		if globalOptChainID <= 0 {
			return fmt.Errorf("invalid option for --chain-id: %v", globalOptChainID)
		}
		cfg.ChainID = globalOptChainID
	}

	globalConfig = cfg
	return nil
}
