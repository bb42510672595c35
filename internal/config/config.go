package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const (
	envPaymasterApiKey = "BICONOMY_PAYMASTER_API_KEY"
	envBundlerUrl      = "BICONOMY_BUNDLER_URL"
	envPaymasterUrl    = "BICONOMY_PAYMASTER_URL"
	envNftAddress      = "SEPOLIA_NFT_ADDRESS"

	envRpcUrl         = "AA_RPC_URL"
	envChainID        = "AA_CHAIN_ID"
	envEntryPoint     = "AA_ENTRYPOINT"
	envAccountFactory = "AA_ACCOUNT_FACTORY"
	envFeeToken       = "AA_FEE_TOKEN"
	envCacheFile      = "AA_CACHE_FILE"
	envOwnerMnemonic  = "AA_OWNER_MNEMONIC"

	// -- wait configuration
	envWaitTimeoutSeconds  = "AA_WAIT_TIMEOUT_SECONDS"
	envPollIntervalSeconds = "AA_POLL_INTERVAL_SECONDS"

	// --- defaults, Base Sepolia ---
	DefaultRpcUrl         = "https://sepolia.base.org"
	DefaultChainID        = 84532
	DefaultEntryPoint     = "0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789" // EntryPoint v0.6
	DefaultAccountFactory = "0x9406Cc6185a346906296840746125a0E44976454" // SimpleAccountFactory v0.6
	DefaultFeeToken       = "0x7683022d84F726a96c4A6611cD31DBf5409c0Ac9" // Base Sepolia DAI
	DefaultCacheFile      = ".cache.json"

	DefaultWaitTimeoutSeconds  = 300 // 5 minutes
	DefaultPollIntervalSeconds = 3

	paymasterUrlFmt = "https://paymaster.biconomy.io/api/v1/%d/%s"
)

// Config is built once at startup and handed to every component.
type Config struct {
	PaymasterApiKey string
	BundlerUrl      string
	PaymasterUrl    string
	RpcUrl          string
	ChainID         int64

	EntryPoint     common.Address
	AccountFactory common.Address
	FeeToken       common.Address
	NftContract    common.Address

	CacheFile     string
	OwnerMnemonic string

	WaitTimeout  time.Duration
	PollInterval time.Duration
}

// LoadEnvFile loads variables from a dotenv file into the process environment.
// A missing file is not an error, variables already set are kept.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Debugf("env file %s not found, skip", path)
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s fail: %w", path, err)
	}
	return nil
}

// Load reads the configuration from the environment.
// Missing api key or urls are not rejected here, the remote services will refuse them.
func Load() (*Config, error) {
	var err error
	cfg := &Config{
		PaymasterApiKey: os.Getenv(envPaymasterApiKey),
		BundlerUrl:      os.Getenv(envBundlerUrl),
		PaymasterUrl:    os.Getenv(envPaymasterUrl),
		RpcUrl:          getEnv(envRpcUrl, DefaultRpcUrl),
		CacheFile:       getEnv(envCacheFile, DefaultCacheFile),
		OwnerMnemonic:   strings.TrimSpace(os.Getenv(envOwnerMnemonic)),
	}

	if cfg.ChainID, err = getInt(envChainID, DefaultChainID); err != nil {
		return nil, err
	}
	if cfg.EntryPoint, err = getAddress(envEntryPoint, DefaultEntryPoint); err != nil {
		return nil, err
	}
	if cfg.AccountFactory, err = getAddress(envAccountFactory, DefaultAccountFactory); err != nil {
		return nil, err
	}
	if cfg.FeeToken, err = getAddress(envFeeToken, DefaultFeeToken); err != nil {
		return nil, err
	}
	if cfg.NftContract, err = getAddress(envNftAddress, ""); err != nil {
		return nil, err
	}

	timeout, err := getInt(envWaitTimeoutSeconds, DefaultWaitTimeoutSeconds)
	if err != nil {
		return nil, err
	}
	interval, err := getInt(envPollIntervalSeconds, DefaultPollIntervalSeconds)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 || interval <= 0 {
		return nil, fmt.Errorf("%s and %s must be positive", envWaitTimeoutSeconds, envPollIntervalSeconds)
	}
	cfg.WaitTimeout = time.Duration(timeout) * time.Second
	cfg.PollInterval = time.Duration(interval) * time.Second

	return cfg, nil
}

// PaymasterURL returns the paymaster endpoint, derived from chain id and api key unless set explicitly.
func (c *Config) PaymasterURL() string {
	if c.PaymasterUrl != "" {
		return c.PaymasterUrl
	}
	return fmt.Sprintf(paymasterUrlFmt, c.ChainID, c.PaymasterApiKey)
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int64) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getAddress(key, def string) (common.Address, error) {
	v := getEnv(key, def)
	if v == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("invalid %s: %v is not a valid eth address", key, v)
	}
	return common.HexToAddress(v), nil
}
