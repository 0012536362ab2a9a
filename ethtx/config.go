package main

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/purelabio/ethcore"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

/*
Settings shared by all subcommands. Each can come from a flag, an "ETHTX_*"
environment variable or the optional config file, in that order of priority.
*/
type config struct {
	Rpc           string        `mapstructure:"rpc"`
	ChainId       string        `mapstructure:"chain_id"`
	Key           string        `mapstructure:"key"`
	Mnemonic      string        `mapstructure:"mnemonic"`
	Passphrase    string        `mapstructure:"passphrase"`
	Path          string        `mapstructure:"path"`
	Confirmations uint64        `mapstructure:"confirmations"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxReorgs     int           `mapstructure:"max_reorgs"`
	LogLevel      string        `mapstructure:"log_level"`
	LogFormat     string        `mapstructure:"log_format"`
}

// Config key to flag name.
var configFlags = map[string]string{
	"rpc":           "rpc",
	"chain_id":      "chain-id",
	"key":           "key",
	"mnemonic":      "mnemonic",
	"passphrase":    "passphrase",
	"path":          "path",
	"confirmations": "confirmations",
	"poll_interval": "poll-interval",
	"timeout":       "timeout",
	"max_reorgs":    "max-reorgs",
	"log_level":     "log-level",
	"log_format":    "log-format",
}

func addConfigFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "optional YAML config file")
	flags.String("rpc", "http://localhost:8545", "RPC URL; comma-separated URLs fail over in order")
	flags.String("chain-id", "", "chain id; fetched from the node when empty")
	flags.String("key", "", "hex-encoded private key; prefer the ETHTX_KEY environment variable")
	flags.String("mnemonic", "", "BIP-39 mnemonic; prefer the ETHTX_MNEMONIC environment variable")
	flags.String("passphrase", "", "BIP-39 passphrase")
	flags.String("path", ethcore.DefaultDerivationPath, "BIP-32 derivation path for --mnemonic")
	flags.Uint64("confirmations", 1, "confirmations to wait for")
	flags.Duration("poll-interval", 4*time.Second, "interval between confirmation polls")
	flags.Duration("timeout", 10*time.Minute, "give up waiting after this long; 0 waits forever")
	flags.Int("max-reorgs", 0, "fail after this many reorgs; 0 means unlimited")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "console", "log format: console or json")
}

func loadConfig(flags *pflag.FlagSet) (config, error) {
	v := viper.New()
	v.SetEnvPrefix("ETHTX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	for key, flag := range configFlags {
		err := v.BindPFlag(key, flags.Lookup(flag))
		if err != nil {
			return config{}, errors.WithStack(err)
		}
	}

	path, _ := flags.GetString("config")
	if path != "" {
		v.SetConfigFile(path)
		err := v.ReadInConfig()
		if err != nil {
			return config{}, errors.Wrap(err, "failed to read config")
		}
	}

	var out config
	err := v.Unmarshal(&out)
	if err != nil {
		return config{}, errors.Wrap(err, "failed to unmarshal config")
	}
	return out, nil
}

func newLogger(conf config) (*zap.Logger, error) {
	var level zapcore.Level
	err := level.UnmarshalText([]byte(conf.LogLevel))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", conf.LogLevel)
	}

	var zapConf zap.Config
	if conf.LogFormat == "json" {
		zapConf = zap.NewProductionConfig()
		zapConf.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zapConf = zap.NewDevelopmentConfig()
		zapConf.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapConf.Level = zap.NewAtomicLevelAt(level)
	zapConf.DisableStacktrace = true

	logger, err := zapConf.Build()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create logger")
	}
	return logger, nil
}

// Signer from "--key" or "--mnemonic".
func (self config) signer() (*ethcore.Signer, error) {
	switch {
	case self.Key != "" && self.Mnemonic != "":
		return nil, errors.New(`specify either "--key" or "--mnemonic", not both`)
	case self.Key != "":
		return ethcore.ParseSigner(self.Key)
	case self.Mnemonic != "":
		return ethcore.SignerFromMnemonic(self.Mnemonic, self.Passphrase, self.Path)
	default:
		return nil, errors.New(`missing signing key: set "--key", "--mnemonic", ETHTX_KEY or ETHTX_MNEMONIC`)
	}
}

func (self config) watchOpts(logger *zap.Logger) ethcore.WatchOpts {
	return ethcore.WatchOpts{
		Confirmations: self.Confirmations,
		PollInterval:  self.PollInterval,
		Timeout:       self.Timeout,
		MaxReorgs:     self.MaxReorgs,
		Logger:        logger,
		OnChange: func(status ethcore.TxStatus) {
			logger.Info("transaction state",
				zap.Stringer("tx", status.Hash),
				zap.Stringer("state", status.State),
				zap.Uint64("block", status.BlockNumber),
				zap.Uint64("confirmations", status.Confirmations))
		},
	}
}
