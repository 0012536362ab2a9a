/*
A CLI tool for signing, submitting and watching Ethereum transactions.

Example usage:

	export ETHTX_KEY=0x...
	ethtx address
	ethtx sign --to 0x... --value 0.1 --nonce 0 --gas-price 20 --gas 21000 --chain-id 1
	ethtx send --rpc https://... --to 0x... --value 0.1 --confirmations 3
	ethtx wait --rpc https://... 0x<hash>
	ethtx recover 0x<raw>

Settings can also come from "ETHTX_*" environment variables or a YAML file passed
via "--config". Amounts are decimal: "--value" in ether, "--gas-price" in gwei.
*/
package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/purelabio/ethcore"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := newRootCommand().ExecuteContext(ctx)
	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "ethtx",
		Short:        "Sign, submit and watch Ethereum transactions",
		SilenceUsage: true,
	}
	addConfigFlags(root.PersistentFlags())

	root.AddCommand(
		newAddressCommand(),
		newSignCommand(),
		newSendCommand(),
		newWaitCommand(),
		newRecoverCommand(),
	)
	return root
}

// Loads the config and logger for a subcommand.
func setup(cmd *cobra.Command) (config, *zap.Logger, error) {
	conf, err := loadConfig(cmd.Flags())
	if err != nil {
		return conf, nil, err
	}
	logger, err := newLogger(conf)
	if err != nil {
		return conf, nil, err
	}
	return conf, logger, nil
}

func newAddressCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Print the checksummed address of the signing key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, _, err := setup(cmd)
			if err != nil {
				return err
			}
			signer, err := conf.signer()
			if err != nil {
				return err
			}
			defer signer.Zero()

			_, err = io.WriteString(cmd.OutOrStdout(), signer.Address().Checksum()+"\n")
			return errors.WithStack(err)
		},
	}
}

// Transaction fields given on the command line. Empty means "ask the node".
type txFlags struct {
	to       string
	value    string
	data     string
	nonce    string
	gasPrice string
	gas      string
}

func (self *txFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&self.to, "to", "", "recipient; omit to deploy a contract from --data")
	flags.StringVar(&self.value, "value", "0", "amount in ether")
	flags.StringVar(&self.data, "data", "", "hex-encoded payload")
	flags.StringVar(&self.nonce, "nonce", "", "nonce")
	flags.StringVar(&self.gasPrice, "gas-price", "", "gas price in gwei")
	flags.StringVar(&self.gas, "gas", "", "gas limit")
}

func (self txFlags) params(conf config) (ethcore.TxParams, error) {
	var out ethcore.TxParams
	var err error

	if self.to != "" {
		to, err := ethcore.ParseAddress(self.to)
		if err != nil {
			return out, errors.Wrap(err, "invalid --to")
		}
		out.To = &to
	}

	out.Value, err = ethcore.ParseUnits(self.value, ethcore.EtherDecimals)
	if err != nil {
		return out, errors.Wrap(err, "invalid --value")
	}

	if self.data != "" {
		out.Data, err = ethcore.ParseHexBytes(self.data)
		if err != nil {
			return out, errors.Wrap(err, "invalid --data")
		}
	}

	if out.Nonce, err = optionalU256(self.nonce); err != nil {
		return out, errors.Wrap(err, "invalid --nonce")
	}
	if out.GasLimit, err = optionalU256(self.gas); err != nil {
		return out, errors.Wrap(err, "invalid --gas")
	}
	if out.ChainId, err = optionalU256(conf.ChainId); err != nil {
		return out, errors.Wrap(err, "invalid --chain-id")
	}

	if self.gasPrice != "" {
		gasPrice, err := ethcore.ParseUnits(self.gasPrice, ethcore.GweiDecimals)
		if err != nil {
			return out, errors.Wrap(err, "invalid --gas-price")
		}
		out.GasPrice = &gasPrice
	}
	return out, nil
}

func optionalU256(input string) (*ethcore.U256, error) {
	if input == "" {
		return nil, nil
	}
	out, err := ethcore.ParseU256(input)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// JSON summary printed by "sign", "send" and "recover".
type txSummary struct {
	Hash    ethcore.Hash      `json:"hash"`
	From    ethcore.Address   `json:"from"`
	ChainId ethcore.U256      `json:"chainId"`
	Tx      ethcore.UnsignedTx `json:"tx"`
	Raw     string            `json:"raw"`
}

func summarize(tx ethcore.SignedTx) (txSummary, error) {
	from, err := tx.RecoverSender()
	if err != nil {
		return txSummary{}, err
	}
	return txSummary{
		Hash:    tx.Hash(),
		From:    from,
		ChainId: tx.Tx.ChainId,
		Tx:      tx.Tx,
		Raw:     tx.RawHex(),
	}, nil
}

func printJson(out io.Writer, val interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return errors.WithStack(enc.Encode(val))
}

func newSignCommand() *cobra.Command {
	var flags txFlags

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a transaction offline and print its raw form",
		Long: `Signs without contacting a node, so every field must be given:
--nonce, --gas-price, --gas and --chain-id.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, _, err := setup(cmd)
			if err != nil {
				return err
			}
			params, err := flags.params(conf)
			if err != nil {
				return err
			}
			if params.Nonce == nil || params.GasPrice == nil || params.GasLimit == nil || params.ChainId == nil {
				return errors.New(`offline signing requires "--nonce", "--gas-price", "--gas" and "--chain-id"`)
			}

			signer, err := conf.signer()
			if err != nil {
				return err
			}
			defer signer.Zero()

			signed, err := signer.SignTx(ethcore.UnsignedTx{
				Nonce:    *params.Nonce,
				GasPrice: *params.GasPrice,
				GasLimit: *params.GasLimit,
				To:       params.To,
				Value:    params.Value,
				Data:     params.Data,
				ChainId:  *params.ChainId,
			})
			if err != nil {
				return err
			}

			summary, err := summarize(signed)
			if err != nil {
				return err
			}
			return printJson(cmd.OutOrStdout(), summary)
		},
	}
	flags.register(cmd)
	return cmd
}

func newSendCommand() *cobra.Command {
	var flags txFlags
	var noWait bool

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Sign and submit a transaction, then wait for confirmations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			params, err := flags.params(conf)
			if err != nil {
				return err
			}
			signer, err := conf.signer()
			if err != nil {
				return err
			}
			defer signer.Zero()

			trans, err := ethcore.Dial(conf.Rpc, logger)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pending, err := ethcore.SendTx(ctx, trans, signer, params, conf.watchOpts(logger))
			if err != nil {
				return err
			}
			logger.Info("transaction submitted", zap.Stringer("tx", pending.Hash))

			if noWait {
				return printJson(cmd.OutOrStdout(), pending.Status())
			}
			receipt, err := pending.Wait(ctx)
			if err != nil {
				return err
			}
			return printJson(cmd.OutOrStdout(), receipt)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "exit after submitting")
	return cmd
}

func newWaitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "wait <hash>",
		Short: "Wait for an already submitted transaction to be confirmed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			hash, err := ethcore.ParseHash(args[0])
			if err != nil {
				return err
			}
			trans, err := ethcore.Dial(conf.Rpc, logger)
			if err != nil {
				return err
			}

			receipt, err := ethcore.NewPendingTx(trans, hash, conf.watchOpts(logger)).Wait(cmd.Context())
			if err != nil {
				return err
			}
			return printJson(cmd.OutOrStdout(), receipt)
		},
	}
}

func newRecoverCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "recover <raw>",
		Short: "Decode a raw transaction and print its sender, chain id and hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signed, err := ethcore.ParseSignedTx(args[0])
			if err != nil {
				return err
			}
			summary, err := summarize(signed)
			if err != nil {
				return err
			}
			return printJson(cmd.OutOrStdout(), summary)
		},
	}
}
