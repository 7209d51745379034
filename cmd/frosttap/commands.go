package main

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/f3rmion/frosttap/chain"
	"github.com/f3rmion/frosttap/config"
	"github.com/f3rmion/frosttap/keys"
	"github.com/f3rmion/frosttap/logging"
	"github.com/f3rmion/frosttap/spend"
	"github.com/f3rmion/frosttap/taproot"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "frosttap",
		Short:         "FROST threshold signing for Bitcoin Taproot key-path spends",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.String("config", "", "config file (yaml, toml or json)")
	pf.String("network", "testnet", "bitcoin network: mainnet, testnet, testnet4, signet, regtest")
	pf.String("log-level", "info", "log level")
	pf.String("log-file", "", "also write JSON logs to this rotated file")

	root.AddCommand(newKeygenCmd(), newAddressCmd(), newSpendCmd())
	return root
}

// setup loads configuration for cmd and builds its logger.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func newKeygenCmd() *cobra.Command {
	var (
		threshold, parties int
		output, seedHex    string
		dkg                bool
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a t-of-n key set and write it to a JSON file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			var r io.Reader = rand.Reader
			if seedHex != "" {
				seed, err := parseSeed(seedHex)
				if err != nil {
					return err
				}
				r = keys.NewSeededReader(seed)
			}

			generate := keys.Generate
			if dkg {
				generate = keys.GenerateDKG
			}
			km, err := generate(r, threshold, parties)
			if err != nil {
				return err
			}
			if err := km.Save(output); err != nil {
				return err
			}
			addr, err := km.Address(cfg.Params())
			if err != nil {
				return err
			}
			log.Info("key set generated",
				zap.Int("threshold", threshold),
				zap.Int("parties", parties),
				zap.Bool("dkg", dkg),
				zap.String("output", output),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "%d-of-%d keys saved to %s\naddress: %s\n", threshold, parties, output, addr)
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&threshold, "threshold", 0, "signers required")
	f.IntVar(&parties, "parties", 0, "total participants")
	f.StringVar(&output, "output", "", "key file to write")
	f.StringVar(&seedHex, "seed", "", "32-byte hex seed for reproducible keys")
	f.BoolVar(&dkg, "dkg", false, "use distributed key generation instead of a dealer")
	_ = cmd.MarkFlagRequired("threshold")
	_ = cmd.MarkFlagRequired("parties")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newAddressCmd() *cobra.Command {
	var keyFile string
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Print the group's Taproot address",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := setup(cmd)
			if err != nil {
				return err
			}
			km, err := keys.Load(keyFile)
			if err != nil {
				return err
			}
			addr, err := km.Address(cfg.Params())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), addr)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyFile, "keys", "", "key file")
	_ = cmd.MarkFlagRequired("keys")
	return cmd
}

func newSpendCmd() *cobra.Command {
	var (
		keyFile, utxo, to string
		amount            int64
		dryRun            bool
	)
	cmd := &cobra.Command{
		Use:   "spend",
		Short: "Sign a key-path spend of a group output and broadcast it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			km, err := keys.Load(keyFile)
			if err != nil {
				return err
			}
			op, err := taproot.ParseOutPoint(utxo)
			if err != nil {
				return err
			}
			dest, err := taproot.DecodeAddress(to, cfg.Params())
			if err != nil {
				return err
			}

			client, err := chain.Dial(cfg.ChainRPC(), log)
			if err != nil {
				return err
			}
			defer client.Close()

			s, err := spend.New(km, client, cfg.Params(), cfg.Session(log))
			if err != nil {
				return err
			}
			res, err := s.Spend(cmd.Context(), spend.Request{
				UTXO:   op,
				To:     dest,
				Amount: btcutil.Amount(amount),
				Fee:    cfg.FeeAmount(),
				DryRun: dryRun,
			})
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := res.Tx.Serialize(&buf); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "txid: %s\n", res.TxID)
			fmt.Fprintf(out, "hex: %s\n", hex.EncodeToString(buf.Bytes()))
			if !res.Broadcast {
				fmt.Fprintln(out, "not broadcast (dry run)")
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&keyFile, "keys", "", "key file")
	f.StringVar(&utxo, "utxo", "", "output to spend as txid:vout")
	f.StringVar(&to, "to", "", "destination address")
	f.Int64Var(&amount, "amount", 0, "amount in satoshis")
	f.BoolVar(&dryRun, "dry-run", false, "sign but do not broadcast")
	f.Int64("fee", int64(taproot.DefaultFee), "absolute fee in satoshis")
	f.String("rpc-host", "", "node JSON-RPC host:port")
	f.String("rpc-user", "", "node JSON-RPC user")
	f.String("rpc-pass", "", "node JSON-RPC password")
	f.Duration("round-timeout", 0, "deadline for each signing round")
	f.Bool("strict-deadlines", false, "fail the ceremony when a round deadline passes")
	for _, name := range []string{"keys", "utxo", "to", "amount"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func parseSeed(s string) ([32]byte, error) {
	var seed [32]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(seed) {
		return seed, fmt.Errorf("seed must be %d hex-encoded bytes", len(seed))
	}
	copy(seed[:], b)
	return seed, nil
}
