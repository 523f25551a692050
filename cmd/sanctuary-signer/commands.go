package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	jwttoken "sanctuary/internal/jwt_token"
	"sanctuary/internal/vault/keys"
	"sanctuary/pkg/signer"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

// testMessage is the fixed message gen-test-data signs.
const testMessage = "sanctuary_test_user_operation_hash_v1"

var errInvalidSignature = errors.New("signature is not valid")

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func decodeHex(name, s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return b, nil
}

// loadWallet reads a hex private key from --key or, failing that, --key-file.
func loadWallet(key, keyFile string) (*signer.Wallet, error) {
	if key == "" && keyFile != "" {
		raw, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		key = string(raw)
	}
	if key == "" {
		return nil, errors.New("--key or --key-file is required")
	}
	b, err := decodeHex("key", key)
	if err != nil {
		return nil, err
	}
	return signer.FromPrivateKey(b)
}

type keyOutput struct {
	PublicKey     string `json:"public_key"`
	PublicKeyHash string `json:"public_key_hash"`
	PrivateKey    string `json:"private_key,omitempty"`
	KeyFile       string `json:"key_file,omitempty"`
}

func NewKeygenCmd() *cobra.Command {
	var seed, out string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an ML-DSA-44 owner key pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				w   *signer.Wallet
				err error
			)
			if seed != "" {
				b, derr := decodeHex("seed", seed)
				if derr != nil {
					return derr
				}
				w, err = signer.FromSeed(b)
			} else {
				w, err = signer.New()
			}
			if err != nil {
				return err
			}
			sk, err := w.PrivateKey()
			if err != nil {
				return err
			}

			res := keyOutput{
				PublicKey:     hexutil.Encode(w.PublicKey()),
				PublicKeyHash: w.PublicKeyHash().Hex(),
			}
			if out != "" {
				if err := os.WriteFile(out, []byte(hexutil.Encode(sk)), 0o600); err != nil {
					return fmt.Errorf("write key file: %w", err)
				}
				res.KeyFile = out
			} else {
				res.PrivateKey = hexutil.Encode(sk)
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&seed, "seed", "", "32-byte hex seed for deterministic keys")
	cmd.Flags().StringVar(&out, "out", "", "write the private key to this file instead of stdout")
	return cmd
}

type signOutput struct {
	Signature       string `json:"signature"`
	SignatureDigest string `json:"signature_digest"`
}

func NewSignCmd() *cobra.Command {
	var key, keyFile, message string
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a hex message, usually an operation hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w, err := loadWallet(key, keyFile)
			if err != nil {
				return err
			}
			msg, err := decodeHex("message", message)
			if err != nil {
				return err
			}
			sig := w.Sign(msg)
			return printJSON(cmd, signOutput{
				Signature:       hexutil.Encode(sig),
				SignatureDigest: keys.SignatureDigest(sig).Hex(),
			})
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "hex private key")
	cmd.Flags().StringVar(&keyFile, "key-file", "", "file holding the hex private key")
	cmd.Flags().StringVar(&message, "message", "", "hex message to sign")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func NewVerifyCmd() *cobra.Command {
	var publicKey, message, signature string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a detached signature",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pk, err := decodeHex("public-key", publicKey)
			if err != nil {
				return err
			}
			msg, err := decodeHex("message", message)
			if err != nil {
				return err
			}
			sig, err := decodeHex("signature", signature)
			if err != nil {
				return err
			}
			ok, err := signer.Verify(pk, msg, sig)
			if err != nil {
				return err
			}
			if err := printJSON(cmd, map[string]bool{"valid": ok}); err != nil {
				return err
			}
			if !ok {
				return errInvalidSignature
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&publicKey, "public-key", "", "hex public key")
	cmd.Flags().StringVar(&message, "message", "", "hex message")
	cmd.Flags().StringVar(&signature, "signature", "", "hex signature")
	_ = cmd.MarkFlagRequired("public-key")
	_ = cmd.MarkFlagRequired("message")
	_ = cmd.MarkFlagRequired("signature")
	return cmd
}

func NewOperationHashCmd() *cobra.Command {
	var (
		vault, target, value, payload string
		nonce, chainID                uint64
	)
	cmd := &cobra.Command{
		Use:   "operation-hash",
		Short: "Compute the operation hash the owner signs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !common.IsHexAddress(vault) {
				return fmt.Errorf("vault: invalid address %q", vault)
			}
			if !common.IsHexAddress(target) {
				return fmt.Errorf("target: invalid address %q", target)
			}
			amount, ok := new(big.Int).SetString(value, 10)
			if !ok || amount.Sign() < 0 || amount.BitLen() > 256 {
				return fmt.Errorf("value: must be a non-negative 256-bit decimal, got %q", value)
			}
			var data []byte
			if payload != "" {
				var err error
				if data, err = decodeHex("payload", payload); err != nil {
					return err
				}
			}
			hash := keys.OperationHash(keys.Operation{
				Vault:   common.HexToAddress(vault),
				Target:  common.HexToAddress(target),
				Value:   amount,
				Payload: data,
				Nonce:   nonce,
				ChainID: chainID,
			})
			return printJSON(cmd, map[string]any{"operation_hash": hash.Hex(), "nonce": nonce})
		},
	}
	cmd.Flags().StringVar(&vault, "vault", "", "vault address")
	cmd.Flags().StringVar(&target, "target", "", "call target address")
	cmd.Flags().StringVar(&value, "value", "0", "decimal value")
	cmd.Flags().StringVar(&payload, "payload", "", "hex call payload")
	cmd.Flags().Uint64Var(&nonce, "nonce", 0, "vault execution counter")
	cmd.Flags().Uint64Var(&chainID, "chain-id", 1, "chain id")
	_ = cmd.MarkFlagRequired("vault")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

type testData struct {
	Message         string `json:"message"`
	PublicKey       string `json:"public_key"`
	PublicKeySize   int    `json:"public_key_size"`
	PublicKeyHash   string `json:"public_key_hash"`
	Signature       string `json:"signature"`
	SignatureSize   int    `json:"signature_size"`
	SignatureDigest string `json:"signature_digest"`
	Valid           bool   `json:"valid"`
}

// NewGenTestDataCmd emits a key pair and a signature over a fixed message
// for integration fixtures.
func NewGenTestDataCmd() *cobra.Command {
	var seed string
	cmd := &cobra.Command{
		Use:   "gen-test-data",
		Short: "Print a public key and signature fixture",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				w   *signer.Wallet
				err error
			)
			if seed != "" {
				b, derr := decodeHex("seed", seed)
				if derr != nil {
					return derr
				}
				w, err = signer.FromSeed(b)
			} else {
				w, err = signer.New()
			}
			if err != nil {
				return err
			}

			msg := []byte(testMessage)
			sig := w.Sign(msg)
			ok, err := signer.Verify(w.PublicKey(), msg, sig)
			if err != nil {
				return err
			}
			return printJSON(cmd, testData{
				Message:         testMessage,
				PublicKey:       hexutil.Encode(w.PublicKey()),
				PublicKeySize:   len(w.PublicKey()),
				PublicKeyHash:   w.PublicKeyHash().Hex(),
				Signature:       hexutil.Encode(sig),
				SignatureSize:   len(sig),
				SignatureDigest: keys.SignatureDigest(sig).Hex(),
				Valid:           ok,
			})
		},
	}
	cmd.Flags().StringVar(&seed, "seed", "", "32-byte hex seed for a reproducible fixture")
	return cmd
}

func NewTokenCmd() *cobra.Command {
	var (
		signingKey, issuer, audience, principal string
		ttl                                     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a caller address (development)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !common.IsHexAddress(principal) {
				return fmt.Errorf("principal: invalid address %q", principal)
			}
			if signingKey == "" {
				signingKey = os.Getenv("JWT_SIGNING_KEY")
			}
			if signingKey == "" {
				return errors.New("--signing-key or JWT_SIGNING_KEY is required")
			}
			token, err := jwttoken.NewJWTService(signingKey, issuer, audience).
				GenerateAccessToken(common.HexToAddress(principal), ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&signingKey, "signing-key", "", "HMAC signing key (defaults to $JWT_SIGNING_KEY)")
	cmd.Flags().StringVar(&issuer, "issuer", "sanctuary", "token issuer")
	cmd.Flags().StringVar(&audience, "audience", "sanctuary-api", "token audience")
	cmd.Flags().StringVar(&principal, "principal", "", "caller address")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("principal")
	return cmd
}
