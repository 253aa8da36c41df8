package cli

import (
	"context"
	"encoding/hex"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/echobuf/pkg/authority"
)

// KeygenCmd returns the keygen command.
func KeygenCmd() *Command {
	return &Command{
		Flags: flag.NewFlagSet("keygen", flag.ContinueOnError),
		Usage: "keygen",
		Short: "Generate an owner key",
		Long: "Generate a secp256k1 key. The identity is the slot owner for " +
			"--key based commands; keep the private key to sign writes.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) > 0 {
				return ErrTooManyArgs
			}

			key, err := authority.GenerateKey()
			if err != nil {
				return err
			}

			o.Println("private_key=" + key.Hex())
			o.Println("identity=" + hex.EncodeToString(key.Identity()))

			return nil
		},
	}
}

// AddrCmd returns the addr command.
func AddrCmd() *Command {
	fs := flag.NewFlagSet("addr", flag.ContinueOnError)
	addOwnerFlags(fs)
	addKeyFlag(fs, "Private key as hex; owner defaults to its identity")

	return &Command{
		Flags: fs,
		Usage: "addr <ns> (--owner HEX | --key HEX) [--seed N]",
		Short: "Print a slot address",
		Long:  "Derive and print the address of a slot without touching the store.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			ref, err := slotRefWithKey(fs, args)
			if err != nil {
				return err
			}

			addr := ref.address()
			o.Println("address=" + addr.String())
			o.Println("hex=" + addr.Hex())

			return nil
		},
	}
}

// SignCmd returns the sign command.
func SignCmd() *Command {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	addOwnerFlags(fs)
	addKeyFlag(fs, "Private key as hex (required)")
	addPayloadFlags(fs)

	return &Command{
		Flags: fs,
		Usage: "sign <ns> --key HEX [--owner HEX] [--seed N] (--data TEXT | --hex HEX)",
		Short: "Sign a payload for auth-write",
		Long: "Sign a payload for the slot at <ns>/owner/seed. Pass the output to " +
			"auth-write --caller/--sig to write without handing over the key.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			key, err := keyFlag(fs)
			if err != nil {
				return err
			}

			if key == nil {
				return ErrKeyRequired
			}

			ref, err := parseSlotRef(fs, args, key.Identity())
			if err != nil {
				return err
			}

			payload, err := payloadFlag(fs)
			if err != nil {
				return err
			}

			o.Println("caller=" + hex.EncodeToString(key.Identity()))
			o.Println("sig=" + hex.EncodeToString(key.SignWrite(ref.address(), payload)))

			return nil
		},
	}
}

// slotRefWithKey resolves the owner from --owner, else from --key.
func slotRefWithKey(fs *flag.FlagSet, args []string) (slotRef, error) {
	key, err := keyFlag(fs)
	if err != nil {
		return slotRef{}, err
	}

	if key != nil && fs.Changed("owner") {
		return slotRef{}, fmt.Errorf("%w: --owner and --key", ErrConflictingFlags)
	}

	var fallback []byte
	if key != nil {
		fallback = key.Identity()
	}

	return parseSlotRef(fs, args, fallback)
}
