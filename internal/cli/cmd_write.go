package cli

import (
	"context"
	"encoding/hex"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/echobuf/pkg/authority"
)

// CreateCmd returns the create command.
func CreateCmd(s *Session) *Command {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	addOwnerFlags(fs)
	addKeyFlag(fs, "Private key as hex; owner becomes its identity")
	fs.Uint64("capacity", 0, "Buffer capacity in bytes (required)")

	return &Command{
		Flags: fs,
		Usage: "create <ns> (--owner HEX | --key HEX) [--seed N] --capacity N",
		Short: "Create a slot",
		Long: "Create an empty slot backed by a zero-filled buffer of --capacity bytes. The namespace " +
			"decides the policy: write-once slots accept one write, authorized " +
			"slots accept repeated writes from their owner.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			ref, err := slotRefWithKey(fs, args)
			if err != nil {
				return err
			}

			capacity, _ := fs.GetUint64("capacity")

			store, err := s.Store(ctx)
			if err != nil {
				return err
			}

			addr, err := store.Create(ctx, ref.namespace, ref.owner, ref.seed, capacity)
			if err != nil {
				return err
			}

			o.Println("address=" + addr.String())
			o.Println("policy=" + store.PolicyFor(ref.namespace).String())

			return nil
		},
	}
}

// WriteCmd returns the write command.
func WriteCmd(s *Session) *Command {
	fs := flag.NewFlagSet("write", flag.ContinueOnError)
	addOwnerFlags(fs)
	addPayloadFlags(fs)

	return &Command{
		Flags: fs,
		Usage: "write <ns> --owner HEX [--seed N] (--data TEXT | --hex HEX)",
		Short: "Write once to a slot",
		Long: "Copy the payload into a write-once slot. Payloads longer than the " +
			"slot are truncated to its capacity. A second write fails.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			ref, err := parseSlotRef(fs, args, nil)
			if err != nil {
				return err
			}

			payload, err := payloadFlag(fs)
			if err != nil {
				return err
			}

			store, err := s.Store(ctx)
			if err != nil {
				return err
			}

			n, err := store.WriteOnce(ctx, ref.namespace, ref.owner, ref.seed, payload)
			if err != nil {
				return err
			}

			warnTruncated(o, n, len(payload))
			o.Printf("wrote=%d\n", n)

			return nil
		},
	}
}

// AuthWriteCmd returns the auth-write command.
func AuthWriteCmd(s *Session) *Command {
	fs := flag.NewFlagSet("auth-write", flag.ContinueOnError)
	addOwnerFlags(fs)
	addKeyFlag(fs, "Private key as hex; signs the write locally")
	fs.String("caller", "", "Caller identity as hex (with --sig)")
	fs.String("sig", "", "Signature as hex from the sign command (with --caller)")
	addPayloadFlags(fs)

	return &Command{
		Flags: fs,
		Usage: "auth-write <ns> (--key HEX | --caller HEX --sig HEX) [--owner HEX] [--seed N] (--data TEXT | --hex HEX)",
		Short: "Overwrite an authorized slot",
		Long: "Replace the contents of an authorized slot. The write must be signed " +
			"by the caller, and the caller must be the slot owner. --owner " +
			"defaults to the caller.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			payload, err := payloadFlag(fs)
			if err != nil {
				return err
			}

			caller, sign, err := callerFlags(fs)
			if err != nil {
				return err
			}

			ref, err := parseSlotRef(fs, args, caller)
			if err != nil {
				return err
			}

			sig, err := sign(ref, payload)
			if err != nil {
				return err
			}

			if err := authority.VerifyWrite(caller, ref.address(), payload, sig); err != nil {
				return err
			}

			store, err := s.Store(ctx)
			if err != nil {
				return err
			}

			n, err := store.AuthorizedWrite(ctx, ref.namespace, ref.owner, ref.seed, payload, caller)
			if err != nil {
				return err
			}

			warnTruncated(o, n, len(payload))
			o.Printf("wrote=%d\n", n)

			return nil
		},
	}
}

type signFunc func(ref slotRef, payload []byte) ([]byte, error)

// callerFlags resolves the caller identity and how its signature is
// obtained: signed here with --key, or supplied with --caller/--sig.
func callerFlags(fs *flag.FlagSet) ([]byte, signFunc, error) {
	key, err := keyFlag(fs)
	if err != nil {
		return nil, nil, err
	}

	external := fs.Changed("caller") || fs.Changed("sig")

	switch {
	case key != nil && external:
		return nil, nil, fmt.Errorf("%w: --key and --caller/--sig", ErrConflictingFlags)
	case key != nil:
		return key.Identity(), func(ref slotRef, payload []byte) ([]byte, error) {
			return key.SignWrite(ref.address(), payload), nil
		}, nil
	case fs.Changed("caller") && fs.Changed("sig"):
		caller, err := hexFlag(fs, "caller")
		if err != nil {
			return nil, nil, err
		}

		return caller, func(slotRef, []byte) ([]byte, error) {
			return hexFlag(fs, "sig")
		}, nil
	default:
		return nil, nil, fmt.Errorf("%w or --caller with --sig", ErrKeyRequired)
	}
}

func warnTruncated(o *IO, written, given int) {
	if written < given {
		o.Warn(fmt.Sprintf("payload truncated: %d of %d bytes written", written, given))
	}
}

func hexString(b []byte) string {
	return hex.EncodeToString(b)
}
