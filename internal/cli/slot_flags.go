package cli

import (
	"encoding/hex"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/echobuf/pkg/authority"
	"github.com/calvinalkan/echobuf/pkg/slotaddr"
)

// slotRef identifies a slot from command-line input.
type slotRef struct {
	namespace string
	owner     []byte
	seed      uint64
}

func (r slotRef) address() slotaddr.Address {
	return slotaddr.Derive(r.namespace, r.owner, r.seed)
}

func addOwnerFlags(fs *flag.FlagSet) {
	fs.String("owner", "", "Owner identity as hex")
	fs.Uint64("seed", 0, "Slot seed")
}

func addKeyFlag(fs *flag.FlagSet, usage string) {
	fs.String("key", "", usage)
}

func addPayloadFlags(fs *flag.FlagSet) {
	fs.String("data", "", "Payload as text")
	fs.String("hex", "", "Payload as hex")
}

// namespaceArg returns the single positional namespace argument.
func namespaceArg(args []string) (string, error) {
	switch len(args) {
	case 0:
		return "", ErrNamespaceRequired
	case 1:
		return args[0], nil
	default:
		return "", fmt.Errorf("%w: %v", ErrTooManyArgs, args[1:])
	}
}

func hexFlag(fs *flag.FlagSet, name string) ([]byte, error) {
	value, _ := fs.GetString(name)

	raw, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w in --%s: %w", ErrInvalidHex, name, err)
	}

	return raw, nil
}

// keyFlag parses --key, returning nil if it was not given.
func keyFlag(fs *flag.FlagSet) (*authority.Key, error) {
	if !fs.Changed("key") {
		return nil, nil
	}

	value, _ := fs.GetString("key")

	key, err := authority.ParseKey(value)
	if err != nil {
		return nil, fmt.Errorf("--key: %w", err)
	}

	return key, nil
}

// parseSlotRef reads the namespace argument, --seed, and the owner from
// --owner or, failing that, fallback. fallback may be nil.
func parseSlotRef(fs *flag.FlagSet, args []string, fallback []byte) (slotRef, error) {
	ns, err := namespaceArg(args)
	if err != nil {
		return slotRef{}, err
	}

	seed, _ := fs.GetUint64("seed")
	ref := slotRef{namespace: ns, seed: seed}

	switch {
	case fs.Changed("owner"):
		ref.owner, err = hexFlag(fs, "owner")
		if err != nil {
			return slotRef{}, err
		}
	case fallback != nil:
		ref.owner = fallback
	default:
		return slotRef{}, ErrOwnerRequired
	}

	return ref, nil
}

// payloadFlag returns --data or --hex; exactly one must be set.
func payloadFlag(fs *flag.FlagSet) ([]byte, error) {
	hasData, hasHex := fs.Changed("data"), fs.Changed("hex")

	switch {
	case hasData && hasHex:
		return nil, fmt.Errorf("%w: --data and --hex", ErrConflictingFlags)
	case hasData:
		data, _ := fs.GetString("data")

		return []byte(data), nil
	case hasHex:
		return hexFlag(fs, "hex")
	default:
		return nil, ErrDataRequired
	}
}
