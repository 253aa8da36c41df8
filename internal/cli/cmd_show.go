package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/common/expfmt"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/echobuf/pkg/echobuf"
	"github.com/calvinalkan/echobuf/pkg/slotaddr"
)

// ShowCmd returns the show command.
func ShowCmd(s *Session) *Command {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	addOwnerFlags(fs)
	fs.String("address", "", "Slot address (base58 or hex) instead of <ns>/--owner/--seed")

	return &Command{
		Flags: fs,
		Usage: "show (<ns> --owner HEX [--seed N] | --address ADDR)",
		Short: "Show a slot",
		Long:  "Print the fields and data of one slot.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			addr, err := showAddress(fs, args)
			if err != nil {
				return err
			}

			store, err := s.Store(ctx)
			if err != nil {
				return err
			}

			rec, ok, err := store.Lookup(addr)
			if err != nil {
				return err
			}

			if !ok {
				return fmt.Errorf("%w: %s", ErrSlotNotFound, addr)
			}

			printRecord(o, rec)

			return nil
		},
	}
}

func showAddress(fs *flag.FlagSet, args []string) (slotaddr.Address, error) {
	if !fs.Changed("address") {
		ref, err := parseSlotRef(fs, args, nil)
		if err != nil {
			return slotaddr.Address{}, err
		}

		return ref.address(), nil
	}

	if len(args) > 0 || fs.Changed("owner") || fs.Changed("seed") {
		return slotaddr.Address{}, fmt.Errorf("%w: --address with slot inputs", ErrConflictingFlags)
	}

	value, _ := fs.GetString("address")

	return slotaddr.Parse(value)
}

func printRecord(o *IO, rec echobuf.Record) {
	o.Println("address=" + rec.Address.String())
	o.Println("namespace=" + rec.Namespace)
	o.Println("owner=" + hexString(rec.Owner))
	o.Printf("seed=%d\n", rec.Seed)
	o.Println("policy=" + rec.Policy.String())
	o.Printf("capacity=%d\n", rec.Capacity)
	o.Printf("length=%d\n", len(rec.Data))

	switch rec.Policy {
	case echobuf.PolicyWriteOnce:
		o.Printf("written=%t\n", rec.Written)
	case echobuf.PolicyAuthorized:
		o.Printf("owner_seed=%d\n", rec.OwnerSeed)
		o.Printf("declared_size=%d\n", rec.DeclaredSize)
	}

	o.Printf("generation=%d\n", rec.Generation)
	o.Println("data=" + hexString(rec.Data))
}

// LsCmd returns the ls command.
func LsCmd(s *Session) *Command {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	fs.String("namespace", "", "Only list slots in this namespace")

	return &Command{
		Flags: fs,
		Usage: "ls [--namespace NS]",
		Short: "List slots",
		Long:  "List all slots, one per line, ordered by address.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("%w: %v", ErrTooManyArgs, args)
			}

			store, err := s.Store(ctx)
			if err != nil {
				return err
			}

			records, err := store.Records()
			if err != nil {
				return err
			}

			only, _ := fs.GetString("namespace")

			for _, rec := range records {
				if only != "" && rec.Namespace != only {
					continue
				}

				o.Printf("%s %s %s %d/%d gen=%d\n",
					rec.Address, rec.Namespace, rec.Policy, len(rec.Data), rec.Capacity, rec.Generation)
			}

			return nil
		},
	}
}

// StatsCmd returns the stats command.
func StatsCmd(s *Session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("stats", flag.ContinueOnError),
		Usage: "stats",
		Short: "Show operation counters",
		Long: "Print the store's operation metrics in Prometheus text format. " +
			"Counters cover the current session only.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			if _, err := s.Store(ctx); err != nil {
				return err
			}

			families, err := s.Gatherer().Gather()
			if err != nil {
				return fmt.Errorf("gather metrics: %w", err)
			}

			for _, mf := range families {
				if _, err := expfmt.MetricFamilyToText(o.out, mf); err != nil {
					return fmt.Errorf("format metrics: %w", err)
				}
			}

			return nil
		},
	}
}
