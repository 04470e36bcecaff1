package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/cobra"

	"vmcheck"
	"vmcheck/choice"
	"vmcheck/vector"
	"vmcheck/vm"
)

type rootFlags struct {
	config  string
	verbose bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "vmcheck",
		Short: "Canonical state fingerprints for model checking",
		Long: `vmcheck turns snapshots of a program's live state into canonical fingerprints.

Two snapshots that differ only in the numbering of their objects get the same
fingerprint. Strategies are selected with a YAML configuration file.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.config, "config", "", "YAML configuration file")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(newFingerprintCmd(flags))
	root.AddCommand(newChoicesCmd())
	return root
}

func newLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

type fingerprintFlags struct {
	graph bool
}

func newFingerprintCmd(root *rootFlags) *cobra.Command {
	flags := &fingerprintFlags{}
	cmd := &cobra.Command{
		Use:   "fingerprint SNAPSHOT...",
		Short: "Print the fingerprint of each snapshot",
		Long: `Print the fingerprint of each YAML snapshot together with its hash.

When more than one snapshot is provided, the snapshots sharing a fingerprint
are reported as the same state.

Examples:
  vmcheck fingerprint state.yaml
  vmcheck fingerprint --graph state.yaml
  vmcheck fingerprint --config vmcheck.yaml a.yaml b.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFingerprint(cmd, root, flags, args)
		},
	}
	cmd.Flags().BoolVar(&flags.graph, "graph", false, "also print the linearized state graph")
	return cmd
}

func runFingerprint(cmd *cobra.Command, root *rootFlags, flags *fingerprintFlags, paths []string) error {
	logger := newLogger(cmd, root.verbose)
	opts := []vmcheck.Option{vmcheck.WithLogger(logger)}
	if root.config != "" {
		opts = append(opts, vmcheck.WithConfigFile(root.config))
	}
	fp, err := vmcheck.PrepareFingerprinter(opts...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	seen := map[uint64][]seenState{}
	for _, path := range paths {
		state, err := readSnapshot(path)
		if err != nil {
			return err
		}
		if err := fp.Prepare(state.Classes(), state.Methods()); err != nil {
			return fmt.Errorf("%v: %w", path, err)
		}
		if flags.graph {
			g, err := fp.Graph(state)
			if err != nil {
				return fmt.Errorf("%v: %w", path, err)
			}
			fmt.Fprintf(out, "%v graph:\n%v", path, g)
		}
		v, err := fp.Fingerprint(state)
		if err != nil {
			return fmt.Errorf("%v: %w", path, err)
		}
		h := xxhash.Sum64(v.Bytes())
		fmt.Fprintf(out, "%v %016x %v\n", path, h, v)
		if first, ok := sameState(seen[h], v); ok {
			fmt.Fprintf(out, "%v is the same state as %v\n", path, first)
			continue
		}
		seen[h] = append(seen[h], seenState{path: path, fp: v})
	}
	return nil
}

type seenState struct {
	path string
	fp   *vector.IntVector
}

// sameState returns the path of the state in bucket whose fingerprint equals fp.
func sameState(bucket []seenState, fp *vector.IntVector) (string, bool) {
	for _, st := range bucket {
		if st.fp.Equal(fp) {
			return st.path, true
		}
	}
	return "", false
}

func readSnapshot(path string) (*vm.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := vm.DecodeSnapshot(f)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", path, err)
	}
	return s, nil
}

type choicesFlags struct {
	kind string
	id   string
	seed int64
}

func newChoicesCmd() *cobra.Command {
	flags := &choicesFlags{}
	cmd := &cobra.Command{
		Use:   "choices SPEC",
		Short: "Enumerate the choices of a value specification",
		Long: `Enumerate the choices a generator built from SPEC visits, one per line.

Kinds:
  int       comma separated values and ranges, e.g. "-1,0,2" or "1..4"
  double    comma separated values, e.g. "0.5,1.5"
  interval  min:max[:delta], e.g. "0:10:2"
  bool      false then true, SPEC is ignored`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := ""
			if len(args) > 0 {
				spec = args[0]
			}
			return runChoices(cmd, flags, spec)
		},
	}
	cmd.Flags().StringVar(&flags.kind, "kind", "int", "generator kind: int, double, interval or bool")
	cmd.Flags().StringVar(&flags.id, "id", "choice", "generator id")
	cmd.Flags().Int64Var(&flags.seed, "seed", 0, "randomize the order of the choices with this seed")
	return cmd
}

func newGenerator(kind, id, spec string) (choice.Generator, error) {
	switch kind {
	case "int":
		return choice.ParseIntChoiceFromSet(id, spec)
	case "double":
		return choice.ParseDoubleChoiceFromSet(id, spec)
	case "interval":
		return choice.ParseIntInterval(id, spec)
	case "bool":
		return choice.NewBooleanChoiceGenerator(id), nil
	}
	return nil, fmt.Errorf("unknown generator kind %v", kind)
}

func runChoices(cmd *cobra.Command, flags *choicesFlags, spec string) error {
	g, err := newGenerator(flags.kind, flags.id, spec)
	if err != nil {
		return err
	}
	if flags.seed != 0 {
		g = g.Randomize(rand.New(rand.NewSource(flags.seed)))
	}
	out := cmd.OutOrStdout()
	for g.HasMoreChoices() {
		g.Advance()
		fmt.Fprintf(out, "%v/%v %v %v\n", g.ProcessedNumberOfChoices(), g.TotalNumberOfChoices(), g.Choice(), g)
	}
	return nil
}
