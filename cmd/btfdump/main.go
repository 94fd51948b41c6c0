// btfdump decodes the BTF type information embedded in an ELF object (or a
// raw .btf blob) and renders it as either a flat human-readable dump, a
// compilable C reconstruction, or a summary of the paired .BTF.ext section.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jtang613/gobtf/internal/elfsource"
	"github.com/jtang613/gobtf/internal/filterconfig"
	"github.com/jtang613/gobtf/pkg/btf"
	"github.com/jtang613/gobtf/pkg/btfext"
)

// exitCode maps a returned error to the process exit status downstream
// scripts rely on: 1 parse error, 2 layout mismatch, 3 I/O error on output.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, btf.ErrBadSize):
		return 2
	case errors.Is(err, btf.ErrEmitIO):
		return 3
	default:
		return 1
	}
}

var log = logrus.New()

type rootFlags struct {
	verbose  int
	ptrSize  uint32
}

func main() {
	var rf rootFlags

	root := &cobra.Command{
		Use:           "btfdump",
		Short:         "Inspect and reconstruct C types from BTF",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			switch {
			case rf.verbose >= 2:
				log.SetLevel(logrus.TraceLevel)
			case rf.verbose == 1:
				log.SetLevel(logrus.DebugLevel)
			default:
				log.SetLevel(logrus.InfoLevel)
			}
		},
	}
	root.PersistentFlags().CountVarP(&rf.verbose, "verbose", "v", "increase logging verbosity (-v, -vv)")
	root.PersistentFlags().Uint32Var(&rf.ptrSize, "ptr-size", btf.DefaultPointerSize, "pointer width, in bytes, assumed for layout")

	root.AddCommand(newDumpCmd(&rf))
	root.AddCommand(newCCmd(&rf))
	root.AddCommand(newExtCmd(&rf))

	if err := root.Execute(); err != nil {
		log.WithError(err).Error("btfdump failed")
		os.Exit(exitCode(err))
	}
}

// loadUniverse reads path, extracts its .BTF section and decodes it.
func loadUniverse(rf *rootFlags, path string) (*btf.Universe, error) {
	sec, err := elfsource.Load(path)
	if err != nil {
		return nil, err
	}
	log.WithField("file", path).WithField("btf_bytes", len(sec.BTF)).Debug("decoding BTF section")
	u, err := btf.Parse(sec.BTF)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	u.SetPointerSize(rf.ptrSize)
	return u, nil
}

func loadFilter(path string) (*btf.Filter, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading filter config: %w", err)
	}
	return filterconfig.Parse(data)
}

func addFilterFlag(fs *pflag.FlagSet, dst *string) {
	fs.StringVar(dst, "filter-config", "", "YAML file selecting which types to include (ids/names/kinds)")
}

// ---------------------------------------------------------------------------
// dump: flat, one-line-per-declaration human summary (or JSON)
// ---------------------------------------------------------------------------

func newDumpCmd(rf *rootFlags) *cobra.Command {
	var filterPath string
	var asJSON bool
	var pretty bool

	cmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "Print every decoded type, one declaration per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := loadUniverse(rf, args[0])
			if err != nil {
				return err
			}
			f, err := loadFilter(filterPath)
			if err != nil {
				return err
			}

			if asJSON {
				return dumpJSON(u, f, pretty)
			}
			return u.DumpHuman(os.Stdout, f)
		},
	}
	addFilterFlag(cmd.Flags(), &filterPath)
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit structured JSON instead of the flat text dump")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "pretty-print JSON output (only with --json)")
	return cmd
}

// jsonType is the alternate, machine-readable rendering of a single type,
// mirroring the flat text dump's fields rather than round-tripping the
// internal decoder structs directly.
type jsonType struct {
	ID      btf.TypeID `json:"id"`
	Kind    string     `json:"kind"`
	Summary string     `json:"summary"`
}

func dumpJSON(u *btf.Universe, f *btf.Filter, pretty bool) error {
	ids, err := f.Selected(u)
	if err != nil {
		return err
	}
	out := make([]jsonType, 0, len(ids))
	for _, id := range ids {
		t := u.Get(id)
		out = append(out, jsonType{ID: id, Kind: t.Kind().String(), Summary: t.String()})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("%w: %v", btf.ErrEmitIO, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// c: compilable C reconstruction
// ---------------------------------------------------------------------------

func newCCmd(rf *rootFlags) *cobra.Command {
	var filterPath string
	var lenient bool
	var outPath string

	cmd := &cobra.Command{
		Use:   "c <file>",
		Short: "Reconstruct the selected types as compilable C",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := loadUniverse(rf, args[0])
			if err != nil {
				return err
			}
			f, err := loadFilter(filterPath)
			if err != nil {
				return err
			}

			w := os.Stdout
			if outPath != "" {
				out, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("opening %s: %w: %w", outPath, btf.ErrEmitIO, err)
				}
				defer out.Close()
				return u.EmitC(out, f, btf.EmitOptions{Lenient: lenient})
			}
			return u.EmitC(w, f, btf.EmitOptions{Lenient: lenient})
		},
	}
	addFilterFlag(cmd.Flags(), &filterPath)
	cmd.Flags().BoolVar(&lenient, "lenient", false, "continue past a cycle or layout mismatch, annotating it as a comment")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write to this file instead of stdout")
	return cmd
}

// ---------------------------------------------------------------------------
// ext: .BTF.ext summary
// ---------------------------------------------------------------------------

func newExtCmd(rf *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ext <file>",
		Short: "Print func_info/line_info/CO-RE relocation records from .BTF.ext",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sec, err := elfsource.Load(args[0])
			if err != nil {
				return err
			}
			if sec.BTFExt == nil {
				return fmt.Errorf("%s has no .BTF.ext section", args[0])
			}
			u, err := btf.Parse(sec.BTF)
			if err != nil {
				return fmt.Errorf("parsing .BTF: %w", err)
			}
			ext, err := btfext.Parse(sec.BTFExt, u)
			if err != nil {
				return fmt.Errorf("parsing .BTF.ext: %w", err)
			}
			if err := ext.Dump(os.Stdout); err != nil {
				return fmt.Errorf("%w: %w", btf.ErrEmitIO, err)
			}
			return nil
		},
	}
	return cmd
}
