// Command xmiunload decodes a NETDATA/XMI, AWSTAPE, or HET container and
// either prints a summary, dumps a JSON projection, or unloads its
// datasets/members to a directory tree. It is the thin driver spec.md §1
// scopes as external to the decoder core, modeled on AlexFalzone-zm's
// cmd/root.go: configuration is loaded once, here at the start of the
// root command's RunE, and dispatch goes from there.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mainframed/xmi/archive"
	"github.com/mainframed/xmi/archivejson"
	"github.com/mainframed/xmi/classify"
	"github.com/mainframed/xmi/config"
	"github.com/mainframed/xmi/ebcdic"
	"github.com/mainframed/xmi/internal/cliconfig"
	"github.com/mainframed/xmi/unloadfs"
)

// exitArgumentError, exitDecodeFailure mirror spec.md §6's exit-code
// contract; 0 (success) is os.Exit's implicit default.
const (
	exitDecodeFailure = 1
	exitArgumentError = 2
)

var flags struct {
	unnum     bool
	force     bool
	binary    bool
	quiet     bool
	human     bool
	jsonOut   bool
	jsonFile  string
	outputDir string
	encoding  string
	lrecl     int
	modify    bool
	print     string
	debug     bool
	config    string
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		var argErr *argumentError
		if asArgumentError(err, &argErr) {
			os.Exit(exitArgumentError)
		}
		os.Exit(exitDecodeFailure)
	}
}

// argumentError marks a cobra RunE failure as a usage problem (exit 2)
// rather than a decode failure (exit 1).
type argumentError struct{ err error }

func (e *argumentError) Error() string { return e.err.Error() }
func (e *argumentError) Unwrap() error { return e.err }

func asArgumentError(err error, target **argumentError) bool {
	ae, ok := err.(*argumentError)
	if ok {
		*target = ae
	}
	return ok
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "xmiunload FILE",
		Short: "Decode a NETDATA/XMI, AWSTAPE, or HET container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0])
		},
		SilenceUsage: true,
	}

	cmd.Flags().BoolVarP(&flags.unnum, "unnum", "u", true, "strip sequence numbers from fixed-80 text")
	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "force text classification")
	cmd.Flags().BoolVarP(&flags.binary, "binary", "b", false, "force binary classification")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "emit only warnings and errors")
	cmd.Flags().BoolVarP(&flags.human, "human", "H", false, "print a human-readable summary table")
	cmd.Flags().BoolVarP(&flags.jsonOut, "json", "j", false, "print the dump_json projection")
	cmd.Flags().StringVar(&flags.jsonFile, "jsonfile", "", "write the JSON projection to a file instead of stdout")
	cmd.Flags().StringVar(&flags.outputDir, "outputdir", "", "unload datasets/members into this directory")
	cmd.Flags().StringVar(&flags.encoding, "encoding", ebcdic.DefaultCodePage, "EBCDIC code page name")
	cmd.Flags().IntVar(&flags.lrecl, "lrecl", 0, "override the detected LRECL")
	cmd.Flags().BoolVarP(&flags.modify, "modify", "m", false, "preserve original modify dates on unloaded files")
	cmd.Flags().StringVarP(&flags.print, "print", "p", "", "print one dataset or member's decoded contents to stdout")
	cmd.Flags().BoolVarP(&flags.debug, "debug", "d", false, "emit a per-record debug trace")
	cmd.Flags().StringVar(&flags.config, "config", "", "YAML file of default flag values")

	return cmd
}

func run(cmd *cobra.Command, path string) error {
	defaults, err := cliconfig.Load(flags.config)
	if err != nil {
		return &argumentError{err}
	}
	applyDefaults(cmd, defaults)

	raw, err := os.ReadFile(path)
	if err != nil {
		return &argumentError{fmt.Errorf("cannot read %s: %w", path, err)}
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	cfg := config.New(
		config.WithEncoding(flags.encoding),
		config.WithUnnum(flags.unnum),
		config.WithForceText(flags.force),
		config.WithBinaryOnly(flags.binary),
		config.WithPreserveModifyDate(flags.modify),
		config.WithLreclOverride(flags.lrecl),
		config.WithLogger(logger),
		config.WithQuiet(flags.quiet),
		config.WithDebug(flags.debug),
	)

	cp, err := ebcdic.Lookup(flags.encoding)
	if err != nil {
		return &argumentError{err}
	}

	a, decodeErr := archive.Decode(raw, cfg)
	if decodeErr != nil {
		var partial *archive.PartialError
		if pe, ok := decodeErr.(*archive.PartialError); ok {
			partial = pe
			a = partial.Archive
		}
		logger.Printf("decode error: %v", decodeErr)
		if a == nil {
			return decodeErr
		}
		// Fall through: report whatever partial state was assembled, per
		// spec.md §7's "callers may still inspect partial state", but
		// still exit 1 once reporting is done.
		defer func() { os.Exit(exitDecodeFailure) }()
	}

	if !flags.quiet && a.Warnings != nil {
		for _, w := range a.Warnings.Errors {
			logger.Printf("warning: %v", w)
		}
	}

	if flags.human {
		printHuman(a)
	}

	if flags.print != "" {
		printMember(a, flags.print, cp)
	}

	if flags.jsonOut || flags.jsonFile != "" {
		doc := archivejson.Project(a, archivejson.Options{
			Text:     true,
			CodePage: cp,
			Classify: classify.Options{Force: flags.force, BinaryOnly: flags.binary, Unnum: flags.unnum},
		})
		body, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		if flags.jsonFile != "" {
			if err := os.WriteFile(flags.jsonFile, body, 0o644); err != nil {
				return err
			}
		} else {
			fmt.Println(string(body))
		}
	}

	if flags.outputDir != "" {
		err := unloadfs.Write(a, flags.outputDir, unloadfs.Options{
			CodePage: cp,
			Classify: classify.Options{Force: flags.force, BinaryOnly: flags.binary, Unnum: flags.unnum},
		})
		if err != nil {
			return err
		}
	}

	if decodeErr != nil {
		return decodeErr
	}
	return nil
}

// applyDefaults fills in any flag the user didn't pass on the command
// line from a loaded YAML config, per zm's config-then-flags precedence.
func applyDefaults(cmd *cobra.Command, d *cliconfig.Defaults) {
	if d == nil {
		return
	}
	if d.Unnum != nil && !cmd.Flags().Changed("unnum") {
		flags.unnum = *d.Unnum
	}
	if d.Force != nil && !cmd.Flags().Changed("force") {
		flags.force = *d.Force
	}
	if d.Binary != nil && !cmd.Flags().Changed("binary") {
		flags.binary = *d.Binary
	}
	if d.Encoding != "" && !cmd.Flags().Changed("encoding") {
		flags.encoding = d.Encoding
	}
	if d.OutputDir != "" && !cmd.Flags().Changed("outputdir") {
		flags.outputDir = d.OutputDir
	}
	if d.Lrecl != 0 && !cmd.Flags().Changed("lrecl") {
		flags.lrecl = d.Lrecl
	}
}

// printHuman prints a compact summary table, an idiomatic-Go stand-in for
// the source library's PrettyTable output (no such dependency appears
// anywhere in the retrieval pack, so stdlib text/tabwriter is used
// directly rather than reached past).
func printHuman(a *archive.Archive) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATASET\tORG\tRECFM\tLRECL\tBYTES")
	for _, ds := range a.Datasets {
		if ds == a.Message {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", ds.Name, ds.Organization, ds.Recfm.String(), ds.Lrecl, ds.TotalBytes)
		for _, m := range ds.Members {
			fmt.Fprintf(w, "  %s\t\t\t\t%d\n", m.Name, len(m.Bytes))
		}
	}
	w.Flush()
}

func printMember(a *archive.Archive, name string, cp *ebcdic.CodePage) {
	for _, ds := range a.Datasets {
		if ds.Name == name && ds.Organization == archive.OrgPS {
			os.Stdout.Write(ds.Bytes)
			return
		}
		if m, ok := ds.LookupMember(name); ok {
			os.Stdout.Write(m.Bytes)
			return
		}
	}
	fmt.Fprintf(os.Stderr, "no dataset or member named %q\n", name)
}
