// Package cli holds flag helpers shared by fswatch commands.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

const (
	defaultHelpDesc    = "Show help"
	defaultVersionDesc = "Print version and exit"
)

type HelpVersionFlags struct {
	Help    bool
	Version bool
}

func AddHelpVersionFlags(fs *flag.FlagSet, helpDesc, versionDesc string) *HelpVersionFlags {
	if fs == nil {
		return &HelpVersionFlags{}
	}
	if helpDesc == "" {
		helpDesc = defaultHelpDesc
	}
	if versionDesc == "" {
		versionDesc = defaultVersionDesc
	}
	flags := &HelpVersionFlags{}
	fs.BoolVar(&flags.Help, "help", false, helpDesc)
	fs.BoolVar(&flags.Help, "h", false, helpDesc)
	fs.BoolVar(&flags.Version, "version", false, versionDesc)
	fs.BoolVar(&flags.Version, "v", false, versionDesc)
	return flags
}

// HelpOption is one row of a help listing.
type HelpOption struct {
	Name string
	Desc string
}

// WriteHelp prints a usage line followed by aligned option rows. Names
// starting with "-" are printed as is; others are treated as subcommands.
func WriteHelp(out io.Writer, usage string, sections map[string][]HelpOption, order ...string) {
	if out == nil {
		return
	}
	fmt.Fprintf(out, "Usage: %s\n", usage)
	for _, title := range order {
		options := sections[title]
		if len(options) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n%s:\n", title)
		writer := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, option := range options {
			fmt.Fprintf(writer, "  %s\t%s\n", option.Name, strings.TrimSpace(option.Desc))
		}
		_ = writer.Flush()
	}
}

// SetFlags returns the names of flags given explicitly on the command line.
func SetFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	if fs == nil {
		return set
	}
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}
