package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Status *StatusCommand
	Stats  *StatsCommand
	Site   *SiteCommand
	Add    *AddCommand
	Ingest *IngestCommand
	Prune  *PruneCommand
	Purge  *PurgeCommand
	Hide   *HideCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	// Errors are returned to main for printing; only help goes to stdout.
	parser := goflags.NewParser(&globals, goflags.HelpFlag|goflags.PassDoubleDash)
	parser.Name = "sitetime"
	parser.LongDescription = "Local per-site browsing time and visit tracker."

	cmds := &commands{
		Status: &StatusCommand{globals: &globals, version: version},
		Stats:  &StatsCommand{globals: &globals, version: version},
		Site:   &SiteCommand{globals: &globals, version: version},
		Add:    &AddCommand{globals: &globals, version: version},
		Ingest: &IngestCommand{globals: &globals, version: version},
		Prune:  &PruneCommand{globals: &globals, version: version},
		Purge:  &PurgeCommand{globals: &globals, version: version},
		Hide:   &HideCommand{globals: &globals, version: version},
	}

	parser.AddCommand("status", "Show database and daemon status", "Show database statistics, retention policy and daemon reachability.", cmds.Status)
	parser.AddCommand("stats", "Show time spent per site", "Show time spent and visits per site over a day range.", cmds.Stats)
	parser.AddCommand("site", "Show one site by day", "Show the per-day breakdown for one hostname.", cmds.Site)
	parser.AddCommand("add", "Manually record time or visits", "Manually record time spent or visits for a URL.", cmds.Add)
	parser.AddCommand("ingest", "Start the sitetime daemon", "Start the sitetime daemon (local HTTP service, or native messaging host with --native).", cmds.Ingest)
	parser.AddCommand("prune", "Apply retention now", "Delete records outside the retention window.", cmds.Prune)
	parser.AddCommand("purge", "Reset ALL statistics", "Reset ALL statistics. Destructive operation with safety prompt.", cmds.Purge)
	parser.AddCommand("hide", "Manage hidden sites", "Hide sites from stats output without affecting tracking.", cmds.Hide)

	return parser, &globals, cmds
}

// Run is the main entry point for the sitetime CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("sitetime %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				fmt.Println(flagsErr.Message)
				return nil
			}
		}
		return err
	}

	return nil
}
