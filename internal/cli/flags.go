package cli

import "io"

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	DBPath  string `long:"db-path" description:"Override the SQLite database path"`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// StatusCommand: show database stats, retention and daemon reachability.
type StatusCommand struct {
	globals *GlobalFlags
	version string
}

// StatsCommand: per-site time and visit totals over a day range.
type StatsCommand struct {
	Since string `long:"since" description:"Only days within duration (e.g., 7d, 24h, 2w)"`
	From  string `long:"from" description:"First day, YYYY-MM-DD"`
	To    string `long:"to" description:"Last day, YYYY-MM-DD"`
	Today bool   `long:"today" description:"Only today"`
	Sort  string `long:"sort" description:"Sort order" choice:"time" choice:"visits" choice:"recent" default:"time"`
	Limit int    `long:"limit" description:"Maximum sites to show (0 = all)" default:"20"`
	All   bool   `long:"all" description:"Include hidden sites"`
	Watch bool   `long:"watch" description:"Re-render whenever the database changes"`

	globals *GlobalFlags
	version string
}

// SiteCommand: per-day breakdown for one hostname.
type SiteCommand struct {
	Host string `long:"host" description:"Hostname (required)"`
	From string `long:"from" description:"First day, YYYY-MM-DD"`
	To   string `long:"to" description:"Last day, YYYY-MM-DD"`

	globals *GlobalFlags
	version string
}

// AddCommand: manually record time or visits for a URL.
type AddCommand struct {
	URL      string `long:"url" description:"URL to record (required)"`
	Title    string `long:"title" description:"Page title"`
	Duration string `long:"duration" description:"Time spent (e.g., 90s, 15m, 1h30m)"`
	Visits   uint64 `long:"visits" description:"Visits to add" default:"1"`
	At       string `long:"at" description:"When, RFC 3339 or YYYY-MM-DD (default now)"`

	globals *GlobalFlags
	version string
}

// IngestCommand: run the tracking daemon.
type IngestCommand struct {
	Native   bool   `long:"native" description:"Serve Chrome native messaging on stdin/stdout instead of HTTP"`
	Host     string `long:"host" description:"Override daemon listen host"`
	Port     int    `long:"port" description:"Override daemon port"`
	LogLevel string `long:"log-level" description:"Override log level"`

	globals *GlobalFlags
	version string
}

// PruneCommand: apply retention now.
type PruneCommand struct {
	OlderThan string `long:"older-than" description:"Override retention period (e.g., 30d)"`
	DryRun    bool   `long:"dry-run" description:"Show what would be pruned without deleting"`

	globals *GlobalFlags
	version string
}

// PurgeCommand: reset all statistics with safety confirmation.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	in      io.Reader // confirmation input; nil means os.Stdin
}

// HideCommand: manage sites hidden from stats output.
type HideCommand struct {
	Add        []string `long:"add" description:"Hide a hostname (repeatable)"`
	Remove     []string `long:"remove" description:"Unhide a hostname (repeatable)"`
	List       bool     `long:"list" description:"List hidden hostnames"`
	ShowHidden string   `long:"show-hidden" description:"Show hidden sites anyway" choice:"on" choice:"off"`

	globals *GlobalFlags
	version string
}
