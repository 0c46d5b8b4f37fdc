// Cybotctl is the command-line client for a running cybotd. It queries the
// daemon over HTTP, streams live telemetry over WebSocket, and can drive the
// robot from the keyboard.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/large-farva/cybot-control/internal/ctl"
)

func main() {
	var (
		host    = pflag.StringP("host", "H", "http://127.0.0.1:8088", "cybotd URL (e.g. http://192.168.1.50:8088)")
		jsonOut = pflag.Bool("json", false, "Output raw JSON instead of formatted text")
		filter  = pflag.StringSlice("filter", nil, "Event types to show in watch (e.g. --filter pose,obstacle)")
	)

	// Subcommand flags are parsed separately, so stop at the command name.
	pflag.CommandLine.SetInterspersed(false)
	pflag.Parse()

	if pflag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cmd := pflag.Arg(0)
	subArgs := pflag.Args()[1:]

	var err error
	switch cmd {
	// ── Query commands ────────────────────────────────────────────
	case "status":
		err = ctl.Status(*host, *jsonOut)

	case "health":
		err = ctl.Health(*host, *jsonOut)

	case "version":
		err = ctl.VersionInfo(*host, *jsonOut)

	case "config":
		err = ctl.Config(*host, *jsonOut)

	case "pose":
		err = ctl.Pose(*host, *jsonOut)

	case "path":
		err = ctl.Path(*host, *jsonOut)

	case "obstacles":
		err = ctl.Obstacles(*host, *jsonOut)

	case "map":
		opts := ctl.MapOptions{JSON: *jsonOut}
		mapFlags := pflag.NewFlagSet("map", pflag.ContinueOnError)
		mapFlags.IntVar(&opts.Width, "width", 0, "Map width in columns (default: terminal width)")
		mapFlags.IntVar(&opts.Height, "height", 0, "Map height in rows (default: terminal height)")
		_ = mapFlags.Parse(subArgs)
		err = ctl.Map(*host, opts)

	case "logs":
		opts := ctl.LogsOptions{JSON: *jsonOut}
		logFlags := pflag.NewFlagSet("logs", pflag.ContinueOnError)
		logFlags.StringVar(&opts.Level, "level", "", "Minimum log level (debug, info, warn, error)")
		logFlags.IntVar(&opts.Limit, "limit", 0, "Limit number of log entries shown")
		logFlags.BoolVar(&opts.Tail, "tail", false, "Stream live log events (like watch --filter log)")
		_ = logFlags.Parse(subArgs)
		err = ctl.Logs(*host, opts)

	// ── Control commands ──────────────────────────────────────────
	case "send":
		sendFlags := pflag.NewFlagSet("send", pflag.ContinueOnError)
		raw := sendFlags.Bool("raw", false, "Send the argument as a literal character")
		_ = sendFlags.Parse(subArgs)
		if sendFlags.NArg() != 1 {
			fmt.Fprintln(os.Stderr, "usage: cybotctl send [--raw] <forward|back|left|right|scan|stop|char>")
			os.Exit(2)
		}
		err = ctl.Send(*host, sendFlags.Arg(0), *raw, *jsonOut)

	case "approve":
		err = ctl.Answer(*host, "yes", *jsonOut)

	case "deny":
		err = ctl.Answer(*host, "no", *jsonOut)

	case "connect":
		if len(subArgs) != 1 {
			fmt.Fprintln(os.Stderr, "usage: cybotctl connect <host:port>")
			os.Exit(2)
		}
		err = ctl.Connect(*host, subArgs[0], *jsonOut)

	case "drive":
		err = ctl.Drive(*host)

	// ── Live streaming ────────────────────────────────────────────
	case "watch":
		opts := ctl.WatchOptions{Filter: *filter, JSON: *jsonOut}
		watchFlags := pflag.NewFlagSet("watch", pflag.ContinueOnError)
		watchFlags.StringSliceVar(&opts.Filter, "filter", opts.Filter, "Event types to show")
		_ = watchFlags.Parse(subArgs)
		err = ctl.Watch(*host, opts)

	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Print(`
  cybotctl: CyBot control CLI

  USAGE
    cybotctl [flags] <command> [command-flags]

  COMMANDS (query)
    status          Show link state, robot address, and traffic counters
    health          Check daemon and component health
    version         Show CLI and daemon version information
    config          Show the daemon's running configuration
    pose            Show the estimated robot position and heading
    path            List recorded path vertices
    obstacles       List placed obstacles
    map             Draw the explored area in the terminal
    logs            Show recent daemon log messages

  COMMANDS (control)
    send INTENT     Send forward, back, left, right, scan or stop
    approve         Answer the pending approval request with yes
    deny            Answer the pending approval request with no
    connect ADDR    Point the daemon at another robot (host:port)
    drive           Drive from the keyboard (w/a/s/d, m scan, space stop)

  COMMANDS (live)
    watch           Stream live events from the daemon (Ctrl-C to stop)

  GLOBAL FLAGS
    -H, --host URL      Daemon base URL (default: http://127.0.0.1:8088)
        --json          Output raw JSON instead of formatted text
        --filter TYPE   Event types to show in watch (comma-separated)

  COMMAND FLAGS
    map:
        --width N           Map width in columns
        --height N          Map height in rows

    send:
        --raw               Send the argument as a literal character

    logs:
        --level LEVEL       Minimum log level (debug, info, warn, error)
        --limit N           Limit number of log entries shown
        --tail              Stream live log events

  EXAMPLES
    cybotctl status
    cybotctl --json pose
    cybotctl send forward
    cybotctl send --raw m
    cybotctl approve
    cybotctl connect 192.168.1.1:288
    cybotctl map --width 100 --height 30
    cybotctl logs --level warn --limit 20
    cybotctl --host http://192.168.1.50:8088 watch --filter pose,obstacle

`)
}
