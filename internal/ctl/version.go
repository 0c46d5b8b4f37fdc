package ctl

import (
	"fmt"
	"strings"
)

// Build-time variables set via -ldflags.
var (
	Version   = "dev"
	GoVersion = "unknown"
)

// VersionInfo prints the CLI version and the daemon's, if it answers.
func VersionInfo(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var daemon struct {
		Version   string `json:"version"`
		GoVersion string `json:"go_version"`
		BuiltAt   string `json:"built_at"`
	}
	daemonErr := getJSON(baseURL, "/api/version", &daemon)

	if jsonOutput {
		resp := map[string]any{
			"cli": map[string]any{
				"version":    Version,
				"go_version": GoVersion,
			},
		}
		if daemonErr == nil {
			resp["daemon"] = daemon
		} else {
			resp["daemon_error"] = daemonErr.Error()
		}
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  CYBOT VERSION"))
	fmt.Println(rule(38))
	field("CLI:", Version+" ("+GoVersion+")")
	if daemonErr != nil {
		field("Daemon:", colorize(redStyle, "unreachable: "+daemonErr.Error()))
	} else {
		field("Daemon:", daemon.Version+" ("+daemon.GoVersion+")")
		field("Built:", daemon.BuiltAt)
	}
	fmt.Println()

	return nil
}
