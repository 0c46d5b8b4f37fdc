package ctl

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// sectionOrder is the order sections appear in cybot.toml.
var sectionOrder = []string{"robot", "commands", "tracker", "viewport", "server", "logging", "demo", "mirror"}

// Config fetches and displays the daemon's running configuration.
func Config(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var resp struct {
		ConfigPath string                                `json:"config_path"`
		Config     map[string]map[string]json.RawMessage `json:"config"`
	}
	if err := getJSON(baseURL, "/api/config", &resp); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  DAEMON CONFIGURATION"))
	fmt.Println(rule(50))
	if resp.ConfigPath != "" {
		fmt.Printf("  %s %s\n", colorize(dimStyle, "file:"), resp.ConfigPath)
	}

	for _, name := range orderedSections(resp.Config) {
		fmt.Printf("\n  %s\n", colorize(boldStyle, "["+name+"]"))
		section := resp.Config[name]
		keys := make([]string, 0, len(section))
		for k := range section {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("    %s %s\n", colorize(dimStyle, padRight(k+":", 24)), string(section[k]))
		}
	}
	fmt.Println()

	return nil
}

// orderedSections lists known sections first, then anything unexpected.
func orderedSections(cfg map[string]map[string]json.RawMessage) []string {
	seen := map[string]bool{}
	var out []string
	for _, name := range sectionOrder {
		if _, ok := cfg[name]; ok {
			out = append(out, name)
			seen[name] = true
		}
	}
	var extra []string
	for name := range cfg {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}
