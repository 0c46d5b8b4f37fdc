package ctl

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Health checks daemon liveness and the per-component checks behind it.
func Health(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	req, err := http.NewRequest(http.MethodGet, baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := httpClient.Do(req)
	if err != nil {
		if jsonOutput {
			return printJSON(map[string]any{"healthy": false, "url": baseURL, "error": err.Error()})
		}
		return err
	}
	defer resp.Body.Close()

	var body struct {
		Healthy bool                      `json:"healthy"`
		Checks  map[string]map[string]any `json:"checks"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	healthy := resp.StatusCode == http.StatusOK && body.Healthy

	if jsonOutput {
		return printJSON(map[string]any{"healthy": healthy, "url": baseURL, "checks": body.Checks})
	}

	fmt.Println()
	if healthy {
		fmt.Printf("  %s  cybotd is reachable at %s\n", colorize(greenStyle, "HEALTHY"), colorize(dimStyle, baseURL))
	} else {
		fmt.Printf("  %s  cybotd returned HTTP %d at %s\n", colorize(redStyle, "UNHEALTHY"), resp.StatusCode, colorize(dimStyle, baseURL))
	}

	names := make([]string, 0, len(body.Checks))
	for name := range body.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		check := body.Checks[name]
		mark := colorize(greenStyle, "ok  ")
		if ok, _ := check["ok"].(bool); !ok {
			mark = colorize(yellowStyle, "down")
		}
		var detail []string
		for _, k := range []string{"status", "addr", "error"} {
			if v, ok := check[k].(string); ok && v != "" {
				detail = append(detail, v)
			}
		}
		fmt.Printf("    %s %s %s\n", mark, padRight(name, 10), colorize(dimStyle, strings.Join(detail, " ")))
	}
	fmt.Println()

	return nil
}
