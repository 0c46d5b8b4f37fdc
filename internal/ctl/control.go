package ctl

import (
	"fmt"
	"strings"
)

// CommandResult mirrors the reply to POST /api/command and /api/approval.
type CommandResult struct {
	OK      bool   `json:"ok"`
	Command string `json:"command,omitempty"`
	Answer  string `json:"answer,omitempty"`
	Char    string `json:"char"`
}

// SendCommand asks the daemon to send one command, named by intent or, when
// raw is set, as a literal character.
func SendCommand(baseURL, command string, raw bool) (CommandResult, error) {
	body := map[string]string{"command": command}
	if raw {
		body = map[string]string{"char": command}
	}
	var res CommandResult
	err := postJSON(baseURL, "/api/command", body, &res)
	return res, err
}

// AnswerApproval resolves the pending approval request.
func AnswerApproval(baseURL, answer string) (CommandResult, error) {
	var res CommandResult
	err := postJSON(baseURL, "/api/approval", map[string]string{"answer": answer}, &res)
	return res, err
}

// Send is the send subcommand.
func Send(baseURL, command string, raw, jsonOutput bool) error {
	res, err := SendCommand(baseURL, command, raw)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(res)
	}
	name := res.Command
	if name == "" {
		name = "raw"
	}
	fmt.Printf("  %s %s %s\n", colorize(greenStyle, "sent"), name, colorize(dimStyle, fmt.Sprintf("(%q)", res.Char)))
	return nil
}

// Answer is the approve and deny subcommands.
func Answer(baseURL, answer string, jsonOutput bool) error {
	var pending struct {
		Pending bool   `json:"pending"`
		Message string `json:"message"`
	}
	if err := getJSON(baseURL, "/api/approval", &pending); err != nil {
		return err
	}

	res, err := AnswerApproval(baseURL, answer)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(res)
	}
	style := greenStyle
	if res.Answer == "no" {
		style = yellowStyle
	}
	fmt.Printf("  %s %s\n", colorize(style, strings.ToUpper(res.Answer)), colorize(dimStyle, pending.Message))
	return nil
}

// Connect retargets the daemon's robot link.
func Connect(baseURL, addr string, jsonOutput bool) error {
	var res struct {
		OK      bool   `json:"ok"`
		Message string `json:"message"`
	}
	if err := postJSON(baseURL, "/api/connect", map[string]string{"addr": addr}, &res); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(res)
	}
	fmt.Printf("  %s\n", res.Message)
	return nil
}
