package ctl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"
)

// keyAction is what a keypress in drive mode does.
type keyAction struct {
	Command string // intent for /api/command
	Answer  string // yes/no for /api/approval
	Quit    bool
}

// driveKeys maps keys to actions. Upper case is folded to lower.
var driveKeys = map[byte]keyAction{
	'w':  {Command: "forward"},
	's':  {Command: "back"},
	'a':  {Command: "left"},
	'd':  {Command: "right"},
	'm':  {Command: "scan"},
	' ':  {Command: "stop"},
	'y':  {Answer: "yes"},
	'n':  {Answer: "no"},
	'q':  {Quit: true},
	0x03: {Quit: true}, // Ctrl-C
	0x1b: {Quit: true}, // Esc
}

func actionFor(b byte) (keyAction, bool) {
	if b >= 'A' && b <= 'Z' {
		b += 'a' - 'A'
	}
	a, ok := driveKeys[b]
	return a, ok
}

// Drive puts the terminal in raw mode and turns keypresses into robot
// commands until q, Esc or Ctrl-C.
func Drive(baseURL string) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return errors.New("drive needs an interactive terminal")
	}

	fmt.Println()
	fmt.Println(header("  DRIVE MODE"))
	fmt.Println(rule(50))
	fmt.Println(colorize(dimStyle, "  w/s forward/back   a/d left/right   m scan   space stop"))
	fmt.Println(colorize(dimStyle, "  y/n answer approval   q quit"))
	fmt.Println()

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("set terminal raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGTERM)
	defer signal.Stop(sig)
	go func() {
		if _, ok := <-sig; ok {
			term.Restore(fd, oldState)
			os.Exit(0)
		}
	}()

	return driveLoop(baseURL, os.Stdin, os.Stdout)
}

// driveLoop reads single bytes from in and reports each outcome on out.
// Raw mode needs explicit carriage returns.
func driveLoop(baseURL string, in io.Reader, out io.Writer) error {
	buf := make([]byte, 1)
	for {
		n, err := in.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if n == 0 {
			continue
		}

		action, ok := actionFor(buf[0])
		switch {
		case !ok:
			fmt.Fprintf(out, "  %s\r\n", colorize(dimStyle, fmt.Sprintf("unbound key %q", buf[0])))
		case action.Quit:
			fmt.Fprint(out, "\r\n")
			return nil
		case action.Answer != "":
			res, err := AnswerApproval(baseURL, action.Answer)
			fmt.Fprintf(out, "  %s\r\n", describe(action.Answer, res.Char, err))
		default:
			res, err := SendCommand(baseURL, action.Command, false)
			fmt.Fprintf(out, "  %s\r\n", describe(action.Command, res.Char, err))
		}
	}
}

func describe(what, char string, err error) string {
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return colorize(redStyle, padRight(what, 8)) + " " + apiErr.Message
		}
		return colorize(redStyle, padRight(what, 8)) + " " + err.Error()
	}
	return colorize(greenStyle, padRight(what, 8)) + " " + colorize(dimStyle, fmt.Sprintf("%q", char))
}
