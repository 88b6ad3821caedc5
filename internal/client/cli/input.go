package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword and isTerminal are seams over x/term for tests.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// prompt prints label and reads one trimmed line.
func prompt(lines *bufio.Scanner, w io.Writer, label string) (string, error) {
	if _, err := fmt.Fprint(w, label); err != nil {
		return "", err
	}
	if !lines.Scan() {
		if err := lines.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(lines.Text()), nil
}

// promptPassword reads without echo when stdin is a terminal and falls back to a plain line otherwise.
func promptPassword(lines *bufio.Scanner, w io.Writer, label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !isTerminal(fd) {
		return prompt(lines, w, label)
	}

	if _, err := fmt.Fprint(w, label); err != nil {
		return "", err
	}
	pw, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}
