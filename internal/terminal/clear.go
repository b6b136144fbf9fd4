// Package terminal provides TTY detection, password prompts and line clearing.
package terminal

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"golang.org/x/term"
)

// IsInteractive reports whether stdout is attached to a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// IsStdinTerminal reports whether stdin is attached to a terminal.
func IsStdinTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Width returns the terminal width, 80 when it cannot be determined.
func Width() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return 80
}

// ReadPassword prompts on stdout and reads a line from stdin without echo.
// When stdin is not a terminal the line is read as-is.
func ReadPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return readLine(os.Stdin)
}

// ReadLine prompts on stdout and reads one line from stdin.
func ReadLine(prompt string) (string, error) {
	fmt.Print(prompt)
	return readLine(os.Stdin)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ClearPreviousLines erases a prompt of textLength characters (prompt plus input)
// and the empty line left by Enter.
func ClearPreviousLines(textLength int) {
	fmt.Print(clearSequence(textLength, Width()))
}

// clearSequence builds the ANSI sequence that walks up and clears the lines.
func clearSequence(textLength, width int) string {
	lines := int(math.Ceil(float64(textLength) / float64(width)))
	if lines < 1 {
		lines = 1
	}
	lines++

	var b strings.Builder
	for i := 0; i < lines; i++ {
		b.WriteString("\r\x1b[2K")
		if i < lines-1 {
			b.WriteString("\x1b[1A")
		}
	}
	return b.String()
}
