// Package clip copies short, operator-facing strings (a session id, a
// status summary) to wherever the user's terminal can receive them,
// falling back gracefully when there is no clipboard to speak of.
package clip

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	atotto "github.com/atotto/clipboard"
	osc52 "github.com/aymanbagabas/go-osc52/v2"
	"golang.org/x/term"
)

// Method is which mechanism actually delivered the text.
type Method string

const (
	MethodNative Method = "native" // OS clipboard via atotto/clipboard
	MethodOSC52  Method = "osc52"  // terminal clipboard escape sequence, e.g. over SSH
	MethodFile   Method = "file"   // neither worked; dropped to a temp file instead
)

// Result reports which Method succeeded and, for MethodFile, where the
// content landed.
type Result struct {
	Method   Method
	FilePath string
}

// osc52LimitBytes bounds the OSC52 payload; terminals commonly drop or
// truncate sequences larger than this.
const osc52LimitBytes = 100_000

var (
	nativeWriteAll = func(text string) error { return atotto.WriteAll(text) }
	osc52WriteAll  = writeOSC52
)

// Copy tries, in order, the native OS clipboard, an OSC52 terminal
// sequence (the path that works over a plain SSH session with no X11 or
// pasteboard forwarding), and finally a temp file so the text is never
// simply lost.
func Copy(text string) (Result, error) {
	if err := nativeWriteAll(text); err == nil {
		return Result{Method: MethodNative}, nil
	}
	if err := osc52WriteAll(text); err == nil {
		return Result{Method: MethodOSC52}, nil
	}
	path, err := writeTempFile(text)
	if err != nil {
		return Result{}, err
	}
	return Result{Method: MethodFile, FilePath: path}, nil
}

func writeOSC52(text string) error {
	if text == "" {
		return errors.New("clip: nothing to copy")
	}
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return errors.New("clip: stderr is not a terminal")
	}
	if len(text) > osc52LimitBytes {
		return fmt.Errorf("clip: %d bytes exceeds the %d byte OSC52 limit", len(text), osc52LimitBytes)
	}

	seq := osc52.New(text).Limit(osc52LimitBytes)
	switch {
	case os.Getenv("TMUX") != "":
		seq = seq.Tmux()
	case os.Getenv("STY") != "":
		seq = seq.Screen()
	}

	// stderr, not stdout, so a pipeline consuming polka's stdout output is
	// unaffected by the escape sequence.
	_, err := seq.WriteTo(os.Stderr)
	return err
}

func writeTempFile(text string) (string, error) {
	f, err := os.CreateTemp("", fmt.Sprintf("polka-clip-%d-*.txt", time.Now().UnixNano()))
	if err != nil {
		return "", err
	}
	path := f.Name()
	defer func() {
		_ = f.Close()
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if _, err = f.WriteString(text); err != nil {
		return "", err
	}
	if err = f.Close(); err != nil {
		return "", err
	}
	return filepath.Clean(path), nil
}
