package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"git.home.luguber.info/inful/docstream/internal/render"
)

// maxStderr bounds the converter output quoted in errors.
const maxStderr = 512

// CommandBackend pipes the assembled HTML through an external converter that
// reads stdin and writes the encoded file to stdout. The command line is
// split on whitespace; it is not passed through a shell.
type CommandBackend struct {
	Command string
}

func (c CommandBackend) Encode(ctx context.Context, art *render.Artifact, opts Options) ([]byte, error) {
	args := strings.Fields(c.Command)
	if len(args) == 0 {
		return nil, fmt.Errorf("no converter configured for %s", opts.Format)
	}
	// #nosec G204 -- converter comes from the operator's configuration
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = strings.NewReader(art.HTML)
	cmd.Env = append(os.Environ(),
		"DOCSTREAM_FORMAT="+opts.Format,
		"DOCSTREAM_QUALITY="+opts.Quality,
		"DOCSTREAM_TITLE="+art.Title,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > maxStderr {
			msg = msg[:maxStderr] + "..."
		}
		if msg != "" {
			return nil, fmt.Errorf("%s converter failed: %w: %s", opts.Format, err, msg)
		}
		return nil, fmt.Errorf("%s converter failed: %w", opts.Format, err)
	}
	if stdout.Len() == 0 {
		return nil, errors.New(opts.Format + " converter produced no output")
	}
	return stdout.Bytes(), nil
}
