package viewport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/tabshell/internal/domain/bookmark"
	"github.com/GriffinCanCode/tabshell/internal/infrastructure/logging"
)

// ErrUnsupportedURL is returned for anything but http(s) URLs.
var ErrUnsupportedURL = errors.New("only http and https URLs can be opened")

// SystemOpener opens URLs in the desktop's default browser.
type SystemOpener struct {
	goos   string
	logger *zap.Logger
}

// NewSystemOpener creates an opener for the running OS.
func NewSystemOpener(logger *zap.Logger) *SystemOpener {
	return &SystemOpener{goos: runtime.GOOS, logger: logging.OrNop(logger)}
}

// Open launches the platform's URL handler and does not wait for it.
func (o *SystemOpener) Open(ctx context.Context, url string) error {
	if !bookmark.HasHTTPScheme(url) {
		return fmt.Errorf("%w: %q", ErrUnsupportedURL, url)
	}
	name, args := openCommand(o.goos, url)
	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			o.logger.Debug("URL handler exited", zap.String("cmd", name), zap.Error(err))
		}
	}()
	return nil
}

func openCommand(goos, url string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{url}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}
	default:
		return "xdg-open", []string{url}
	}
}

// LogOpener reports URLs instead of opening them.
type LogOpener struct {
	out    io.Writer
	logger *zap.Logger
}

// NewLogOpener writes one line per URL to out, which may be nil.
func NewLogOpener(out io.Writer, logger *zap.Logger) *LogOpener {
	return &LogOpener{out: out, logger: logging.OrNop(logger)}
}

// Open records url.
func (o *LogOpener) Open(_ context.Context, url string) error {
	o.logger.Info("External open", zap.String("url", url))
	if o.out != nil {
		_, err := fmt.Fprintf(o.out, "open externally: %s\n", url)
		return err
	}
	return nil
}
