// Package cli implements the commands of the didjwt tool.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/pilacorp/go-didjwt/did"
	"github.com/pilacorp/go-didjwt/jwt"
)

var logger = xlog.NewPackageLogger("github.com/pilacorp/go-didjwt/cmd/didjwt", "cli")

// Cli provides CLI context to run commands
type Cli struct {
	Config string `help:"optional, YAML configuration file"`
	Skew   *int64 `help:"optional, tolerated clock skew in seconds"`
	Debug  bool   `short:"D" help:"enable debug logging"`

	// Stdin is the source to read from, typically set to os.Stdin
	stdin io.Reader
	// Output is the destination for all output from the command, typically set to os.Stdout
	output io.Writer
	// ErrOutput is the destinaton for errors.
	// If not set, errors will be written to os.StdError
	errOutput io.Writer

	ctx   context.Context
	cfg   *jwt.Config
	clock jwt.Clock
}

// Context for requests
func (c *Cli) Context() context.Context {
	if c.ctx == nil {
		c.ctx = context.Background()
	}
	return c.ctx
}

// WithContext allows to specify a custom context
func (c *Cli) WithContext(ctx context.Context) *Cli {
	c.ctx = ctx
	return c
}

// WithClock allows to specify the clock used by the engine
func (c *Cli) WithClock(clock jwt.Clock) *Cli {
	c.clock = clock
	return c
}

// Reader is the source to read from, typically set to os.Stdin
func (c *Cli) Reader() io.Reader {
	if c.stdin != nil {
		return c.stdin
	}
	return os.Stdin
}

// WithReader allows to specify a custom reader
func (c *Cli) WithReader(reader io.Reader) *Cli {
	c.stdin = reader
	return c
}

// Writer returns a writer for control output
func (c *Cli) Writer() io.Writer {
	if c.output != nil {
		return c.output
	}
	return os.Stdout
}

// WithWriter allows to specify a custom writer
func (c *Cli) WithWriter(out io.Writer) *Cli {
	c.output = out
	return c
}

// ErrWriter returns a writer for control output
func (c *Cli) ErrWriter() io.Writer {
	if c.errOutput != nil {
		return c.errOutput
	}
	return os.Stderr
}

// WithErrWriter allows to specify a custom error writer
func (c *Cli) WithErrWriter(out io.Writer) *Cli {
	c.errOutput = out
	return c
}

// AfterApply hook loads config
func (c *Cli) AfterApply(_ *kong.Kong, _ kong.Vars) error {
	if c.Debug {
		xlog.SetGlobalLogLevel(xlog.DEBUG)
	} else {
		xlog.SetGlobalLogLevel(xlog.ERROR)
	}
	return c.loadConfig()
}

func (c *Cli) loadConfig() error {
	if c.Config == "" {
		c.cfg = jwt.NewConfig(jwt.Config{})
		return nil
	}
	cfg, err := jwt.LoadConfig(c.Config)
	if err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

// Engine returns a token engine using resolver and the CLI settings
func (c *Cli) Engine(resolver did.Resolver) (*jwt.Engine, error) {
	if c.cfg == nil {
		if err := c.loadConfig(); err != nil {
			return nil, err
		}
	}

	opts := []jwt.Option{jwt.WithConfig(c.cfg)}
	if c.Skew != nil {
		if *c.Skew < 0 {
			return nil, errors.Newf("--skew must not be negative: %d", *c.Skew)
		}
		opts = append(opts, jwt.WithSkew(time.Duration(*c.Skew)*time.Second))
	}
	if c.clock != nil {
		opts = append(opts, jwt.WithClock(c.clock))
	}
	return jwt.New(resolver, opts...), nil
}

// WriteJSON prints value as indented JSON to out
func (c *Cli) WriteJSON(value any) error {
	b, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = fmt.Fprintln(c.Writer(), string(b))
	return err
}

// ReadFile reads from stdin if the file is "-"
func (c *Cli) ReadFile(filename string) ([]byte, error) {
	if filename == "" {
		return nil, errors.New("empty file name")
	}
	if filename == "-" {
		return io.ReadAll(c.Reader())
	}
	return os.ReadFile(filename)
}
