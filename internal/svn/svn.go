// Package svn runs read-only queries against a Subversion server through
// the svn command-line client.
package svn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/HendryAvila/devmind/internal/config"
	"github.com/HendryAvila/devmind/internal/logging"
)

// DefaultTimeout bounds a single svn invocation.
const DefaultTimeout = 30 * time.Second

// DefaultDirectory is queried when no directory is given.
const DefaultDirectory = "trunk/DB"

var (
	ErrNoBaseURL = errors.New("svn: base_url not configured")
	ErrTimeout   = errors.New("svn: command timed out")
)

// CommandError carries svn's diagnostic output.
type CommandError struct {
	Args   []string
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("svn %s: %s", e.Args[0], e.Output)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Runner executes a command and returns its stdout and stderr.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Client queries one repository root.
type Client struct {
	baseURL  string
	username string
	password string
	timeout  time.Duration
	runner   Runner
	log      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRunner replaces the process runner.
func WithRunner(r Runner) Option { return func(c *Client) { c.runner = r } }

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option { return func(c *Client) { c.timeout = d } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.log = l } }

// New returns a client for creds.
func New(creds config.SVNCredentials, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(creds.BaseURL, "/"),
		username: creds.Username,
		password: creds.Password,
		timeout:  DefaultTimeout,
		runner:   execRunner{},
	}
	for _, o := range opts {
		o(c)
	}
	c.log = logging.OrDefault(c.log).With("component", "svn")
	return c
}

// URL joins the base URL, component and path.
func (c *Client) URL(component, path string) string {
	parts := []string{c.baseURL, strings.Trim(component, "/")}
	if p := strings.Trim(path, "/"); p != "" {
		parts = append(parts, p)
	}
	return strings.Join(parts, "/")
}

// PathURL joins the base URL and a repository-relative path.
func (c *Client) PathURL(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	if c.baseURL == "" {
		return "", ErrNoBaseURL
	}
	full := append([]string{}, args...)
	if c.username != "" {
		full = append(full, "--username", c.username)
	}
	if c.password != "" {
		full = append(full, "--password", c.password)
	}
	full = append(full,
		"--trust-server-cert-failures=unknown-ca,cn-mismatch,expired,not-yet-valid,other",
		"--non-interactive")

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.log.Debug("running svn", "subcommand", args[0])
	stdout, stderr, err := c.runner.Run(ctx, "svn", full...)
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
	}
	if err != nil {
		out := strings.TrimSpace(string(stderr))
		if out == "" {
			out = strings.TrimSpace(string(stdout))
		}
		if out == "" {
			out = err.Error()
		}
		return "", &CommandError{Args: args, Output: out, Err: err}
	}
	return strings.TrimSpace(string(stdout)), nil
}

// Log returns `svn log -v` for the last limit revisions of a path.
func (c *Client) Log(ctx context.Context, component, path string, limit int) (string, error) {
	if limit <= 0 {
		limit = 1
	}
	return c.run(ctx, "log", "-l", strconv.Itoa(limit), "-v", c.URL(component, path))
}

// Info is the subset of `svn info` the tools report.
type Info struct {
	URL               string
	Revision          string
	LastChangedRev    string
	LastChangedAuthor string
	LastChangedDate   string
}

// Info runs `svn info` on a directory. Missing fields read "Unknown".
func (c *Client) Info(ctx context.Context, component, dir string) (*Info, error) {
	if dir == "" {
		dir = DefaultDirectory
	}
	out, err := c.run(ctx, "info", c.URL(component, dir))
	if err != nil {
		return nil, err
	}
	return ParseInfo(out), nil
}

// ParseInfo reads the key/value lines of `svn info` output.
func ParseInfo(out string) *Info {
	info := &Info{
		Revision:          "Unknown",
		LastChangedRev:    "Unknown",
		LastChangedAuthor: "Unknown",
		LastChangedDate:   "Unknown",
	}
	for _, line := range strings.Split(out, "\n") {
		key, val, ok := strings.Cut(strings.TrimRight(line, "\r"), ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch key {
		case "URL":
			info.URL = val
		case "Revision":
			info.Revision = val
		case "Last Changed Rev":
			info.LastChangedRev = val
		case "Last Changed Author":
			info.LastChangedAuthor = val
		case "Last Changed Date":
			info.LastChangedDate = val
		}
	}
	return info
}
