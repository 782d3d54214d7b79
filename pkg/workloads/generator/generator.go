// Package generator runs external commands which build doll models.
//
// Commands are argv lists. Each argument is a text/template, executed with
// CreateParams or ApplyParams:
//
//	["python3", "create_doll.py", "--out", "{{.Out}}", "--gender", "{{.Gender}}"]
package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"text/template"
	"time"

	xe "github.com/virtual-closet/closet/pkg/errors"
)

// generator command has failed.
var ErrGeneration = errors.New("generator: generation failed")

// GenerationError tells why a command did not generate its output.
type GenerationError struct {
	Command  []string
	ExitCode int
	Stdout   string
	Stderr   string
	Cause    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf(
		"%s: %s (exit code: %d): %v",
		ErrGeneration, strings.Join(e.Command, " "), e.ExitCode, e.Cause,
	)
}

func (e *GenerationError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrGeneration}
	}
	return []error{ErrGeneration, e.Cause}
}

type CreateParams struct {
	// path where the doll should be written
	Out string

	Gender    string
	SkinColor string
	ModelType string
	Height    float64
	Weight    float64
}

type ApplyParams struct {
	// path to the doll which wears clothes
	Doll string

	// path to the image of clothes
	Image string

	// path where the doll wearing clothes should be written
	Out string

	ClothingType string
}

// Result has outputs of a successful command.
type Result struct {
	Stdout string
	Stderr string
}

type command []*template.Template

func parse(name string, argv []string) (command, error) {
	if len(argv) == 0 {
		return nil, xe.New(fmt.Sprintf("generator: %s command is empty", name))
	}
	cmd := make(command, 0, len(argv))
	for nth, arg := range argv {
		tpl, err := template.New(fmt.Sprintf("%s[%d]", name, nth)).
			Option("missingkey=error").
			Parse(arg)
		if err != nil {
			return nil, xe.Wrap(err)
		}
		cmd = append(cmd, tpl)
	}
	return cmd, nil
}

func (c command) render(params any) ([]string, error) {
	argv := make([]string, 0, len(c))
	for _, tpl := range c {
		buf := new(strings.Builder)
		if err := tpl.Execute(buf, params); err != nil {
			return nil, xe.Wrap(err)
		}
		argv = append(argv, buf.String())
	}
	return argv, nil
}

type Generator struct {
	create  command
	apply   command
	timeout time.Duration
	dir     string
}

type Option func(*Generator) *Generator

// WithWorkDir sets working directory of commands.
//
// By default, commands run in the working directory of this process.
func WithWorkDir(dir string) Option {
	return func(g *Generator) *Generator {
		g.dir = dir
		return g
	}
}

// New parses command templates.
//
// timeout bounds each run. Zero means no timeout.
func New(create []string, apply []string, timeout time.Duration, options ...Option) (*Generator, error) {
	c, err := parse("create", create)
	if err != nil {
		return nil, err
	}
	a, err := parse("apply", apply)
	if err != nil {
		return nil, err
	}
	g := &Generator{create: c, apply: a, timeout: timeout}
	for _, o := range options {
		g = o(g)
	}
	return g, nil
}

// Create generates a doll at params.Out.
func (g *Generator) Create(ctx context.Context, params CreateParams) (Result, error) {
	argv, err := g.create.render(params)
	if err != nil {
		return Result{}, err
	}
	return g.run(ctx, argv, params.Out)
}

// Apply generates a doll wearing clothes at params.Out.
func (g *Generator) Apply(ctx context.Context, params ApplyParams) (Result, error) {
	argv, err := g.apply.render(params)
	if err != nil {
		return Result{}, err
	}
	return g.run(ctx, argv, params.Out)
}

func (g *Generator) run(ctx context.Context, argv []string, out string) (Result, error) {
	if g.timeout > 0 {
		_ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		ctx = _ctx
	}

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = g.dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return Result{}, &GenerationError{
			Command:  argv,
			ExitCode: cmd.ProcessState.ExitCode(),
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Cause:    err,
		}
	}

	if info, err := os.Stat(out); err != nil || info.IsDir() {
		return Result{}, &GenerationError{
			Command:  argv,
			ExitCode: cmd.ProcessState.ExitCode(),
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Cause:    fmt.Errorf("output is not generated: %s", out),
		}
	}

	return Result{Stdout: stdout.String(), Stderr: stderr.String()}, nil
}
