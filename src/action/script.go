package action

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sofmeright/conveyor/src/pipeline"
)

func init() {
	Register("script", func() pipeline.Action { return &scriptAction{} })
}

// scriptAction runs a shell command: the generic build/test runner.
// Inputs arrive as environment variables, declared outputs are
// collected from files the command wrote.
//
// Options:
//
//	command: make build            (required)
//	env:     {CGO_ENABLED: "0"}    extra environment
//	provide: {compile/binary: APP_BINARY}   input payload -> env var
//	collect: {binary: dist/app}    output name -> file to read
type scriptAction struct {
	command string
	env     map[string]string
	provide map[string]string
	collect map[string]string
}

func (a *scriptAction) Kind() string { return "script" }

func (a *scriptAction) Configure(options map[string]any) error {
	cmd, ok := stringOption(options, "command")
	if !ok || cmd == "" {
		return errors.New("missing required option: command")
	}
	a.command = cmd

	var err error
	if a.env, err = stringMapOption(options, "env"); err != nil {
		return err
	}
	if a.provide, err = stringMapOption(options, "provide"); err != nil {
		return err
	}
	if a.collect, err = stringMapOption(options, "collect"); err != nil {
		return err
	}
	return nil
}

func (a *scriptAction) Run(ctx context.Context, inv *pipeline.Invocation) (map[string][]byte, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", a.command)
	cmd.Dir = inv.WorkDir
	cmd.Stdout = inv.Stdout
	cmd.Stderr = inv.Stderr

	env := os.Environ()
	for k, v := range a.env {
		env = append(env, k+"="+v)
	}
	for key, envName := range a.provide {
		in, ok := inv.Inputs[key]
		if !ok {
			return nil, fmt.Errorf("provide: no input %q", key)
		}
		env = append(env, envName+"="+string(in.Payload))
	}
	// Credentials enter the child process environment only; they are
	// not echoed and never reach the artifact store.
	for name, s := range inv.Secrets {
		env = append(env, name+"="+s.Value())
	}
	cmd.Env = env

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &pipeline.ExecutionError{Stage: inv.Stage.ID, ExitCode: exitErr.ExitCode(), Err: err}
		}
		return nil, err
	}

	outputs := make(map[string][]byte, len(a.collect))
	for name, path := range a.collect {
		if !filepath.IsAbs(path) {
			path = filepath.Join(inv.WorkDir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("collect %s: %w", name, err)
		}
		outputs[name] = data
	}
	return outputs, nil
}
