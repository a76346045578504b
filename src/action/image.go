package action

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sofmeright/conveyor/src/pipeline"
)

func init() {
	Register("image", func() pipeline.Action { return &imageAction{} })
}

// imageAction builds a container image from a build context via
// docker buildx and emits the image reference for downstream stages.
//
// Options:
//
//	tag:        registry.example.com/app:1.2.3   (required)
//	dockerfile: Dockerfile
//	context:    .
//	target:     runtime
//	build_args: {VERSION: "1.2.3"}
//	load:       true    # --load into the local daemon
type imageAction struct {
	tag        string
	dockerfile string
	buildCtx   string
	target     string
	buildArgs  map[string]string
	load       bool
}

func (a *imageAction) Kind() string { return "image" }

func (a *imageAction) Configure(options map[string]any) error {
	tag, ok := stringOption(options, "tag")
	if !ok || tag == "" {
		return errors.New("missing required option: tag")
	}
	a.tag = tag

	a.dockerfile, _ = stringOption(options, "dockerfile")
	a.buildCtx, _ = stringOption(options, "context")
	a.target, _ = stringOption(options, "target")
	a.load = boolOption(options, "load", true)

	var err error
	a.buildArgs, err = stringMapOption(options, "build_args")
	return err
}

func (a *imageAction) Run(ctx context.Context, inv *pipeline.Invocation) (map[string][]byte, error) {
	args := []string{"buildx", "build", "--tag", a.tag}
	if a.dockerfile != "" {
		args = append(args, "--file", a.dockerfile)
	}
	if a.target != "" {
		args = append(args, "--target", a.target)
	}
	for k, v := range a.buildArgs {
		args = append(args, "--build-arg", k+"="+v)
	}
	if a.load {
		args = append(args, "--load")
	}
	buildCtx := a.buildCtx
	if buildCtx == "" {
		buildCtx = "."
	}
	args = append(args, buildCtx)

	fmt.Fprintf(inv.Stderr, "exec: docker %s\n", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, "docker", args...)
	cmd.Dir = inv.WorkDir
	cmd.Stdout = inv.Stdout
	cmd.Stderr = inv.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &pipeline.ExecutionError{Stage: inv.Stage.ID, ExitCode: exitErr.ExitCode(), Err: err}
		}
		return nil, err
	}

	return map[string][]byte{"image": []byte(a.tag)}, nil
}
