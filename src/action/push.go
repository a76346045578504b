package action

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sofmeright/conveyor/src/pipeline"
)

func init() {
	Register("push", func() pipeline.Action { return &pushAction{} })
}

// pushAction authenticates against a registry, pushes an image, and
// emits the pushed digest so a later scan runs against the exact bytes
// that were published rather than a mutable tag.
//
// Options:
//
//	image:      key of the image-reference input ("package/image")  (required)
//	registry:   registry host for docker login (defaults to the ref's host)
//	credentials: env-style prefix; resolves <PREFIX>_USER / <PREFIX>_PASS
type pushAction struct {
	imageInput string
	registry   string
	credPrefix string
}

func (a *pushAction) Kind() string { return "push" }

func (a *pushAction) Configure(options map[string]any) error {
	img, ok := stringOption(options, "image")
	if !ok || img == "" {
		return errors.New("missing required option: image")
	}
	a.imageInput = img
	a.registry, _ = stringOption(options, "registry")
	a.credPrefix, _ = stringOption(options, "credentials")
	return nil
}

// CredentialNames returns the credential names this action resolves,
// so config can declare them on the stage automatically.
func (a *pushAction) CredentialNames() []string {
	if a.credPrefix == "" {
		return nil
	}
	return []string{a.credPrefix + "_USER", a.credPrefix + "_PASS"}
}

func (a *pushAction) Run(ctx context.Context, inv *pipeline.Invocation) (map[string][]byte, error) {
	in, ok := inv.Inputs[a.imageInput]
	if !ok {
		return nil, fmt.Errorf("no image-reference input %q", a.imageInput)
	}
	ref := strings.TrimSpace(string(in.Payload))

	host := a.registry
	if host == "" {
		host = refHost(ref)
	}

	if a.credPrefix != "" {
		user, okU := inv.Secrets[a.credPrefix+"_USER"]
		pass, okP := inv.Secrets[a.credPrefix+"_PASS"]
		if !okU || !okP {
			return nil, fmt.Errorf("credentials %s_USER/%s_PASS not resolved for stage", a.credPrefix, a.credPrefix)
		}

		login := exec.CommandContext(ctx, "docker", "login", host, "--username", user.Value(), "--password-stdin")
		login.Stdin = strings.NewReader(pass.Value())
		login.Stdout = inv.Stdout
		login.Stderr = inv.Stderr
		if err := login.Run(); err != nil {
			return nil, &pipeline.ExecutionError{Stage: inv.Stage.ID, Err: fmt.Errorf("docker login %s: %w", host, err)}
		}
	}

	push := exec.CommandContext(ctx, "docker", "push", ref)
	push.Stdout = inv.Stdout
	push.Stderr = inv.Stderr
	if err := push.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &pipeline.ExecutionError{Stage: inv.Stage.ID, ExitCode: exitErr.ExitCode(), Err: err}
		}
		return nil, err
	}

	digest, err := pushedDigest(ctx, ref)
	if err != nil {
		return nil, &pipeline.ExecutionError{Stage: inv.Stage.ID, Err: err}
	}
	fmt.Fprintf(inv.Stdout, "pushed %s@%s\n", refRepo(ref), digest)

	return map[string][]byte{
		"image":  []byte(ref),
		"digest": []byte(refRepo(ref) + "@" + digest),
	}, nil
}

// pushedDigest reads the repo digest docker recorded for the pushed ref.
func pushedDigest(ctx context.Context, ref string) (string, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, "docker", "inspect", "--format", "{{index .RepoDigests 0}}", ref)
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("reading pushed digest: %w", err)
	}
	full := strings.TrimSpace(out.String())
	if i := strings.LastIndex(full, "@"); i >= 0 {
		return full[i+1:], nil
	}
	return "", fmt.Errorf("no digest recorded for %s", ref)
}

// refHost extracts the registry host from an image reference, falling
// back to Docker Hub semantics when the first segment is not a host.
func refHost(ref string) string {
	first := ref
	if i := strings.Index(ref, "/"); i >= 0 {
		first = ref[:i]
	} else {
		return "docker.io"
	}
	if strings.ContainsAny(first, ".:") || first == "localhost" {
		return first
	}
	return "docker.io"
}

// refRepo strips the tag from an image reference.
func refRepo(ref string) string {
	slash := strings.LastIndex(ref, "/")
	if i := strings.LastIndex(ref, ":"); i > slash {
		return ref[:i]
	}
	return ref
}
