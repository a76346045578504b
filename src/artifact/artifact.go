// Package artifact holds the typed outputs stages exchange during a
// pipeline run. Artifacts are write-once: a stage commits its declared
// outputs exactly once, and downstream stages read them verbatim.
package artifact

import "fmt"

// Kind classifies an artifact payload.
type Kind string

const (
	KindBinary   Kind = "binary"          // compiled program or archive
	KindImageRef Kind = "image-reference" // container image tag
	KindDigest   Kind = "digest"          // immutable image digest (sha256:...)
	KindReport   Kind = "report"          // structured report (e.g. scan JSON)
	KindLog      Kind = "log"             // captured text output
)

// Key identifies an artifact by producing stage and artifact name.
type Key struct {
	Stage string
	Name  string
}

func (k Key) String() string {
	return k.Stage + "/" + k.Name
}

// ParseKey splits "stage/name" into a Key.
func ParseKey(s string) (Key, error) {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			if i == 0 || i == len(s)-1 {
				break
			}
			return Key{Stage: s[:i], Name: s[i+1:]}, nil
		}
	}
	return Key{}, fmt.Errorf("artifact: invalid key %q (want stage/name)", s)
}

// Artifact is an immutable stage output.
type Artifact struct {
	Key     Key
	Kind    Kind
	Payload []byte
}

// MissingArtifactError indicates a declared dependency produced no
// artifact under the requested key.
type MissingArtifactError struct {
	Key Key
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("artifact: %s not found", e.Key)
}

// DuplicateArtifactError indicates a second Put for an already
// committed key.
type DuplicateArtifactError struct {
	Key Key
}

func (e *DuplicateArtifactError) Error() string {
	return fmt.Sprintf("artifact: %s already committed", e.Key)
}
