package secret

import (
	"fmt"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// Leak is a credential-shaped finding inside data that was about to be
// persisted or published.
type Leak struct {
	RuleID      string
	Description string
	Line        int
}

// LeakError reports that data contains detectable credentials and must
// not be published.
type LeakError struct {
	Context string
	Leaks   []Leak
}

func (e *LeakError) Error() string {
	rules := make([]string, 0, len(e.Leaks))
	seen := map[string]bool{}
	for _, l := range e.Leaks {
		if !seen[l.RuleID] {
			seen[l.RuleID] = true
			rules = append(rules, l.RuleID)
		}
	}
	return fmt.Sprintf("secret: %s contains %d credential-like values (%s)",
		e.Context, len(e.Leaks), strings.Join(rules, ", "))
}

var (
	detectorOnce sync.Once
	detector     *detect.Detector
	detectorErr  error
)

// ScanForLeaks runs the gitleaks default ruleset over data and returns
// any credential-shaped hits. The detector is built once per process.
func ScanForLeaks(data []byte) ([]Leak, error) {
	detectorOnce.Do(func() {
		detector, detectorErr = detect.NewDetectorDefaultConfig()
	})
	if detectorErr != nil {
		return nil, detectorErr
	}

	hits := detector.DetectBytes(data)
	if len(hits) == 0 {
		return nil, nil
	}

	leaks := make([]Leak, 0, len(hits))
	for _, h := range hits {
		leaks = append(leaks, Leak{
			RuleID:      h.RuleID,
			Description: h.Description,
			Line:        h.StartLine + 1, // gitleaks is 0-indexed
		})
	}
	return leaks, nil
}

// GuardPublish fails with LeakError when data contains detectable
// credentials. Context names the artifact being checked.
func GuardPublish(context string, data []byte) error {
	leaks, err := ScanForLeaks(data)
	if err != nil {
		return err
	}
	if len(leaks) > 0 {
		return &LeakError{Context: context, Leaks: leaks}
	}
	return nil
}
