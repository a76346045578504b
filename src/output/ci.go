package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sofmeright/conveyor/src/pipeline"
)

// CI environment detection.

func IsCI() bool {
	return os.Getenv("CI") == "true"
}

func IsGitLabCI() bool {
	return os.Getenv("GITLAB_CI") == "true"
}

// GitLab collapsible section helpers.

func SectionStart(w io.Writer, id, name string) {
	if !IsGitLabCI() {
		return
	}
	ts := time.Now().Unix()
	fmt.Fprintf(w, "\033[0Ksection_start:%d:%s\r\033[0K%s\n", ts, id, name)
}

func SectionEnd(w io.Writer, id string) {
	if !IsGitLabCI() {
		return
	}
	ts := time.Now().Unix()
	fmt.Fprintf(w, "\033[0Ksection_end:%d:%s\r\033[0K\n", ts, id)
}

// JUnit XML types for CI test reporting. Each stage maps to one test
// case; skipped stages carry a <skipped> element, failed ones a
// <failure> with the recorded error.

type junitTestSuites struct {
	XMLName  xml.Name     `xml:"testsuites"`
	Name     string       `xml:"name,attr"`
	Tests    int          `xml:"tests,attr"`
	Failures int          `xml:"failures,attr"`
	Skipped  int          `xml:"skipped,attr"`
	Time     string       `xml:"time,attr"`
	Suites   []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Name     string      `xml:"name,attr"`
	Tests    int         `xml:"tests,attr"`
	Failures int         `xml:"failures,attr"`
	Cases    []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name    string        `xml:"name,attr"`
	Time    string        `xml:"time,attr"`
	Failure *junitFailure `xml:"failure,omitempty"`
	Skipped *junitSkipped `xml:"skipped,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Body    string `xml:",chardata"`
}

type junitSkipped struct {
	Message string `xml:"message,attr"`
}

// WriteJUnit serializes a pipeline run as JUnit XML for CI test-report
// ingestion.
func WriteJUnit(w io.Writer, run *pipeline.PipelineRun) error {
	suite := junitSuite{Name: "pipeline"}
	var failures, skipped int

	for _, res := range run.Results {
		c := junitCase{
			Name: res.StageID,
			Time: fmt.Sprintf("%.3f", res.Duration.Seconds()),
		}
		switch res.Status {
		case pipeline.StatusFailed:
			failures++
			c.Failure = &junitFailure{Message: res.Error, Body: res.Output}
		case pipeline.StatusSkipped:
			skipped++
			c.Skipped = &junitSkipped{Message: res.Error}
		}
		suite.Cases = append(suite.Cases, c)
	}
	suite.Tests = len(suite.Cases)
	suite.Failures = failures

	doc := junitTestSuites{
		Name:     "conveyor " + shortID(run.ID),
		Tests:    suite.Tests,
		Failures: failures,
		Skipped:  skipped,
		Time:     fmt.Sprintf("%.3f", run.Finished.Sub(run.Started).Seconds()),
		Suites:   []junitSuite{suite},
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return enc.Encode(doc)
}
