package analysis

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Signal is one normalized sub-analysis. Verdict and Probability are
// optional because older payloads omit them for signals the backend
// could not run.
type Signal struct {
	Verdict     *Verdict
	Probability *float64
	Confidence  *float64
	VisualURL   string
}

type Keyword struct {
	Keyword  string
	Detected bool
}

type SearchResult struct {
	Keyword string
	Title   string
	Content string
}

type STTInfo struct {
	RiskLevel     string
	RiskReason    string
	Transcript    string
	Keywords      []Keyword
	SearchResults []SearchResult
}

/*
NormalizedResult is the single mode-agnostic shape consumers see.

If Status == error:

	Message carries the backend's text verbatim, no other section is
	populated.

If Status == success:

	Fast mode populates Frequency, RPPG and STT; deep mode populates
	Unite. Overall and OverallProbability are always set on success.
*/
type NormalizedResult struct {
	Status   Status
	Message  string
	Mode     Mode
	ResultID string

	Overall            Verdict
	OverallProbability *float64

	Frequency *Signal
	RPPG      *Signal
	Unite     *Signal
	STT       *STTInfo
}

// FormatSummary renders the short history text for a result.
func FormatSummary(res NormalizedResult) string {
	if res.Status == StatusError {
		return fmt.Sprintf("analysis failed: %s", res.Message)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "verdict: %s", res.Overall)
	if res.OverallProbability != nil {
		fmt.Fprintf(&b, " (%.1f%%)", DisplayPercent(res.Overall, *res.OverallProbability))
	}
	fmt.Fprintf(&b, " [mode: %s]", res.Mode)
	if res.STT != nil && res.STT.RiskLevel != "" {
		fmt.Fprintf(&b, " speech risk: %s", res.STT.RiskLevel)
	}
	return b.String()
}
