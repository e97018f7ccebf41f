package analysis

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// looseFloat tolerates the backend's habit of emitting numeric fields
// as either JSON numbers or quoted strings depending on version.
type looseFloat float64

func (f *looseFloat) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*f = looseFloat(v)
	return nil
}

/*
RawSection is one per-signal block of a raw result payload. Field names
have drifted across backend versions: the worker emits "wavelet" and
"r_ppg" sections with an inline base64 visual_report, newer API
responses emit "frequency"/"rppg" with a hosted visual_url. Both are
accepted; VisualURL wins over the inline image when both are present.
*/
type RawSection struct {
	Result          string      `json:"result,omitempty"`
	Probability     *looseFloat `json:"probability,omitempty"`
	ConfidenceScore *looseFloat `json:"confidence_score,omitempty"`
	VisualURL       string      `json:"visual_url,omitempty"`
	VisualBase64    string      `json:"visual_base64,omitempty"`
	VisualReport    string      `json:"visual_report,omitempty"`
}

type RawKeyword struct {
	Keyword  string `json:"keyword"`
	Detected bool   `json:"detected"`
}

type RawSearchResult struct {
	Keyword string `json:"keyword"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

/*
RawResult is the union of every result payload shape the backend has
produced.

If Status == "error":

	Message/ErrorMsg carry the failure, nothing else is meaningful.

Sectioned shape (current):

	Frequency/Wavelet, RPPG, Unite blocks carry per-signal fields.

Legacy inline shape:

	Top-level Result, AverageFakeProb and a base64 VisualReport; no
	per-signal blocks.
*/
type RawResult struct {
	Status       string `json:"status"`
	Message      string `json:"message,omitempty"`
	ErrorMsg     string `json:"error_msg,omitempty"`
	AnalysisMode string `json:"analysis_mode,omitempty"`
	ResultID     string `json:"result_id,omitempty"`

	Result          string      `json:"result,omitempty"`
	Probability     *looseFloat `json:"probability,omitempty"`
	AverageFakeProb *looseFloat `json:"average_fake_prob,omitempty"`
	ConfidenceScore *looseFloat `json:"confidence_score,omitempty"`
	VisualReport    string      `json:"visual_report,omitempty"`

	Frequency *RawSection `json:"frequency,omitempty"`
	Wavelet   *RawSection `json:"wavelet,omitempty"`
	RPPG      *RawSection `json:"rppg,omitempty"`
	RPpgAlt   *RawSection `json:"r_ppg,omitempty"`
	Unite     *RawSection `json:"unite,omitempty"`

	STTRiskLevel     string            `json:"stt_risk_level,omitempty"`
	STTRiskReason    string            `json:"stt_risk_reason,omitempty"`
	STTTranscript    string            `json:"stt_transcript,omitempty"`
	STTKeywords      []RawKeyword      `json:"stt_keywords,omitempty"`
	STTSearchResults []RawSearchResult `json:"stt_search_results,omitempty"`
}

func ParseRawResult(data []byte) (RawResult, error) {
	var raw RawResult
	err := json.Unmarshal(data, &raw)
	return raw, err
}
