package analysis

import "strings"

/*
Normalize maps any raw payload variant onto NormalizedResult. Shape
detection is structural: the sectioned adapter handles payloads with
per-signal blocks, the legacy adapter handles the old flat payload with
an aggregate fake probability and inline image, and the flat adapter
is the last resort for payloads carrying nothing but a verdict.

Per-signal fields always win over top-level aggregates; top-level
result/probability only backfill the frequency signal when its own
fields are missing.
*/
func Normalize(raw RawResult, mode Mode) NormalizedResult {
	if raw.Status == string(StatusError) || raw.ErrorMsg != "" {
		msg := raw.ErrorMsg
		if msg == "" {
			msg = raw.Message
		}
		return NormalizedResult{
			Status:   StatusError,
			Message:  msg,
			Mode:     mode,
			ResultID: raw.ResultID,
		}
	}

	var res NormalizedResult
	switch {
	case raw.Frequency != nil || raw.Wavelet != nil || raw.RPPG != nil || raw.RPpgAlt != nil || raw.Unite != nil:
		res = adaptSectioned(raw, mode)
	case raw.AverageFakeProb != nil || raw.VisualReport != "":
		res = adaptLegacyInline(raw, mode)
	default:
		res = adaptFlat(raw, mode)
	}

	res.Status = StatusSuccess
	res.Mode = mode
	res.ResultID = raw.ResultID
	finishOverall(&res, mode)
	return res
}

// adaptSectioned handles current payloads with per-signal blocks.
func adaptSectioned(raw RawResult, mode Mode) NormalizedResult {
	var res NormalizedResult

	freq := raw.Frequency
	if freq == nil {
		freq = raw.Wavelet
	}
	rppg := raw.RPPG
	if rppg == nil {
		rppg = raw.RPpgAlt
	}

	res.Frequency = sectionSignal(freq)
	res.RPPG = sectionSignal(rppg)
	res.Unite = sectionSignal(raw.Unite)

	if mode == ModeFast {
		// Older backends only fill the top level for the frequency model.
		if res.Frequency == nil {
			res.Frequency = topLevelSignal(raw)
		} else if res.Frequency.Verdict == nil {
			if v, ok := parseVerdict(raw.Result); ok {
				res.Frequency.Verdict = &v
			}
			if res.Frequency.Probability == nil {
				res.Frequency.Probability = floatPtr(raw.Probability)
			}
		}
		res.STT = sttInfo(raw)
	}
	return res
}

// adaptLegacyInline handles the old flat payload: a single top-level
// verdict, an aggregate fake probability and a base64 visual report.
func adaptLegacyInline(raw RawResult, mode Mode) NormalizedResult {
	sig := topLevelSignal(raw)
	if sig != nil && sig.Probability == nil && raw.AverageFakeProb != nil {
		// Legacy payloads report the fake-side probability; normalized
		// probability is always the real-side confidence.
		p := 1 - float64(*raw.AverageFakeProb)
		sig.Probability = &p
	}
	if sig != nil && sig.VisualURL == "" && raw.VisualReport != "" {
		sig.VisualURL = inlineImageURL(raw.VisualReport)
	}

	var res NormalizedResult
	if mode == ModeDeep {
		res.Unite = sig
	} else {
		res.Frequency = sig
		res.STT = sttInfo(raw)
	}
	return res
}

// adaptFlat handles payloads carrying nothing but top-level fields.
func adaptFlat(raw RawResult, mode Mode) NormalizedResult {
	var res NormalizedResult
	if mode == ModeDeep {
		res.Unite = topLevelSignal(raw)
	} else {
		res.Frequency = topLevelSignal(raw)
		res.STT = sttInfo(raw)
	}
	return res
}

func finishOverall(res *NormalizedResult, mode Mode) {
	if mode == ModeDeep {
		res.Overall = signalVerdict(res.Unite)
		if res.Unite != nil {
			res.OverallProbability = res.Unite.Probability
		}
		return
	}
	res.Overall = OverallFast(signalVerdict(res.Frequency), signalVerdict(res.RPPG))
	// The headline probability comes from whichever signal has one,
	// frequency preferred.
	if res.Frequency != nil && res.Frequency.Probability != nil {
		res.OverallProbability = res.Frequency.Probability
	} else if res.RPPG != nil && res.RPPG.Probability != nil {
		res.OverallProbability = res.RPPG.Probability
	}
}

func sectionSignal(sec *RawSection) *Signal {
	if sec == nil {
		return nil
	}
	sig := &Signal{
		Probability: floatPtr(sec.Probability),
		Confidence:  floatPtr(sec.ConfidenceScore),
	}
	if v, ok := parseVerdict(sec.Result); ok {
		sig.Verdict = &v
	}
	switch {
	case sec.VisualURL != "":
		sig.VisualURL = sec.VisualURL
	case sec.VisualBase64 != "":
		sig.VisualURL = inlineImageURL(sec.VisualBase64)
	case sec.VisualReport != "":
		sig.VisualURL = inlineImageURL(sec.VisualReport)
	}
	return sig
}

func topLevelSignal(raw RawResult) *Signal {
	v, ok := parseVerdict(raw.Result)
	if !ok && raw.Probability == nil {
		return nil
	}
	sig := &Signal{
		Probability: floatPtr(raw.Probability),
		Confidence:  floatPtr(raw.ConfidenceScore),
	}
	if ok {
		sig.Verdict = &v
	}
	return sig
}

func sttInfo(raw RawResult) *STTInfo {
	if raw.STTRiskLevel == "" && raw.STTTranscript == "" && len(raw.STTKeywords) == 0 {
		return nil
	}
	info := &STTInfo{
		RiskLevel:  raw.STTRiskLevel,
		RiskReason: raw.STTRiskReason,
		Transcript: raw.STTTranscript,
	}
	for _, kw := range raw.STTKeywords {
		info.Keywords = append(info.Keywords, Keyword{Keyword: kw.Keyword, Detected: kw.Detected})
	}
	for _, sr := range raw.STTSearchResults {
		info.SearchResults = append(info.SearchResults, SearchResult{Keyword: sr.Keyword, Title: sr.Title, Content: sr.Content})
	}
	return info
}

// parseVerdict ignores UNKNOWN and unrecognized values so they read as
// an absent verdict.
func parseVerdict(s string) (Verdict, bool) {
	switch strings.ToUpper(s) {
	case string(VerdictFake):
		return VerdictFake, true
	case string(VerdictReal):
		return VerdictReal, true
	default:
		return VerdictUnknown, false
	}
}

func signalVerdict(sig *Signal) Verdict {
	if sig == nil || sig.Verdict == nil {
		return VerdictUnknown
	}
	return *sig.Verdict
}

func floatPtr(f *looseFloat) *float64 {
	if f == nil {
		return nil
	}
	v := float64(*f)
	return &v
}

func inlineImageURL(b64 string) string {
	if strings.HasPrefix(b64, "data:") || strings.HasPrefix(b64, "http") {
		return b64
	}
	return "data:image/png;base64," + b64
}
