package analysis

type Verdict string

const (
	VerdictFake    Verdict = "FAKE"
	VerdictReal    Verdict = "REAL"
	VerdictUnknown Verdict = "UNKNOWN"
)

// OverallFast combines the two fast-mode video signals. The rule is a
// logical OR on FAKE: one manipulated signal is enough to call the
// whole item manipulated, verdicts are never averaged.
func OverallFast(frequency Verdict, rppg Verdict) Verdict {
	if frequency == VerdictFake || rppg == VerdictFake {
		return VerdictFake
	}
	return VerdictReal
}

// DisplayPercent converts a model probability into the percentage shown
// next to a verdict. Probability is always the model's confidence that
// the content is real, so the FAKE side displays the complement.
func DisplayPercent(v Verdict, probability float64) float64 {
	if v == VerdictFake {
		return (1 - probability) * 100
	}
	return probability * 100
}
