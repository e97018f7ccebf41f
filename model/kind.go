package model

import (
	"fmt"
	"strings"
)

// SourceKind distinguishes a locally uploaded file from a registered
// remote link.
type SourceKind string

const (
	SourceKindFile SourceKind = "FILE"
	SourceKindLink SourceKind = "LINK"
)

func ParseSourceKind(s string) (SourceKind, error) {
	switch strings.ToUpper(s) {
	case string(SourceKindFile):
		return SourceKindFile, nil
	case string(SourceKindLink):
		return SourceKindLink, nil
	default:
		return SourceKindFile, fmt.Errorf("unknown source kind: %s", s)
	}
}
