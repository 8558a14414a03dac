package domain

import "fmt"

// Normalize maps a raw upstream payload onto QuakeEvents using the parser for
// the given source. The raw KRDAE text parser produces final events directly,
// so its output passes through the same entry point untouched.
//
// A non-nil error means the whole payload was unusable (upstream shape
// mismatch); per-record failures are reported through the BatchReport and do
// not produce an error.
func Normalize(payload []byte, src Source) ([]QuakeEvent, BatchReport, error) {
	switch src {
	case SourceUSGS:
		return parseUSGS(payload)
	case SourceEMSC:
		return parseEMSC(payload)
	case SourceAFAD:
		return parseAFAD(payload)
	case SourceKandilli:
		return parseKandilli(payload)
	case SourceKRDAE:
		return ParseKRDAEText(string(payload))
	default:
		return nil, BatchReport{Source: src}, fmt.Errorf("%w: %s", ErrUnknownSource, src)
	}
}
