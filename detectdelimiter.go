package posemisc

import (
	"io"

	"github.com/csimplestring/go-csv/detector"
)

// knownDelimiters are the separators landmark files actually arrive with:
// comma from our own writers, tab and semicolon from spreadsheet re-exports.
var knownDelimiters = map[byte]bool{',': true, '\t': true, ';': true}

// DetermineDelimiter sniffs the delimiter of a CSV-like stream. The first
// recognized candidate wins; a stream with no recognizable delimiter is
// treated as comma-separated.
func DetermineDelimiter(r io.Reader) rune {
	d := detector.New()

	for _, cand := range d.DetectDelimiter(r, '"') {
		if len(cand) == 1 && knownDelimiters[cand[0]] {
			return rune(cand[0])
		}
	}

	return ','
}
