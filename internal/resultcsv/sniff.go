package resultcsv

import "bytes"

// sniffLimit matches the sample size browsers upload in the first chunk.
const sniffLimit = 4096

var candidates = []rune{',', ';', '\t'}

// SniffDelimiter guesses the field delimiter of a CSV sample. A delimiter
// wins when it occurs the same non-zero number of times on every sampled line
// outside quotes; otherwise the one most frequent on the header line wins.
// Unrecognisable input falls back to ','.
func SniffDelimiter(sample []byte) rune {
	if len(sample) > sniffLimit {
		sample = sample[:sniffLimit]
	}
	lines := bytes.Split(sample, []byte("\n"))
	if len(lines) > 1 && len(sample) == sniffLimit {
		lines = lines[:len(lines)-1] // last line may be cut short
	}
	var nonEmpty [][]byte
	for _, l := range lines {
		l = bytes.TrimRight(l, "\r")
		if len(l) > 0 {
			nonEmpty = append(nonEmpty, l)
		}
		if len(nonEmpty) == 10 {
			break
		}
	}
	if len(nonEmpty) == 0 {
		return ','
	}

	for _, d := range candidates {
		want := countOutsideQuotes(nonEmpty[0], d)
		if want == 0 {
			continue
		}
		consistent := true
		for _, l := range nonEmpty[1:] {
			if countOutsideQuotes(l, d) != want {
				consistent = false
				break
			}
		}
		if consistent {
			return d
		}
	}

	best, bestCount := ',', 0
	for _, d := range candidates {
		if n := countOutsideQuotes(nonEmpty[0], d); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func countOutsideQuotes(line []byte, d rune) int {
	n := 0
	quoted := false
	for _, r := range string(line) {
		switch {
		case r == '"':
			quoted = !quoted
		case r == d && !quoted:
			n++
		}
	}
	return n
}
