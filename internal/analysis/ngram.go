package analysis

import (
	"sort"
	"strings"

	"github.com/iaimans/mars-rover-ai-jam/internal/cube"
	"github.com/iaimans/mars-rover-ai-jam/internal/rover"
)

// maxOccurrences caps the sample occurrences kept per n-gram.
const maxOccurrences = 10

// NGram represents a repeated command sequence.
type NGram struct {
	N           int               `json:"n"`
	Sequence    string            `json:"sequence"`
	Count       int               `json:"count"`
	Occurrences []NGramOccurrence `json:"occurrences,omitempty"`
}

// NGramOccurrence represents where an n-gram was found.
type NGramOccurrence struct {
	SessionID  string `json:"session_id,omitempty"`
	StartIndex int    `json:"start_index"`
	TsMs       int64  `json:"ts_ms"`
}

// NGramReport contains the results of n-gram mining.
type NGramReport struct {
	TopNGrams map[int][]NGram `json:"top_ngrams"` // Keyed by n
}

// Lengths returns the n values present in the report, ascending.
func (r *NGramReport) Lengths() []int {
	ns := make([]int, 0, len(r.TopNGrams))
	for n := range r.TopNGrams {
		ns = append(ns, n)
	}
	sort.Ints(ns)
	return ns
}

// RollingHash implements Rabin-Karp rolling hash for efficient n-gram detection.
type RollingHash struct {
	base   uint64
	hash   uint64
	pow    uint64 // base^(n-1) for removal
	window []byte
	n      int
}

// NewRollingHash creates a new rolling hash for window size n.
func NewRollingHash(n int) *RollingHash {
	rh := &RollingHash{
		base:   131,
		n:      n,
		window: make([]byte, 0, n),
	}

	rh.pow = 1
	for i := 0; i < n-1; i++ {
		rh.pow *= rh.base
	}

	return rh
}

// Roll adds a token, dropping the oldest once the window is full.
func (rh *RollingHash) Roll(token byte) {
	if len(rh.window) < rh.n {
		rh.window = append(rh.window, token)
		rh.hash = rh.hash*rh.base + uint64(token)
		return
	}

	old := rh.window[0]
	rh.hash = (rh.hash-uint64(old)*rh.pow)*rh.base + uint64(token)

	copy(rh.window, rh.window[1:])
	rh.window[rh.n-1] = token
}

// Hash returns the current hash value.
func (rh *RollingHash) Hash() uint64 {
	return rh.hash
}

// Window returns the current window as a string.
func (rh *RollingHash) Window() string {
	return string(rh.window)
}

// Ready returns true if the window is full.
func (rh *RollingHash) Ready() bool {
	return len(rh.window) == rh.n
}

type ngramEntry struct {
	seq         string
	count       int
	occurrences []NGramOccurrence
}

// MineNGrams finds the top-K most frequent command n-grams for each n in
// [minN, maxN]. Only sequences seen at least twice are reported.
func MineNGrams(entries []Entry, minN, maxN, topK int) *NGramReport {
	report := &NGramReport{
		TopNGrams: make(map[int][]NGram),
	}
	if minN < 1 {
		minN = 1
	}

	tokens := make([]byte, len(entries))
	for i, e := range entries {
		tokens[i] = byte(e.Step.Command)
	}

	for n := minN; n <= maxN && n <= len(tokens); n++ {
		if ngrams := mineNGramsForN(tokens, entries, n, topK); len(ngrams) > 0 {
			report.TopNGrams[n] = ngrams
		}
	}

	return report
}

func mineNGramsForN(tokens []byte, entries []Entry, n, topK int) []NGram {
	counts := make(map[uint64][]*ngramEntry)
	rh := NewRollingHash(n)

	for i, tok := range tokens {
		rh.Roll(tok)
		if !rh.Ready() {
			continue
		}

		start := i - n + 1
		occ := NGramOccurrence{StartIndex: start, TsMs: entries[start].TsMs}
		window := rh.Window()

		// Buckets hold every distinct sequence that shares a hash.
		var found *ngramEntry
		for _, e := range counts[rh.Hash()] {
			if e.seq == window {
				found = e
				break
			}
		}
		if found == nil {
			counts[rh.Hash()] = append(counts[rh.Hash()], &ngramEntry{
				seq: window, count: 1, occurrences: []NGramOccurrence{occ},
			})
			continue
		}
		found.count++
		if len(found.occurrences) < maxOccurrences {
			found.occurrences = append(found.occurrences, occ)
		}
	}

	var repeated []*ngramEntry
	for _, bucket := range counts {
		for _, e := range bucket {
			if e.count >= 2 {
				repeated = append(repeated, e)
			}
		}
	}
	sortEntries(repeated)

	if len(repeated) > topK {
		repeated = repeated[:topK]
	}

	result := make([]NGram, len(repeated))
	for i, e := range repeated {
		result[i] = NGram{N: n, Sequence: e.seq, Count: e.count, Occurrences: e.occurrences}
	}
	return result
}

func sortEntries(entries []*ngramEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].seq < entries[j].seq
	})
}

// MineNGramsAcrossSessions aggregates per-session reports.
func MineNGramsAcrossSessions(reports map[string]*NGramReport, topK int) *NGramReport {
	report := &NGramReport{
		TopNGrams: make(map[int][]NGram),
	}

	// Visit sessions in a fixed order so sample occurrences are stable.
	ids := make([]string, 0, len(reports))
	for id := range reports {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	lengths := make(map[int]bool)
	for _, r := range reports {
		for n := range r.TopNGrams {
			lengths[n] = true
		}
	}

	for n := range lengths {
		aggregated := make(map[string]*ngramEntry)
		for _, id := range ids {
			for _, ng := range reports[id].TopNGrams[n] {
				e, ok := aggregated[ng.Sequence]
				if !ok {
					e = &ngramEntry{seq: ng.Sequence}
					aggregated[ng.Sequence] = e
				}
				e.count += ng.Count
				for _, occ := range ng.Occurrences {
					if len(e.occurrences) < maxOccurrences {
						occ.SessionID = id
						e.occurrences = append(e.occurrences, occ)
					}
				}
			}
		}

		entries := make([]*ngramEntry, 0, len(aggregated))
		for _, e := range aggregated {
			entries = append(entries, e)
		}
		sortEntries(entries)
		if len(entries) > topK {
			entries = entries[:topK]
		}
		if len(entries) == 0 {
			continue
		}

		ngrams := make([]NGram, len(entries))
		for i, e := range entries {
			ngrams[i] = NGram{N: n, Sequence: e.seq, Count: e.count, Occurrences: e.occurrences}
		}
		report.TopNGrams[n] = ngrams
	}

	return report
}

// FormatSequence spaces out a command sequence for display.
func FormatSequence(seq string) string {
	return strings.Join(strings.Split(seq, ""), " ")
}

// BlockedTarget returns a resolver for the cell a blocked move tried to
// enter, for use with Summarize.
func BlockedTarget(topo *cube.Topology) func(rover.Step) (cube.Obstacle, bool) {
	return func(s rover.Step) (cube.Obstacle, bool) {
		if !s.Result.Blocked || !s.Command.IsMove() {
			return cube.Obstacle{}, false
		}
		dir := 1
		if s.Command == rover.Backward {
			dir = -1
		}
		next, err := topo.Step(s.Before, dir)
		if err != nil {
			return cube.Obstacle{}, false
		}
		return cube.Obstacle{Face: next.Face, X: next.Cell.X, Y: next.Cell.Y}, true
	}
}
