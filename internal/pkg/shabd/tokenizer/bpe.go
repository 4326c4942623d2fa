package tokenizer

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"
)

func init() {
	Register("bpe", func(cfg Config) (Tokenizer, error) {
		return NewBPE(cfg.Logger), nil
	})
}

// pair is an adjacent (left, right) token id pair.
type pair struct {
	a, b int
}

// BPE is a character-level byte-pair-encoding tokenizer. Training builds
// a dense vocabulary (one id per distinct character, then one per merge)
// and an ordered merge list; the rank and merged-id indexes are always
// derived from that list.
//
// All state is replaced wholesale by Train and Load and only read by
// Encode and Decode, so a trained BPE is safe for concurrent encoding.
type BPE struct {
	vocab   map[int]string // id -> token text
	inverse map[string]int // token text -> id
	merges  []pair         // learned order; index = rank
	ranks   map[pair]int   // derived from merges
	merged  map[pair]int   // pair -> id of the merged token

	logger zerolog.Logger
}

func NewBPE(logger zerolog.Logger) *BPE {
	return &BPE{
		vocab:   make(map[int]string),
		inverse: make(map[string]int),
		logger:  logger,
	}
}

// Train learns merges from corpus until the vocabulary reaches vocabSize
// or no adjacent pair remains. Each call starts from scratch; a
// previously trained instance does not leak state into the new run.
//
// The merge search runs over the flat character stream of the whole
// corpus, without the class segmentation Encode applies later. That
// asymmetry is deliberate: segmenting during training would change the
// learned vocabulary.
func (t *BPE) Train(corpus string, vocabSize int) error {
	runes := []rune(corpus)

	distinct := make(map[rune]struct{})
	for _, r := range runes {
		distinct[r] = struct{}{}
	}
	chars := make([]rune, 0, len(distinct))
	for r := range distinct {
		chars = append(chars, r)
	}
	slices.Sort(chars)

	vocab := make(map[int]string, vocabSize)
	inverse := make(map[string]int, vocabSize)
	for i, r := range chars {
		vocab[i] = string(r)
		inverse[string(r)] = i
	}

	ids := make([]int, len(runes))
	for i, r := range runes {
		ids[i] = inverse[string(r)]
	}

	t.logger.Info().
		Int("base_vocab", len(vocab)).
		Int("chars", len(ids)).
		Int("target_vocab", vocabSize).
		Msg("Training started")

	var merges []pair
	numMerges := vocabSize - len(vocab)
	for m := 0; m < numMerges; m++ {
		best, ok := mostFrequentPair(ids)
		if !ok {
			t.logger.Info().Int("vocab", len(vocab)).Msg("No more pairs to merge, stopping early")
			break
		}
		newID := len(vocab)
		token := vocab[best.a] + vocab[best.b]
		vocab[newID] = token
		inverse[token] = newID
		merges = append(merges, best)
		ids = mergePair(ids, best, newID)

		if (m+1)%1000 == 0 {
			t.logger.Info().Int("merges", m+1).Int("total", numMerges).Int("vocab", len(vocab)).Msg("Training progress")
		}
	}

	ranks, merged, err := buildIndex(vocab, inverse, merges)
	if err != nil {
		return fmt.Errorf("failed to index merges: %w", err)
	}

	t.vocab = vocab
	t.inverse = inverse
	t.merges = merges
	t.ranks = ranks
	t.merged = merged

	compression := 1.0
	if len(ids) > 0 {
		compression = float64(len(runes)) / float64(len(ids))
	}
	t.logger.Info().
		Int("vocab", len(vocab)).
		Int("merges", len(merges)).
		Int("tokens", len(ids)).
		Float64("compression", compression).
		Msg("Training complete")
	return nil
}

// mostFrequentPair counts every adjacent pair in ids and returns the most
// frequent one. A tie goes to the pair encountered first in the
// left-to-right scan, which keeps training deterministic regardless of
// map iteration order.
func mostFrequentPair(ids []int) (pair, bool) {
	if len(ids) < 2 {
		return pair{}, false
	}
	freqs := make(map[pair]int, len(ids))
	order := make([]pair, 0, len(ids)-1)
	for i := 0; i < len(ids)-1; i++ {
		p := pair{ids[i], ids[i+1]}
		if _, seen := freqs[p]; !seen {
			order = append(order, p)
		}
		freqs[p]++
	}
	best := order[0]
	for _, p := range order[1:] {
		if freqs[p] > freqs[best] {
			best = p
		}
	}
	return best, true
}

// mergePair rewrites every non-overlapping occurrence of p with newID in
// a single left-to-right pass, so "x x x" collapses to two tokens when
// (x,x) is merged.
func mergePair(ids []int, p pair, newID int) []int {
	out := make([]int, 0, len(ids))
	for i := 0; i < len(ids); {
		if i+1 < len(ids) && ids[i] == p.a && ids[i+1] == p.b {
			out = append(out, newID)
			i += 2
		} else {
			out = append(out, ids[i])
			i++
		}
	}
	return out
}

// buildIndex derives the rank and merged-id lookups from an ordered merge
// list. It fails when a merge references ids outside the vocabulary or
// when the concatenated token has no id, so a corrupt merge list never
// produces a half-working tokenizer.
func buildIndex(vocab map[int]string, inverse map[string]int, merges []pair) (map[pair]int, map[pair]int, error) {
	ranks := make(map[pair]int, len(merges))
	merged := make(map[pair]int, len(merges))
	for i, p := range merges {
		left, ok := vocab[p.a]
		if !ok {
			return nil, nil, fmt.Errorf("merge %d references unknown token id %d", i, p.a)
		}
		right, ok := vocab[p.b]
		if !ok {
			return nil, nil, fmt.Errorf("merge %d references unknown token id %d", i, p.b)
		}
		id, ok := inverse[left+right]
		if !ok {
			return nil, nil, fmt.Errorf("merge %d (%d,%d) has no vocabulary entry for %q", i, p.a, p.b, left+right)
		}
		ranks[p] = i
		merged[p] = id
	}
	return ranks, merged, nil
}

// Encode splits text into class chunks and applies the learned merges to
// each chunk independently. Characters never seen during training are
// dropped. An empty or blank input yields an empty id sequence, never an
// error.
func (t *BPE) Encode(text string) ([]int, error) {
	var out []int
	for chunk := range Chunks(text) {
		out = append(out, t.applyMerges(chunk)...)
	}
	return out, nil
}

// applyMerges maps a chunk to character ids and then repeatedly merges
// the adjacent pair with the lowest rank (earliest learned), leftmost
// occurrence first, one merge per iteration, until no pair has a rank.
func (t *BPE) applyMerges(chunk string) []int {
	ids := make([]int, 0, len(chunk))
	for _, r := range chunk {
		if id, ok := t.inverse[string(r)]; ok {
			ids = append(ids, id)
		}
	}

	for len(ids) > 1 {
		minRank := -1
		minPos := -1
		for i := 0; i < len(ids)-1; i++ {
			if rank, ok := t.ranks[pair{ids[i], ids[i+1]}]; ok {
				if minPos == -1 || rank < minRank {
					minRank = rank
					minPos = i
				}
			}
		}
		if minPos == -1 {
			break
		}
		ids[minPos] = t.merged[pair{ids[minPos], ids[minPos+1]}]
		ids = append(ids[:minPos+1], ids[minPos+2:]...)
	}
	return ids
}

// Decode concatenates the token text for each id. Unknown ids contribute
// nothing; this is not guaranteed to invert Encode when the encoded text
// contained out-of-vocabulary characters.
func (t *BPE) Decode(ids []int) string {
	var sb strings.Builder
	for _, id := range ids {
		if token, ok := t.vocab[id]; ok {
			sb.WriteString(token)
		}
	}
	return sb.String()
}

func (t *BPE) VocabSize() int {
	return len(t.vocab)
}

// MergeCount reports how many merge rules were learned or loaded.
func (t *BPE) MergeCount() int {
	return len(t.merges)
}
