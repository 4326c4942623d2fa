package tokenizer

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// vocabFile is the on-disk representation shared with other consumers of
// the vocabulary: token ids as decimal string keys, merges as ordered
// two-element id arrays. The rank index is never persisted; it is
// rebuilt from the merge order on load.
type vocabFile struct {
	Vocab  map[string]string `json:"vocab"`
	Merges [][]int           `json:"bpe_merges"`
}

// Save writes the vocabulary and merge list to path as indented JSON.
func (t *BPE) Save(path string) error {
	out := vocabFile{
		Vocab:  make(map[string]string, len(t.vocab)),
		Merges: make([][]int, len(t.merges)),
	}
	for id, token := range t.vocab {
		out.Vocab[strconv.Itoa(id)] = token
	}
	for i, p := range t.merges {
		out.Merges[i] = []int{p.a, p.b}
	}

	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal vocabulary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write vocab file: %w", err)
	}
	return nil
}

// Load replaces the tokenizer state from a file written by Save. The
// file is fully parsed and validated before anything is installed, so a
// failed Load leaves the previous state untouched. A missing file keeps
// fs.ErrNotExist in the error chain.
func (t *BPE) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read vocab file: %w", err)
	}

	var f vocabFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse vocab file %s: %w", path, err)
	}
	if f.Vocab == nil {
		return fmt.Errorf("vocab file %s is missing the %q field", path, "vocab")
	}
	if f.Merges == nil {
		return fmt.Errorf("vocab file %s is missing the %q field", path, "bpe_merges")
	}

	vocab := make(map[int]string, len(f.Vocab))
	inverse := make(map[string]int, len(f.Vocab))
	for key, token := range f.Vocab {
		id, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("vocab file %s: token id %q is not an integer: %w", path, key, err)
		}
		if prev, dup := inverse[token]; dup {
			return fmt.Errorf("vocab file %s: token %q appears under ids %d and %d", path, token, prev, id)
		}
		vocab[id] = token
		inverse[token] = id
	}

	merges := make([]pair, len(f.Merges))
	for i, m := range f.Merges {
		if len(m) != 2 {
			return fmt.Errorf("vocab file %s: merge %d has %d elements, want 2", path, i, len(m))
		}
		merges[i] = pair{m[0], m[1]}
	}

	ranks, merged, err := buildIndex(vocab, inverse, merges)
	if err != nil {
		return fmt.Errorf("vocab file %s: %w", path, err)
	}

	t.vocab = vocab
	t.inverse = inverse
	t.merges = merges
	t.ranks = ranks
	t.merged = merged
	return nil
}
