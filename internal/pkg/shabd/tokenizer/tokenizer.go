package tokenizer

import "github.com/rs/zerolog"

// Tokenizer is the contract a subword tokenizer implementation fulfils.
// Vocabulary state is mutated only by Train and Load; Encode and Decode
// are read-only and safe for unsynchronized concurrent use once either
// of those has completed.
type Tokenizer interface {
	// Train learns a vocabulary and merge rules from corpus, replacing
	// any previously learned state.
	Train(corpus string, vocabSize int) error

	// Encode converts text into token ids. Characters not present in
	// the vocabulary are dropped, not substituted.
	Encode(text string) ([]int, error)

	// Decode converts token ids back into text. Unknown ids contribute
	// nothing to the output.
	Decode(ids []int) string

	// Save writes the vocabulary and merge rules to path.
	Save(path string) error

	// Load replaces the tokenizer state from a file written by Save.
	// No partial state is installed on failure.
	Load(path string) error

	// VocabSize reports the number of entries in the vocabulary.
	VocabSize() int
}

// MergeCounter is implemented by tokenizers that learn an ordered merge
// list and can report its length.
type MergeCounter interface {
	MergeCount() int
}

// Config carries construction-time options for a tokenizer backend.
type Config struct {
	Logger zerolog.Logger
}
