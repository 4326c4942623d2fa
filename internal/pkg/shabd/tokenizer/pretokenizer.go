package tokenizer

import (
	"iter"
	"unicode"

	"golang.org/x/text/unicode/rangetable"
)

// The Devanagari class covers the main block plus the Vedic Extensions
// block, so a word carrying Vedic tone marks stays one chunk.
var devanagari = rangetable.Merge(
	&unicode.RangeTable{R16: []unicode.Range16{{Lo: 0x0900, Hi: 0x097F, Stride: 1}}},
	&unicode.RangeTable{R16: []unicode.Range16{{Lo: 0x1CD0, Hi: 0x1CFF, Stride: 1}}},
)

type charClass int

const (
	classDevanagari charClass = iota
	classLatin
	classDigit
	classSpace
	classSymbol
)

// classOf assigns every rune to exactly one of the five classes. Anything
// that is neither Devanagari, a Latin letter, a digit nor whitespace
// counts as a symbol, so the classes partition all input.
func classOf(r rune) charClass {
	switch {
	case unicode.Is(devanagari, r):
		return classDevanagari
	case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		return classLatin
	case r >= '0' && r <= '9':
		return classDigit
	case unicode.IsSpace(r):
		return classSpace
	default:
		return classSymbol
	}
}

// Chunks splits text into maximal runs of a single character class and
// yields them left to right. No characters are dropped and no chunk is
// empty, so concatenating the chunks reproduces text exactly. The
// sequence is lazy and can be iterated any number of times.
func Chunks(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		start := 0
		var current charClass
		first := true
		for i, r := range text {
			c := classOf(r)
			if first {
				current = c
				first = false
				continue
			}
			if c != current {
				if !yield(text[start:i]) {
					return
				}
				start = i
				current = c
			}
		}
		if !first {
			yield(text[start:])
		}
	}
}
