// Package rag provides the retrieval engine: transcript chunking, the durable
// vector store, similarity search, and retrieval-augmented answer synthesis.
package rag

import "strings"

// DefaultMaxWords is the default chunk size in words.
const DefaultMaxWords = 120

// Split divides text into consecutive chunks of at most maxWords whitespace
// tokens, each rejoined with single spaces. Order is preserved and every
// token lands in exactly one chunk. Empty input yields nil.
func Split(text string, maxWords int) []string {
	if maxWords < 1 {
		maxWords = DefaultMaxWords
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	chunks := make([]string, 0, (len(words)+maxWords-1)/maxWords)
	for i := 0; i < len(words); i += maxWords {
		end := i + maxWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
	}
	return chunks
}
