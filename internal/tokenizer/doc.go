// Package tokenizer turns free-text queries into keyword tokens.
//
// Queries mix Latin identifiers, document codes and CJK text. The tokenizer
// strips file extensions, splits on whitespace and a configurable separator
// set that includes full-width punctuation, cuts Han stop-words out of
// unsegmented CJK runs, then drops short tokens and stop-words and removes
// case-insensitive duplicates.
//
// Tokenize is idempotent: joining its output with spaces and tokenizing again
// yields the same tokens.
package tokenizer
