// Package topic provides channel segmentation and wildcard pattern matching for the hub.
//
// # Channel Format
//
// Channels and patterns use slash-separated segments:
//
//	/buffer/content/inserted
//	/cursor/moved
//	/plugin/surround/activated
//
// One leading empty segment is dropped, so "/a/b" and "a/b" both have the
// segments ["a", "b"].
//
// # Wildcards
//
// Two wildcard segments are recognised in patterns:
//
//   - "*" matches exactly one segment at its position
//   - "**" as the final segment matches its prefix and any number of further segments
//
// Examples:
//
//	/buffer/*        matches /buffer/saved (not /buffer/content/inserted)
//	/buffer/**       matches /buffer, /buffer/saved, /buffer/a/b/c
//	/*/changed       matches /config/changed, /cursor/changed
//	/**              matches everything, including the empty channel
//
// Only patterns with a single "*" are ever matched. Wildcard characters in a
// published channel are literal text.
//
// # Resolution Order
//
// For a channel with segments s[0..n-1], the matching keys are visited in a
// fixed order:
//
//  1. "/**", then "/s0/**", "/s0/s1/**" ... up to all n segments
//  2. the channel with segment i replaced by "*", for i = 0..n-1
//  3. the channel string exactly as published
//
// Every key that is present matches; nothing short-circuits. Candidates
// returns this list as strings. Index answers the same question against a
// pre-parsed trie without building the candidate strings.
package topic
