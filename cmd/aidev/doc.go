// Aidev is a local-first CLI for AI-assisted development against Ollama
// compatible model servers.
//
// Responses are cached on disk keyed by (model, prompt), so repeated
// questions answer instantly and without network traffic. Conversation
// history persists across sessions in a local SQLite database.
//
// Usage:
//
//	aidev ask "how do I read a file in Go?"   # one-shot question
//	aidev ask --stream --context main.go "explain this file"
//	aidev chat                                # interactive session
//	aidev cache stats                         # cache health
//	aidev cache clear --older-than-days 7     # prune old entries
//	aidev history export --out transcript.md  # export conversations
//	aidev models doctor                       # check server connectivity
//
// See https://github.com/aidev-cli/aidev for full documentation.
package main
