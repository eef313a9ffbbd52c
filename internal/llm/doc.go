// Package llm implements the client for Ollama-compatible model servers.
//
// The client is cache-aware: [Client.Generate] and [Client.Stream] consult
// the response cache before making a request and store live responses back
// afterwards, so repeated identical prompts never hit the network. Rate
// limit and server errors are retried with exponential backoff;
// authentication errors are not.
package llm
