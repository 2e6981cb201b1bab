// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama is the streaming completion client for a local
// Ollama-compatible inference server.
//
// # Contract
//
// Client.Stream posts one CompletionRequest and reports back through two
// callbacks: onToken for each text fragment, in arrival order, and onOutcome
// exactly once when the request is over. Failures never escape as returned
// errors. Each becomes an Outcome of kind OutcomeRecoveredError, normally
// preceded by a single explanatory token the UI can show as the reply.
//
// # Failure Classes
//
//   - ErrTypeConnection: refused connection, DNS failure, reset
//   - ErrTypeTimeout: the whole-request budget (default 30s) ran out
//   - ErrTypeStatus: the server answered with a non-2xx status
//   - ErrTypeCancelled: the caller cancelled the context (no explanatory token)
//   - ErrTypeUnexpected: anything else
//
// Malformed NDJSON lines are skipped, and a stream that ends without a
// done record still completes normally.
//
// # Usage
//
//	client := ollama.NewClient(ollama.DefaultConfig())
//	client.Stream(ctx, req,
//	    func(tok string) { fmt.Print(tok) },
//	    func(o ollama.Outcome) { fmt.Println() })
package ollama
