// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation holds the chat transcript and the controller that
// drives completions for it.
//
// # Key Types
//
//   - Conversation: ordered messages plus the system prompt
//   - Message: one turn, streamed into place while a reply is in flight
//   - Controller: owns one Conversation, allows a single request in flight,
//     and forwards client callbacks to a Sink from the dispatch queue
//
// # Threading
//
// Every Controller method except NewController must run on the dispatch
// queue. Client callbacks arrive on a worker goroutine and are re-posted.
package conversation
