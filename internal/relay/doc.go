// Package relay carries prompts from HTTP handlers to the frame loop and
// replies back. A Hub owns one Mailbox (FIFO of PromptMessage) and one
// ReplyStore (request id -> Reply); both are safe for concurrent use.
//
// Waiting for a reply is notification based: ReplyStore.Wait blocks on a
// per-id channel closed by Put, bounded by the caller's context. Replies that
// nobody collects are evicted after a TTL by the store's sweeper.
package relay
