// Moderation engine for posts and threaded comments.
//
// The engine ties together rule-based text analysis (package analyzer), per-author behavioural checks (package behavior), the reputation ledger and the comment tree. Submissions are analyzed and persisted with a decision; penalties, statistics and notifications follow as side effects. Moderation outcomes (REJECTED, FLAGGED) are values, not errors.
//
// Auxiliary state lives in pluggable stores: calendar counters (countstore), content and account flags (flagstore), cached reputation scores (cachestore) and phrase lists (setstore). Each has an in-memory implementation for tests and a Redis implementation for deployments with more than one process.
package moderation
