// Package driving defines the use-case interfaces exposed to callers
// (primary/inbound ports): ingestion, retrieval and conversational
// question answering.
package driving
