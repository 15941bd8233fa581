// Package domain contains the core business entities for the retrieval
// engine: documents and their embedded chunks, conversations and their
// messages, and the evidence type that links the two.
package domain
