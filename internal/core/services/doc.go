// Package services implements the core use cases behind the driving
// ports: document ingestion, similarity retrieval and session-scoped
// conversational question answering.
package services
