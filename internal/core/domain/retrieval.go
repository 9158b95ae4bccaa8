package domain

import "time"

// Chunk is a bounded-length text segment derived from one source document.
// Immutable once created; destroyed together with its owning collection.
type Chunk struct {
	ID             string `json:"id"`
	Text           string `json:"text"`
	SourceDocument string `json:"source_document"`
}

// Match is one retrieved chunk with its cosine distance to the query
// (lower is closer).
type Match struct {
	ChunkText string  `json:"chunk_text"`
	Distance  float64 `json:"distance"`
}

// RetrievalResult is the transient outcome of one query against the active
// collection. Matches are ordered by ascending distance.
type RetrievalResult struct {
	Context string  `json:"context"`
	Matches []Match `json:"matches"`
}

// IngestStats summarizes one successful document ingestion.
type IngestStats struct {
	DocumentName string `json:"document_name"`
	ChunkCount   int    `json:"chunk_count"`
	TextBytes    int    `json:"text_bytes"`
}

// TurnResult is the outcome of one answered chat turn. RetrievalElapsed is
// how long the retrieval step took, zero for plain turns.
type TurnResult struct {
	Reply            string          `json:"reply"`
	Mode             ChatMode        `json:"mode"`
	Retrieval        RetrievalResult `json:"retrieval"`
	Retrieved        bool            `json:"retrieved"`
	RetrievalElapsed time.Duration   `json:"-"`
}
