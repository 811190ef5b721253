package knowledge

import "time"

// Document represents one ingested source: a crawled page or an uploaded
// file. The content hash is the dedup fingerprint; a source whose hash is
// unchanged is not re-chunked or re-embedded.
type Document struct {
	Origin      string    // URL or filename
	ContentHash string    // sha256 hex of the extracted text
	FileType    string    // extension-like type tag (".txt", ".html", ...)
	ProcessedAt time.Time // last successful ingestion
}

// Chunk is one embedded slice of a document's text.
type Chunk struct {
	Origin    string            // owning document's origin
	Seq       int               // position within the document
	Content   string            // chunk text
	Embedding []float32         // vector produced by the embedding client
	Metadata  map[string]string // origin, file type, processed-at
}

// Result is a single similarity search hit.
type Result struct {
	Content    string
	Origin     string
	Metadata   map[string]string
	Similarity float32 // cosine similarity, higher is closer
}
