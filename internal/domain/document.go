package domain

// Document is an index document as seen by the backfill: its key and the text to embed.
// A null source attribute arrives as an empty Text and is embedded as-is.
type Document struct {
	Key  string
	Text string
}

// VectorPatch is the content of a merge update: the key and the one vector field it sets.
type VectorPatch struct {
	Key    string
	Field  string
	Vector []float32
}
