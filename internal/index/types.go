package index

// #region imports
import (
	"time"

	"github.com/helpdesk-labs/policy-engine/internal/access"
	"github.com/helpdesk-labs/policy-engine/internal/chunker"
)

// #endregion

// #region doc

// Doc is one ingested policy document version. Docs sharing a
// PolicyKey are versions of the same policy; the latest effective date
// (created-at breaks ties) wins at query time.
type Doc struct {
	ID            string
	Title         string
	PolicyKey     string
	EffectiveDate string // YYYY-MM-DD
	Access        access.Level
	Tags          []string
	CreatedAt     time.Time
	Chunks        []Chunk
}

// #endregion doc

// #region chunk

// Chunk is the minimal retrievable unit of a doc. Access and
// EffectiveDate are copied from the parent at ingest so retrieval
// filtering never joins back to the doc.
type Chunk struct {
	ID            string
	DocID         string
	ChunkIndex    int
	Type          chunker.ChunkType
	PageStart     int
	PageEnd       int
	SectionTitle  string
	Content       string
	Access        access.Level
	EffectiveDate string
}

// #endregion chunk

// #region match

// Match is one ranked query result: a chunk plus its vector distance
// to the question (lower is more similar) and doc metadata needed for
// citations.
type Match struct {
	Chunk     Chunk
	DocTitle  string
	PolicyKey string
	Distance  float64
}

// #endregion match

// #region citation

// Citation is a read-only projection of a chunk produced at answer
// time. It is never persisted on its own, only embedded in answers and
// review drafts.
type Citation struct {
	ChunkID   string  `json:"chunkId"`
	DocID     string  `json:"docId"`
	DocTitle  string  `json:"docTitle"`
	PolicyKey string  `json:"policyKey"`
	PageStart int     `json:"pageStart"`
	PageEnd   int     `json:"pageEnd"`
	Quote     string  `json:"quote"`
	Distance  float64 `json:"distance"`
}

// #endregion citation

// #region ingest-request

// IngestRequest carries a document into the index. The caller supplies
// metadata; IDs and chunking are the index's concern.
type IngestRequest struct {
	Title         string       `validate:"required"`
	PolicyKey     string       `validate:"required"`
	EffectiveDate string       `validate:"required,datetime=2006-01-02"`
	Access        access.Level `validate:"required,oneof=public internal confidential restricted"`
	Tags          []string
	Content       string `validate:"required"`
}

// #endregion ingest-request
