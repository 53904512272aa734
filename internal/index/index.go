package index

// #region imports
import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/helpdesk-labs/policy-engine/internal/access"
	"github.com/helpdesk-labs/policy-engine/internal/chunker"
	"github.com/helpdesk-labs/policy-engine/internal/model"
)

// #endregion

// #region errors

// ErrInvalidDocument is returned when an ingest request is malformed
// or segments to zero chunks.
var ErrInvalidDocument = errors.New("invalid document")

// #endregion errors

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id             TEXT PRIMARY KEY,
	title          TEXT NOT NULL,
	policy_key     TEXT NOT NULL,
	effective_date TEXT NOT NULL,
	access         TEXT NOT NULL,
	tags_json      TEXT NOT NULL,
	created_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_policy_key ON documents(policy_key);

CREATE TABLE IF NOT EXISTS chunks (
	id             TEXT PRIMARY KEY,
	doc_id         TEXT NOT NULL,
	chunk_index    INTEGER NOT NULL,
	type           TEXT NOT NULL,
	page_start     INTEGER NOT NULL,
	page_end       INTEGER NOT NULL,
	section_title  TEXT,
	content        TEXT NOT NULL,
	access         TEXT NOT NULL,
	effective_date TEXT NOT NULL,
	embedding      BLOB NOT NULL,
	FOREIGN KEY (doc_id) REFERENCES documents(id)
);

CREATE INDEX IF NOT EXISTS idx_chunks_doc_id ON chunks(doc_id);
`

// #endregion schema

// #region index-struct

// embedWorkers bounds parallel embedding calls during ingest.
const embedWorkers = 4

// Index owns doc and chunk lifecycles: it chunks, embeds, and stores
// documents, and answers access-filtered version-aware nearest-neighbor
// queries.
type Index struct {
	db       *sql.DB
	embedder model.Client
	validate *validator.Validate
}

// #endregion index-struct

// #region constructor

// NewIndex opens the SQLite database at dbPath and runs migrations.
// busy_timeout and foreign_keys ride on the DSN so every pooled
// connection gets them, not just the first.
func NewIndex(dbPath string, embedder model.Client) (*Index, error) {
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Index{
		db:       db,
		embedder: embedder,
		validate: validator.New(),
	}, nil
}

// Close closes the underlying database connection.
func (x *Index) Close() error {
	return x.db.Close()
}

// DB returns the underlying *sql.DB so sibling packages (review,
// schedule, audit) can attach their tables to the same file.
func (x *Index) DB() *sql.DB {
	return x.db
}

// #endregion constructor

// #region ingest

// Ingest validates, chunks, embeds, and stores a document. The doc and
// all of its chunks commit in one transaction, so a concurrent query
// never observes a partially ingested doc. PolicyKey collisions are
// versioning, not errors.
func (x *Index) Ingest(ctx context.Context, req IngestRequest) (Doc, error) {
	if err := x.validate.Struct(req); err != nil {
		return Doc{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	drafts := chunker.Split(req.Content)
	if len(drafts) == 0 {
		return Doc{}, fmt.Errorf("%w: content yields no chunks", ErrInvalidDocument)
	}

	doc := Doc{
		ID:            uuid.New().String(),
		Title:         req.Title,
		PolicyKey:     req.PolicyKey,
		EffectiveDate: req.EffectiveDate,
		Access:        req.Access,
		Tags:          req.Tags,
		CreatedAt:     time.Now().UTC(),
	}

	embeddings := make([][]float32, len(drafts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedWorkers)
	for i, d := range drafts {
		i, d := i, d
		g.Go(func() error {
			vec, err := x.embedder.Embed(gctx, d.Content)
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", i, err)
			}
			embeddings[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Doc{}, err
	}

	for i, d := range drafts {
		doc.Chunks = append(doc.Chunks, Chunk{
			ID:            uuid.New().String(),
			DocID:         doc.ID,
			ChunkIndex:    i,
			Type:          d.Type,
			PageStart:     d.PageStart,
			PageEnd:       d.PageEnd,
			SectionTitle:  d.SectionTitle,
			Content:       d.Content,
			Access:        doc.Access,
			EffectiveDate: doc.EffectiveDate,
		})
	}

	tagsJSON, err := json.Marshal(doc.Tags)
	if err != nil {
		return Doc{}, fmt.Errorf("marshal tags: %w", err)
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return Doc{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO documents (id, title, policy_key, effective_date, access, tags_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Title, doc.PolicyKey, doc.EffectiveDate, string(doc.Access),
		string(tagsJSON), doc.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Doc{}, fmt.Errorf("insert document: %w", err)
	}

	for i, c := range doc.Chunks {
		_, err = tx.Exec(
			`INSERT INTO chunks (id, doc_id, chunk_index, type, page_start, page_end, section_title, content, access, effective_date, embedding)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.DocID, c.ChunkIndex, string(c.Type), c.PageStart, c.PageEnd,
			nullIfEmpty(c.SectionTitle), c.Content, string(c.Access), c.EffectiveDate,
			encodeVector(embeddings[i]),
		)
		if err != nil {
			return Doc{}, fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Doc{}, fmt.Errorf("commit: %w", err)
	}
	return doc, nil
}

// #endregion ingest

// #region query

// Query returns up to k chunks ranked ascending by vector distance to
// questionVec, restricted to what asker may see and to the latest doc
// version per policy key. It runs in one read transaction, so version
// preference and visibility are computed against a single snapshot.
// No eligible chunks is an empty result, not an error.
func (x *Index) Query(ctx context.Context, questionVec []float32, asker access.Level, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}

	tx, err := x.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	latest, titles, err := latestDocsPerKey(tx)
	if err != nil {
		return nil, err
	}
	if len(latest) == 0 {
		return nil, nil
	}

	docIDs := make([]string, 0, len(latest))
	keys := make(map[string]string, len(latest)) // docID → policyKey
	for key, d := range latest {
		docIDs = append(docIDs, d.id)
		keys[d.id] = key
	}

	visible := access.VisibleTo(asker)
	args := make([]interface{}, 0, len(docIDs)+len(visible))
	for _, id := range docIDs {
		args = append(args, id)
	}
	for _, lvl := range visible {
		args = append(args, string(lvl))
	}

	query := fmt.Sprintf(
		`SELECT id, doc_id, chunk_index, type, page_start, page_end, section_title, content, access, effective_date, embedding
		 FROM chunks
		 WHERE doc_id IN (%s) AND access IN (%s)`,
		placeholders(len(docIDs)), placeholders(len(visible)),
	)
	rows, err := tx.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var c Chunk
		var section sql.NullString
		var typ, acc string
		var blob []byte
		if err := rows.Scan(&c.ID, &c.DocID, &c.ChunkIndex, &typ, &c.PageStart, &c.PageEnd,
			&section, &c.Content, &acc, &c.EffectiveDate, &blob); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Type = chunker.ChunkType(typ)
		c.Access = access.Level(acc)
		if section.Valid {
			c.SectionTitle = section.String
		}

		matches = append(matches, Match{
			Chunk:     c,
			DocTitle:  titles[c.DocID],
			PolicyKey: keys[c.DocID],
			Distance:  cosineDistance(questionVec, decodeVector(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		if matches[i].Chunk.DocID != matches[j].Chunk.DocID {
			return matches[i].Chunk.DocID < matches[j].Chunk.DocID
		}
		return matches[i].Chunk.ChunkIndex < matches[j].Chunk.ChunkIndex
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// #endregion query

// #region list-docs

// ListDocs returns all docs with their chunks, newest first.
func (x *Index) ListDocs(ctx context.Context) ([]Doc, error) {
	rows, err := x.db.QueryContext(ctx,
		`SELECT id, title, policy_key, effective_date, access, tags_json, created_at
		 FROM documents ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Doc
	for rows.Next() {
		var d Doc
		var acc, tagsJSON, createdStr string
		if err := rows.Scan(&d.ID, &d.Title, &d.PolicyKey, &d.EffectiveDate, &acc, &tagsJSON, &createdStr); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.Access = access.Level(acc)
		if err := json.Unmarshal([]byte(tagsJSON), &d.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
		d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range docs {
		chunks, err := x.docChunks(ctx, docs[i].ID)
		if err != nil {
			return nil, err
		}
		docs[i].Chunks = chunks
	}
	return docs, nil
}

func (x *Index) docChunks(ctx context.Context, docID string) ([]Chunk, error) {
	rows, err := x.db.QueryContext(ctx,
		`SELECT id, doc_id, chunk_index, type, page_start, page_end, section_title, content, access, effective_date
		 FROM chunks WHERE doc_id = ? ORDER BY chunk_index ASC`, docID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var section sql.NullString
		var typ, acc string
		if err := rows.Scan(&c.ID, &c.DocID, &c.ChunkIndex, &typ, &c.PageStart, &c.PageEnd,
			&section, &c.Content, &acc, &c.EffectiveDate); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Type = chunker.ChunkType(typ)
		c.Access = access.Level(acc)
		if section.Valid {
			c.SectionTitle = section.String
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// #endregion list-docs

// #region version-preference

type latestDoc struct {
	id            string
	effectiveDate string
	createdAt     string
}

// latestDocsPerKey picks, for each policy key, the doc with the newest
// effective date, breaking ties by created-at. Older versions are
// excluded from ranking entirely.
func latestDocsPerKey(tx *sql.Tx) (map[string]latestDoc, map[string]string, error) {
	rows, err := tx.Query(`SELECT id, policy_key, effective_date, created_at, title FROM documents`)
	if err != nil {
		return nil, nil, fmt.Errorf("scan documents: %w", err)
	}
	defer rows.Close()

	latest := make(map[string]latestDoc)
	titles := make(map[string]string)
	for rows.Next() {
		var id, key, eff, created, title string
		if err := rows.Scan(&id, &key, &eff, &created, &title); err != nil {
			return nil, nil, fmt.Errorf("scan document row: %w", err)
		}
		titles[id] = title

		cur, ok := latest[key]
		// ISO dates and RFC3339 timestamps compare correctly as strings.
		if !ok || eff > cur.effectiveDate || (eff == cur.effectiveDate && created > cur.createdAt) {
			latest[key] = latestDoc{id: id, effectiveDate: eff, createdAt: created}
		}
	}
	return latest, titles, rows.Err()
}

// #endregion version-preference

// #region helpers

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// cosineDistance computes 1 - cosine similarity. Embeddings are
// normalized at the model boundary, but the norms are recomputed here
// so stored vectors from any provider rank correctly.
func cosineDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1.0
	}
	d := 1.0 - dot/(math.Sqrt(na)*math.Sqrt(nb))
	if d < 0 {
		return 0
	}
	return d
}

// #endregion helpers

// #region vector-encoding

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// #endregion vector-encoding
