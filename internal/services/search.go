package services

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"log"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/smixab/ihub-bot/internal/models"
)

// DefaultSearchLimit caps result lists when the caller does not pass a limit.
const DefaultSearchLimit = 5

// Lexical weights: name matches count most, then category/keywords, then
// description. A whole-query substring hit on name or category gets a bonus.
const (
	weightName     = 3.0
	weightCategory = 2.0
	weightKeywords = 2.0
	weightDesc     = 1.0
	bonusNameSub   = 5.0
	bonusCatSub    = 3.0
)

// Blend factors when an embedder is available. Lexical is squashed into
// [0,1) before blending so one long query cannot drown the semantic signal.
const (
	blendLexical   = 0.5
	blendSemantic  = 0.5
	lexicalSquash  = 4.0
	minSemanticHit = 0.3 // cosine needed for a record with no lexical overlap
)

// Ranker scores knowledge records against a query. Embeddings are optional;
// without an embedder (or on embedding failure) scoring is lexical only.
type Ranker struct {
	store    *KnowledgeStore
	embedder Embedder
	db       *sql.DB // embedding cache; may be nil
}

func NewRanker(store *KnowledgeStore, embedder Embedder, db *sql.DB) *Ranker {
	return &Ranker{store: store, embedder: embedder, db: db}
}

// Search returns up to limit records ranked by descending relevance.
// Zero-relevance records are excluded; ties keep insertion order.
func (r *Ranker) Search(ctx context.Context, query string, limit int) ([]models.ScoredTool, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	q := strings.ToLower(strings.TrimSpace(query))
	tokens := tokenize(q)
	tools := r.store.List()

	var queryVec []float32
	if r.embedder != nil {
		vec, err := r.embedder.Embed(ctx, query)
		if err != nil {
			log.Printf("embedding unavailable, falling back to lexical search: %v", err)
		} else {
			queryVec = vec
		}
	}

	var results []models.ScoredTool
	for i := range tools {
		t := tools[i]
		lex := lexicalScore(tokens, q, &t)

		score := lex
		if queryVec != nil {
			cos := r.semanticScore(ctx, &t, queryVec)
			score = blendLexical*(lex/(lex+lexicalSquash)) + blendSemantic*cos
			if lex == 0 && cos < minSemanticHit {
				score = 0
			}
		}
		if score <= 0 {
			continue
		}
		results = append(results, models.ScoredTool{ToolRecord: t, RelevanceScore: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func lexicalScore(tokens []string, query string, t *models.ToolRecord) float64 {
	name := strings.ToLower(t.Name)
	category := strings.ToLower(t.Category)
	desc := strings.ToLower(t.Description)
	keywords := strings.ToLower(strings.Join(t.Keywords, " "))

	var score float64
	for _, tok := range tokens {
		if strings.Contains(name, tok) {
			score += weightName
		}
		if strings.Contains(category, tok) {
			score += weightCategory
		}
		if strings.Contains(keywords, tok) {
			score += weightKeywords
		}
		if strings.Contains(desc, tok) {
			score += weightDesc
		}
	}
	if query != "" {
		switch {
		case strings.Contains(name, query):
			score += bonusNameSub
		case strings.Contains(category, query):
			score += bonusCatSub
		}
	}
	return score
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var out []string
	for _, f := range fields {
		if len(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

// semanticScore returns the cosine similarity between the query vector and
// the record's embedding, or 0 when no embedding can be obtained.
func (r *Ranker) semanticScore(ctx context.Context, t *models.ToolRecord, queryVec []float32) float64 {
	vec, err := r.toolEmbedding(ctx, t)
	if err != nil || vec == nil {
		return 0
	}
	return cosine(queryVec, vec)
}

// toolEmbedding returns the record's embedding, served from the SQLite cache
// when the searchable text has not changed since it was computed.
func (r *Ranker) toolEmbedding(ctx context.Context, t *models.ToolRecord) ([]float32, error) {
	text := t.SearchText()
	sum := sha256.Sum256([]byte(text))
	hash := hex.EncodeToString(sum[:])

	if r.db != nil {
		var storedHash, vectorJSON string
		err := r.db.QueryRowContext(ctx,
			`SELECT text_hash, vector FROM tool_embeddings WHERE tool_id = ?`, t.ID,
		).Scan(&storedHash, &vectorJSON)
		if err == nil && storedHash == hash {
			var vec []float32
			if err := json.Unmarshal([]byte(vectorJSON), &vec); err == nil {
				return vec, nil
			}
		}
	}

	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if r.db != nil {
		if data, err := json.Marshal(vec); err == nil {
			_, err = r.db.ExecContext(ctx,
				`INSERT INTO tool_embeddings (tool_id, text_hash, vector, updated_at)
				 VALUES (?, ?, ?, ?)
				 ON CONFLICT(tool_id) DO UPDATE SET
				   text_hash = excluded.text_hash,
				   vector = excluded.vector,
				   updated_at = excluded.updated_at`,
				t.ID, hash, string(data), time.Now().UTC().Format(time.RFC3339Nano))
			if err != nil {
				log.Printf("failed to cache embedding for tool %d: %v", t.ID, err)
			}
		}
	}
	return vec, nil
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
