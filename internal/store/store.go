// Package store persists articles, keyword sets, queries, their expansions,
// ground-truth labels and validation scores in PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/eventdetection/event-detection/internal/article"
	"github.com/eventdetection/event-detection/internal/evaluation"
	"github.com/eventdetection/event-detection/internal/keywords"
	"github.com/eventdetection/event-detection/internal/query"
	apperrors "github.com/eventdetection/event-detection/pkg/errors"
	"github.com/eventdetection/event-detection/pkg/postgres"
	"github.com/lib/pq"
)

// Schema creates the tables the Store reads and writes.
const Schema = `
CREATE TABLE IF NOT EXISTS articles (
    id           TEXT PRIMARY KEY,
    title        TEXT NOT NULL,
    title_tagged TEXT NOT NULL DEFAULT '',
    body_tagged  TEXT NOT NULL DEFAULT '',
    filename     TEXT NOT NULL DEFAULT '',
    url          TEXT NOT NULL DEFAULT '',
    source       TEXT NOT NULL DEFAULT '',
    keywords     JSONB
);
CREATE TABLE IF NOT EXISTS queries (
    id           TEXT PRIMARY KEY,
    subject      TEXT NOT NULL DEFAULT '',
    verb         TEXT NOT NULL DEFAULT '',
    direct_obj   TEXT NOT NULL DEFAULT '',
    indirect_obj TEXT NOT NULL DEFAULT '',
    loc          TEXT NOT NULL DEFAULT '',
    processed    BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE TABLE IF NOT EXISTS query_words (
    query    TEXT NOT NULL REFERENCES queries(id) ON DELETE CASCADE,
    word     TEXT NOT NULL,
    pos      TEXT NOT NULL,
    synonyms TEXT[] NOT NULL DEFAULT '{}',
    PRIMARY KEY (query, word, pos)
);
CREATE TABLE IF NOT EXISTS query_articles (
    query     TEXT NOT NULL REFERENCES queries(id) ON DELETE CASCADE,
    article   TEXT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
    validates BOOLEAN,
    processed BOOLEAN NOT NULL DEFAULT FALSE,
    accuracy  DOUBLE PRECISION,
    PRIMARY KEY (query, article)
);
CREATE TABLE IF NOT EXISTS validation_algorithms (
    id        SERIAL PRIMARY KEY,
    algorithm TEXT NOT NULL UNIQUE,
    enabled   BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE TABLE IF NOT EXISTS validation_results (
    query     TEXT NOT NULL,
    article   TEXT NOT NULL,
    algorithm INTEGER NOT NULL REFERENCES validation_algorithms(id),
    validates DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (query, article, algorithm),
    FOREIGN KEY (query, article) REFERENCES query_articles(query, article) ON DELETE CASCADE
);
`

// Store is the PostgreSQL repository. The tables are described by Schema.
type Store struct {
	db     *postgres.Client
	psql   sq.StatementBuilderType
	logger *slog.Logger
}

// New returns a Store over db.
func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		psql:   postgres.Builder(),
		logger: slog.Default().With("component", "store"),
	}
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func execStmt(ctx context.Context, q queryer, b sq.Sqlizer) (sql.Result, error) {
	stmt, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building statement: %w", err)
	}
	return q.ExecContext(ctx, stmt, args...)
}

func selectRows(ctx context.Context, q queryer, b sq.Sqlizer) (*sql.Rows, error) {
	stmt, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	return q.QueryContext(ctx, stmt, args...)
}

func selectOne(ctx context.Context, q queryer, b sq.Sqlizer) (*sql.Row, error) {
	stmt, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	return q.QueryRowContext(ctx, stmt, args...), nil
}

// SaveArticle inserts or replaces an article's metadata. Replacing an
// article clears its keyword set.
func (s *Store) SaveArticle(ctx context.Context, a article.Article) error {
	if err := a.Validate(); err != nil {
		return err
	}
	_, err := execStmt(ctx, s.db.DB, s.psql.Insert("articles").
		Columns("id", "title", "title_tagged", "body_tagged", "filename", "url", "source").
		Values(a.ID, a.Title, a.TitleTagged, a.BodyTagged, a.Filename, a.URL, a.SourceID).
		Suffix(`ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, title_tagged = EXCLUDED.title_tagged,
			body_tagged = EXCLUDED.body_tagged, filename = EXCLUDED.filename, url = EXCLUDED.url,
			source = EXCLUDED.source, keywords = NULL`))
	if err != nil {
		return fmt.Errorf("saving article %s: %w", a.ID, err)
	}
	return nil
}

var articleColumns = []string{"id", "title", "title_tagged", "body_tagged", "filename", "url", "source"}

func scanArticle(row interface{ Scan(...any) error }) (article.Article, error) {
	var a article.Article
	err := row.Scan(&a.ID, &a.Title, &a.TitleTagged, &a.BodyTagged, &a.Filename, &a.URL, &a.SourceID)
	return a, err
}

// GetArticle loads an article's metadata. The body is read separately from
// the body store.
func (s *Store) GetArticle(ctx context.Context, id string) (*article.Article, error) {
	row, err := selectOne(ctx, s.db.DB, s.psql.Select(articleColumns...).From("articles").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.ErrArticleNotFound, 0, "article %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading article %s: %w", id, err)
	}
	return &a, nil
}

// UnprocessedArticles returns up to limit articles without a keyword set.
func (s *Store) UnprocessedArticles(ctx context.Context, limit int) ([]article.Article, error) {
	b := s.psql.Select(articleColumns...).From("articles").Where(sq.Eq{"keywords": nil}).OrderBy("id")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	rows, err := selectRows(ctx, s.db.DB, b)
	if err != nil {
		return nil, fmt.Errorf("listing unprocessed articles: %w", err)
	}
	defer rows.Close()
	var out []article.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning article: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ArticleIDs returns every article id.
func (s *Store) ArticleIDs(ctx context.Context) ([]string, error) {
	rows, err := selectRows(ctx, s.db.DB, s.psql.Select("id").From("articles").OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("listing articles: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning article id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveKeywords stores an article's keyword set.
func (s *Store) SaveKeywords(ctx context.Context, id string, kw keywords.KeywordSet) error {
	data, err := json.Marshal(kw)
	if err != nil {
		return fmt.Errorf("encoding keywords for article %s: %w", id, err)
	}
	res, err := execStmt(ctx, s.db.DB, s.psql.Update("articles").Set("keywords", string(data)).Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("saving keywords for article %s: %w", id, err)
	}
	return expectRow(res, apperrors.ErrArticleNotFound, id)
}

// ArticleKeywords loads an article's keyword set. A nil set with a nil
// error means the keywords have not been computed.
func (s *Store) ArticleKeywords(ctx context.Context, id string) (keywords.KeywordSet, error) {
	row, err := selectOne(ctx, s.db.DB, s.psql.Select("keywords").From("articles").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.ErrArticleNotFound, 0, "article %s", id)
		}
		return nil, fmt.Errorf("loading keywords for article %s: %w", id, err)
	}
	if data == nil {
		return nil, nil
	}
	var kw keywords.KeywordSet
	if err := json.Unmarshal(data, &kw); err != nil {
		return nil, fmt.Errorf("decoding keywords for article %s: %w", id, err)
	}
	return kw, nil
}

// Keywords is ArticleKeywords for readers that need an extracted set.
func (s *Store) Keywords(ctx context.Context, id string) (keywords.KeywordSet, error) {
	kw, err := s.ArticleKeywords(ctx, id)
	if err != nil {
		return nil, err
	}
	if kw == nil {
		return nil, apperrors.Newf(apperrors.ErrArticleNotFound, 0, "keywords for article %s not extracted", id)
	}
	return kw, nil
}

// ClearKeywords resets the keyword set of the given articles, or of every
// article when no id is given, so they are extracted again.
func (s *Store) ClearKeywords(ctx context.Context, ids ...string) (int64, error) {
	b := s.psql.Update("articles").Set("keywords", nil)
	if len(ids) > 0 {
		b = b.Where(sq.Eq{"id": ids})
	}
	res, err := execStmt(ctx, s.db.DB, b)
	if err != nil {
		return 0, fmt.Errorf("clearing keywords: %w", err)
	}
	return res.RowsAffected()
}

func expectRow(res sql.Result, sentinel error, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return apperrors.Newf(sentinel, 0, "%s", id)
	}
	return nil
}

// SaveQuery inserts or replaces a query. Replacing a query drops its
// expansion.
func (s *Store) SaveQuery(ctx context.Context, q *query.Query) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := execStmt(ctx, tx, s.psql.Insert("queries").
			Columns("id", "subject", "verb", "direct_obj", "indirect_obj", "loc", "processed").
			Values(q.ID, q.Parts.Subject, q.Parts.Verb, q.Parts.DirectObject, q.Parts.IndirectObject, q.Parts.Location, false).
			Suffix(`ON CONFLICT (id) DO UPDATE SET subject = EXCLUDED.subject, verb = EXCLUDED.verb,
				direct_obj = EXCLUDED.direct_obj, indirect_obj = EXCLUDED.indirect_obj, loc = EXCLUDED.loc,
				processed = FALSE`))
		if err != nil {
			return fmt.Errorf("saving query %s: %w", q.ID, err)
		}
		if _, err := execStmt(ctx, tx, s.psql.Delete("query_words").Where(sq.Eq{"query": q.ID})); err != nil {
			return fmt.Errorf("clearing words of query %s: %w", q.ID, err)
		}
		return nil
	})
}

var queryColumns = []string{"id", "subject", "verb", "direct_obj", "indirect_obj", "loc", "processed"}

func scanQuery(row interface{ Scan(...any) error }) (*query.Query, bool, error) {
	var (
		q         query.Query
		processed bool
	)
	err := row.Scan(&q.ID, &q.Parts.Subject, &q.Parts.Verb, &q.Parts.DirectObject, &q.Parts.IndirectObject, &q.Parts.Location, &processed)
	return &q, processed, err
}

// GetQuery loads a query and, once processed, its expansion.
func (s *Store) GetQuery(ctx context.Context, id string) (*query.Query, error) {
	row, err := selectOne(ctx, s.db.DB, s.psql.Select(queryColumns...).From("queries").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	q, processed, err := scanQuery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.ErrQueryNotFound, 0, "query %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading query %s: %w", id, err)
	}
	if processed {
		if q.Expansion, err = s.QueryExpansion(ctx, id); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// UnprocessedQueries returns queries that have not been expanded.
func (s *Store) UnprocessedQueries(ctx context.Context) ([]*query.Query, error) {
	rows, err := selectRows(ctx, s.db.DB, s.psql.Select(queryColumns...).From("queries").Where(sq.Eq{"processed": false}).OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("listing unprocessed queries: %w", err)
	}
	defer rows.Close()
	var out []*query.Query
	for rows.Next() {
		q, _, err := scanQuery(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning query: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// QueryExpansion loads a query's stored words and expansions.
func (s *Store) QueryExpansion(ctx context.Context, id string) (query.Expansion, error) {
	rows, err := selectRows(ctx, s.db.DB, s.psql.Select("word", "pos", "synonyms").From("query_words").Where(sq.Eq{"query": id}))
	if err != nil {
		return nil, fmt.Errorf("loading words of query %s: %w", id, err)
	}
	defer rows.Close()
	exp := make(query.Expansion)
	for rows.Next() {
		var (
			word, pos string
			synonyms  pq.StringArray
		)
		if err := rows.Scan(&word, &pos, &synonyms); err != nil {
			return nil, fmt.Errorf("scanning query word: %w", err)
		}
		exp.Add(pos, word, []string(synonyms))
	}
	return exp, rows.Err()
}

// SaveExpansion stores a query's expansion, marks it processed and creates
// an unlabelled pair with every article.
func (s *Store) SaveExpansion(ctx context.Context, q *query.Query) error {
	if !q.Expanded() {
		return apperrors.Newf(apperrors.ErrInvalidInput, 0, "query %s has not been expanded", q.ID)
	}
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := execStmt(ctx, tx, s.psql.Delete("query_words").Where(sq.Eq{"query": q.ID})); err != nil {
			return fmt.Errorf("clearing words of query %s: %w", q.ID, err)
		}
		if q.Expansion.Terms() > 0 {
			ins := s.psql.Insert("query_words").Columns("query", "word", "pos", "synonyms")
			for pos, terms := range q.Expansion {
				for word, synonyms := range terms {
					ins = ins.Values(q.ID, word, pos, pq.StringArray(synonyms))
				}
			}
			if _, err := execStmt(ctx, tx, ins); err != nil {
				return fmt.Errorf("saving words of query %s: %w", q.ID, err)
			}
		}
		res, err := execStmt(ctx, tx, s.psql.Update("queries").Set("processed", true).Where(sq.Eq{"id": q.ID}))
		if err != nil {
			return fmt.Errorf("marking query %s processed: %w", q.ID, err)
		}
		if err := expectRow(res, apperrors.ErrQueryNotFound, q.ID); err != nil {
			return err
		}
		pairs := s.psql.Insert("query_articles").Columns("query", "article").
			Select(sq.Select().Column(sq.Expr("?", q.ID)).Column("id").From("articles")).
			Suffix("ON CONFLICT (query, article) DO NOTHING")
		if _, err := execStmt(ctx, tx, pairs); err != nil {
			return fmt.Errorf("creating pairs for query %s: %w", q.ID, err)
		}
		return nil
	})
}

// SetLabel records whether an article satisfies a query.
func (s *Store) SetLabel(ctx context.Context, p evaluation.Pair, validates bool) error {
	_, err := execStmt(ctx, s.db.DB, s.psql.Insert("query_articles").
		Columns("query", "article", "validates").
		Values(p.QueryID, p.ArticleID, validates).
		Suffix("ON CONFLICT (query, article) DO UPDATE SET validates = EXCLUDED.validates"))
	if err != nil {
		return fmt.Errorf("labelling %s/%s: %w", p.QueryID, p.ArticleID, err)
	}
	return nil
}

// UnprocessedPairs returns up to limit pairs the validator has not scored.
func (s *Store) UnprocessedPairs(ctx context.Context, limit int) ([]evaluation.Pair, error) {
	b := s.psql.Select("query", "article").From("query_articles").Where(sq.Eq{"processed": false}).OrderBy("query", "article")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	rows, err := selectRows(ctx, s.db.DB, b)
	if err != nil {
		return nil, fmt.Errorf("listing unprocessed pairs: %w", err)
	}
	defer rows.Close()
	var out []evaluation.Pair
	for rows.Next() {
		var p evaluation.Pair
		if err := rows.Scan(&p.QueryID, &p.ArticleID); err != nil {
			return nil, fmt.Errorf("scanning pair: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// EnsureAlgorithm registers an algorithm name if it is missing.
func (s *Store) EnsureAlgorithm(ctx context.Context, name string) error {
	_, err := execStmt(ctx, s.db.DB, s.psql.Insert("validation_algorithms").Columns("algorithm").Values(name).
		Suffix("ON CONFLICT (algorithm) DO NOTHING"))
	if err != nil {
		return fmt.Errorf("registering algorithm %s: %w", name, err)
	}
	return nil
}

// Algorithms returns the enabled algorithm names.
func (s *Store) Algorithms(ctx context.Context) ([]string, error) {
	rows, err := selectRows(ctx, s.db.DB, s.psql.Select("algorithm").From("validation_algorithms").Where(sq.Eq{"enabled": true}).OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("listing algorithms: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning algorithm: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// SaveValidationResult stores a pair's score under algorithm and marks the
// pair processed with that score as its accuracy.
func (s *Store) SaveValidationResult(ctx context.Context, p evaluation.Pair, algorithm string, score float64) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		ins := s.psql.Insert("validation_results").Columns("query", "article", "algorithm", "validates").
			Select(sq.Select().
				Column(sq.Expr("?", p.QueryID)).
				Column(sq.Expr("?", p.ArticleID)).
				Column("id").
				Column(sq.Expr("?::double precision", score)).
				From("validation_algorithms").
				Where(sq.Eq{"algorithm": algorithm})).
			Suffix("ON CONFLICT (query, article, algorithm) DO UPDATE SET validates = EXCLUDED.validates")
		res, err := execStmt(ctx, tx, ins)
		if err != nil {
			return fmt.Errorf("saving %s result for %s/%s: %w", algorithm, p.QueryID, p.ArticleID, err)
		}
		if err := expectRow(res, apperrors.ErrConfiguration, "unknown algorithm "+algorithm); err != nil {
			return err
		}
		res, err = execStmt(ctx, tx, s.psql.Update("query_articles").
			Set("processed", true).
			Set("accuracy", score).
			Where(sq.Eq{"query": p.QueryID, "article": p.ArticleID}))
		if err != nil {
			return fmt.Errorf("marking %s/%s processed: %w", p.QueryID, p.ArticleID, err)
		}
		return expectRow(res, apperrors.ErrQueryNotFound, p.QueryID+"/"+p.ArticleID)
	})
}

// LoadDataset returns every labelled pair scored by algorithm.
func (s *Store) LoadDataset(ctx context.Context, algorithm string) (*evaluation.Dataset, error) {
	rows, err := selectRows(ctx, s.db.DB, s.psql.
		Select("vr.query", "vr.article", "vr.validates", "qa.validates").
		From("validation_results vr").
		Join("validation_algorithms va ON va.id = vr.algorithm").
		Join("query_articles qa ON qa.query = vr.query AND qa.article = vr.article").
		Where(sq.Eq{"va.algorithm": algorithm}).
		Where(sq.NotEq{"qa.validates": nil}).
		OrderBy("vr.query", "vr.article"))
	if err != nil {
		return nil, fmt.Errorf("loading dataset for %s: %w", algorithm, err)
	}
	defer rows.Close()
	var samples []evaluation.Sample
	for rows.Next() {
		var smp evaluation.Sample
		if err := rows.Scan(&smp.QueryID, &smp.ArticleID, &smp.Score, &smp.Label); err != nil {
			return nil, fmt.Errorf("scanning sample: %w", err)
		}
		samples = append(samples, smp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	s.logger.Debug("dataset loaded", "algorithm", algorithm, "pairs", len(samples))
	return evaluation.NewDataset(algorithm, samples)
}
