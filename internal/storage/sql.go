package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"

	"github.com/khlemanenka99-ai/news-portal/internal/types"
)

// Dialect selects the SQL flavour of a SQLStore.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

var schemas = map[Dialect][]string{
	DialectPostgres: {
		`CREATE TABLE IF NOT EXISTS categories (
			id   INTEGER PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS external_authors (
			id          BIGSERIAL PRIMARY KEY,
			external_id BIGINT NOT NULL UNIQUE,
			handle      TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS news (
			id                 BIGSERIAL PRIMARY KEY,
			title              TEXT NOT NULL,
			body               TEXT NOT NULL DEFAULT '',
			image_url          TEXT NOT NULL DEFAULT '',
			author             TEXT NOT NULL DEFAULT '',
			category_id        INTEGER NOT NULL DEFAULT 0,
			status             TEXT NOT NULL,
			views              BIGINT NOT NULL DEFAULT 0,
			external_author_id TEXT NOT NULL DEFAULT '',
			created_at         TIMESTAMPTZ NOT NULL,
			updated_at         TIMESTAMPTZ NOT NULL,
			UNIQUE (title, category_id)
		)`,
		`CREATE INDEX IF NOT EXISTS news_status_created_idx ON news (status, created_at DESC)`,
	},
	DialectSQLite: {
		`CREATE TABLE IF NOT EXISTS categories (
			id   INTEGER PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS external_authors (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			external_id INTEGER NOT NULL UNIQUE,
			handle      TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS news (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			title              TEXT NOT NULL,
			body               TEXT NOT NULL DEFAULT '',
			image_url          TEXT NOT NULL DEFAULT '',
			author             TEXT NOT NULL DEFAULT '',
			category_id        INTEGER NOT NULL DEFAULT 0,
			status             TEXT NOT NULL,
			views              INTEGER NOT NULL DEFAULT 0,
			external_author_id TEXT NOT NULL DEFAULT '',
			created_at         DATETIME NOT NULL,
			updated_at         DATETIME NOT NULL,
			UNIQUE (title, category_id)
		)`,
		`CREATE INDEX IF NOT EXISTS news_status_created_idx ON news (status, created_at DESC)`,
	},
}

// SQLite's LOWER folds ASCII only; searches go through a Go-backed
// replacement so Cyrillic titles match case-insensitively.
const sqliteLower = "unicode_lower"

var registerSQLiteFuncs = sync.OnceValue(func() error {
	return sqlite.RegisterDeterministicScalarFunction(sqliteLower, 1,
		func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			switch v := args[0].(type) {
			case string:
				return strings.ToLower(v), nil
			case []byte:
				return strings.ToLower(string(v)), nil
			default:
				return v, nil
			}
		})
})

var newsColumns = []string{
	"id", "title", "body", "image_url", "author", "category_id",
	"status", "views", "external_author_id", "created_at", "updated_at",
}

// SQLStore is a NewsStore over database/sql. Postgres goes through the
// pgx stdlib driver, SQLite through modernc.org/sqlite.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	qb      sq.StatementBuilderType
	now     func() time.Time
	logger  *slog.Logger
}

// NewSQLStore opens the database, verifies it and applies the schema.
func NewSQLStore(ctx context.Context, dialect Dialect, dsn string, logger *slog.Logger) (*SQLStore, error) {
	const op = "storage/sql/New"

	driverName := "pgx"
	var placeholder sq.PlaceholderFormat = sq.Dollar
	if dialect == DialectSQLite {
		if err := registerSQLiteFuncs(); err != nil {
			return nil, fmt.Errorf("%s: register functions: %w", op, err)
		}
		driverName = "sqlite"
		placeholder = sq.Question
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", op, err)
	}
	if dialect == DialectSQLite {
		// one writer; avoids SQLITE_BUSY between pooled connections
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	s := &SQLStore{
		db:      db,
		dialect: dialect,
		qb:      sq.StatementBuilder.PlaceholderFormat(placeholder),
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger.With("component", "sql_store", "dialect", string(dialect)),
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

func (s *SQLStore) Name() string { return string(s.dialect) }

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range schemas[s.dialect] {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) UpsertScraped(ctx context.Context, item *types.NewsItem, refresh bool) (types.UpsertOutcome, string, error) {
	const op = "UpsertScraped"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", "", wrap(s.Name(), op, err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now()
	id, err := s.insertNews(ctx, tx, item, now)
	switch {
	case err == nil:
		if err := tx.Commit(); err != nil {
			return "", "", wrap(s.Name(), op, err)
		}
		return types.OutcomeCreated, id, nil
	case !errors.Is(err, ErrDuplicate):
		return "", "", wrap(s.Name(), op, err)
	}

	var outcome types.UpsertOutcome
	var query string
	var args []any
	if refresh {
		outcome = types.OutcomeUpdated
		query, args, err = s.qb.Update("news").
			Set("body", item.Body).
			Set("image_url", item.ImageURL).
			Set("author", item.Author).
			Set("updated_at", now).
			Where(sq.Eq{"title": item.Title, "category_id": item.CategoryID}).
			Suffix("RETURNING id").
			ToSql()
	} else {
		outcome = types.OutcomeSkipped
		query, args, err = s.qb.Select("id").From("news").
			Where(sq.Eq{"title": item.Title, "category_id": item.CategoryID}).
			ToSql()
	}
	if err != nil {
		return "", "", wrap(s.Name(), op, err)
	}

	var rowID int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&rowID); err != nil {
		return "", "", wrap(s.Name(), op, err)
	}
	if err := tx.Commit(); err != nil {
		return "", "", wrap(s.Name(), op, err)
	}
	return outcome, strconv.FormatInt(rowID, 10), nil
}

func (s *SQLStore) Create(ctx context.Context, item *types.NewsItem) (string, error) {
	id, err := s.insertNews(ctx, s.db, item, s.now())
	return id, wrap(s.Name(), "Create", err)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// insertNews inserts item unless its key exists, in which case it
// returns ErrDuplicate.
func (s *SQLStore) insertNews(ctx context.Context, q queryRower, item *types.NewsItem, now time.Time) (string, error) {
	created := item.CreatedAt
	if created.IsZero() {
		created = now
	}
	query, args, err := s.qb.Insert("news").
		Columns("title", "body", "image_url", "author", "category_id", "status", "views", "external_author_id", "created_at", "updated_at").
		Values(item.Title, item.Body, item.ImageURL, item.Author, item.CategoryID, string(item.Status), 0, item.ExternalAuthorID, created.UTC(), now).
		Suffix("ON CONFLICT (title, category_id) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return "", err
	}

	var id int64
	err = q.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrDuplicate
	}
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*types.NewsItem, error) {
	rowID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, ErrNotFound
	}
	query, args, err := s.qb.Select(newsColumns...).From("news").Where(sq.Eq{"id": rowID}).ToSql()
	if err != nil {
		return nil, wrap(s.Name(), "Get", err)
	}

	item, err := scanNews(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return item, wrap(s.Name(), "Get", err)
}

func (s *SQLStore) List(ctx context.Context, f Filter) (*Page, error) {
	const op = "List"

	where := sq.And{}
	if f.Status != "" {
		where = append(where, sq.Eq{"status": string(f.Status)})
	}
	if f.CategoryID != 0 {
		where = append(where, sq.Eq{"category_id": f.CategoryID})
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		lower := "LOWER"
		if s.dialect == DialectSQLite {
			lower = sqliteLower
		}
		where = append(where, sq.Or{
			sq.Expr(lower+"(title) LIKE ?", pattern),
			sq.Expr(lower+"(body) LIKE ?", pattern),
		})
	}

	countSQL, countArgs, err := s.qb.Select("COUNT(*)").From("news").Where(where).ToSql()
	if err != nil {
		return nil, wrap(s.Name(), op, err)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, wrap(s.Name(), op, err)
	}

	page, pages, perPage, offset := paginate(f, total)
	query, args, err := s.qb.Select(newsColumns...).From("news").
		Where(where).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(perPage)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, wrap(s.Name(), op, err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(s.Name(), op, err)
	}
	defer rows.Close()

	items := []types.NewsItem{}
	for rows.Next() {
		item, err := scanNews(rows)
		if err != nil {
			return nil, wrap(s.Name(), op, err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(s.Name(), op, err)
	}

	return &Page{Items: items, Total: total, Page: page, Pages: pages, PerPage: perPage}, nil
}

func (s *SQLStore) ExistsByKey(ctx context.Context, key types.NewsKey) (bool, error) {
	query, args, err := s.qb.Select("1").From("news").
		Where(sq.Eq{"title": key.Title, "category_id": key.CategoryID}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, wrap(s.Name(), "ExistsByKey", err)
	}
	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, wrap(s.Name(), "ExistsByKey", err)
}

func (s *SQLStore) IncrementViews(ctx context.Context, id string) (int64, error) {
	rowID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, ErrNotFound
	}
	query, args, err := s.qb.Update("news").
		Set("views", sq.Expr("views + 1")).
		Where(sq.Eq{"id": rowID}).
		Suffix("RETURNING views").
		ToSql()
	if err != nil {
		return 0, wrap(s.Name(), "IncrementViews", err)
	}

	var views int64
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&views)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return views, wrap(s.Name(), "IncrementViews", err)
}

func (s *SQLStore) SetStatus(ctx context.Context, id string, status types.ModerationStatus) error {
	rowID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return ErrNotFound
	}
	query, args, err := s.qb.Update("news").
		Set("status", string(status)).
		Set("updated_at", s.now()).
		Where(sq.Eq{"id": rowID}).
		ToSql()
	if err != nil {
		return wrap(s.Name(), "SetStatus", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return wrap(s.Name(), "SetStatus", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap(s.Name(), "SetStatus", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) EnsureCategories(ctx context.Context, cats []types.Category) error {
	for _, c := range cats {
		query, args, err := s.qb.Insert("categories").
			Columns("id", "name").
			Values(c.ID, c.Name).
			Suffix("ON CONFLICT (id) DO UPDATE SET name = excluded.name").
			ToSql()
		if err != nil {
			return wrap(s.Name(), "EnsureCategories", err)
		}
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return wrap(s.Name(), "EnsureCategories", err)
		}
	}
	return nil
}

func (s *SQLStore) Categories(ctx context.Context) ([]types.Category, error) {
	query, args, err := s.qb.Select("id", "name").From("categories").OrderBy("id").ToSql()
	if err != nil {
		return nil, wrap(s.Name(), "Categories", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(s.Name(), "Categories", err)
	}
	defer rows.Close()

	var cats []types.Category
	for rows.Next() {
		var c types.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, wrap(s.Name(), "Categories", err)
		}
		cats = append(cats, c)
	}
	return cats, wrap(s.Name(), "Categories", rows.Err())
}

func (s *SQLStore) GetOrCreateAuthor(ctx context.Context, externalID int64, handle string) (*types.ExternalAuthorRef, error) {
	query, args, err := s.qb.Insert("external_authors").
		Columns("external_id", "handle").
		Values(externalID, handle).
		Suffix(`ON CONFLICT (external_id) DO UPDATE SET handle = CASE WHEN excluded.handle <> '' THEN excluded.handle ELSE external_authors.handle END
			RETURNING id, external_id, handle`).
		ToSql()
	if err != nil {
		return nil, wrap(s.Name(), "GetOrCreateAuthor", err)
	}

	var (
		id  int64
		ref types.ExternalAuthorRef
	)
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id, &ref.ExternalID, &ref.Handle); err != nil {
		return nil, wrap(s.Name(), "GetOrCreateAuthor", err)
	}
	ref.ID = strconv.FormatInt(id, 10)
	return &ref, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNews(row rowScanner) (*types.NewsItem, error) {
	var (
		item    types.NewsItem
		id      int64
		status  string
		created sqlTime
		updated sqlTime
	)
	err := row.Scan(&id, &item.Title, &item.Body, &item.ImageURL, &item.Author, &item.CategoryID,
		&status, &item.Views, &item.ExternalAuthorID, &created, &updated)
	if err != nil {
		return nil, err
	}
	item.ID = strconv.FormatInt(id, 10)
	item.Status = types.ModerationStatus(status)
	item.CreatedAt = created.Time
	item.UpdatedAt = updated.Time
	return &item, nil
}

// sqlTime scans timestamps from drivers that return either time.Time or
// text.
type sqlTime struct{ time.Time }

var sqlTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (t *sqlTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case int64:
		t.Time = time.Unix(v, 0).UTC()
		return nil
	case nil:
		t.Time = time.Time{}
		return nil
	}
	return fmt.Errorf("unsupported timestamp type %T", src)
}

func (t *sqlTime) parse(s string) error {
	for _, layout := range sqlTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}
