package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"newsdigest/internal/domain"
)

func (d *Database) CreateUser(ctx context.Context, email string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, errors.New("email is empty")
	}

	createdAt := time.Now().UTC()

	query := "insert into users (email, created_at) values (?, ?)"

	res, err := d.db.ExecContext(ctx, query, email, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch inserted ID: %w", err)
	}

	return &domain.User{ID: id, Email: email, CreatedAt: createdAt}, nil
}

func (d *Database) ListUsers(ctx context.Context) ([]domain.User, error) {
	query := "select id, email, created_at from users order by id"

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"operation", "ListUsers")
		}
	}()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err = rows.Scan(&u.ID, &u.Email, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		users = append(users, u)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return users, nil
}

// GetUserPreferenceWithDefault returns the stored preference for the user,
// or a UTC preference when none has been created yet.
func (d *Database) GetUserPreferenceWithDefault(
	ctx context.Context,
	userID int64,
) (*domain.UserPreference, error) {
	query := `select user_id, timezone
	from user_preferences
	where user_id = ?`

	rows, err := d.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"userID", userID,
				"operation", "GetUserPreferenceWithDefault")
		}
	}()

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to iterate rows: %w", err)
		}
		return &domain.UserPreference{
			UserID:   userID,
			Timezone: "UTC",
		}, nil
	}

	var p domain.UserPreference
	if err = rows.Scan(&p.UserID, &p.Timezone); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return &p, nil
}

func (d *Database) UpsertUserPreference(ctx context.Context, pref *domain.UserPreference) error {
	timezone := strings.TrimSpace(pref.Timezone)
	if timezone == "" {
		timezone = "UTC"
	}

	query := `insert into user_preferences (user_id, timezone)
	values (?, ?)
	on conflict (user_id) do update
	set timezone = excluded.timezone`

	_, err := d.db.ExecContext(ctx, query, pref.UserID, timezone)

	return err
}

func (d *Database) AddSearchTerm(ctx context.Context, userID int64, term string) error {
	term = strings.TrimSpace(term)
	if term == "" {
		return errors.New("search term is empty")
	}

	query := "insert or ignore into search_terms (user_id, term, created_at) values (?, ?, ?)"

	_, err := d.db.ExecContext(ctx, query, userID, term, time.Now().UTC())

	return err
}

func (d *Database) RemoveSearchTerm(ctx context.Context, termID int64) error {
	query := "delete from search_terms where id = ?"

	_, err := d.db.ExecContext(ctx, query, termID)

	return err
}

// ListSearchTerms returns the user's terms in creation order.
func (d *Database) ListSearchTerms(ctx context.Context, userID int64) ([]domain.SearchTerm, error) {
	query := `select id, term, created_at
	from search_terms
	where user_id = ?
	order by id`

	rows, err := d.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"userID", userID,
				"operation", "ListSearchTerms")
		}
	}()

	var terms []domain.SearchTerm
	for rows.Next() {
		var t domain.SearchTerm
		if err = rows.Scan(&t.ID, &t.Term, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		t.Term = strings.TrimSpace(t.Term)

		t.UserID = userID
		terms = append(terms, t)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return terms, nil
}

// GetOrCreateArticle inserts an article row for the URL unless one already
// exists, then returns the stored row. The unique URL constraint makes this
// safe under concurrent runs: exactly one creator wins and the loser reads
// the winner's row.
func (d *Database) GetOrCreateArticle(
	ctx context.Context,
	ref domain.ArticleRef,
) (*domain.Article, bool, error) {
	articleURL := strings.TrimSpace(ref.URL)
	if articleURL == "" {
		return nil, false, errors.New("article URL is empty")
	}

	var publishedAt sql.NullTime
	if !ref.PublishedAt.IsZero() {
		publishedAt = sql.NullTime{Time: ref.PublishedAt.UTC(), Valid: true}
	}

	query := `insert or ignore into articles (url, title, published_at, source, fetched_at)
	values (?, ?, ?, ?, ?)`

	res, err := d.db.ExecContext(ctx, query,
		articleURL,
		strings.TrimSpace(ref.Title),
		publishedAt,
		strings.TrimSpace(ref.Source),
		time.Now().UTC())
	if err != nil {
		return nil, false, fmt.Errorf("failed to execute query: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch affected rows: %w", err)
	}

	article, err := d.getArticleByURL(ctx, articleURL)
	if err != nil {
		return nil, false, err
	}

	return article, affected == 1, nil
}

func (d *Database) getArticleByURL(ctx context.Context, articleURL string) (*domain.Article, error) {
	query := `select id, url, title, content, published_at, source, fetched_at
	from articles
	where url = ?`

	rows, err := d.db.QueryContext(ctx, query, articleURL)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"url", articleURL,
				"operation", "getArticleByURL")
		}
	}()

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to iterate rows: %w", err)
		}
		return nil, fmt.Errorf("article not found (URL = %s)", articleURL)
	}

	article, err := scanArticle(rows)
	if err != nil {
		return nil, err
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return article, nil
}

func (d *Database) UpdateArticleContent(ctx context.Context, articleID int64, content string) error {
	query := "update articles set content = ?, fetched_at = ? where id = ?"

	_, err := d.db.ExecContext(ctx, query, content, time.Now().UTC(), articleID)

	return err
}

// CreateDigest writes the digest row and its article links in one
// transaction, so a digest never exists without its linked articles.
func (d *Database) CreateDigest(
	ctx context.Context,
	userID int64,
	searchTermID int64,
	summary string,
	articleIDs []int64,
) (*domain.Digest, error) {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil, errors.New("digest summary is empty")
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil &&
			!errors.Is(rollbackErr, sql.ErrTxDone) {
			d.log.ErrorContext(ctx, "Failed to roll back transaction",
				"error", rollbackErr,
				"userID", userID,
				"operation", "CreateDigest")
		}
	}()

	createdAt := time.Now().UTC()

	query := `insert into digests (user_id, search_term_id, summary, created_at)
	values (?, ?, ?, ?)`

	res, err := tx.ExecContext(ctx, query, userID, searchTermID, summary, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	digestID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch inserted ID: %w", err)
	}

	linkQuery := "insert or ignore into digest_articles (digest_id, article_id) values (?, ?)"

	for _, articleID := range articleIDs {
		if _, err = tx.ExecContext(ctx, linkQuery, digestID, articleID); err != nil {
			return nil, fmt.Errorf("failed to link article (ID = %d): %w", articleID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &domain.Digest{
		ID:           digestID,
		UserID:       userID,
		SearchTermID: searchTermID,
		Summary:      summary,
		CreatedAt:    createdAt,
	}, nil
}

func (d *Database) MarkDigestSent(ctx context.Context, digestID int64, sentAt time.Time) error {
	query := "update digests set sent_at = ? where id = ?"

	_, err := d.db.ExecContext(ctx, query, sentAt.UTC(), digestID)

	return err
}

func (d *Database) ListUserDigests(ctx context.Context, userID int64) ([]domain.Digest, error) {
	query := `select id, search_term_id, summary, created_at, sent_at
	from digests
	where user_id = ?
	order by id`

	rows, err := d.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"userID", userID,
				"operation", "ListUserDigests")
		}
	}()

	var digests []domain.Digest
	for rows.Next() {
		var dg domain.Digest
		var sentAt sql.NullTime
		if err = rows.Scan(&dg.ID, &dg.SearchTermID, &dg.Summary, &dg.CreatedAt, &sentAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if sentAt.Valid {
			t := sentAt.Time
			dg.SentAt = &t
		}

		dg.UserID = userID
		digests = append(digests, dg)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	for i := range digests {
		articles, articlesErr := d.getDigestArticles(ctx, digests[i].ID)
		if articlesErr != nil {
			return nil, articlesErr
		}
		digests[i].Articles = articles
	}

	return digests, nil
}

func (d *Database) getDigestArticles(ctx context.Context, digestID int64) ([]domain.Article, error) {
	query := `select a.id, a.url, a.title, a.content, a.published_at, a.source, a.fetched_at
	from articles as a
	join digest_articles as da
	on da.article_id = a.id
	where da.digest_id = ?
	order by a.id`

	rows, err := d.db.QueryContext(ctx, query, digestID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"digestID", digestID,
				"operation", "getDigestArticles")
		}
	}()

	var articles []domain.Article
	for rows.Next() {
		article, scanErr := scanArticle(rows)
		if scanErr != nil {
			return nil, scanErr
		}

		articles = append(articles, *article)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return articles, nil
}

func scanArticle(rows *sql.Rows) (*domain.Article, error) {
	var a domain.Article
	var publishedAt sql.NullTime

	if err := rows.Scan(
		&a.ID,
		&a.URL,
		&a.Title,
		&a.Content,
		&publishedAt,
		&a.Source,
		&a.FetchedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	if publishedAt.Valid {
		a.PublishedAt = publishedAt.Time
	}

	a.URL = strings.TrimSpace(a.URL)
	a.Title = strings.TrimSpace(a.Title)

	return &a, nil
}
