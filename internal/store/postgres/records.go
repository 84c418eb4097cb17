package postgres

import (
	"context"
	"fmt"

	"pr-build-watcher/internal/entities"

	"github.com/jackc/pgx/v5"
)

const (
	selectRecordsQuery = `
SELECT number, head_sha, title, target_branch, source_branch, author_login, author_email,
       url, updated_at, mergeable, commit_author_name, commit_author_email
FROM pr_records WHERE repo=$1 ORDER BY number`
	deleteRecordsQuery = `DELETE FROM pr_records WHERE repo=$1`
	insertRecordQuery  = `
INSERT INTO pr_records(repo, number, head_sha, title, target_branch, source_branch, author_login,
                       author_email, url, updated_at, mergeable, commit_author_name, commit_author_email)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
)

// Load reads the persisted record set for one monitored repository.
func (p *Postgres) Load(ctx context.Context, repo string) ([]entities.PullRequestRecord, error) {
	rows, err := p.db.Query(ctx, selectRecordsQuery, repo)
	if err != nil {
		p.log.Errorw("failed to select records", "error", err, "repo", repo)
		return nil, fmt.Errorf("select records: %w", err)
	}
	defer rows.Close()

	recs := make([]entities.PullRequestRecord, 0)
	for rows.Next() {
		var rec entities.PullRequestRecord
		var mergeable int16
		if err := rows.Scan(
			&rec.ID, &rec.HeadSHA, &rec.Title, &rec.TargetBranch, &rec.SourceBranch,
			&rec.AuthorLogin, &rec.AuthorEmail, &rec.URL, &rec.UpdatedAt, &mergeable,
			&rec.CommitAuthorName, &rec.CommitAuthorEmail,
		); err != nil {
			p.log.Errorw("failed to scan record", "error", err)
			return nil, err
		}
		rec.Mergeable = entities.Mergeable(mergeable)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		p.log.Errorw("error iterating records", "error", err)
		return nil, err
	}
	return recs, nil
}

// Save replaces the persisted record set for one monitored repository.
func (p *Postgres) Save(ctx context.Context, repo string, recs []entities.PullRequestRecord) error {
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, deleteRecordsQuery, repo); err != nil {
		p.log.Errorw("failed to clear records", "error", err, "repo", repo)
		return fmt.Errorf("clear records: %w", err)
	}
	for _, rec := range recs {
		if _, err := tx.Exec(ctx, insertRecordQuery,
			repo, rec.ID, rec.HeadSHA, rec.Title, rec.TargetBranch, rec.SourceBranch,
			rec.AuthorLogin, rec.AuthorEmail, rec.URL, rec.UpdatedAt, int16(rec.Mergeable),
			rec.CommitAuthorName, rec.CommitAuthorEmail,
		); err != nil {
			p.log.Errorw("failed to insert record", "error", err, "number", rec.ID)
			return fmt.Errorf("insert record: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	return nil
}
