package history

import (
	"context"
	"database/sql"
	"fmt"
)

var createTables = []string{
	`create table if not exists schema_meta (
	version integer not null
)`,
	`create table if not exists observations (
	seq integer primary key autoincrement,
	date text not null,
	name text not null,
	twitter_followers integer,
	instagram_followers integer,
	unique(date, name)
)`,
}

// SQL stores the log in a sqlite or libsql database. Rows are only ever
// inserted, a commit inserts the new day inside a single transaction.
type SQL struct {
	name string
	db   *sql.DB
}

// OpenSQL prepares the tables of `db` and migrates a legacy table in place.
// `name` is only used in reports.
func OpenSQL(ctx context.Context, name string, db *sql.DB) (SQL, error) {
	s := SQL{name: name, db: db}
	err := s.migrate(ctx)
	if err != nil {
		return SQL{}, fmt.Errorf("migrate %s: %w", name, err)
	}
	return s, nil
}

func (s SQL) Name() string {
	return fmt.Sprintf("sql:%s", s.name)
}

func (s SQL) hasColumn(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("pragma table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue sql.NullString
			pk        int
		)
		err = rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk)
		if err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

func (s SQL) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range createTables {
		_, err = tx.ExecContext(ctx, stmt)
		if err != nil {
			return err
		}
	}

	// a table created before instagram was tracked lacks the column
	hasInstagram, err := s.hasColumn(ctx, tx, "observations", "instagram_followers")
	if err != nil {
		return err
	}
	if !hasInstagram {
		_, err = tx.ExecContext(ctx, "alter table observations add column instagram_followers integer")
		if err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, "delete from schema_meta")
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, "insert into schema_meta (version) values (?)", CurrentSchema.Version)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func countArg(c Count) sql.NullInt64 {
	return sql.NullInt64{Int64: c.Value, Valid: c.Valid}
}

func countOf(column string, n sql.NullInt64) (Count, error) {
	if !n.Valid {
		return None, nil
	}
	if n.Int64 < 0 {
		return None, fmt.Errorf("%w: negative %s %d", ErrCorrupt, column, n.Int64)
	}
	return Count{Value: n.Int64, Valid: true}, nil
}

func (s SQL) Read(ctx context.Context) (Snapshot, error) {
	rows, err := s.db.QueryContext(
		ctx,
		"select date, name, twitter_followers, instagram_followers from observations order by seq",
	)
	if err != nil {
		return Snapshot{}, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			date      string
			name      string
			twitter   sql.NullInt64
			instagram sql.NullInt64
		)
		err = rows.Scan(&date, &name, &twitter, &instagram)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		parsed, err := ParseDate(date)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		tw, err := countOf(ColumnTwitter, twitter)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%s %s: %w", parsed, name, err)
		}
		ig, err := countOf(ColumnInstagram, instagram)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%s %s: %w", parsed, name, err)
		}
		records = append(records, Record{
			Date:      parsed,
			Name:      name,
			Twitter:   tw,
			Instagram: ig,
		})
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, err
	}

	return Snapshot{Schema: CurrentSchema, Records: records}, nil
}

func (s SQL) Commit(ctx context.Context, commit Commit) error {
	if len(commit.Added) == 0 {
		// rows are already stored in the current layout, nothing to rewrite
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(
		ctx,
		"insert into observations (date, name, twitter_followers, instagram_followers) values (?, ?, ?, ?)",
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range commit.Added {
		_, err = stmt.ExecContext(ctx, r.Date.String(), r.Name, countArg(r.Twitter), countArg(r.Instagram))
		if err != nil {
			return fmt.Errorf("insert %s %s: %w", r.Date, r.Name, err)
		}
	}
	return tx.Commit()
}
