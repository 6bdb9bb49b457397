package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"forum-watch/internal/observability"
	"forum-watch/internal/storage"
)

const upsertPostQuery = `
	MERGE INTO TblForumPosts AS target
	USING (SELECT @URL AS URL) AS source
	ON target.[URL] = source.URL
	WHEN MATCHED THEN
		UPDATE SET
			[Title] = @Title,
			[ReplyCount] = @ReplyCount,
			[Views] = @Views,
			[CheckSum] = @CheckSum
	WHEN NOT MATCHED THEN
		INSERT ([Section], [URL], [Title], [Author], [PostedRaw], [ReplyCount], [Views], [CheckSum], [DiscoveredAt])
		VALUES (@Section, @URL, @Title, @Author, @PostedRaw, @ReplyCount, @Views, @CheckSum, @DiscoveredAt)
	OUTPUT $action;
`

type Repository struct {
	db             *sql.DB
	commandTimeout time.Duration
	logger         *observability.Logger
}

var _ storage.Repository = (*Repository)(nil)

func NewRepository(dsn string, commandTimeout time.Duration, logger *observability.Logger) (*Repository, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Тестируем соединение
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewRepositoryFromDB(db, commandTimeout, logger), nil
}

// NewRepositoryFromDB для уже открытого соединения (тесты, общий пул)
func NewRepositoryFromDB(db *sql.DB, commandTimeout time.Duration, logger *observability.Logger) *Repository {
	return &Repository{
		db:             db,
		commandTimeout: commandTimeout,
		logger:         logger,
	}
}

// SavePost сохраняет или обновляет тему
func (r *Repository) SavePost(ctx context.Context, post *storage.PostRecord) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	stmt, err := r.db.PrepareContext(ctx, upsertPostQuery)
	if err != nil {
		return false, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			r.logger.Error("Failed to close statement", "error", err.Error())
		}
	}()

	// MERGE ... OUTPUT $action возвращает INSERT или UPDATE
	var action string
	err = stmt.QueryRowContext(ctx,
		sql.Named("Section", post.Section),
		sql.Named("URL", post.URL),
		sql.Named("Title", post.Title),
		sql.Named("Author", post.Author),
		sql.Named("PostedRaw", post.PostedRaw),
		sql.Named("ReplyCount", post.ReplyCount),
		sql.Named("Views", post.Views),
		sql.Named("CheckSum", post.CheckSum),
		sql.Named("DiscoveredAt", post.DiscoveredAt),
	).Scan(&action)
	if err != nil {
		return false, fmt.Errorf("failed to execute upsert: %w", err)
	}

	return action == "INSERT", nil
}

// Close закрывает соединение с БД
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
