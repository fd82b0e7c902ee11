package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Skillial/CSSECDV-Case-Study/internal/core/domain"
	"github.com/Skillial/CSSECDV-Case-Study/internal/core/port"
	"github.com/Skillial/CSSECDV-Case-Study/internal/repository"
)

// SecurityQuestionRepository implements port.SecurityQuestionRepository using PostgreSQL.
type SecurityQuestionRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSecurityQuestionRepository wires a PostgreSQL-backed security question repository.
func NewSecurityQuestionRepository(pool *pgxpool.Pool) *SecurityQuestionRepository {
	return &SecurityQuestionRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Upsert stores or replaces the account's recovery question and hashed answer.
func (r *SecurityQuestionRepository) Upsert(ctx context.Context, question domain.SecurityQuestion) error {
	stmt, args, err := r.builder.Insert("occasio.security_questions").
		Columns("account_id", "question", "answer_hash", "updated_at").
		Values(question.AccountID, question.Question, question.AnswerHash, question.UpdatedAt).
		Suffix(`ON CONFLICT (account_id) DO UPDATE
			SET question = EXCLUDED.question,
			    answer_hash = EXCLUDED.answer_hash,
			    updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert security question sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert security question: %w", err)
	}

	return nil
}

// GetByAccountID fetches the recovery question for an account.
func (r *SecurityQuestionRepository) GetByAccountID(ctx context.Context, accountID int64) (*domain.SecurityQuestion, error) {
	stmt, args, err := r.builder.Select("account_id", "question", "answer_hash", "updated_at").
		From("occasio.security_questions").
		Where(squirrel.Eq{"account_id": accountID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select security question sql: %w", err)
	}

	var question domain.SecurityQuestion
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&question.AccountID,
		&question.Question,
		&question.AnswerHash,
		&question.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan security question: %w", err)
	}

	return &question, nil
}

var _ port.SecurityQuestionRepository = (*SecurityQuestionRepository)(nil)
