package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samtale/samtale/internal/domain"
)

type CleanupStore struct {
	db *pgxpool.Pool
}

func NewCleanupStore(db *pgxpool.Pool) *CleanupStore {
	return &CleanupStore{db: db}
}

// legacyRedactSQL rewrites every conversation_data array older than the
// cutoff in one statement. Per element: text is overwritten with the
// sentinel when present, image is nulled when present, every other key is
// left alone. Non-object elements and non-array payloads pass through
// untouched. Element order is preserved via WITH ORDINALITY.
const legacyRedactSQL = `
UPDATE conversations c
SET conversation_data = r.redacted
FROM (
    SELECT c2.id,
           jsonb_agg(
               CASE WHEN jsonb_typeof(elem.msg) <> 'object' THEN elem.msg
                    ELSE (CASE WHEN elem.msg ? 'text'
                               THEN elem.msg || jsonb_build_object('text', $2::text)
                               ELSE elem.msg END)
                         ||
                         (CASE WHEN elem.msg ? 'image'
                               THEN jsonb_build_object('image', NULL)
                               ELSE '{}'::jsonb END)
               END
               ORDER BY elem.ord
           ) AS redacted
    FROM conversations c2,
         LATERAL jsonb_array_elements(c2.conversation_data) WITH ORDINALITY AS elem(msg, ord)
    WHERE c2.chatbot_id = $1
      AND c2.created_at < $3
      AND jsonb_typeof(c2.conversation_data) = 'array'
    GROUP BY c2.id
) r
WHERE c.id = r.id`

// AnonymizeBefore redacts everything a chatbot stored before the cutoff in a
// single transaction: legacy arrays, per-row messages, context chunks, then
// the policy's last_cleanup_run. When nothing matches the cutoff the
// transaction writes nothing and last_cleanup_run is left alone.
//
// Conversations.updated_at is not bumped: a repeat run leaves the database
// byte-for-byte identical.
func (s *CleanupStore) AnonymizeBefore(ctx context.Context, chatbotID uuid.UUID, cutoff time.Time, ranAt time.Time) (*domain.CleanupResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin cleanup tx: %w", err)
	}
	defer tx.Rollback(ctx)

	res := &domain.CleanupResult{ChatbotID: chatbotID, Cutoff: cutoff}

	err = tx.QueryRow(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN jsonb_typeof(conversation_data) = 'array'
		                          THEN jsonb_array_length(conversation_data)
		                          ELSE 0 END), 0)
		 FROM conversations WHERE chatbot_id = $1 AND created_at < $2`,
		chatbotID, cutoff,
	).Scan(&res.Conversations, &res.LegacyMessagesRedacted)
	if err != nil {
		return nil, fmt.Errorf("count cleanup candidates: %w", err)
	}

	if res.Conversations == 0 {
		return res, nil
	}

	if _, err := tx.Exec(ctx, legacyRedactSQL, chatbotID, domain.RedactionSentinel, cutoff); err != nil {
		return nil, fmt.Errorf("redact legacy arrays: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE conversation_messages m
		 SET message_text = $2, image_data = NULL
		 FROM conversations c
		 WHERE c.id = m.conversation_id AND c.chatbot_id = $1 AND c.created_at < $3`,
		chatbotID, domain.RedactionSentinel, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("redact messages: %w", err)
	}
	res.MessagesRedacted = int(tag.RowsAffected())

	tag, err = tx.Exec(ctx,
		`UPDATE message_context_chunks ch
		 SET chunk_content = $2, embedding = NULL
		 FROM conversations c
		 WHERE c.id = ch.conversation_id AND c.chatbot_id = $1 AND c.created_at < $3`,
		chatbotID, domain.RedactionSentinel, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("redact context chunks: %w", err)
	}
	res.ChunksRedacted = int(tag.RowsAffected())

	if _, err := tx.Exec(ctx,
		`UPDATE retention_policies
		 SET last_cleanup_run = $2, updated_at = NOW()
		 WHERE chatbot_id = $1`,
		chatbotID, ranAt,
	); err != nil {
		return nil, fmt.Errorf("record cleanup run: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cleanup tx: %w", err)
	}
	return res, nil
}

const maxPreviewSample = 100

// Preview reports what AnonymizeBefore would touch without writing anything.
// Counts are a point-in-time snapshot, not a reservation.
func (s *CleanupStore) Preview(ctx context.Context, chatbotID uuid.UUID, cutoff time.Time, sampleSize int) (*domain.CleanupPreview, error) {
	if sampleSize <= 0 {
		sampleSize = 20
	}
	if sampleSize > maxPreviewSample {
		sampleSize = maxPreviewSample
	}

	p := &domain.CleanupPreview{ChatbotID: chatbotID, Cutoff: cutoff}

	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN jsonb_typeof(conversation_data) = 'array'
		                          THEN jsonb_array_length(conversation_data)
		                          ELSE 0 END), 0)
		 FROM conversations WHERE chatbot_id = $1 AND created_at < $2`,
		chatbotID, cutoff,
	).Scan(&p.Totals.Conversations, &p.Totals.LegacyMessages)
	if err != nil {
		return nil, fmt.Errorf("preview conversation totals: %w", err)
	}

	err = s.db.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM conversation_messages m
		 JOIN conversations c ON c.id = m.conversation_id
		 WHERE c.chatbot_id = $1 AND c.created_at < $2`,
		chatbotID, cutoff,
	).Scan(&p.Totals.Messages)
	if err != nil {
		return nil, fmt.Errorf("preview message total: %w", err)
	}

	err = s.db.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM message_context_chunks ch
		 JOIN conversations c ON c.id = ch.conversation_id
		 WHERE c.chatbot_id = $1 AND c.created_at < $2`,
		chatbotID, cutoff,
	).Scan(&p.Totals.Chunks)
	if err != nil {
		return nil, fmt.Errorf("preview chunk total: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT c.id, c.emne, c.created_at,
		        CASE WHEN jsonb_typeof(c.conversation_data) = 'array'
		             THEN jsonb_array_length(c.conversation_data)
		             ELSE 0 END,
		        (SELECT COUNT(*) FROM conversation_messages m WHERE m.conversation_id = c.id)
		 FROM conversations c
		 WHERE c.chatbot_id = $1 AND c.created_at < $2
		 ORDER BY c.created_at DESC
		 LIMIT $3`,
		chatbotID, cutoff, sampleSize,
	)
	if err != nil {
		return nil, fmt.Errorf("preview sample query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e domain.PreviewEntry
		if err := rows.Scan(&e.ConversationID, &e.Subject, &e.CreatedAt, &e.LegacyMessages, &e.Messages); err != nil {
			return nil, fmt.Errorf("scan preview row: %w", err)
		}
		p.Sample = append(p.Sample, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("preview sample rows: %w", err)
	}

	return p, nil
}
