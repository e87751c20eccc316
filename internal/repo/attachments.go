package repo

import (
	"context"
	"database/sql"

	"planboard/internal/domain"
)

func (r Repo) InsertAttachment(ctx context.Context, tx *sql.Tx, activityID string, att domain.Attachment) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO attachments(id,activity_id,name,size,type) VALUES (?,?,?,?,?)`,
		att.ID, activityID, att.Name, att.Size, att.Type)
	return err
}

func (r Repo) DeleteAttachment(ctx context.Context, tx *sql.Tx, activityID, attachmentID string) error {
	return expectOne(tx.ExecContext(ctx, `DELETE FROM attachments WHERE id=? AND activity_id=?`, attachmentID, activityID))
}

func listAttachments(ctx context.Context, q queryer, activityID string) ([]domain.Attachment, error) {
	rows, err := q.QueryContext(ctx, `SELECT id,name,size,type FROM attachments WHERE activity_id=? ORDER BY rowid`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Attachment
	for rows.Next() {
		var att domain.Attachment
		if err := rows.Scan(&att.ID, &att.Name, &att.Size, &att.Type); err != nil {
			return nil, err
		}
		res = append(res, att)
	}
	return res, rows.Err()
}
