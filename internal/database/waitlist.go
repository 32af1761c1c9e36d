package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bookcal/internal/models"
)

const waitingColumns = `id, date, from_time, to_time, service_duration_minutes, service_name, status,
	contact_name, contact_phone, chat_id, matched_time, notified_at, created_at`

// AddWaitingEntry inserts e with status waiting and sets its ID.
func (db *DB) AddWaitingEntry(ctx context.Context, e *models.WaitingListEntry) error {
	if e.ServiceDurationMinutes <= 0 {
		return fmt.Errorf("service duration must be positive, got %d", e.ServiceDurationMinutes)
	}
	e.Status = models.WaitingStatusWaiting
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO waiting_list (date, from_time, to_time, service_duration_minutes, service_name, status,
			contact_name, contact_phone, chat_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		dateKey(e.Date), e.FromTime, e.ToTime, e.ServiceDurationMinutes, e.ServiceName, string(e.Status),
		e.Contact.Name, e.Contact.Phone, e.Contact.ChatID, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert waiting entry: %w", err)
	}
	e.ID, err = res.LastInsertId()
	return err
}

// GetWaitingEntry returns one entry by id.
func (db *DB) GetWaitingEntry(ctx context.Context, id int64) (*models.WaitingListEntry, error) {
	row := db.QueryRowContext(ctx, "SELECT "+waitingColumns+" FROM waiting_list WHERE id = ?", id)
	e, err := scanWaiting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get waiting entry %d: %w", id, err)
	}
	return e, nil
}

// ListWaiting returns entries on date that are still waiting, in insertion order.
func (db *DB) ListWaiting(ctx context.Context, date time.Time) ([]models.WaitingListEntry, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+waitingColumns+" FROM waiting_list WHERE date = ? AND status = ? ORDER BY id",
		dateKey(date), string(models.WaitingStatusWaiting),
	)
	if err != nil {
		return nil, fmt.Errorf("list waiting: %w", err)
	}
	defer rows.Close()

	var result []models.WaitingListEntry
	for rows.Next() {
		e, err := scanWaiting(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	return result, rows.Err()
}

// MarkNotified transitions an entry from waiting to notified. The update is
// conditional on the current status, so only one caller can win.
func (db *DB) MarkNotified(ctx context.Context, id int64, matchedTime string, at time.Time) (bool, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE waiting_list
		SET status = ?, matched_time = ?, notified_at = ?
		WHERE id = ? AND status = ?`,
		string(models.WaitingStatusNotified), matchedTime, at, id, string(models.WaitingStatusWaiting),
	)
	if err != nil {
		return false, fmt.Errorf("mark notified %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func scanWaiting(s scanner) (*models.WaitingListEntry, error) {
	var (
		e                                 models.WaitingListEntry
		date, status                      string
		serviceName, name, phone, matched sql.NullString
		chatID                            sql.NullInt64
		notifiedAt                        sql.NullTime
	)
	if err := s.Scan(&e.ID, &date, &e.FromTime, &e.ToTime, &e.ServiceDurationMinutes, &serviceName, &status,
		&name, &phone, &chatID, &matched, &notifiedAt, &e.CreatedAt); err != nil {
		return nil, err
	}
	d, err := parseDateKey(date)
	if err != nil {
		return nil, err
	}
	e.Date = d
	e.Status = models.WaitingStatus(status)
	e.ServiceName = serviceName.String
	e.Contact = models.Contact{Name: name.String, Phone: phone.String, ChatID: chatID.Int64}
	e.MatchedTime = matched.String
	if notifiedAt.Valid {
		t := notifiedAt.Time
		e.NotifiedAt = &t
	}
	return &e, nil
}
