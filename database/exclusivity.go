package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/pitchroom/dealflow/internal/apierror"
	"github.com/pitchroom/dealflow/model"
)

// AcquireExclusivity attempts to grant the pitch's exclusivity window to
// dealID until expiresAt. The whole check-and-grant is one conditional
// upsert: the insert wins when no window exists, the update wins when
// the existing window has lapsed or already belongs to dealID (a
// refresh), and otherwise zero rows are affected. Two orchestrators
// racing on the same pitch therefore can never both be granted.
func (d Datasource) AcquireExclusivity(ctx context.Context, pitchID, dealID string, expiresAt time.Time) (bool, error) {
	result, err := d.Conn.ExecContext(ctx, `
		INSERT INTO exclusivity_windows (pitch_id, deal_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (pitch_id) DO UPDATE
		SET deal_id = EXCLUDED.deal_id, expires_at = EXCLUDED.expires_at
		WHERE exclusivity_windows.expires_at < NOW()
		   OR exclusivity_windows.deal_id = EXCLUDED.deal_id
	`, pitchID, dealID, expiresAt)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to acquire exclusivity", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to acquire exclusivity", err)
	}
	return rows > 0, nil
}

// GetExclusivityWindow returns the pitch's current window, nil when none exists.
// Callers decide whether a lapsed window still counts; the grant path does not.
func (d Datasource) GetExclusivityWindow(ctx context.Context, pitchID string) (*model.ExclusivityWindow, error) {
	window := model.ExclusivityWindow{}
	row := d.Conn.QueryRowContext(ctx, `
		SELECT pitch_id, deal_id, expires_at
		FROM exclusivity_windows
		WHERE pitch_id = $1
	`, pitchID)

	err := row.Scan(&window.PitchID, &window.DealID, &window.ExpiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve exclusivity window", err)
	}
	return &window, nil
}

// ReleaseExclusivity clears the window only when dealID holds it.
// Releasing a window you don't hold is a no-op, not an error.
func (d Datasource) ReleaseExclusivity(ctx context.Context, pitchID, dealID string) error {
	_, err := d.Conn.ExecContext(ctx, `
		DELETE FROM exclusivity_windows
		WHERE pitch_id = $1 AND deal_id = $2
	`, pitchID, dealID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to release exclusivity", err)
	}
	return nil
}

// EnqueueWaitlist appends a deal to the pitch's waitlist tail. The
// insert is idempotent; a deal already queued keeps its original position.
func (d Datasource) EnqueueWaitlist(ctx context.Context, pitchID, dealID string) error {
	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO waitlist_entries (pitch_id, deal_id, enqueued_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (pitch_id, deal_id) DO NOTHING
	`, pitchID, dealID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to enqueue waitlist entry", err)
	}
	return nil
}

// PopWaitlistHead removes and returns the oldest waitlist entry for a
// pitch, or nil when the waitlist is empty. SKIP LOCKED keeps two
// concurrent releases from popping the same entry. The entry carries
// its enqueued_at so a failed promotion can requeue at the same position.
func (d Datasource) PopWaitlistHead(ctx context.Context, pitchID string) (*model.WaitlistEntry, error) {
	entry := model.WaitlistEntry{PitchID: pitchID}
	err := d.Conn.QueryRowContext(ctx, `
		DELETE FROM waitlist_entries
		WHERE id = (
			SELECT id FROM waitlist_entries
			WHERE pitch_id = $1
			ORDER BY enqueued_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING deal_id, enqueued_at
	`, pitchID).Scan(&entry.DealID, &entry.EnqueuedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to pop waitlist head", err)
	}
	return &entry, nil
}

// RequeueWaitlist re-inserts a popped deal with its original
// enqueued_at, preserving its position in the promotion order.
func (d Datasource) RequeueWaitlist(ctx context.Context, pitchID, dealID string, enqueuedAt time.Time) error {
	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO waitlist_entries (pitch_id, deal_id, enqueued_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (pitch_id, deal_id) DO NOTHING
	`, pitchID, dealID, enqueuedAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to requeue waitlist entry", err)
	}
	return nil
}

// RemoveWaitlistEntry drops a specific deal from the waitlist, for the
// unpromoted-deadline and withdrawal exits. Idempotent.
func (d Datasource) RemoveWaitlistEntry(ctx context.Context, pitchID, dealID string) error {
	_, err := d.Conn.ExecContext(ctx, `
		DELETE FROM waitlist_entries
		WHERE pitch_id = $1 AND deal_id = $2
	`, pitchID, dealID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to remove waitlist entry", err)
	}
	return nil
}

// GetWaitlist returns a pitch's waitlist in promotion order.
func (d Datasource) GetWaitlist(ctx context.Context, pitchID string) ([]model.WaitlistEntry, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, pitch_id, deal_id, enqueued_at
		FROM waitlist_entries
		WHERE pitch_id = $1
		ORDER BY enqueued_at, id
	`, pitchID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve waitlist", err)
	}
	defer rows.Close()

	entries := []model.WaitlistEntry{}
	for rows.Next() {
		entry := model.WaitlistEntry{}
		err = rows.Scan(&entry.ID, &entry.PitchID, &entry.DealID, &entry.EnqueuedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan waitlist entry", err)
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over waitlist", err)
	}
	return entries, nil
}
