package cache

import (
	"context"
	"database/sql"

	"github.com/skeletor-js/medulla/internal/types"
)

// TaskRow is the task projection the readiness queries return.
type TaskRow struct {
	ID             string  `json:"id"`
	SequenceNumber uint32  `json:"sequence_number"`
	Title          string  `json:"title"`
	Status         string  `json:"status"`
	Priority       string  `json:"priority"`
	DueDate        *string `json:"due_date"`
	Assignee       string  `json:"assignee,omitempty"`
}

// BlockerRow is the blocker projection carried inside blocked results.
type BlockerRow struct {
	ID             string `json:"id"`
	SequenceNumber uint32 `json:"sequence_number"`
	Title          string `json:"title"`
	Status         string `json:"status"`
}

// BlockedTask is a task together with its unresolved blockers.
type BlockedTask struct {
	TaskRow
	Blockers []BlockerRow `json:"blockers"`
}

// readyOrder sorts by priority (urgent > high > normal > low), then due
// date with nulls last, then sequence number.
const readyOrder = `
	ORDER BY CASE t.priority
	           WHEN 'urgent' THEN 0
	           WHEN 'high' THEN 1
	           WHEN 'normal' THEN 2
	           ELSE 3
	         END,
	         t.due_date IS NULL,
	         t.due_date,
	         t.sequence_number`

// GetReadyTasks returns tasks that are not done and have no unresolved
// blocker. A blocker counts only while it is a task row whose status is
// not done, so dangling relations left by a merge are filtered by the
// join.
func (c *Cache) GetReadyTasks(ctx context.Context, limit int) ([]*TaskRow, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT t.id, t.sequence_number, t.title, t.status, t.priority, t.due_date, t.assignee
		FROM tasks t
		WHERE t.status != 'done'
		  AND NOT EXISTS (
		    SELECT 1 FROM relations r
		    JOIN tasks blocker ON blocker.id = r.source_id
		    WHERE r.relation_type = 'blocks'
		      AND r.target_id = t.id
		      AND blocker.status != 'done'
		  )`+readyOrder+`
		LIMIT ?`, limit)
	if err != nil {
		return nil, types.Storagef("query ready tasks", err)
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

// GetNextTask returns the single highest-priority ready task, or nil.
func (c *Cache) GetNextTask(ctx context.Context) (*TaskRow, error) {
	tasks, err := c.GetReadyTasks(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	return tasks[0], nil
}

// GetBlockedTasks returns tasks with at least one unresolved blocker,
// each carrying its blocker list.
func (c *Cache) GetBlockedTasks(ctx context.Context, limit int) ([]*BlockedTask, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT t.id, t.sequence_number, t.title, t.status, t.priority, t.due_date, t.assignee,
		       b.id, b.sequence_number, b.title, b.status
		FROM tasks t
		JOIN relations r ON r.target_id = t.id AND r.relation_type = 'blocks'
		JOIN tasks b ON b.id = r.source_id AND b.status != 'done'
		WHERE t.status != 'done'
		ORDER BY t.sequence_number, b.sequence_number`)
	if err != nil {
		return nil, types.Storagef("query blocked tasks", err)
	}
	defer rows.Close()

	var order []string
	byID := map[string]*BlockedTask{}
	for rows.Next() {
		var t TaskRow
		var b BlockerRow
		if err := rows.Scan(&t.ID, &t.SequenceNumber, &t.Title, &t.Status, &t.Priority,
			&t.DueDate, &t.Assignee, &b.ID, &b.SequenceNumber, &b.Title, &b.Status); err != nil {
			return nil, types.Storagef("scan blocked task", err)
		}
		entry, ok := byID[t.ID]
		if !ok {
			entry = &BlockedTask{TaskRow: t}
			byID[t.ID] = entry
			order = append(order, t.ID)
		}
		entry.Blockers = append(entry.Blockers, b)
	}
	if err := rows.Err(); err != nil {
		return nil, types.Storagef("iterate blocked tasks", err)
	}

	out := make([]*BlockedTask, 0, len(order))
	for _, id := range order {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, byID[id])
	}
	return out, nil
}

// GetTaskBlockers returns the unresolved blockers of one task.
func (c *Cache) GetTaskBlockers(ctx context.Context, taskID string) ([]BlockerRow, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT b.id, b.sequence_number, b.title, b.status
		FROM relations r
		JOIN tasks b ON b.id = r.source_id
		WHERE r.relation_type = 'blocks'
		  AND r.target_id = ?
		  AND b.status != 'done'
		ORDER BY b.sequence_number`, taskID)
	if err != nil {
		return nil, types.Storagef("query task blockers", err)
	}
	defer rows.Close()

	var blockers []BlockerRow
	for rows.Next() {
		var b BlockerRow
		if err := rows.Scan(&b.ID, &b.SequenceNumber, &b.Title, &b.Status); err != nil {
			return nil, types.Storagef("scan task blocker", err)
		}
		blockers = append(blockers, b)
	}
	if err := rows.Err(); err != nil {
		return nil, types.Storagef("iterate task blockers", err)
	}
	return blockers, nil
}

func scanTaskRows(rows *sql.Rows) ([]*TaskRow, error) {
	var tasks []*TaskRow
	for rows.Next() {
		var t TaskRow
		if err := rows.Scan(&t.ID, &t.SequenceNumber, &t.Title, &t.Status, &t.Priority,
			&t.DueDate, &t.Assignee); err != nil {
			return nil, types.Storagef("scan task row", err)
		}
		tasks = append(tasks, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, types.Storagef("iterate task rows", err)
	}
	return tasks, nil
}
