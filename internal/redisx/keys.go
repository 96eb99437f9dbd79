package redisx

import "time"

const (
	// Task status record: task:{task_id} -> JSON tasks.Status
	KeyTaskStatus = "task:%s"

	// Dedup task execution: dedup:{service}:{task_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLTaskStatus = 7 * 24 * time.Hour
	TTLDedup      = 48 * time.Hour
)
