package db

import "time"

type SubmissionQueue struct {
	ID       string    `db:"id"`
	Kind     string    `db:"kind"`
	Source   string    `db:"source"`
	Mode     string    `db:"mode"`
	MediaID  string    `db:"media_id"`
	Enqueued time.Time `db:"enqueued"`
}
