package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const lastSeenKeyPrefix = "presence:last_seen:"

// LastSeenRepo persists last-seen timestamps in Redis so they survive
// restarts of the realtime process.
type LastSeenRepo struct {
	client *redis.Client
}

// NewLastSeenRepo constructs a LastSeenRepo from an existing client.
func NewLastSeenRepo(client *redis.Client) *LastSeenRepo {
	return &LastSeenRepo{client: client}
}

// SetLastSeen records when the user's last connection closed.
func (r *LastSeenRepo) SetLastSeen(ctx context.Context, userID string, t time.Time) error {
	return r.client.Set(ctx, lastSeenKeyPrefix+userID, t.UTC().Format(time.RFC3339Nano), 0).Err()
}

// GetLastSeen returns the stored timestamp, with ok=false when the user has
// never been seen.
func (r *LastSeenRepo) GetLastSeen(ctx context.Context, userID string) (time.Time, bool, error) {
	val, err := r.client.Get(ctx, lastSeenKeyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}
