package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"vitalrisk/internal/feedback/models"
	id "vitalrisk/pkg/domain"
)

const (
	allEntriesKey      = "feedback:all"
	patientEntriesKeyF = "feedback:patient:%s"
)

// RedisStore keeps entries as JSON members of sorted sets scored by
// submission time in microseconds: one set for the whole ledger and one per
// patient. Both sets are written in a single MULTI/EXEC.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Append(ctx context.Context, e *models.Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal feedback entry: %w", err)
	}
	member := redis.Z{Score: float64(e.SubmittedAt.UnixMicro()), Member: payload}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, allEntriesKey, member)
		pipe.ZAdd(ctx, patientKey(e.PatientID), member)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append feedback entry: %w", err)
	}
	return nil
}

func (s *RedisStore) ListAll(ctx context.Context) ([]*models.Entry, error) {
	return s.rangeNewestFirst(ctx, allEntriesKey)
}

func (s *RedisStore) ListByPatient(ctx context.Context, pid id.PatientID) ([]*models.Entry, error) {
	return s.rangeNewestFirst(ctx, patientKey(pid))
}

func (s *RedisStore) rangeNewestFirst(ctx context.Context, key string) ([]*models.Entry, error) {
	members, err := s.client.ZRevRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read feedback entries: %w", err)
	}
	out := make([]*models.Entry, 0, len(members))
	for _, m := range members {
		var e models.Entry
		if err := json.Unmarshal([]byte(m), &e); err != nil {
			return nil, fmt.Errorf("decode feedback entry: %w", err)
		}
		out = append(out, &e)
	}
	return out, nil
}

func patientKey(pid id.PatientID) string {
	return fmt.Sprintf(patientEntriesKeyF, pid)
}
