// Package redisstore keeps chat history in Redis sorted sets scored by
// sequence number.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Dracko000/meet/internal/domain"
	"github.com/Dracko000/meet/internal/history"

	"github.com/redis/go-redis/v9"
)

// appendScript bumps the room counter and stores the record under the new
// sequence number in one atomic step.
var appendScript = redis.NewScript(`
	local seq = redis.call('INCR', KEYS[1])
	redis.call('ZADD', KEYS[2], seq, seq .. ':' .. ARGV[1])
	return seq
`)

type record struct {
	SenderID  string `json:"s"`
	Body      string `json:"b"`
	CreatedAt int64  `json:"t"`
}

type Store struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

var _ history.Store = (*Store)(nil)

func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "meet:"
	}
	return &Store{client: client, prefix: prefix, now: time.Now}
}

func (s *Store) seqKey(roomID string) string { return s.prefix + "room:" + roomID + ":seq" }
func (s *Store) logKey(roomID string) string { return s.prefix + "room:" + roomID + ":log" }

func (s *Store) Append(ctx context.Context, roomID, senderID, body string) (domain.ChatMessage, error) {
	now := s.now().UTC().Truncate(time.Millisecond)
	data, err := json.Marshal(record{SenderID: senderID, Body: body, CreatedAt: now.UnixMilli()})
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("%w: encode record: %w", domain.ErrPersistence, err)
	}

	seq, err := appendScript.Run(ctx, s.client, []string{s.seqKey(roomID), s.logKey(roomID)}, string(data)).Int64()
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("%w: redis append: %w", domain.ErrPersistence, err)
	}

	return domain.ChatMessage{
		RoomID:    roomID,
		Seq:       seq,
		SenderID:  senderID,
		Body:      body,
		CreatedAt: now,
	}, nil
}

func (s *Store) List(ctx context.Context, roomID string, limit int, before int64) ([]domain.ChatMessage, error) {
	limit = history.NormalizeLimit(limit)

	max := "+inf"
	if before > 0 {
		max = "(" + strconv.FormatInt(before, 10)
	}
	members, err := s.client.ZRevRangeByScore(ctx, s.logKey(roomID), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   max,
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: redis list: %w", domain.ErrPersistence, err)
	}

	out := make([]domain.ChatMessage, 0, len(members))
	for _, member := range members {
		m, err := decodeMember(roomID, member)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
		}
		out = append(out, m)
	}

	history.Reverse(out)
	return out, nil
}

// Close releases the client.
func (s *Store) Close() error { return s.client.Close() }

func decodeMember(roomID, member string) (domain.ChatMessage, error) {
	seqStr, data, ok := strings.Cut(member, ":")
	if !ok {
		return domain.ChatMessage{}, fmt.Errorf("malformed history entry %q", member)
	}
	seq, err := strconv.ParseInt(seqStr, 10, 64)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("malformed history seq %q: %w", seqStr, err)
	}
	var rec record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("malformed history record: %w", err)
	}
	return domain.ChatMessage{
		RoomID:    roomID,
		Seq:       seq,
		SenderID:  rec.SenderID,
		Body:      rec.Body,
		CreatedAt: time.UnixMilli(rec.CreatedAt).UTC(),
	}, nil
}
