package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/codecollab/codecollab/ot"
)

func roomKey(id string) string             { return fmt.Sprintf("room:%s", id) }
func roomOpsKey(id string) string          { return fmt.Sprintf("room:%s:ops", id) }
func roomParticipantsKey(id string) string { return fmt.Sprintf("room:%s:participants", id) }

const roomIndexKey = "rooms"

// RedisStore is a SessionStore backed by Redis. Room metadata lives in a
// hash, the op log in a list, and the roster in a second hash.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects a client from a redis URL and verifies the
// connection.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) CreateRoom(ctx context.Context, id, content string) error {
	now := time.Now()
	created, err := s.client.HSetNX(ctx, roomKey(id), "id", id).Result()
	if err != nil {
		return err
	}
	if !created {
		return fmt.Errorf("room %q: %w", id, ErrRoomExists)
	}
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, roomKey(id),
		"content", content,
		"version", 0,
		"created_at", now.UnixMilli(),
		"updated_at", now.UnixMilli(),
	)
	pipe.SAdd(ctx, roomIndexKey, id)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) GetRoom(ctx context.Context, id string) (*RoomInfo, error) {
	fields, err := s.client.HGetAll(ctx, roomKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("room %q: %w", id, ErrRoomNotFound)
	}
	return roomInfoFromHash(id, fields)
}

func (s *RedisStore) ListRooms(ctx context.Context) ([]RoomInfo, error) {
	ids, err := s.client.SMembers(ctx, roomIndexKey).Result()
	if err != nil {
		return nil, err
	}
	result := make([]RoomInfo, 0, len(ids))
	for _, id := range ids {
		info, err := s.GetRoom(ctx, id)
		if err != nil {
			if errors.Is(err, ErrRoomNotFound) {
				continue
			}
			return nil, err
		}
		result = append(result, *info)
	}
	return result, nil
}

func (s *RedisStore) DeleteRoom(ctx context.Context, id string) error {
	removed, err := s.client.SRem(ctx, roomIndexKey, id).Result()
	if err != nil {
		return err
	}
	if removed == 0 {
		return fmt.Errorf("room %q: %w", id, ErrRoomNotFound)
	}
	return s.client.Del(ctx, roomKey(id), roomOpsKey(id), roomParticipantsKey(id)).Err()
}

func (s *RedisStore) UpdateContent(ctx context.Context, id, content string, version int) error {
	if err := s.exists(ctx, id); err != nil {
		return err
	}
	return s.client.HSet(ctx, roomKey(id),
		"content", content,
		"version", version,
		"updated_at", time.Now().UnixMilli(),
	).Err()
}

func (s *RedisStore) AppendOperation(ctx context.Context, id string, op ot.Operation, version int) error {
	if err := s.exists(ctx, id); err != nil {
		return err
	}
	encoded, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("encode operation: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, roomOpsKey(id), encoded)
	pipe.HSet(ctx, roomKey(id), "version", version, "updated_at", time.Now().UnixMilli())
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Operations(ctx context.Context, id string, fromVersion int) ([]ot.Operation, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}
	raw, err := s.client.LRange(ctx, roomOpsKey(id), int64(fromVersion), -1).Result()
	if err != nil {
		return nil, err
	}
	ops := make([]ot.Operation, 0, len(raw))
	for _, entry := range raw {
		var op ot.Operation
		if err := json.Unmarshal([]byte(entry), &op); err != nil {
			return nil, fmt.Errorf("decode operation: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func (s *RedisStore) AddParticipant(ctx context.Context, roomID string, p Participant) error {
	if err := s.exists(ctx, roomID); err != nil {
		return err
	}
	encoded, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode participant: %w", err)
	}
	return s.client.HSet(ctx, roomParticipantsKey(roomID), p.ID, encoded).Err()
}

func (s *RedisStore) RemoveParticipant(ctx context.Context, roomID, participantID string) error {
	if err := s.exists(ctx, roomID); err != nil {
		return err
	}
	return s.client.HDel(ctx, roomParticipantsKey(roomID), participantID).Err()
}

func (s *RedisStore) Participants(ctx context.Context, roomID string) ([]Participant, error) {
	if err := s.exists(ctx, roomID); err != nil {
		return nil, err
	}
	fields, err := s.client.HGetAll(ctx, roomParticipantsKey(roomID)).Result()
	if err != nil {
		return nil, err
	}
	result := make([]Participant, 0, len(fields))
	for _, entry := range fields {
		var p Participant
		if err := json.Unmarshal([]byte(entry), &p); err != nil {
			return nil, fmt.Errorf("decode participant: %w", err)
		}
		result = append(result, p)
	}
	return result, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) exists(ctx context.Context, id string) error {
	n, err := s.client.Exists(ctx, roomKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("room %q: %w", id, ErrRoomNotFound)
	}
	return nil
}

func roomInfoFromHash(id string, fields map[string]string) (*RoomInfo, error) {
	info := &RoomInfo{ID: id, Content: fields["content"]}
	if v := fields["version"]; v != "" {
		if _, err := fmt.Sscanf(v, "%d", &info.Version); err != nil {
			return nil, fmt.Errorf("decode version %q: %w", v, err)
		}
	}
	var createdMs, updatedMs int64
	if v := fields["created_at"]; v != "" {
		fmt.Sscanf(v, "%d", &createdMs)
		info.CreatedAt = time.UnixMilli(createdMs)
	}
	if v := fields["updated_at"]; v != "" {
		fmt.Sscanf(v, "%d", &updatedMs)
		info.UpdatedAt = time.UnixMilli(updatedMs)
	}
	return info, nil
}
