package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/video-analitics/queuesorter/pkg/logger"
	"github.com/video-analitics/queuesorter/pkg/models"
)

// Redis keeps one hash per item (field name -> JSON value) plus a set of
// known item ids so the namespace can be listed and cleared.
type Redis struct {
	client    *redis.Client
	namespace string
}

func NewRedis(client *redis.Client, namespace string) *Redis {
	return &Redis{client: client, namespace: namespace}
}

func (r *Redis) itemKey(id string) string {
	return fmt.Sprintf("queuesorter:%s:item:%s", r.namespace, id)
}

func (r *Redis) indexKey() string {
	return fmt.Sprintf("queuesorter:%s:items", r.namespace)
}

func (r *Redis) Get(ctx context.Context, id string) (models.Fields, bool, error) {
	raw, err := r.client.HGetAll(ctx, r.itemKey(id)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if len(raw) == 0 {
		return nil, false, nil
	}

	fields := make(models.Fields, len(raw))
	for name, data := range raw {
		var v models.Value
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			logger.Log.Debug().Err(err).Str("item_id", id).Str("field", name).Msg("skip undecodable cache field")
			continue
		}
		fields[models.FieldName(name)] = v
	}
	return fields, true, nil
}

func (r *Redis) Merge(ctx context.Context, id string, fields models.Fields) error {
	fields = persistable(fields)
	if len(fields) == 0 {
		return nil
	}

	values := make(map[string]interface{}, len(fields))
	for name, v := range fields {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		values[string(name)] = data
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.itemKey(id), values)
	pipe.SAdd(ctx, r.indexKey(), id)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Redis) Invalidate(ctx context.Context, id string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.itemKey(id))
	pipe.SRem(ctx, r.indexKey(), id)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Redis) Clear(ctx context.Context) error {
	ids, err := r.IDs(ctx)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, r.itemKey(id))
	}
	keys = append(keys, r.indexKey())
	return r.client.Del(ctx, keys...).Err()
}

func (r *Redis) IDs(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err == redis.Nil {
		return nil, nil
	}
	return ids, err
}
