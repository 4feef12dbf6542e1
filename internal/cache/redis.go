package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"busbook/internal/domain/models"
	"busbook/internal/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	snapshotKeyPrefix = "busbook:snapshot:"
	versionKeyPrefix  = "busbook:snapshot-version:"
)

// Redis shares snapshots between API replicas.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, tripID string) (models.TripSnapshot, bool) {
	raw, err := r.client.Get(ctx, snapshotKeyPrefix+tripID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			utils.Logger().Warn("snapshot cache read failed", zap.String("trip_id", tripID), zap.Error(err))
		}
		return models.TripSnapshot{}, false
	}
	var snap models.TripSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return models.TripSnapshot{}, false
	}
	return snap, true
}

func (r *Redis) Version(ctx context.Context, tripID string) int64 {
	v, err := r.client.Get(ctx, versionKeyPrefix+tripID).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		utils.Logger().Warn("snapshot version read failed", zap.String("trip_id", tripID), zap.Error(err))
		return -1
	}
	return v
}

// Set writes snap under WATCH on the version key, so an Invalidate issued
// after version was read aborts the write.
func (r *Redis) Set(ctx context.Context, snap models.TripSnapshot, version int64) {
	if version < 0 {
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	versionKey := versionKeyPrefix + snap.TripID
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, snapshotKeyPrefix+snap.TripID, raw, r.ttl)
			return nil
		})
		return err
	}, versionKey)
	if err != nil && !errors.Is(err, redis.TxFailedErr) {
		utils.Logger().Warn("snapshot cache write failed", zap.String("trip_id", snap.TripID), zap.Error(err))
	}
}

func (r *Redis) Invalidate(ctx context.Context, tripID string) {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKeyPrefix+tripID)
		pipe.Del(ctx, snapshotKeyPrefix+tripID)
		return nil
	})
	if err != nil {
		utils.Logger().Warn("snapshot cache invalidate failed", zap.String("trip_id", tripID), zap.Error(err))
	}
}
