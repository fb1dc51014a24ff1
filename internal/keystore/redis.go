package keystore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const keyPrefix = "apikey:"

// Redis stores key metadata as JSON documents indexed by the key id. The raw
// key never hits Redis; validation compares against a bcrypt hash.
type Redis struct {
	client *redis.Client
}

type redisRecord struct {
	KeyInfo
	SecretHash string `json:"secret_hash"`
}

// Conn opens and pings a Redis connection.
func Conn(ctx context.Context, host, port, password string, db int, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", host, port),
		DialTimeout: timeout,
		Password:    password,
		DB:          db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("keystore: redis ping failed: %w", err)
	}
	return client, nil
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Issue(ctx context.Context, user string) (string, error) {
	key, err := generateKey(user)
	if err != nil {
		return "", err
	}
	id, _, err := splitKey(key)
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("keystore: failed to hash key: %w", err)
	}
	rec := redisRecord{
		KeyInfo:    KeyInfo{ID: id, User: user, CreatedAt: time.Now().UTC()},
		SecretHash: string(hash),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	if err := r.client.Set(ctx, keyPrefix+id, data, 0).Err(); err != nil {
		return "", fmt.Errorf("keystore: failed to store key: %w", err)
	}
	return key, nil
}

func (r *Redis) Validate(ctx context.Context, key string) (KeyInfo, error) {
	id, _, err := splitKey(key)
	if err != nil {
		return KeyInfo{}, err
	}
	val, err := r.client.Get(ctx, keyPrefix+id).Result()
	if err == redis.Nil {
		return KeyInfo{}, ErrInvalidKey
	}
	if err != nil {
		return KeyInfo{}, fmt.Errorf("keystore: redis get failed: %w", err)
	}
	var rec redisRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return KeyInfo{}, fmt.Errorf("keystore: corrupt key record: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.SecretHash), []byte(key)) != nil {
		return KeyInfo{}, ErrInvalidKey
	}
	return rec.KeyInfo, nil
}

func (r *Redis) List(ctx context.Context) ([]KeyInfo, error) {
	var out []KeyInfo
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		val, err := r.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			return nil, fmt.Errorf("keystore: redis get failed: %w", err)
		}
		var rec redisRecord
		if err := json.Unmarshal([]byte(val), &rec); err != nil {
			return nil, fmt.Errorf("keystore: corrupt key record: %w", err)
		}
		out = append(out, rec.KeyInfo)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("keystore: redis scan failed: %w", err)
	}
	return out, nil
}

func (r *Redis) Revoke(ctx context.Context, key string) error {
	id, _, err := splitKey(key)
	if err != nil {
		return err
	}
	n, err := r.client.Del(ctx, keyPrefix+id).Result()
	if err != nil {
		return fmt.Errorf("keystore: redis del failed: %w", err)
	}
	if n == 0 {
		return ErrInvalidKey
	}
	return nil
}
