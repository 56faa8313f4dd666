package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBusConfig 描述 Redis 总线的连接参数。
type RedisBusConfig struct {
	Address   string
	Password  string
	DB        int
	Stream    string
	BlockWait time.Duration
}

// RedisBus 使用 Redis list 实现事件总线。
type RedisBus struct {
	client *redis.Client
	stream string
	wait   time.Duration
}

// NewRedisBus 创建 Redis 总线实例。
func NewRedisBus(cfg RedisBusConfig) (*RedisBus, error) {
	if cfg.Address == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	stream := cfg.Stream
	if stream == "" {
		stream = "smartaccount:events"
	}
	wait := cfg.BlockWait
	if wait <= 0 {
		wait = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return &RedisBus{client: client, stream: stream, wait: wait}, nil
}

// Publish 将事件序列化后投递到 Redis。
func (b *RedisBus) Publish(ctx context.Context, event Event) error {
	payload, err := event.encode()
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}
	if err := b.client.LPush(ctx, b.stream, payload).Err(); err != nil {
		return fmt.Errorf("Redis 发布事件失败: %w", err)
	}
	return nil
}

// Subscribe 通过 BRPOP 从 Redis 获取事件。
func (b *RedisBus) Subscribe(ctx context.Context, workerCount int, handler Handler) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	errCh := make(chan error, workerCount)
	for i := 0; i < workerCount; i++ {
		go func() {
			for {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				default:
				}
				values, err := b.client.BRPop(ctx, b.wait, b.stream).Result()
				if err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
						errCh <- err
						return
					}
					if err == redis.Nil {
						continue
					}
					errCh <- fmt.Errorf("Redis 取事件失败: %w", err)
					return
				}
				if len(values) != 2 {
					continue
				}
				event, err := decodeEvent([]byte(values[1]))
				if err != nil {
					continue
				}
				if handlerErr := handler(ctx, event); handlerErr != nil {
					// 处理失败时重新投递事件。
					if payload, encodeErr := event.encode(); encodeErr == nil {
						_ = b.client.RPush(ctx, b.stream, payload).Err()
					}
				}
			}
		}()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Close 关闭 Redis 连接。
func (b *RedisBus) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}

var _ Bus = (*RedisBus)(nil)
