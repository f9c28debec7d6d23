package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"smart-campus/backend/pkg/mq"
	"smart-campus/backend/pkg/redis"
)

// ── 学期写入锁 ──

// TermLocker 同一学期的 apply 串行执行
type TermLocker interface {
	// Lock 获取学期锁；返回的 unlock 必须调用
	Lock(ctx context.Context, term string) (unlock func(), err error)
}

// localLocker 未启用 Redis 时的进程内实现
// 每个学期一个容量为 1 的信号量，等待期间可被 ctx 取消
type localLocker struct {
	mu    sync.Mutex
	terms map[string]chan struct{}
}

// NewLocalLocker 进程内学期锁（单实例部署）
func NewLocalLocker() TermLocker {
	return &localLocker{terms: make(map[string]chan struct{})}
}

func (l *localLocker) Lock(ctx context.Context, term string) (func(), error) {
	l.mu.Lock()
	sem, ok := l.terms[term]
	if !ok {
		sem = make(chan struct{}, 1)
		l.terms[term] = sem
	}
	l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case sem <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-sem }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type redisLocker struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisLocker 基于 Redis SET NX 的学期锁（多实例部署）
func NewRedisLocker(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) TermLocker {
	return &redisLocker{rdb: rdb, ttl: ttl, logger: logger}
}

func (l *redisLocker) Lock(ctx context.Context, term string) (func(), error) {
	lock, err := l.rdb.AcquireLock(ctx, lockKey(term), l.ttl)
	if err != nil {
		if errors.Is(err, redis.ErrLockHeld) {
			return nil, ErrApplyInProgress
		}
		return nil, err
	}
	return func() {
		// 释放使用独立 ctx，请求取消后仍需归还锁
		releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil {
			l.logger.Warn("释放学期锁失败", zap.String("term", term), zap.Error(err))
		}
	}, nil
}

// ── 课表视图缓存 ──

// ViewCache 按学期版本号缓存个人周课表；apply 成功后版本号递增，旧缓存自然失效
type ViewCache interface {
	Version(ctx context.Context, term string) (int64, error)
	Bump(ctx context.Context, term string) error
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, v interface{}) error
}

// noopCache 未启用 Redis 时不缓存
type noopCache struct{}

// NewNoopCache 不做缓存的实现
func NewNoopCache() ViewCache { return noopCache{} }

func (noopCache) Version(context.Context, string) (int64, error)         { return 0, nil }
func (noopCache) Bump(context.Context, string) error                     { return nil }
func (noopCache) Get(context.Context, string, interface{}) (bool, error) { return false, nil }
func (noopCache) Set(context.Context, string, interface{}) error         { return nil }

type redisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache 基于 Redis 的视图缓存
func NewRedisCache(rdb *redis.Client, ttl time.Duration) ViewCache {
	return &redisCache{rdb: rdb, ttl: ttl}
}

func (c *redisCache) Version(ctx context.Context, term string) (int64, error) {
	return c.rdb.GetVersion(ctx, versionKey(term))
}

func (c *redisCache) Bump(ctx context.Context, term string) error {
	_, err := c.rdb.IncrVersion(ctx, versionKey(term))
	return err
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	return c.rdb.GetJSON(ctx, key, dest)
}

func (c *redisCache) Set(ctx context.Context, key string, v interface{}) error {
	return c.rdb.SetJSON(ctx, key, v, c.ttl)
}

// ── 领域事件 ──

// 事件名（即 RabbitMQ routing key）
const EventTimetableApplied = "timetable.applied"

// TimetableAppliedEvent apply 成功后发布的事件负载
type TimetableAppliedEvent struct {
	Term       string    `json:"term"`
	SectionIDs []string  `json:"section_ids"`
	AppliedBy  string    `json:"applied_by"`
	AppliedAt  time.Time `json:"applied_at"`
}

// EventPublisher 领域事件发布
type EventPublisher interface {
	Publish(ctx context.Context, event string, payload interface{}) error
}

type noopPublisher struct{}

// NewNoopPublisher 未启用消息队列时丢弃事件
func NewNoopPublisher() EventPublisher { return noopPublisher{} }

func (noopPublisher) Publish(context.Context, string, interface{}) error { return nil }

// NewMQPublisher 包装 RabbitMQ 发布器；p 为 nil 时退化为丢弃
func NewMQPublisher(p *mq.Publisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}

// ── 键 ──

func lockKey(term string) string    { return "timetable:lock:" + term }
func versionKey(term string) string { return "timetable:version:" + term }

func weeklyKey(term string, version int64, role, userID string) string {
	return fmt.Sprintf("timetable:weekly:%s:v%d:%s:%s", term, version, role, userID)
}
