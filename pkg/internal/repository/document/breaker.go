package document

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/yeisme/photovault/pkg/configs"
	"github.com/yeisme/photovault/pkg/internal/storage/kv"
	nlog "github.com/yeisme/photovault/pkg/log"
)

// breakerStore 基于 gobreaker 的文档引擎熔断包装.
// 键不存在属于正常业务结果，不计入失败.
type breakerStore struct {
	inner kv.Store
	cb    *gobreaker.CircuitBreaker
}

// guard 按配置包装引擎.
func guard(inner kv.Store, cfg *configs.CircuitBreakerConfig) kv.Store {
	settings := gobreaker.Settings{
		Name:        "document-engine",
		MaxRequests: cfg.MaxRequestsInHalf,
		Interval:    time.Duration(cfg.IntervalSeconds) * time.Second,
		Timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			total := counts.Requests
			if total < cfg.MinRequests {
				return false
			}
			// 失败比例
			failureRate := float64(counts.TotalFailures) / float64(total)
			return failureRate >= cfg.FailureRate
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, kv.ErrKeyNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			nlog.Logger().Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("document engine breaker state changed")
		},
	}

	return &breakerStore{inner: inner, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (s *breakerStore) exec(fn func() ([]byte, error)) ([]byte, error) {
	raw, err := s.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		return nil, err
	}

	value, _ := raw.([]byte)

	return value, nil
}

func (s *breakerStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.exec(func() ([]byte, error) {
		return s.inner.Get(ctx, key)
	})
}

func (s *breakerStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.exec(func() ([]byte, error) {
		return nil, s.inner.Set(ctx, key, value)
	})

	return err
}

func (s *breakerStore) Delete(ctx context.Context, key string) error {
	_, err := s.exec(func() ([]byte, error) {
		return nil, s.inner.Delete(ctx, key)
	})

	return err
}

func (s *breakerStore) Exists(ctx context.Context, key string) (bool, error) {
	var found bool

	_, err := s.exec(func() ([]byte, error) {
		var innerErr error
		found, innerErr = s.inner.Exists(ctx, key)

		return nil, innerErr
	})

	return found, err
}

func (s *breakerStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	_, err := s.exec(func() ([]byte, error) {
		var innerErr error
		keys, innerErr = s.inner.List(ctx, prefix)

		return nil, innerErr
	})

	return keys, err
}

func (s *breakerStore) Close() error {
	return s.inner.Close()
}
