package server

import (
	"io"

	"kakrola/config"
	"kakrola/internal/billing"
	"kakrola/internal/cache"
	"kakrola/internal/health"
	"kakrola/internal/logs"
	"kakrola/internal/notify"
)

// Выбор внешних бэкендов по конфигу. Пустой адрес/ключ — локальная
// реализация без сети, чтобы сервис поднимался в dev без окружения.

func newBillingGateway(cfg *config.Config) billing.Gateway {
	if cfg.Billing.StripeKey == "" {
		logs.Logger.Warn("billing: stripe key not set, seat updates are logged only")
		return billing.LocalGateway{}
	}
	return billing.NewStripeGateway(cfg.Billing.StripeKey, cfg.Billing.Proration)
}

func newNotifier(cfg *config.Config) (notify.Notifier, io.Closer, error) {
	if cfg.Notify.AMQPURL == "" {
		return notify.LogNotifier{}, nil, nil
	}
	n, err := notify.NewAMQPNotifier(cfg.Notify.AMQPURL, cfg.Notify.Queue)
	if err != nil {
		return nil, nil, err
	}
	return n, n, nil
}

func newCache(cfg *config.Config) (cache.Cache, []health.Check, io.Closer, error) {
	if cfg.Cache.RedisURL == "" {
		return cache.NewMemory(), nil, nil, nil
	}
	r, err := cache.NewRedis(cfg.Cache.RedisURL, "kakrola:")
	if err != nil {
		return nil, nil, nil, err
	}
	return r, []health.Check{{Name: "redis", Ping: r.Ping}}, r, nil
}
