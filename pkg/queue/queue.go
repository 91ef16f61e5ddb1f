package queue

import (
	"github.com/hibiken/asynq"
	"github.com/hugh/bizops/pkg/config"
)

// Queue names. Mail delivery runs ahead of everything else so verification
// links arrive while they are still valid.
const (
	QueueMail    = "mail"
	QueueDefault = "default"
)

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
	}
}

func NewClient(cfg *config.RedisConfig) *asynq.Client {
	return asynq.NewClient(redisOpt(cfg))
}

func NewServer(cfg *config.RedisConfig, concurrency int) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 10
	}

	return asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				QueueMail:    6,
				QueueDefault: 3,
			},
		},
	)
}
