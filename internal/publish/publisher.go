package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	bmh "github.com/zing-dev/bmh-sdk"
)

// Measurement is one completed cycle as it goes out on the channel.
type Measurement struct {
	Time        time.Time            `json:"time"`
	Mode        bmh.Mode             `json:"mode"`
	Profile     bmh.UserProfile      `json:"profile"`
	Impedance   bmh.ImpedanceReading `json:"impedance"`
	Composition *bmh.BodyComposition `json:"composition"`
	Levels      *bmh.LevelReport     `json:"levels,omitempty"`
}

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Publisher fans measurements out over Redis Pub/Sub. Nothing is kept on the
// server side.
type Publisher struct {
	client  redisPublisher
	closer  func() error
	channel string
	log     logrus.FieldLogger
}

func NewPublisher(ctx context.Context, addr, password, channel string, db, poolSize int, log logrus.FieldLogger) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})

	// 测试连接
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	log.WithField("addr", addr).Info("redis connected")

	return &Publisher{
		client:  client,
		closer:  client.Close,
		channel: channel,
		log:     log,
	}, nil
}

// Publish 发布一次测量结果, 返回收到消息的订阅者数量
func (p *Publisher) Publish(ctx context.Context, m *Measurement) (int64, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return 0, fmt.Errorf("encode measurement: %w", err)
	}
	receivers, err := p.client.Publish(ctx, p.channel, data).Result()
	if err != nil {
		return 0, fmt.Errorf("publish to %s: %w", p.channel, err)
	}
	p.log.WithFields(logrus.Fields{"channel": p.channel, "receivers": receivers}).Debug("measurement published")
	return receivers, nil
}

func (p *Publisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}
