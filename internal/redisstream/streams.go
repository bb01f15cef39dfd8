package redisstream

import (
	"context"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// Message 流中的一条录制消息
type Message struct {
	Stream string
	ID     string
	Values map[string]interface{}
}

// Data 提取消息的 data 字段（录制 JSON 原文），缺失或类型不符时返回 false
func (m Message) Data() (string, bool) {
	val, ok := m.Values["data"]
	if !ok {
		return "", false
	}
	str, ok := val.(string)
	return str, ok
}

// PublishRecording 将一份完整录制写入流
//
// data 为录制 JSON 原文；device_id / recording_id 冗余为独立字段，
// 便于不解包负载就能观察流内容。
func PublishRecording(ctx context.Context, client *redis.Client, stream, deviceID, recordingID string, payload []byte) (string, error) {
	return client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"data":         string(payload),
			"device_id":    deviceID,
			"recording_id": recordingID,
			"timestamp":    time.Now().Unix(),
		},
	}).Result()
}

// Read 以消费者组身份批量读取消息，阻塞至多 5 秒
func Read(ctx context.Context, client *redis.Client, stream, group, consumer string, count int64) ([]Message, error) {
	streams, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    time.Second * 5,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var messages []Message
	for _, s := range streams {
		for _, msg := range s.Messages {
			messages = append(messages, Message{
				Stream: s.Stream,
				ID:     msg.ID,
				Values: msg.Values,
			})
		}
	}
	return messages, nil
}

// Ack 确认消息已处理，防止滞留在 pending 列表里被重复投递
func Ack(ctx context.Context, client *redis.Client, stream, group string, ids ...string) error {
	return client.XAck(ctx, stream, group, ids...).Err()
}

// EnsureGroup 创建消费者组；流不存在时一并创建，组已存在时忽略
func EnsureGroup(ctx context.Context, client *redis.Client, stream, group string) error {
	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}
