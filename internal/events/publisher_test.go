package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealradar/dealradar/internal/config"
	"github.com/dealradar/dealradar/internal/domain"
	"github.com/dealradar/dealradar/internal/logger"
)

// fakeAdder records XAdd calls without a Redis server.
type fakeAdder struct {
	args   []*redis.XAddArgs
	addErr error
}

func (f *fakeAdder) XAdd(_ context.Context, args *redis.XAddArgs) *redis.StringCmd {
	f.args = append(f.args, args)
	cmd := redis.NewStringCmd(context.Background())
	if f.addErr != nil {
		cmd.SetErr(f.addErr)
	} else {
		cmd.SetVal("1-0")
	}
	return cmd
}

func (f *fakeAdder) Close() error { return nil }

func testRedisConfig() config.RedisConfig {
	return config.RedisConfig{
		Addr:         "localhost:6379",
		DealStream:   "dealradar:deals",
		MaxStreamLen: 100,
	}
}

func testEvent() DealEvent {
	product := &domain.Product{
		ID:       "prod-1",
		Source:   "example-shop",
		Title:    "Blue Kettle",
		Currency: "USD",
	}
	deal := &domain.Deal{ID: "deal-1", ProductID: "prod-1", DealType: domain.DealTypePriceDrop}
	return NewDealEvent(TypeDealCreated, product, deal, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
}

func TestStreamPublisher_Publish(t *testing.T) {
	adder := &fakeAdder{}
	pub := newStreamPublisher(adder, testRedisConfig(), logger.NewNoOp())

	err := pub.Publish(context.Background(), testEvent())
	require.NoError(t, err)

	require.Len(t, adder.args, 1)
	args := adder.args[0]
	assert.Equal(t, "dealradar:deals", args.Stream)
	assert.Equal(t, int64(100), args.MaxLen)
	assert.True(t, args.Approx)

	payload, ok := args.Values.(map[string]any)[EventField].(string)
	require.True(t, ok)

	var decoded DealEvent
	require.NoError(t, json.Unmarshal([]byte(payload), &decoded))
	assert.Equal(t, TypeDealCreated, decoded.Type)
	assert.Equal(t, "prod-1", decoded.ProductID)
	assert.Equal(t, "example-shop", decoded.Source)
	require.NotNil(t, decoded.Deal)
	assert.Equal(t, "deal-1", decoded.Deal.ID)
}

func TestStreamPublisher_PublishError(t *testing.T) {
	adder := &fakeAdder{addErr: errors.New("connection refused")}
	pub := newStreamPublisher(adder, testRedisConfig(), logger.NewNoOp())

	err := pub.Publish(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dealradar:deals")
}

func TestNopPublisher(t *testing.T) {
	pub := NewNopPublisher()
	assert.NoError(t, pub.Publish(context.Background(), testEvent()))
	assert.NoError(t, pub.Close())
}
