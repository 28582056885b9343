package redisstore

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/Dracko000/meet/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *Store {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available at %s: %v", addr, err)
	}

	prefix := "meet-test-" + uuid.NewString() + ":"
	t.Cleanup(func() {
		ctx := context.Background()
		var cursor uint64
		for {
			keys, next, err := client.Scan(ctx, cursor, prefix+"*", 100).Result()
			if err != nil {
				break
			}
			if len(keys) > 0 {
				client.Del(ctx, keys...)
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
		_ = client.Close()
	})
	return New(client, prefix)
}

func TestStore_AppendAndList(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	for i := 1; i <= 6; i++ {
		m, err := s.Append(ctx, "r1", "A", fmt.Sprintf("m:%d", i))
		require.NoError(t, err)
		assert.Equal(t, int64(i), m.Seq)
	}
	other, err := s.Append(ctx, "r2", "B", "elsewhere")
	require.NoError(t, err)
	assert.Equal(t, int64(1), other.Seq)

	latest, err := s.List(ctx, "r1", 2, 0)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, int64(5), latest[0].Seq)
	assert.Equal(t, "m:6", latest[1].Body)
	assert.Equal(t, "A", latest[1].SenderID)

	older, err := s.List(ctx, "r1", 10, 5)
	require.NoError(t, err)
	require.Len(t, older, 4)
	assert.Equal(t, int64(1), older[0].Seq)
	assert.Equal(t, int64(4), older[3].Seq)
}

func TestStore_ConcurrentAppends(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	const n = 100

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seqs []int64
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := s.Append(ctx, "hot", "A", "x")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			seqs = append(seqs, m.Seq)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	for i, seq := range seqs {
		require.Equal(t, int64(i+1), seq)
	}
}

func TestStore_UnreachableIsPersistenceFailure(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	s := New(client, "")
	defer s.Close()

	_, err := s.Append(context.Background(), "r1", "A", "x")
	require.Error(t, err)
	assert.Equal(t, domain.KindPersistenceFailure, domain.KindOf(err))

	_, err = s.List(context.Background(), "r1", 10, 0)
	assert.Equal(t, domain.KindPersistenceFailure, domain.KindOf(err))
}

func TestDecodeMember(t *testing.T) {
	m, err := decodeMember("r1", `7:{"s":"A","b":"a:b","t":1700000000000}`)
	require.NoError(t, err)
	assert.Equal(t, int64(7), m.Seq)
	assert.Equal(t, "a:b", m.Body)
	assert.Equal(t, "r1", m.RoomID)

	_, err = decodeMember("r1", "garbage")
	assert.Error(t, err)
}
