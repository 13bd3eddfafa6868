package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisDeduper_Acquire(t *testing.T) {
	const window = 5 * time.Minute
	key := DedupKey("ev-1", "Update: Swim Lessons")

	tests := []struct {
		name    string
		mock    func(mock redismock.ClientMock)
		want    bool
		wantErr bool
	}{
		{
			name: "first notification in window",
			mock: func(mock redismock.ClientMock) {
				mock.ExpectSetNX(key, "1", window).SetVal(true)
			},
			want: true,
		},
		{
			name: "duplicate inside window",
			mock: func(mock redismock.ClientMock) {
				mock.ExpectSetNX(key, "1", window).SetVal(false)
			},
			want: false,
		},
		{
			name: "redis unavailable",
			mock: func(mock redismock.ClientMock) {
				mock.ExpectSetNX(key, "1", window).SetErr(errors.New("connection refused"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := redismock.NewClientMock()
			tt.mock(mock)

			got, err := NewRedisDeduper(db, window).Acquire(context.Background(), "ev-1", "Update: Swim Lessons")
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRedisDeduper_ReleaseAllowsRetry(t *testing.T) {
	const window = 5 * time.Minute
	ctx := context.Background()
	key := DedupKey("ev-1", "Spot available: Swim Lessons")

	db, mock := redismock.NewClientMock()
	mock.ExpectSetNX(key, "1", window).SetVal(true)
	mock.ExpectDel(key).SetVal(1)
	mock.ExpectSetNX(key, "1", window).SetVal(true)

	d := NewRedisDeduper(db, window)
	ok, err := d.Acquire(ctx, "ev-1", "Spot available: Swim Lessons")
	require.NoError(t, err)
	require.True(t, ok)

	// The request write failed; the claim goes back.
	require.NoError(t, d.Release(ctx, "ev-1", "Spot available: Swim Lessons"))

	ok, err = d.Acquire(ctx, "ev-1", "Spot available: Swim Lessons")
	require.NoError(t, err)
	assert.True(t, ok, "retry is not suppressed")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisDeduper_ReleaseError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectDel(DedupKey("ev-1", "t")).SetErr(errors.New("connection refused"))

	err := NewRedisDeduper(db, time.Minute).Release(context.Background(), "ev-1", "t")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDedupKey(t *testing.T) {
	a := DedupKey("ev-1", "Update: Swim")
	assert.Equal(t, a, DedupKey("ev-1", "Update: Swim"))
	assert.NotEqual(t, a, DedupKey("ev-2", "Update: Swim"))
	assert.NotEqual(t, a, DedupKey("ev-1", "Update: Swimming"))
	assert.Contains(t, a, "notify:dedup:ev-1:")
}
