package queuedepth

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/jobticket-service/internal/domain"
)

func TestPublish(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	p := NewPublisher(rdb)

	mock.ExpectHSet(Key, "copy", 2, "print", 5).SetVal(2)
	mock.ExpectPublish(Channel, `{"copy_tickets":2,"print_tickets":5}`).SetVal(1)

	err := p.Publish(context.Background(), domain.QueueStats{CopyTickets: 2, PrintTickets: 5})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishStopsWhenStoreFails(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	p := NewPublisher(rdb)

	mock.ExpectHSet(Key, "copy", 0, "print", 1).SetErr(errors.New("READONLY"))

	err := p.Publish(context.Background(), domain.QueueStats{PrintTickets: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "READONLY")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	p := NewPublisher(rdb)

	mock.ExpectHGetAll(Key).SetVal(map[string]string{"copy": "3", "print": "4"})
	stats, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.QueueStats{CopyTickets: 3, PrintTickets: 4}, stats)

	mock.ExpectHGetAll(Key).SetVal(map[string]string{})
	stats, err = p.Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Total())

	mock.ExpectHGetAll(Key).SetVal(map[string]string{"copy": "many"})
	_, err = p.Load(context.Background())
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}
