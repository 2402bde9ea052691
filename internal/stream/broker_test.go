package stream_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/stream"
)

func TestSubscribeReplaysCurrentSnapshot(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	repo.On("List", mock.Anything, "u1_u2").Return([]models.Message{{ID: "m1", Body: "hello"}}, nil)
	broker := stream.NewBroker(repo)

	sub, err := broker.Subscribe(context.Background(), "u1_u2")
	require.NoError(t, err)
	defer sub.Close()

	snapshot := <-sub.C
	require.Len(t, snapshot, 1)
	assert.Equal(t, "m1", snapshot[0].ID)
}

func TestPublishFansOutToAllObservers(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	repo.On("List", mock.Anything, "u1_u2").Return([]models.Message{}, nil).Twice()
	broker := stream.NewBroker(repo)

	ctx := context.Background()
	first, err := broker.Subscribe(ctx, "u1_u2")
	require.NoError(t, err)
	defer first.Close()
	second, err := broker.Subscribe(ctx, "u1_u2")
	require.NoError(t, err)
	defer second.Close()
	<-first.C
	<-second.C

	repo.On("List", mock.Anything, "u1_u2").Return([]models.Message{{ID: "m1"}}, nil)
	broker.Publish(ctx, "u1_u2")

	assert.Len(t, <-first.C, 1)
	assert.Len(t, <-second.C, 1)
}

func TestPublishIsLatestWinsForSlowObservers(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	repo.On("List", mock.Anything, "u1_u2").Return([]models.Message{}, nil).Once()
	broker := stream.NewBroker(repo)

	ctx := context.Background()
	sub, err := broker.Subscribe(ctx, "u1_u2")
	require.NoError(t, err)
	defer sub.Close()
	<-sub.C

	// Two publishes without a read in between: only the newest survives.
	repo.On("List", mock.Anything, "u1_u2").Return([]models.Message{{ID: "m1"}}, nil).Once()
	broker.Publish(ctx, "u1_u2")
	repo.On("List", mock.Anything, "u1_u2").Return([]models.Message{{ID: "m1"}, {ID: "m2"}}, nil).Once()
	broker.Publish(ctx, "u1_u2")

	snapshot := <-sub.C
	require.Len(t, snapshot, 2)

	select {
	case stale := <-sub.C:
		t.Fatalf("expected the stale snapshot to be dropped, got %d messages", len(stale))
	default:
	}
}

func TestCloseStopsDeliveryAndClosesChannel(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	repo.On("List", mock.Anything, "u1_u2").Return([]models.Message{}, nil)
	broker := stream.NewBroker(repo)

	sub, err := broker.Subscribe(context.Background(), "u1_u2")
	require.NoError(t, err)
	<-sub.C

	sub.Close()
	sub.Close() // double close is safe

	_, ok := <-sub.C
	assert.False(t, ok)
}

func TestPublishWithNoObserversIsNoOp(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	repo.On("List", mock.Anything, "quiet").Return([]models.Message{}, nil)
	broker := stream.NewBroker(repo)

	broker.Publish(context.Background(), "quiet")
}

func TestRosterFeedReplaysAndFollowsEdgeWrites(t *testing.T) {
	repo := new(mocks.RosterRepositoryMock)
	repo.On("ListFriends", mock.Anything, "u1").Return([]string{"u2"}, nil).Once()
	feed := stream.NewRosterFeed(repo)

	ctx := context.Background()
	sub, err := feed.Subscribe(ctx, "u1")
	require.NoError(t, err)
	defer sub.Close()
	assert.Equal(t, []string{"u2"}, <-sub.C)

	repo.On("ListFriends", mock.Anything, "u1").Return([]string{"u2", "u3"}, nil).Once()
	repo.On("ListFriends", mock.Anything, "u3").Return([]string{"u1"}, nil).Once()
	feed.Publish(ctx, "u1", "u3")

	assert.Equal(t, []string{"u2", "u3"}, <-sub.C)
}
