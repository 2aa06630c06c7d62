package analytics

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newPubSubTestSink(t *testing.T) (*PubSubSink, *pstest.Server) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "komik-test", option.WithGRPCConn(conn))
	require.NoError(t, err)

	_, err = client.CreateTopic(ctx, "events")
	require.NoError(t, err)

	return NewPubSubSinkWithClient(client, "events", nil), srv
}

func TestPubSubSinkPublishesJSON(t *testing.T) {
	ctx := context.Background()
	sink, srv := newPubSubTestSink(t)

	fixedTracker(sink).BookmarkAdd(ctx, "u1", "solo-leveling", "Solo Leveling")
	require.NoError(t, sink.Close())

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, EventAddToWishlist, msgs[0].Attributes["event"])

	var ev Event
	require.NoError(t, json.Unmarshal(msgs[0].Data, &ev))
	require.Equal(t, "u1", ev.UserID)
	require.Equal(t, "solo-leveling", ev.Params["item_id"])
}

func TestPubSubSinkOutlivesRequestContext(t *testing.T) {
	sink, srv := newPubSubTestSink(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, sink.Send(ctx, Event{Name: EventPageView, UserID: "u2"}))
	require.NoError(t, sink.Send(ctx, Event{Name: EventSearch, UserID: "u2"}))
	require.NoError(t, sink.Close())

	msgs := srv.Messages()
	require.Len(t, msgs, 2)
	names := []string{msgs[0].Attributes["event"], msgs[1].Attributes["event"]}
	require.ElementsMatch(t, []string{EventPageView, EventSearch}, names)
}

func TestLogSinkNeverFails(t *testing.T) {
	t.Parallel()
	require.NoError(t, LogSink{}.Send(context.Background(), Event{Name: EventPageView}))
}
