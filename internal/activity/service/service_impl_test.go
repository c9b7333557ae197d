package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	activitydomain "github.com/outboundiq/costwatch/internal/activity/domain"
	"github.com/outboundiq/costwatch/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupService(t *testing.T, now time.Time) (activitydomain.Service, *clock.FakeClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&activitydomain.ActivityRecord{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(now)
	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
	})
	return svc, fake
}

func TestRecordRejectsUnknownType(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc, _ := setupService(t, now)

	_, err := svc.Record(context.Background(), activitydomain.RecordActivityRequest{
		Type: "call_made",
	})
	assert.ErrorIs(t, err, activitydomain.ErrInvalidActivityType)
}

func TestRecordAndCountByType(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc, fake := setupService(t, now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Record(ctx, activitydomain.RecordActivityRequest{Type: "email_sent"})
		require.NoError(t, err)
		fake.Advance(time.Minute)
	}
	record, err := svc.Record(ctx, activitydomain.RecordActivityRequest{Type: "Meeting_Booked"})
	require.NoError(t, err)
	assert.Equal(t, activitydomain.TypeMeetingBooked, record.Type, "type is normalized")

	// One event outside the counted window.
	fake.Advance(40 * 24 * time.Hour)
	_, err = svc.Record(ctx, activitydomain.RecordActivityRequest{Type: "email_sent"})
	require.NoError(t, err)

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	counts, err := svc.CountByType(ctx, from, to)
	require.NoError(t, err)

	assert.Equal(t, int64(3), counts[activitydomain.TypeEmailSent])
	assert.Equal(t, int64(1), counts[activitydomain.TypeMeetingBooked])
}

func TestCountByTypeReturnsZerosForEmptyMonth(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc, _ := setupService(t, now)

	counts, err := svc.CountByType(context.Background(),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	assert.Equal(t, int64(0), counts[activitydomain.TypeEmailSent])
	assert.Equal(t, int64(0), counts[activitydomain.TypeMeetingBooked])
}
