package sinkobs_test

import (
	"context"
	"errors"
	"testing"

	"bhavcopy-ingest/internal/interfaces/mocks"
	"bhavcopy-ingest/internal/sink/sinkobs"
	"bhavcopy-ingest/internal/types"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestWrap(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockSink(ctrl)

	records := []types.DailyRecord{{Symbol: "ABC", Series: "EQ"}}
	boom := errors.New("connection refused")

	gomock.InOrder(
		inner.EXPECT().Apply(gomock.Any(), records).Return(types.Counts{Created: 1}, nil),
		inner.EXPECT().Apply(gomock.Any(), records).Return(types.Counts{}, boom),
		inner.EXPECT().Close().Return(nil),
	)

	s := sinkobs.Wrap(inner, "memory")

	counts, err := s.Apply(context.Background(), records)
	require.NoError(t, err)
	require.Equal(t, types.Counts{Created: 1}, counts)

	_, err = s.Apply(context.Background(), records)
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.Close())
}
