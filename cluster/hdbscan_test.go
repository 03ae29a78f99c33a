package cluster

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClusterSeparatesTwoDenseBlobs(t *testing.T) {
	vectors := [][]float32{
		{0, 0}, {0.1, 0}, {0, 0.1}, {0.1, 0.1},
		{10, 10}, {10.1, 10}, {10, 10.1}, {10.1, 10.1},
	}
	cfg := Config{MinClusterSize: 2}
	memberships := Cluster(vectors, cfg)
	require.Len(t, memberships, 8)

	first := memberships[0].ClusterID
	require.NotEqual(t, -1, first)
	for i := 1; i < 4; i++ {
		require.Equal(t, first, memberships[i].ClusterID)
	}
	second := memberships[4].ClusterID
	require.NotEqual(t, -1, second)
	require.NotEqual(t, first, second)
	for i := 5; i < 8; i++ {
		require.Equal(t, second, memberships[i].ClusterID)
	}
}

func TestClusterMarksSmallGroupsAsNoise(t *testing.T) {
	vectors := [][]float32{
		{0, 0}, {0.1, 0}, {0, 0.1}, {0.1, 0.1},
		{50, 50},
	}
	cfg := Config{MinClusterSize: 3}
	memberships := Cluster(vectors, cfg)
	require.Equal(t, -1, memberships[4].ClusterID)
	require.Equal(t, 0.0, memberships[4].MembershipProb)
}

func TestClusterEmptyInput(t *testing.T) {
	memberships := Cluster(nil, Config{MinClusterSize: 2})
	require.Empty(t, memberships)
}
