package cluster

import (
	"context"
	"testing"

	"github.com/lilac-data/lilac/internal/retry"
	"github.com/stretchr/testify/require"
)

func TestGroupByClusterExcludesNoise(t *testing.T) {
	rowIDs := []string{"a", "b", "c", "d"}
	texts := []string{"ta", "tb", "tc", "td"}
	memberships := []Membership{
		{ClusterID: 0, MembershipProb: 0.9},
		{ClusterID: -1, MembershipProb: 0},
		{ClusterID: 0, MembershipProb: 0.5},
		{ClusterID: 1, MembershipProb: 1.0},
	}
	groups := GroupByCluster(rowIDs, texts, memberships)
	require.Len(t, groups, 2)
	require.Equal(t, 0, groups[0].ClusterID)
	require.Len(t, groups[0].Members, 2)
	require.Equal(t, 1, groups[1].ClusterID)
}

func TestTopExamplesOrdersByProbabilityThenRowIDAndDedups(t *testing.T) {
	g := Group{
		ClusterID: 0,
		Members: []GroupMember{
			{RowID: "z", Text: "dup", MembershipProb: 0.9},
			{RowID: "a", Text: "dup", MembershipProb: 0.9},
			{RowID: "m", Text: "unique", MembershipProb: 0.5},
		},
	}
	out := TopExamples(g, 10)
	require.Equal(t, []string{"dup", "unique"}, out)
}

type fakeTitler struct{ calls int }

func (f *fakeTitler) Title(ctx context.Context, examples []string, maxTokens int) (string, error) {
	f.calls++
	return "title-" + examples[0], nil
}

type fakeCategorizer struct{}

func (f *fakeCategorizer) Categorize(ctx context.Context, titles []string, maxTokens int) (string, error) {
	return "category-for-" + titles[0], nil
}

func TestTitleGroupsCallsOncePerGroup(t *testing.T) {
	groups := []Group{
		{ClusterID: 0, Members: []GroupMember{{RowID: "a", Text: "alpha", MembershipProb: 1}}},
		{ClusterID: 1, Members: []GroupMember{{RowID: "b", Text: "beta", MembershipProb: 1}}},
	}
	titler := &fakeTitler{}
	budget := retry.Budget{MaxAttempts: 1}
	progressed := 0
	titles := TitleGroups(context.Background(), groups, titler, budget, func(n int) { progressed += n })
	require.Equal(t, 2, titler.calls)
	require.Equal(t, "title-alpha", titles[0])
	require.Equal(t, "title-beta", titles[1])
	require.Equal(t, 2, progressed)
}

func TestCategorizeGroupsBatchesAndAssignsSameCategory(t *testing.T) {
	groups := []Group{
		{ClusterID: 0, Members: []GroupMember{{RowID: "a", Text: "alpha"}}},
		{ClusterID: 1, Members: []GroupMember{{RowID: "b", Text: "beta"}}},
		{ClusterID: 2, Members: []GroupMember{{RowID: "c", Text: "gamma"}}},
	}
	titles := map[int]string{0: "t0", 1: "t1", 2: "t2"}
	budget := retry.Budget{MaxAttempts: 1}
	assignments := CategorizeGroups(context.Background(), groups, titles, &fakeCategorizer{}, 2, budget)
	require.Len(t, assignments, 3)

	byCluster := map[int]CategoryAssignment{}
	for _, a := range assignments {
		byCluster[a.ClusterID] = a
	}
	require.Equal(t, byCluster[0].CategoryID, byCluster[1].CategoryID)
	require.NotEqual(t, byCluster[0].CategoryID, byCluster[2].CategoryID)
}

type sentinelTitler struct{}

func (s *sentinelTitler) Title(ctx context.Context, examples []string, maxTokens int) (string, error) {
	return "", retry.ErrIncompleteOutput
}

func TestTitleGroupsFallsBackToSentinelOnExhaustion(t *testing.T) {
	groups := []Group{
		{ClusterID: 0, Members: []GroupMember{{RowID: "a", Text: "alpha"}}},
	}
	budget := retry.Budget{MaxAttempts: 1}
	titles := TitleGroups(context.Background(), groups, &sentinelTitler{}, budget, nil)
	require.Equal(t, failedToTitle, titles[0])
}
