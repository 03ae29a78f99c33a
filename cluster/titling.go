package cluster

import (
	"context"
	"fmt"
	"sort"

	"github.com/lilac-data/lilac/internal/retry"
)

// Titler generates a short title for a group of example texts drawn from
// one cluster (spec.md 4.F step 4). Implementations wrap a remote LLM
// call; ErrIncompleteOutput should be returned when the response was
// truncated by maxTokens so RunWithSentinel can grow the budget and retry.
type Titler interface {
	Title(ctx context.Context, examples []string, maxTokens int) (string, error)
}

// Categorizer assigns a shared category title to a set of cluster titles
// (spec.md 4.F step 5), the same retry/sentinel contract as Titler.
type Categorizer interface {
	Categorize(ctx context.Context, titles []string, maxTokens int) (string, error)
}

const (
	failedToTitle    = "FAILED_TO_TITLE"
	failedToCategory = "FAILED_TO_CATEGORIZE"

	defaultTitleExamples = 25
	initialTitleTokens   = 256
	ceilingTitleTokens   = 4096
)

// Group is one cluster's membership list. Members keep the order of the
// rows passed to GroupByCluster; they are not re-sorted.
type Group struct {
	ClusterID int
	Members   []GroupMember
}

// GroupMember pairs a row id with its text and membership probability.
type GroupMember struct {
	RowID          string
	Text           string
	MembershipProb float64
}

// GroupByCluster partitions rows into Groups keyed by cluster id, skipping
// noise (cluster_id == -1). Groups are returned sorted by cluster id.
func GroupByCluster(rowIDs []string, texts []string, memberships []Membership) []Group {
	byCluster := map[int][]GroupMember{}
	for i, m := range memberships {
		if m.ClusterID < 0 {
			continue
		}
		byCluster[m.ClusterID] = append(byCluster[m.ClusterID], GroupMember{
			RowID:          rowIDs[i],
			Text:           texts[i],
			MembershipProb: m.MembershipProb,
		})
	}
	ids := make([]int, 0, len(byCluster))
	for id := range byCluster {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	groups := make([]Group, len(ids))
	for i, id := range ids {
		groups[i] = Group{ClusterID: id, Members: byCluster[id]}
	}
	return groups
}

// TopExamples selects up to n example texts from a group, preferring
// higher membership probability and breaking ties by ascending row id,
// then dedups identical texts (spec.md 4.F step 4: "dedup identical
// texts before sending to the titler").
func TopExamples(g Group, n int) []string {
	members := append([]GroupMember(nil), g.Members...)
	sort.Slice(members, func(i, j int) bool {
		if members[i].MembershipProb != members[j].MembershipProb {
			return members[i].MembershipProb > members[j].MembershipProb
		}
		return members[i].RowID < members[j].RowID
	})
	seen := map[string]bool{}
	out := make([]string, 0, n)
	for _, m := range members {
		if seen[m.Text] {
			continue
		}
		seen[m.Text] = true
		out = append(out, m.Text)
		if len(out) >= n {
			break
		}
	}
	return out
}

// TitleGroups titles every group via titler, one call per group, in
// ascending cluster-id order, using the retry package's backoff and
// token-budget-doubling around each call (spec.md 4.F step 4). onProgress
// is invoked once per group with the group's member count, matching the
// task manager's shard-progress contract (spec.md 4.I).
func TitleGroups(ctx context.Context, groups []Group, titler Titler, budget retry.Budget, onProgress func(int)) map[int]string {
	titles := make(map[int]string, len(groups))
	for _, g := range groups {
		examples := TopExamples(g, defaultTitleExamples)
		tokens := retry.NewTokenBudget(initialTitleTokens, ceilingTitleTokens)
		title := retry.RunWithSentinel(ctx, budget, tokens, failedToTitle,
			func(ctx context.Context, maxTokens int) (string, error) {
				return titler.Title(ctx, examples, maxTokens)
			})
		titles[g.ClusterID] = title
		if onProgress != nil {
			onProgress(len(g.Members))
		}
	}
	return titles
}

// CategoryAssignment is one cluster's resolved category.
type CategoryAssignment struct {
	ClusterID          int
	CategoryID         int
	CategoryTitle      string
	CategoryMembership float64
}

// CategorizeGroups groups cluster titles by groupSize-sized batches in
// ascending cluster-id order, calls categorizer once per batch, and
// assigns every cluster in that batch the resulting category title
// (spec.md 4.F step 5: "categorize groups of cluster titles together").
// CategoryMembership is 1.0 for every member of the batch the category
// call succeeded for; a sentinel result still assigns a category (the
// sentinel string itself) so downstream consumers can filter on it.
func CategorizeGroups(ctx context.Context, groups []Group, titles map[int]string, categorizer Categorizer, groupSize int, budget retry.Budget) []CategoryAssignment {
	if groupSize <= 0 {
		groupSize = len(groups)
	}
	clusterIDs := make([]int, len(groups))
	for i, g := range groups {
		clusterIDs[i] = g.ClusterID
	}
	sort.Ints(clusterIDs)

	var out []CategoryAssignment
	categoryID := 0
	for start := 0; start < len(clusterIDs); start += groupSize {
		end := start + groupSize
		if end > len(clusterIDs) {
			end = len(clusterIDs)
		}
		batch := clusterIDs[start:end]
		batchTitles := make([]string, len(batch))
		for i, id := range batch {
			batchTitles[i] = titles[id]
		}

		tokens := retry.NewTokenBudget(initialTitleTokens, ceilingTitleTokens)
		categoryTitle := retry.RunWithSentinel(ctx, budget, tokens, failedToCategory,
			func(ctx context.Context, maxTokens int) (string, error) {
				return categorizer.Categorize(ctx, batchTitles, maxTokens)
			})

		for _, id := range batch {
			out = append(out, CategoryAssignment{
				ClusterID:          id,
				CategoryID:         categoryID,
				CategoryTitle:      categoryTitle,
				CategoryMembership: 1.0,
			})
		}
		categoryID++
	}
	return out
}

// FormatExamplesPrompt renders examples the way a Titler/Categorizer
// implementation would typically prompt a model, exposed so callers don't
// need to reinvent the join.
func FormatExamplesPrompt(examples []string) string {
	s := ""
	for i, e := range examples {
		s += fmt.Sprintf("%d. %s\n", i+1, e)
	}
	return s
}
