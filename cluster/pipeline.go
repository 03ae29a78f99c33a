package cluster

import (
	"context"
	"fmt"
	"sort"

	"github.com/lilac-data/lilac/internal/bitset"
	"github.com/lilac-data/lilac/internal/retry"
	"github.com/lilac-data/lilac/schema"
	"github.com/lilac-data/lilac/store"
	"github.com/lilac-data/lilac/vectorindex"
)

// Options configures one Run of the clustering pipeline (spec.md 4.F).
type Options struct {
	InputPath      schema.Path
	OutputField    string
	MinClusterSize int
	Titler         Titler
	Categorizer    Categorizer
	CategoryGroup  int // cluster titles per category batch, default all-in-one
	Budget         retry.Budget
	Remote         bool // whether Titler/Categorizer are remote collaborators
}

// Output is one row's final cluster/category assignment, written back as
// the struct column {cluster_id, cluster_membership_prob, cluster_title,
// category_id, category_membership_prob, category_title} (spec.md 4.F
// step 6).
type Output struct {
	ClusterID          int
	ClusterMembership  float64
	ClusterTitle       string
	CategoryID         int
	CategoryMembership float64
	CategoryTitle      string
}

// Run executes the full gather -> reduce -> cluster -> title -> categorize
// -> write pipeline against an already-populated vector index (spec.md
// 4.F): InputPath must name the text column the embeddings in vectors
// were computed over, so texts and vectors can be joined by row id.
func Run(ctx context.Context, ds *store.Dataset, vectors *vectorindex.Store, opts Options, onProgress func(completed, total int)) error {
	rowIDs := vectors.AllIDs()
	sort.Strings(rowIDs)
	if len(rowIDs) == 0 {
		return fmt.Errorf("cluster: vector index has no rows to cluster")
	}

	// present indexes which row ids the vector index actually holds, so the
	// full-dataset scan below only keeps text for rows clustering can use.
	interner := bitset.NewInterner()
	present := bitset.NewSet(interner)
	for _, id := range rowIDs {
		present.Add(id)
	}

	texts := make(map[string]string, len(rowIDs))
	rows, err := ds.IterRows(func(error) {})
	if err != nil {
		return err
	}
	for row := range rows {
		if !present.Contains(row.RowID) {
			continue
		}
		v, err := schema.ExtractAtPath(row.Values, opts.InputPath)
		if err != nil {
			continue
		}
		if s, ok := v.(string); ok {
			texts[row.RowID] = s
		}
	}

	vecs := make([][]float32, 0, len(rowIDs))
	ids := make([]string, 0, len(rowIDs))
	rowTexts := make([]string, 0, len(rowIDs))
	for _, id := range rowIDs {
		vec, ok := vectors.Vector(id)
		if !ok {
			continue
		}
		text, ok := texts[id]
		if !ok {
			continue
		}
		vecs = append(vecs, vec)
		ids = append(ids, id)
		rowTexts = append(rowTexts, text)
	}
	if len(vecs) == 0 {
		return fmt.Errorf("cluster: no rows with both a vector and source text")
	}

	cfg := DefaultConfig(opts.MinClusterSize, len(vecs))
	reduced := Reduce(vecs, cfg)
	memberships := Cluster(reduced, cfg)

	groups := GroupByCluster(ids, rowTexts, memberships)
	total := len(groups)
	if opts.CategoryGroup > 0 {
		total += (len(groups) + opts.CategoryGroup - 1) / opts.CategoryGroup
	} else if len(groups) > 0 {
		total++
	}
	completed := 0
	progress := func(n int) {
		completed++
		if onProgress != nil {
			onProgress(completed, total)
		}
	}

	titles := TitleGroups(ctx, groups, opts.Titler, opts.Budget, progress)
	categories := CategorizeGroups(ctx, groups, titles, opts.Categorizer, opts.CategoryGroup, opts.Budget)
	if onProgress != nil {
		onProgress(total, total)
	}

	categoryByCluster := make(map[int]CategoryAssignment, len(categories))
	for _, c := range categories {
		categoryByCluster[c.ClusterID] = c
	}

	outputs := make(map[string]Output, len(ids))
	for i, id := range ids {
		m := memberships[i]
		out := Output{ClusterID: m.ClusterID, ClusterMembership: m.MembershipProb}
		if m.ClusterID >= 0 {
			out.ClusterTitle = titles[m.ClusterID]
			if cat, ok := categoryByCluster[m.ClusterID]; ok {
				out.CategoryID = cat.CategoryID
				out.CategoryTitle = cat.CategoryTitle
				out.CategoryMembership = cat.CategoryMembership
			}
		} else {
			out.CategoryID = -1
		}
		outputs[id] = out
	}

	return write(ds, opts, ids, outputs)
}

func write(ds *store.Dataset, opts Options, ids []string, outputs map[string]Output) error {
	writer, err := ds.AddColumn(opts.OutputField)
	if err != nil {
		return err
	}
	for _, id := range ids {
		out := outputs[id]
		if err := writer.Put(id, map[string]any{
			"cluster_id":               out.ClusterID,
			"cluster_membership_prob":  out.ClusterMembership,
			"cluster_title":            out.ClusterTitle,
			"category_id":              out.CategoryID,
			"category_membership_prob": out.CategoryMembership,
			"category_title":           out.CategoryTitle,
		}); err != nil {
			return err
		}
	}

	outSchema := schema.NewStruct(map[string]*schema.Field{
		"cluster_id":               schema.NewLeaf(schema.Int32),
		"cluster_membership_prob":  schema.NewLeaf(schema.Float64),
		"cluster_title":            schema.NewLeaf(schema.String),
		"category_id":              schema.NewLeaf(schema.Int32),
		"category_membership_prob": schema.NewLeaf(schema.Float64),
		"category_title":           schema.NewLeaf(schema.String),
	})
	outSchema.Cluster = &schema.ClusterDescriptor{
		MinClusterSize: opts.MinClusterSize,
		InputPath:      opts.InputPath.String(),
		Remote:         opts.Remote,
	}
	return writer.Finish(outSchema)
}
