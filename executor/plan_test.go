package executor

import (
	"testing"

	sig "github.com/lilac-data/lilac/signal"
	"github.com/stretchr/testify/require"
)

type fakeModelSignal struct{ sig.Signal }

func (f *fakeModelSignal) EmbeddingName() string { return "hash_embedding" }

func newFakeModelSignal(params map[string]any) (sig.Signal, error) {
	base, err := sig.NewLengthSignal(params)
	if err != nil {
		return nil, err
	}
	return &fakeModelSignal{Signal: base}, nil
}

func TestBuildPlanSchedulesEmbeddingDependency(t *testing.T) {
	reg := sig.NewRegistry()
	require.NoError(t, reg.Register("hash_embedding", sig.NewHashEmbeddingSignal))
	require.NoError(t, reg.Register("fake_model", newFakeModelSignal))

	plan, err := BuildPlan(reg, "fake_model", nil, "text")
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	require.Equal(t, "hash_embedding", plan.Steps[0].SignalName)
	require.Equal(t, "fake_model", plan.Steps[1].SignalName)
}

func TestBuildPlanDefaultOutputPath(t *testing.T) {
	reg := sig.NewRegistry()
	require.NoError(t, reg.Register("text_length", sig.NewLengthSignal))

	plan, err := BuildPlan(reg, "text_length", nil, "chunks.*.text")
	require.NoError(t, err)
	require.Equal(t, "text__text_length", plan.Steps[0].OutputPath)
}

func TestBuildPlanUnknownSignalErrors(t *testing.T) {
	reg := sig.NewRegistry()
	_, err := BuildPlan(reg, "nope", nil, "text")
	require.Error(t, err)
}
