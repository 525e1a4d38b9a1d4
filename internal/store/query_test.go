package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/pdc/internal/expressions"
	"github.com/rendis/pdc/pkg/schema"
)

func TestQueryArtifacts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	engine, err := expressions.NewCELEngine()
	require.NoError(t, err)

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	flow := seedArtifact(t, s, KindDiagram, "flow", base)
	seedArtifact(t, s, KindDiagram, "state", base.Add(time.Minute))
	seedArtifact(t, s, KindDrawio, "", base.Add(2*time.Minute))
	flow2 := seedArtifact(t, s, KindDiagram, "flow", base.Add(3*time.Minute))

	t.Run("empty expression lists", func(t *testing.T) {
		got, err := QueryArtifacts(ctx, s, engine, ArtifactFilter{}, "  ")
		require.NoError(t, err)
		assert.Len(t, got, 4)
	})

	t.Run("cel filter", func(t *testing.T) {
		got, err := QueryArtifacts(ctx, s, engine, ArtifactFilter{},
			`kind == "diagram" && diagram_type == "flow"`)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, flow2.ID, got[0].ID)
		assert.Equal(t, flow.ID, got[1].ID)
	})

	t.Run("limit applies to matches", func(t *testing.T) {
		got, err := QueryArtifacts(ctx, s, engine, ArtifactFilter{Limit: 1}, `diagram_type == "flow"`)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, flow2.ID, got[0].ID)
	})

	t.Run("combined with store filter", func(t *testing.T) {
		got, err := QueryArtifacts(ctx, s, engine, ArtifactFilter{Kind: KindDrawio}, `status == "done"`)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("invalid expression", func(t *testing.T) {
		_, err := QueryArtifacts(ctx, s, engine, ArtifactFilter{}, `kind ==`)
		require.Error(t, err)
		assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
	})
}
