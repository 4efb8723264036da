package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetNodeMetadata_InsertsAndRegistersCodes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.CreateNode(ctx, CreateNodeInput{Title: "N", URL: "https://example.com/meta1"})
	require.NoError(t, err)

	err = s.SetNodeMetadata(ctx, n.ID, []MetadataEntry{
		{Type: MetaOrg, Code: "acme", DisplayName: "Acme"},
		{Type: MetaTec, Code: "go"},
	})
	require.NoError(t, err)

	got, err := s.GetNodeMetadata(ctx, n.ID)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	codes, err := s.GetMetadataCodeSet(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme"}, codes[MetaOrg])
	assert.Equal(t, []string{"go"}, codes[MetaTec])
}

func TestSetNodeMetadata_ReplacesExistingSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.CreateNode(ctx, CreateNodeInput{Title: "N", URL: "https://example.com/meta2"})
	require.NoError(t, err)

	require.NoError(t, s.SetNodeMetadata(ctx, n.ID, []MetadataEntry{{Type: MetaOrg, Code: "acme"}}))
	require.NoError(t, s.SetNodeMetadata(ctx, n.ID, []MetadataEntry{{Type: MetaTec, Code: "rust"}}))

	got, err := s.GetNodeMetadata(ctx, n.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, MetaTec, got[0].Type)
}

func TestSetNodeMetadata_SharedRegistryEntryIncrementsUsage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.CreateNode(ctx, CreateNodeInput{Title: "A", URL: "https://example.com/meta3a"})
	require.NoError(t, err)
	b, err := s.CreateNode(ctx, CreateNodeInput{Title: "B", URL: "https://example.com/meta3b"})
	require.NoError(t, err)

	require.NoError(t, s.SetNodeMetadata(ctx, a.ID, []MetadataEntry{{Type: MetaOrg, Code: "acme"}}))
	require.NoError(t, s.SetNodeMetadata(ctx, b.ID, []MetadataEntry{{Type: MetaOrg, Code: "acme"}}))

	var usage int64
	require.NoError(t, s.db.QueryRow(`SELECT usage_count FROM metadata_code_registry WHERE type = ? AND code = ?`, MetaOrg, "acme").Scan(&usage))
	assert.Equal(t, int64(2), usage)
}

func TestGetNodeMetadata_EmptyForUnknownNode(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetNodeMetadata(context.Background(), "no-such-node")
	require.NoError(t, err)
	assert.Empty(t, got)
}
