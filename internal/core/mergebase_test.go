package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilupskalvis/ovc/internal/graphstore"
	"github.com/kilupskalvis/ovc/internal/models"
)

func TestFindMergeBase_LinearHistory(t *testing.T) {
	st := graphstore.NewMockStore()

	// v1 <- v2 <- v3
	v1 := newSchema("v1", "").build()
	v2 := derive(v1, "v2", nil)
	v3 := derive(v2, "v3", nil)
	for _, v := range []*models.SchemaVersion{v1, v2, v3} {
		st.AddVersion(v)
	}

	base, err := FindMergeBase(context.Background(), st, v2, v3)
	require.NoError(t, err)
	assert.Equal(t, "v2", base.VersionID)

	base, err = FindMergeBase(context.Background(), st, v3, v1)
	require.NoError(t, err)
	assert.Equal(t, "v1", base.VersionID)
}

func TestFindMergeBase_DivergedBranches(t *testing.T) {
	st := graphstore.NewMockStore()

	// v1 <- v2 (main)
	//    \- v3 (feature)
	v1 := newSchema("v1", "").build()
	v2 := derive(v1, "v2", nil)
	v3 := derive(v1, "v3", nil)
	for _, v := range []*models.SchemaVersion{v1, v2, v3} {
		st.AddVersion(v)
	}

	base, err := FindMergeBase(context.Background(), st, v2, v3)
	require.NoError(t, err)
	assert.Equal(t, "v1", base.VersionID)
}

func TestFindMergeBase_WithMergeVersion(t *testing.T) {
	st := graphstore.NewMockStore()

	// v1 <- v2 <- v4 (merge of v2 and v3) <- v5
	//    \- v3 -/  \- v6 (feature continues from v3)
	v1 := newSchema("v1", "").build()
	v2 := derive(v1, "v2", nil)
	v3 := derive(v1, "v3", nil)
	v4 := derive(v2, "v4", nil)
	v4.MergeParentVersionID = "v3"
	v5 := derive(v4, "v5", nil)
	v6 := derive(v3, "v6", nil)
	for _, v := range []*models.SchemaVersion{v1, v2, v3, v4, v5, v6} {
		st.AddVersion(v)
	}

	base, err := FindMergeBase(context.Background(), st, v6, v5)
	require.NoError(t, err)
	assert.Equal(t, "v3", base.VersionID)
}

func TestFindMergeBase_UnrelatedHistories(t *testing.T) {
	st := graphstore.NewMockStore()
	a := newSchema("a", "").build()
	b := newSchema("b", "").build()
	st.AddVersion(a)
	st.AddVersion(b)

	_, err := FindMergeBase(context.Background(), st, a, b)
	assert.ErrorIs(t, err, ErrNoCommonAncestor)
}

func TestFindMergeBase_MissingAncestorIsCorrupt(t *testing.T) {
	st := graphstore.NewMockStore()
	root := newSchema("root", "").build()
	broken := newSchema("broken", "gone").build()
	st.AddVersion(root)
	st.AddVersion(broken)

	_, err := FindMergeBase(context.Background(), st, broken, root)
	var corrupt *SchemaCorruptError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, "broken", corrupt.VersionID)
	assert.ErrorIs(t, err, graphstore.ErrRefNotFound)
}
