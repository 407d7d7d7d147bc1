package rpc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var testLimits = ListLimits{
	DefaultPageSize: 20,
	MaxPageSize:     100,
	DefaultSort:     "created_at",
	SortFields:      []string{"created_at", "updated_at", "title"},
}

func TestNormalizeDefaults(t *testing.T) {
	out, err := ListParams{}.Normalize(testLimits)
	require.NoError(t, err)
	require.Equal(t, 1, out.Page)
	require.Equal(t, 20, out.PageSize)
	require.Equal(t, "created_at", out.SortBy)
	require.Equal(t, SortDesc, out.SortOrder)
}

func TestNormalizeRejectsOversizedPage(t *testing.T) {
	_, err := ListParams{PageSize: 101}.Normalize(testLimits)
	var domain *Error
	require.ErrorAs(t, err, &domain)
	require.Equal(t, KindValidation, domain.Kind)
}

func TestNormalizeRejectsUnknownSortField(t *testing.T) {
	_, err := ListParams{SortBy: "password_hash"}.Normalize(testLimits)
	var domain *Error
	require.ErrorAs(t, err, &domain)
	require.Equal(t, KindValidation, domain.Kind)
}

func TestNormalizeOffset(t *testing.T) {
	out, err := ListParams{Page: 3, PageSize: 10}.Normalize(testLimits)
	require.NoError(t, err)
	require.Equal(t, 20, out.Offset())
}

func TestListResultPageMath(t *testing.T) {
	cases := []struct {
		total      int
		pageSize   int
		totalPages int
	}{
		{0, 2, 0},
		{1, 2, 1},
		{5, 2, 3},
		{10, 5, 2},
		{11, 5, 3},
	}
	for _, tc := range cases {
		params := ListParams{Page: 1, PageSize: tc.pageSize}
		out := NewListResult([]int{}, params, tc.total)
		require.Equal(t, tc.totalPages, out.TotalPages, "total=%d pageSize=%d", tc.total, tc.pageSize)
		require.Equal(t, tc.total, out.TotalCount)
	}
}

func TestListResultNeverNilItems(t *testing.T) {
	out := NewListResult[string](nil, ListParams{Page: 1, PageSize: 10}, 0)
	require.NotNil(t, out.Items)
	require.Empty(t, out.Items)
}
