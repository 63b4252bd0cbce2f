package pagination_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planstudio/flowhistory/pkg/pagination"
)

func sequence(n int) []int {
	items := make([]int, n)
	for i := range items {
		items[i] = i
	}

	return items
}

func TestPaginate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		total         int
		page          int
		pageSize      int
		expectedItems []int
		expectedPages int
	}{
		{
			name:          "middle page",
			total:         45,
			page:          2,
			pageSize:      20,
			expectedItems: sequence(45)[20:40],
			expectedPages: 3,
		},
		{
			name:          "last page is partial",
			total:         45,
			page:          3,
			pageSize:      20,
			expectedItems: sequence(45)[40:45],
			expectedPages: 3,
		},
		{
			name:          "beyond end is empty not error",
			total:         45,
			page:          9,
			pageSize:      20,
			expectedItems: []int{},
			expectedPages: 3,
		},
		{
			name:          "exact multiple",
			total:         40,
			page:          2,
			pageSize:      20,
			expectedItems: sequence(40)[20:40],
			expectedPages: 2,
		},
		{
			name:          "empty set",
			total:         0,
			page:          1,
			pageSize:      10,
			expectedItems: []int{},
			expectedPages: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			page, err := pagination.Paginate(sequence(tt.total), tt.page, tt.pageSize)
			require.NoError(t, err)

			assert.Equal(t, tt.expectedItems, page.Items)
			assert.Equal(t, tt.total, page.TotalCount)
			assert.Equal(t, tt.expectedPages, page.TotalPages)
		})
	}
}

func TestPaginate_InvalidArguments(t *testing.T) {
	t.Parallel()

	_, err := pagination.Paginate(sequence(10), 0, 10)
	require.ErrorIs(t, err, pagination.ErrInvalidPage)

	_, err = pagination.Paginate(sequence(10), -1, 10)
	require.ErrorIs(t, err, pagination.ErrInvalidPage)

	_, err = pagination.Paginate(sequence(10), 1, 0)
	require.ErrorIs(t, err, pagination.ErrInvalidPageSize)

	_, err = pagination.Paginate(sequence(10), 1, -5)
	require.ErrorIs(t, err, pagination.ErrInvalidPageSize)
}

// Concatenating every page must reconstruct the input exactly once per
// element, with no gaps and no duplicates.
func TestPaginate_ConcatenationReconstructsSequence(t *testing.T) {
	t.Parallel()

	for _, pageSize := range []int{1, 3, 7, 20, 100} {
		items := sequence(53)

		var rebuilt []int

		first, err := pagination.Paginate(items, 1, pageSize)
		require.NoError(t, err)

		for page := 1; page <= first.TotalPages; page++ {
			p, err := pagination.Paginate(items, page, pageSize)
			require.NoError(t, err)
			rebuilt = append(rebuilt, p.Items...)
		}

		assert.Equal(t, items, rebuilt, "pageSize %d", pageSize)
	}
}
