package contacts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpsert(t *testing.T) {
	p := Record{ID: -1, Name: "B", Phone: "222"}
	cases := []struct {
		name string
		in   Collection
		rec  Record
		want Collection
	}{
		{"replaces placeholder in place", Collection{p, recA}, recB, Collection{recB, recA}},
		{"appends without placeholder", Collection{recA}, recB, Collection{recA, recB}},
		{"replaces existing id", Collection{recA, recB}, Record{ID: 2, Name: "B2"}, Collection{recA, {ID: 2, Name: "B2"}}},
		{"drops duplicate id", Collection{recB, recA, p}, recB, Collection{recA, recB}},
		{"empty", nil, recA, Collection{recA}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := tc.in.Clone()
			require.Equal(t, tc.want, tc.in.Upsert(-1, tc.rec))
			require.Equal(t, before, tc.in.Clone(), "receiver modified")
		})
	}
}

func TestWithoutAndAppendDoNotAlias(t *testing.T) {
	base := make(Collection, 2, 4)
	base[0], base[1] = recA, recB

	w := base.Without(1)
	require.Equal(t, Collection{recB}, w)
	require.Equal(t, Collection{recA, recB}, base)

	a := base.Append(Record{ID: 3})
	a[0].Name = "changed"
	require.Equal(t, "A", base[0].Name)
	require.Len(t, a, 3)
}

func TestIndexOfContains(t *testing.T) {
	c := Collection{recA, recB}
	require.Equal(t, 1, c.IndexOf(2))
	require.Equal(t, -1, c.IndexOf(9))
	require.True(t, c.Contains(1))
	require.False(t, c.Contains(-1))
}

func TestInputValidate(t *testing.T) {
	require.NoError(t, Input{Name: "A", Phone: "1"}.Validate())
	require.ErrorIs(t, Input{Phone: "1"}.Validate(), ErrInvalidInput)
	require.ErrorIs(t, Input{Name: "A"}.Validate(), ErrInvalidInput)
}

func TestIsPlaceholder(t *testing.T) {
	require.True(t, Record{ID: -3}.IsPlaceholder())
	require.False(t, recA.IsPlaceholder())
}
