package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/jobticket-service/internal/domain"
)

func intPtr(v int) *int { return &v }

func TestBuiltinNumberUpTable(t *testing.T) {
	table := BuiltinNumberUp()
	assert.Equal(t, 3, table.Version)
	require.Len(t, table.Rules, 34)
	for _, r := range table.Rules {
		assert.Len(t, r.Slots, 5)
	}
}

func TestResolveNumberUpBuiltin(t *testing.T) {
	table := BuiltinNumberUp()
	cases := []struct {
		name     string
		template NumberUpTemplate
		want     domain.NumberUpResult
	}{
		{
			name:     "portrait 2-up turns the sheet",
			template: NumberUpTemplate{Orientation: OrientationPortrait, NumberUp: 2},
			want:     domain.NumberUpResult{Orientation: "landscape", Layout: "toright-tobottom", Landscape: true},
		},
		{
			name:     "portrait 4-up keeps the sheet",
			template: NumberUpTemplate{Orientation: OrientationPortrait, NumberUp: 4},
			want:     domain.NumberUpResult{Orientation: "portrait", Layout: "toright-tobottom", Landscape: false},
		},
		{
			name:     "rotated landscape 1-up",
			template: NumberUpTemplate{Orientation: OrientationLandscape, PageRotation: 90, NumberUp: 1},
			want:     domain.NumberUpResult{Orientation: "portrait", Layout: "toright-tobottom", Landscape: false},
		},
		{
			name:     "content rotation exception precedes generic row",
			template: NumberUpTemplate{Orientation: OrientationPortrait, ContentRotation: 90, NumberUp: 4},
			want:     domain.NumberUpResult{Orientation: "landscape", Layout: "tobottom-toleft", Landscape: true},
		},
		{
			name:     "180 rotation reverses",
			template: NumberUpTemplate{Orientation: OrientationPortrait, PageRotation: 180, NumberUp: 6},
			want:     domain.NumberUpResult{Orientation: "reverse-landscape", Layout: "toleft-totop", Landscape: true},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ResolveNumberUp(tc.template, nil, table)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveNumberUpLargeLayoutsUseFourUp(t *testing.T) {
	table := BuiltinNumberUp()
	four, ok := ResolveNumberUp(NumberUpTemplate{Orientation: OrientationLandscape, PageRotation: 270, NumberUp: 4}, nil, table)
	require.True(t, ok)
	for _, n := range []int{9, 16} {
		template := NumberUpTemplate{Orientation: OrientationLandscape, PageRotation: 270, NumberUp: n}
		got, ok := ResolveNumberUp(template, nil, table)
		require.True(t, ok)
		assert.Equal(t, four, got)
		assert.Equal(t, n, template.NumberUp)
	}
}

func TestResolveNumberUpCustomRulesFirst(t *testing.T) {
	custom := []domain.NumberUpRule{{
		Orientation: intPtr(OrientationPortrait),
		NumberUp:    intPtr(2),
		Result:      domain.NumberUpResult{Orientation: "portrait", Layout: "tobottom-toright"},
	}}
	got, ok := ResolveNumberUp(NumberUpTemplate{Orientation: OrientationPortrait, NumberUp: 2}, custom, BuiltinNumberUp())
	require.True(t, ok)
	assert.Equal(t, "tobottom-toright", got.Layout)

	got, ok = ResolveNumberUp(NumberUpTemplate{Orientation: OrientationLandscape, NumberUp: 1}, custom, BuiltinNumberUp())
	require.True(t, ok)
	assert.Equal(t, "landscape", got.Orientation)
}

func TestResolveNumberUpNoMatch(t *testing.T) {
	_, ok := ResolveNumberUp(NumberUpTemplate{Orientation: OrientationPortrait, PageRotation: 45, NumberUp: 2}, nil, BuiltinNumberUp())
	assert.False(t, ok)
}

func TestParseNumberUpTableRejectsBadSlot(t *testing.T) {
	_, err := ParseNumberUpTable([]byte("version: 1\nrules:\n  - when: {orientation: sideways}\n"))
	assert.Error(t, err)
	_, err = ParseNumberUpTable([]byte("version: 1\nrules:\n  - when: {page_rotation: ninety}\n"))
	assert.Error(t, err)
}
