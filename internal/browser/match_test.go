package browser_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grabbit/internal/browser"
	"grabbit/internal/browser/browsertest"
)

func TestFirstMatch(t *testing.T) {
	ctx := context.Background()
	groups := []browser.SelectorGroup{
		browser.Group("preorder", browser.CSS("#preorder-button")),
		browser.Group("buy-now", browser.CSS("#buy-now-button")),
	}

	t.Run("reports the winning group's position", func(t *testing.T) {
		fake := browsertest.New()
		fake.AddPage(&browsertest.Page{
			URL: "https://www.amazon.com/dp/X",
			Elements: []*browsertest.Element{{
				ID:      "buy-now",
				Matches: []string{"#buy-now-button"},
			}},
		})
		require.NoError(t, fake.Navigate(ctx, "https://www.amazon.com/dp/X"))

		match, found, err := browser.FirstMatch(ctx, fake, groups)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 1, match.GroupIndex)
		assert.Equal(t, "buy-now", match.GroupName)
		assert.Len(t, match.Handles, 1)
	})

	t.Run("earlier group outranks later ones", func(t *testing.T) {
		fake := browsertest.New()
		fake.AddPage(&browsertest.Page{
			URL: "https://www.amazon.com/dp/X",
			Elements: []*browsertest.Element{
				{ID: "buy-now", Matches: []string{"#buy-now-button"}},
				{ID: "preorder", Matches: []string{"#preorder-button"}},
			},
		})
		require.NoError(t, fake.Navigate(ctx, "https://www.amazon.com/dp/X"))

		match, found, err := browser.FirstMatch(ctx, fake, groups)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 0, match.GroupIndex)
		assert.Equal(t, "preorder", match.GroupName)
	})

	t.Run("no hit in any group", func(t *testing.T) {
		fake := browsertest.New()

		_, found, err := browser.FirstMatch(ctx, fake, groups)
		require.NoError(t, err)
		assert.False(t, found)
	})
}
