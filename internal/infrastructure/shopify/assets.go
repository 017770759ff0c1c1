package shopify

import (
	"context"
	"fmt"

	"sectionhub-shopify-layer/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
)

const mainThemeRole = "main"

// ThemeAssets puts and removes section files in the shop's published theme
type ThemeAssets struct {
	client *Client
}

// NewThemeAssets creates the theme asset adapter
func NewThemeAssets(client *Client) *ThemeAssets {
	return &ThemeAssets{client: client}
}

var _ ports.ThemeAssetService = (*ThemeAssets)(nil)

// PutAsset writes value under key. Writing the same key twice converges.
func (t *ThemeAssets) PutAsset(ctx context.Context, shop, accessToken, key, value string) error {
	client, err := t.client.shopClient(shop, accessToken, false)
	if err != nil {
		return err
	}
	themeID, err := mainThemeID(ctx, client)
	if err != nil {
		return err
	}
	if _, err := client.Asset.Update(ctx, themeID, goshopify.Asset{Key: key, Value: value}); err != nil {
		return classify("put asset", err)
	}
	t.client.logger.Info().
		Str("shop", shop).
		Str("key", key).
		Uint64("themeId", themeID).
		Msg("Theme asset written")
	return nil
}

// DeleteAsset removes key from the main theme. A shop without a main theme has nothing to delete.
func (t *ThemeAssets) DeleteAsset(ctx context.Context, shop, accessToken, key string) error {
	client, err := t.client.shopClient(shop, accessToken, false)
	if err != nil {
		return err
	}
	themeID, err := mainThemeID(ctx, client)
	if err != nil {
		if err == errNoMainTheme {
			return nil
		}
		return err
	}
	if err := client.Asset.Delete(ctx, themeID, key); err != nil {
		return classify("delete asset", err)
	}
	return nil
}

var errNoMainTheme = fmt.Errorf("no active theme found")

func mainThemeID(ctx context.Context, client *goshopify.Client) (uint64, error) {
	themes, err := client.Theme.List(ctx, nil)
	if err != nil {
		return 0, classify("list themes", err)
	}
	for _, theme := range themes {
		if theme.Role == mainThemeRole {
			return theme.Id, nil
		}
	}
	return 0, errNoMainTheme
}
