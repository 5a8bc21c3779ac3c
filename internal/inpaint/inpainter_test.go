package inpaint

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toonslate/toonslate-backend/internal/geometry"
	"github.com/toonslate/toonslate-backend/internal/region"
)

type fakeCleaner struct {
	got []region.TextRegion
}

func (f *fakeCleaner) Clean(img *image.NRGBA, regions []region.TextRegion) (*image.NRGBA, []region.TextRegion) {
	f.got = regions
	return img, regions
}

type fakeRestorer struct {
	got []region.TextRegion
	err error
}

func (f *fakeRestorer) Restore(_ context.Context, img *image.NRGBA, regions []region.TextRegion) (*image.NRGBA, []region.TextRegion, error) {
	f.got = regions
	if f.err != nil {
		return nil, nil, f.err
	}
	return img, regions, nil
}

func (f *fakeRestorer) RestoreMask(_ context.Context, img image.Image, _ *image.Gray) (image.Image, error) {
	if f.err != nil {
		return nil, f.err
	}
	return img, nil
}

func TestRoutedInpainter(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	bubble := geometry.New(0, 0, 60, 60)

	// Index 1 sits inside the bubble, 0 and 2 are free text.
	regions := []region.TextRegion{
		{Index: 0, TextBBox: geometry.New(70, 70, 90, 90)},
		{Index: 1, TextBBox: geometry.New(20, 20, 40, 40)},
		{Index: 2, TextBBox: geometry.New(70, 10, 90, 30)},
	}

	t.Run("routes by classification and merges sorted", func(t *testing.T) {
		cleaner := &fakeCleaner{}
		restorer := &fakeRestorer{}
		ri := NewRoutedInpainter(cleaner, restorer)

		_, merged, err := ri.Inpaint(context.Background(), img, regions, []geometry.BBox{bubble})
		require.NoError(t, err)

		require.Len(t, cleaner.got, 1)
		assert.Equal(t, 1, cleaner.got[0].Index)

		require.Len(t, restorer.got, 2)

		require.Len(t, merged, 3)
		for i, r := range merged {
			assert.Equal(t, i, r.Index)
		}
	})

	t.Run("restorer failure surfaces", func(t *testing.T) {
		boom := errors.New("boom")
		ri := NewRoutedInpainter(&fakeCleaner{}, &fakeRestorer{err: boom})

		_, _, err := ri.Inpaint(context.Background(), img, regions, []geometry.BBox{bubble})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("no regions still succeeds", func(t *testing.T) {
		ri := NewRoutedInpainter(&fakeCleaner{}, &fakeRestorer{})
		out, merged, err := ri.Inpaint(context.Background(), img, nil, nil)
		require.NoError(t, err)
		assert.Same(t, img, out)
		assert.Empty(t, merged)
	})

	t.Run("mask path delegates to the restorer", func(t *testing.T) {
		ri := NewRoutedInpainter(&fakeCleaner{}, &fakeRestorer{})
		out, err := ri.InpaintMask(context.Background(), img, image.NewGray(img.Bounds()))
		require.NoError(t, err)
		assert.Same(t, image.Image(img), out)
	})
}
