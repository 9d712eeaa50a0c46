package listings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractImageURL(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"plain url", " https://cdn.example/a.jpg ", "https://cdn.example/a.jpg"},
		{"json string", `{"url":"https://cdn.example/b.jpg"}`, "https://cdn.example/b.jpg"},
		{"object src", map[string]any{"src": "http://cdn.example/c.jpg"}, "http://cdn.example/c.jpg"},
		{"list of objects", []any{map[string]any{"image": "https://cdn.example/d.jpg"}}, "https://cdn.example/d.jpg"},
		{"relative path", "/img/e.jpg", ""},
		{"broken json", `{"url":`, ""},
		{"nil", nil, ""},
		{"empty list", []any{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractImageURL(tt.in))
		})
	}
}

func TestListing_CapsImages(t *testing.T) {
	images := make([]any, 0, 20)
	for i := 0; i < 20; i++ {
		images = append(images, "https://cdn.example/img.jpg")
	}
	n := NewNormalizer("https://www.marrfa.com/propertylisting/", "")

	l := n.Listing(map[string]any{"images": images})
	assert.Len(t, l.Images, maxImages)
	assert.Equal(t, "Untitled property", l.Title)
	assert.Nil(t, l.ListingURL, "no id, no listing url")
	assert.Equal(t, "https://cdn.example/img.jpg", l.CoverImage)
}

func TestPageTotal(t *testing.T) {
	assert.Equal(t, 40, pageTotal(map[string]any{"meta": map[string]any{"total": 40.0}}, 15))
	assert.Equal(t, 3, pageTotal(map[string]any{}, 3))
	assert.Equal(t, 5, pageTotal(map[string]any{"total": "1"}, 5), "a total below the page size is ignored")
}
