package markup

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Line
	}{
		{name: "empty", text: "", want: nil},
		{
			name: "bullets and paragraphs",
			text: "Overview\n\n- Auto renewal\n-not a bullet\n  - indented bullet  \n",
			want: []Line{
				{Kind: LineParagraph, Text: "Overview"},
				{Kind: LineBullet, Text: "Auto renewal"},
				{Kind: LineParagraph, Text: "-not a bullet"},
				{Kind: LineBullet, Text: "indented bullet"},
			},
		},
		{
			name: "newline after colon stays inline",
			text: "Term:\n- 12 months\nRent: \n- $1,500",
			want: []Line{
				{Kind: LineParagraph, Text: "Term:\n- 12 months"},
				{Kind: LineParagraph, Text: "Rent:"},
				{Kind: LineBullet, Text: "$1,500"},
			},
		},
		{
			name: "chained colons",
			text: "Parties:\nLandlord:\nACME",
			want: []Line{{Kind: LineParagraph, Text: "Parties:\nLandlord:\nACME"}},
		},
		{
			name: "colon dash prefix is a paragraph",
			text: ":- odd marker",
			want: []Line{{Kind: LineParagraph, Text: ":- odd marker"}},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Parse(tt.text))
		})
	}
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Parse("Risks\n- Late fees\n- Auto renewal")))
	assert.Equal(t, "Risks\n  • Late fees\n  • Auto renewal\n", buf.String())
}
