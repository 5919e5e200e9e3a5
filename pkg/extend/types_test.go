package extend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResolution(t *testing.T) {
	tests := []struct {
		in   string
		want Resolution
	}{
		{"720p", Resolution720p},
		{"1280x720", Resolution720p},
		{"1080P", Resolution1080p},
		{" 1920x1080 ", Resolution1080p},
		{"768p", Resolution768p},
		{"1024x768", Resolution768p},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseResolution(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseResolution("4k")
	assert.Error(t, err)
}

func TestResolution_Profile(t *testing.T) {
	assert.Equal(t, "(new iPad) 4096kbps, 1280x720", Resolution720p.Profile())
	assert.Equal(t, "(new iPad) 4096kbps, 1920x1080", Resolution1080p.Profile())
	assert.Equal(t, "(new iPad) 4096kbps, 1024x768", Resolution768p.Profile())

	for _, r := range Resolutions() {
		assert.True(t, r.Valid())
		assert.Equal(t, 4096, r.Bitrate())
	}
	assert.False(t, Resolution(0).Valid())
	assert.Equal(t, "Resolution(0)", Resolution(0).String())
}

func TestChannelEntry_StructuralEquality(t *testing.T) {
	a := ChannelEntry{ChannelID: 1, Name: "One", Number: 1, Type: 0}
	b := ChannelEntry{ChannelID: 1, Name: "One", Number: 1, Type: 0}
	c := ChannelEntry{ChannelID: 1, Name: "One", Number: 1, Type: 2}

	assert.True(t, a == b)
	assert.False(t, a == c)
}
