package extend

import (
	"fmt"
	"strings"
)

// ChannelEntry is a tunable channel as reported by channel.list.
// Entries compare structurally with ==.
type ChannelEntry struct {
	ChannelID int    `json:"channel_id" yaml:"channel_id"`
	Name      string `json:"name" yaml:"name"`
	Number    int    `json:"number" yaml:"number"`
	Type      int    `json:"type" yaml:"type"`
}

// TranscodeStatus is a single channel.transcode.status result.
type TranscodeStatus struct {
	Status            string `json:"status"`
	FinishedBuffering bool   `json:"final"`
	Percentage        int    `json:"percentage"`
}

// Resolution selects one of the server's fixed transcode profiles.
type Resolution int

// Supported transcode profiles.
const (
	Resolution720p Resolution = iota + 1
	Resolution1080p
	Resolution768p
)

// Every profile uses the same bitrate; the server's profile catalog only
// differs in frame size.
const profileBitrate = 4096

type resolutionInfo struct {
	name       string
	dimensions string
}

var resolutions = map[Resolution]resolutionInfo{
	Resolution720p:  {name: "720p", dimensions: "1280x720"},
	Resolution1080p: {name: "1080p", dimensions: "1920x1080"},
	Resolution768p:  {name: "768p", dimensions: "1024x768"},
}

// String returns the short name ("720p", "1080p", "768p").
func (r Resolution) String() string {
	if info, ok := resolutions[r]; ok {
		return info.name
	}
	return fmt.Sprintf("Resolution(%d)", int(r))
}

// Dimensions returns the frame size as WIDTHxHEIGHT.
func (r Resolution) Dimensions() string {
	return resolutions[r].dimensions
}

// Valid reports whether r is a known profile.
func (r Resolution) Valid() bool {
	_, ok := resolutions[r]
	return ok
}

// Profile returns the server-side profile descriptor for r.
func (r Resolution) Profile() string {
	return fmt.Sprintf("(new iPad) %dkbps, %s", profileBitrate, r.Dimensions())
}

// Bitrate returns the bitrate in kbps sent alongside the profile.
func (r Resolution) Bitrate() int {
	return profileBitrate
}

// ParseResolution accepts either the short name ("720p") or the
// dimensions ("1280x720"), case-insensitively.
func ParseResolution(s string) (Resolution, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for r, info := range resolutions {
		if s == info.name || s == info.dimensions {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown resolution %q (expected 720p, 1080p or 768p)", s)
}

// Resolutions returns all supported profiles in a stable order.
func Resolutions() []Resolution {
	return []Resolution{Resolution720p, Resolution1080p, Resolution768p}
}
