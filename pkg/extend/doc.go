// Package extend provides a Go client for the Extend media-server session
// protocol.
//
// An Extend server exposes its tuners over plain HTTP. Clients authenticate
// with a salted MD5 challenge, list channels, ask the server to transcode a
// channel into HLS and poll the transcode until the playlist can be played.
//
// # Basic Usage
//
//	session, err := extend.Establish(ctx, "192.0.2.10", extend.DefaultPort, "secret")
//
//	// List the channels of group 0
//	channels, err := session.RequestChannelListForGroup(ctx, 0)
//
//	// Select a profile and start transcoding
//	err = session.SetResolution(ctx, extend.Resolution720p)
//	err = session.BeginTranscode(ctx, channels[0].ChannelID)
//
//	// Poll until the server has buffered enough to play
//	status, err := session.RequestTranscodeStatus(ctx)
//
//	// Hand the playlist to a player
//	url := session.PlaybackURL(channels[0].ChannelID)
//
// # Wire Format
//
// Every call is a GET against the service endpoint:
//
//	{baseURL}/services/service?method={method}&{params}&sid={sid}
//
// and is answered with an XML envelope:
//
//	<rsp stat="ok"><field>value</field>...</rsp>
//
// Any stat other than "ok" fails the call with a *ProtocolError.
//
// Methods used:
//   - session.initiate: ver=1.0&device=iPad (no sid); returns sid and salt
//   - session.login: md5={token}
//   - channel.list: group_id
//   - channel.transcode.initiate: device=iPad&channel_id
//   - channel.transcode.status: returns status, final and percentage
//   - setting.set: device=iPad and one of local_profile, remote_profile,
//     local_bitrate, remote_bitrate
//
// The playback playlist lives at:
//
//	{baseURL}/service/services/channelasync.m3u8?sid={sid}&channel_id={id}
//
// # Errors
//
// Failures are reported as *NetworkError (resolution, connection, HTTP
// status, timeouts) or *ProtocolError (rejected status, missing or malformed
// fields). Both match ErrNetwork and ErrProtocol respectively through
// errors.Is. Nothing is retried.
package extend
