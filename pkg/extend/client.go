package extend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

// Protocol constants.
const (
	// DefaultPort is the port Extend servers listen on out of the box.
	DefaultPort = 7799

	// DefaultDevice is the device profile every request is issued for.
	DefaultDevice = "iPad"

	protocolVersion = "1.0"

	pathService  = "/services/service"
	pathPlayback = "/service/services/channelasync.m3u8"

	// Service methods.
	methodSessionInitiate   = "session.initiate"
	methodSessionLogin      = "session.login"
	methodChannelList       = "channel.list"
	methodTranscodeInitiate = "channel.transcode.initiate"
	methodTranscodeStatus   = "channel.transcode.status"
	methodSettingSet        = "setting.set"

	// Query parameter names.
	paramMethod        = "method"
	paramSessionID     = "sid"
	paramVersion       = "ver"
	paramDevice        = "device"
	paramToken         = "md5"
	paramGroupID       = "group_id"
	paramChannelID     = "channel_id"
	paramLocalProfile  = "local_profile"
	paramRemoteProfile = "remote_profile"
	paramLocalBitrate  = "local_bitrate"
	paramRemoteBitrate = "remote_bitrate"

	// Response fields.
	fieldSessionID  = "sid"
	fieldSalt       = "salt"
	fieldStatus     = "status"
	fieldFinal      = "final"
	fieldPercentage = "percentage"
)

// Resolver looks up the addresses of a host name. *net.Resolver satisfies it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Session is an authenticated Extend session. It is immutable after
// Establish or Login returns it and may be shared between goroutines; every
// method issues an independent request sequence.
type Session struct {
	baseURL   string
	sessionID string
	device    string
	transport Transport
	parser    Parser
	logger    *slog.Logger
}

type options struct {
	transport Transport
	resolver  Resolver
	parser    Parser
	logger    *slog.Logger
	device    string
}

// Option configures session establishment.
type Option func(*options)

// WithTransport sets the Transport used for every request.
func WithTransport(t Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithResolver sets the host name resolver used by Establish.
func WithResolver(r Resolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

// WithParser sets the Parser used for channel lists.
func WithParser(p Parser) Option {
	return func(o *options) {
		o.parser = p
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDevice overrides the device profile tag sent with device-scoped calls.
func WithDevice(device string) Option {
	return func(o *options) {
		o.device = device
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		resolver: net.DefaultResolver,
		logger:   slog.Default(),
		device:   DefaultDevice,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.transport == nil {
		o.transport = NewHTTPTransport(WithTransportLogger(o.logger))
	}
	return o
}

// Establish resolves address, logs in to the server listening on port and
// returns the authenticated session. No session is returned on failure.
func Establish(ctx context.Context, address string, port int, password string, opts ...Option) (*Session, error) {
	o := newOptions(opts)

	host, err := resolveHost(ctx, o.resolver, address)
	if err != nil {
		return nil, err
	}

	return login(ctx, BuildBaseURL(host, port), password, o)
}

// Login performs the session.initiate / session.login handshake against an
// already formatted base URL such as "http://192.0.2.1:7799".
func Login(ctx context.Context, baseURL, password string, opts ...Option) (*Session, error) {
	return login(ctx, strings.TrimSuffix(baseURL, "/"), password, newOptions(opts))
}

func login(ctx context.Context, baseURL, password string, o *options) (*Session, error) {
	logger := o.logger.With(slog.String("component", "extend"))

	initiateURL := serviceURL(baseURL, methodSessionInitiate,
		param{paramVersion, protocolVersion},
		param{paramDevice, o.device},
	)
	resp, err := o.transport.Fetch(ctx, initiateURL)
	if err != nil {
		return nil, failure(methodSessionInitiate, err)
	}

	sessionID, err := requireField(resp, methodSessionInitiate, fieldSessionID, "session id")
	if err != nil {
		return nil, err
	}
	salt, err := requireField(resp, methodSessionInitiate, fieldSalt, "salt")
	if err != nil {
		return nil, err
	}

	s := &Session{
		baseURL:   baseURL,
		sessionID: sessionID,
		device:    o.device,
		transport: o.transport,
		parser:    o.parser,
		logger:    logger,
	}

	if _, err := s.requestService(ctx, methodSessionLogin, param{paramToken, DeriveToken(password, salt)}); err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "extend session established", slog.String("base_url", baseURL))
	return s, nil
}

// BaseURL returns the server base URL the session is bound to.
func (s *Session) BaseURL() string {
	return s.baseURL
}

// SessionID returns the server-issued session identifier.
func (s *Session) SessionID() string {
	return s.sessionID
}

// RequestChannelListForGroup lists the channels of a channel group.
func (s *Session) RequestChannelListForGroup(ctx context.Context, groupID int) ([]ChannelEntry, error) {
	resp, err := s.requestService(ctx, methodChannelList, param{paramGroupID, strconv.Itoa(groupID)})
	if err != nil {
		return nil, err
	}

	channels, err := s.parser.ExtractChannelList(resp)
	if err != nil {
		return nil, failure(methodChannelList, err)
	}

	s.logger.DebugContext(ctx, "channel list received",
		slog.Int("group_id", groupID),
		slog.Int("channels", len(channels)),
	)
	return channels, nil
}

// BeginTranscode asks the server to start transcoding channelID. Whether a
// repeated call restarts or is rejected is up to the server.
func (s *Session) BeginTranscode(ctx context.Context, channelID int) error {
	_, err := s.requestService(ctx, methodTranscodeInitiate,
		param{paramDevice, s.device},
		param{paramChannelID, strconv.Itoa(channelID)},
	)
	if err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "transcode initiated", slog.Int("channel_id", channelID))
	return nil
}

// RequestTranscodeStatus polls the progress of the current transcode.
func (s *Session) RequestTranscodeStatus(ctx context.Context) (TranscodeStatus, error) {
	resp, err := s.requestService(ctx, methodTranscodeStatus)
	if err != nil {
		return TranscodeStatus{}, err
	}

	status, err := requireField(resp, methodTranscodeStatus, fieldStatus, fieldStatus)
	if err != nil {
		return TranscodeStatus{}, err
	}
	final, err := requireField(resp, methodTranscodeStatus, fieldFinal, fieldFinal)
	if err != nil {
		return TranscodeStatus{}, err
	}
	percentage, err := requireField(resp, methodTranscodeStatus, fieldPercentage, fieldPercentage)
	if err != nil {
		return TranscodeStatus{}, err
	}

	pct, err := strconv.Atoi(strings.TrimSpace(percentage))
	if err != nil {
		return TranscodeStatus{}, &ProtocolError{
			Method: methodTranscodeStatus,
			Field:  fieldPercentage,
			Msg:    fmt.Sprintf("invalid percentage: %q", percentage),
		}
	}

	return TranscodeStatus{
		Status:            status,
		FinishedBuffering: strings.EqualFold(strings.TrimSpace(final), "true"),
		Percentage:        pct,
	}, nil
}

// SetResolution selects the transcode profile. It issues four independent
// setting.set calls (local and remote profile, then local and remote
// bitrate); settings applied before a failing call are not rolled back.
func (s *Session) SetResolution(ctx context.Context, res Resolution) error {
	if !res.Valid() {
		return fmt.Errorf("extend: unsupported resolution %s", res)
	}

	profile := escapeProfile(res.Profile())
	bitrate := strconv.Itoa(res.Bitrate())
	settings := []param{
		{paramLocalProfile, profile},
		{paramRemoteProfile, profile},
		{paramLocalBitrate, bitrate},
		{paramRemoteBitrate, bitrate},
	}

	for _, setting := range settings {
		if _, err := s.requestService(ctx, methodSettingSet, param{paramDevice, s.device}, setting); err != nil {
			return err
		}
	}

	s.logger.DebugContext(ctx, "resolution applied", slog.String("resolution", res.String()))
	return nil
}

// PlaybackURL returns the HLS playlist URL for channelID. It performs no I/O.
func (s *Session) PlaybackURL(channelID int) string {
	return s.baseURL + pathPlayback +
		"?" + paramSessionID + "=" + url.QueryEscape(s.sessionID) +
		"&" + paramChannelID + "=" + strconv.Itoa(channelID)
}

// requestService issues an authenticated call and rejects any response whose
// status is not "ok". Every call after session.initiate goes through here.
func (s *Session) requestService(ctx context.Context, method string, params ...param) ([]byte, error) {
	params = append(params, param{paramSessionID, url.QueryEscape(s.sessionID)})

	resp, err := s.transport.Fetch(ctx, serviceURL(s.baseURL, method, params...))
	if err == nil {
		err = VerifyStatus(resp)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "extend request failed",
			slog.String("method", method),
			slog.String("error", err.Error()),
		)
		return nil, failure(method, err)
	}
	return resp, nil
}

// param is a query parameter whose value is already URL-safe.
type param struct {
	key   string
	value string
}

// serviceURL builds <baseURL>/services/service?method=<method>&k=v...
// keeping parameter order stable.
func serviceURL(baseURL, method string, params ...param) string {
	var b strings.Builder
	b.WriteString(baseURL)
	b.WriteString(pathService)
	b.WriteString("?" + paramMethod + "=" + method)
	for _, p := range params {
		b.WriteString("&" + p.key + "=" + p.value)
	}
	return b.String()
}

// escapeProfile escapes profile descriptors the way the server expects:
// spaces become %20 and the remaining characters are sent verbatim.
func escapeProfile(profile string) string {
	return strings.ReplaceAll(profile, " ", "%20")
}

func requireField(doc []byte, method, field, what string) (string, error) {
	text, found, err := ExtractText(doc, field)
	if err != nil {
		return "", failure(method, err)
	}
	if !found || text == "" {
		return "", missingFieldError(method, field, what)
	}
	return text, nil
}

// failure attaches the service method to err.
func failure(method string, err error) error {
	var perr *ProtocolError
	if errors.As(err, &perr) {
		return withMethod(err, method)
	}
	return fmt.Errorf("%s: %w", method, err)
}

// BuildBaseURL formats the server base URL. IPv6 literals are bracketed.
func BuildBaseURL(host string, port int) string {
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if strings.Contains(host, ":") {
		// Zone identifiers must be escaped inside URLs.
		host = strings.Replace(host, "%", "%25", 1)
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// resolveHost turns address into the literal IP the base URL is built from.
// IP literals are used as they are; host names are IDNA-normalised and
// resolved, using the first address returned.
func resolveHost(ctx context.Context, r Resolver, address string) (string, error) {
	address = strings.TrimSpace(address)
	literal := strings.TrimSuffix(strings.TrimPrefix(address, "["), "]")
	if addr, err := netip.ParseAddr(literal); err == nil {
		return addr.String(), nil
	}
	if address == "" {
		return "", &NetworkError{Op: "resolve", Err: errors.New("address is empty")}
	}

	host, err := idna.Lookup.ToASCII(address)
	if err != nil {
		return "", &NetworkError{Op: "resolve", Err: fmt.Errorf("invalid host name %q: %w", address, err)}
	}

	addrs, err := r.LookupIPAddr(ctx, host)
	if err != nil {
		return "", &NetworkError{Op: "resolve", Err: fmt.Errorf("the address could not be found: %w", err)}
	}
	if len(addrs) == 0 {
		return "", &NetworkError{Op: "resolve", Err: fmt.Errorf("the address could not be found: no records for %s", host)}
	}

	ip := addrs[0].IP.String()
	if addrs[0].Zone != "" {
		ip += "%" + addrs[0].Zone
	}
	return ip, nil
}
