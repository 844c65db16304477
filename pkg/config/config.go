// Package config decodes the finalized session-parameter record the
// runtime is constructed from, using mapstructure-tagged fields decoded
// from a generic map and validated once, fatally, at construction.
package config

import (
	"github.com/mitchellh/mapstructure"

	"github.com/7956968/rtpcore/pkg/errkind"
)

// Profile is one of the four RTP/AVP profile strings.
type Profile string

const (
	ProfileAVP   Profile = "AVP"
	ProfileAVPF  Profile = "AVPF"
	ProfileSAVP  Profile = "SAVP"
	ProfileSAVPF Profile = "SAVPF"
)

// FeedbackMessage is a negotiated feedback-profile message name.
type FeedbackMessage string

const (
	FeedbackNACK      FeedbackMessage = "nack"
	FeedbackACK       FeedbackMessage = "ack"
	FeedbackGoogREMB  FeedbackMessage = "goog-remb"
	FeedbackSCReAM    FeedbackMessage = "scream"
	FeedbackNADA      FeedbackMessage = "nada"
)

// ExtendedReportAttribute is a negotiated XR attribute name.
type ExtendedReportAttribute string

const (
	XRReceiverRTT ExtendedReportAttribute = "rcvr-rtt"
	XRSender      ExtendedReportAttribute = "sender"
	XRAll         ExtendedReportAttribute = "all"
)

// Session is the finalized, validated session-parameter record the runtime
// is constructed from. Nothing here is negotiated by this module — it is
// produced externally (by the out-of-scope signalling layer) and merely
// decoded and validated here.
type Session struct {
	Profile Profile `mapstructure:"profile"`
	Media   string  `mapstructure:"media"` // "audio" or "video", used by the translator's media-type routing

	PayloadTypes map[uint8]string `mapstructure:"payload_types"`
	ClockRate    uint32           `mapstructure:"clock_rate"`
	MTU          int              `mapstructure:"mtu"`

	SessionBandwidthKbps float64 `mapstructure:"session_bandwidth_kbps"`
	PointToPoint         bool    `mapstructure:"point_to_point"`

	ReducedSizeControl       bool `mapstructure:"reduced_size_control"`
	MultiplexControlWithMedia bool `mapstructure:"multiplex_control_with_media"`
	Multipath                 bool `mapstructure:"multipath"`

	FeedbackMessages []FeedbackMessage         `mapstructure:"feedback_messages"`
	XRAttributes     []ExtendedReportAttribute `mapstructure:"xr_attributes"`

	// HeaderExtensions maps a URI (see rtppacket.URI* constants) to the
	// negotiated one-byte/two-byte extension-element id.
	HeaderExtensions map[string]uint8 `mapstructure:"header_extensions"`
}

// Decode builds a Session from a generic map (as produced by whatever
// signalling layer finalized the negotiation), applying the profile-upgrade
// rule and validating mandatory fields. A decode or validation failure is
// always a *errkind.Error of kind ConfigurationFault.
func Decode(raw map[string]interface{}) (*Session, error) {
	var s Session
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &s,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, errkind.New(errkind.ConfigurationFault, err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, errkind.New(errkind.ConfigurationFault, err)
	}
	s.applyProfileUpgrade()
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// applyProfileUpgrade promotes AVP→AVPF and SAVP→SAVPF whenever a feedback
// message was negotiated.
func (s *Session) applyProfileUpgrade() {
	if len(s.FeedbackMessages) == 0 {
		return
	}
	switch s.Profile {
	case ProfileAVP:
		s.Profile = ProfileAVPF
	case ProfileSAVP:
		s.Profile = ProfileSAVPF
	}
}

func (s *Session) validate() error {
	switch s.Profile {
	case ProfileAVP, ProfileAVPF, ProfileSAVP, ProfileSAVPF:
	default:
		return errkind.New(errkind.ConfigurationFault, errUnknownProfile)
	}
	if s.ClockRate == 0 {
		return errkind.New(errkind.ConfigurationFault, errMissingClockRate)
	}
	if s.MTU <= 0 {
		s.MTU = defaultMTU
	}
	if len(s.PayloadTypes) == 0 {
		return errkind.New(errkind.ConfigurationFault, errNoPayloadTypes)
	}
	return nil
}

const defaultMTU = 1200

// HasFeedback reports whether msg was negotiated for this session.
func (s *Session) HasFeedback(msg FeedbackMessage) bool {
	for _, m := range s.FeedbackMessages {
		if m == msg {
			return true
		}
	}
	return false
}

// IsFeedbackProfile reports whether the (possibly upgraded) profile
// supports AVPF-class immediate feedback.
func (s *Session) IsFeedbackProfile() bool {
	return s.Profile == ProfileAVPF || s.Profile == ProfileSAVPF
}

// HasXRAttribute reports whether attr (or "all") was negotiated for the
// extended-report path.
func (s *Session) HasXRAttribute(attr ExtendedReportAttribute) bool {
	for _, a := range s.XRAttributes {
		if a == attr || a == XRAll {
			return true
		}
	}
	return false
}

// PrimaryPayloadType returns the lowest-numbered negotiated payload type,
// the one the runtime stamps on outgoing media when the caller does not
// override it.
func (s *Session) PrimaryPayloadType() uint8 {
	first := true
	var lowest uint8
	for pt := range s.PayloadTypes {
		if first || pt < lowest {
			lowest = pt
			first = false
		}
	}
	return lowest
}
