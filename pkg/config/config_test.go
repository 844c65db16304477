package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/7956968/rtpcore/pkg/errkind"
)

func validRaw() map[string]interface{} {
	return map[string]interface{}{
		"profile":       "AVP",
		"media":         "video",
		"payload_types": map[string]interface{}{"96": "H264"},
		"clock_rate":    90000,
		"mtu":           1200,
	}
}

func TestDecodeValidMinimalSession(t *testing.T) {
	s, err := Decode(validRaw())
	require.NoError(t, err)
	require.Equal(t, ProfileAVP, s.Profile)
	require.EqualValues(t, 90000, s.ClockRate)
}

func TestDecodeUpgradesAVPToAVPFWhenFeedbackNegotiated(t *testing.T) {
	raw := validRaw()
	raw["feedback_messages"] = []string{"nack"}
	s, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, ProfileAVPF, s.Profile)
	require.True(t, s.IsFeedbackProfile())
	require.True(t, s.HasFeedback(FeedbackNACK))
}

func TestDecodeUpgradesSAVPToSAVPF(t *testing.T) {
	raw := validRaw()
	raw["profile"] = "SAVP"
	raw["feedback_messages"] = []string{"goog-remb"}
	s, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, ProfileSAVPF, s.Profile)
}

func TestDecodeRejectsMissingClockRate(t *testing.T) {
	raw := validRaw()
	delete(raw, "clock_rate")
	_, err := Decode(raw)
	require.Error(t, err)
	require.True(t, errkind.Is(err, errkind.ConfigurationFault))
}

func TestDecodeRejectsUnknownProfile(t *testing.T) {
	raw := validRaw()
	raw["profile"] = "BOGUS"
	_, err := Decode(raw)
	require.Error(t, err)
}

func TestDecodeRejectsEmptyPayloadTypes(t *testing.T) {
	raw := validRaw()
	delete(raw, "payload_types")
	_, err := Decode(raw)
	require.Error(t, err)
}

func TestDecodeDefaultsMTUWhenUnset(t *testing.T) {
	raw := validRaw()
	delete(raw, "mtu")
	s, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, defaultMTU, s.MTU)
}

func TestPrimaryPayloadTypePicksLowest(t *testing.T) {
	raw := validRaw()
	raw["payload_types"] = map[string]interface{}{"96": "H264", "0": "PCMU", "111": "opus"}
	s, err := Decode(raw)
	require.NoError(t, err)
	require.EqualValues(t, 0, s.PrimaryPayloadType())
}

func TestHasXRAttributeHonorsAll(t *testing.T) {
	raw := validRaw()
	raw["xr_attributes"] = []string{"all"}
	s, err := Decode(raw)
	require.NoError(t, err)
	require.True(t, s.HasXRAttribute(XRReceiverRTT))
	require.True(t, s.HasXRAttribute(XRSender))

	raw["xr_attributes"] = []string{"rcvr-rtt"}
	s, err = Decode(raw)
	require.NoError(t, err)
	require.True(t, s.HasXRAttribute(XRReceiverRTT))
	require.False(t, s.HasXRAttribute(XRSender))
}
