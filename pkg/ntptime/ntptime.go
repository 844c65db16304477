// Package ntptime converts between wall-clock time and the 64-bit network
// time format used on the wire by sender reports and XR blocks: the upper
// 32 bits are whole seconds since 1900-01-01 UTC, the lower 32 bits are a
// binary fraction of a second.
//
// The epoch-offset/Time/Unix naming mirrors the small NTP conversion helper
// in the pack's facebook/time module; the arithmetic here is the RTP/NTP
// 32.32 "short format" split rather than that helper's Unix-nanosecond one.
package ntptime

import "time"

// SecondsFrom1900To1970 is the NTP-to-Unix epoch offset used throughout the
// package (RFC 3550 §4).
const SecondsFrom1900To1970 = 2208988800

// Timestamp is the 64-bit network-time value carried on the wire.
type Timestamp uint64

// Seconds returns the upper 32 bits: whole seconds since 1900-01-01 UTC.
func (t Timestamp) Seconds() uint32 { return uint32(t >> 32) }

// Fraction returns the lower 32 bits: the fractional second.
func (t Timestamp) Fraction() uint32 { return uint32(t) }

// Middle32 returns the low 16 bits of Seconds combined with the high 16
// bits of Fraction — the "LSR" form echoed by sender reports on the wire.
func (t Timestamp) Middle32() uint32 {
	return uint32(t.Seconds()&0xFFFF)<<16 | uint32(t.Fraction()>>16)
}

// Join builds a Timestamp from separate second/fraction halves.
func Join(seconds, fraction uint32) Timestamp {
	return Timestamp(uint64(seconds)<<32 | uint64(fraction))
}

// Now returns the current wall-clock time as network time.
func Now() Timestamp {
	return FromTime(time.Now())
}

// FromTime converts a wall-clock time.Time to network time.
func FromTime(t time.Time) Timestamp {
	secs := t.Unix() + SecondsFrom1900To1970
	nanos := uint64(t.Nanosecond())
	frac := (nanos << 32) / uint64(time.Second)
	return Timestamp(uint64(secs)<<32 | frac)
}

// ToTime converts network time back to a wall-clock time.Time.
func ToTime(t Timestamp) time.Time {
	secs := int64(t.Seconds()) - SecondsFrom1900To1970
	nanos := (uint64(t.Fraction()) * uint64(time.Second)) >> 32
	return time.Unix(secs, int64(nanos)).UTC()
}

// Sub returns a-b as a time.Duration, valid across the 2036 wrap as long as
// both timestamps are within ~68 years of each other.
func (a Timestamp) Sub(b Timestamp) time.Duration {
	d := int64(uint64(a) - uint64(b))
	secs := d >> 32
	frac := uint64(d) & 0xFFFFFFFF
	return time.Duration(secs)*time.Second + time.Duration((frac*uint64(time.Second))>>32)
}

// MediaClock converts a duration into codec-specific RTP timestamp ticks.
func MediaClock(d time.Duration, clockRateHz uint32) uint32 {
	return uint32(d.Seconds() * float64(clockRateHz))
}

// TimestampDelta returns b-a as a signed delta, modularly interpreted so
// that wraparound (mod 2^32) is resolved to the shortest signed distance —
// used to compare two RTP media timestamps for whether one falls within a
// window of the other.
func TimestampDelta(a, b uint32) int32 {
	return int32(b - a)
}

// IsLaterTimestamp reports whether b represents a later media time than a,
// tolerating a single 32-bit wraparound (the comparison is modular, valid
// while true separation stays within 2^31 ticks).
func IsLaterTimestamp(a, b uint32) bool {
	return TimestampDelta(a, b) > 0
}

// SequenceDelta returns b-a as a signed delta over the 16-bit sequence
// number space, resolving a single wraparound the same way.
func SequenceDelta(a, b uint16) int16 {
	return int16(b - a)
}

// IsLaterSequence reports whether b follows a in a monotone 16-bit
// sequence-number stream, treating the 0xFFFF -> 0x0000 wrap as in-order.
func IsLaterSequence(a, b uint16) bool {
	return SequenceDelta(a, b) > 0
}
