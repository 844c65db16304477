// Package codecs implements the payload-format plug-ins: a uniform
// packetize/depacketize contract, with Generic, H.264/H.264-SVC and
// H.265/H.265-SHVC implementations.
package codecs

// ReceivedPacket is one wire packet payload as handed to Depacketize,
// carrying its cycle-extended sequence number so a fragmentation-unit
// sequence with a hole in the middle can be told apart from one that is
// merely missing its Start/End flags.
type ReceivedPacket struct {
	Payload        []byte
	SequenceNumber uint32
}

// Packetizer is the capability-object contract payload formats implement:
// selection is by payload-type number, resolved externally by the session
// parameters.
type Packetizer interface {
	// Packetize splits one media sample into one or more packet payloads.
	// Sequence numbers and timestamps are stamped afterwards by the
	// runtime.
	Packetize(sample []byte) ([][]byte, error)
	// PacketizeAccessUnit does the same for a group of samples sharing one
	// presentation time, allowed to aggregate across samples.
	PacketizeAccessUnit(samples [][]byte) ([][]byte, error)
	// Depacketize reconstructs the ordered samples from one presentation
	// time group of received packets (already ordered by sequence number).
	Depacketize(packets []ReceivedPacket) ([][]byte, error)
}
