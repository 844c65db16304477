package codecs

// Generic is the one-to-one packetizer: each sample becomes exactly one
// packet payload, untouched.
type Generic struct{}

func (Generic) Packetize(sample []byte) ([][]byte, error) {
	return [][]byte{sample}, nil
}

func (g Generic) PacketizeAccessUnit(samples [][]byte) ([][]byte, error) {
	out := make([][]byte, 0, len(samples))
	for _, s := range samples {
		out = append(out, s)
	}
	return out, nil
}

func (Generic) Depacketize(packets []ReceivedPacket) ([][]byte, error) {
	out := make([][]byte, len(packets))
	for i, p := range packets {
		out[i] = p.Payload
	}
	return out, nil
}
