package session

// SubflowMember holds one subflow's independent sequence/jitter/loss state
// within a multipath member.
type SubflowMember struct {
	SubflowID uint16
	Member
}

// MultipathMember wraps the session-wide member record with a per-subflow
// breakdown, keyed by subflow id.
type MultipathMember struct {
	*Member
	subflows map[uint16]*SubflowMember
}

// NewMultipathMember wraps an existing session-wide member.
func NewMultipathMember(m *Member) *MultipathMember {
	return &MultipathMember{Member: m, subflows: make(map[uint16]*SubflowMember)}
}

// Subflow returns (creating if absent) the per-subflow record for id.
func (mm *MultipathMember) Subflow(id uint16) *SubflowMember {
	sf, ok := mm.subflows[id]
	if !ok {
		sf = &SubflowMember{SubflowID: id, Member: Member{SSRC: mm.SSRC, state: StateProbation, probationCounter: MinSequential}}
		mm.subflows[id] = sf
	}
	return sf
}

// Subflows returns the live subflow set.
func (mm *MultipathMember) Subflows() map[uint16]*SubflowMember { return mm.subflows }

// OnSubflowPacket applies one subflow-tagged packet's subflow-specific
// sequence number to its subflow record, independent of the session-wide
// sequence space, routing the packet to the corresponding per-subflow
// member entry.
func (mm *MultipathMember) OnSubflowPacket(subflowID uint16, subflowSeq uint16, arrivalTicks, rtpTimestamp uint32) bool {
	sf := mm.Subflow(subflowID)
	ok := sf.onSequentialPacket(subflowSeq)
	if ok {
		sf.updateJitter(arrivalTicks, rtpTimestamp)
		sf.markActiveSender()
	}
	return ok
}

// RemoveSubflow drops a subflow's state, e.g. on path teardown.
func (mm *MultipathMember) RemoveSubflow(id uint16) {
	delete(mm.subflows, id)
}
