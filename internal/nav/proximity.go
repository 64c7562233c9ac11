package nav

// proximity is the arrival latch: it fires once when the distance drops
// under arriveM and re-arms only once the distance is back at rearmM or
// more.
type proximity struct {
	arriveM float64
	rearmM  float64
	fired   bool
}

// observe feeds one distance and reports whether an arrival fires now.
func (p *proximity) observe(distanceM float64) bool {
	if p.fired {
		if distanceM >= p.rearmM {
			p.fired = false
		}
		return false
	}
	if distanceM < p.arriveM {
		p.fired = true
		return true
	}
	return false
}

func (p *proximity) rearm() { p.fired = false }
