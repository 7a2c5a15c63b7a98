package cpa

import (
	"github.com/banshee-data/helm.avoid/internal/geom"
)

// CNOSRelBearing is own-ship's bearing as seen from the contact, relative
// to the contact's heading.
func (e *Engine) CNOSRelBearing() float64 {
	return geom.RelBearing(e.cnPos, e.cn.Heading, e.osPos)
}

// OSCNRelBearing is the contact's bearing as seen from own-ship, relative
// to own-ship's present heading.
func (e *Engine) OSCNRelBearing() float64 {
	return geom.RelBearing(e.osPos, e.os.Heading, e.cnPos)
}

// OSCNAbsBearing is the absolute bearing from own-ship to the contact.
func (e *Engine) OSCNAbsBearing() float64 {
	return geom.RelAng(e.osPos, e.cnPos)
}

// ForeOfContact reports whether own-ship is at or ahead of the contact's
// beam line.
func (e *Engine) ForeOfContact() bool {
	if e.osOnContact {
		return false
	}
	rb := e.CNOSRelBearing()
	return rb <= 90+geom.AngleTolerance || rb >= 270-geom.AngleTolerance
}

// AftOfContact reports whether own-ship is at or behind the contact's beam
// line.
func (e *Engine) AftOfContact() bool {
	if e.osOnContact {
		return false
	}
	rb := e.CNOSRelBearing()
	return rb >= 90-geom.AngleTolerance && rb <= 270+geom.AngleTolerance
}

// PortOfContact reports whether own-ship is on the contact's port side.
// Own-ship on the bow-stern line counts as both port and starboard.
func (e *Engine) PortOfContact() bool {
	if e.osOnContact {
		return false
	}
	rb := e.CNOSRelBearing()
	return rb >= 180-geom.AngleTolerance || rb <= geom.AngleTolerance
}

// StarboardOfContact reports whether own-ship is on the contact's
// starboard side. Own-ship on the bow-stern line counts as both.
func (e *Engine) StarboardOfContact() bool {
	if e.osOnContact {
		return false
	}
	rb := e.CNOSRelBearing()
	return rb <= 180+geom.AngleTolerance || rb >= 360-geom.AngleTolerance
}

// PassesContact reports whether own-ship on the candidate crosses the
// contact's beam line, i.e. overtakes it from astern or is overtaken from
// ahead.
func (e *Engine) PassesContact(osh, osv float64) bool {
	fore := e.ForeOfContact()
	aft := e.AftOfContact()
	if fore && aft {
		return true
	}

	along := geom.SpeedInHeading(osh, osv, e.cn.Heading)
	if aft {
		return along > e.cn.Speed
	}
	return along < e.cn.Speed
}

// PassesPort reports whether the candidate passes down the contact's port
// side.
func (e *Engine) PassesPort(osh, osv float64) bool {
	if e.osOnContact {
		return false
	}
	if !e.PassesContact(osh, osv) {
		return false
	}

	fore := e.ForeOfContact()
	aft := e.AftOfContact()
	port := e.PortOfContact()
	stbd := e.StarboardOfContact()

	// Own-ship on the bow-stern line: decide by which side of own-ship's
	// bow the contact lies.
	if port && stbd {
		rb := geom.RelBearing(e.osPos, geom.Angle360(osh), e.cnPos)
		if fore {
			return rb >= 180
		}
		return rb < 180
	}

	// Own-ship on the beam line.
	if fore && aft {
		return port
	}

	switch {
	case aft && port:
		_, crosses := e.CrossesStern(osh, osv)
		return !crosses
	case aft && stbd:
		_, crosses := e.CrossesStern(osh, osv)
		return crosses
	case fore && port:
		_, crosses := e.CrossesBow(osh, osv)
		return !crosses
	case fore && stbd:
		_, crosses := e.CrossesBow(osh, osv)
		return crosses
	}
	return false
}

// PassesStarboard reports whether the candidate passes down the contact's
// starboard side.
func (e *Engine) PassesStarboard(osh, osv float64) bool {
	if e.osOnContact {
		return false
	}
	if !e.PassesContact(osh, osv) {
		return false
	}
	return !e.PassesPort(osh, osv)
}
