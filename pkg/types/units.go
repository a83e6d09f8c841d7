package types

import "fmt"

// WattHours is a float64 wrapper representing an amount of energy in Wh.
type WattHours float64

// String returns a human-readable string with automatic unit (Wh, kWh, MWh).
func (e WattHours) String() string {
	v := float64(e)
	switch {
	case v >= 1e6 || v <= -1e6:
		return fmt.Sprintf("%.2f MWh", v/1e6)
	case v >= 1e3 || v <= -1e3:
		return fmt.Sprintf("%.2f kWh", v/1e3)
	default:
		return fmt.Sprintf("%.1f Wh", v)
	}
}

// KWh returns the amount in kilowatt-hours.
func (e WattHours) KWh() float64 { return float64(e) / 1e3 }

// Joules returns the amount in joules.
func (e WattHours) Joules() float64 { return float64(e) * 3600 }

// Watts is a float64 wrapper representing power draw in W.
type Watts float64

// String returns a human-readable string with automatic unit (W, kW).
func (p Watts) String() string {
	v := float64(p)
	if v >= 1e3 || v <= -1e3 {
		return fmt.Sprintf("%.2f kW", v/1e3)
	}
	return fmt.Sprintf("%.1f W", v)
}

// Over converts a constant draw sustained for the given number of
// simulated seconds into energy.
func (p Watts) Over(seconds float64) WattHours {
	return WattHours(float64(p) * seconds / 3600.0)
}
