package hub

// SelectPortal picks the single nearest portal strictly within radius of pos,
// or none. Equidistant portals resolve to the first in iteration order.
func SelectPortal(pos Vec3, portals []Portal, radius float64) (string, bool) {
	best := ""
	bestDist := radius
	for _, p := range portals {
		d := Dist(pos, p.Pos)
		if d < bestDist {
			best = p.ID
			bestDist = d
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}
