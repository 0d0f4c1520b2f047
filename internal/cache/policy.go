package cache

import "time"

// Policy decides how long an entry stays valid.
type Policy struct {
	Indefinite bool          `msgpack:"indefinite"`
	TTL        time.Duration `msgpack:"ttl"`
}

// Indefinite entries never expire. They are removed only explicitly.
func Indefinite() Policy {
	return Policy{Indefinite: true}
}

// FixedDuration entries expire d after they were cached.
func FixedDuration(d time.Duration) Policy {
	return Policy{TTL: d}
}

// Valid reports whether an entry cached at cachedAt is still usable at now.
func (p Policy) Valid(cachedAt, now time.Time) bool {
	if p.Indefinite {
		return true
	}
	return now.Sub(cachedAt) < p.TTL
}

// String renders the policy for logs.
func (p Policy) String() string {
	if p.Indefinite {
		return "indefinite"
	}
	return "fixed(" + p.TTL.String() + ")"
}
