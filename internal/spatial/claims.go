package spatial

// Claims records which rule consumed which line. A line has at most one owner.
type Claims struct {
	owners  map[int]string
	refused int
}

func NewClaims() *Claims {
	return &Claims{owners: make(map[int]string)}
}

// Claim assigns line i to rule. It returns false when the line is already owned.
func (c *Claims) Claim(i int, rule string) bool {
	if _, taken := c.owners[i]; taken {
		c.refused++
		return false
	}
	c.owners[i] = rule
	return true
}

func (c *Claims) Claimed(i int) bool {
	_, taken := c.owners[i]
	return taken
}

// Owner returns the rule holding line i, or "".
func (c *Claims) Owner(i int) string {
	return c.owners[i]
}

func (c *Claims) Len() int {
	return len(c.owners)
}

// Refused counts claims rejected because the line already had an owner.
func (c *Claims) Refused() int {
	return c.refused
}

// Owners returns a copy of the line index to rule map.
func (c *Claims) Owners() map[int]string {
	out := make(map[int]string, len(c.owners))
	for i, r := range c.owners {
		out[i] = r
	}
	return out
}
