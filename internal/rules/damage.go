package rules

import (
	"fmt"
	"math"

	"github.com/wildtale-io/wildtale/pkg/protocol"
)

// ApplyDamage returns a copy of the combatant with the damage applied.
// Health never drops below zero. The input combatant is not mutated.
func ApplyDamage(c protocol.Combatant, amount float64) (protocol.Combatant, error) {
	if math.IsNaN(amount) {
		return protocol.Combatant{}, fmt.Errorf("rules: damage amount is NaN")
	}
	if amount < 0 {
		return protocol.Combatant{}, fmt.Errorf("rules: damage amount %v is negative", amount)
	}
	c.CurrentHealth = math.Max(0, c.CurrentHealth-amount)
	return c, nil
}
