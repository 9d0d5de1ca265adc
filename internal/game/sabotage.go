package game

import "math/rand"

// DerangedAssignment returns a picker-to-target mapping in which no player
// picks for themselves. Two players always swap. For larger groups a
// uniform permutation is rejection-sampled until it has no fixed point,
// which keeps the distribution uniform over all derangements. Returns nil
// when fewer than two players are given.
func DerangedAssignment(playerIDs []string, r *rand.Rand) map[string]string {
	n := len(playerIDs)
	if n < 2 {
		return nil
	}

	assignment := make(map[string]string, n)
	if n == 2 {
		assignment[playerIDs[0]] = playerIDs[1]
		assignment[playerIDs[1]] = playerIDs[0]
		return assignment
	}

	perm := make([]int, n)
	for {
		copy(perm, r.Perm(n))
		if isDerangement(perm) {
			break
		}
	}

	for i, j := range perm {
		assignment[playerIDs[i]] = playerIDs[j]
	}
	return assignment
}

func isDerangement(perm []int) bool {
	for i, j := range perm {
		if i == j {
			return false
		}
	}
	return true
}
