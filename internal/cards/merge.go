package cards

// Merge unions two collections by id. Local cards win on collision and keep
// their order; remote-only cards follow in remote order.
func Merge(local, remote []Card) []Card {
	merged := make([]Card, 0, len(local)+len(remote))
	seen := make(map[CardID]struct{}, len(local)+len(remote))
	for _, card := range local {
		if _, duplicate := seen[card.ID]; duplicate {
			continue
		}
		seen[card.ID] = struct{}{}
		merged = append(merged, card.Clone())
	}
	for _, card := range remote {
		if _, duplicate := seen[card.ID]; duplicate {
			continue
		}
		seen[card.ID] = struct{}{}
		merged = append(merged, card.Clone())
	}
	return merged
}
