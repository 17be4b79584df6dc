package domain

// Tier classifies an author for threshold purposes. Derived from the two
// stored handle sets; any author absent from both is TierDefault.
type Tier string

const (
	TierFavorite Tier = "favorite"
	TierDefault  Tier = "default"
	TierMuted    Tier = "muted"
)
