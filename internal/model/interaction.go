package model

// InteractionKind is a user interaction that changes pet attributes.
type InteractionKind string

const (
	InteractionFeed      InteractionKind = "feed"
	InteractionPlay      InteractionKind = "play"
	InteractionTrain     InteractionKind = "train"
	InteractionGroom     InteractionKind = "groom"
	InteractionAdventure InteractionKind = "adventure"
)
