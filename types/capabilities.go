package types

// ------------------------
// Capability addressing & kinds
// ------------------------

type Kind string

const (
	KindTouchKeys Kind = "touch_keys"
	KindSlider    Kind = "slider"
)
