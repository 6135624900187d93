package model

// MutePreference is the process-wide sound policy chosen by the user.
type MutePreference struct {
	Muted bool `json:"muted"`

	// AlwaysPlayImportant lets critical and warning alerts through a
	// global mute.
	AlwaysPlayImportant bool `json:"alwaysPlayImportant"`
}

// Filter option identifiers.
const (
	FilterHideRead      = "hideRead"
	FilterImportant     = "important"
	FilterShowDismissed = "showDismissed"
)

// FilterOptions holds a user's feed filter toggles.
type FilterOptions struct {
	HideRead      bool `json:"hideRead"`
	OnlyImportant bool `json:"important"`
	ShowDismissed bool `json:"showDismissed"`
}

// Toggle flips the named filter and reports whether the name was known.
func (f *FilterOptions) Toggle(name string) bool {
	switch name {
	case FilterHideRead:
		f.HideRead = !f.HideRead
	case FilterImportant:
		f.OnlyImportant = !f.OnlyImportant
	case FilterShowDismissed:
		f.ShowDismissed = !f.ShowDismissed
	default:
		return false
	}
	return true
}
