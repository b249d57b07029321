package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Next      key.Binding
	Prev      key.Binding
	Toggle    key.Binding
	Rotate    key.Binding
	ScaleUp   key.Binding
	ScaleDown key.Binding
	Primary   key.Binding
	ModeNext  key.Binding
	ModePrev  key.Binding
	Apply     key.Binding
	Persist   key.Binding
	Refresh   key.Binding
	Discard   key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Next:      key.NewBinding(key.WithKeys("tab", "right", "l"), key.WithHelp("tab", "next output")),
		Prev:      key.NewBinding(key.WithKeys("shift+tab", "left", "h"), key.WithHelp("shift+tab", "previous output")),
		Toggle:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "enable/disable")),
		Rotate:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rotate")),
		ScaleUp:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "scale up")),
		ScaleDown: key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "scale down")),
		Primary:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "primary")),
		ModeNext:  key.NewBinding(key.WithKeys("m"), key.WithHelp("m/M", "cycle mode")),
		ModePrev:  key.NewBinding(key.WithKeys("M")),
		Apply:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "apply")),
		Persist:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "persist")),
		Refresh:   key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "reload live")),
		Discard:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "discard edits")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Toggle, k.Rotate, k.ScaleUp, k.Apply, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev, k.Toggle, k.Rotate},
		{k.ScaleUp, k.ScaleDown, k.Primary, k.ModeNext},
		{k.Apply, k.Persist, k.Refresh, k.Discard},
		{k.Help, k.Quit},
	}
}
