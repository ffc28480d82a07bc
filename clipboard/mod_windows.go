package clipboard

import "github.com/micmonay/keybd_event"

const pasteChord = "Ctrl+V"

func pasteModifier(kb *keybd_event.KeyBonding) { kb.HasCTRL(true) }
