package clipboard

import "github.com/micmonay/keybd_event"

const pasteChord = "Cmd+V"

func pasteModifier(kb *keybd_event.KeyBonding) { kb.HasSuper(true) }
