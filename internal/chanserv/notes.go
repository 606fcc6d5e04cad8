package chanserv

import "errors"

var (
	ErrNoSuchNoteType  = errors.New("chanserv: no note type with that name")
	ErrNoteTypeExists  = errors.New("chanserv: a note type with that name already exists")
	ErrNoSuchNote      = errors.New("chanserv: channel has no note of that type")
	ErrNoteTooLong     = errors.New("chanserv: note text exceeds the type's max length")
	ErrNoteTypeInUse   = errors.New("chanserv: note type still has notes referencing it")
)

// CreateNoteType implements createnote (§4.6.11), a privileged operation
// registering a new note type process-wide.
func (cs *ChanServ) CreateNoteType(name string, setAccess NoteAccess, visibility NoteVisibility, maxLength int) (*NoteType, error) {
	if _, exists := cs.noteTypes[name]; exists {
		return nil, ErrNoteTypeExists
	}
	nt := &NoteType{Name: name, SetAccess: setAccess, Visibility: visibility, MaxLength: maxLength}
	cs.noteTypes[name] = nt
	return nt, nil
}

// RemoveNoteType implements removenote (§4.6.11): a note type can only be
// retired once nothing references it.
func (cs *ChanServ) RemoveNoteType(name string) error {
	nt, ok := cs.noteTypes[name]
	if !ok {
		return ErrNoSuchNoteType
	}
	if nt.RefCount > 0 {
		return ErrNoteTypeInUse
	}
	delete(cs.noteTypes, name)
	return nil
}

// SetNoteTypeMaxLength changes a note type's max length, retroactively
// truncating every existing note of that type if the new length is
// shorter (§4.6.11).
func (cs *ChanServ) SetNoteTypeMaxLength(name string, maxLength int) error {
	nt, ok := cs.noteTypes[name]
	if !ok {
		return ErrNoSuchNoteType
	}
	nt.MaxLength = maxLength
	if maxLength <= 0 {
		return nil
	}
	cs.channels.Iterate(func(_ string, reg *ChannelReg) bool {
		if n, ok := reg.Notes[name]; ok && len(n.Text) > maxLength {
			n.Text = n.Text[:maxLength]
		}
		return true
	})
	return nil
}

// SetNote implements note TYPE TEXT (§4.6.11): sets or updates a channel's
// note of the given type, truncated to the type's max length.
func (cs *ChanServ) SetNote(reg *ChannelReg, typeName, setter, text string) error {
	nt, ok := cs.noteTypes[typeName]
	if !ok {
		return ErrNoSuchNoteType
	}
	if nt.MaxLength > 0 && len(text) > nt.MaxLength {
		text = text[:nt.MaxLength]
	}
	if _, exists := reg.Notes[typeName]; !exists {
		nt.RefCount++
	}
	reg.Notes[typeName] = &Note{Type: typeName, Setter: setter, Text: text}
	return nil
}

// DeleteNote implements delnote TYPE (§4.6.11).
func (cs *ChanServ) DeleteNote(reg *ChannelReg, typeName string) error {
	if _, ok := reg.Notes[typeName]; !ok {
		return ErrNoSuchNote
	}
	delete(reg.Notes, typeName)
	if nt, ok := cs.noteTypes[typeName]; ok && nt.RefCount > 0 {
		nt.RefCount--
	}
	return nil
}

// VisibleNotes implements bare "note" (§4.6.11): lists every note whose
// type's visibility is at or below maxVisibility (the caller determines
// maxVisibility from the viewer's channel access and staff status before
// calling).
func (cs *ChanServ) VisibleNotes(reg *ChannelReg, maxVisibility NoteVisibility) []*Note {
	var out []*Note
	for _, n := range reg.Notes {
		nt, ok := cs.noteTypes[n.Type]
		if !ok || nt.Visibility > maxVisibility {
			continue
		}
		out = append(out, n)
	}
	return out
}
