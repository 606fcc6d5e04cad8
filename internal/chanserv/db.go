package chanserv

import (
	"ircservd/internal/account"
	"ircservd/internal/recorddb"
	"ircservd/internal/saxdb"
)

// levelOptionKeys/charOptionKeys name the 11 level options and 4 char
// options in the database's "options" object (§6.2), in the same order as
// the LevelOption/CharOption enums.
var levelOptionKeys = [numLevelOptions]string{
	LevelSetTopic:  "topic",
	LevelEnfModes:  "enfmodes",
	LevelEnfTopic:  "enftopic",
	LevelPubCmd:    "pubcmd",
	LevelSetters:   "setters",
	LevelCTCP:      "ctcp",
	LevelBan:       "ban",
	LevelUnban:     "unban",
	LevelInvite:    "invite",
	LevelGiveVoice: "givevoice",
	LevelGiveOps:   "giveops",
}

var charOptionKeys = [numCharOptions]string{
	CharProtect:      "protect",
	CharToys:         "toys",
	CharTopicRefresh: "topicrefresh",
	CharCtcpReaction: "ctcpreaction",
}

// RegisterSAXDB wires ChanServ into registry under the given subsystem
// name, matching §6.2's exact layout for note_types/dnr/channels.
func (cs *ChanServ) RegisterSAXDB(registry *saxdb.Registry, name string) error {
	return registry.Register(name, cs.readDB, cs.writeDB)
}

func (cs *ChanServ) writeDB(ctx *saxdb.WriteContext) error {
	ctx.StartRecord("note_types", true)
	for name, nt := range cs.noteTypes {
		ctx.StartRecord(name, true)
		ctx.WriteInt(noteAccessKey(nt.SetAccess), 1)
		ctx.WriteString("visibility", noteVisibilityName(nt.Visibility))
		ctx.WriteInt("max_length", uint64(nt.MaxLength))
		ctx.EndRecord()
	}
	ctx.EndRecord()

	ctx.StartRecord("dnr", true)
	writeDNRMap := func(m dnrMap) {
		m.Iterate(func(target string, d *DNR) bool {
			ctx.StartRecord(target, true)
			ctx.WriteInt("set", uint64(d.Set.Unix()))
			saxdb.WriteTime(ctx, "expires", d.Expires)
			ctx.WriteString("setter", d.Setter)
			ctx.WriteString("reason", d.Reason)
			ctx.EndRecord()
			return true
		})
	}
	writeDNRMap(cs.dnrExact)
	writeDNRMap(cs.dnrWildcard)
	writeDNRMap(cs.dnrHandle)
	ctx.EndRecord()

	ctx.StartRecord("channels", true)
	for _, reg := range cs.Channels() {
		writeChannel(ctx, reg)
	}
	ctx.EndRecord()
	return nil
}

func writeChannel(ctx *saxdb.WriteContext, reg *ChannelReg) {
	ctx.StartRecord(reg.Name, true)
	ctx.WriteInt("registered", uint64(reg.Registered.Unix()))
	ctx.WriteInt("visited", uint64(reg.Visited.Unix()))
	ctx.WriteInt("owner_transfer", uint64(reg.OwnerTransfer.Unix()))
	ctx.WriteInt("max", uint64(reg.MaxUsers))
	ctx.WriteString("topic", reg.Topic)
	ctx.WriteString("registrar", reg.Registrar)
	ctx.WriteString("greeting", reg.Greeting)
	ctx.WriteString("user_greeting", reg.UserGreeting)
	ctx.WriteString("topic_mask", reg.TopicMask)
	ctx.WriteString("modes", reg.DefaultModes)

	ctx.StartRecord("options", true)
	ctx.WriteInt("flags", uint64(reg.Flags))
	for opt, key := range levelOptionKeys {
		ctx.WriteInt(key, uint64(reg.Levels[opt]))
	}
	for opt, key := range charOptionKeys {
		ctx.WriteString(key, string(reg.Chars[opt]))
	}
	ctx.EndRecord()

	ctx.StartRecord("users", true)
	reg.Users.Iterate(func(name string, u *UserReg) bool {
		ctx.StartRecord(name, true)
		ctx.WriteInt("level", uint64(u.Access))
		ctx.WriteInt("seen", uint64(u.LastSeen.Unix()))
		ctx.WriteInt("flags", uint64(u.Flags))
		ctx.WriteString("info", u.Info)
		ctx.EndRecord()
		return true
	})
	ctx.EndRecord()

	ctx.StartRecord("bans", true)
	for _, b := range reg.Bans {
		ctx.StartRecord(b.Mask, true)
		ctx.WriteInt("set", uint64(b.Set.Unix()))
		saxdb.WriteTime(ctx, "triggered", b.Triggered)
		saxdb.WriteTime(ctx, "expires", b.Expires)
		ctx.WriteString("owner", b.Owner)
		ctx.WriteString("reason", b.Reason)
		ctx.EndRecord()
	}
	ctx.EndRecord()

	ctx.StartRecord("notes", true)
	for typeName, n := range reg.Notes {
		ctx.StartRecord(typeName, true)
		ctx.WriteString("setter", n.Setter)
		ctx.WriteString("note", n.Text)
		ctx.EndRecord()
	}
	ctx.EndRecord()

	if reg.Suspended != nil {
		ctx.StartRecord("suspended", true)
		writeSuspensionBody(ctx, reg.Suspended)
		ctx.EndRecord()
	}

	ctx.EndRecord()
}

func writeSuspensionBody(ctx *saxdb.WriteContext, s *Suspension) {
	ctx.WriteString("suspender", s.Suspender)
	ctx.WriteString("reason", s.Reason)
	ctx.WriteInt("issued", uint64(s.Issued.Unix()))
	saxdb.WriteTime(ctx, "expires", s.Expires)
	saxdb.WriteTime(ctx, "revoked", s.Revoked)
	if s.Previous != nil {
		ctx.StartRecord("previous", true)
		writeSuspensionBody(ctx, s.Previous)
		ctx.EndRecord()
	}
}

func (cs *ChanServ) readDB(obj *recorddb.Object) error {
	if nts := obj.GetObject("note_types"); nts != nil {
		for _, name := range nts.Names() {
			sub := nts.GetObject(name)
			if sub == nil {
				continue
			}
			nt := &NoteType{
				Name:       name,
				Visibility: noteVisibilityFromName(sub.GetString("visibility", "all")),
				MaxLength:  saxdb.ReadInt(sub, "max_length", 0),
			}
			for _, key := range []string{"opserv_access", "channel_access", "setter_access"} {
				if v := sub.GetString(key, ""); v != "" {
					nt.SetAccess = noteAccessFromKey(key)
				}
			}
			cs.noteTypes[name] = nt
		}
	}

	if dnrs := obj.GetObject("dnr"); dnrs != nil {
		for _, target := range dnrs.Names() {
			sub := dnrs.GetObject(target)
			if sub == nil {
				continue
			}
			d := &DNR{
				Target:  target,
				Setter:  sub.GetString("setter", ""),
				Set:     saxdb.ReadTime(sub, "set"),
				Expires: saxdb.ReadTime(sub, "expires"),
				Reason:  sub.GetString("reason", ""),
			}
			switch {
			case len(target) > 0 && target[0] == '*':
				cs.dnrHandle.Set(target, d)
			case hasGlobChars(target):
				cs.dnrWildcard.Set(target, d)
			default:
				cs.dnrExact.Set(target, d)
			}
		}
	}

	if chans := obj.GetObject("channels"); chans != nil {
		for _, name := range chans.Names() {
			sub := chans.GetObject(name)
			if sub == nil {
				continue
			}
			cs.channels.Set(name, readChannel(cs, name, sub))
		}
	}
	return nil
}

func readChannel(cs *ChanServ, name string, sub *recorddb.Object) *ChannelReg {
	reg := NewChannelReg(name, sub.GetString("modes", ""))
	reg.Registered = saxdb.ReadTime(sub, "registered")
	reg.Visited = saxdb.ReadTime(sub, "visited")
	reg.OwnerTransfer = saxdb.ReadTime(sub, "owner_transfer")
	reg.MaxUsers = saxdb.ReadInt(sub, "max", 0)
	reg.Topic = sub.GetString("topic", "")
	reg.Registrar = sub.GetString("registrar", "")
	reg.Greeting = sub.GetString("greeting", "")
	reg.UserGreeting = sub.GetString("user_greeting", "")
	reg.TopicMask = sub.GetString("topic_mask", "")

	if opts := sub.GetObject("options"); opts != nil {
		reg.Flags = ChannelFlag(saxdb.ReadUint64(opts, "flags", uint64(ChanOffChannel|ChanUnreviewed)))
		for opt, key := range levelOptionKeys {
			reg.Levels[opt] = saxdb.ReadInt(opts, key, 0)
		}
		for opt, key := range charOptionKeys {
			if v := opts.GetString(key, ""); v != "" {
				reg.Chars[opt] = v[0]
			}
		}
	} else {
		reg.Flags = ChanOffChannel | ChanUnreviewed
	}

	if users := sub.GetObject("users"); users != nil {
		for _, handleName := range users.Names() {
			usub := users.GetObject(handleName)
			if usub == nil {
				continue
			}
			h, ok := cs.Store.Lookup(handleName)
			if !ok {
				h = &account.Handle{Name: handleName}
			}
			u := &UserReg{
				Channel:  reg,
				Handle:   h,
				Access:   saxdb.ReadInt(usub, "level", 0),
				LastSeen: saxdb.ReadTime(usub, "seen"),
				Info:     usub.GetString("info", ""),
				Flags:    UserFlag(saxdb.ReadUint64(usub, "flags", 0)),
			}
			reg.Users.Set(handleName, u)
			cs.addHandleLink(u)
		}
	}

	if bans := sub.GetObject("bans"); bans != nil {
		for _, mask := range bans.Names() {
			bsub := bans.GetObject(mask)
			if bsub == nil {
				continue
			}
			b := &BanReg{
				Mask:      mask,
				Owner:     bsub.GetString("owner", ""),
				Reason:    bsub.GetString("reason", ""),
				Set:       saxdb.ReadTime(bsub, "set"),
				Triggered: saxdb.ReadTime(bsub, "triggered"),
				Expires:   saxdb.ReadTime(bsub, "expires"),
				channel:   reg,
			}
			reg.Bans = append(reg.Bans, b)
			cs.scheduleBanExpiry(reg, b)
		}
	}

	if notes := sub.GetObject("notes"); notes != nil {
		for _, typeName := range notes.Names() {
			nsub := notes.GetObject(typeName)
			if nsub == nil {
				continue
			}
			reg.Notes[typeName] = &Note{
				Type:   typeName,
				Setter: nsub.GetString("setter", ""),
				Text:   nsub.GetString("note", ""),
			}
			if nt, ok := cs.noteTypes[typeName]; ok {
				nt.RefCount++
			}
		}
	}

	if susp := sub.GetObject("suspended"); susp != nil {
		reg.Suspended = readSuspensionBody(reg, susp)
		if reg.Suspended.ActiveAt(cs.Now()) {
			reg.Flags |= ChanSuspended
		}
	}

	return reg
}

func readSuspensionBody(reg *ChannelReg, obj *recorddb.Object) *Suspension {
	s := &Suspension{
		Channel:   reg,
		Suspender: obj.GetString("suspender", ""),
		Reason:    obj.GetString("reason", ""),
		Issued:    saxdb.ReadTime(obj, "issued"),
		Expires:   saxdb.ReadTime(obj, "expires"),
		Revoked:   saxdb.ReadTime(obj, "revoked"),
	}
	if prev := obj.GetObject("previous"); prev != nil {
		s.Previous = readSuspensionBody(reg, prev)
	}
	return s
}

func hasGlobChars(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '*' || s[i] == '?' {
			return true
		}
	}
	return false
}

func noteAccessKey(a NoteAccess) string {
	switch a {
	case NoteAccessChannelSetter:
		return "setter_access"
	case NoteAccessPrivileged:
		return "opserv_access"
	default:
		return "channel_access"
	}
}

func noteAccessFromKey(key string) NoteAccess {
	switch key {
	case "setter_access":
		return NoteAccessChannelSetter
	case "opserv_access":
		return NoteAccessPrivileged
	default:
		return NoteAccessChannelAccess
	}
}

func noteVisibilityName(v NoteVisibility) string {
	switch v {
	case NoteVisibilityChannelUsers:
		return "channel_users"
	case NoteVisibilityPrivileged:
		return "privileged"
	default:
		return "all"
	}
}

func noteVisibilityFromName(name string) NoteVisibility {
	switch name {
	case "channel_users":
		return NoteVisibilityChannelUsers
	case "privileged":
		return NoteVisibilityPrivileged
	default:
		return NoteVisibilityAll
	}
}
