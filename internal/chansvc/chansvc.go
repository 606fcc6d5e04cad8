// Package chansvc binds ChanServ's channel-registration operations (§4.6)
// into modcmd Funcs and attaches them to a bot persona. It is the only
// package that imports both internal/chanserv and internal/modcmd — each of
// those stays ignorant of the other so modcmd remains usable by any future
// service and chanserv remains usable headless (e.g. from tests or a
// replay tool) with no command-dispatch framework involved at all.
package chansvc

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"ircservd/internal/account"
	"ircservd/internal/chanserv"
	"ircservd/internal/modcmd"
)

// Register creates the "chanserv" module and every command implementing
// §4.6's operations, bound against cs. Call Bind afterward to attach them
// to a service.
func Register(reg *modcmd.Registry, cs *chanserv.ChanServ) (*modcmd.Module, error) {
	mod, err := reg.RegisterModule("chanserv", "CHANSERV", "chanserv.help", nil)
	if err != nil {
		return nil, err
	}

	cmds := []struct {
		name    string
		fn      modcmd.Func
		minArgc int
		rules   modcmd.Rules
	}{
		{"register", registerCmd(cs), 1, modcmd.Rules{Flags: modcmd.RequireAuthed, Noisy: true, PolicerCategory: "commands-register"}},
		{"unregister", unregisterCmd(cs), 1, modcmd.Rules{Flags: modcmd.RequireAuthed, Noisy: true}},
		{"move", moveCmd(cs), 2, modcmd.Rules{Flags: modcmd.RequireAuthed, Noisy: true}},
		{"merge", mergeCmd(cs), 2, modcmd.Rules{Flags: modcmd.RequireAuthed, Noisy: true}},
		{"adduser", addUserCmd(cs), 2, modcmd.Rules{MinChannelAccess: chanserv.AccessMin, Noisy: true}},
		{"clvl", clvlCmd(cs), 2, modcmd.Rules{MinChannelAccess: chanserv.AccessMin, Noisy: true}},
		{"deluser", delUserCmd(cs), 1, modcmd.Rules{MinChannelAccess: chanserv.AccessMin, Noisy: true}},
		{"mdel", mdelCmd(cs), 2, modcmd.Rules{MinChannelAccess: chanserv.AccessOwner, Noisy: true}},
		{"trim", trimCmd(cs), 2, modcmd.Rules{MinChannelAccess: chanserv.AccessOwner, Noisy: true}},
		{"addban", addBanCmd(cs), 1, modcmd.Rules{MinChannelAccess: chanserv.AccessMin, Noisy: true}},
		{"noregister", noRegisterCmd(cs), 1, modcmd.Rules{RequiredAcctFlags: account.FlagNetworkHelper, Noisy: true}},
		{"allowregister", allowRegisterCmd(cs), 1, modcmd.Rules{RequiredAcctFlags: account.FlagNetworkHelper, Noisy: true}},
		{"note", noteCmd(cs), 0, modcmd.Rules{Flags: modcmd.RequireChanuser, Noisy: true}},
		{"delnote", delNoteCmd(cs), 1, modcmd.Rules{MinChannelAccess: chanserv.AccessOwner, Noisy: true}},
		{"createnote", createNoteCmd(cs), 2, modcmd.Rules{RequiredAcctFlags: account.FlagNetworkHelper, Noisy: true}},
		{"removenote", removeNoteCmd(cs), 1, modcmd.Rules{RequiredAcctFlags: account.FlagNetworkHelper, Noisy: true}},
		{"csuspend", csuspendCmd(cs), 1, modcmd.Rules{RequiredAcctFlags: account.FlagNetworkHelper, Noisy: true, Flags: modcmd.RequireChannel}},
		{"cunsuspend", cunsuspendCmd(cs), 0, modcmd.Rules{RequiredAcctFlags: account.FlagNetworkHelper, Noisy: true, Flags: modcmd.RequireChannel | modcmd.IgnoreCSuspend}},
	}
	for _, c := range cmds {
		if _, err := reg.RegisterCommand(mod, c.name, c.fn, c.minArgc, c.rules); err != nil {
			return nil, err
		}
	}
	return mod, nil
}

// Bind attaches every command in mod to svc under its canonical name.
func Bind(reg *modcmd.Registry, svc *modcmd.Service, mod *modcmd.Module) {
	for _, name := range []string{
		"register", "unregister", "move", "merge", "adduser", "clvl",
		"deluser", "mdel", "trim", "addban", "noregister", "allowregister",
		"note", "delnote", "createnote", "removenote", "csuspend", "cunsuspend",
	} {
		cmd, ok := mod.Command(name)
		if !ok {
			continue
		}
		reg.BindCommand(svc, cmd, name, "")
	}
}

func reply(ctx *modcmd.Context, key string, args ...interface{}) {
	if ctx.Reply != nil {
		ctx.Reply(key, args...)
	}
}

// actorHandleName returns the account name of the invoking actor, or "" if
// unauthenticated. RequireAuthed, MinChannelAccess and RequiredAcctFlags
// each reject an unauthenticated caller, so commands bound with any of them
// normally have one.
func actorHandleName(ctx *modcmd.Context) string {
	if !ctx.Actor.Authed() {
		return ""
	}
	return ctx.Actor.Handle.Name
}

// channelReg resolves ctx.Channel back to the concrete registration record.
// modcmd only knows the ChannelState interface; chanserv.ChannelView is the
// sole implementation wired into this service, so the assertion is safe
// for any dispatch that went through it.
func channelReg(ctx *modcmd.Context) (*chanserv.ChannelReg, bool) {
	if ctx.Channel == nil {
		return nil, false
	}
	view, ok := ctx.Channel.(*chanserv.ChannelView)
	if !ok || view.Reg == nil {
		return nil, false
	}
	return view.Reg, true
}

func registerCmd(cs *chanserv.ChanServ) modcmd.Func {
	return func(ctx *modcmd.Context, argv []string) modcmd.Result {
		force := ctx.Actor.OperLevel() > 0 && len(argv) > 1 && argv[1] == "force"
		reg, err := cs.Register(chanserv.RegisterOptions{
			Channel: argv[0],
			Handle:  ctx.Actor.Handle,
			Force:   force,
		})
		if err != nil {
			reply(ctx, "MSG_REGISTER_FAILED", argv[0], err.Error())
			return modcmd.ResultSilent
		}
		reply(ctx, "MSG_REGISTERED", reg.Name)
		return modcmd.ResultSuccess
	}
}

func unregisterCmd(cs *chanserv.ChanServ) modcmd.Func {
	return func(ctx *modcmd.Context, argv []string) modcmd.Result {
		confirm := ""
		if len(argv) > 1 {
			confirm = argv[1]
		}
		err := cs.Unregister(argv[0], actorHandleName(ctx), confirm)
		if errors.Is(err, chanserv.ErrConfirmRequired) {
			token := chanserv.ConfirmationToken(actorHandleName(ctx), argv[0])
			reply(ctx, "MSG_CONFIRM_UNREGISTER", argv[0], token)
			return modcmd.ResultSilent
		}
		if err != nil {
			reply(ctx, "MSG_UNREGISTER_FAILED", argv[0], err.Error())
			return modcmd.ResultSilent
		}
		reply(ctx, "MSG_UNREGISTERED", argv[0])
		return modcmd.ResultSuccess
	}
}

func moveCmd(cs *chanserv.ChanServ) modcmd.Func {
	return func(ctx *modcmd.Context, argv []string) modcmd.Result {
		if err := cs.Move(argv[0], argv[1], actorHandleName(ctx)); err != nil {
			reply(ctx, "MSG_MOVE_FAILED", argv[0], argv[1], err.Error())
			return modcmd.ResultSilent
		}
		reply(ctx, "MSG_MOVED", argv[0], argv[1])
		return modcmd.ResultSuccess
	}
}

func mergeCmd(cs *chanserv.ChanServ) modcmd.Func {
	return func(ctx *modcmd.Context, argv []string) modcmd.Result {
		if err := cs.Merge(argv[0], argv[1], actorHandleName(ctx)); err != nil {
			reply(ctx, "MSG_MERGE_FAILED", argv[0], argv[1], err.Error())
			return modcmd.ResultSilent
		}
		reply(ctx, "MSG_MERGED", argv[0], argv[1])
		return modcmd.ResultSuccess
	}
}

// channelUserOp builds the UserOp every user-list mutation needs, marking
// Staff when the actor's network-helper flag lets them bypass the rank
// check the way srvx's OPSERV override does.
func channelUserOp(ctx *modcmd.Context, reg *chanserv.ChannelReg, target string) chanserv.UserOp {
	actor := actorHandleName(ctx)
	return chanserv.UserOp{
		Reg:          reg,
		ActorHandle:  actor,
		ActorAccess:  ctx.Channel.AccessLevel(actor),
		TargetHandle: target,
		Staff:        ctx.Actor.HasAcctFlags(account.FlagNetworkHelper),
	}
}

func addUserCmd(cs *chanserv.ChanServ) modcmd.Func {
	return func(ctx *modcmd.Context, argv []string) modcmd.Result {
		reg, ok := channelReg(ctx)
		if !ok {
			reply(ctx, "MSG_NEED_CHANNEL")
			return modcmd.ResultSilent
		}
		access, err := strconv.Atoi(argv[1])
		if err != nil {
			reply(ctx, "MSG_BAD_ACCESS", argv[1])
			return modcmd.ResultSilent
		}
		handle, ok := cs.Store.Lookup(argv[0])
		if !ok {
			reply(ctx, "MSG_UNKNOWN_HANDLE", argv[0])
			return modcmd.ResultSilent
		}
		op := channelUserOp(ctx, reg, argv[0])
		if _, err := cs.AddUser(op, handle, access); err != nil {
			reply(ctx, "MSG_ADDUSER_FAILED", argv[0], err.Error())
			return modcmd.ResultSilent
		}
		reply(ctx, "MSG_ADDED_USER", argv[0], access)
		return modcmd.ResultSuccess
	}
}

func clvlCmd(cs *chanserv.ChanServ) modcmd.Func {
	return func(ctx *modcmd.Context, argv []string) modcmd.Result {
		reg, ok := channelReg(ctx)
		if !ok {
			reply(ctx, "MSG_NEED_CHANNEL")
			return modcmd.ResultSilent
		}
		access, err := strconv.Atoi(argv[1])
		if err != nil {
			reply(ctx, "MSG_BAD_ACCESS", argv[1])
			return modcmd.ResultSilent
		}
		op := channelUserOp(ctx, reg, argv[0])
		if err := cs.ClVl(op, access); err != nil {
			reply(ctx, "MSG_CLVL_FAILED", argv[0], err.Error())
			return modcmd.ResultSilent
		}
		reply(ctx, "MSG_CLVL_SET", argv[0], access)
		return modcmd.ResultSuccess
	}
}

func delUserCmd(cs *chanserv.ChanServ) modcmd.Func {
	return func(ctx *modcmd.Context, argv []string) modcmd.Result {
		reg, ok := channelReg(ctx)
		if !ok {
			reply(ctx, "MSG_NEED_CHANNEL")
			return modcmd.ResultSilent
		}
		op := channelUserOp(ctx, reg, argv[0])
		if err := cs.DelUser(op); err != nil {
			reply(ctx, "MSG_DELUSER_FAILED", argv[0], err.Error())
			return modcmd.ResultSilent
		}
		reply(ctx, "MSG_DELETED_USER", argv[0])
		return modcmd.ResultSuccess
	}
}

func mdelCmd(cs *chanserv.ChanServ) modcmd.Func {
	return func(ctx *modcmd.Context, argv []string) modcmd.Result {
		reg, ok := channelReg(ctx)
		if !ok {
			reply(ctx, "MSG_NEED_CHANNEL")
			return modcmd.ResultSilent
		}
		level, err := strconv.Atoi(argv[0])
		if err != nil {
			reply(ctx, "MSG_BAD_ACCESS", argv[0])
			return modcmd.ResultSilent
		}
		removed := cs.MDelLevel(reg, level, argv[1])
		reply(ctx, "MSG_MDEL_DONE", len(removed), level)
		return modcmd.ResultSuccess
	}
}

func trimCmd(cs *chanserv.ChanServ) modcmd.Func {
	return func(ctx *modcmd.Context, argv []string) modcmd.Result {
		reg, ok := channelReg(ctx)
		if !ok {
			reply(ctx, "MSG_NEED_CHANNEL")
			return modcmd.ResultSilent
		}
		days, err := strconv.Atoi(argv[0])
		if err != nil {
			reply(ctx, "MSG_BAD_DURATION", argv[0])
			return modcmd.ResultSilent
		}
		includeFrozen := len(argv) > 1 && argv[1] == "frozen"
		isFrozen := func(name string) bool {
			if cs.Store == nil {
				return false
			}
			h, ok := cs.Store.Lookup(name)
			return ok && h.Has(account.FlagFrozen)
		}
		removed := cs.Trim(reg, time.Duration(days)*24*time.Hour, isFrozen, includeFrozen)
		reply(ctx, "MSG_TRIM_DONE", len(removed))
		return modcmd.ResultSuccess
	}
}

func addBanCmd(cs *chanserv.ChanServ) modcmd.Func {
	return func(ctx *modcmd.Context, argv []string) modcmd.Result {
		reg, ok := channelReg(ctx)
		if !ok {
			reply(ctx, "MSG_NEED_CHANNEL")
			return modcmd.ResultSilent
		}
		opts := chanserv.AddBanOptions{Mask: argv[0], Owner: actorHandleName(ctx)}
		if len(argv) > 1 {
			if mins, err := strconv.Atoi(argv[1]); err == nil && mins > 0 {
				opts.Expires = cs.Now().Add(time.Duration(mins) * time.Minute)
			}
		}
		if len(argv) > 2 {
			opts.Reason = argv[2]
		}
		if err := cs.AddBan(reg, opts); err != nil {
			reply(ctx, "MSG_ADDBAN_FAILED", argv[0], err.Error())
			return modcmd.ResultSilent
		}
		reply(ctx, "MSG_ADDED_BAN", argv[0])
		return modcmd.ResultSuccess
	}
}

func noRegisterCmd(cs *chanserv.ChanServ) modcmd.Func {
	return func(ctx *modcmd.Context, argv []string) modcmd.Result {
		reason := ""
		var dur time.Duration
		if len(argv) > 1 {
			if days, err := strconv.Atoi(argv[1]); err == nil && days > 0 {
				dur = time.Duration(days) * 24 * time.Hour
			}
		}
		if len(argv) > 2 {
			reason = argv[2]
		}
		cs.NoRegister(argv[0], actorHandleName(ctx), reason, dur)
		reply(ctx, "MSG_DNR_ADDED", argv[0])
		return modcmd.ResultSuccess
	}
}

func allowRegisterCmd(cs *chanserv.ChanServ) modcmd.Func {
	return func(ctx *modcmd.Context, argv []string) modcmd.Result {
		if !cs.AllowRegister(argv[0]) {
			reply(ctx, "MSG_NO_SUCH_DNR", argv[0])
			return modcmd.ResultSilent
		}
		reply(ctx, "MSG_DNR_REMOVED", argv[0])
		return modcmd.ResultSuccess
	}
}

func noteCmd(cs *chanserv.ChanServ) modcmd.Func {
	return func(ctx *modcmd.Context, argv []string) modcmd.Result {
		reg, ok := channelReg(ctx)
		if !ok {
			reply(ctx, "MSG_NEED_CHANNEL")
			return modcmd.ResultSilent
		}
		if len(argv) < 2 {
			maxVis := chanserv.NoteVisibilityPrivileged
			if !ctx.Actor.HasAcctFlags(account.FlagNetworkHelper) {
				maxVis = chanserv.NoteVisibilityChannelUsers
			}
			notes := cs.VisibleNotes(reg, maxVis)
			reply(ctx, "MSG_NOTE_LIST", len(notes))
			return modcmd.ResultSuccess
		}
		if err := cs.SetNote(reg, argv[0], actorHandleName(ctx), argv[1]); err != nil {
			reply(ctx, "MSG_NOTE_FAILED", argv[0], err.Error())
			return modcmd.ResultSilent
		}
		reply(ctx, "MSG_NOTE_SET", argv[0])
		return modcmd.ResultSuccess
	}
}

func delNoteCmd(cs *chanserv.ChanServ) modcmd.Func {
	return func(ctx *modcmd.Context, argv []string) modcmd.Result {
		reg, ok := channelReg(ctx)
		if !ok {
			reply(ctx, "MSG_NEED_CHANNEL")
			return modcmd.ResultSilent
		}
		if err := cs.DeleteNote(reg, argv[0]); err != nil {
			reply(ctx, "MSG_NOTE_FAILED", argv[0], err.Error())
			return modcmd.ResultSilent
		}
		reply(ctx, "MSG_NOTE_DELETED", argv[0])
		return modcmd.ResultSuccess
	}
}

func createNoteCmd(cs *chanserv.ChanServ) modcmd.Func {
	return func(ctx *modcmd.Context, argv []string) modcmd.Result {
		maxLen := 0
		if len(argv) > 1 {
			if n, err := strconv.Atoi(argv[1]); err == nil {
				maxLen = n
			}
		}
		access := chanserv.NoteAccessChannelAccess
		visibility := chanserv.NoteVisibilityAll
		if len(argv) > 2 && argv[2] == "privileged" {
			access = chanserv.NoteAccessPrivileged
			visibility = chanserv.NoteVisibilityPrivileged
		}
		if _, err := cs.CreateNoteType(argv[0], access, visibility, maxLen); err != nil {
			reply(ctx, "MSG_NOTETYPE_FAILED", argv[0], err.Error())
			return modcmd.ResultSilent
		}
		reply(ctx, "MSG_NOTETYPE_CREATED", argv[0])
		return modcmd.ResultSuccess
	}
}

func removeNoteCmd(cs *chanserv.ChanServ) modcmd.Func {
	return func(ctx *modcmd.Context, argv []string) modcmd.Result {
		if err := cs.RemoveNoteType(argv[0]); err != nil {
			reply(ctx, "MSG_NOTETYPE_FAILED", argv[0], err.Error())
			return modcmd.ResultSilent
		}
		reply(ctx, "MSG_NOTETYPE_REMOVED", argv[0])
		return modcmd.ResultSuccess
	}
}

func csuspendCmd(cs *chanserv.ChanServ) modcmd.Func {
	return func(ctx *modcmd.Context, argv []string) modcmd.Result {
		reg, ok := channelReg(ctx)
		if !ok {
			reply(ctx, "MSG_NEED_CHANNEL")
			return modcmd.ResultSilent
		}
		// argv[0], if present and numeric, is an optional duration in
		// minutes (§4.6.8); anything else (or its absence) leaves the
		// suspension permanent. The remaining words, if any, are the
		// reason.
		var dur time.Duration
		reasonArgs := argv
		if len(argv) > 0 {
			if mins, err := strconv.Atoi(argv[0]); err == nil && mins > 0 {
				dur = time.Duration(mins) * time.Minute
				reasonArgs = argv[1:]
			}
		}
		reason := strings.Join(reasonArgs, " ")
		cs.Csuspend(reg, actorHandleName(ctx), reason, dur)
		reply(ctx, "MSG_CSUSPENDED", reg.Name)
		return modcmd.ResultSuccess
	}
}

func cunsuspendCmd(cs *chanserv.ChanServ) modcmd.Func {
	return func(ctx *modcmd.Context, argv []string) modcmd.Result {
		reg, ok := channelReg(ctx)
		if !ok {
			reply(ctx, "MSG_NEED_CHANNEL")
			return modcmd.ResultSilent
		}
		if err := cs.Cunsuspend(reg); err != nil {
			reply(ctx, "MSG_CUNSUSPEND_FAILED", err.Error())
			return modcmd.ResultSilent
		}
		reply(ctx, "MSG_CUNSUSPENDED", reg.Name)
		return modcmd.ResultSuccess
	}
}
