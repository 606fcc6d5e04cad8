package modcmd

import "time"

// CoreDeps bundles the state the core command set closes over: the
// registry it manages, process version/start time for "version", and the
// saxdb flush frequency
// table "stats databases" prints. The minimum command surface every
// service binds (help/bind/unbind/modcmd/command/readhelp/showcommands/
// service/stats/god/version/timecmd) is service-agnostic, so it lives in
// modcmd itself rather than in any one persona's module.
type CoreDeps struct {
	Registry      *Registry
	Version       string
	StartedAt     time.Time
	DBFrequencies func() map[string]time.Duration
}

// RegisterCoreModule registers the "core" module and every command in it.
// Call BindCoreCommands once per service to attach the full set under that
// service's default names.
func RegisterCoreModule(reg *Registry, deps CoreDeps) (*Module, error) {
	mod, err := reg.RegisterModule("core", "CORE", "", nil)
	if err != nil {
		return nil, err
	}

	cmds := []struct {
		name    string
		fn      Func
		minArgc int
		rules   Rules
	}{
		{"help", coreHelp, 0, Rules{}},
		{"bind", coreBind(reg), 3, Rules{MinOperLevel: 1}},
		{"unbind", coreUnbind(reg), 2, Rules{MinOperLevel: 1}},
		{"modcmd", coreModCmd(reg), 1, Rules{MinOperLevel: 1}},
		{"command", coreCommand, 1, Rules{}},
		{"readhelp", coreReadHelp(reg), 1, Rules{MinOperLevel: 1}},
		{"showcommands", coreShowCommands, 0, Rules{}},
		{"service", coreService(reg), 1, Rules{MinOperLevel: 1}},
		{"stats", coreStats(deps), 1, Rules{}},
		{"god", coreGod, 0, Rules{MinOperLevel: 1000}},
		{"version", coreVersion(deps), 0, Rules{}},
		{"timecmd", coreTime, 0, Rules{}},
	}
	for _, c := range cmds {
		if _, err := reg.RegisterCommand(mod, c.name, c.fn, c.minArgc, c.rules); err != nil {
			return nil, err
		}
	}
	return mod, nil
}

// BindCoreCommands binds every command in the core module into svc under
// its own name, skipping any name already bound (a service that wants a
// different name for one of these can bind it itself beforehand).
func BindCoreCommands(reg *Registry, svc *Service, core *Module) {
	for _, name := range []string{
		"help", "bind", "unbind", "modcmd", "command", "readhelp",
		"showcommands", "service", "stats", "god", "version", "timecmd",
	} {
		if _, ok := svc.Lookup(name); ok {
			continue
		}
		cmd, ok := core.Command(name)
		if !ok {
			continue
		}
		reg.BindCommand(svc, cmd, name, "")
	}
}

func coreHelp(ctx *Context, argv []string) Result {
	if len(argv) == 0 {
		ctx.reply("MSG_HELP_TOPICS", ctx.Service.Bindings())
		return ResultSuccess
	}
	topic := argv[0]
	for _, mod := range ctx.Service.Modules {
		if text, ok := mod.Help(topic); ok {
			ctx.reply("MSG_HELP_TEXT", topic, text)
			return ResultSuccess
		}
	}
	ctx.reply("MSG_NO_HELP", topic)
	return ResultSilent
}

// coreBind implements "bind SERVICE NAME MODULE.COMMAND [TEMPLATE]"
// (service_bind_modcmd, §4.5.1).
func coreBind(reg *Registry) Func {
	return func(ctx *Context, argv []string) Result {
		svc, ok := reg.Service(argv[0])
		if !ok {
			ctx.reply("MSG_UNKNOWN_SERVICE", argv[0])
			return ResultSilent
		}
		modName, cmdName, ok := splitTemplateRef(argv[2])
		if !ok {
			ctx.reply("MSG_BAD_TARGET", argv[2])
			return ResultSilent
		}
		mod, ok := reg.Module(modName)
		if !ok {
			ctx.reply("MSG_UNKNOWN_MODULE", modName)
			return ResultSilent
		}
		cmd, ok := mod.Command(cmdName)
		if !ok {
			ctx.reply("MSG_UNKNOWN_COMMAND", cmdName)
			return ResultSilent
		}
		template := ""
		if len(argv) > 3 {
			template = argv[3]
		}
		reg.BindCommand(svc, cmd, argv[1], template)
		if template != "" {
			reg.ResolveTemplates()
		}
		ctx.reply("MSG_BOUND", argv[1], svc.Name)
		return ResultSuccess
	}
}

func coreUnbind(reg *Registry) Func {
	return func(ctx *Context, argv []string) Result {
		svc, ok := reg.Service(argv[0])
		if !ok {
			ctx.reply("MSG_UNKNOWN_SERVICE", argv[0])
			return ResultSilent
		}
		if err := reg.Unbind(svc, argv[1]); err != nil {
			ctx.reply("MSG_UNBIND_FAILED", err.Error())
			return ResultSilent
		}
		ctx.reply("MSG_UNBOUND", argv[1], svc.Name)
		return ResultSuccess
	}
}

// coreModCmd reports on a registered ModCmd by its module-qualified name.
func coreModCmd(reg *Registry) Func {
	return func(ctx *Context, argv []string) Result {
		modName, cmdName, ok := splitTemplateRef(argv[0])
		if !ok {
			ctx.reply("MSG_BAD_TARGET", argv[0])
			return ResultSilent
		}
		mod, ok := reg.Module(modName)
		if !ok {
			ctx.reply("MSG_UNKNOWN_MODULE", modName)
			return ResultSilent
		}
		cmd, ok := mod.Command(cmdName)
		if !ok {
			ctx.reply("MSG_UNKNOWN_COMMAND", cmdName)
			return ResultSilent
		}
		ctx.reply("MSG_MODCMD_INFO", cmd.FullName(), cmd.bindCount, cmd.MinArgc)
		return ResultSuccess
	}
}

// coreCommand reports on a name bound in the calling service.
func coreCommand(ctx *Context, argv []string) Result {
	binding, ok := ctx.Service.Lookup(argv[0])
	if !ok {
		ctx.reply("MSG_UNKNOWN_COMMAND", argv[0])
		return ResultSilent
	}
	ctx.reply("MSG_COMMAND_INFO", binding.Name, binding.Target.FullName(), binding.UseCount)
	return ResultSuccess
}

// coreReadHelp reports whether the named module has a help source
// configured; reloading the underlying text is the help store's job
// (an external collaborator, §1), not this framework's.
func coreReadHelp(reg *Registry) Func {
	return func(ctx *Context, argv []string) Result {
		mod, ok := reg.Module(argv[0])
		if !ok {
			ctx.reply("MSG_UNKNOWN_MODULE", argv[0])
			return ResultSilent
		}
		if mod.HelpExpander == nil {
			ctx.reply("MSG_NO_HELPFILE", argv[0])
			return ResultSilent
		}
		ctx.reply("MSG_HELP_RELOADED", argv[0], mod.HelpfileName)
		return ResultSuccess
	}
}

func coreShowCommands(ctx *Context, argv []string) Result {
	ctx.reply("MSG_COMMAND_LIST", ctx.Service.Bindings())
	return ResultSuccess
}

// coreService implements "service add|rename|trigger|privileged|remove".
func coreService(reg *Registry) Func {
	return func(ctx *Context, argv []string) Result {
		switch argv[0] {
		case "add":
			if len(argv) < 2 {
				ctx.reply("MSG_NEED_MORE_ARGS", 2)
				return ResultSilent
			}
			var trigger byte
			if len(argv) > 2 && len(argv[2]) == 1 {
				trigger = argv[2][0]
			}
			priv := len(argv) > 3 && argv[3] == "privileged"
			if _, err := reg.RegisterService(argv[1], trigger, priv); err != nil {
				ctx.reply("MSG_SERVICE_ADD_FAILED", err.Error())
				return ResultSilent
			}
			ctx.reply("MSG_SERVICE_ADDED", argv[1])
			return ResultSuccess

		case "rename":
			if len(argv) < 3 {
				ctx.reply("MSG_NEED_MORE_ARGS", 3)
				return ResultSilent
			}
			svc, ok := reg.Service(argv[1])
			if !ok {
				ctx.reply("MSG_UNKNOWN_SERVICE", argv[1])
				return ResultSilent
			}
			if err := reg.RenameService(svc, argv[2]); err != nil {
				ctx.reply("MSG_SERVICE_ADD_FAILED", err.Error())
				return ResultSilent
			}
			ctx.reply("MSG_SERVICE_RENAMED", argv[1], argv[2])
			return ResultSuccess

		case "trigger":
			if len(argv) < 3 || len(argv[2]) != 1 {
				ctx.reply("MSG_BAD_TRIGGER")
				return ResultSilent
			}
			svc, ok := reg.Service(argv[1])
			if !ok {
				ctx.reply("MSG_UNKNOWN_SERVICE", argv[1])
				return ResultSilent
			}
			svc.Trigger = argv[2][0]
			ctx.reply("MSG_SERVICE_TRIGGER_SET", argv[1], string(svc.Trigger))
			return ResultSuccess

		case "privileged":
			if len(argv) < 3 {
				ctx.reply("MSG_NEED_MORE_ARGS", 3)
				return ResultSilent
			}
			svc, ok := reg.Service(argv[1])
			if !ok {
				ctx.reply("MSG_UNKNOWN_SERVICE", argv[1])
				return ResultSilent
			}
			svc.Privileged = argv[2] == "on" || argv[2] == "yes" || argv[2] == "true"
			ctx.reply("MSG_SERVICE_PRIVILEGED_SET", argv[1], svc.Privileged)
			return ResultSuccess

		case "remove":
			if len(argv) < 2 {
				ctx.reply("MSG_NEED_MORE_ARGS", 2)
				return ResultSilent
			}
			if !reg.RemoveService(argv[1]) {
				ctx.reply("MSG_UNKNOWN_SERVICE", argv[1])
				return ResultSilent
			}
			ctx.reply("MSG_SERVICE_REMOVED", argv[1])
			return ResultSuccess

		default:
			ctx.reply("MSG_UNKNOWN_SUBCOMMAND", argv[0])
			return ResultSilent
		}
	}
}

// coreStats implements "stats modules|services|databases".
func coreStats(deps CoreDeps) Func {
	return func(ctx *Context, argv []string) Result {
		switch argv[0] {
		case "modules":
			var names []string
			for _, m := range deps.Registry.Modules() {
				names = append(names, m.Name)
			}
			ctx.reply("MSG_STATS_MODULES", names)
		case "services":
			ctx.reply("MSG_STATS_SERVICES", deps.Registry.ServiceNames())
		case "databases":
			freqs := map[string]time.Duration{}
			if deps.DBFrequencies != nil {
				freqs = deps.DBFrequencies()
			}
			ctx.reply("MSG_STATS_DATABASES", freqs)
		default:
			ctx.reply("MSG_UNKNOWN_SUBCOMMAND", argv[0])
			return ResultSilent
		}
		return ResultSuccess
	}
}

func coreGod(ctx *Context, argv []string) Result {
	ctx.reply("MSG_GOD_MODE", ctx.Actor.Nick)
	return ResultSuccess
}

func coreVersion(deps CoreDeps) Func {
	return func(ctx *Context, argv []string) Result {
		ctx.reply("MSG_VERSION", deps.Version, time.Since(deps.StartedAt))
		return ResultSuccess
	}
}

func coreTime(ctx *Context, argv []string) Result {
	ctx.reply("MSG_TIME", time.Now().UTC().Format(time.RFC1123))
	return ResultSuccess
}
