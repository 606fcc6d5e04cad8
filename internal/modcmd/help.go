package modcmd

// Help resolves "help [topic]" per §4.5.6: the service's own bindings for a
// command named topic; then each module in the service's help-search list
// for topic in its help store; then "<index>". Returns the help text and
// true, or false if nothing resolved (caller sends a not-found message).
func Help(svc *Service, topic string) (string, bool) {
	if topic == "" {
		topic = "<index>"
	}
	if binding, ok := svc.Lookup(topic); ok {
		if text, ok := binding.Target.Module.Help(binding.Target.Name); ok {
			return text, true
		}
	}
	for _, m := range svc.Modules {
		if text, ok := m.Help(topic); ok {
			return text, true
		}
	}
	if topic != "<index>" {
		for _, m := range svc.Modules {
			if text, ok := m.Help("<index>"); ok {
				return text, true
			}
		}
	}
	return "", false
}
