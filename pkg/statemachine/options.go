package statemachine

// TransitionOption attaches guards or actions to a transition built with Define.
type TransitionOption func(*transitionConfig)

type transitionConfig struct {
	guards  []Guard
	actions []Action
}

// WithGuard adds a guard to the transition. Nil guards are ignored.
func WithGuard(guard Guard) TransitionOption {
	return WithGuards(guard)
}

// WithGuards adds guards to the transition, evaluated in order.
func WithGuards(guards ...Guard) TransitionOption {
	return func(cfg *transitionConfig) {
		for _, g := range guards {
			if g != nil {
				cfg.guards = append(cfg.guards, g)
			}
		}
	}
}

// WithAction adds an action to the transition. Nil actions are ignored.
func WithAction(action Action) TransitionOption {
	return WithActions(action)
}

// WithActions adds actions to the transition, run in order by Table.Next.
func WithActions(actions ...Action) TransitionOption {
	return func(cfg *transitionConfig) {
		for _, a := range actions {
			if a != nil {
				cfg.actions = append(cfg.actions, a)
			}
		}
	}
}
