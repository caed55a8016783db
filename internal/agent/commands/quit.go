package commands

// QuitHandler implements the /quit command.
type QuitHandler struct{}

func (h *QuitHandler) Entry() Entry {
	return Entry{
		Name:        "quit",
		Description: "End the conversation",
		Usage:       "/quit",
	}
}

func (h *QuitHandler) Execute(ctx *Context, _ []string) Result {
	return quit(ctx)
}

// ExitHandler implements the /exit command (alias for quit).
type ExitHandler struct{}

func (h *ExitHandler) Entry() Entry {
	return Entry{
		Name:        "exit",
		Description: "End the conversation",
		Usage:       "/exit",
	}
}

func (h *ExitHandler) Execute(ctx *Context, _ []string) Result {
	return quit(ctx)
}

func quit(ctx *Context) Result {
	if ctx.QuitFunc != nil {
		ctx.QuitFunc()
	}
	return Result{
		Success: true,
		Message: "Goodbye!",
		IsInfo:  true,
	}
}
